// Package ingestion defines the request/response types and Kafka message
// schemas that carry subscriptions and events into the matching broker.
package ingestion

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/matching"
)

// SubscriptionMessage is the wire form of a subscription: an id plus a list
// of range predicates, at most one per attribute.
type SubscriptionMessage struct {
	ID         int                  `json:"id"`
	Predicates []matching.Predicate `json:"predicates"`
}

// Subscription converts the message into the matcher's representation.
func (m SubscriptionMessage) Subscription() *matching.Subscription {
	return matching.NewSubscription(m.ID, m.Predicates...)
}

// EventMessage is the wire form of an event.
type EventMessage struct {
	EventID     string      `json:"event_id"`
	Values      map[int]int `json:"values"`
	PublishedAt time.Time   `json:"published_at,omitempty"`
}

func (m EventMessage) Event() matching.Event {
	return matching.NewEvent(m.Values)
}

// MatchNotification is published for every event that matched at least one
// subscription.
type MatchNotification struct {
	EventID         string    `json:"event_id"`
	Algorithm       string    `json:"algorithm"`
	SubscriptionIDs []int     `json:"subscription_ids"`
	MatchedAt       time.Time `json:"matched_at"`
}

// SubscribeRequest is the JSON body accepted by the subscription endpoints.
type SubscribeRequest struct {
	Subscriptions []SubscriptionMessage `json:"subscriptions"`
}

// PublishRequest is the JSON body accepted by the event ingestion endpoint.
type PublishRequest struct {
	Events []EventMessage `json:"events"`
}

// IngestResponse is returned once messages have been handed to Kafka.
type IngestResponse struct {
	Accepted int      `json:"accepted"`
	Topic    string   `json:"topic"`
	EventIDs []string `json:"event_ids,omitempty"`
}
