// Package publisher hands validated subscriptions and events to Kafka for
// the matching broker, retrying transient broker failures.
package publisher

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/resilience"
)

// Producer is the subset of kafka.Producer the publisher needs.
type Producer interface {
	PublishBatch(ctx context.Context, msgs []kafka.Message) error
}

// Publisher writes subscriptions and events to their topics.
type Publisher struct {
	subscriptions     Producer
	events            Producer
	subscriptionTopic string
	eventTopic        string
	retry             resilience.RetryConfig
	logger            *slog.Logger
}

// New creates a Publisher. The topic names are reported back to callers.
func New(subscriptions Producer, subscriptionTopic string, events Producer, eventTopic string) *Publisher {
	return &Publisher{
		subscriptions:     subscriptions,
		events:            events,
		subscriptionTopic: subscriptionTopic,
		eventTopic:        eventTopic,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 50 * time.Millisecond,
			MaxDelay:     time.Second,
		},
		logger: slog.Default().With("component", "publisher"),
	}
}

// PublishSubscriptions writes subs keyed by subscription id.
func (p *Publisher) PublishSubscriptions(ctx context.Context, subs []ingestion.SubscriptionMessage) (*ingestion.IngestResponse, error) {
	msgs := make([]kafka.Message, len(subs))
	for i, s := range subs {
		msgs[i] = kafka.Message{Key: strconv.Itoa(s.ID), Value: s}
	}
	if err := p.publish(ctx, "publish-subscriptions", p.subscriptions, msgs); err != nil {
		return nil, err
	}
	p.logger.Info("subscriptions published", "count", len(subs), "topic", p.subscriptionTopic)
	return &ingestion.IngestResponse{Accepted: len(subs), Topic: p.subscriptionTopic}, nil
}

// PublishEvents writes events keyed by event id, assigning ids to events
// that arrive without one.
func (p *Publisher) PublishEvents(ctx context.Context, events []ingestion.EventMessage) (*ingestion.IngestResponse, error) {
	now := time.Now().UTC()
	msgs := make([]kafka.Message, len(events))
	ids := make([]string, len(events))
	for i, ev := range events {
		if ev.EventID == "" {
			ev.EventID = newEventID()
		}
		if ev.PublishedAt.IsZero() {
			ev.PublishedAt = now
		}
		ids[i] = ev.EventID
		msgs[i] = kafka.Message{Key: ev.EventID, Value: ev}
	}
	if err := p.publish(ctx, "publish-events", p.events, msgs); err != nil {
		return nil, err
	}
	p.logger.Info("events published", "count", len(events), "topic", p.eventTopic)
	return &ingestion.IngestResponse{Accepted: len(events), Topic: p.eventTopic, EventIDs: ids}, nil
}

func (p *Publisher) publish(ctx context.Context, op string, producer Producer, msgs []kafka.Message) error {
	err := resilience.Retry(ctx, op, p.retry, func() error {
		return producer.PublishBatch(ctx, msgs)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func newEventID() string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
