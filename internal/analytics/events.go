package analytics

import "time"

type EventType string

const (
	EventMatch     EventType = "match"
	EventCacheHit  EventType = "cache_hit"
	EventCacheMiss EventType = "cache_miss"
	EventSubscribe EventType = "subscribe"
	EventNoMatch   EventType = "no_match"
)

// MatchEvent records one event matched by the broker.
type MatchEvent struct {
	Type          EventType `json:"type"`
	EventID       string    `json:"event_id,omitempty"`
	Algorithm     string    `json:"algorithm"`
	Attributes    int       `json:"attributes"`
	Matched       int       `json:"matched"`
	LatencyMicros int64     `json:"latency_us"`
	CacheHit      bool      `json:"cache_hit"`
	Timestamp     time.Time `json:"timestamp"`
	RequestID     string    `json:"request_id,omitempty"`
}

// SubscribeEvent records a batch of subscriptions inserted by the broker.
type SubscribeEvent struct {
	Type          EventType `json:"type"`
	Algorithm     string    `json:"algorithm"`
	Inserted      int       `json:"inserted"`
	LatencyMicros int64     `json:"latency_us"`
	Timestamp     time.Time `json:"timestamp"`
}
