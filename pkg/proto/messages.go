// Package proto defines the shared message types carried by the broker's
// JSON-over-TCP RPC layer (see pkg/grpc).
package proto

import (
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/ingestion"
)

// Method names registered by the broker.
const (
	MethodSubscribe = "Matcher.Subscribe"
	MethodMatch     = "Matcher.Match"
	MethodStats     = "Matcher.Stats"
)

// ---------- Subscribe ----------

// SubscribeRequest is the input to the Subscribe RPC.
type SubscribeRequest struct {
	Subscriptions []ingestion.SubscriptionMessage `json:"subscriptions"`
}

// SubscribeResponse reports how many subscriptions were inserted and the
// engine generation after the last insert.
type SubscribeResponse struct {
	Inserted   int    `json:"inserted"`
	Generation uint64 `json:"generation"`
}

// ---------- Match ----------

// MatchRequest is the input to the Match RPC.
type MatchRequest struct {
	EventID string      `json:"event_id,omitempty"`
	Values  map[int]int `json:"values"`
}

// MatchResponse is the output of the Match RPC.
type MatchResponse struct {
	EventID         string `json:"event_id,omitempty"`
	SubscriptionIDs []int  `json:"subscription_ids"`
	Matched         int    `json:"matched"`
	Cached          bool   `json:"cached"`
	LatencyMicros   int64  `json:"latency_us"`
}

// ---------- Stats ----------

// StatsRequest optionally filters by shard (-1 = all).
type StatsRequest struct {
	ShardID int `json:"shard_id"`
}

// StatsResponse contains engine-level statistics.
type StatsResponse struct {
	Algorithm          string      `json:"algorithm"`
	TotalSubscriptions int         `json:"total_subscriptions"`
	Generation         uint64      `json:"generation"`
	Shards             []ShardStat `json:"shards,omitempty"`
}

// ShardStat holds per-shard statistics.
type ShardStat struct {
	ShardID       int `json:"shard_id"`
	Subscriptions int `json:"subscriptions"`
}
