package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/kafka"
)

type AggregatedStats struct {
	TotalMatches       int64            `json:"total_matches"`
	TotalSubscriptions int64            `json:"total_subscriptions"`
	CacheHits          int64            `json:"cache_hits"`
	CacheMisses        int64            `json:"cache_misses"`
	CacheHitRatio      float64          `json:"cache_hit_ratio"`
	NoMatchCount       int64            `json:"no_match_count"`
	AvgMatched         float64          `json:"avg_matched"`
	AvgLatencyMicros   float64          `json:"avg_latency_us"`
	P50LatencyMicros   int64            `json:"p50_latency_us"`
	P95LatencyMicros   int64            `json:"p95_latency_us"`
	P99LatencyMicros   int64            `json:"p99_latency_us"`
	ByAlgorithm        []AlgorithmCount `json:"by_algorithm"`
	MatchesPerMinute   float64          `json:"matches_per_minute"`
}

type AlgorithmCount struct {
	Algorithm string `json:"algorithm"`
	Count     int64  `json:"count"`
}

// Aggregator folds analytics events into running totals.
type Aggregator struct {
	mu                 sync.RWMutex
	totalMatches       atomic.Int64
	totalSubscriptions atomic.Int64
	cacheHits          atomic.Int64
	cacheMisses        atomic.Int64
	noMatches          atomic.Int64
	matchedSum         atomic.Int64
	latencies          []int64
	algorithmCounts    map[string]int64
	startTime          time.Time
	logger             *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:       make([]int64, 0, 10000),
		algorithmCounts: make(map[string]int64),
		startTime:       time.Now(),
		logger:          slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent dispatches analytics messages on their type field.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		var envelope struct {
			Type EventType `json:"type"`
		}
		if err := json.Unmarshal(value, &envelope); err != nil {
			return fmt.Errorf("%w: decoding analytics event: %v", apperrors.ErrInvalidInput, err)
		}
		switch envelope.Type {
		case EventSubscribe:
			event, err := kafka.DecodeJSON[SubscribeEvent](value)
			if err != nil {
				return err
			}
			agg.RecordSubscribe(event)
		case EventMatch, EventCacheHit, EventCacheMiss, EventNoMatch:
			event, err := kafka.DecodeJSON[MatchEvent](value)
			if err != nil {
				return err
			}
			agg.RecordMatch(event)
		default:
			return apperrors.Invalidf("unknown analytics event type %q", envelope.Type)
		}
		return nil
	}
}

func (a *Aggregator) RecordMatch(event MatchEvent) {
	a.totalMatches.Add(1)
	a.matchedSum.Add(int64(event.Matched))
	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	if event.Matched == 0 {
		a.noMatches.Add(1)
	}

	a.mu.Lock()
	a.latencies = append(a.latencies, event.LatencyMicros)
	a.algorithmCounts[event.Algorithm]++
	a.mu.Unlock()
}

func (a *Aggregator) RecordSubscribe(event SubscribeEvent) {
	a.totalSubscriptions.Add(int64(event.Inserted))
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalMatches:       a.totalMatches.Load(),
		TotalSubscriptions: a.totalSubscriptions.Load(),
		CacheHits:          a.cacheHits.Load(),
		CacheMisses:        a.cacheMisses.Load(),
		NoMatchCount:       a.noMatches.Load(),
	}
	if lookups := stats.CacheHits + stats.CacheMisses; lookups > 0 {
		stats.CacheHitRatio = float64(stats.CacheHits) / float64(lookups)
	}
	if stats.TotalMatches > 0 {
		stats.AvgMatched = float64(a.matchedSum.Load()) / float64(stats.TotalMatches)
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMicros = float64(sum) / float64(len(sorted))
		stats.P50LatencyMicros = percentile(sorted, 50)
		stats.P95LatencyMicros = percentile(sorted, 95)
		stats.P99LatencyMicros = percentile(sorted, 99)
	}
	stats.ByAlgorithm = byCount(a.algorithmCounts)
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.MatchesPerMinute = float64(stats.TotalMatches) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func byCount(counts map[string]int64) []AlgorithmCount {
	result := make([]AlgorithmCount, 0, len(counts))
	for algo, count := range counts {
		result = append(result, AlgorithmCount{Algorithm: algo, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Algorithm < result[j].Algorithm
	})
	return result
}
