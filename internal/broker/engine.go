// Package broker serves content-based matching: a sharded matching engine,
// a Redis-backed match cache, the HTTP and RPC surfaces, and the Kafka
// consumers that feed subscriptions and events into the engine.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/matching"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/tracing"
)

// shard owns one matcher. Matchers are single-writer structures, so every
// Insert holds mu exclusively and every Match holds it shared.
type shard struct {
	id      int
	mu      sync.RWMutex
	matcher matching.Matcher
	ids     *roaring.Bitmap
}

// Engine partitions subscriptions across shards by id and fans event
// matching out to every shard.
type Engine struct {
	shards     []*shard
	algorithm  matching.Algorithm
	generation atomic.Uint64
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewEngine builds cfg.Shards matchers of the configured algorithm. m may
// be nil.
func NewEngine(cfg config.MatcherConfig, m *metrics.Metrics) (*Engine, error) {
	params, err := cfg.Params()
	if err != nil {
		return nil, err
	}
	e := &Engine{
		shards:    make([]*shard, cfg.Shards),
		algorithm: params.Algorithm,
		metrics:   m,
		logger:    slog.Default().With("component", "match-engine"),
	}
	for i := range e.shards {
		matcher, err := matching.New(params)
		if err != nil {
			return nil, fmt.Errorf("creating matcher for shard %d: %w", i, err)
		}
		e.shards[i] = &shard{id: i, matcher: matcher, ids: roaring.New()}
		e.logger.Debug("shard matcher initialized", "shard_id", i, "algorithm", params.Algorithm)
	}
	e.logger.Info("match engine ready",
		"algorithm", params.Algorithm,
		"num_shards", cfg.Shards,
	)
	return e, nil
}

func (e *Engine) Algorithm() matching.Algorithm { return e.algorithm }

func (e *Engine) NumShards() int { return len(e.shards) }

// Generation increases on every successful insert. Cached match results are
// keyed by it.
func (e *Engine) Generation() uint64 { return e.generation.Load() }

func (e *Engine) route(id int) *shard {
	return e.shards[id%len(e.shards)]
}

// Insert adds sub to its shard. Ids already present are rejected.
func (e *Engine) Insert(sub *matching.Subscription) error {
	if sub == nil {
		return apperrors.Invalidf("nil subscription")
	}
	if sub.ID < 0 {
		return apperrors.Invalidf("subscription id %d is negative", sub.ID)
	}
	s := e.route(sub.ID)
	s.mu.Lock()
	if s.ids.Contains(uint32(sub.ID)) {
		s.mu.Unlock()
		return apperrors.Invalidf("duplicate subscription id %d", sub.ID)
	}
	if err := s.matcher.Insert(sub); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("shard %d: %w", s.id, err)
	}
	s.ids.Add(uint32(sub.ID))
	n := s.matcher.Len()
	s.mu.Unlock()

	e.generation.Add(1)
	if e.metrics != nil {
		e.metrics.SubscriptionsInsertedTotal.WithLabelValues(string(e.algorithm)).Inc()
		e.metrics.ShardSubscriptionCount.WithLabelValues(strconv.Itoa(s.id)).Set(float64(n))
	}
	return nil
}

// InsertBatch inserts subs in order and stops at the first failure,
// returning how many were inserted.
func (e *Engine) InsertBatch(ctx context.Context, subs []*matching.Subscription) (int, error) {
	for i, sub := range subs {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := e.Insert(sub); err != nil {
			return i, err
		}
	}
	return len(subs), nil
}

// Match returns the ids of every subscription matched by ev, ascending.
func (e *Engine) Match(ctx context.Context, ev matching.Event) ([]int, error) {
	start := time.Now()
	perShard := make([][]*matching.Subscription, len(e.shards))
	traced := tracing.SpanFromContext(ctx) != nil

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range e.shards {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if traced {
				_, span := tracing.StartChildSpan(ctx, "shard_match")
				span.SetAttr("shard_id", s.id)
				defer span.End()
			}
			s.mu.RLock()
			defer s.mu.RUnlock()
			matched, err := s.matcher.Match(ev)
			if err != nil {
				return fmt.Errorf("shard %d: %w", s.id, err)
			}
			perShard[i] = matched
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, matched := range perShard {
		total += len(matched)
	}
	ids := make([]int, 0, total)
	for _, matched := range perShard {
		for _, sub := range matched {
			ids = append(ids, sub.ID)
		}
	}
	sort.Ints(ids)

	if e.metrics != nil {
		algo := string(e.algorithm)
		e.metrics.MatchesTotal.WithLabelValues(algo).Inc()
		e.metrics.MatchLatency.WithLabelValues(algo).Observe(time.Since(start).Seconds())
		e.metrics.MatchedSubscriptions.Observe(float64(len(ids)))
	}
	e.logger.Debug("event matched",
		"shards_queried", len(e.shards),
		"matched", len(ids),
		"latency_us", time.Since(start).Microseconds(),
	)
	return ids, nil
}

// Len returns the number of subscriptions across all shards.
func (e *Engine) Len() int {
	total := 0
	for _, s := range e.shards {
		s.mu.RLock()
		total += s.matcher.Len()
		s.mu.RUnlock()
	}
	return total
}

// Stats reports per-shard subscription counts. A negative shardID selects
// every shard.
func (e *Engine) Stats(shardID int) (proto.StatsResponse, error) {
	if shardID >= len(e.shards) {
		return proto.StatsResponse{}, apperrors.Invalidf("unknown shard ID %d (valid range: 0-%d)", shardID, len(e.shards)-1)
	}
	resp := proto.StatsResponse{
		Algorithm:  string(e.algorithm),
		Generation: e.Generation(),
	}
	for _, s := range e.shards {
		if shardID >= 0 && s.id != shardID {
			continue
		}
		s.mu.RLock()
		n := s.matcher.Len()
		s.mu.RUnlock()
		resp.TotalSubscriptions += n
		resp.Shards = append(resp.Shards, proto.ShardStat{ShardID: s.id, Subscriptions: n})
	}
	return resp, nil
}
