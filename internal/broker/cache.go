package broker

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/matching"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/resilience"
)

const keyPrefix = "match:"

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// MatchCache stores match results keyed by engine generation and a hash of
// the event. Any insert bumps the generation, so stale entries are never
// read; they simply expire. Redis failures trip a circuit breaker, after
// which matching bypasses the cache.
type MatchCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewMatchCache wraps store. m may be nil.
func NewMatchCache(store Store, ttl time.Duration, m *metrics.Metrics) *MatchCache {
	c := &MatchCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "match-cache"),
	}
	c.breaker = resilience.NewCircuitBreaker("match-cache", resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     10 * time.Second,
		OnStateChange: func(name string, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return c
}

// Get returns the cached ids for ev at generation gen.
func (c *MatchCache) Get(ctx context.Context, gen uint64, algo matching.Algorithm, ev matching.Event) ([]int, bool) {
	key := c.buildKey(gen, algo, ev)
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.store.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			data = nil
			return nil
		}
		return err
	})
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
		c.recordMiss()
		return nil, false
	}
	if data == nil {
		c.recordMiss()
		return nil, false
	}
	var ids []int
	if err := json.Unmarshal(data, &ids); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.recordMiss()
		return nil, false
	}
	c.recordHit()
	c.logger.Debug("cache hit", "key", key, "matched", len(ids))
	return ids, true
}

func (c *MatchCache) Set(ctx context.Context, gen uint64, algo matching.Algorithm, ev matching.Event, ids []int) {
	key := c.buildKey(gen, algo, ev)
	data, err := json.Marshal(ids)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result or runs compute once per key,
// collapsing concurrent identical lookups. The bool reports a cache hit.
func (c *MatchCache) GetOrCompute(
	ctx context.Context,
	gen uint64,
	algo matching.Algorithm,
	ev matching.Event,
	compute func() ([]int, error),
) ([]int, bool, error) {
	if ids, ok := c.Get(ctx, gen, algo, ev); ok {
		return ids, true, nil
	}
	key := c.buildKey(gen, algo, ev)
	val, err, _ := c.group.Do(key, func() (any, error) {
		ids, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, gen, algo, ev, ids)
		return ids, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]int), false, nil
}

func (c *MatchCache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *MatchCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// BreakerState reports the state of the Redis circuit breaker.
func (c *MatchCache) BreakerState() resilience.State {
	return c.breaker.GetState()
}

func (c *MatchCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *MatchCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *MatchCache) buildKey(gen uint64, algo matching.Algorithm, ev matching.Event) string {
	hash := sha256.Sum256([]byte(canonicalEvent(ev)))
	return fmt.Sprintf("%s%s:g%d:%x", keyPrefix, algo, gen, hash[:16])
}

// canonicalEvent renders ev as "attr=value" pairs in attribute order.
func canonicalEvent(ev matching.Event) string {
	attrs := make([]int, 0, len(ev.Values))
	for attr := range ev.Values {
		attrs = append(attrs, attr)
	}
	sort.Ints(attrs)
	parts := make([]string, len(attrs))
	for i, attr := range attrs {
		parts[i] = strconv.Itoa(attr) + "=" + strconv.Itoa(ev.Values[attr])
	}
	return strings.Join(parts, ",")
}
