package broker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/matching"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/workload"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/tracing"
)

func matcherConfig(algo matching.Algorithm, shards int) config.MatcherConfig {
	return config.MatcherConfig{
		Algorithm:       string(algo),
		Shards:          shards,
		Subscribers:     500,
		TotalAttributes: 8,
		SubPredicates:   3,
		ValueDomain:     100,
		Width:           0.4,
		MaxBuckets:      10,
		Cells:           4,
		SplitThreshold:  3,
		GrowthFactor:    1.5,
		Alpha:           0.5,
	}
}

func newEngine(t *testing.T, algo matching.Algorithm, shards int) *Engine {
	t.Helper()
	e, err := NewEngine(matcherConfig(algo, shards), nil)
	require.NoError(t, err)
	return e
}

func TestShardedEngineAgreesWithLinear(t *testing.T) {
	gen := workload.New(5)
	events, err := gen.Events(50, 8, 8, 100)
	require.NoError(t, err)
	subs, err := gen.Subscriptions(500, 8, 3, 100, 0.4)
	require.NoError(t, err)

	oracle := newEngine(t, matching.AlgorithmLinear, 1)
	_, err = oracle.InsertBatch(context.Background(), subs)
	require.NoError(t, err)

	for _, algo := range matching.Algorithms() {
		t.Run(string(algo), func(t *testing.T) {
			e := newEngine(t, algo, 4)
			n, err := e.InsertBatch(context.Background(), subs)
			require.NoError(t, err)
			require.Equal(t, len(subs), n)
			require.Equal(t, len(subs), e.Len())

			for i, ev := range events {
				want, err := oracle.Match(context.Background(), ev)
				require.NoError(t, err)
				got, err := e.Match(context.Background(), ev)
				require.NoError(t, err)
				assert.Equal(t, want, got, "event %d", i)
			}
		})
	}
}

func TestInsertRoutesByID(t *testing.T) {
	e := newEngine(t, matching.AlgorithmLinear, 3)
	for id := 0; id < 7; id++ {
		require.NoError(t, e.Insert(matching.NewSubscription(id)))
	}
	stats, err := e.Stats(-1)
	require.NoError(t, err)
	assert.Equal(t, 7, stats.TotalSubscriptions)
	require.Len(t, stats.Shards, 3)
	assert.Equal(t, 3, stats.Shards[0].Subscriptions)
	assert.Equal(t, 2, stats.Shards[1].Subscriptions)
	assert.Equal(t, 2, stats.Shards[2].Subscriptions)
	assert.EqualValues(t, 7, stats.Generation)

	one, err := e.Stats(1)
	require.NoError(t, err)
	require.Len(t, one.Shards, 1)
	assert.Equal(t, 2, one.TotalSubscriptions)

	_, err = e.Stats(3)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestInsertRejectsBadSubscriptions(t *testing.T) {
	e := newEngine(t, matching.AlgorithmAVDDM, 2)
	require.NoError(t, e.Insert(matching.NewSubscription(4)))

	for name, sub := range map[string]*matching.Subscription{
		"nil":       nil,
		"negative":  matching.NewSubscription(-1),
		"duplicate": matching.NewSubscription(4),
		"range":     matching.NewSubscription(5, matching.Predicate{Attribute: 0, Low: 9, High: 2}),
	} {
		err := e.Insert(sub)
		assert.True(t, errors.Is(err, apperrors.ErrInvalidInput), "%s: %v", name, err)
	}
	assert.Equal(t, 1, e.Len())
	assert.EqualValues(t, 1, e.Generation())
}

func TestInsertBatchStopsAtFirstFailure(t *testing.T) {
	e := newEngine(t, matching.AlgorithmLinear, 2)
	n, err := e.InsertBatch(context.Background(), []*matching.Subscription{
		matching.NewSubscription(1),
		matching.NewSubscription(1),
		matching.NewSubscription(2),
	})
	require.Error(t, err)
	assert.Equal(t, 1, n)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err = e.InsertBatch(ctx, []*matching.Subscription{matching.NewSubscription(3)})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}

func TestMatchCancelled(t *testing.T) {
	e := newEngine(t, matching.AlgorithmLinear, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Match(ctx, matching.NewEvent(nil))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMatchInvalidEvent(t *testing.T) {
	e := newEngine(t, matching.AlgorithmMAEMA, 2)
	_, err := e.Match(context.Background(), matching.NewEvent(map[int]int{0: 100}))
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestConcurrentInsertAndMatch(t *testing.T) {
	e := newEngine(t, matching.AlgorithmGemTree, 4)
	gen := workload.New(9)
	subs, err := gen.Subscriptions(400, 8, 3, 100, 0.4)
	require.NoError(t, err)
	events, err := gen.Events(40, 8, 8, 100)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; i < len(subs); i += 4 {
				assert.NoError(t, e.Insert(subs[i]))
			}
		}(w)
	}
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, ev := range events {
				_, err := e.Match(context.Background(), ev)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, len(subs), e.Len())
}

func TestEngineRecordsMetrics(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	e, err := NewEngine(matcherConfig(matching.AlgorithmLinear, 2), m)
	require.NoError(t, err)

	require.NoError(t, e.Insert(matching.NewSubscription(0)))
	require.NoError(t, e.Insert(matching.NewSubscription(2)))
	_, err = e.Match(context.Background(), matching.NewEvent(nil))
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SubscriptionsInsertedTotal.WithLabelValues("linear")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ShardSubscriptionCount.WithLabelValues("0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MatchesTotal.WithLabelValues("linear")))
}

func TestNewEngineRejectsBadConfig(t *testing.T) {
	cfg := matcherConfig(matching.AlgorithmLinear, 0)
	_, err := NewEngine(cfg, nil)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidConfig))

	cfg = matcherConfig("nope", 1)
	_, err = NewEngine(cfg, nil)
	assert.True(t, errors.Is(err, apperrors.ErrUnknownAlgorithm))

	cfg = matcherConfig(matching.AlgorithmMAEMA, 1)
	cfg.Width = 1.5
	_, err = NewEngine(cfg, nil)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidConfig))
}

func TestMatchRecordsShardSpans(t *testing.T) {
	e := newEngine(t, matching.AlgorithmGemTree, 3)
	require.NoError(t, e.Insert(matching.NewSubscription(1, matching.Predicate{Attribute: 0, Low: 0, High: 10})))

	ctx, root := tracing.StartSpan(context.Background(), "match", "trace-1")
	ids, err := e.Match(ctx, matching.NewEvent(map[int]int{0: 5}))
	require.NoError(t, err)
	assert.Equal(t, []int{1}, ids)

	require.Len(t, root.Children, 3)
	for _, child := range root.Children {
		assert.Equal(t, "shard_match", child.Name)
		assert.Equal(t, "trace-1", child.TraceID)
		assert.False(t, child.EndTime.IsZero())
	}
}
