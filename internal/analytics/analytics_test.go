package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/kafka"
)

type fakePublisher struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (f *fakePublisher) Publish(_ context.Context, msg kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	agg.RecordMatch(MatchEvent{Type: EventMatch, Algorithm: "gem", Matched: 4, LatencyMicros: 10})
	agg.RecordMatch(MatchEvent{Type: EventCacheHit, Algorithm: "gem", Matched: 2, LatencyMicros: 30, CacheHit: true})
	agg.RecordMatch(MatchEvent{Type: EventNoMatch, Algorithm: "linear", LatencyMicros: 20})
	agg.RecordSubscribe(SubscribeEvent{Type: EventSubscribe, Inserted: 7})

	stats := agg.Stats()
	assert.EqualValues(t, 3, stats.TotalMatches)
	assert.EqualValues(t, 7, stats.TotalSubscriptions)
	assert.EqualValues(t, 1, stats.CacheHits)
	assert.EqualValues(t, 2, stats.CacheMisses)
	assert.InDelta(t, 1.0/3.0, stats.CacheHitRatio, 1e-9)
	assert.EqualValues(t, 1, stats.NoMatchCount)
	assert.InDelta(t, 2.0, stats.AvgMatched, 1e-9)
	assert.InDelta(t, 20.0, stats.AvgLatencyMicros, 1e-9)
	assert.EqualValues(t, 20, stats.P50LatencyMicros)
	assert.EqualValues(t, 30, stats.P99LatencyMicros)
	require.Len(t, stats.ByAlgorithm, 2)
	assert.Equal(t, AlgorithmCount{Algorithm: "gem", Count: 2}, stats.ByAlgorithm[0])
}

func TestAggregatorEmpty(t *testing.T) {
	stats := NewAggregator().Stats()
	assert.Zero(t, stats.TotalMatches)
	assert.Zero(t, stats.CacheHitRatio)
	assert.Empty(t, stats.ByAlgorithm)
}

func TestHandleEventDispatchesOnType(t *testing.T) {
	agg := NewAggregator()
	handle := HandleEvent(agg)
	ctx := context.Background()

	match, err := json.Marshal(MatchEvent{Type: EventMatch, Algorithm: "maema", Matched: 3})
	require.NoError(t, err)
	sub, err := json.Marshal(SubscribeEvent{Type: EventSubscribe, Inserted: 5})
	require.NoError(t, err)

	require.NoError(t, handle(ctx, nil, match))
	require.NoError(t, handle(ctx, nil, sub))

	stats := agg.Stats()
	assert.EqualValues(t, 1, stats.TotalMatches)
	assert.EqualValues(t, 5, stats.TotalSubscriptions)

	err = handle(ctx, nil, []byte(`{"type":"bogus"}`))
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	err = handle(ctx, nil, []byte(`not json`))
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestCollectorPublishesTrackedEvents(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	for i := 0; i < 3; i++ {
		c.Track(MatchEvent{Type: EventMatch, Matched: i})
	}
	c.Close()

	assert.Equal(t, 3, pub.count())
	assert.Equal(t, "analytics", pub.msgs[0].Key)
}

func TestCollectorDropsWhenFull(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 1)
	c.Track(MatchEvent{})
	c.Track(MatchEvent{})
	assert.Len(t, c.eventCh, 1)
}

func TestCollectorDrainsOnCancel(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 8)
	c.Track(MatchEvent{})
	c.Track(MatchEvent{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Start(ctx)

	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatal("collector did not stop")
	}
	assert.Equal(t, 2, pub.count())
}

func TestHandlerStats(t *testing.T) {
	agg := NewAggregator()
	agg.RecordMatch(MatchEvent{Type: EventMatch, Algorithm: "avddm", Matched: 1})
	agg.RecordMatch(MatchEvent{Type: EventMatch, Algorithm: "maema", Matched: 2})
	mux := http.NewServeMux()
	NewHandler(agg, nil).Routes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.EqualValues(t, 2, got.TotalMatches)
	assert.Len(t, got.ByAlgorithm, 2)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?algorithm=maema", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	got = AggregatedStats{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []AlgorithmCount{{Algorithm: "maema", Count: 1}}, got.ByAlgorithm)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?algorithm=gem", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type stubSnapshots struct {
	snap *AggregatedStats
	err  error
}

func (s stubSnapshots) LatestSnapshot(context.Context) (*AggregatedStats, error) {
	return s.snap, s.err
}

func TestHandlerSnapshot(t *testing.T) {
	tests := []struct {
		name   string
		source SnapshotSource
		status int
	}{
		{"disabled", nil, http.StatusServiceUnavailable},
		{"empty", stubSnapshots{}, http.StatusNotFound},
		{"store error", stubSnapshots{err: errors.New("connection reset")}, http.StatusInternalServerError},
		{"latest", stubSnapshots{snap: &AggregatedStats{TotalMatches: 7}}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			NewHandler(NewAggregator(), tt.source).Routes(mux)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshot", nil))
			require.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				var got AggregatedStats
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
				assert.EqualValues(t, 7, got.TotalMatches)
			}
		})
	}
}
