package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/matching"
	apperrors "github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/tracing"
)

// Tracker receives analytics events. *analytics.Collector implements it.
type Tracker interface {
	Track(event any)
}

// Service is the entry point shared by the HTTP handler, the RPC methods
// and the Kafka consumers: it validates input, consults the cache and
// reports analytics around the engine.
type Service struct {
	engine       *Engine
	cache        *MatchCache
	tracker      Tracker
	limits       validator.Limits
	matchTimeout time.Duration
	traceRate    float64
	logger       *slog.Logger
}

// NewService wires the engine with its optional collaborators; cache and
// tracker may be nil.
func NewService(engine *Engine, cache *MatchCache, tracker Tracker, limits validator.Limits, matchTimeout time.Duration) *Service {
	return &Service{
		engine:       engine,
		cache:        cache,
		tracker:      tracker,
		limits:       limits,
		matchTimeout: matchTimeout,
		logger:       slog.Default().With("component", "match-service"),
	}
}

// WithTracing samples the given fraction of Match calls into span trees
// that are logged at debug level.
func (s *Service) WithTracing(sampleRate float64) *Service {
	s.traceRate = sampleRate
	return s
}

func (s *Service) Engine() *Engine { return s.engine }

func (s *Service) Cache() *MatchCache { return s.cache }

// Subscribe validates every message before inserting any of them.
func (s *Service) Subscribe(ctx context.Context, msgs []ingestion.SubscriptionMessage) (*proto.SubscribeResponse, error) {
	start := time.Now()
	subs := make([]*matching.Subscription, len(msgs))
	for i := range msgs {
		if err := validator.ValidateSubscription(&msgs[i], s.limits); err != nil {
			return nil, fmt.Errorf("subscription %d: %w", i, err)
		}
		subs[i] = msgs[i].Subscription()
	}
	inserted, err := s.engine.InsertBatch(ctx, subs)
	resp := &proto.SubscribeResponse{Inserted: inserted, Generation: s.engine.Generation()}
	if inserted > 0 && s.tracker != nil {
		s.tracker.Track(analytics.SubscribeEvent{
			Type:          analytics.EventSubscribe,
			Algorithm:     string(s.engine.Algorithm()),
			Inserted:      inserted,
			LatencyMicros: time.Since(start).Microseconds(),
			Timestamp:     time.Now().UTC(),
		})
	}
	s.logger.Debug("subscriptions inserted",
		"requested", len(msgs),
		"inserted", inserted,
		"generation", resp.Generation,
	)
	return resp, err
}

// Match validates msg and returns the matching subscription ids, ascending.
func (s *Service) Match(ctx context.Context, msg ingestion.EventMessage, requestID string) (*proto.MatchResponse, error) {
	start := time.Now()
	if err := validator.ValidateEvent(&msg, s.limits); err != nil {
		return nil, err
	}
	ev := msg.Event()
	if s.traceRate > 0 && rand.Float64() < s.traceRate {
		var span *tracing.Span
		ctx, span = tracing.StartSpan(ctx, "match", requestID)
		span.SetAttr("event_id", msg.EventID)
		span.SetAttr("algorithm", string(s.engine.Algorithm()))
		defer func() {
			span.End()
			span.Log()
		}()
	}
	compute := func() ([]int, error) {
		return resilience.Do(ctx, s.matchTimeout, "match", func(ctx context.Context) ([]int, error) {
			return s.engine.Match(ctx, ev)
		})
	}

	var (
		ids    []int
		cached bool
		err    error
	)
	if s.cache != nil {
		ids, cached, err = s.cache.GetOrCompute(ctx, s.engine.Generation(), s.engine.Algorithm(), ev, compute)
	} else {
		ids, err = compute()
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrTimeout, err)
		}
		return nil, err
	}

	latency := time.Since(start).Microseconds()
	if s.tracker != nil {
		eventType := analytics.EventMatch
		switch {
		case len(ids) == 0:
			eventType = analytics.EventNoMatch
		case s.cache != nil && cached:
			eventType = analytics.EventCacheHit
		case s.cache != nil:
			eventType = analytics.EventCacheMiss
		}
		s.tracker.Track(analytics.MatchEvent{
			Type:          eventType,
			EventID:       msg.EventID,
			Algorithm:     string(s.engine.Algorithm()),
			Attributes:    len(msg.Values),
			Matched:       len(ids),
			LatencyMicros: latency,
			CacheHit:      cached,
			Timestamp:     time.Now().UTC(),
			RequestID:     requestID,
		})
	}
	return &proto.MatchResponse{
		EventID:         msg.EventID,
		SubscriptionIDs: ids,
		Matched:         len(ids),
		Cached:          cached,
		LatencyMicros:   latency,
	}, nil
}

func (s *Service) Stats(shardID int) (proto.StatsResponse, error) {
	return s.engine.Stats(shardID)
}
