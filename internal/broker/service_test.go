package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/matching"
	apperrors "github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/errors"
)

var testLimits = validator.Limits{TotalAttributes: 8, ValueDomain: 100}

func newService(t *testing.T, cache *MatchCache, tracker Tracker) *Service {
	t.Helper()
	return NewService(newEngine(t, matching.AlgorithmGemTree, 3), cache, tracker, testLimits, time.Second)
}

func sub(id int, preds ...matching.Predicate) ingestion.SubscriptionMessage {
	return ingestion.SubscriptionMessage{ID: id, Predicates: preds}
}

func TestServiceSubscribeAndMatch(t *testing.T) {
	tracker := &recordingTracker{}
	s := newService(t, nil, tracker)
	ctx := context.Background()

	resp, err := s.Subscribe(ctx, []ingestion.SubscriptionMessage{
		sub(1, matching.Predicate{Attribute: 0, Low: 10, High: 20}),
		sub(2, matching.Predicate{Attribute: 0, Low: 15, High: 30}, matching.Predicate{Attribute: 1, Low: 0, High: 5}),
		sub(3),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Inserted)
	assert.EqualValues(t, 3, resp.Generation)

	match, err := s.Match(ctx, ingestion.EventMessage{EventID: "e1", Values: map[int]int{0: 18, 1: 5}}, "req-1")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, match.SubscriptionIDs)
	assert.Equal(t, 3, match.Matched)
	assert.False(t, match.Cached)

	match, err = s.Match(ctx, ingestion.EventMessage{Values: map[int]int{0: 25}}, "")
	require.NoError(t, err)
	assert.Equal(t, []int{3}, match.SubscriptionIDs)

	events := tracker.all()
	require.Len(t, events, 3)
	assert.Equal(t, analytics.EventSubscribe, events[0].(analytics.SubscribeEvent).Type)
	me := events[1].(analytics.MatchEvent)
	assert.Equal(t, analytics.EventMatch, me.Type)
	assert.Equal(t, "req-1", me.RequestID)
	assert.Equal(t, "gem", me.Algorithm)
}

func TestServiceSubscribeValidatesBeforeInserting(t *testing.T) {
	s := newService(t, nil, nil)
	_, err := s.Subscribe(context.Background(), []ingestion.SubscriptionMessage{
		sub(1),
		sub(2, matching.Predicate{Attribute: 9, Low: 0, High: 1}),
	})
	var ve *validator.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	assert.Zero(t, s.Engine().Len())
}

func TestServiceSubscribeReportsPartialInsert(t *testing.T) {
	s := newService(t, nil, nil)
	resp, err := s.Subscribe(context.Background(), []ingestion.SubscriptionMessage{sub(1), sub(2), sub(1)})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	require.NotNil(t, resp)
	assert.Equal(t, 2, resp.Inserted)
}

func TestServiceMatchUsesCache(t *testing.T) {
	tracker := &recordingTracker{}
	s := newService(t, NewMatchCache(newMemStore(), time.Minute, nil), tracker)
	ctx := context.Background()
	_, err := s.Subscribe(ctx, []ingestion.SubscriptionMessage{sub(4, matching.Predicate{Attribute: 2, Low: 0, High: 50})})
	require.NoError(t, err)

	ev := ingestion.EventMessage{Values: map[int]int{2: 7}}
	first, err := s.Match(ctx, ev, "")
	require.NoError(t, err)
	second, err := s.Match(ctx, ev, "")
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, first.SubscriptionIDs, second.SubscriptionIDs)

	_, err = s.Subscribe(ctx, []ingestion.SubscriptionMessage{sub(5)})
	require.NoError(t, err)
	third, err := s.Match(ctx, ev, "")
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, []int{4, 5}, third.SubscriptionIDs)

	events := tracker.all()
	assert.Equal(t, analytics.EventCacheMiss, events[1].(analytics.MatchEvent).Type)
	assert.Equal(t, analytics.EventCacheHit, events[2].(analytics.MatchEvent).Type)
}

func TestServiceMatchRejectsInvalidEvent(t *testing.T) {
	s := newService(t, nil, nil)
	_, err := s.Match(context.Background(), ingestion.EventMessage{Values: map[int]int{0: 100}}, "")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestServiceNoMatchEvent(t *testing.T) {
	tracker := &recordingTracker{}
	s := newService(t, nil, tracker)
	resp, err := s.Match(context.Background(), ingestion.EventMessage{Values: map[int]int{0: 1}}, "")
	require.NoError(t, err)
	assert.NotNil(t, resp.SubscriptionIDs)
	assert.Empty(t, resp.SubscriptionIDs)
	require.Len(t, tracker.all(), 1)
	assert.Equal(t, analytics.EventNoMatch, tracker.all()[0].(analytics.MatchEvent).Type)
}

func TestServiceTracedMatch(t *testing.T) {
	s := newService(t, nil, nil).WithTracing(1)
	_, err := s.Subscribe(context.Background(), []ingestion.SubscriptionMessage{
		sub(4, matching.Predicate{Attribute: 2, Low: 10, High: 20}),
	})
	require.NoError(t, err)
	resp, err := s.Match(context.Background(), ingestion.EventMessage{EventID: "ev-1", Values: map[int]int{2: 15}}, "req-1")
	require.NoError(t, err)
	assert.Equal(t, []int{4}, resp.SubscriptionIDs)
}
