package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/matching"
	apperrors "github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/errors"
)

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestHandleSubscription(t *testing.T) {
	s := newService(t, nil, nil)
	handle := HandleSubscription(s)
	ctx := context.Background()

	msg := sub(7, matching.Predicate{Attribute: 1, Low: 2, High: 3})
	require.NoError(t, handle(ctx, []byte("7"), mustJSON(t, msg)))
	assert.Equal(t, 1, s.Engine().Len())

	err := handle(ctx, []byte("7"), mustJSON(t, msg))
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput), "duplicate should be dropped: %v", err)

	err = handle(ctx, nil, []byte(`{"id":`))
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestHandleEventNotifiesOnMatch(t *testing.T) {
	s := newService(t, nil, nil)
	_, err := s.Subscribe(context.Background(), []ingestion.SubscriptionMessage{
		sub(1, matching.Predicate{Attribute: 0, Low: 0, High: 10}),
	})
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	handle := HandleEvent(s, notifier)
	ctx := context.Background()

	require.NoError(t, handle(ctx, nil, mustJSON(t, ingestion.EventMessage{EventID: "hit", Values: map[int]int{0: 5}})))
	require.NoError(t, handle(ctx, nil, mustJSON(t, ingestion.EventMessage{EventID: "miss", Values: map[int]int{0: 50}})))

	require.Len(t, notifier.msgs, 1)
	assert.Equal(t, "hit", notifier.keys[0])
	n := notifier.msgs[0].(ingestion.MatchNotification)
	assert.Equal(t, []int{1}, n.SubscriptionIDs)
	assert.Equal(t, "gem", n.Algorithm)

	err = handle(ctx, nil, mustJSON(t, ingestion.EventMessage{Values: map[int]int{0: 500}}))
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestHandleEventWithoutNotifier(t *testing.T) {
	s := newService(t, nil, nil)
	handle := HandleEvent(s, nil)
	assert.NoError(t, handle(context.Background(), nil, mustJSON(t, ingestion.EventMessage{Values: map[int]int{0: 5}})))
}
