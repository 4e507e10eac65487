package workload

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/errors"
)

func TestSubscriptionsShape(t *testing.T) {
	subs, err := New(7).Subscriptions(200, 10, 4, 1000, 0.3)
	require.NoError(t, err)
	require.Len(t, subs, 200)

	for i, s := range subs {
		assert.Equal(t, i, s.ID)
		require.Len(t, s.Predicates, 4)
		for attr, p := range s.Predicates {
			assert.Equal(t, attr, p.Attribute)
			assert.GreaterOrEqual(t, attr, 0)
			assert.Less(t, attr, 10)
			assert.GreaterOrEqual(t, p.Low, 0)
			assert.LessOrEqual(t, p.Low, p.High)
			assert.Less(t, p.High, 1000)
			assert.Equal(t, 300, p.High-p.Low)
		}
	}
}

func TestEventsShape(t *testing.T) {
	events, err := New(7).Events(100, 8, 8, 50)
	require.NoError(t, err)
	require.Len(t, events, 100)
	for _, ev := range events {
		require.Len(t, ev.Values, 8)
		for _, v := range ev.Values {
			assert.GreaterOrEqual(t, v, 0)
			assert.Less(t, v, 50)
		}
	}
}

func TestSameSeedSameWorkload(t *testing.T) {
	a, err := New(42).Events(20, 10, 3, 100)
	require.NoError(t, err)
	b, err := New(42).Events(20, 10, 3, 100)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	sa, err := New(42).Subscriptions(20, 10, 3, 100, 0.2)
	require.NoError(t, err)
	sb, err := New(42).Subscriptions(20, 10, 3, 100, 0.2)
	require.NoError(t, err)
	assert.Equal(t, sa, sb)
}

func TestHighBoundStaysInDomain(t *testing.T) {
	subs, err := New(1).Subscriptions(500, 2, 1, 10, 0.95)
	require.NoError(t, err)
	for _, s := range subs {
		for _, p := range s.Predicates {
			assert.Less(t, p.High, 10)
		}
	}
}

func TestRejectsBadShape(t *testing.T) {
	g := New(1)
	_, err := g.Subscriptions(1, 3, 4, 10, 0.1)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidConfig), "too many predicates")

	_, err = g.Subscriptions(1, 3, 2, 10, 1)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidConfig), "width one")

	_, err = g.Events(1, 3, 2, 0)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidConfig), "zero domain")

	_, err = g.Events(1, 3, 4, 10)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidConfig), "too many event attributes")
}
