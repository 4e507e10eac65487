package publisher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/matching"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/kafka"
)

type fakeProducer struct {
	failures int
	calls    int
	sent     []kafka.Message
}

func (f *fakeProducer) PublishBatch(_ context.Context, msgs []kafka.Message) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("leader not available")
	}
	f.sent = append(f.sent, msgs...)
	return nil
}

func TestPublishSubscriptionsKeysByID(t *testing.T) {
	subs, events := &fakeProducer{}, &fakeProducer{}
	p := New(subs, "subscriptions", events, "events")

	resp, err := p.PublishSubscriptions(context.Background(), []ingestion.SubscriptionMessage{
		{ID: 7, Predicates: []matching.Predicate{{Attribute: 1, Low: 0, High: 4}}},
		{ID: 8},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Accepted)
	assert.Equal(t, "subscriptions", resp.Topic)
	require.Len(t, subs.sent, 2)
	assert.Equal(t, "7", subs.sent[0].Key)
	assert.Empty(t, events.sent)
}

func TestPublishEventsAssignsIDs(t *testing.T) {
	subs, events := &fakeProducer{}, &fakeProducer{}
	p := New(subs, "subscriptions", events, "events")

	resp, err := p.PublishEvents(context.Background(), []ingestion.EventMessage{
		{EventID: "given", Values: map[int]int{0: 1}},
		{Values: map[int]int{1: 2}},
	})
	require.NoError(t, err)
	require.Len(t, resp.EventIDs, 2)
	assert.Equal(t, "given", resp.EventIDs[0])
	assert.Len(t, resp.EventIDs[1], 24)

	require.Len(t, events.sent, 2)
	assert.Equal(t, resp.EventIDs[1], events.sent[1].Key)
	ev := events.sent[1].Value.(ingestion.EventMessage)
	assert.False(t, ev.PublishedAt.IsZero())
}

func TestPublishRetriesTransientFailures(t *testing.T) {
	subs := &fakeProducer{failures: 2}
	p := New(subs, "subscriptions", &fakeProducer{}, "events")

	_, err := p.PublishSubscriptions(context.Background(), []ingestion.SubscriptionMessage{{ID: 1}})
	require.NoError(t, err)
	assert.Equal(t, 3, subs.calls)
}

func TestPublishGivesUp(t *testing.T) {
	subs := &fakeProducer{failures: 10}
	p := New(subs, "subscriptions", &fakeProducer{}, "events")

	_, err := p.PublishSubscriptions(context.Background(), []ingestion.SubscriptionMessage{{ID: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish-subscriptions")
	assert.Equal(t, 3, subs.calls)
}
