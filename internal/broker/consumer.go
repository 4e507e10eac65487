package broker

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/kafka"
)

// Notifier buffers outgoing match notifications.
// *collector.BatchCollector implements it.
type Notifier interface {
	Track(key string, value any)
}

// HandleSubscription returns a Kafka handler that inserts each
// subscription message. Invalid and duplicate subscriptions surface as
// invalid input, which the consumer commits and drops.
func HandleSubscription(service *Service) kafka.MessageHandler {
	logger := slog.Default().With("component", "subscription-consumer")
	return kafka.JSONHandler(func(ctx context.Context, msg ingestion.SubscriptionMessage) error {
		resp, err := service.Subscribe(ctx, []ingestion.SubscriptionMessage{msg})
		if err != nil {
			return err
		}
		logger.Debug("subscription inserted",
			"subscription_id", msg.ID,
			"generation", resp.Generation,
		)
		return nil
	})
}

// HandleEvent returns a Kafka handler that matches each event and hands a
// MatchNotification to notifier when at least one subscription matched.
// notifier may be nil.
func HandleEvent(service *Service, notifier Notifier) kafka.MessageHandler {
	logger := slog.Default().With("component", "event-consumer")
	algo := string(service.Engine().Algorithm())
	return kafka.JSONHandler(func(ctx context.Context, msg ingestion.EventMessage) error {
		resp, err := service.Match(ctx, msg, "")
		if err != nil {
			return err
		}
		logger.Debug("event matched",
			"event_id", msg.EventID,
			"matched", resp.Matched,
			"cache_hit", resp.Cached,
		)
		if notifier == nil || resp.Matched == 0 {
			return nil
		}
		key := msg.EventID
		if key == "" {
			key = strconv.FormatInt(time.Now().UnixNano(), 10)
		}
		notifier.Track(key, ingestion.MatchNotification{
			EventID:         msg.EventID,
			Algorithm:       algo,
			SubscriptionIDs: resp.SubscriptionIDs,
			MatchedAt:       time.Now().UTC(),
		})
		return nil
	})
}
