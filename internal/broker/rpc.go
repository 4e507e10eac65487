package broker

import (
	"context"
	"encoding/json"

	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/proto"
)

// RegisterRPC exposes the service's subscribe, match and stats operations
// on server.
func RegisterRPC(server *grpc.Server, service *Service) {
	server.Register(proto.MethodSubscribe, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req proto.SubscribeRequest
		if err := decode(raw, &req); err != nil {
			return nil, err
		}
		return service.Subscribe(ctx, req.Subscriptions)
	})
	server.Register(proto.MethodMatch, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req proto.MatchRequest
		if err := decode(raw, &req); err != nil {
			return nil, err
		}
		return service.Match(ctx, ingestion.EventMessage{EventID: req.EventID, Values: req.Values}, "")
	})
	server.Register(proto.MethodStats, func(ctx context.Context, raw json.RawMessage) (any, error) {
		req := proto.StatsRequest{ShardID: -1}
		if len(raw) > 0 {
			if err := decode(raw, &req); err != nil {
				return nil, err
			}
		}
		return service.Stats(req.ShardID)
	})
}

func decode(raw json.RawMessage, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperrors.Invalidf("decoding params: %v", err)
	}
	return nil
}
