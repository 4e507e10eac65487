// Command broker starts the matching service.
//
// It keeps subscriptions in a sharded in-memory matching engine, matches
// events over HTTP (POST /api/v1/events/match), JSON RPC and the Kafka events
// topic, and publishes a match notification for every matched event. Match
// results are cached in Redis when it is reachable.
//
// Usage:
//
//	go run ./cmd/broker [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/broker"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/redis"
)

const (
	notificationBatchSize = 100
	notificationFlush     = time.Second
	analyticsBuffer       = 10000
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting broker",
		"port", cfg.Server.Port,
		"algorithm", cfg.Matcher.Algorithm,
		"num_shards", cfg.Matcher.Shards,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()
	}

	engine, err := broker.NewEngine(cfg.Matcher, m)
	if err != nil {
		slog.Error("failed to create match engine", "error", err)
		os.Exit(1)
	}

	var (
		matchCache  *broker.MatchCache
		redisClient *pkgredis.Client
	)
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, match caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			matchCache = broker.NewMatchCache(redisClient, cfg.Redis.CacheTTL, m)
			slog.Info("match cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	defer analyticsProducer.Close()
	tracker := analytics.NewCollector(analyticsProducer, analyticsBuffer)
	tracker.Start(ctx)
	defer tracker.Close()
	slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

	notificationProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.Notifications)
	defer notificationProducer.Close()
	notifier := collector.NewBatchCollector(notificationProducer, notificationBatchSize, notificationFlush)
	notifier.Start(ctx)
	defer notifier.Close()

	limits := validator.Limits{
		TotalAttributes: cfg.Matcher.TotalAttributes,
		ValueDomain:     cfg.Matcher.ValueDomain,
	}
	service := broker.NewService(engine, matchCache, tracker, limits, cfg.Matcher.MatchTimeout)
	if cfg.Tracing.Enabled {
		service.WithTracing(cfg.Tracing.SampleRate)
	}

	subConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.Subscriptions, broker.HandleSubscription(service))
	eventConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.Events, broker.HandleEvent(service, notifier))
	for _, c := range []*kafka.Consumer{subConsumer, eventConsumer} {
		go func() {
			if err := c.Start(ctx); err != nil {
				slog.Error("consumer error", "error", err)
			}
		}()
	}

	if cfg.RPC.Enabled {
		rpcServer := grpc.NewServer(cfg.RPC.Timeout)
		broker.RegisterRPC(rpcServer, service)
		go func() {
			if err := rpcServer.Serve(cfg.RPC.Addr); err != nil {
				slog.Error("rpc server error", "error", err)
			}
		}()
		defer rpcServer.Stop()
	}

	checker := health.NewChecker()
	checker.Register("match_engine", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d shards, %d subscriptions", engine.NumShards(), engine.Len()),
		}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		return health.PingCheck(redisClient.Ping, true)(ctx)
	})

	mux := http.NewServeMux()
	broker.NewHandler(service).Routes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: middleware.Chain(mux,
			middleware.RequestID,
			middleware.Metrics(m),
			middleware.Timeout(cfg.Server.RequestTimeout),
		),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("broker listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("broker stopped")
}
