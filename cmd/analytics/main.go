// Command analytics starts the standalone match analytics service.
//
// It consumes the broker's analytics events from Kafka, aggregates them in
// memory (match totals, latency percentiles, cache hit ratio, per-algorithm
// counts) and serves the result at GET /api/v1/analytics. When PostgreSQL is
// reachable, snapshots are persisted every minute and the latest one is
// served at GET /api/v1/analytics/snapshot.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
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
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/postgres"
)

const snapshotInterval = time.Minute

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agg := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(agg))
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("analytics consumer error", "error", err)
		}
	}()
	slog.Info("analytics aggregator started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

	checker := health.NewChecker()
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: "consumer active"}
	})

	var snapshots analytics.SnapshotSource
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, analytics snapshots disabled", "error", err)
	} else {
		defer db.Close()
		store, err := aggregator.NewStore(ctx, db)
		if err != nil {
			slog.Error("failed to prepare snapshot store", "error", err)
			os.Exit(1)
		}
		store.StartPeriodicSave(ctx, agg, snapshotInterval)
		snapshots = store
		checker.Register("postgres", health.PingCheck(db.Ping, true))
	}

	mux := http.NewServeMux()
	analytics.NewHandler(agg, snapshots).Routes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.RequestID(mux),
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

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}
