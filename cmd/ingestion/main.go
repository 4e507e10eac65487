// Command ingestion starts the ingestion HTTP service.
//
// It accepts subscription batches at POST /api/v1/ingest/subscriptions and
// event batches at POST /api/v1/ingest/events, validates them against the
// configured attribute count and value domain, and publishes them to the
// Kafka topics the broker consumes. It provides a health endpoint at
// GET /health.
//
// Usage:
//
//	go run ./cmd/ingestion [-config configs/development.yaml]
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

	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/ratelimit"
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
	slog.Info("starting ingestion service", "port", cfg.Server.Port)

	subProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.Subscriptions)
	defer subProducer.Close()
	eventProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.Events)
	defer eventProducer.Close()
	slog.Info("kafka producers initialized",
		"subscriptions_topic", cfg.Kafka.Topics.Subscriptions,
		"events_topic", cfg.Kafka.Topics.Events,
	)

	pub := publisher.New(subProducer, cfg.Kafka.Topics.Subscriptions, eventProducer, cfg.Kafka.Topics.Events)
	h := handler.New(pub, validator.Limits{
		TotalAttributes: cfg.Matcher.TotalAttributes,
		ValueDomain:     cfg.Matcher.ValueDomain,
	})
	mux := http.NewServeMux()
	h.Routes(mux)

	m := metrics.New()
	mws := []func(http.Handler) http.Handler{middleware.RequestID, middleware.Metrics(m)}
	if cfg.Server.RateLimit > 0 {
		limiter := ratelimit.New(cfg.Server.RateLimit, cfg.Server.RateWindow)
		defer limiter.Close()
		mws = append(mws, middleware.RateLimit(limiter, int(cfg.Server.RateWindow.Seconds())))
		slog.Info("rate limiting enabled", "limit", cfg.Server.RateLimit, "window", cfg.Server.RateWindow)
	}
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, mws...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() { _ = shutdownMetrics(context.Background()) }()
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
	slog.Info("ingestion service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("ingestion service stopped")
}
