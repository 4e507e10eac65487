package broker

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/middleware"
)

const maxSubscriptionsPerRequest = 10000

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
		logger:  slog.Default().With("component", "broker-handler"),
	}
}

// Routes registers the broker endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/subscriptions", h.Subscribe)
	mux.HandleFunc("POST /api/v1/events/match", h.Match)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /health", h.Health)
}

func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req ingestion.SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Subscriptions) == 0 {
		h.writeError(w, http.StatusBadRequest, "subscriptions must not be empty")
		return
	}
	if len(req.Subscriptions) > maxSubscriptionsPerRequest {
		h.writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("at most %d subscriptions per request", maxSubscriptionsPerRequest))
		return
	}

	resp, err := h.service.Subscribe(ctx, req.Subscriptions)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		log.Warn("subscribe failed", "error", err, "status_code", status)
		body := map[string]any{"error": err.Error()}
		if resp != nil {
			body["inserted"] = resp.Inserted
		}
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			body["fields"] = validationErr.Fields
		}
		h.writeJSON(w, status, body)
		return
	}
	log.Info("subscriptions inserted",
		"count", resp.Inserted,
		"generation", resp.Generation,
	)
	h.writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) Match(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var msg ingestion.EventMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	resp, err := h.service.Match(ctx, msg, middleware.GetRequestID(r))
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			log.Error("match failed", "event_id", msg.EventID, "error", err)
			h.writeError(w, status, "match failed")
			return
		}
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, status, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		h.writeError(w, status, err.Error())
		return
	}
	log.Info("event matched",
		"event_id", msg.EventID,
		"matched", resp.Matched,
		"cache_hit", resp.Cached,
		"latency_us", resp.LatencyMicros,
	)
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	shardID := -1
	if raw := r.URL.Query().Get("shard"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.writeError(w, http.StatusBadRequest, "shard must be a non-negative integer")
			return
		}
		shardID = parsed
	}
	stats, err := h.service.Stats(shardID)
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	cache := h.service.Cache()
	if cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
		"breaker":  cache.BreakerState().String(),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	cache := h.service.Cache()
	if cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
