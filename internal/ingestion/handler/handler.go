package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/logger"
)

const maxBatch = 10000

// Publisher is implemented by publisher.Publisher.
type Publisher interface {
	PublishSubscriptions(ctx context.Context, subs []ingestion.SubscriptionMessage) (*ingestion.IngestResponse, error)
	PublishEvents(ctx context.Context, events []ingestion.EventMessage) (*ingestion.IngestResponse, error)
}

type Handler struct {
	publisher Publisher
	limits    validator.Limits
	logger    *slog.Logger
}

func New(pub Publisher, limits validator.Limits) *Handler {
	return &Handler{
		publisher: pub,
		limits:    limits,
		logger:    slog.Default().With("component", "ingestion-handler"),
	}
}

// Routes registers the ingestion endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/ingest/subscriptions", h.Subscriptions)
	mux.HandleFunc("POST /api/v1/ingest/events", h.Events)
	mux.HandleFunc("GET /health", h.Health)
}

func (h *Handler) Subscriptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	var req ingestion.SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !h.checkBatch(w, len(req.Subscriptions)) {
		return
	}
	for i := range req.Subscriptions {
		if err := validator.ValidateSubscription(&req.Subscriptions[i], h.limits); err != nil {
			h.writeValidation(w, i, err)
			return
		}
	}
	resp, err := h.publisher.PublishSubscriptions(ctx, req.Subscriptions)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("subscription ingestion failed", "error", err, "status_code", statusCode)
		h.writeError(w, statusCode, "ingestion failed")
		return
	}
	log.Info("subscriptions accepted", "count", resp.Accepted)
	h.writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	var req ingestion.PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !h.checkBatch(w, len(req.Events)) {
		return
	}
	for i := range req.Events {
		if err := validator.ValidateEvent(&req.Events[i], h.limits); err != nil {
			h.writeValidation(w, i, err)
			return
		}
	}
	resp, err := h.publisher.PublishEvents(ctx, req.Events)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("event ingestion failed", "error", err, "status_code", statusCode)
		h.writeError(w, statusCode, "ingestion failed")
		return
	}
	log.Info("events accepted", "count", resp.Accepted)
	h.writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) checkBatch(w http.ResponseWriter, n int) bool {
	switch {
	case n == 0:
		h.writeError(w, http.StatusBadRequest, "batch is empty")
		return false
	case n > maxBatch:
		h.writeError(w, http.StatusRequestEntityTooLarge, "batch too large")
		return false
	}
	return true
}

func (h *Handler) writeValidation(w http.ResponseWriter, index int, err error) {
	var validationErr *validator.ValidationError
	if errors.As(err, &validationErr) {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"index":  index,
			"fields": validationErr.Fields,
		})
		return
	}
	h.writeError(w, http.StatusBadRequest, err.Error())
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
