package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	apperrors "github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/errors"
)

// SnapshotSource loads the most recently persisted stats. A nil snapshot
// with a nil error means nothing has been saved yet.
type SnapshotSource interface {
	LatestSnapshot(ctx context.Context) (*AggregatedStats, error)
}

// Handler serves live and persisted match analytics.
type Handler struct {
	aggregator *Aggregator
	snapshots  SnapshotSource
	logger     *slog.Logger
}

// NewHandler creates a Handler. snapshots may be nil when persistence is
// disabled; the snapshot route then answers 503.
func NewHandler(aggregator *Aggregator, snapshots SnapshotSource) *Handler {
	return &Handler{
		aggregator: aggregator,
		snapshots:  snapshots,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/analytics", h.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshot", h.Snapshot)
}

// Stats returns the live aggregate. ?algorithm=<name> narrows the
// per-algorithm breakdown to one matcher.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.aggregator.Stats()
	if algo := r.URL.Query().Get("algorithm"); algo != "" {
		var only []AlgorithmCount
		for _, c := range stats.ByAlgorithm {
			if c.Algorithm == algo {
				only = append(only, c)
			}
		}
		if only == nil {
			h.writeError(w, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusNotFound,
				"no matches recorded for algorithm %q", algo))
			return
		}
		stats.ByAlgorithm = only
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		h.writeError(w, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "snapshots disabled"))
		return
	}
	snap, err := h.snapshots.LatestSnapshot(r.Context())
	if err != nil {
		h.logger.Error("loading snapshot failed", "error", err)
		h.writeError(w, err)
		return
	}
	if snap == nil {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusNotFound, "no snapshot yet"))
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
