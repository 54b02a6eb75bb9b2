package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/reefconnect/scubadex-engine/internal/domain/model"
)

// StatsDependencies defines the interface for user statistics reads.
type StatsDependencies interface {
	Stats(ctx context.Context, userID string) (model.UserStats, error)
}

// StatsHandler handles user statistics requests.
type StatsHandler struct {
	deps StatsDependencies
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(deps StatsDependencies) *StatsHandler {
	return &StatsHandler{deps: deps}
}

// HandleGetStats handles GET /stats/{user_id} requests.
func (h *StatsHandler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_stats"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	userID := strings.TrimPrefix(r.URL.Path, "/stats/")
	if userID == "" || strings.Contains(userID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	stats, err := h.deps.Stats(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	stats.UserID = userID

	writeJSON(w, http.StatusOK, stats)
}

// StatsProvider defines the interface for engine introspection.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// EngineStatsHandler handles engine introspection requests.
type EngineStatsHandler struct {
	statsProvider StatsProvider
}

// NewEngineStatsHandler creates a new engine stats handler.
func NewEngineStatsHandler(statsProvider StatsProvider) *EngineStatsHandler {
	return &EngineStatsHandler{statsProvider: statsProvider}
}

// HandleEngineStats handles GET /enginestats requests.
func (h *EngineStatsHandler) HandleEngineStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(h.statsProvider.GetStats())
}
