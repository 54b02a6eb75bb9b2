package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/reefconnect/scubadex-engine/internal/domain/model"
)

// LeaderboardDependencies defines the interface for leaderboard reads.
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context, metric model.Metric, limit int, friends []string) ([]Entry, error)
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps     LeaderboardDependencies
	maxLimit int
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies, maxLimit int) *LeaderboardHandler {
	return &LeaderboardHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

type leaderboardResponse struct {
	Metric  string  `json:"metric"`
	Scope   string  `json:"scope"`
	Entries []Entry `json:"entries"`
}

// HandleGetLeaderboard handles GET /leaderboard?metric=M&limit=N requests.
// An optional friends parameter (comma-separated user ids) scopes the board
// to those users.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	metric, ok := model.ParseMetric(r.URL.Query().Get("metric"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown_metric", NewKind(op, ErrBadRequest))
		return
	}

	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
		return
	}

	var friends []string
	scope := "global"
	if raw := r.URL.Query().Get("friends"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				friends = append(friends, id)
			}
		}
		scope = "friends"
	}

	entries, err := h.deps.Leaderboard(r.Context(), metric, n, friends)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}

	writeJSON(w, http.StatusOK, leaderboardResponse{
		Metric:  string(metric),
		Scope:   scope,
		Entries: entries,
	})
}
