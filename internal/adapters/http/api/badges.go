package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/reefconnect/scubadex-engine/internal/domain/model"
)

// BadgeDependencies defines the interface for badge reads.
type BadgeDependencies interface {
	Badges(ctx context.Context, userID string) ([]model.BadgeAward, error)
}

// BadgesHandler handles badge requests.
type BadgesHandler struct {
	deps BadgeDependencies
}

// NewBadgesHandler creates a new badges handler.
func NewBadgesHandler(deps BadgeDependencies) *BadgesHandler {
	return &BadgesHandler{deps: deps}
}

type badgesResponse struct {
	UserID string             `json:"user_id"`
	Awards []model.BadgeAward `json:"awards"`
}

// HandleGetBadges handles GET /badges/{user_id} requests.
func (h *BadgesHandler) HandleGetBadges(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_badges"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	userID := strings.TrimPrefix(r.URL.Path, "/badges/")
	if userID == "" || strings.Contains(userID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	awards, err := h.deps.Badges(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	if awards == nil {
		awards = []model.BadgeAward{}
	}

	writeJSON(w, http.StatusOK, badgesResponse{UserID: userID, Awards: awards})
}
