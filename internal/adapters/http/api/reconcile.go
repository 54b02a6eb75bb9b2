package api

import (
	"context"
	"net/http"
	"strings"
)

// ReconcileDependencies defines the interface for operator-triggered
// reconciliation.
type ReconcileDependencies interface {
	Reconcile(ctx context.Context, userID string) error
	ReconcileAll(ctx context.Context) (int, error)
}

// ReconcileHandler handles reconciliation requests.
type ReconcileHandler struct {
	deps ReconcileDependencies
}

// NewReconcileHandler creates a new reconcile handler.
func NewReconcileHandler(deps ReconcileDependencies) *ReconcileHandler {
	return &ReconcileHandler{deps: deps}
}

type reconcileResponse struct {
	Status string `json:"status"`
	Users  int    `json:"users"`
}

// HandleReconcile handles POST /reconcile and POST /reconcile/{user_id}
// requests. The bare form rebuilds every known user.
func (h *ReconcileHandler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	const op = "api.reconcile"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	userID := strings.TrimPrefix(r.URL.Path, "/reconcile")
	userID = strings.TrimPrefix(userID, "/")
	if strings.Contains(userID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	if userID == "" {
		users, err := h.deps.ReconcileAll(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
			return
		}
		writeJSON(w, http.StatusOK, reconcileResponse{Status: "reconciled", Users: users})
		return
	}

	if err := h.deps.Reconcile(r.Context(), userID); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, reconcileResponse{Status: "reconciled", Users: 1})
}
