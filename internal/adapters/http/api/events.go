package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/reefconnect/scubadex-engine/internal/domain/event"
)

// EventDependencies defines the interface for event ingestion.
type EventDependencies interface {
	Ingest(ctx context.Context, env event.Envelope) error
}

// EventsHandler handles event requests.
type EventsHandler struct {
	deps EventDependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// HandlePostEvent handles POST /events requests. Validation and duplicate
// suppression are the engine's concern; the handler only maps outcomes to
// status codes. Duplicates are accepted: at-least-once delivery makes
// redelivery normal, not an error.
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var env event.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	if err := h.deps.Ingest(r.Context(), env); err != nil {
		switch {
		case errors.Is(err, event.ErrMalformed), errors.Is(err, event.ErrUnknownType):
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		default:
			writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		}
		return
	}

	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}
