package api

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/reefconnect/scubadex-engine/internal/domain/model"
)

// ScubaDexDependencies defines the interface for ScubaDex reads.
type ScubaDexDependencies interface {
	ScubaDex(ctx context.Context, userID string) ([]*model.ScubaDexEntry, int, error)
}

// ScubaDexHandler handles ScubaDex requests.
type ScubaDexHandler struct {
	deps ScubaDexDependencies
}

// NewScubaDexHandler creates a new ScubaDex handler.
func NewScubaDexHandler(deps ScubaDexDependencies) *ScubaDexHandler {
	return &ScubaDexHandler{deps: deps}
}

// dexEntryResponse is the wire shape of one ScubaDex entry.
type dexEntryResponse struct {
	SpeciesID        string    `json:"species_id"`
	FirstSeenAt      time.Time `json:"first_seen_at"`
	EncounterCount   int       `json:"encounter_count"`
	EvidenceMediaIDs []string  `json:"evidence_media_ids"`
}

type dexResponse struct {
	UserID         string             `json:"user_id"`
	TotalSpecies   int                `json:"total_species"`
	SpeciesCatalog int                `json:"species_catalog"`
	Entries        []dexEntryResponse `json:"entries"`
}

// HandleGetScubaDex handles GET /scubadex/{user_id} requests.
func (h *ScubaDexHandler) HandleGetScubaDex(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_scubadex"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	userID := strings.TrimPrefix(r.URL.Path, "/scubadex/")
	if userID == "" || strings.Contains(userID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	entries, catalog, err := h.deps.ScubaDex(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}

	resp := dexResponse{
		UserID:         userID,
		TotalSpecies:   len(entries),
		SpeciesCatalog: catalog,
		Entries:        make([]dexEntryResponse, 0, len(entries)),
	}
	for _, e := range entries {
		evidence := make([]string, 0, len(e.EvidenceMediaIDs))
		for mediaID := range e.EvidenceMediaIDs {
			evidence = append(evidence, mediaID)
		}
		sort.Strings(evidence)
		resp.Entries = append(resp.Entries, dexEntryResponse{
			SpeciesID:        e.SpeciesID,
			FirstSeenAt:      e.FirstSeenAt,
			EncounterCount:   e.EncounterCount(),
			EvidenceMediaIDs: evidence,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
