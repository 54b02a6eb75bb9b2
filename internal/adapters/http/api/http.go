// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/reefconnect/scubadex-engine/internal/adapters/leaderboard"
	"github.com/reefconnect/scubadex-engine/internal/domain/event"
	"github.com/reefconnect/scubadex-engine/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Ingest accepts an inbound event envelope for async processing.
	Ingest(ctx context.Context, env event.Envelope) error

	// Read operations expose the materialized views.
	ScubaDex(ctx context.Context, userID string) ([]*model.ScubaDexEntry, int, error)
	Stats(ctx context.Context, userID string) (model.UserStats, error)
	Badges(ctx context.Context, userID string) ([]model.BadgeAward, error)
	Leaderboard(ctx context.Context, metric model.Metric, limit int, friends []string) ([]leaderboard.Entry, error)
	MaxLeaderboardLimit() int

	// Operator reconciliation triggers.
	Reconcile(ctx context.Context, userID string) error
	ReconcileAll(ctx context.Context) (int, error)
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = leaderboard.Entry

// Server wires HTTP routes for the engine API.
type Server struct {
	healthHandler      *HealthHandler
	engineStatsHandler *EngineStatsHandler
	eventsHandler      *EventsHandler
	scubadexHandler    *ScubaDexHandler
	statsHandler       *StatsHandler
	badgesHandler      *BadgesHandler
	leaderboardHandler *LeaderboardHandler
	reconcileHandler   *ReconcileHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		engineStatsHandler: NewEngineStatsHandler(statsProvider),
		eventsHandler:      NewEventsHandler(deps),
		scubadexHandler:    NewScubaDexHandler(deps),
		statsHandler:       NewStatsHandler(deps),
		badgesHandler:      NewBadgesHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, deps.MaxLeaderboardLimit()),
		reconcileHandler:   NewReconcileHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/enginestats", MetricsMiddleware(s.engineStatsHandler.HandleEngineStats, "enginestats"))
	mux.HandleFunc("/events", MetricsMiddleware(s.eventsHandler.HandlePostEvent, "events"))
	mux.HandleFunc("/scubadex/", MetricsMiddleware(s.scubadexHandler.HandleGetScubaDex, "scubadex"))
	mux.HandleFunc("/stats/", MetricsMiddleware(s.statsHandler.HandleGetStats, "stats"))
	mux.HandleFunc("/badges/", MetricsMiddleware(s.badgesHandler.HandleGetBadges, "badges"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/reconcile", MetricsMiddleware(s.reconcileHandler.HandleReconcile, "reconcile"))
	mux.HandleFunc("/reconcile/", MetricsMiddleware(s.reconcileHandler.HandleReconcile, "reconcile"))
}

type ackResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
