// Package model contains the materialized aggregate documents maintained by
// the engine and the shared identifiers used to address them.
package model

import "time"

// AggregateKind addresses one of the per-user materialized documents. The
// idempotency ledger keys claims by (event, kind, user) so that one event
// touching several aggregates is resumable per aggregate.
type AggregateKind string

// Aggregate kinds.
const (
	KindScubaDex AggregateKind = "scubadex"
	KindStats    AggregateKind = "stats"
)

// ScubaDexEntry records a user's evidence for one species. The entry exists
// if and only if at least one surviving species-tag backs it; encounter count
// is structurally the size of the evidence set.
type ScubaDexEntry struct {
	SpeciesID        string
	FirstSeenAt      time.Time
	EvidenceMediaIDs map[string]struct{}
}

// EncounterCount returns the number of surviving tags backing the entry.
func (e *ScubaDexEntry) EncounterCount() int {
	return len(e.EvidenceMediaIDs)
}

// Clone returns a deep copy, safe to hand to readers.
func (e *ScubaDexEntry) Clone() *ScubaDexEntry {
	evidence := make(map[string]struct{}, len(e.EvidenceMediaIDs))
	for id := range e.EvidenceMediaIDs {
		evidence[id] = struct{}{}
	}
	return &ScubaDexEntry{
		SpeciesID:        e.SpeciesID,
		FirstSeenAt:      e.FirstSeenAt,
		EvidenceMediaIDs: evidence,
	}
}

// UserStats is the per-user fold over primary data. Never edited directly by
// callers; only the incremental updater and the reconciler write it.
type UserStats struct {
	UserID            string  `json:"user_id"`
	TotalDives        int     `json:"total_dives"`
	TotalSpecies      int     `json:"total_species"`
	DeepestDiveMeters float64 `json:"deepest_dive_meters"`
	TotalDiveMinutes  int     `json:"total_dive_minutes"`
	TotalMediaCount   int     `json:"total_media_count"`
	TotalBadges       int     `json:"total_badges"`
}

// BadgeAward is immutable once created; at most one per (user, badge).
type BadgeAward struct {
	UserID   string    `json:"user_id"`
	BadgeID  string    `json:"badge_id"`
	EarnedAt time.Time `json:"earned_at"`
}

// Metric names a leaderboard dimension over UserStats.
type Metric string

// Supported leaderboard metrics.
const (
	MetricTotalDives        Metric = "total_dives"
	MetricTotalSpecies      Metric = "total_species"
	MetricDeepestDiveMeters Metric = "deepest_dive_meters"
	MetricTotalDiveMinutes  Metric = "total_dive_minutes"
)

// Metrics lists all supported leaderboard metrics.
func Metrics() []Metric {
	return []Metric{
		MetricTotalDives,
		MetricTotalSpecies,
		MetricDeepestDiveMeters,
		MetricTotalDiveMinutes,
	}
}

// ParseMetric validates a metric name from an external caller.
func ParseMetric(s string) (Metric, bool) {
	switch Metric(s) {
	case MetricTotalDives, MetricTotalSpecies, MetricDeepestDiveMeters, MetricTotalDiveMinutes:
		return Metric(s), true
	}
	return "", false
}

// Value extracts the metric's value from a stats document.
func (m Metric) Value(s UserStats) float64 {
	switch m {
	case MetricTotalDives:
		return float64(s.TotalDives)
	case MetricTotalSpecies:
		return float64(s.TotalSpecies)
	case MetricDeepestDiveMeters:
		return s.DeepestDiveMeters
	case MetricTotalDiveMinutes:
		return float64(s.TotalDiveMinutes)
	}
	return 0
}
