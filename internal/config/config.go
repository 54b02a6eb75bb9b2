// Package config defines engine configuration structures and loading hooks.
//
// Conventions:
// - Keep fields unexported where possible and use functional options.
// - Provide New(...Option) initializer to build a Config with defaults.
// - All future functions must accept context.Context as the first parameter.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"context"
	"runtime"
)

// BadgeDefinition is one row of the data-driven badge table. Adding a badge
// is a config change, not a code change.
type BadgeDefinition struct {
	ID          string  `koanf:"id"`
	Name        string  `koanf:"name"`
	Category    string  `koanf:"category"` // dives, depth, species, media
	Requirement float64 `koanf:"requirement"`
}

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// PartitionCount sets the number of event partitions; one worker owns each
	// partition, which is the engine's only per-user serialization mechanism.
	PartitionCount int `koanf:"partition_count"`

	// QueueSize bounds each partition's in-memory event buffer.
	QueueSize int `koanf:"queue_size"`

	// LedgerSize bounds the idempotency ledger. Must cover at least the
	// transport's maximum redelivery window.
	LedgerSize int `koanf:"ledger_size"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// LeaderboardDebounceMS is the delay between a stats change and the
	// corresponding leaderboard snapshot rebuild (the staleness bound).
	LeaderboardDebounceMS int `koanf:"leaderboard_debounce_ms"`

	// RetryBudget is the number of store write retries after a released
	// idempotency claim before an event is dead-lettered.
	RetryBudget int `koanf:"retry_budget"`

	// RetryBackoffMS is the base backoff between retries; attempt N waits N
	// times this value.
	RetryBackoffMS int `koanf:"retry_backoff_ms"`

	// SweepIntervalSec schedules the periodic reconciliation safety-net sweep.
	// Zero disables the sweep.
	SweepIntervalSec int `koanf:"sweep_interval_sec"`

	// DatabaseDSN points the reconciler at the primary Postgres store.
	// Empty selects the in-memory source (tests, simulation).
	DatabaseDSN string `koanf:"database_dsn"`

	// SpeciesCatalogSize is the fallback catalog size reported by ScubaDex
	// reads when the primary store is unavailable.
	SpeciesCatalogSize int `koanf:"species_catalog_size"`

	// Badges is the badge definition table.
	Badges []BadgeDefinition `koanf:"badges"`
}

// New creates a Config using provided options. Context is accepted first to
// satisfy the project-wide convention; it is reserved for future use and is
// currently unused.
func New(_ context.Context) *Config {
	c := &Config{
		LogLevel:              "info",
		Addr:                  ":9080",
		PartitionCount:        runtime.NumCPU() * 2,
		QueueSize:             10_000,
		LedgerSize:            500_000,
		MaxLeaderboardLimit:   100,
		LeaderboardDebounceMS: 500,
		RetryBudget:           5,
		RetryBackoffMS:        50,
		SweepIntervalSec:      3600,
		SpeciesCatalogSize:    1500,
		Badges:                DefaultBadges(),
	}
	return c
}

// DefaultBadges returns the built-in badge table, mirroring the product's
// achievement tiers across the four stat categories.
func DefaultBadges() []BadgeDefinition {
	return []BadgeDefinition{
		{ID: "first-dive", Name: "First Splash", Category: "dives", Requirement: 1},
		{ID: "ten-dives", Name: "Regular", Category: "dives", Requirement: 10},
		{ID: "fifty-dives", Name: "Dive Master", Category: "dives", Requirement: 50},
		{ID: "hundred-dives", Name: "Centurion", Category: "dives", Requirement: 100},
		{ID: "deep-18", Name: "Open Water Depth", Category: "depth", Requirement: 18},
		{ID: "deep-30", Name: "Deep Diver", Category: "depth", Requirement: 30},
		{ID: "deep-40", Name: "Tech Limit", Category: "depth", Requirement: 40},
		{ID: "species-1", Name: "First Encounter", Category: "species", Requirement: 1},
		{ID: "species-25", Name: "Spotter", Category: "species", Requirement: 25},
		{ID: "species-100", Name: "Naturalist", Category: "species", Requirement: 100},
		{ID: "media-10", Name: "Shutterbug", Category: "media", Requirement: 10},
		{ID: "media-100", Name: "Archivist", Category: "media", Requirement: 100},
	}
}
