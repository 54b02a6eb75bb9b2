// Package source reads the primary relational store. The engine never writes
// to it; reconciliation treats its current row state as the authority the
// materialized aggregates must converge to.
package source

import (
	"context"
	"time"
)

// DiveRow is one dive log row.
type DiveRow struct {
	ID              string     `gorm:"column:id;primaryKey"`
	UserID          string     `gorm:"column:user_id"`
	MaxDepthMeters  float64    `gorm:"column:max_depth_meters"`
	DurationMinutes int        `gorm:"column:duration_minutes"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	DeletedAt       *time.Time `gorm:"column:deleted_at"`
}

// TableName maps DiveRow to the primary store's dive_logs table.
func (DiveRow) TableName() string { return "dive_logs" }

// MediaRow is one media row.
type MediaRow struct {
	ID        string     `gorm:"column:id;primaryKey"`
	UserID    string     `gorm:"column:user_id"`
	Status    string     `gorm:"column:status"`
	CreatedAt time.Time  `gorm:"column:created_at"`
	DeletedAt *time.Time `gorm:"column:deleted_at"`
}

// TableName maps MediaRow to the primary store's media table.
func (MediaRow) TableName() string { return "media" }

// Media statuses that make a row a valid evidence carrier. Pending,
// uploading, processing, and failed media never count.
const (
	MediaStatusUploaded  = "uploaded"
	MediaStatusProcessed = "processed"
)

// SpeciesTagRow is one species-tag row, joined to its media item.
type SpeciesTagRow struct {
	MediaID   string     `gorm:"column:media_id"`
	SpeciesID string     `gorm:"column:species_id"`
	TaggedAt  time.Time  `gorm:"column:tagged_at"`
	DeletedAt *time.Time `gorm:"column:deleted_at"`
}

// TableName maps SpeciesTagRow to the primary store's media_species_tags table.
func (SpeciesTagRow) TableName() string { return "media_species_tags" }

// Surviving reports whether the row is live. Media additionally must have
// finished its upload pipeline to carry evidence.
func (r DiveRow) Surviving() bool { return r.DeletedAt == nil }
func (r MediaRow) Surviving() bool {
	return r.DeletedAt == nil && (r.Status == MediaStatusUploaded || r.Status == MediaStatusProcessed)
}
func (r SpeciesTagRow) Surviving() bool { return r.DeletedAt == nil }

// Snapshot is a point-in-time view of one user's primary rows. All three row
// sets come from the same consistent read.
type Snapshot struct {
	UserID string
	Dives  []DiveRow
	Media  []MediaRow
	Tags   []SpeciesTagRow
}

// Reader is the primary-store read surface used by reconciliation.
type Reader interface {
	// UserSnapshot returns a consistent snapshot of one user's rows.
	UserSnapshot(ctx context.Context, userID string) (Snapshot, error)

	// AllUserIDs lists every user with at least one dive, media item, or tag.
	// Used by the periodic sweep.
	AllUserIDs(ctx context.Context) ([]string, error)

	// SpeciesCatalogSize reports how many species exist in the catalog.
	SpeciesCatalogSize(ctx context.Context) (int, error)
}
