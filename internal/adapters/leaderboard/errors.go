package leaderboard

import "errors"

var (
	// ErrUnknownMetric is returned for a metric the index does not track.
	ErrUnknownMetric = errors.New("unknown leaderboard metric")

	// ErrInvalidLimit is returned when the requested page size is below one.
	ErrInvalidLimit = errors.New("leaderboard limit must be at least 1")

	// ErrNotFound is returned when a user has no row for the metric.
	ErrNotFound = errors.New("user not on leaderboard")
)
