package leaderboard

import "time"

// Option configures an Index.
type Option func(*Index)

// WithDebounce sets the rebuild coalescing window. Non-positive values are
// ignored.
func WithDebounce(d time.Duration) Option {
	return func(idx *Index) {
		if d > 0 {
			idx.debounce = d
		}
	}
}
