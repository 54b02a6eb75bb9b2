package reconcile

import (
	"time"

	"github.com/reefconnect/scubadex-engine/pkg/logger"
)

// Option applies a configuration option to the Reconciler.
type Option func(*Reconciler)

// WithSweepInterval sets how often the safety-net sweep rebuilds all users.
// Non-positive values are ignored.
func WithSweepInterval(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.sweepInterval = d
		}
	}
}

// WithLogger sets a custom logger for the reconciler.
func WithLogger(logger logger.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}
