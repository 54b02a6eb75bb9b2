package worker

import (
	"time"

	"github.com/reefconnect/scubadex-engine/pkg/logger"
)

// Option applies a configuration option to an Updater.
type Option func(*Updater)

// WithRetryBudget sets how many times a failed fold is retried before the
// event is dead-lettered. Negative values are ignored.
func WithRetryBudget(n int) Option {
	return func(w *Updater) {
		if n >= 0 {
			w.retryBudget = n
		}
	}
}

// WithRetryBackoff sets the base delay between retries; attempt N waits
// N times this value. Non-positive values are ignored.
func WithRetryBackoff(d time.Duration) Option {
	return func(w *Updater) {
		if d > 0 {
			w.retryBackoff = d
		}
	}
}

// WithDeadLetterSink sets the sink receiving events that exhausted their
// retry budget.
func WithDeadLetterSink(sink DeadLetterSink) Option {
	return func(w *Updater) {
		if sink != nil {
			w.deadLetters = sink
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *Updater) {
		if logger != nil {
			w.logger = logger
		}
	}
}
