// Package badge implements the data-driven badge rule engine.
package badge

import "time"

// Option applies a configuration option to the Evaluator.
type Option func(*Evaluator)

// WithClock sets the time source used for EarnedAt stamps. Tests use this
// for deterministic award times.
func WithClock(clock func() time.Time) Option {
	return func(e *Evaluator) {
		if clock != nil {
			e.clock = clock
		}
	}
}
