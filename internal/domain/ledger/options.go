// Package ledger implements the idempotency ledger.
package ledger

// Option applies a configuration option to the memory ledger.
type Option func(*memoryLedger)

// WithMaxSize sets the maximum number of claims to retain.
// If maxSize > 0: bounded mode, oldest claims evicted first.
// If maxSize <= 0: unbounded mode (no eviction, no size limit).
func WithMaxSize(maxSize int) Option {
	return func(l *memoryLedger) {
		l.maxSize = maxSize
	}
}
