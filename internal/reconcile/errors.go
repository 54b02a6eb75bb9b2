package reconcile

import "errors"

var (
	// ErrSuperseded indicates a newer pass for the same user was requested
	// while this one ran; its result was discarded.
	ErrSuperseded = errors.New("reconciliation pass superseded")
)
