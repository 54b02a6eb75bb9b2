package queue

import "errors"

var (
	// ErrClosed indicates an enqueue attempt after the queue was closed.
	ErrClosed = errors.New("queue closed")
)
