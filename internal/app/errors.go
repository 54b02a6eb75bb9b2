package service

import "errors"

var (
	// ErrBackpressure indicates the target partition's buffer is full and the
	// producer should retry later.
	ErrBackpressure = errors.New("event queue backpressure")
)
