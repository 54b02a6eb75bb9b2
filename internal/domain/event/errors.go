package event

import "errors"

// Sentinel kinds for event decoding errors.
var (
	ErrUnknownType = errors.New("unknown event type")
	ErrMalformed   = errors.New("malformed event")
)
