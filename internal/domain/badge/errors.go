package badge

import "errors"

// Sentinel kinds for badge errors.
var (
	ErrUnknownCategory = errors.New("unknown badge category")
)
