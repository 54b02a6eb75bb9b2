package repository

import "errors"

// Sentinel kinds for aggregate store errors.
var (
	ErrNotFound = errors.New("user not found")
)
