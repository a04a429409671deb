package repository

import "errors"

// Sentinel kinds for cache store errors.
var (
	ErrInvalidKind     = errors.New("invalid response kind")
	ErrInvalidUsername = errors.New("invalid username")
	ErrCorruptEntry    = errors.New("corrupt cache entry")
	ErrUnknownBackend  = errors.New("unknown store backend")
	ErrClosed          = errors.New("store closed")
)
