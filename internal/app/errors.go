package service

import (
	"errors"

	"github.com/okian/leetstat/internal/domain/model"
)

// Sentinel kinds for coordinator errors.
var (
	// ErrNotFound is derived when no kind yields data for a username and
	// upstream answered every request.
	ErrNotFound = errors.New("user not found")

	ErrInvalidUsername = model.ErrInvalidUsername
	ErrTooManyPeers    = errors.New("too many usernames to compare")
)
