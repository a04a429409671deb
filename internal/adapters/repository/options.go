package repository

import (
	"github.com/jonboulle/clockwork"
	"github.com/okian/leetstat/pkg/logger"
)

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithClock sets the clock used to stamp saves.
func WithClock(c clockwork.Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger for decode and medium failures.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}
