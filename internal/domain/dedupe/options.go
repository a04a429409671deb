package dedupe

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Option applies a configuration option to the deduper.
type Option func(*inMemoryDeduper)

// WithTTL lets a pending key expire after ttl. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(d *inMemoryDeduper) {
		if ttl >= 0 {
			d.ttl = ttl
		}
	}
}

// WithClock sets the clock used to age keys.
func WithClock(c clockwork.Clock) Option {
	return func(d *inMemoryDeduper) {
		if c != nil {
			d.clock = c
		}
	}
}
