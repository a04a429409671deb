// Package freshness decides whether cached data must be refetched.
package freshness

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okian/leetstat/pkg/logger"
)

// DefaultThreshold is the staleness window shared by every response kind.
const DefaultThreshold = time.Hour

// TimestampSource exposes the per-username last-fetched timestamp.
type TimestampSource interface {
	LastFetched(ctx context.Context, username string) (time.Time, bool, error)
}

// Policy applies the staleness threshold to the store's timestamps.
type Policy struct {
	source    TimestampSource
	clock     clockwork.Clock
	threshold time.Duration
	logger    logger.Logger
}

// Option configures a Policy.
type Option func(*Policy)

// WithThreshold overrides the staleness window.
func WithThreshold(d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.threshold = d
		}
	}
}

// WithClock injects the clock, typically a fake one in tests.
func WithClock(c clockwork.Clock) Option {
	return func(p *Policy) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithLogger sets the logger used for store read failures.
func WithLogger(l logger.Logger) Option {
	return func(p *Policy) {
		if l != nil {
			p.logger = l
		}
	}
}

// New builds a Policy over source.
func New(source TimestampSource, opts ...Option) *Policy {
	p := &Policy{
		source:    source,
		clock:     clockwork.NewRealClock(),
		threshold: DefaultThreshold,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Threshold returns the configured staleness window.
func (p *Policy) Threshold() time.Duration {
	return p.threshold
}

// NeedsRefresh reports whether username has no timestamp or one older
// than the threshold. A failed store read is treated as stale.
func (p *Policy) NeedsRefresh(ctx context.Context, username string) bool {
	last, ok, err := p.source.LastFetched(ctx, username)
	if err != nil {
		p.logger.Warn(ctx, "last-fetched lookup failed; treating as stale",
			logger.String("username", username), logger.Error(err))
		return true
	}
	return IsStale(last, ok, p.clock.Now(), p.threshold)
}

// IsStale is the pure decision: missing timestamps are stale, otherwise
// data is stale once now-last strictly exceeds threshold.
func IsStale(last time.Time, ok bool, now time.Time, threshold time.Duration) bool {
	if !ok {
		return true
	}
	return now.Sub(last) > threshold
}
