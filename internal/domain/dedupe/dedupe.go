// Package dedupe tracks which refresh jobs are pending so a username is
// queued at most once at a time.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// Deduper records pending job keys.
type Deduper interface {
	// SeenAndRecord atomically checks whether key is pending and records it
	// if not. It returns true when key was already pending.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord releases key once its job has finished or failed to enqueue.
	Unrecord(ctx context.Context, key string)

	// Size returns the number of pending keys.
	Size() int64
}

// inMemoryDeduper keeps pending keys with the time they were recorded.
// A key older than ttl counts as released, which bounds the damage of a
// job that never calls Unrecord.
type inMemoryDeduper struct {
	mu      sync.Mutex
	pending map[string]time.Time
	ttl     time.Duration
	clock   clockwork.Clock
	size    atomic.Int64
}

// NewInMemoryDeduper creates a deduper. Without WithTTL keys never expire.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		pending: make(map[string]time.Time),
		clock:   clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SeenAndRecord implements Deduper.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now()
	if at, ok := d.pending[key]; ok {
		if d.ttl <= 0 || now.Sub(at) < d.ttl {
			return true
		}
		d.pending[key] = now
		return false
	}
	d.pending[key] = now
	d.size.Add(1)
	return false
}

// Unrecord implements Deduper.
func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.pending[key]; ok {
		delete(d.pending, key)
		d.size.Add(-1)
	}
}

// Size implements Deduper.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
