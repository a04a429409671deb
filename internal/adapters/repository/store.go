// Package repository persists raw upstream envelopes and their fetch
// timestamps on top of a small text key-value medium.
package repository

import "context"

// Entry is one namespaced field with its text value.
type Entry struct {
	Namespace string
	Field     string
	Value     string
}

// Key addresses one field inside a namespace.
type Key struct {
	Namespace string
	Field     string
}

// KV is the text-oriented medium the cache store sits on.
// Every write method is atomic: either all entries land or none do, and
// the data is durable once the call returns.
type KV interface {
	// Get returns the value of field in namespace. ok is false when the
	// field is absent.
	Get(ctx context.Context, namespace, field string) (value string, ok bool, err error)

	// Apply upserts sets and removes deletes in one atomic write.
	Apply(ctx context.Context, sets []Entry, deletes []Key) error

	// Fields lists the field names stored in namespace.
	Fields(ctx context.Context, namespace string) ([]string, error)

	// Drop removes every field of the given namespaces.
	Drop(ctx context.Context, namespaces ...string) error

	// Close releases the underlying connection.
	Close() error
}
