package repository

import (
	"context"
	"sort"
	"sync"
)

// MemoryKV keeps namespaces in process memory. It backs tests and
// ephemeral runs; nothing survives a restart.
type MemoryKV struct {
	mu     sync.RWMutex
	data   map[string]map[string]string
	closed bool
}

// NewMemoryKV returns an empty in-memory medium.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]map[string]string)}
}

// Get implements KV.
func (m *MemoryKV) Get(ctx context.Context, namespace, field string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, ErrClosed
	}
	v, ok := m.data[namespace][field]
	return v, ok, nil
}

// Apply implements KV. The write lock makes the batch atomic.
func (m *MemoryKV) Apply(ctx context.Context, sets []Entry, deletes []Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, e := range sets {
		ns, ok := m.data[e.Namespace]
		if !ok {
			ns = make(map[string]string)
			m.data[e.Namespace] = ns
		}
		ns[e.Field] = e.Value
	}
	for _, k := range deletes {
		if ns, ok := m.data[k.Namespace]; ok {
			delete(ns, k.Field)
			if len(ns) == 0 {
				delete(m.data, k.Namespace)
			}
		}
	}
	return nil
}

// Fields implements KV. Names are returned sorted.
func (m *MemoryKV) Fields(ctx context.Context, namespace string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make([]string, 0, len(m.data[namespace]))
	for f := range m.data[namespace] {
		out = append(out, f)
	}
	sort.Strings(out)
	return out, nil
}

// Drop implements KV.
func (m *MemoryKV) Drop(ctx context.Context, namespaces ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, ns := range namespaces {
		delete(m.data, ns)
	}
	return nil
}

// Close implements KV.
func (m *MemoryKV) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.data = nil
	return nil
}
