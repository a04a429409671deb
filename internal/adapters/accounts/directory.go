// Package accounts keeps the saved-usernames list and the primary username
// in the same key-value medium as the response cache.
package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/okian/leetstat/internal/adapters/repository"
	"github.com/okian/leetstat/internal/domain/model"
)

// Persisted layout.
const (
	Namespace    = "app_settings"
	FieldSaved   = "saved_usernames"
	FieldPrimary = "primary_username"
)

// ErrUnknownUser is returned when an operation names a username that is
// not in the saved list.
var ErrUnknownUser = errors.New("username not saved")

// Directory is the saved-usernames collaborator. Writes are serialised
// so read-modify-write cycles on the list do not interleave.
type Directory struct {
	kv repository.KV
	mu sync.Mutex
}

// New builds a Directory over kv.
func New(kv repository.KV) *Directory {
	return &Directory{kv: kv}
}

// List returns the saved usernames in insertion order.
func (d *Directory) List(ctx context.Context) ([]string, error) {
	v, ok, err := d.kv.Get(ctx, Namespace, FieldSaved)
	if err != nil {
		return nil, fmt.Errorf("read saved usernames: %w", err)
	}
	if !ok || v == "" {
		return []string{}, nil
	}
	var names []string
	if err := json.Unmarshal([]byte(v), &names); err != nil {
		return nil, fmt.Errorf("decode saved usernames: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Primary returns the primary username, if one is set.
func (d *Directory) Primary(ctx context.Context) (string, bool, error) {
	v, ok, err := d.kv.Get(ctx, Namespace, FieldPrimary)
	if err != nil {
		return "", false, fmt.Errorf("read primary username: %w", err)
	}
	if !ok || v == "" {
		return "", false, nil
	}
	return v, true, nil
}

// Add appends username to the saved list. The first saved username also
// becomes primary. Adding an existing name is a no-op.
func (d *Directory) Add(ctx context.Context, username string) error {
	name, err := model.NormalizeUsername(username)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	names, err := d.List(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(names, name) {
		return nil
	}
	names = append(names, name)

	sets := []repository.Entry{listEntry(names)}
	if _, ok, err := d.Primary(ctx); err != nil {
		return err
	} else if !ok {
		sets = append(sets, repository.Entry{Namespace: Namespace, Field: FieldPrimary, Value: name})
	}
	return d.kv.Apply(ctx, sets, nil)
}

// Remove drops username from the saved list. When it was primary, the
// first remaining name takes over, or the primary is cleared.
func (d *Directory) Remove(ctx context.Context, username string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	names, err := d.List(ctx)
	if err != nil {
		return err
	}
	idx := slices.Index(names, username)
	if idx < 0 {
		return ErrUnknownUser
	}
	names = slices.Delete(names, idx, idx+1)

	sets := []repository.Entry{listEntry(names)}
	var deletes []repository.Key
	primary, ok, err := d.Primary(ctx)
	if err != nil {
		return err
	}
	if ok && primary == username {
		if len(names) > 0 {
			sets = append(sets, repository.Entry{Namespace: Namespace, Field: FieldPrimary, Value: names[0]})
		} else {
			deletes = append(deletes, repository.Key{Namespace: Namespace, Field: FieldPrimary})
		}
	}
	return d.kv.Apply(ctx, sets, deletes)
}

// SetPrimary marks a saved username as primary.
func (d *Directory) SetPrimary(ctx context.Context, username string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	names, err := d.List(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(names, username) {
		return ErrUnknownUser
	}
	return d.kv.Apply(ctx, []repository.Entry{{Namespace: Namespace, Field: FieldPrimary, Value: username}}, nil)
}

// Seed stores saved and primary when nothing has been persisted yet.
// Invalid names are skipped.
func (d *Directory) Seed(ctx context.Context, saved []string, primary string) error {
	current, err := d.List(ctx)
	if err != nil {
		return err
	}
	if len(current) > 0 {
		return nil
	}
	for _, name := range saved {
		if err := d.Add(ctx, name); err != nil && !errors.Is(err, model.ErrInvalidUsername) {
			return err
		}
	}
	if primary == "" {
		return nil
	}
	if err := d.Add(ctx, primary); err != nil {
		return err
	}
	return d.SetPrimary(ctx, primary)
}

// Tracked returns every saved username plus the primary, deduplicated,
// primary first.
func (d *Directory) Tracked(ctx context.Context) ([]string, error) {
	names, err := d.List(ctx)
	if err != nil {
		return nil, err
	}
	primary, ok, err := d.Primary(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(names)+1)
	if ok {
		out = append(out, primary)
	}
	for _, n := range names {
		if !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out, nil
}

func listEntry(names []string) repository.Entry {
	b, _ := json.Marshal(names)
	return repository.Entry{Namespace: Namespace, Field: FieldSaved, Value: string(b)}
}
