package repository

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okian/leetstat/internal/domain/model"
	"github.com/okian/leetstat/pkg/logger"
	"github.com/okian/leetstat/pkg/metrics"
)

// Persisted namespaces.
const (
	NamespaceStats       = "stats_responses"
	NamespaceCalendar    = "calendar_responses"
	NamespaceProfile     = "profile_responses"
	NamespaceLastFetched = "last_fetched"
)

// namespaceFor maps a kind to the namespace holding its envelopes.
func namespaceFor(kind model.Kind) (string, error) {
	switch kind {
	case model.KindStats:
		return NamespaceStats, nil
	case model.KindCalendar:
		return NamespaceCalendar, nil
	case model.KindProfile:
		return NamespaceProfile, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, kind)
}

// Store keeps raw upstream envelopes per (kind, username) plus one shared
// last-fetched timestamp per username. A timestamp exists iff at least one
// kind is stored for that username.
type Store struct {
	kv     KV
	clock  clockwork.Clock
	logger logger.Logger
}

// NewStore builds a Store over kv.
func NewStore(kv KV, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		clock:  clockwork.NewRealClock(),
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save upserts raw for (kind, username) and stamps username with now.
func (s *Store) Save(ctx context.Context, kind model.Kind, username string, raw []byte) error {
	return s.SaveAll(ctx, username, map[model.Kind][]byte{kind: raw})
}

// SaveAll upserts several kinds for username under a single timestamp in
// one atomic write.
func (s *Store) SaveAll(ctx context.Context, username string, payloads map[model.Kind][]byte) error {
	if username == "" {
		return ErrInvalidUsername
	}
	if len(payloads) == 0 {
		return nil
	}
	for kind := range payloads {
		if !kind.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
		}
	}
	sets := make([]Entry, 0, len(payloads)+1)
	for _, kind := range model.Kinds() {
		raw, ok := payloads[kind]
		if !ok {
			continue
		}
		ns, _ := namespaceFor(kind)
		sets = append(sets, Entry{Namespace: ns, Field: username, Value: base64.StdEncoding.EncodeToString(raw)})
	}
	sets = append(sets, Entry{
		Namespace: NamespaceLastFetched,
		Field:     username,
		Value:     formatTimestamp(s.clock.Now()),
	})
	if err := s.kv.Apply(ctx, sets, nil); err != nil {
		metrics.RecordStoreError("save")
		return fmt.Errorf("save %s: %w", username, err)
	}
	return nil
}

// Get returns the raw envelope stored for (kind, username).
func (s *Store) Get(ctx context.Context, kind model.Kind, username string) ([]byte, bool, error) {
	ns, err := namespaceFor(kind)
	if err != nil {
		return nil, false, err
	}
	v, ok, err := s.kv.Get(ctx, ns, username)
	if err != nil {
		metrics.RecordStoreError("get")
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	raw, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		metrics.RecordStoreError("decode")
		s.logger.Warn(ctx, "undecodable cache entry",
			logger.String("kind", string(kind)),
			logger.String("username", username),
			logger.Error(err))
		return nil, false, fmt.Errorf("%w: %s/%s", ErrCorruptEntry, kind, username)
	}
	return raw, true, nil
}

// LastFetched returns the shared timestamp of username's last successful save.
func (s *Store) LastFetched(ctx context.Context, username string) (time.Time, bool, error) {
	v, ok, err := s.kv.Get(ctx, NamespaceLastFetched, username)
	if err != nil {
		metrics.RecordStoreError("last_fetched")
		return time.Time{}, false, err
	}
	if !ok {
		return time.Time{}, false, nil
	}
	t, err := parseTimestamp(v)
	if err != nil {
		metrics.RecordStoreError("decode")
		return time.Time{}, false, fmt.Errorf("%w: last_fetched/%s", ErrCorruptEntry, username)
	}
	return t, true, nil
}

// Usernames lists every username that has a timestamp.
func (s *Store) Usernames(ctx context.Context) ([]string, error) {
	names, err := s.kv.Fields(ctx, NamespaceLastFetched)
	if err != nil {
		metrics.RecordStoreError("list")
		return nil, err
	}
	return names, nil
}

// Clear removes every kind and the timestamp of username. Other usernames
// are left untouched.
func (s *Store) Clear(ctx context.Context, username string) error {
	if username == "" {
		return ErrInvalidUsername
	}
	deletes := []Key{
		{Namespace: NamespaceStats, Field: username},
		{Namespace: NamespaceCalendar, Field: username},
		{Namespace: NamespaceProfile, Field: username},
		{Namespace: NamespaceLastFetched, Field: username},
	}
	if err := s.kv.Apply(ctx, nil, deletes); err != nil {
		metrics.RecordStoreError("clear")
		return fmt.Errorf("clear %s: %w", username, err)
	}
	return nil
}

// ClearAll wipes the four cache namespaces.
func (s *Store) ClearAll(ctx context.Context) error {
	err := s.kv.Drop(ctx, NamespaceStats, NamespaceCalendar, NamespaceProfile, NamespaceLastFetched)
	if err != nil {
		metrics.RecordStoreError("clear_all")
		return fmt.Errorf("clear all: %w", err)
	}
	return nil
}

// formatTimestamp renders t as decimal epoch seconds with millisecond precision.
func formatTimestamp(t time.Time) string {
	ms := t.UnixMilli()
	return strconv.FormatFloat(float64(ms)/1000, 'f', 3, 64)
}

func parseTimestamp(v string) (time.Time, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return time.Time{}, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, fmt.Errorf("non-finite timestamp %q", v)
	}
	return time.UnixMilli(int64(math.Round(f * 1000))), nil
}
