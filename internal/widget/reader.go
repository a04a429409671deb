// Package widget is the fetch-free read path: it decodes whatever the
// persistent cache holds and never touches the network.
package widget

import (
	"context"
	"time"

	"github.com/okian/leetstat/internal/domain/model"
	"github.com/okian/leetstat/internal/domain/parser"
	"github.com/okian/leetstat/pkg/logger"
)

// MaxDays bounds the RecentContributions window.
const MaxDays = 366

// Source is the read side of the persistent cache.
type Source interface {
	Get(ctx context.Context, kind model.Kind, username string) ([]byte, bool, error)
	LastFetched(ctx context.Context, username string) (time.Time, bool, error)
}

// Reader decodes cached envelopes on demand.
type Reader struct {
	source Source
	logger logger.Logger
}

// NewReader builds a Reader over source.
func NewReader(source Source, l logger.Logger) *Reader {
	if l == nil {
		l = logger.Nop()
	}
	return &Reader{source: source, logger: l}
}

func (r *Reader) raw(ctx context.Context, kind model.Kind, username string) []byte {
	raw, ok, err := r.source.Get(ctx, kind, username)
	if err != nil {
		r.logger.Debug(ctx, "widget cache read failed",
			logger.String("kind", string(kind)),
			logger.String("username", username),
			logger.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	return raw
}

// GetUserStats returns the cached stats of username.
func (r *Reader) GetUserStats(ctx context.Context, username string) (*model.UserStats, bool) {
	raw := r.raw(ctx, model.KindStats, username)
	if raw == nil {
		return nil, false
	}
	return parser.ParseStats(raw)
}

// GetUserCalendar returns the cached calendar of username.
func (r *Reader) GetUserCalendar(ctx context.Context, username string) (*model.UserCalendar, bool) {
	raw := r.raw(ctx, model.KindCalendar, username)
	if raw == nil {
		return nil, false
	}
	return parser.ParseCalendar(raw)
}

// GetUserProfile returns the cached profile of username.
func (r *Reader) GetUserProfile(ctx context.Context, username string) (*model.UserProfile, bool) {
	raw := r.raw(ctx, model.KindProfile, username)
	if raw == nil {
		return nil, false
	}
	return parser.ParseProfile(raw)
}

// Snapshot gathers every cached record of username.
func (r *Reader) Snapshot(ctx context.Context, username string) model.Snapshot {
	snap := model.Snapshot{Username: username}
	snap.Stats, _ = r.GetUserStats(ctx, username)
	snap.Calendar, _ = r.GetUserCalendar(ctx, username)
	snap.Profile, _ = r.GetUserProfile(ctx, username)
	if t, ok, err := r.source.LastFetched(ctx, username); err == nil && ok {
		snap.LastFetched = &t
	}
	return snap
}

// RecentContributions returns exactly days entries ending on the UTC day
// of now, oldest first. Days without submissions carry a zero count and
// several keys landing on one day are summed. ok is false when no calendar
// is cached.
func (r *Reader) RecentContributions(ctx context.Context, username string, days int, now time.Time) ([]model.DailyContribution, bool) {
	cal, ok := r.GetUserCalendar(ctx, username)
	if !ok {
		return nil, false
	}
	return Window(cal.Contributions(), days, now), true
}

// Window zero-fills contributions into a days-long window ending on the
// UTC day of now. days is clamped to [1, MaxDays].
func Window(contributions []model.DailyContribution, days int, now time.Time) []model.DailyContribution {
	if days < 1 {
		days = 1
	}
	if days > MaxDays {
		days = MaxDays
	}
	end := model.StartOfDay(now)
	start := end.AddDate(0, 0, -(days - 1))

	counts := make(map[time.Time]int, len(contributions))
	for _, c := range contributions {
		if c.Date.Before(start) || c.Date.After(end) {
			continue
		}
		counts[c.Date] += c.Count
	}

	out := make([]model.DailyContribution, 0, days)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, model.DailyContribution{Date: d, Count: counts[d]})
	}
	return out
}
