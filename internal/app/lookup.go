package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/okian/leetstat/internal/adapters/graphql"
	"github.com/okian/leetstat/internal/domain/model"
	"github.com/okian/leetstat/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// LookupUser fetches all three kinds for a username typed by a user. When
// no kind yields data and upstream answered every request, the result is
// ErrNotFound; when a request never got an answer the network error is
// returned instead. Whatever did arrive is persisted and kept in memory.
func (s *Service) LookupUser(ctx context.Context, username string) (model.Snapshot, error) {
	name, err := model.NormalizeUsername(username)
	if err != nil {
		return model.Snapshot{}, err
	}
	ctx = context.WithoutCancel(ctx)

	var (
		stats    *model.UserStats
		calendar *model.UserCalendar
		profile  *model.UserProfile
		raws     = make(map[model.Kind][]byte, 3)
		errs     = make(map[model.Kind]error, 3)
		mu       sync.Mutex
	)
	record := func(kind model.Kind, raw []byte, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errs[kind] = err
			return
		}
		raws[kind] = raw
	}

	s.beginFetch(false)
	var g errgroup.Group
	g.Go(func() error {
		var raw []byte
		var err error
		stats, raw, err = s.fetcher.FetchStats(ctx, name)
		record(model.KindStats, raw, err)
		return nil
	})
	g.Go(func() error {
		var raw []byte
		var err error
		calendar, raw, err = s.fetcher.FetchCalendar(ctx, name)
		record(model.KindCalendar, raw, err)
		return nil
	})
	g.Go(func() error {
		var raw []byte
		var err error
		profile, raw, err = s.fetcher.FetchProfile(ctx, name)
		record(model.KindProfile, raw, err)
		return nil
	})
	_ = g.Wait()
	s.endFetch(false)

	if len(raws) == 0 {
		err := lookupFailure(errs)
		s.setLastError(err)
		s.logger.Info(ctx, "lookup found no data",
			logger.String("username", name),
			logger.String("outcome", errorKind(err)),
			logger.Error(err))
		return model.Snapshot{}, err
	}

	// The pair is only kept when both halves arrived.
	if stats == nil || calendar == nil {
		delete(raws, model.KindStats)
		delete(raws, model.KindCalendar)
		stats, calendar = nil, nil
	}
	if len(raws) > 0 {
		s.persist(ctx, name, raws)
	}

	s.mu.Lock()
	if stats != nil {
		s.stats[name] = stats
		s.calendars[name] = calendar
	}
	if profile != nil {
		s.profiles[name] = profile
	}
	s.lastError = nil
	s.mu.Unlock()

	return s.Snapshot(ctx, name), nil
}

// lookupFailure derives the error of a lookup where nothing arrived.
func lookupFailure(errs map[model.Kind]error) error {
	for _, kind := range model.Kinds() {
		if err := errs[kind]; err != nil && !graphql.IsMalformed(err) {
			return err
		}
	}
	return ErrNotFound
}

// Compare runs cache-or-fetch for every username and returns their stats
// ordered by total solved, highest first, ties broken by username.
// Usernames without stats are listed last with Available false.
func (s *Service) Compare(ctx context.Context, usernames []string) ([]model.PeerStats, error) {
	names := make([]string, 0, len(usernames))
	seen := make(map[string]struct{}, len(usernames))
	for _, u := range usernames {
		name, err := model.NormalizeUsername(u)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	if len(names) > s.maxPeers {
		return nil, ErrTooManyPeers
	}

	var g errgroup.Group
	g.SetLimit(s.workerCount)
	for _, name := range names {
		g.Go(func() error {
			if err := s.fetchData(ctx, name, false); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Debug(ctx, "compare: fetch failed", logger.String("username", name), logger.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]model.PeerStats, 0, len(names))
	for _, name := range names {
		row := model.PeerStats{Username: name}
		if st, ok := s.StatsFor(name); ok {
			row.Stats = &st
			row.Available = true
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Available != b.Available {
			return a.Available
		}
		if a.Available && a.Stats.TotalSolved() != b.Stats.TotalSolved() {
			return a.Stats.TotalSolved() > b.Stats.TotalSolved()
		}
		return a.Username < b.Username
	})
	return out, nil
}
