// Package service coordinates the cache-or-fetch decision for every
// username: it owns the in-memory records, talks to the upstream client
// and the persistent cache, and runs the background refresher.
package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	eventqueue "github.com/okian/leetstat/internal/adapters/mq/queue"
	workerpool "github.com/okian/leetstat/internal/adapters/mq/worker"
	"github.com/okian/leetstat/internal/domain/dedupe"
	"github.com/okian/leetstat/internal/domain/freshness"
	"github.com/okian/leetstat/internal/domain/model"
	"github.com/okian/leetstat/internal/domain/parser"
	"github.com/okian/leetstat/pkg/logger"
	"github.com/okian/leetstat/pkg/metrics"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Default service configuration constants.
const (
	defaultWorkerCount     = 2
	defaultQueueSize       = 256
	defaultRefreshInterval = 15 * time.Minute
	defaultMaxPeers        = 10
)

// Fetcher is the upstream API client.
type Fetcher interface {
	FetchStats(ctx context.Context, username string) (*model.UserStats, []byte, error)
	FetchCalendar(ctx context.Context, username string) (*model.UserCalendar, []byte, error)
	FetchProfile(ctx context.Context, username string) (*model.UserProfile, []byte, error)
}

// CacheStore is the persistent envelope cache.
type CacheStore interface {
	SaveAll(ctx context.Context, username string, payloads map[model.Kind][]byte) error
	Get(ctx context.Context, kind model.Kind, username string) ([]byte, bool, error)
	LastFetched(ctx context.Context, username string) (time.Time, bool, error)
	Clear(ctx context.Context, username string) error
	ClearAll(ctx context.Context) error
}

// Directory lists the usernames the app keeps track of.
type Directory interface {
	Tracked(ctx context.Context) ([]string, error)
}

type emptyDirectory struct{}

func (emptyDirectory) Tracked(context.Context) ([]string, error) { return nil, nil }

// Service is the data coordinator.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	fetcher   Fetcher
	store     CacheStore
	directory Directory
	policy    *freshness.Policy
	clock     clockwork.Clock

	// In-memory records, replaced only after a complete successful fetch.
	stats     map[string]*model.UserStats
	calendars map[string]*model.UserCalendar
	profiles  map[string]*model.UserProfile

	// Fetch state
	loading    int
	refreshing int
	lastError  error
	pairs      singleflight.Group
	profileSF  singleflight.Group

	// Configuration
	threshold       time.Duration
	workerCount     int
	queueSize       int
	refreshInterval time.Duration
	maxPeers        int

	// Background refresher
	started    bool
	refreshQ   *eventqueue.InMemoryQueue
	workerPool *workerpool.Pool
	deduper    dedupe.Deduper
	stopLoop   context.CancelFunc
	loopDone   chan struct{}

	logger logger.Logger
}

// New builds a Service over the upstream fetcher and the cache store.
func New(fetcher Fetcher, store CacheStore, opts ...Option) *Service {
	s := &Service{
		fetcher:         fetcher,
		store:           store,
		directory:       emptyDirectory{},
		clock:           clockwork.NewRealClock(),
		stats:           make(map[string]*model.UserStats),
		calendars:       make(map[string]*model.UserCalendar),
		profiles:        make(map[string]*model.UserProfile),
		threshold:       freshness.DefaultThreshold,
		workerCount:     defaultWorkerCount,
		queueSize:       defaultQueueSize,
		refreshInterval: defaultRefreshInterval,
		maxPeers:        defaultMaxPeers,
		logger:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.policy = freshness.New(store,
		freshness.WithThreshold(s.threshold),
		freshness.WithClock(s.clock),
		freshness.WithLogger(s.logger),
	)
	return s
}

// Initialize loads cached records for every tracked username. Failures
// leave the affected entries absent.
func (s *Service) Initialize(ctx context.Context) {
	names, err := s.directory.Tracked(ctx)
	if err != nil {
		s.logger.Warn(ctx, "could not list saved usernames", logger.Error(err))
		return
	}
	for _, name := range names {
		s.loadCached(ctx, name)
	}
	s.mu.RLock()
	tracked := len(s.stats)
	s.mu.RUnlock()
	metrics.UpdateTrackedUsers(tracked)
	s.logger.Info(ctx, "coordinator initialized",
		logger.Int("usernames", len(names)),
		logger.Int("with_stats", tracked))
}

// loadCached decodes whatever the store holds for username into memory,
// without overwriting records that are already present.
func (s *Service) loadCached(ctx context.Context, username string) {
	var (
		stats    *model.UserStats
		calendar *model.UserCalendar
		profile  *model.UserProfile
	)
	if raw := s.cached(ctx, model.KindStats, username); raw != nil {
		stats, _ = parser.ParseStats(raw)
	}
	if raw := s.cached(ctx, model.KindCalendar, username); raw != nil {
		calendar, _ = parser.ParseCalendar(raw)
	}
	if raw := s.cached(ctx, model.KindProfile, username); raw != nil {
		profile, _ = parser.ParseProfile(raw)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stats[username]; !ok && stats != nil {
		s.stats[username] = stats
	}
	if _, ok := s.calendars[username]; !ok && calendar != nil {
		s.calendars[username] = calendar
	}
	if _, ok := s.profiles[username]; !ok && profile != nil {
		s.profiles[username] = profile
	}
}

func (s *Service) cached(ctx context.Context, kind model.Kind, username string) []byte {
	raw, ok, err := s.store.Get(ctx, kind, username)
	if err != nil {
		s.logger.Debug(ctx, "cache read failed",
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

// FetchData runs cache-or-fetch for the stats and calendar pair. It
// returns true on a cache hit or when both kinds were fetched.
func (s *Service) FetchData(ctx context.Context, username string, force bool) bool {
	return s.fetchData(ctx, username, force) == nil
}

// EnsureData is FetchData reporting why the pair is unavailable.
func (s *Service) EnsureData(ctx context.Context, username string, force bool) error {
	return s.fetchData(ctx, username, force)
}

func (s *Service) fetchData(ctx context.Context, username string, force bool) error {
	name, err := model.NormalizeUsername(username)
	if err != nil {
		s.setLastError(err)
		return err
	}
	hasCached := s.hasPair(name)
	if !hasCached {
		s.loadCached(ctx, name)
		hasCached = s.hasPair(name)
	}
	if hasCached && !force && !s.policy.NeedsRefresh(ctx, name) {
		metrics.RecordCacheDecision("pair", "hit")
		return nil
	}
	metrics.RecordCacheDecision("pair", "fetch")

	ch := s.pairs.DoChan(name, func() (any, error) {
		return nil, s.fetchPair(context.WithoutCancel(ctx), name, hasCached)
	})
	return s.await(ctx, ch)
}

// fetchPair fetches stats and calendar concurrently and applies them only
// when both succeed.
func (s *Service) fetchPair(ctx context.Context, username string, hadCache bool) error {
	s.beginFetch(hadCache)
	defer s.endFetch(hadCache)

	var (
		stats    *model.UserStats
		calendar *model.UserCalendar
		rawStats []byte
		rawCal   []byte
	)
	var g errgroup.Group
	g.Go(func() error {
		var err error
		stats, rawStats, err = s.fetcher.FetchStats(ctx, username)
		return err
	})
	g.Go(func() error {
		var err error
		calendar, rawCal, err = s.fetcher.FetchCalendar(ctx, username)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Warn(ctx, "pair fetch failed",
			logger.String("username", username),
			logger.Error(err))
		s.setLastError(err)
		return err
	}

	s.persist(ctx, username, map[model.Kind][]byte{
		model.KindStats:    rawStats,
		model.KindCalendar: rawCal,
	})

	s.mu.Lock()
	s.stats[username] = stats
	s.calendars[username] = calendar
	s.lastError = nil
	tracked := len(s.stats)
	s.mu.Unlock()
	metrics.UpdateTrackedUsers(tracked)
	return nil
}

// FetchUserProfile runs cache-or-fetch for the profile alone, governed by
// the same shared timestamp as the pair.
func (s *Service) FetchUserProfile(ctx context.Context, username string, force bool) bool {
	return s.fetchProfile(ctx, username, force) == nil
}

// EnsureProfile is FetchUserProfile reporting why the profile is unavailable.
func (s *Service) EnsureProfile(ctx context.Context, username string, force bool) error {
	return s.fetchProfile(ctx, username, force)
}

func (s *Service) fetchProfile(ctx context.Context, username string, force bool) error {
	name, err := model.NormalizeUsername(username)
	if err != nil {
		s.setLastError(err)
		return err
	}
	_, hasCached := s.ProfileFor(name)
	if !hasCached {
		s.loadCached(ctx, name)
		_, hasCached = s.ProfileFor(name)
	}
	if hasCached && !force && !s.policy.NeedsRefresh(ctx, name) {
		metrics.RecordCacheDecision("profile", "hit")
		return nil
	}
	metrics.RecordCacheDecision("profile", "fetch")

	ch := s.profileSF.DoChan(name, func() (any, error) {
		return nil, s.fetchProfileNow(context.WithoutCancel(ctx), name, hasCached)
	})
	return s.await(ctx, ch)
}

func (s *Service) fetchProfileNow(ctx context.Context, username string, hadCache bool) error {
	s.beginFetch(hadCache)
	defer s.endFetch(hadCache)

	profile, raw, err := s.fetcher.FetchProfile(ctx, username)
	if err != nil {
		s.logger.Warn(ctx, "profile fetch failed",
			logger.String("username", username),
			logger.Error(err))
		s.setLastError(err)
		return err
	}
	s.persist(ctx, username, map[model.Kind][]byte{model.KindProfile: raw})

	s.mu.Lock()
	s.profiles[username] = profile
	s.lastError = nil
	s.mu.Unlock()
	return nil
}

// await waits for a coalesced fetch. The fetch itself keeps running when
// ctx ends first.
func (s *Service) await(ctx context.Context, ch <-chan singleflight.Result) error {
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// persist writes raw envelopes. A failed write is logged and does not
// fail the fetch: memory still reflects the fresh data.
func (s *Service) persist(ctx context.Context, username string, payloads map[model.Kind][]byte) {
	if err := s.store.SaveAll(ctx, username, payloads); err != nil {
		metrics.RecordErrorByComponent("coordinator", "persist_failed")
		s.logger.Error(ctx, "could not persist fetched data",
			logger.String("username", username),
			logger.Error(err))
	}
}

func (s *Service) beginFetch(hadCache bool) {
	s.mu.Lock()
	if hadCache {
		s.refreshing++
	} else {
		s.loading++
	}
	loading, refreshing := s.loading, s.refreshing
	s.mu.Unlock()
	metrics.UpdateFetchesInFlight(loading, refreshing)
}

func (s *Service) endFetch(hadCache bool) {
	s.mu.Lock()
	if hadCache {
		s.refreshing--
	} else {
		s.loading--
	}
	loading, refreshing := s.loading, s.refreshing
	s.mu.Unlock()
	metrics.UpdateFetchesInFlight(loading, refreshing)
}

func (s *Service) setLastError(err error) {
	s.mu.Lock()
	s.lastError = err
	s.mu.Unlock()
}

func (s *Service) hasPair(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, okStats := s.stats[username]
	_, okCal := s.calendars[username]
	return okStats && okCal
}

// ClearCache removes username from the store and from memory. An empty
// username clears everything; anything else must be a valid username.
func (s *Service) ClearCache(ctx context.Context, username string) error {
	if username != "" {
		name, err := model.NormalizeUsername(username)
		if err != nil {
			return err
		}
		username = name
	}

	var err error
	if username == "" {
		err = s.store.ClearAll(ctx)
	} else {
		err = s.store.Clear(ctx, username)
	}

	s.mu.Lock()
	if username == "" {
		clear(s.stats)
		clear(s.calendars)
		clear(s.profiles)
	} else {
		delete(s.stats, username)
		delete(s.calendars, username)
		delete(s.profiles, username)
	}
	tracked := len(s.stats)
	s.mu.Unlock()
	metrics.UpdateTrackedUsers(tracked)

	if err != nil {
		s.logger.Error(ctx, "cache clear failed",
			logger.String("username", username),
			logger.Error(err))
	}
	return err
}

// canonical maps a username to the key records are held under, matching
// what the fetch paths store.
func canonical(username string) string {
	return strings.TrimSpace(username)
}

// StatsFor returns the in-memory stats of username.
func (s *Service) StatsFor(username string) (model.UserStats, bool) {
	username = canonical(username)
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stats[username]
	if !ok {
		return model.UserStats{}, false
	}
	return *st, true
}

// CalendarFor returns the in-memory calendar of username.
func (s *Service) CalendarFor(username string) (model.UserCalendar, bool) {
	username = canonical(username)
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.calendars[username]
	if !ok {
		return model.UserCalendar{}, false
	}
	return *c, true
}

// ProfileFor returns the in-memory profile of username.
func (s *Service) ProfileFor(username string) (model.UserProfile, bool) {
	username = canonical(username)
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[username]
	if !ok {
		return model.UserProfile{}, false
	}
	return *p, true
}

// IsLoading reports whether a fetch without cached data is in flight.
func (s *Service) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading > 0
}

// IsFetchingFreshData reports whether a refresh over stale data is in flight.
func (s *Service) IsFetchingFreshData() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshing > 0
}

// LastError returns the most recent fetch failure, cleared by the next
// successful fetch.
func (s *Service) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// LastFetched returns the shared fetch timestamp of username.
func (s *Service) LastFetched(ctx context.Context, username string) (time.Time, bool) {
	username = canonical(username)
	t, ok, err := s.store.LastFetched(ctx, username)
	if err != nil {
		return time.Time{}, false
	}
	return t, ok
}

// Snapshot gathers the in-memory records of username.
func (s *Service) Snapshot(ctx context.Context, username string) model.Snapshot {
	username = canonical(username)
	snap := model.Snapshot{Username: username}
	s.mu.RLock()
	if st, ok := s.stats[username]; ok {
		c := *st
		snap.Stats = &c
	}
	if cal, ok := s.calendars[username]; ok {
		c := *cal
		snap.Calendar = &c
	}
	if p, ok := s.profiles[username]; ok {
		c := *p
		snap.Profile = &c
	}
	s.mu.RUnlock()
	if t, ok := s.LastFetched(ctx, username); ok {
		snap.LastFetched = &t
	}
	return snap
}

// errorKind names err for logs and metrics.
func errorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "failed"
	}
}
