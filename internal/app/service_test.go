package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okian/leetstat/internal/adapters/graphql"
	"github.com/okian/leetstat/internal/adapters/repository"
	service "github.com/okian/leetstat/internal/app"
	"github.com/okian/leetstat/internal/domain/model"
	"github.com/okian/leetstat/internal/domain/parser"
	"github.com/okian/leetstat/internal/domain/parser/fixtures"
	. "github.com/smartystreets/goconvey/convey"
)

var (
	aliceStats = fixtures.StatsEnvelope(fixtures.Stats{
		EasySolved: 5, MediumSolved: 3, HardSolved: 1,
		EasyTotal: 10, MediumTotal: 10, HardTotal: 10,
	})
	aliceCalendar = fixtures.CalendarEnvelope(fixtures.Calendar{
		Streak: 4, TotalActiveDays: 20, SubmissionCalendar: `{"1700000000":2}`,
	})
	aliceProfile = fixtures.ProfileEnvelope("alice", "Alice", 42)
)

// stubFetcher serves canned envelopes and counts calls.
type stubFetcher struct {
	mu       sync.Mutex
	stats    []byte
	calendar []byte
	profile  []byte
	statsErr error
	calErr   error
	profErr  error
	gate     chan struct{}

	statsCalls atomic.Int32
	calCalls   atomic.Int32
	profCalls  atomic.Int32
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{stats: aliceStats, calendar: aliceCalendar, profile: aliceProfile}
}

func (f *stubFetcher) set(fn func(f *stubFetcher)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *stubFetcher) wait() {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
}

func malformed(kind model.Kind) error {
	return &graphql.Error{Op: "parse", Kind: kind, Err: graphql.ErrMalformedResponse}
}

func (f *stubFetcher) FetchStats(_ context.Context, _ string) (*model.UserStats, []byte, error) {
	f.statsCalls.Add(1)
	f.wait()
	f.mu.Lock()
	raw, err := f.stats, f.statsErr
	f.mu.Unlock()
	if err != nil {
		return nil, nil, err
	}
	st, ok := parser.ParseStats(raw)
	if !ok {
		return nil, nil, malformed(model.KindStats)
	}
	return st, raw, nil
}

func (f *stubFetcher) FetchCalendar(_ context.Context, _ string) (*model.UserCalendar, []byte, error) {
	f.calCalls.Add(1)
	f.wait()
	f.mu.Lock()
	raw, err := f.calendar, f.calErr
	f.mu.Unlock()
	if err != nil {
		return nil, nil, err
	}
	cal, ok := parser.ParseCalendar(raw)
	if !ok {
		return nil, nil, malformed(model.KindCalendar)
	}
	return cal, raw, nil
}

func (f *stubFetcher) FetchProfile(_ context.Context, _ string) (*model.UserProfile, []byte, error) {
	f.profCalls.Add(1)
	f.wait()
	f.mu.Lock()
	raw, err := f.profile, f.profErr
	f.mu.Unlock()
	if err != nil {
		return nil, nil, err
	}
	p, ok := parser.ParseProfile(raw)
	if !ok {
		return nil, nil, malformed(model.KindProfile)
	}
	return p, raw, nil
}

type staticDirectory []string

func (d staticDirectory) Tracked(context.Context) ([]string, error) { return d, nil }

type brokenStore struct {
	*repository.Store
}

func (brokenStore) SaveAll(context.Context, string, map[model.Kind][]byte) error {
	return errors.New("disk full")
}

var errNetwork = &graphql.Error{Op: "execute", Kind: model.KindCalendar, Err: graphql.ErrNetwork}

func TestFetchData(t *testing.T) {
	Convey("Given a coordinator over an empty cache", t, func() {
		ctx := context.Background()
		clock := clockwork.NewFakeClockAt(time.Unix(1_700_100_000, 0))
		store := repository.NewStore(repository.NewMemoryKV(), repository.WithClock(clock))
		fetcher := newStubFetcher()
		svc := service.New(fetcher, store, service.WithClock(clock))

		Convey("When a username with surrounding space is fetched", func() {
			So(svc.FetchData(ctx, " alice\t", false), ShouldBeTrue)
			So(svc.FetchUserProfile(ctx, "alice ", false), ShouldBeTrue)

			Convey("Then every reader finds the records under either spelling", func() {
				for _, name := range []string{" alice\t", "alice", "alice "} {
					_, ok := svc.StatsFor(name)
					So(ok, ShouldBeTrue)
					_, ok = svc.CalendarFor(name)
					So(ok, ShouldBeTrue)
					_, ok = svc.ProfileFor(name)
					So(ok, ShouldBeTrue)
					_, ok = svc.LastFetched(ctx, name)
					So(ok, ShouldBeTrue)
					snap := svc.Snapshot(ctx, name)
					So(snap.Username, ShouldEqual, "alice")
					So(snap.Stats, ShouldNotBeNil)
				}
			})

			Convey("Then clearing with surrounding space drops the records", func() {
				So(svc.ClearCache(ctx, " alice "), ShouldBeNil)
				_, ok := svc.StatsFor("alice")
				So(ok, ShouldBeFalse)
				_, ok, _ = store.Get(ctx, model.KindStats, "alice")
				So(ok, ShouldBeFalse)
			})

			Convey("Then clearing an invalid username is rejected without touching anything", func() {
				So(errors.Is(svc.ClearCache(ctx, "   "), service.ErrInvalidUsername), ShouldBeTrue)
				_, ok := svc.StatsFor("alice")
				So(ok, ShouldBeTrue)
			})
		})

		Convey("When alice is fetched for the first time", func() {
			ok := svc.FetchData(ctx, "alice", false)

			Convey("Then both kinds are fetched and applied", func() {
				So(ok, ShouldBeTrue)
				So(fetcher.statsCalls.Load(), ShouldEqual, int32(1))
				So(fetcher.calCalls.Load(), ShouldEqual, int32(1))
				So(fetcher.profCalls.Load(), ShouldEqual, int32(0))

				stats, found := svc.StatsFor("alice")
				So(found, ShouldBeTrue)
				So(stats.TotalSolved(), ShouldEqual, 9)
				So(stats.TotalProblems(), ShouldEqual, 30)

				cal, found := svc.CalendarFor("alice")
				So(found, ShouldBeTrue)
				days := cal.Contributions()
				So(days, ShouldHaveLength, 1)
				So(days[0].Date.Equal(time.Date(2023, 11, 14, 0, 0, 0, 0, time.UTC)), ShouldBeTrue)
				So(days[0].Count, ShouldEqual, 2)
			})

			Convey("Then the envelopes and a fresh timestamp are persisted", func() {
				raw, found, err := store.Get(ctx, model.KindStats, "alice")
				So(err, ShouldBeNil)
				So(found, ShouldBeTrue)
				So(raw, ShouldResemble, aliceStats)
				_, found, _ = store.Get(ctx, model.KindCalendar, "alice")
				So(found, ShouldBeTrue)

				last, found, err := store.LastFetched(ctx, "alice")
				So(err, ShouldBeNil)
				So(found, ShouldBeTrue)
				So(clock.Now().Sub(last), ShouldBeLessThan, time.Second)
			})

			Convey("Then flags are clear and no error is recorded", func() {
				So(svc.IsLoading(), ShouldBeFalse)
				So(svc.IsFetchingFreshData(), ShouldBeFalse)
				So(svc.LastError(), ShouldBeNil)
			})

			Convey("And it is fetched again within the threshold", func() {
				clock.Advance(3599 * time.Second)
				So(svc.FetchData(ctx, "alice", false), ShouldBeTrue)

				Convey("Then the cache answers without the network", func() {
					So(fetcher.statsCalls.Load(), ShouldEqual, int32(1))
					So(fetcher.calCalls.Load(), ShouldEqual, int32(1))
				})
			})

			Convey("And it is fetched again after the threshold", func() {
				clock.Advance(3601 * time.Second)
				So(svc.FetchData(ctx, "alice", false), ShouldBeTrue)
				So(fetcher.statsCalls.Load(), ShouldEqual, int32(2))
			})

			Convey("And a refresh is forced", func() {
				So(svc.FetchData(ctx, "alice", true), ShouldBeTrue)
				So(fetcher.statsCalls.Load(), ShouldEqual, int32(2))
				So(fetcher.calCalls.Load(), ShouldEqual, int32(2))
			})

			Convey("And a forced refresh loses the calendar half", func() {
				before, _ := svc.StatsFor("alice")
				beforeCal, _ := svc.CalendarFor("alice")
				fetcher.set(func(f *stubFetcher) {
					f.stats = fixtures.StatsEnvelope(fixtures.Stats{EasySolved: 50})
					f.calErr = errNetwork
				})

				ok := svc.FetchData(ctx, "alice", true)

				Convey("Then nothing changes and the error is surfaced", func() {
					So(ok, ShouldBeFalse)
					after, _ := svc.StatsFor("alice")
					afterCal, _ := svc.CalendarFor("alice")
					So(after, ShouldResemble, before)
					So(afterCal, ShouldResemble, beforeCal)
					So(graphql.IsNetwork(svc.LastError()), ShouldBeTrue)

					raw, _, _ := store.Get(ctx, model.KindStats, "alice")
					So(raw, ShouldResemble, aliceStats)
				})

				Convey("Then a later success clears the error", func() {
					fetcher.set(func(f *stubFetcher) { f.calErr = nil })
					So(svc.FetchData(ctx, "alice", true), ShouldBeTrue)
					So(svc.LastError(), ShouldBeNil)
					stats, _ := svc.StatsFor("alice")
					So(stats.EasySolved, ShouldEqual, 50)
				})
			})
		})

		Convey("When the first fetch fails on the stats half", func() {
			fetcher.set(func(f *stubFetcher) { f.statsErr = errNetwork })
			ok := svc.FetchData(ctx, "alice", false)

			Convey("Then the username stays absent", func() {
				So(ok, ShouldBeFalse)
				_, found := svc.StatsFor("alice")
				So(found, ShouldBeFalse)
				_, found = svc.CalendarFor("alice")
				So(found, ShouldBeFalse)
				_, found, _ = store.LastFetched(ctx, "alice")
				So(found, ShouldBeFalse)
			})
		})

		Convey("When the username is invalid", func() {
			So(svc.FetchData(ctx, "bad name", false), ShouldBeFalse)
			So(errors.Is(svc.LastError(), service.ErrInvalidUsername), ShouldBeTrue)
			So(fetcher.statsCalls.Load(), ShouldEqual, int32(0))
		})

		Convey("When the store already holds a fresh pair", func() {
			So(store.SaveAll(ctx, "alice", map[model.Kind][]byte{
				model.KindStats:    aliceStats,
				model.KindCalendar: aliceCalendar,
			}), ShouldBeNil)

			Convey("Then it is hydrated lazily without the network", func() {
				So(svc.FetchData(ctx, "alice", false), ShouldBeTrue)
				So(fetcher.statsCalls.Load(), ShouldEqual, int32(0))
				stats, found := svc.StatsFor("alice")
				So(found, ShouldBeTrue)
				So(stats.TotalSolved(), ShouldEqual, 9)
			})
		})

		Convey("When persisting fails after a successful fetch", func() {
			broken := service.New(fetcher, brokenStore{store}, service.WithClock(clock))
			ok := broken.FetchData(ctx, "alice", false)

			Convey("Then memory still reflects the fresh data", func() {
				So(ok, ShouldBeTrue)
				_, found := broken.StatsFor("alice")
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestFetchDataConcurrency(t *testing.T) {
	Convey("Given a fetcher held at a gate", t, func() {
		ctx := context.Background()
		store := repository.NewStore(repository.NewMemoryKV())
		fetcher := newStubFetcher()
		gate := make(chan struct{})
		fetcher.gate = gate
		svc := service.New(fetcher, store)

		Convey("When two callers ask for the same username", func() {
			var wg sync.WaitGroup
			results := make([]bool, 2)
			for i := range results {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i] = svc.FetchData(ctx, "alice", false)
				}(i)
			}

			Convey("Then a full load is reported while in flight", func() {
				So(waitFor(func() bool { return fetcher.statsCalls.Load() == 1 }), ShouldBeTrue)
				So(svc.IsLoading(), ShouldBeTrue)
				So(svc.IsFetchingFreshData(), ShouldBeFalse)

				close(gate)
				wg.Wait()

				So(results, ShouldResemble, []bool{true, true})
				So(fetcher.statsCalls.Load(), ShouldEqual, int32(1))
				So(fetcher.calCalls.Load(), ShouldEqual, int32(1))
				So(svc.IsLoading(), ShouldBeFalse)
			})
		})

		Convey("When stale data is refreshed", func() {
			fetcher.set(func(f *stubFetcher) { f.gate = nil })
			So(svc.FetchData(ctx, "alice", false), ShouldBeTrue)
			fetcher.set(func(f *stubFetcher) { f.gate = gate })

			done := make(chan bool)
			go func() { done <- svc.FetchData(ctx, "alice", true) }()

			Convey("Then the background flag is used instead", func() {
				So(waitFor(svc.IsFetchingFreshData), ShouldBeTrue)
				So(svc.IsLoading(), ShouldBeFalse)
				_, found := svc.StatsFor("alice")
				So(found, ShouldBeTrue)

				close(gate)
				So(<-done, ShouldBeTrue)
				So(svc.IsFetchingFreshData(), ShouldBeFalse)
			})
		})

		Convey("When the caller gives up early", func() {
			short, cancel := context.WithCancel(ctx)
			done := make(chan bool)
			go func() { done <- svc.FetchData(short, "alice", false) }()
			So(waitFor(func() bool { return fetcher.calCalls.Load() == 1 }), ShouldBeTrue)
			cancel()

			Convey("Then the caller returns but the fetch still completes", func() {
				So(<-done, ShouldBeFalse)
				close(gate)
				So(waitFor(func() bool {
					_, ok := svc.StatsFor("alice")
					return ok
				}), ShouldBeTrue)
			})
		})
	})
}

func TestFetchUserProfile(t *testing.T) {
	Convey("Given a coordinator with a fake clock", t, func() {
		ctx := context.Background()
		clock := clockwork.NewFakeClockAt(time.Unix(1_700_100_000, 0))
		store := repository.NewStore(repository.NewMemoryKV(), repository.WithClock(clock))
		fetcher := newStubFetcher()
		svc := service.New(fetcher, store, service.WithClock(clock))

		Convey("When the profile is fetched", func() {
			So(svc.FetchUserProfile(ctx, "alice", false), ShouldBeTrue)

			Convey("Then only the profile kind is fetched and stored", func() {
				p, found := svc.ProfileFor("alice")
				So(found, ShouldBeTrue)
				So(p.Ranking, ShouldEqual, 42)
				So(fetcher.statsCalls.Load(), ShouldEqual, int32(0))
				_, found, _ = store.Get(ctx, model.KindProfile, "alice")
				So(found, ShouldBeTrue)
			})

			Convey("Then a repeat within the threshold is a cache hit", func() {
				So(svc.FetchUserProfile(ctx, "alice", false), ShouldBeTrue)
				So(fetcher.profCalls.Load(), ShouldEqual, int32(1))
			})

			Convey("Then the shared timestamp makes the pair fetch see fresh data once cached", func() {
				So(svc.FetchData(ctx, "alice", false), ShouldBeTrue)
				So(fetcher.statsCalls.Load(), ShouldEqual, int32(1))
				So(svc.FetchData(ctx, "alice", false), ShouldBeTrue)
				So(fetcher.statsCalls.Load(), ShouldEqual, int32(1))
			})
		})

		Convey("When the profile fetch fails", func() {
			fetcher.set(func(f *stubFetcher) { f.profErr = errNetwork })
			So(svc.FetchUserProfile(ctx, "alice", false), ShouldBeFalse)
			_, found := svc.ProfileFor("alice")
			So(found, ShouldBeFalse)
			So(svc.LastError(), ShouldNotBeNil)
		})
	})
}

func TestInitializeAndClear(t *testing.T) {
	Convey("Given a store holding two users", t, func() {
		ctx := context.Background()
		store := repository.NewStore(repository.NewMemoryKV())
		for _, name := range []string{"alice", "bob"} {
			So(store.SaveAll(ctx, name, map[model.Kind][]byte{
				model.KindStats:    aliceStats,
				model.KindCalendar: aliceCalendar,
				model.KindProfile:  aliceProfile,
			}), ShouldBeNil)
		}
		So(store.SaveAll(ctx, "carol", map[model.Kind][]byte{model.KindStats: []byte("garbage")}), ShouldBeNil)
		fetcher := newStubFetcher()
		svc := service.New(fetcher, store, service.WithDirectory(staticDirectory{"alice", "bob", "carol", "dave"}))

		Convey("When the coordinator initializes", func() {
			svc.Initialize(ctx)

			Convey("Then cached records load without network calls", func() {
				for _, name := range []string{"alice", "bob"} {
					_, ok := svc.StatsFor(name)
					So(ok, ShouldBeTrue)
					_, ok = svc.CalendarFor(name)
					So(ok, ShouldBeTrue)
					_, ok = svc.ProfileFor(name)
					So(ok, ShouldBeTrue)
				}
				So(fetcher.statsCalls.Load(), ShouldEqual, int32(0))
			})

			Convey("Then unparseable and missing entries stay absent", func() {
				_, ok := svc.StatsFor("carol")
				So(ok, ShouldBeFalse)
				_, ok = svc.StatsFor("dave")
				So(ok, ShouldBeFalse)
			})

			Convey("And one username is cleared", func() {
				So(svc.ClearCache(ctx, "alice"), ShouldBeNil)

				Convey("Then it is gone from memory and store while bob stays", func() {
					_, ok := svc.StatsFor("alice")
					So(ok, ShouldBeFalse)
					_, ok, _ = store.Get(ctx, model.KindStats, "alice")
					So(ok, ShouldBeFalse)
					_, ok = svc.StatsFor("bob")
					So(ok, ShouldBeTrue)
					_, ok, _ = store.LastFetched(ctx, "bob")
					So(ok, ShouldBeTrue)
				})
			})

			Convey("And everything is cleared", func() {
				So(svc.ClearCache(ctx, ""), ShouldBeNil)
				_, ok := svc.ProfileFor("bob")
				So(ok, ShouldBeFalse)
				_, ok, _ = store.LastFetched(ctx, "bob")
				So(ok, ShouldBeFalse)
			})

			Convey("Then the snapshot carries every record and the timestamp", func() {
				snap := svc.Snapshot(ctx, "alice")
				So(snap.Stats, ShouldNotBeNil)
				So(snap.Calendar, ShouldNotBeNil)
				So(snap.Profile, ShouldNotBeNil)
				So(snap.LastFetched, ShouldNotBeNil)
				So(svc.Snapshot(ctx, "dave").Empty(), ShouldBeTrue)
			})
		})
	})
}

func TestLookupUser(t *testing.T) {
	Convey("Given a coordinator", t, func() {
		ctx := context.Background()
		store := repository.NewStore(repository.NewMemoryKV())
		fetcher := newStubFetcher()
		svc := service.New(fetcher, store)

		Convey("When every kind arrives", func() {
			snap, err := svc.LookupUser(ctx, "alice")
			So(err, ShouldBeNil)
			So(snap.Stats, ShouldNotBeNil)
			So(snap.Profile, ShouldNotBeNil)
			So(snap.LastFetched, ShouldNotBeNil)
		})

		Convey("When upstream answers that the user does not exist", func() {
			fetcher.set(func(f *stubFetcher) {
				f.stats = fixtures.UserNotFound()
				f.calendar = fixtures.UserNotFound()
				f.profile = fixtures.UserNotFound()
			})
			_, err := svc.LookupUser(ctx, "ghost")

			Convey("Then the lookup reports not found", func() {
				So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
				So(errors.Is(svc.LastError(), service.ErrNotFound), ShouldBeTrue)
				_, ok, _ := store.LastFetched(ctx, "ghost")
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When one request never got an answer", func() {
			fetcher.set(func(f *stubFetcher) {
				f.stats = fixtures.UserNotFound()
				f.calErr = errNetwork
				f.profile = fixtures.UserNotFound()
			})
			_, err := svc.LookupUser(ctx, "ghost")
			So(errors.Is(err, service.ErrNotFound), ShouldBeFalse)
			So(graphql.IsNetwork(err), ShouldBeTrue)
		})

		Convey("When only the profile arrives", func() {
			fetcher.set(func(f *stubFetcher) { f.calErr = errNetwork })
			snap, err := svc.LookupUser(ctx, "alice")

			Convey("Then the profile is kept but the incomplete pair is not", func() {
				So(err, ShouldBeNil)
				So(snap.Profile, ShouldNotBeNil)
				So(snap.Stats, ShouldBeNil)
				_, ok, _ := store.Get(ctx, model.KindStats, "alice")
				So(ok, ShouldBeFalse)
				_, ok, _ = store.Get(ctx, model.KindProfile, "alice")
				So(ok, ShouldBeTrue)
			})
		})

		Convey("When the name is invalid", func() {
			_, err := svc.LookupUser(ctx, "")
			So(errors.Is(err, service.ErrInvalidUsername), ShouldBeTrue)
		})
	})
}

type perUserFetcher struct {
	*stubFetcher
	solved map[string]int
}

func (f *perUserFetcher) FetchStats(_ context.Context, username string) (*model.UserStats, []byte, error) {
	n, ok := f.solved[username]
	if !ok {
		return nil, nil, errNetwork
	}
	raw := fixtures.StatsEnvelope(fixtures.Stats{EasySolved: n})
	st, _ := parser.ParseStats(raw)
	return st, raw, nil
}

func TestCompare(t *testing.T) {
	Convey("Given peers with different solved counts", t, func() {
		ctx := context.Background()
		store := repository.NewStore(repository.NewMemoryKV())
		fetcher := &perUserFetcher{
			stubFetcher: newStubFetcher(),
			solved:      map[string]int{"alice": 10, "bob": 30, "carol": 10},
		}
		svc := service.New(fetcher, store, service.WithMaxPeers(4))

		Convey("When they are compared", func() {
			rows, err := svc.Compare(ctx, []string{"alice", "dave", "bob", "carol", "alice"})
			So(err, ShouldBeNil)

			Convey("Then rows are ordered by solved count, then name, unavailable last", func() {
				names := make([]string, 0, len(rows))
				for _, r := range rows {
					names = append(names, r.Username)
				}
				So(names, ShouldResemble, []string{"bob", "alice", "carol", "dave"})
				So(rows[0].Stats.TotalSolved(), ShouldEqual, 30)
				So(rows[3].Available, ShouldBeFalse)
			})
		})

		Convey("When too many peers are requested", func() {
			_, err := svc.Compare(ctx, []string{"a", "b", "c", "d", "e"})
			So(err, ShouldEqual, service.ErrTooManyPeers)
		})

		Convey("When a name is invalid", func() {
			_, err := svc.Compare(ctx, []string{"alice", "no good"})
			So(errors.Is(err, service.ErrInvalidUsername), ShouldBeTrue)
		})
	})
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
