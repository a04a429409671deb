package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okian/leetstat/internal/adapters/accounts"
	"github.com/okian/leetstat/internal/adapters/graphql"
	"github.com/okian/leetstat/internal/adapters/http/api"
	"github.com/okian/leetstat/internal/adapters/repository"
	service "github.com/okian/leetstat/internal/app"
	"github.com/okian/leetstat/internal/domain/parser/fixtures"
	"github.com/okian/leetstat/internal/widget"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeUpstream answers like the GraphQL endpoint: "ghost" does not exist
// and every request fails with 503 while down is set.
type fakeUpstream struct {
	down  atomic.Bool
	calls atomic.Int32
}

func (f *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	if f.down.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	var body struct {
		Variables     map[string]any `json:"variables"`
		OperationName string         `json:"operationName"`
	}
	b, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(b, &body)
	username, _ := body.Variables["username"].(string)

	w.Header().Set("Content-Type", "application/json")
	if username == "ghost" {
		_, _ = w.Write(fixtures.UserNotFound())
		return
	}
	switch body.OperationName {
	case "userProblemsSolved":
		_, _ = w.Write(fixtures.StatsEnvelope(fixtures.Stats{
			EasySolved: 5, MediumSolved: 3, HardSolved: 1,
			EasyTotal: 10, MediumTotal: 10, HardTotal: 10,
		}))
	case "userProfileCalendar":
		_, _ = w.Write(fixtures.CalendarEnvelope(fixtures.Calendar{
			Streak: 2, TotalActiveDays: 1, SubmissionCalendar: `{"1700000000":2}`,
		}))
	case "userPublicProfile":
		_, _ = w.Write(fixtures.ProfileEnvelope(username, "Alice", 42))
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

type harness struct {
	handler  http.Handler
	upstream *fakeUpstream
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	up := &fakeUpstream{}
	srv := httptest.NewServer(up)
	t.Cleanup(srv.Close)

	client, err := graphql.New(graphql.WithEndpoint(srv.URL), graphql.WithRateLimit(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	kv := repository.NewMemoryKV()
	store := repository.NewStore(kv)
	dir := accounts.New(kv)
	svc := service.New(client, store,
		service.WithDirectory(dir),
		service.WithRefreshInterval(0),
	)

	// 2023-11-15 12:00 UTC, the day after the cached submission.
	clock := clockwork.NewFakeClockAt(time.Date(2023, 11, 15, 12, 0, 0, 0, time.UTC))
	server := api.NewServer(api.Dependencies{
		Coordinator: svc,
		Accounts:    dir,
		Widget:      widget.NewReader(store, nil),
		Stats:       svc,
	}, api.WithClock(clock))

	return &harness{handler: server.Handler(context.Background()), upstream: up}
}

func (h *harness) do(method, target, body string) *httptest.ResponseRecorder {
	var rdr io.Reader = http.NoBody
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

func TestServer_Ambient(t *testing.T) {
	Convey("Given the API server", t, func() {
		h := newHarness(t)

		Convey("Then /healthz reports ok", func() {
			w := h.do(http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["status"], ShouldEqual, "ok")
		})

		Convey("Then /metrics serves the exposition format", func() {
			_ = h.do(http.MethodGet, "/healthz", "")
			w := h.do(http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "leetstat_")
		})

		Convey("Then /stats returns the coordinator status", func() {
			w := h.do(http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w), ShouldContainKey, "stalenessSeconds")
		})

		Convey("Then every response carries a request id", func() {
			w := h.do(http.MethodGet, "/healthz", "")
			So(w.Header().Get(api.RequestIDHeader), ShouldNotBeEmpty)
		})

		Convey("Then a valid incoming request id is echoed", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
			req.Header.Set(api.RequestIDHeader, "3b241101-e2bb-4255-8caf-4136c566a962")
			w := httptest.NewRecorder()
			h.handler.ServeHTTP(w, req)
			So(w.Header().Get(api.RequestIDHeader), ShouldEqual, "3b241101-e2bb-4255-8caf-4136c566a962")
		})

		Convey("Then cross-origin requests are allowed", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
			req.Header.Set("Origin", "http://widget.test")
			w := httptest.NewRecorder()
			h.handler.ServeHTTP(w, req)
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
		})

		Convey("Then unknown routes are 404", func() {
			w := h.do(http.MethodGet, "/nope", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestServer_Users(t *testing.T) {
	Convey("Given the API server with no saved users", t, func() {
		h := newHarness(t)

		Convey("When listing users", func() {
			w := h.do(http.MethodGet, "/api/v1/users", "")

			Convey("Then the list is empty", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["saved"], ShouldResemble, []any{})
			})
		})

		Convey("When adding an existing user", func() {
			w := h.do(http.MethodPost, "/api/v1/users", `{"username":" alice "}`)

			Convey("Then the snapshot is returned and the user becomes primary", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				body := decode(w)
				So(body["username"], ShouldEqual, "alice")
				So(body, ShouldContainKey, "stats")
				So(body, ShouldContainKey, "profile")

				list := decode(h.do(http.MethodGet, "/api/v1/users", ""))
				So(list["saved"], ShouldResemble, []any{"alice"})
				So(list["primary"], ShouldEqual, "alice")
			})

			Convey("Then another saved user can become primary", func() {
				So(h.do(http.MethodPost, "/api/v1/users", `{"username":"bob"}`).Code, ShouldEqual, http.StatusCreated)
				w := h.do(http.MethodPut, "/api/v1/users/primary", `{"username":"bob"}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["primary"], ShouldEqual, "bob")
			})

			Convey("Then removing it clears the list and the cache", func() {
				w := h.do(http.MethodDelete, "/api/v1/users/alice", "")
				So(w.Code, ShouldEqual, http.StatusNoContent)
				So(decode(h.do(http.MethodGet, "/api/v1/users", ""))["saved"], ShouldResemble, []any{})
				So(h.do(http.MethodGet, "/api/v1/users/alice/contributions", "").Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When adding a user upstream does not know", func() {
			w := h.do(http.MethodPost, "/api/v1/users", `{"username":"ghost"}`)

			Convey("Then it is 404 and nothing is saved", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(decode(h.do(http.MethodGet, "/api/v1/users", ""))["saved"], ShouldResemble, []any{})
			})
		})

		Convey("When the request is malformed", func() {
			So(h.do(http.MethodPost, "/api/v1/users", `{`).Code, ShouldEqual, http.StatusBadRequest)
			So(h.do(http.MethodPost, "/api/v1/users", `{"username":"bad name!"}`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When promoting or removing an unsaved user", func() {
			So(h.do(http.MethodPut, "/api/v1/users/primary", `{"username":"carol"}`).Code, ShouldEqual, http.StatusNotFound)
			So(h.do(http.MethodDelete, "/api/v1/users/carol", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestServer_Records(t *testing.T) {
	Convey("Given the API server", t, func() {
		h := newHarness(t)

		Convey("When requesting stats", func() {
			w := h.do(http.MethodGet, "/api/v1/users/alice/stats", "")

			Convey("Then derived totals are included", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["totalSolved"], ShouldEqual, float64(9))
				So(body["totalProblems"], ShouldEqual, float64(30))
				So(body, ShouldContainKey, "lastFetched")
				So(body, ShouldNotContainKey, "stale")
			})

			Convey("Then a second request is served from the cache", func() {
				before := h.upstream.calls.Load()
				So(h.do(http.MethodGet, "/api/v1/users/alice/calendar", "").Code, ShouldEqual, http.StatusOK)
				So(h.upstream.calls.Load(), ShouldEqual, before)
			})

			Convey("Then a forced refresh against a failing upstream serves cached data as stale", func() {
				h.upstream.down.Store(true)
				w := h.do(http.MethodGet, "/api/v1/users/alice/stats?force=true", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["stale"], ShouldEqual, true)
			})

			Convey("Then the widget window reads the cached calendar", func() {
				w := h.do(http.MethodGet, "/api/v1/users/alice/contributions?days=3", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["days"], ShouldEqual, float64(3))
				So(body["total"], ShouldEqual, float64(2))
				So(body["contributions"], ShouldHaveLength, 3)
			})
		})

		Convey("When requesting the calendar", func() {
			w := h.do(http.MethodGet, "/api/v1/users/alice/calendar", "")

			Convey("Then decoded contributions are included", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["contributions"], ShouldHaveLength, 1)
			})
		})

		Convey("When requesting the profile", func() {
			w := h.do(http.MethodGet, "/api/v1/users/alice/profile", "")

			Convey("Then the profile is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				profile, _ := decode(w)["profile"].(map[string]any)
				So(profile["realName"], ShouldEqual, "Alice")
			})
		})

		Convey("When the user does not exist", func() {
			So(h.do(http.MethodGet, "/api/v1/users/ghost/stats", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When upstream is down and nothing is cached", func() {
			h.upstream.down.Store(true)
			So(h.do(http.MethodGet, "/api/v1/users/alice/stats", "").Code, ShouldEqual, http.StatusBadGateway)
		})

		Convey("When the widget has no cached calendar", func() {
			So(h.do(http.MethodGet, "/api/v1/users/alice/contributions", "").Code, ShouldEqual, http.StatusNotFound)
			So(h.upstream.calls.Load(), ShouldEqual, int32(0))
		})

		Convey("When the widget window is out of range", func() {
			So(h.do(http.MethodGet, "/api/v1/users/alice/contributions?days=0", "").Code, ShouldEqual, http.StatusBadRequest)
			So(h.do(http.MethodGet, "/api/v1/users/alice/contributions?days=367", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the username is invalid", func() {
			So(h.do(http.MethodGet, "/api/v1/users/bad%20name!/stats", "").Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestServer_CompareAndCache(t *testing.T) {
	Convey("Given the API server", t, func() {
		h := newHarness(t)

		Convey("When comparing peers", func() {
			w := h.do(http.MethodGet, "/api/v1/compare?users=alice,ghost", "")

			Convey("Then known users come first and unknown ones are unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				peers, _ := decode(w)["peers"].([]any)
				So(peers, ShouldHaveLength, 2)
				first, _ := peers[0].(map[string]any)
				second, _ := peers[1].(map[string]any)
				So(first["username"], ShouldEqual, "alice")
				So(first["available"], ShouldEqual, true)
				So(second["available"], ShouldEqual, false)
			})
		})

		Convey("When the comparison has no users", func() {
			So(h.do(http.MethodGet, "/api/v1/compare", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the comparison has too many users", func() {
			users := make([]string, 11)
			for i := range users {
				users[i] = "user" + string(rune('a'+i))
			}
			w := h.do(http.MethodGet, "/api/v1/compare?users="+strings.Join(users, ","), "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["code"], ShouldEqual, "too_many_peers")
		})

		Convey("When clearing caches", func() {
			So(h.do(http.MethodGet, "/api/v1/users/alice/stats", "").Code, ShouldEqual, http.StatusOK)

			So(h.do(http.MethodDelete, "/api/v1/cache/alice", "").Code, ShouldEqual, http.StatusNoContent)
			So(h.do(http.MethodGet, "/api/v1/users/alice/contributions", "").Code, ShouldEqual, http.StatusNotFound)

			So(h.do(http.MethodGet, "/api/v1/users/alice/stats", "").Code, ShouldEqual, http.StatusOK)
			So(h.do(http.MethodDelete, "/api/v1/cache", "").Code, ShouldEqual, http.StatusNoContent)
			So(h.do(http.MethodGet, "/api/v1/users/alice/contributions", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}
