// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/okian/leetstat/internal/adapters/accounts"
	"github.com/okian/leetstat/internal/adapters/graphql"
	service "github.com/okian/leetstat/internal/app"
	"github.com/okian/leetstat/internal/domain/model"
	"github.com/okian/leetstat/pkg/logger"
	"github.com/rs/cors"
)

// Router is the route registration surface handed to WithExtraRoutes.
type Router = chi.Router

// Coordinator is the slice of the data coordinator the handlers use.
type Coordinator interface {
	EnsureData(ctx context.Context, username string, force bool) error
	EnsureProfile(ctx context.Context, username string, force bool) error
	StatsFor(username string) (model.UserStats, bool)
	CalendarFor(username string) (model.UserCalendar, bool)
	ProfileFor(username string) (model.UserProfile, bool)
	LastFetched(ctx context.Context, username string) (time.Time, bool)
	LookupUser(ctx context.Context, username string) (model.Snapshot, error)
	Compare(ctx context.Context, usernames []string) ([]model.PeerStats, error)
	ClearCache(ctx context.Context, username string) error
}

// Accounts manages the saved usernames.
type Accounts interface {
	List(ctx context.Context) ([]string, error)
	Primary(ctx context.Context) (string, bool, error)
	Add(ctx context.Context, username string) error
	Remove(ctx context.Context, username string) error
	SetPrimary(ctx context.Context, username string) error
}

// Widget is the fetch-free read path over the persistent cache.
type Widget interface {
	RecentContributions(ctx context.Context, username string, days int, now time.Time) ([]model.DailyContribution, bool)
}

// Dependencies bundles every collaborator of the HTTP layer.
type Dependencies struct {
	Coordinator Coordinator
	Accounts    Accounts
	Widget      Widget
	Stats       StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	usersHandler   *UsersHandler
	compareHandler *CompareHandler
	cacheHandler   *CacheHandler

	allowedOrigins []string
	clock          clockwork.Clock
	mounts         []func(Router)
	logger         logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		allowedOrigins: []string{"*"},
		clock:          clockwork.NewRealClock(),
		logger:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(deps.Stats)
	s.usersHandler = NewUsersHandler(deps.Coordinator, deps.Accounts, deps.Widget, s.clock)
	s.compareHandler = NewCompareHandler(deps.Coordinator)
	s.cacheHandler = NewCacheHandler(deps.Coordinator)
	return s
}

// Handler builds the router with every route and middleware attached.
func (s *Server) Handler(_ context.Context) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(RequestLogger(s.logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{RequestIDHeader},
	}).Handler)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/metrics", s.healthHandler.HandleMetrics)
	r.Get("/stats", s.statsHandler.HandleStats)

	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Route("/users", s.usersHandler.RegisterRoutes)
		v1.Get("/compare", s.compareHandler.HandleCompare)
		v1.Delete("/cache", s.cacheHandler.HandleClearAll)
		v1.Delete("/cache/{username}", s.cacheHandler.HandleClearUser)
	})

	for _, mount := range s.mounts {
		mount(r)
	}
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure translates a coordinator or directory error to a response.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	var upstream *graphql.Error
	switch {
	case errors.Is(err, model.ErrInvalidUsername), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrTooManyPeers):
		return http.StatusBadRequest, "too_many_peers"
	case errors.Is(err, service.ErrNotFound), errors.Is(err, accounts.ErrUnknownUser):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &upstream) && graphql.IsMalformed(err) && len(upstream.Messages) > 0:
		// GraphQL answered with errors, typically an unknown user.
		return http.StatusNotFound, "not_found"
	case graphql.IsNetwork(err), graphql.IsMalformed(err):
		return http.StatusBadGateway, "upstream_error"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, ErrNoData):
		return http.StatusNotFound, "no_data"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
