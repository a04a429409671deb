package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/okian/leetstat/internal/domain/model"
)

// Contribution window bounds for GET .../contributions.
const (
	defaultContributionDays = 30
	maxContributionDays     = 366
)

// UsersHandler serves the saved usernames and the per-user records.
type UsersHandler struct {
	coordinator Coordinator
	accounts    Accounts
	widget      Widget
	clock       clockwork.Clock
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(c Coordinator, a Accounts, w Widget, clock clockwork.Clock) *UsersHandler {
	return &UsersHandler{coordinator: c, accounts: a, widget: w, clock: clock}
}

// RegisterRoutes mounts the handler under /api/v1/users.
func (h *UsersHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.listUsers)
	r.Post("/", h.addUser)
	r.Put("/primary", h.setPrimary)
	r.Delete("/{username}", h.removeUser)
	r.Get("/{username}/stats", h.getStats)
	r.Get("/{username}/calendar", h.getCalendar)
	r.Get("/{username}/profile", h.getProfile)
	r.Get("/{username}/contributions", h.getContributions)
}

type usernameRequest struct {
	Username string `json:"username"`
}

type usersResponse struct {
	Saved   []string `json:"saved"`
	Primary string   `json:"primary,omitempty"`
}

type statsResponse struct {
	Username      string          `json:"username"`
	Stats         model.UserStats `json:"stats"`
	TotalSolved   int             `json:"totalSolved"`
	TotalProblems int             `json:"totalProblems"`
	LastFetched   *time.Time      `json:"lastFetched,omitempty"`
	Stale         bool            `json:"stale,omitempty"`
}

type calendarResponse struct {
	Username      string                    `json:"username"`
	Calendar      model.UserCalendar        `json:"calendar"`
	Contributions []model.DailyContribution `json:"contributions"`
	LastFetched   *time.Time                `json:"lastFetched,omitempty"`
	Stale         bool                      `json:"stale,omitempty"`
}

type profileResponse struct {
	Username    string            `json:"username"`
	Profile     model.UserProfile `json:"profile"`
	LastFetched *time.Time        `json:"lastFetched,omitempty"`
	Stale       bool              `json:"stale,omitempty"`
}

type contributionsResponse struct {
	Username      string                    `json:"username"`
	Days          int                       `json:"days"`
	Total         int                       `json:"total"`
	Contributions []model.DailyContribution `json:"contributions"`
}

func (h *UsersHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	resp, err := h.users(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *UsersHandler) users(r *http.Request) (usersResponse, error) {
	saved, err := h.accounts.List(r.Context())
	if err != nil {
		return usersResponse{}, err
	}
	primary, _, err := h.accounts.Primary(r.Context())
	if err != nil {
		return usersResponse{}, err
	}
	return usersResponse{Saved: saved, Primary: primary}, nil
}

// addUser looks the username up upstream and saves it only when it exists.
func (h *UsersHandler) addUser(w http.ResponseWriter, r *http.Request) {
	req, err := decodeUsername(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	snap, err := h.coordinator.LookupUser(r.Context(), req.Username)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := h.accounts.Add(r.Context(), snap.Username); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (h *UsersHandler) setPrimary(w http.ResponseWriter, r *http.Request) {
	req, err := decodeUsername(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	name, err := model.NormalizeUsername(req.Username)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := h.accounts.SetPrimary(r.Context(), name); err != nil {
		writeFailure(w, err)
		return
	}
	h.listUsers(w, r)
}

// removeUser drops the username from the saved list and clears its cache.
func (h *UsersHandler) removeUser(w http.ResponseWriter, r *http.Request) {
	name, ok := usernameParam(w, r)
	if !ok {
		return
	}
	if err := h.accounts.Remove(r.Context(), name); err != nil {
		writeFailure(w, err)
		return
	}
	if err := h.coordinator.ClearCache(r.Context(), name); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UsersHandler) getStats(w http.ResponseWriter, r *http.Request) {
	name, ok := usernameParam(w, r)
	if !ok {
		return
	}
	fetchErr := h.coordinator.EnsureData(r.Context(), name, forceParam(r))
	stats, ok := h.coordinator.StatsFor(name)
	if !ok {
		writeFailure(w, orNoData(fetchErr))
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Username:      name,
		Stats:         stats,
		TotalSolved:   stats.TotalSolved(),
		TotalProblems: stats.TotalProblems(),
		LastFetched:   h.lastFetched(r, name),
		Stale:         fetchErr != nil,
	})
}

func (h *UsersHandler) getCalendar(w http.ResponseWriter, r *http.Request) {
	name, ok := usernameParam(w, r)
	if !ok {
		return
	}
	fetchErr := h.coordinator.EnsureData(r.Context(), name, forceParam(r))
	cal, ok := h.coordinator.CalendarFor(name)
	if !ok {
		writeFailure(w, orNoData(fetchErr))
		return
	}
	contributions := cal.Contributions()
	if contributions == nil {
		contributions = []model.DailyContribution{}
	}
	writeJSON(w, http.StatusOK, calendarResponse{
		Username:      name,
		Calendar:      cal,
		Contributions: contributions,
		LastFetched:   h.lastFetched(r, name),
		Stale:         fetchErr != nil,
	})
}

func (h *UsersHandler) getProfile(w http.ResponseWriter, r *http.Request) {
	name, ok := usernameParam(w, r)
	if !ok {
		return
	}
	fetchErr := h.coordinator.EnsureProfile(r.Context(), name, forceParam(r))
	profile, ok := h.coordinator.ProfileFor(name)
	if !ok {
		writeFailure(w, orNoData(fetchErr))
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{
		Username:    name,
		Profile:     profile,
		LastFetched: h.lastFetched(r, name),
		Stale:       fetchErr != nil,
	})
}

// getContributions reads the persistent cache only; it never calls upstream.
func (h *UsersHandler) getContributions(w http.ResponseWriter, r *http.Request) {
	name, ok := usernameParam(w, r)
	if !ok {
		return
	}
	days := defaultContributionDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxContributionDays {
			writeError(w, http.StatusBadRequest, "bad_request",
				fmt.Errorf("%w: days must be between 1 and %d", ErrBadRequest, maxContributionDays))
			return
		}
		days = n
	}
	window, ok := h.widget.RecentContributions(r.Context(), name, days, h.clock.Now())
	if !ok {
		writeFailure(w, ErrNoData)
		return
	}
	total := 0
	for _, d := range window {
		total += d.Count
	}
	writeJSON(w, http.StatusOK, contributionsResponse{
		Username:      name,
		Days:          days,
		Total:         total,
		Contributions: window,
	})
}

func (h *UsersHandler) lastFetched(r *http.Request, name string) *time.Time {
	t, ok := h.coordinator.LastFetched(r.Context(), name)
	if !ok {
		return nil
	}
	return &t
}

func decodeUsername(r *http.Request) (usernameRequest, error) {
	var req usernameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return req, nil
}

// usernameParam validates the {username} path segment, writing a 400 on
// failure.
func usernameParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	name, err := model.NormalizeUsername(chi.URLParam(r, "username"))
	if err != nil {
		writeFailure(w, err)
		return "", false
	}
	return name, true
}

func forceParam(r *http.Request) bool {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	return force
}

func orNoData(err error) error {
	if err == nil || errors.Is(err, ErrNoData) {
		return ErrNoData
	}
	return err
}
