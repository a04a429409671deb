package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/okian/leetstat/internal/adapters/graphql"
	"github.com/okian/leetstat/internal/adapters/repository"
	service "github.com/okian/leetstat/internal/app"
	"github.com/okian/leetstat/internal/config"
	"github.com/okian/leetstat/internal/domain/model"
	"github.com/okian/leetstat/internal/widget"
	"github.com/okian/leetstat/pkg/logger"
)

// ErrNoUsernames is returned when a mode needs at least one username.
var ErrNoUsernames = errors.New("no usernames given")

// Run executes one invocation and writes its report to out. now anchors
// the contribution window.
func Run(ctx context.Context, cfg *config.Config, opts Options, out io.Writer, now time.Time) error {
	if opts.Mode == "" {
		opts.Mode = ModeFetch
	}
	if opts.Days <= 0 {
		opts.Days = DefaultDays
	}
	if opts.Mode != ModeClear && len(opts.Usernames) == 0 {
		return ErrNoUsernames
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	log.Debug(ctx, "starting leetstat-cli",
		logger.String("mode", string(opts.Mode)),
		logger.Int("usernames", len(opts.Usernames)),
		logger.String("store", cfg.StoreBackend))

	kv, err := repository.Open(ctx, repository.Backend{
		Name:       cfg.StoreBackend,
		SQLitePath: cfg.SQLitePath,
		Redis: repository.RedisOptions{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		},
	})
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	defer func() {
		if err := kv.Close(); err != nil {
			log.Error(context.Background(), "failed to close store", logger.Error(err))
		}
	}()
	store := repository.NewStore(kv, repository.WithLogger(log))

	switch opts.Mode {
	case ModeClear:
		return runClear(ctx, store, opts, out)
	case ModeOffline:
		reader := widget.NewReader(store, log)
		reports := make([]Report, 0, len(opts.Usernames))
		for _, u := range opts.Usernames {
			reports = append(reports, offlineReport(ctx, reader, u, opts.Days, now))
		}
		return writeReports(out, reports, opts.JSON)
	}

	client, err := graphql.New(
		graphql.WithEndpoint(cfg.Endpoint),
		graphql.WithTimeout(cfg.UpstreamTimeout()),
		graphql.WithRateLimit(cfg.UpstreamRPS, cfg.UpstreamBurst),
		graphql.WithLogger(log),
	)
	if err != nil {
		return fmt.Errorf("upstream client: %w", err)
	}
	svc := service.New(client, store,
		service.WithLogger(log),
		service.WithStalenessThreshold(cfg.StalenessThreshold()),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithRefreshInterval(0),
	)

	if opts.Mode == ModeCompare {
		peers, err := svc.Compare(ctx, opts.Usernames)
		if err != nil {
			return err
		}
		return writePeers(out, peers, opts.JSON)
	}

	reports := make([]Report, 0, len(opts.Usernames))
	var failed []error
	for _, u := range opts.Usernames {
		r := fetchReport(ctx, svc, u, opts, now)
		if r.Error != "" {
			failed = append(failed, fmt.Errorf("%s: %s", u, r.Error))
		}
		reports = append(reports, r)
	}
	if err := writeReports(out, reports, opts.JSON); err != nil {
		return err
	}
	return errors.Join(failed...)
}

func runClear(ctx context.Context, store *repository.Store, opts Options, out io.Writer) error {
	if len(opts.Usernames) == 0 {
		if err := store.ClearAll(ctx); err != nil {
			return err
		}
		_, err := fmt.Fprintln(out, "cleared all cached records")
		return err
	}
	for _, u := range opts.Usernames {
		name, err := model.NormalizeUsername(u)
		if err != nil {
			return err
		}
		if err := store.Clear(ctx, name); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(out, "cleared %s\n", name); err != nil {
			return err
		}
	}
	return nil
}

// fetchReport runs cache-or-fetch for the pair and the profile. Whatever
// is in memory afterwards is reported, even when a refresh failed.
func fetchReport(ctx context.Context, svc *service.Service, username string, opts Options, now time.Time) Report {
	r := Report{Username: username}
	name, err := model.NormalizeUsername(username)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.Username = name

	err = errors.Join(
		svc.EnsureData(ctx, name, opts.Force),
		svc.EnsureProfile(ctx, name, opts.Force),
	)
	snap := svc.Snapshot(ctx, name)
	if snap.Empty() {
		if err == nil {
			err = service.ErrNotFound
		}
		r.Error = err.Error()
		return r
	}
	if err != nil {
		r.Error = err.Error()
	}
	r.Snapshot = &snap
	if snap.Calendar != nil {
		r.Recent = widget.Window(snap.Calendar.Contributions(), opts.Days, now)
		r.RecentTotal = sum(r.Recent)
	}
	return r
}

func offlineReport(ctx context.Context, reader *widget.Reader, username string, days int, now time.Time) Report {
	r := Report{Username: username}
	name, err := model.NormalizeUsername(username)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.Username = name

	snap := reader.Snapshot(ctx, name)
	if snap.Empty() {
		r.Error = "no cached data"
		return r
	}
	r.Snapshot = &snap
	if recent, ok := reader.RecentContributions(ctx, name, days, now); ok {
		r.Recent = recent
		r.RecentTotal = sum(recent)
	}
	return r
}

func sum(days []model.DailyContribution) int {
	total := 0
	for _, d := range days {
		total += d.Count
	}
	return total
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
