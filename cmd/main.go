package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/leetstat/internal/adapters/accounts"
	"github.com/okian/leetstat/internal/adapters/graphql"
	"github.com/okian/leetstat/internal/adapters/http/api"
	"github.com/okian/leetstat/internal/adapters/http/swagger"
	"github.com/okian/leetstat/internal/adapters/repository"
	service "github.com/okian/leetstat/internal/app"
	"github.com/okian/leetstat/internal/config"
	"github.com/okian/leetstat/internal/widget"
	"github.com/okian/leetstat/pkg/logger"
	"github.com/okian/leetstat/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 90 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Initialize logging
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> .env -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, loggerInstance); err != nil {
		loggerInstance.Error(ctx, "leetstat stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

// application holds the wired components of the server.
type application struct {
	kv      repository.KV
	svc     *service.Service
	handler http.Handler
}

// build wires storage, upstream client, coordinator and HTTP routes.
func build(ctx context.Context, cfg *config.Config, log logger.Logger) (*application, error) {
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
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}

	client, err := graphql.New(
		graphql.WithEndpoint(cfg.Endpoint),
		graphql.WithTimeout(cfg.UpstreamTimeout()),
		graphql.WithRateLimit(cfg.UpstreamRPS, cfg.UpstreamBurst),
		graphql.WithLogger(log.Named("graphql")),
	)
	if err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("upstream client: %w", err)
	}

	directory := accounts.New(kv)
	if err := directory.Seed(ctx, cfg.Seed(), cfg.PrimaryUsername); err != nil {
		log.Warn(ctx, "could not seed saved usernames", logger.Error(err))
	}

	store := repository.NewStore(kv, repository.WithLogger(log.Named("store")))
	svc := service.New(client, store,
		service.WithLogger(log.Named("coordinator")),
		service.WithDirectory(directory),
		service.WithStalenessThreshold(cfg.StalenessThreshold()),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithRefreshInterval(cfg.RefreshInterval()),
	)
	svc.Initialize(ctx)

	server := api.NewServer(api.Dependencies{
		Coordinator: svc,
		Accounts:    directory,
		Widget:      widget.NewReader(store, log.Named("widget")),
		Stats:       svc,
	},
		api.WithLogger(log.Named("http")),
		api.WithAllowedOrigins(cfg.AllowedOrigins()),
		api.WithExtraRoutes(func(r api.Router) { swagger.Register(ctx, r) }),
	)

	return &application{kv: kv, svc: svc, handler: server.Handler(ctx)}, nil
}

func (a *application) close(ctx context.Context) error {
	err := a.svc.Stop(ctx)
	if cerr := a.kv.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// run serves HTTP until ctx is cancelled, then shuts everything down.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	app, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	if err := app.svc.Start(ctx); err != nil {
		_ = app.close(ctx)
		return fmt.Errorf("start refresher: %w", err)
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, app.svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("store", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			_ = app.close(context.Background())
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	if err := app.close(shutdownCtx); err != nil {
		log.Error(ctx, "component shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics updates service-level metrics.
func updateServiceMetrics(svc *service.Service) {
	// GetStats refreshes the tracked-users gauge itself.
	stats := svc.GetStats()

	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
}
