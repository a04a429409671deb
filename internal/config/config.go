// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Loading functions accept context.Context as the first parameter.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Endpoint is the upstream GraphQL URL.
	Endpoint string `koanf:"endpoint"`

	// UpstreamTimeoutMS bounds a single upstream request.
	UpstreamTimeoutMS int `koanf:"upstream_timeout_ms"`

	// UpstreamRPS and UpstreamBurst pace outgoing requests. RPS <= 0 disables pacing.
	UpstreamRPS   float64 `koanf:"upstream_rps"`
	UpstreamBurst int     `koanf:"upstream_burst"`

	// StalenessThresholdSec is the age after which cached data is refetched.
	StalenessThresholdSec int `koanf:"staleness_threshold_sec"`

	// StoreBackend selects the persistent cache: sqlite, redis or memory.
	StoreBackend string `koanf:"store_backend"`
	SQLitePath   string `koanf:"sqlite_path"`

	RedisAddr      string `koanf:"redis_addr"`
	RedisPassword  string `koanf:"redis_password"`
	RedisDB        int    `koanf:"redis_db"`
	RedisKeyPrefix string `koanf:"redis_key_prefix"`

	// RefreshIntervalSec schedules background refreshes of saved usernames.
	// Zero disables the scheduler.
	RefreshIntervalSec int `koanf:"refresh_interval_sec"`

	// WorkerCount sets the number of refresh workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the in-memory refresh queue.
	QueueSize int `koanf:"queue_size"`

	// CORSAllowedOrigins is a comma separated list; "*" allows any origin.
	CORSAllowedOrigins string `koanf:"cors_allowed_origins"`

	// SavedUsernames seeds the saved list on first start (comma separated).
	SavedUsernames  string `koanf:"saved_usernames"`
	PrimaryUsername string `koanf:"primary_username"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		Addr:                  ":9080",
		Endpoint:              "https://leetcode.com/graphql",
		UpstreamTimeoutMS:     60_000,
		UpstreamRPS:           2,
		UpstreamBurst:         4,
		StalenessThresholdSec: 3600,
		StoreBackend:          "sqlite",
		SQLitePath:            "leetstat.db",
		RedisAddr:             "localhost:6379",
		RedisKeyPrefix:        "leetstat:",
		RefreshIntervalSec:    900,
		WorkerCount:           2,
		QueueSize:             1024,
		CORSAllowedOrigins:    "*",
	}
}

// UpstreamTimeout returns the per-request upstream timeout.
func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.UpstreamTimeoutMS) * time.Millisecond
}

// StalenessThreshold returns the freshness threshold.
func (c *Config) StalenessThreshold() time.Duration {
	return time.Duration(c.StalenessThresholdSec) * time.Second
}

// RefreshInterval returns the scheduler interval; zero means disabled.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSec) * time.Second
}

// AllowedOrigins splits CORSAllowedOrigins.
func (c *Config) AllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

// Seed returns the saved usernames to seed the directory with.
func (c *Config) Seed() []string {
	return splitList(c.SavedUsernames)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Endpoint == "":
		return fmt.Errorf("%w: endpoint must not be empty", ErrInvalidConfig)
	case c.UpstreamTimeoutMS <= 0:
		return fmt.Errorf("%w: upstream_timeout_ms must be positive", ErrInvalidConfig)
	case c.StalenessThresholdSec <= 0:
		return fmt.Errorf("%w: staleness_threshold_sec must be positive", ErrInvalidConfig)
	case c.RefreshIntervalSec < 0:
		return fmt.Errorf("%w: refresh_interval_sec must not be negative", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	}
	switch c.StoreBackend {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("%w: unknown store_backend %q", ErrInvalidConfig, c.StoreBackend)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
