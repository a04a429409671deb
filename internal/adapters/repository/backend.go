package repository

import (
	"context"
	"fmt"
)

// Supported backend names.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Backend selects and describes the KV medium.
type Backend struct {
	Name       string
	SQLitePath string
	Redis      RedisOptions
}

// Open builds the KV named by b.Name. An empty name selects SQLite.
func Open(ctx context.Context, b Backend) (KV, error) {
	switch b.Name {
	case "", BackendSQLite:
		return OpenSQLite(b.SQLitePath)
	case BackendRedis:
		return OpenRedis(ctx, b.Redis)
	case BackendMemory:
		return NewMemoryKV(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, b.Name)
	}
}
