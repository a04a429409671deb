package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix namespaces the hashes this store owns.
const DefaultRedisKeyPrefix = "leetstat:"

// RedisKV stores each namespace as one Redis hash.
type RedisKV struct {
	client *redis.Client
	prefix string
}

// RedisOptions describes the Redis connection.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// OpenRedis connects to Redis and verifies the connection with PING.
func OpenRedis(ctx context.Context, opts RedisOptions) (*RedisKV, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", opts.Addr, err)
	}
	return NewRedisKV(client, opts.KeyPrefix), nil
}

// NewRedisKV wraps an existing client.
func NewRedisKV(client *redis.Client, prefix string) *RedisKV {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisKV{client: client, prefix: prefix}
}

func (r *RedisKV) key(namespace string) string {
	return r.prefix + namespace
}

// Get implements KV.
func (r *RedisKV) Get(ctx context.Context, namespace, field string) (string, bool, error) {
	v, err := r.client.HGet(ctx, r.key(namespace), field).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis hget %s/%s: %w", namespace, field, err)
	}
	return v, true, nil
}

// Apply implements KV with a MULTI/EXEC pipeline.
func (r *RedisKV) Apply(ctx context.Context, sets []Entry, deletes []Key) error {
	if len(sets) == 0 && len(deletes) == 0 {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range sets {
			pipe.HSet(ctx, r.key(e.Namespace), e.Field, e.Value)
		}
		for _, k := range deletes {
			pipe.HDel(ctx, r.key(k.Namespace), k.Field)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis apply: %w", err)
	}
	return nil
}

// Fields implements KV. Names are returned sorted.
func (r *RedisKV) Fields(ctx context.Context, namespace string) ([]string, error) {
	fields, err := r.client.HKeys(ctx, r.key(namespace)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hkeys %s: %w", namespace, err)
	}
	sort.Strings(fields)
	return fields, nil
}

// Drop implements KV.
func (r *RedisKV) Drop(ctx context.Context, namespaces ...string) error {
	if len(namespaces) == 0 {
		return nil
	}
	keys := make([]string, 0, len(namespaces))
	for _, ns := range namespaces {
		keys = append(keys, r.key(ns))
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis drop: %w", err)
	}
	return nil
}

// Close implements KV.
func (r *RedisKV) Close() error {
	return r.client.Close()
}
