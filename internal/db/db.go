// Package db holds the storage contracts shared by the Postgres and Valkey adapters.
// Postgres keeps memos, chunk embeddings and chat exchanges; Valkey keeps the
// embedding cache and plan usage counters.
package db

import (
	"context"
	"time"
)

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Cache stores opaque values with expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Counters maintains expiring integer counters.
type Counters interface {
	Get(ctx context.Context, key string) ([]byte, error)
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// KVStore is the full key-value surface of the Valkey adapter.
type KVStore interface {
	Cache
	Counters
}
