// Package db abstracts the key-value backend behind session snapshots, the
// place cache and token budget counters.
package db

import (
	"context"
	"time"
)

// Store is the backend facade: Valkey/Redis in production, memory locally.
type Store interface {
	Pinger
	KVStore
	Counter
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides byte-value operations. Get returns ErrKeyNotFound for a
// missing or expired key.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Counter provides atomic integer counters stored as decimal strings, so
// Get on a counter key returns its value.
type Counter interface {
	IncrBy(ctx context.Context, key string, val int64) error
}
