// Package budget persists language model token counters.
package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/venuefinder/internal/db"
)

// store is the consumer interface for counter operations.
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Store keeps per-period token counters. Keys carry their period as a
// ":daily:" or ":monthly:" segment, which selects the retention.
type Store struct {
	store    store
	dailyTTL time.Duration
	monthTTL time.Duration
}

// New creates a counter store. Retention must outlive the period so that a
// restart near the boundary still sees the counter (48h and 62 days in serve).
func New(s store, dailyTTL, monthTTL time.Duration) *Store {
	return &Store{store: s, dailyTTL: dailyTTL, monthTTL: monthTTL}
}

// IncrBy adds val to the counter. Retention is set on first write only, so
// the key expires relative to its period start.
func (s *Store) IncrBy(ctx context.Context, key string, val int64) error {
	if err := s.store.IncrBy(ctx, key, val); err != nil {
		return fmt.Errorf("budget counter %s: %w", key, err)
	}
	if err := s.store.Expire(ctx, key, s.retention(key), true); err != nil {
		return fmt.Errorf("budget retention %s: %w", key, err)
	}
	return nil
}

// Get returns the counter value, 0 when the key does not exist.
func (s *Store) Get(ctx context.Context, key string) (int64, error) {
	raw, err := s.store.Get(ctx, key)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("budget counter %s: %w", key, err)
	}

	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("budget counter %s: malformed value: %w", key, err)
	}
	return n, nil
}

func (s *Store) retention(key string) time.Duration {
	if strings.Contains(key, ":daily:") {
		return s.dailyTTL
	}
	return s.monthTTL
}
