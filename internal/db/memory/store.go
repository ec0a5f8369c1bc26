// Package memory is an in-process db.Store for local runs and tests.
package memory

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/kailas-cloud/venuefinder/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Store keeps values in a go-cache with per-key expiry.
type Store struct {
	cache *cache.Cache
	incr  sync.Mutex
}

// NewStore creates an empty store that purges expired keys every cleanup interval.
func NewStore(cleanup time.Duration) *Store {
	return &Store{cache: cache.New(cache.NoExpiration, cleanup)}
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close drops all keys.
func (s *Store) Close() { s.cache.Flush() }

// WaitForReady returns immediately.
func (s *Store) WaitForReady(_ context.Context, _ time.Duration) error { return nil }

// Get retrieves a value by key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return slices.Clone(v.([]byte)), nil
}

// Set stores a value without expiry.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.cache.Set(key, slices.Clone(value), cache.NoExpiration)
	return nil
}

// SetWithTTL stores a value with an expiration.
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.cache.Set(key, slices.Clone(value), ttl)
	return nil
}

// Del deletes a key.
func (s *Store) Del(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

// Exists checks if a key exists.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	_, ok := s.cache.Get(key)
	return ok, nil
}

// Expire sets TTL on a key. When nx=true, only keys without expiry are touched.
func (s *Store) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	v, exp, ok := s.cache.GetWithExpiration(key)
	if !ok {
		return nil
	}
	if nx && !exp.IsZero() {
		return nil
	}
	s.cache.Set(key, v, ttl)
	return nil
}

// IncrBy adds val to the decimal counter at key, creating it at zero.
// The key keeps its expiry.
func (s *Store) IncrBy(_ context.Context, key string, val int64) error {
	s.incr.Lock()
	defer s.incr.Unlock()

	var cur int64
	exp := time.Duration(cache.NoExpiration)
	if v, at, ok := s.cache.GetWithExpiration(key); ok {
		n, err := strconv.ParseInt(string(v.([]byte)), 10, 64)
		if err != nil {
			return &db.Error{Op: db.OpIncrBy, Err: err}
		}
		cur = n
		if !at.IsZero() {
			exp = time.Until(at)
		}
	}
	s.cache.Set(key, []byte(strconv.FormatInt(cur+val, 10)), exp)
	return nil
}
