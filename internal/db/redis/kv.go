package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/venuefinder/internal/db"
)

// Get returns db.ErrKeyNotFound for a missing key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.do(ctx, s.b().Get().Key(key).Build()).AsBytes()
	switch {
	case rueidis.IsRedisNil(err):
		return nil, db.ErrKeyNotFound
	case err != nil:
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return data, nil
}

// Set stores value without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.exec(ctx, db.OpSet, s.b().Set().Key(key).Value(rueidis.BinaryString(value)).Build())
}

// SetWithTTL stores value with SET EX. Sub-second TTLs round up to one second.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := s.b().Set().Key(key).Value(rueidis.BinaryString(value)).Ex(wholeSeconds(ttl)).Build()
	return s.exec(ctx, db.OpSet, cmd)
}

func (s *Store) Del(ctx context.Context, key string) error {
	return s.exec(ctx, db.OpDel, s.b().Del().Key(key).Build())
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.do(ctx, s.b().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpExists, Err: err}
	}
	return n > 0, nil
}

// IncrBy adds val to an integer counter, creating it at zero.
func (s *Store) IncrBy(ctx context.Context, key string, val int64) error {
	return s.exec(ctx, db.OpIncrBy, s.b().Incrby().Key(key).Increment(val).Build())
}

// Expire sets a key TTL. With nx the TTL is applied only when the key has none.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error {
	secs := int64(wholeSeconds(ttl) / time.Second)
	if nx {
		return s.exec(ctx, db.OpExpire, s.b().Expire().Key(key).Seconds(secs).Nx().Build())
	}
	return s.exec(ctx, db.OpExpire, s.b().Expire().Key(key).Seconds(secs).Build())
}

func (s *Store) exec(ctx context.Context, op string, cmd rueidis.Completed) error {
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: op, Err: err}
	}
	return nil
}

func wholeSeconds(ttl time.Duration) time.Duration {
	if ttl < time.Second {
		return time.Second
	}
	return ttl.Truncate(time.Second)
}
