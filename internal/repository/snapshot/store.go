package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/venuefinder/internal/db"
	"github.com/kailas-cloud/venuefinder/internal/domain"
	"github.com/kailas-cloud/venuefinder/internal/domain/filter"
	domsession "github.com/kailas-cloud/venuefinder/internal/domain/session"
	"github.com/kailas-cloud/venuefinder/internal/domain/venue"
)

var keyPrefix = domain.KeyPrefix + "session:"

// store is the consumer interface for snapshot operations (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Store persists session snapshots as JSON with the session idle TTL, so a
// snapshot expires together with the in-memory session it mirrors.
type Store struct {
	store store
	ttl   time.Duration
}

// New creates a snapshot store.
func New(s store, ttl time.Duration) *Store {
	return &Store{store: s, ttl: ttl}
}

// Save writes s. The candidate cache is never persisted.
func (s *Store) Save(ctx context.Context, sess *domsession.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("snapshot encode %s: %w", sess.ID, err)
	}
	if err := s.store.SetWithTTL(ctx, key(sess.ID), data, s.ttl); err != nil {
		return fmt.Errorf("snapshot SET %s: %w", sess.ID, err)
	}
	return nil
}

// Load returns the snapshot for id or domain.ErrSessionNotFound.
func (s *Store) Load(ctx context.Context, id string) (*domsession.Session, error) {
	data, err := s.store.Get(ctx, key(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("snapshot GET %s: %w", id, err)
	}

	var sess domsession.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("snapshot decode %s: %w", id, err)
	}
	if sess.Venues == nil {
		sess.Venues = venue.NewSet()
	}
	if sess.Filters.RadiusMiles <= 0 {
		sess.Filters.RadiusMiles = filter.DefaultRadiusMiles
	}
	return &sess, nil
}

// Delete removes the snapshot for id.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.store.Del(ctx, key(id)); err != nil {
		return fmt.Errorf("snapshot DEL %s: %w", id, err)
	}
	return nil
}

func key(id string) string {
	return keyPrefix + id
}
