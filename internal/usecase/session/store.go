package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/kailas-cloud/venuefinder/internal/domain"
	domsession "github.com/kailas-cloud/venuefinder/internal/domain/session"
	"github.com/kailas-cloud/venuefinder/internal/metrics"
)

// Defaults.
const (
	DefaultIdleTTL     = time.Hour
	DefaultLockTimeout = 5 * time.Second
	// LockRetryAfter is the hint returned with a lock timeout.
	LockRetryAfter = time.Second

	persistTimeout = 2 * time.Second
)

// Config tunes the store.
type Config struct {
	IdleTTL         time.Duration
	LockTimeout     time.Duration
	CreateOnUnknown bool
}

func (c *Config) applyDefaults() {
	if c.IdleTTL <= 0 {
		c.IdleTTL = DefaultIdleTTL
	}
	if c.LockTimeout <= 0 {
		c.LockTimeout = DefaultLockTimeout
	}
}

// entry is the in-memory slot of one session. current always points at a
// fully committed value; inflight is guarded by Store.mu.
type entry struct {
	lock     fifoLock
	current  atomic.Pointer[domsession.Session]
	deleted  atomic.Bool
	inflight int
}

// Store owns every live session. Each session is mutated only inside
// WithSession, under that session's FIFO lock; different sessions never
// contend. Idle sessions expire after IdleTTL unless a turn is in flight.
type Store struct {
	mu        sync.Mutex
	sessions  *cache.Cache
	cfg       Config
	snapshots SnapshotRepository
	now       func() time.Time
	logger    *zap.Logger
}

// New creates a store. snapshots can be nil.
func New(cfg Config, snapshots SnapshotRepository, logger *zap.Logger) *Store {
	cfg.applyDefaults()
	s := &Store{
		sessions:  cache.New(cfg.IdleTTL, cleanupInterval(cfg.IdleTTL)),
		cfg:       cfg,
		snapshots: snapshots,
		now:       time.Now,
		logger:    logger,
	}
	s.sessions.OnEvicted(s.onEvicted)
	return s
}

// WithSession runs fn on a working copy of the session and installs the copy
// only if fn returns nil. An empty id starts a new session. The returned id
// is the session the call operated on.
func (s *Store) WithSession(ctx context.Context, id string, fn func(*domsession.Session) error) (string, error) {
	create := s.cfg.CreateOnUnknown
	if id == "" {
		id = uuid.NewString()
		create = true
	}
	return id, s.withSession(ctx, id, create, fn)
}

// Get returns a copy of the last committed state.
func (s *Store) Get(ctx context.Context, id string) (*domsession.Session, error) {
	e, err := s.acquire(ctx, id, false, false)
	if err != nil {
		return nil, err
	}
	if e.deleted.Load() {
		return nil, domain.ErrSessionNotFound
	}
	return e.current.Load().Clone(), nil
}

// Reset starts a new conversation under the same id. Standing preferences
// are kept and become the initial filters.
func (s *Store) Reset(ctx context.Context, id string) error {
	return s.withSession(ctx, id, false, func(w *domsession.Session) error {
		*w = *w.Restart(s.now())
		return nil
	})
}

// Delete drops the session from memory and from the snapshot store. It waits
// for the session lock so an in-flight commit cannot rewrite the snapshot
// after it is removed.
func (s *Store) Delete(ctx context.Context, id string) error {
	e, err := s.acquire(ctx, id, false, true)
	if err != nil {
		return err
	}
	defer s.release(id, e)

	unlock, err := s.lock(ctx, id, e)
	if err != nil {
		return err
	}
	defer unlock()

	if e.deleted.Swap(true) {
		return domain.ErrSessionNotFound
	}
	s.mu.Lock()
	if v, found := s.sessions.Get(id); found && v.(*entry) == e {
		s.sessions.Delete(id)
	}
	s.mu.Unlock()

	if s.snapshots != nil {
		if err := s.snapshots.Delete(ctx, id); err != nil {
			s.logger.Warn("Failed to delete session snapshot", zap.String("session_id", id), zap.Error(err))
		}
	}
	s.updateGauge()
	return nil
}

// Len returns the number of sessions held in memory.
func (s *Store) Len() int {
	return s.sessions.ItemCount()
}

func (s *Store) withSession(ctx context.Context, id string, create bool, fn func(*domsession.Session) error) error {
	e, err := s.acquire(ctx, id, create, true)
	if err != nil {
		return err
	}
	defer s.release(id, e)

	unlock, err := s.lock(ctx, id, e)
	if err != nil {
		return err
	}
	defer unlock()

	if e.deleted.Load() {
		return domain.ErrSessionNotFound
	}

	work := e.current.Load().Clone()
	if err := fn(work); err != nil {
		return err
	}
	if e.deleted.Load() {
		return domain.ErrSessionNotFound
	}
	work.ID = id
	work.UpdatedAt = s.now()
	e.current.Store(work)

	s.persist(ctx, work)
	return nil
}

// lock takes the session's FIFO lock. A timeout is retryable.
func (s *Store) lock(ctx context.Context, id string, e *entry) (func(), error) {
	start := time.Now()
	if err := e.lock.Lock(ctx, s.cfg.LockTimeout); err != nil {
		if errors.Is(err, domain.ErrSessionLockTimeout) {
			s.logger.Warn("Session lock timeout",
				zap.String("session_id", id),
				zap.Duration("waited", time.Since(start)),
			)
			return nil, domain.NewRetryable(fmt.Errorf("session %s: %w", id, err), LockRetryAfter)
		}
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	metrics.SessionLockWait.Observe(time.Since(start).Seconds())
	return e.lock.Unlock, nil
}

// acquire finds or creates the entry for id. With pin set the entry is
// exempt from expiry until the matching release.
func (s *Store) acquire(ctx context.Context, id string, create, pin bool) (*entry, error) {
	if e, ok := s.lookup(id, pin); ok {
		return e, nil
	}

	sess := s.loadSnapshot(ctx, id)
	if sess == nil {
		if !create {
			return nil, domain.ErrSessionNotFound
		}
		sess = domsession.New(id, s.now())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if v, found := s.sessions.Get(id); found {
		e := v.(*entry)
		s.touchLocked(id, e, pin)
		return e, nil
	}
	e := &entry{}
	e.current.Store(sess)
	s.touchLocked(id, e, pin)
	metrics.ActiveSessions.Set(float64(s.sessions.ItemCount()))
	return e, nil
}

func (s *Store) lookup(id string, pin bool) (*entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, found := s.sessions.Get(id)
	if !found {
		return nil, false
	}
	e := v.(*entry)
	s.touchLocked(id, e, pin)
	return e, true
}

func (s *Store) touchLocked(id string, e *entry, pin bool) {
	if pin {
		e.inflight++
	}
	if e.inflight > 0 {
		s.sessions.Set(id, e, cache.NoExpiration)
		return
	}
	s.sessions.SetDefault(id, e)
}

func (s *Store) release(id string, e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.inflight--
	if e.inflight > 0 || e.deleted.Load() {
		return
	}
	if v, found := s.sessions.Get(id); found && v.(*entry) == e {
		s.sessions.SetDefault(id, e)
	}
}

func (s *Store) loadSnapshot(ctx context.Context, id string) *domsession.Session {
	if s.snapshots == nil {
		return nil
	}
	sess, err := s.snapshots.Load(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrSessionNotFound) {
			s.logger.Warn("Failed to load session snapshot", zap.String("session_id", id), zap.Error(err))
		}
		return nil
	}
	s.logger.Debug("Session restored from snapshot", zap.String("session_id", id))
	return sess
}

// persist writes a best-effort snapshot; failures never fail the turn.
func (s *Store) persist(ctx context.Context, sess *domsession.Session) {
	if s.snapshots == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.snapshots.Save(ctx, sess); err != nil {
		s.logger.Warn("Failed to save session snapshot", zap.String("session_id", sess.ID), zap.Error(err))
	}
}

func (s *Store) onEvicted(id string, _ any) {
	s.logger.Debug("Session evicted", zap.String("session_id", id))
	s.updateGauge()
}

func (s *Store) updateGauge() {
	metrics.ActiveSessions.Set(float64(s.sessions.ItemCount()))
}

func cleanupInterval(ttl time.Duration) time.Duration {
	return max(ttl/6, time.Second)
}
