package session

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/kailas-cloud/venuefinder/internal/domain"
)

// fifoLock is a mutex whose waiters acquire it strictly in arrival order.
// Ownership is handed directly to the next waiter on Unlock.
type fifoLock struct {
	mu      sync.Mutex
	held    bool
	waiters []chan struct{}
}

// Lock waits at most timeout. It returns domain.ErrSessionLockTimeout on
// timeout or ctx.Err() on cancellation.
func (l *fifoLock) Lock(ctx context.Context, timeout time.Duration) error {
	l.mu.Lock()
	if !l.held {
		l.held = true
		l.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	l.waiters = append(l.waiters, ch)
	l.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var err error
	select {
	case <-ch:
		return nil
	case <-timer.C:
		err = domain.ErrSessionLockTimeout
	case <-ctx.Done():
		err = ctx.Err()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	select {
	case <-ch:
		// Handed over while giving up: pass it on.
		l.release()
	default:
		l.waiters = slices.DeleteFunc(l.waiters, func(w chan struct{}) bool { return w == ch })
	}
	return err
}

// Unlock releases the lock or hands it to the oldest waiter.
func (l *fifoLock) Unlock() {
	l.mu.Lock()
	l.release()
	l.mu.Unlock()
}

func (l *fifoLock) release() {
	if len(l.waiters) == 0 {
		l.held = false
		return
	}
	next := l.waiters[0]
	l.waiters = l.waiters[1:]
	close(next)
}
