package ledger

import (
	"context"
	"sync"
	"time"

	"feeledger/internal/core"
)

// keyedLocks serializes work per entity id. Each id gets a one-slot channel
// acting as a semaphore; acquisition waits at most the configured timeout
// before giving up with core.ErrBusy.
type keyedLocks struct {
	mu      sync.Mutex
	slots   map[int64]chan struct{}
	timeout time.Duration
}

func newKeyedLocks(timeout time.Duration) *keyedLocks {
	return &keyedLocks{
		slots:   make(map[int64]chan struct{}),
		timeout: timeout,
	}
}

func (l *keyedLocks) slot(id int64) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[id]
	if !ok {
		s = make(chan struct{}, 1)
		l.slots[id] = s
	}
	return s
}

// acquire takes the lock for id, returning a release func. It fails with
// core.ErrBusy when the holder does not release within the timeout, and with
// the context error when ctx ends first.
func (l *keyedLocks) acquire(ctx context.Context, id int64) (func(), error) {
	s := l.slot(id)

	select {
	case s <- struct{}{}:
		return func() { <-s }, nil
	default:
	}

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	select {
	case s <- struct{}{}:
		return func() { <-s }, nil
	case <-timer.C:
		return nil, core.ErrBusy
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
