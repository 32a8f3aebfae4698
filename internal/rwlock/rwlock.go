// Package rwlock provides mutual-exclusion primitives whose acquisition is
// bounded by a timeout. Both types sit on golang.org/x/sync/semaphore, which
// serves waiters in FIFO order: a queued writer holds back later readers, so
// writers are never starved by a steady stream of readers.
package rwlock

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrTimeout is returned when a lock could not be obtained within the timeout.
var ErrTimeout = errors.New("rwlock: acquire timed out")

// maxReaders bounds concurrent shared holders of an RWMutex.
const maxReaders = 1 << 30

// RWMutex is a reader/writer lock with bounded-wait acquisition.
// The zero value is not usable; construct with NewRWMutex.
type RWMutex struct {
	sem *semaphore.Weighted
}

func NewRWMutex() *RWMutex {
	return &RWMutex{sem: semaphore.NewWeighted(maxReaders)}
}

// RLock acquires the lock in shared mode. The returned func releases it and
// must be called exactly once.
func (m *RWMutex) RLock(ctx context.Context, timeout time.Duration) (func(), error) {
	return acquire(ctx, m.sem, 1, timeout)
}

// Lock acquires the lock in exclusive mode.
func (m *RWMutex) Lock(ctx context.Context, timeout time.Duration) (func(), error) {
	return acquire(ctx, m.sem, maxReaders, timeout)
}

// Mutex is an exclusive lock with bounded-wait acquisition.
type Mutex struct {
	sem *semaphore.Weighted
}

func NewMutex() *Mutex {
	return &Mutex{sem: semaphore.NewWeighted(1)}
}

// Lock acquires the mutex. The returned func releases it.
func (m *Mutex) Lock(ctx context.Context, timeout time.Duration) (func(), error) {
	return acquire(ctx, m.sem, 1, timeout)
}

// TryLock acquires the mutex without waiting.
func (m *Mutex) TryLock() (func(), bool) {
	if !m.sem.TryAcquire(1) {
		return nil, false
	}
	return releaser(m.sem, 1), true
}

// acquire waits for n units of sem. A timeout <= 0 waits only on ctx.
// Cancellation of the parent ctx is reported as ctx.Err(); expiry of the
// local deadline as ErrTimeout.
func acquire(ctx context.Context, sem *semaphore.Weighted, n int64, timeout time.Duration) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sem.TryAcquire(n) {
		return releaser(sem, n), nil
	}

	wctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := sem.Acquire(wctx, n); err != nil {
		if perr := ctx.Err(); perr != nil {
			return nil, perr
		}
		return nil, ErrTimeout
	}
	return releaser(sem, n), nil
}

func releaser(sem *semaphore.Weighted, n int64) func() {
	released := false
	return func() {
		if released {
			return
		}
		released = true
		sem.Release(n)
	}
}
