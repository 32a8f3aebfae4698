// Package keylock maintains per-key exclusive locks that are created lazily
// and reclaimed when the last holder releases them.
//
// The table itself is guarded by a bounded-wait reader/writer lock. Acquire
// looks the key up under the shared lock and only escalates to the exclusive lock to
// insert a missing handle (double-checked creation). Each handle carries a
// reference count so a handle is never dropped from the table while another
// caller still holds or waits on it.
package keylock

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/datacache/internal/rwlock"
)

type result[T any] struct {
	v  T
	ok bool
}

// Handle is the per-key lock. Besides mutual exclusion it carries the result
// last published by a holder, so callers that queued behind a regeneration
// can reuse its outcome instead of repeating it.
type Handle[T any] struct {
	mu    *rwlock.Mutex
	refs  atomic.Int64
	epoch atomic.Uint64
	res   atomic.Pointer[result[T]]
}

// Lock acquires the handle exclusively within timeout.
func (h *Handle[T]) Lock(ctx context.Context, timeout time.Duration) (func(), error) {
	return h.mu.Lock(ctx, timeout)
}

// Epoch increases by one on every Publish. Capture it before Lock and compare
// afterwards to learn whether a result was published while waiting.
func (h *Handle[T]) Epoch() uint64 { return h.epoch.Load() }

// Publish records the outcome of a regeneration. Must be called while holding the lock.
func (h *Handle[T]) Publish(v T, ok bool) {
	h.res.Store(&result[T]{v: v, ok: ok})
	h.epoch.Add(1)
}

// Result returns the last published outcome.
func (h *Handle[T]) Result() (T, bool) {
	r := h.res.Load()
	if r == nil {
		var zero T
		return zero, false
	}
	return r.v, r.ok
}

// Registry maps keys to handles.
type Registry[T any] struct {
	mu      *rwlock.RWMutex
	timeout time.Duration
	locks   map[string]*Handle[T]
}

func New[T any](timeout time.Duration) *Registry[T] {
	return &Registry[T]{
		mu:      rwlock.NewRWMutex(),
		timeout: timeout,
		locks:   make(map[string]*Handle[T]),
	}
}

// Acquire returns the handle for key, creating it if absent, and takes a
// reference on it. Every successful Acquire must be paired with Release.
// Fails with rwlock.ErrTimeout when the table lock is not obtained in time.
func (r *Registry[T]) Acquire(ctx context.Context, key string) (*Handle[T], error) {
	unlock, err := r.mu.RLock(ctx, r.timeout)
	if err != nil {
		return nil, err
	}
	h, ok := r.locks[key]
	if ok {
		h.refs.Add(1)
	}
	unlock()
	if ok {
		return h, nil
	}

	unlock, err = r.mu.Lock(ctx, r.timeout)
	if err != nil {
		return nil, err
	}
	defer unlock()
	h, ok = r.locks[key]
	if !ok {
		h = &Handle[T]{mu: rwlock.NewMutex()}
		r.locks[key] = h
	}
	h.refs.Add(1)
	return h, nil
}

// Release drops the reference taken by Acquire and removes the table entry
// once no references remain. If the table lock times out the entry stays
// with zero references; the next Acquire reuses it and the next Release
// reclaims it, so the table cannot grow without bound.
func (r *Registry[T]) Release(ctx context.Context, key string, h *Handle[T]) error {
	if h.refs.Add(-1) > 0 {
		return nil
	}
	unlock, err := r.mu.Lock(ctx, r.timeout)
	if err != nil {
		return err
	}
	defer unlock()
	if cur, ok := r.locks[key]; ok && cur == h && h.refs.Load() == 0 {
		delete(r.locks, key)
	}
	return nil
}

// Len reports the number of handles currently in the table.
func (r *Registry[T]) Len(ctx context.Context) (int, error) {
	unlock, err := r.mu.RLock(ctx, r.timeout)
	if err != nil {
		return 0, err
	}
	defer unlock()
	return len(r.locks), nil
}
