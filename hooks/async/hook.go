// Package asynchook moves datacache.Hooks calls off the hot path.
//
// Events go through a bounded queue served by a fixed set of workers. When
// the queue is full the event is dropped and counted; the cache never waits
// on a slow sink.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{SelfHealEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := datacache.New[User](datacache.Options[User]{
//	    Namespace: "app:prod:user",
//	    Store:     st,
//	    Codec:     codec.JSON[User]{},
//	    Hooks:     hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/datacache"
)

type Hooks struct {
	inner   datacache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ datacache.Hooks = (*Hooks)(nil)

func New(inner datacache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events sent after Close
// are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) StoreRejected(k string)     { h.try(func() { h.inner.StoreRejected(k) }) }
func (h *Hooks) SelfHeal(k, r string)       { h.try(func() { h.inner.SelfHeal(k, r) }) }
func (h *Hooks) LockTimeout(k, lock string) { h.try(func() { h.inner.LockTimeout(k, lock) }) }
func (h *Hooks) RegenerationFailed(k string, err error) {
	h.try(func() { h.inner.RegenerationFailed(k, err) })
}
func (h *Hooks) ItemRemoved(k string, r datacache.RemovedReason) {
	h.try(func() { h.inner.ItemRemoved(k, r) })
}
