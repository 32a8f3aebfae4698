package store

import (
	"bytes"
	"context"
	"sync"
	"time"
)

// DefaultSweepInterval is how often Memory and Adapter scan for expired and
// invalidated entries when no interval is configured.
const DefaultSweepInterval = time.Minute

type MemoryOptions struct {
	// MaxEntries caps the entry count. 0 means unlimited. When a write
	// exceeds the cap the entry with the lowest priority is evicted, oldest
	// access first; NotRemovable entries are never chosen.
	MaxEntries int
	// SweepInterval between background scans. 0 uses DefaultSweepInterval,
	// a negative value disables the sweeper (expiry is then checked on read
	// and on capacity pressure only).
	SweepInterval time.Duration
	// Clock overrides time.Now.
	Clock func() time.Time
}

type memEntry struct {
	value    []byte
	item     Item
	deadline time.Time
	touched  uint64
}

// Memory is an in-process Store.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*memEntry
	seq     uint64
	closed  bool

	maxEntries int
	now        func() time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var _ Store = (*Memory)(nil)

func NewMemory(opts MemoryOptions) *Memory {
	m := &Memory{
		entries:    make(map[string]*memEntry),
		maxEntries: opts.MaxEntries,
		now:        nowFunc(opts.Clock),
		stopCh:     make(chan struct{}),
	}
	interval := opts.SweepInterval
	if interval == 0 {
		interval = DefaultSweepInterval
	}
	if interval > 0 {
		m.wg.Add(1)
		go m.sweeper(interval)
	}
	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, false, ErrClosed
	}
	e, ok := m.entries[key]
	if !ok {
		m.mu.Unlock()
		return nil, false, nil
	}
	now := m.now()
	if expired(e, now) {
		delete(m.entries, key)
		m.mu.Unlock()
		removal{key: key, value: e.value, item: e.item, reason: Expired}.fire()
		return nil, false, nil
	}
	m.mu.Unlock()

	// dependency checks may block on I/O; keep them outside the lock
	if e.item.dependencyChanged() {
		if m.evictIf(key, e) {
			removal{key: key, value: e.value, item: e.item, reason: DependencyChanged}.fire()
		}
		return nil, false, nil
	}

	m.mu.Lock()
	if cur := m.entries[key]; cur == e {
		if e.item.SlidingExpiration > 0 {
			e.deadline = now.Add(e.item.SlidingExpiration)
		}
		m.seq++
		e.touched = m.seq
	}
	m.mu.Unlock()
	return bytes.Clone(e.value), true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, item Item) (bool, error) {
	if err := item.validate(); err != nil {
		removal{item: item}.closeDependency()
		return false, err
	}
	now := m.now()
	e := &memEntry{value: bytes.Clone(value), item: item, deadline: item.deadline(now)}
	if expired(e, now) || item.dependencyChanged() {
		removal{item: item}.closeDependency()
		return false, nil
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		removal{item: item}.closeDependency()
		return false, ErrClosed
	}
	var rs []removal
	if old, ok := m.entries[key]; ok {
		rs = append(rs, removal{key: key, value: old.value, item: old.item, reason: Removed})
	}
	m.seq++
	e.touched = m.seq
	m.entries[key] = e

	stored := true
	if m.maxEntries > 0 && len(m.entries) > m.maxEntries {
		var evicted []removal
		evicted, stored = m.shrinkLocked(key, now)
		rs = append(rs, evicted...)
	}
	m.mu.Unlock()

	fire(rs)
	if !stored {
		// never observable, so no callback
		removal{item: item}.closeDependency()
	}
	return stored, nil
}

// shrinkLocked brings the map back under maxEntries. Expired entries go
// first, then the lowest priority with the oldest access. It reports false
// when the entry just written under key had to be dropped itself.
func (m *Memory) shrinkLocked(key string, now time.Time) ([]removal, bool) {
	var rs []removal
	for k, e := range m.entries {
		if expired(e, now) {
			delete(m.entries, k)
			rs = append(rs, removal{key: k, value: e.value, item: e.item, reason: Expired})
		}
	}
	if _, ok := m.entries[key]; !ok {
		return rs, false
	}

	for len(m.entries) > m.maxEntries {
		vk, victim := "", (*memEntry)(nil)
		for k, e := range m.entries {
			if e.item.Priority >= PriorityNotRemovable {
				continue
			}
			if victim == nil || e.item.Priority < victim.item.Priority ||
				(e.item.Priority == victim.item.Priority && e.touched < victim.touched) {
				vk, victim = k, e
			}
		}
		if victim == nil {
			// everything left is pinned
			return rs, true
		}
		delete(m.entries, vk)
		if vk == key {
			return rs, false
		}
		rs = append(rs, removal{key: vk, value: victim.value, item: victim.item, reason: Underused})
	}
	return rs, true
}

func (m *Memory) Del(_ context.Context, key string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	e, ok := m.entries[key]
	if ok {
		delete(m.entries, key)
	}
	m.mu.Unlock()
	if ok {
		removal{key: key, value: e.value, item: e.item, reason: Removed}.fire()
	}
	return nil
}

// Range visits a snapshot of the live entries. It does not extend sliding
// windows.
func (m *Memory) Range(ctx context.Context, fn func(key string, value []byte) bool) error {
	type kv struct {
		k string
		v []byte
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	now := m.now()
	snap := make([]kv, 0, len(m.entries))
	for k, e := range m.entries {
		if !expired(e, now) {
			snap = append(snap, kv{k, e.value})
		}
	}
	m.mu.Unlock()

	for _, p := range snap {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(p.k, bytes.Clone(p.v)) {
			return nil
		}
	}
	return nil
}

// Len returns the number of entries held, including ones that expired but
// have not been swept yet.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close stops the sweeper and removes every entry with reason Removed.
func (m *Memory) Close(context.Context) error {
	m.once.Do(func() {
		close(m.stopCh)
		m.wg.Wait()

		m.mu.Lock()
		m.closed = true
		rs := make([]removal, 0, len(m.entries))
		for k, e := range m.entries {
			rs = append(rs, removal{key: k, value: e.value, item: e.item, reason: Removed})
		}
		m.entries = nil
		m.mu.Unlock()
		fire(rs)
	})
	return nil
}

func (m *Memory) sweeper(interval time.Duration) {
	defer m.wg.Done()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			m.Sweep()
		case <-m.stopCh:
			return
		}
	}
}

// Sweep removes expired entries and entries whose dependency changed.
func (m *Memory) Sweep() {
	type candidate struct {
		key string
		e   *memEntry
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	now := m.now()
	var rs []removal
	var deps []candidate
	for k, e := range m.entries {
		switch {
		case expired(e, now):
			delete(m.entries, k)
			rs = append(rs, removal{key: k, value: e.value, item: e.item, reason: Expired})
		case e.item.Dependency != nil:
			deps = append(deps, candidate{k, e})
		}
	}
	m.mu.Unlock()
	fire(rs)

	for _, c := range deps {
		if c.e.item.dependencyChanged() && m.evictIf(c.key, c.e) {
			removal{key: c.key, value: c.e.value, item: c.e.item, reason: DependencyChanged}.fire()
		}
	}
}

// evictIf deletes key only if it still maps to e.
func (m *Memory) evictIf(key string, e *memEntry) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries[key] != e {
		return false
	}
	delete(m.entries, key)
	return true
}

func expired(e *memEntry, now time.Time) bool {
	return !e.deadline.IsZero() && !now.Before(e.deadline)
}
