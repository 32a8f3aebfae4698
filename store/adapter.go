package store

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"

	"github.com/unkn0wn-root/datacache/internal/wire"
	"github.com/unkn0wn-root/datacache/provider"
)

type AdapterOptions struct {
	// Cost computes the admission cost passed to the provider. Defaults to
	// the framed size in bytes.
	Cost func(key string, frame []byte) int64
	// SweepInterval between index scans. 0 uses DefaultSweepInterval,
	// negative disables the sweeper.
	SweepInterval time.Duration
	// Clock overrides time.Now.
	Clock func() time.Time
}

type indexEntry struct {
	item     Item
	deadline time.Time
}

// Adapter turns a provider.Provider into a Store.
//
// Values are framed with their priority, deadline and sliding window so that
// expiry holds even on providers without per-entry TTL. Providers cannot
// enumerate keys or report evictions, so the adapter keeps a local index of
// the entries written through it; Range, dependency checks and removal
// callbacks only see those entries. A provider miss on an indexed entry
// before its deadline is reported as Underused.
type Adapter struct {
	p    provider.Provider
	cost func(string, []byte) int64
	now  func() time.Time

	mu     sync.Mutex
	index  map[string]*indexEntry
	closed bool

	// stripes serialize the provider write and the index update for a key,
	// keeping every value written through the adapter indexed
	stripes [64]sync.Mutex

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var _ Store = (*Adapter)(nil)

func NewAdapter(p provider.Provider, opts AdapterOptions) (*Adapter, error) {
	if p == nil {
		return nil, errors.New("store: nil provider")
	}
	a := &Adapter{
		p:      p,
		cost:   opts.Cost,
		now:    nowFunc(opts.Clock),
		index:  make(map[string]*indexEntry),
		stopCh: make(chan struct{}),
	}
	if a.cost == nil {
		a.cost = func(_ string, frame []byte) int64 { return int64(len(frame)) }
	}
	interval := opts.SweepInterval
	if interval == 0 {
		interval = DefaultSweepInterval
	}
	if interval > 0 {
		a.wg.Add(1)
		go a.sweeper(interval)
	}
	return a, nil
}

func (a *Adapter) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if a.isClosed() {
		return nil, false, ErrClosed
	}
	// snapshot the index before reading so a Set racing this read is never
	// mistaken for the entry being classified
	ie := a.lookup(key)
	raw, ok, err := a.p.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	now := a.now()

	if !ok {
		if ie != nil {
			if retired, _ := a.retire(ctx, key, ie, false); retired {
				reason := Underused
				if !ie.deadline.IsZero() && !now.Before(ie.deadline) {
					reason = Expired
				}
				removal{key: key, item: ie.item, reason: reason}.fire()
			}
		}
		return nil, false, nil
	}

	ent, derr := wire.Decode(raw)
	if derr != nil {
		err := errors.Mark(errors.Wrapf(derr, "store: decode %q", key), ErrCorrupt)
		retired, delErr := a.retire(ctx, key, ie, true)
		if retired && ie != nil {
			removal{key: key, item: ie.item, reason: Removed}.fire()
		}
		return nil, false, errors.CombineErrors(err, delErr)
	}

	if ent.Expired(now) {
		if retired, _ := a.retire(ctx, key, ie, true); retired && ie != nil {
			removal{key: key, value: ent.Payload, item: ie.item, reason: Expired}.fire()
		}
		return nil, false, nil
	}

	if ie != nil && ie.item.dependencyChanged() {
		if retired, _ := a.retire(ctx, key, ie, true); retired {
			removal{key: key, value: ent.Payload, item: ie.item, reason: DependencyChanged}.fire()
		}
		return nil, false, nil
	}

	if ie != nil && ent.Sliding > 0 && ent.Deadline.Sub(now) < ent.Sliding/2 {
		a.slide(ctx, key, ent, ie, now)
	}
	return bytes.Clone(ent.Payload), true, nil
}

// slide pushes a sliding entry's deadline forward. Refreshing only once half
// the window is gone keeps most reads free of a provider write.
func (a *Adapter) slide(ctx context.Context, key string, ent wire.Entry, ie *indexEntry, now time.Time) {
	mu := a.stripe(key)
	mu.Lock()
	defer mu.Unlock()
	if a.lookup(key) != ie {
		return
	}
	ent.Deadline = now.Add(ent.Sliding)
	frame := wire.Encode(ent)
	ok, err := a.p.Set(ctx, key, frame, a.cost(key, frame), ent.Sliding)
	if err != nil || !ok {
		return
	}
	a.mu.Lock()
	if a.index[key] == ie {
		ie.deadline = ent.Deadline
	}
	a.mu.Unlock()
}

func (a *Adapter) Set(ctx context.Context, key string, value []byte, item Item) (bool, error) {
	if err := item.validate(); err != nil {
		removal{item: item}.closeDependency()
		return false, err
	}
	if a.isClosed() {
		removal{item: item}.closeDependency()
		return false, ErrClosed
	}

	now := a.now()
	deadline := item.deadline(now)
	var ttl time.Duration
	if !deadline.IsZero() {
		ttl = deadline.Sub(now)
		if ttl <= 0 {
			removal{item: item}.closeDependency()
			return false, nil
		}
	}
	if item.dependencyChanged() {
		removal{item: item}.closeDependency()
		return false, nil
	}

	frame := wire.Encode(wire.Entry{
		Priority: byte(item.Priority),
		Deadline: deadline,
		Sliding:  item.SlidingExpiration,
		Payload:  value,
	})

	mu := a.stripe(key)
	mu.Lock()
	ok, err := a.p.Set(ctx, key, frame, a.cost(key, frame), ttl)
	if err != nil || !ok {
		mu.Unlock()
		removal{item: item}.closeDependency()
		return false, err
	}
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		mu.Unlock()
		removal{item: item}.closeDependency()
		return false, ErrClosed
	}
	old := a.index[key]
	a.index[key] = &indexEntry{item: item, deadline: deadline}
	a.mu.Unlock()
	mu.Unlock()

	if old != nil {
		removal{key: key, item: old.item, reason: Removed}.fire()
	}
	return true, nil
}

func (a *Adapter) Del(ctx context.Context, key string) error {
	if a.isClosed() {
		return ErrClosed
	}
	mu := a.stripe(key)
	mu.Lock()
	a.mu.Lock()
	ie, ok := a.index[key]
	if ok {
		delete(a.index, key)
	}
	a.mu.Unlock()
	err := a.p.Del(ctx, key)
	mu.Unlock()

	if ok {
		removal{key: key, item: ie.item, reason: Removed}.fire()
	}
	return err
}

// Range visits the indexed entries that are still present in the provider.
func (a *Adapter) Range(ctx context.Context, fn func(key string, value []byte) bool) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	keys := make([]string, 0, len(a.index))
	for k := range a.index {
		keys = append(keys, k)
	}
	a.mu.Unlock()

	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, ok, err := a.Get(ctx, k)
		if err != nil {
			if errors.Is(err, ErrCorrupt) {
				continue
			}
			return err
		}
		if ok && !fn(k, v) {
			return nil
		}
	}
	return nil
}

// Len returns the number of indexed entries.
func (a *Adapter) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.index)
}

// Close stops the sweeper, releases indexed entries with reason Removed and
// closes the provider. Values stay in the provider.
func (a *Adapter) Close(ctx context.Context) error {
	var err error
	a.once.Do(func() {
		close(a.stopCh)
		a.wg.Wait()

		a.mu.Lock()
		a.closed = true
		rs := make([]removal, 0, len(a.index))
		for k, ie := range a.index {
			rs = append(rs, removal{key: k, item: ie.item, reason: Removed})
		}
		a.index = nil
		a.mu.Unlock()
		fire(rs)

		err = a.p.Close(ctx)
	})
	return err
}

func (a *Adapter) sweeper(interval time.Duration) {
	defer a.wg.Done()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			a.Sweep(context.Background())
		case <-a.stopCh:
			return
		}
	}
}

// Sweep deletes indexed entries that expired or whose dependency changed.
// Providers that honour TTLs drop expired values themselves; the sweep also
// covers those that do not and fires the callbacks.
func (a *Adapter) Sweep(ctx context.Context) {
	type candidate struct {
		key string
		ie  *indexEntry
	}
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	now := a.now()
	var expiredKeys, deps []candidate
	for k, ie := range a.index {
		switch {
		case !ie.deadline.IsZero() && !now.Before(ie.deadline):
			expiredKeys = append(expiredKeys, candidate{k, ie})
		case ie.item.Dependency != nil:
			deps = append(deps, candidate{k, ie})
		}
	}
	a.mu.Unlock()

	// Get classifies and fires. A sliding entry refreshed by another process
	// comes back as a hit and stays.
	for _, c := range expiredKeys {
		_, _, _ = a.Get(ctx, c.key)
	}
	for _, c := range deps {
		if !c.ie.item.dependencyChanged() {
			continue
		}
		if retired, _ := a.retire(ctx, c.key, c.ie, true); !retired {
			continue
		}
		removal{key: c.key, item: c.ie.item, reason: DependencyChanged}.fire()
	}
}

func (a *Adapter) lookup(key string) *indexEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.index[key]
}

// retire unindexes ie and, with del, deletes the provider value, both under
// the key's write stripe. It does nothing once key maps to another entry,
// so a stale read never removes a newer write. A nil ie retires only while
// key is unindexed.
func (a *Adapter) retire(ctx context.Context, key string, ie *indexEntry, del bool) (bool, error) {
	mu := a.stripe(key)
	mu.Lock()
	defer mu.Unlock()
	if !a.unindex(key, ie) {
		return false, nil
	}
	if !del {
		return true, nil
	}
	return true, a.p.Del(ctx, key)
}

func (a *Adapter) stripe(key string) *sync.Mutex {
	return &a.stripes[xxhash.Sum64String(key)%uint64(len(a.stripes))]
}

// unindex drops key only if it still maps to ie.
func (a *Adapter) unindex(key string, ie *indexEntry) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.index[key] != ie {
		return false
	}
	if ie != nil {
		delete(a.index, key)
	}
	return true
}

func (a *Adapter) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}
