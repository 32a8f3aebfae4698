package datacache

import (
	"context"
	"time"

	"github.com/unkn0wn-root/datacache/internal/rwlock"
)

// dictionary is the secondary tier: one map behind one reader/writer lock.
// Reads share the lock; every mutation holds it exclusively, so readers
// never observe a partial write.
type dictionary[V any] struct {
	mu      *rwlock.RWMutex
	timeout time.Duration
	m       map[string]V
}

func newDictionary[V any](timeout time.Duration) *dictionary[V] {
	return &dictionary[V]{
		mu:      rwlock.NewRWMutex(),
		timeout: timeout,
		m:       make(map[string]V),
	}
}

func (d *dictionary[V]) get(ctx context.Context, key string) (V, bool, error) {
	unlock, err := d.mu.RLock(ctx, d.timeout)
	if err != nil {
		var zero V
		return zero, false, err
	}
	defer unlock()
	v, ok := d.m[key]
	return v, ok, nil
}

// add inserts v unless key is already present and returns the retained
// value. inserted is false when another writer got there first.
func (d *dictionary[V]) add(ctx context.Context, key string, v V) (retained V, inserted bool, err error) {
	unlock, err := d.mu.Lock(ctx, d.timeout)
	if err != nil {
		return v, false, err
	}
	defer unlock()
	if cur, ok := d.m[key]; ok {
		return cur, false, nil
	}
	d.m[key] = v
	return v, true, nil
}

func (d *dictionary[V]) set(ctx context.Context, key string, v V) error {
	unlock, err := d.mu.Lock(ctx, d.timeout)
	if err != nil {
		return err
	}
	defer unlock()
	d.m[key] = v
	return nil
}

func (d *dictionary[V]) remove(ctx context.Context, key string) (bool, error) {
	unlock, err := d.mu.Lock(ctx, d.timeout)
	if err != nil {
		return false, err
	}
	defer unlock()
	_, ok := d.m[key]
	delete(d.m, key)
	return ok, nil
}

func (d *dictionary[V]) clear(ctx context.Context) (int, error) {
	unlock, err := d.mu.Lock(ctx, d.timeout)
	if err != nil {
		return 0, err
	}
	defer unlock()
	n := len(d.m)
	d.m = make(map[string]V)
	return n, nil
}

func (d *dictionary[V]) len(ctx context.Context) (int, error) {
	unlock, err := d.mu.RLock(ctx, d.timeout)
	if err != nil {
		return 0, err
	}
	defer unlock()
	return len(d.m), nil
}
