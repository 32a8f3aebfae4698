// Package store defines the primary tier contract used by datacache and two
// implementations of it.
//
// Memory is a self-contained in-process store with absolute and sliding
// expiry, priority-based capacity eviction, dependency invalidation and
// removal notification. Adapter layers the same entry semantics over any
// provider.Provider byte store (ristretto, bigcache, redis).
//
// Keys handed to a Store are already namespaced by the caller.
package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/unkn0wn-root/datacache/dependency"
)

var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store: closed")
	// ErrCorrupt marks reads that found an undecodable entry. The entry has
	// already been deleted when this error is returned.
	ErrCorrupt = errors.New("store: corrupt entry")
	// ErrConflictingExpiration is returned when an Item sets both an
	// absolute and a sliding expiration.
	ErrConflictingExpiration = errors.New("store: absolute and sliding expiration are mutually exclusive")
)

// Store is the primary cache tier: a TTL key/value store that may drop
// entries on its own. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns (value, true, nil) on hit and (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set writes value under key. ok reports whether the entry is observably
	// present afterwards; ok=false with a nil error means the store declined
	// the write (capacity pressure, expiry already passed, dependency already
	// changed). The store takes ownership of item.Dependency either way.
	Set(ctx context.Context, key string, value []byte, item Item) (ok bool, err error)

	// Del removes key. Deleting a missing key is not an error.
	Del(ctx context.Context, key string) error

	// Range calls fn for every live entry until fn returns false. Entries
	// added or removed during the walk may or may not be visited.
	Range(ctx context.Context, fn func(key string, value []byte) bool) error

	Close(ctx context.Context) error
}

// Priority orders entries for capacity eviction. Lower priorities go first.
// The zero value is PriorityNormal.
type Priority int8

const (
	PriorityLow    Priority = -1
	PriorityNormal Priority = 0
	PriorityHigh   Priority = 1
	// PriorityNotRemovable entries are never evicted for capacity. They still
	// expire and still follow their dependency.
	PriorityNotRemovable Priority = 2
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityNotRemovable:
		return "not_removable"
	default:
		return "unknown"
	}
}

// RemovedReason tells a removal callback why an entry left the store.
type RemovedReason uint8

const (
	// Removed: explicit delete, overwrite or store shutdown.
	Removed RemovedReason = iota + 1
	// Expired: absolute deadline passed or sliding window elapsed.
	Expired
	// Underused: evicted to make room, or dropped by the backing store.
	Underused
	// DependencyChanged: the entry's dependency reported a change.
	DependencyChanged
)

func (r RemovedReason) String() string {
	switch r {
	case Removed:
		return "removed"
	case Expired:
		return "expired"
	case Underused:
		return "underused"
	case DependencyChanged:
		return "dependency_changed"
	default:
		return "unknown"
	}
}

// RemovedFunc is invoked once per entry instance when it leaves the store.
// value may be nil when the store no longer holds the bytes. Callbacks run
// outside store locks; a panic inside one is recovered and discarded.
type RemovedFunc func(key string, value []byte, reason RemovedReason)

// Item carries the per-entry options of a Set.
type Item struct {
	// AbsoluteExpiration is the deadline of the entry. Zero means none.
	AbsoluteExpiration time.Time
	// SlidingExpiration evicts the entry once it has not been read for this
	// long. Zero means none. Exclusive with AbsoluteExpiration.
	SlidingExpiration time.Duration
	Priority          Priority
	Dependency        dependency.Dependency
	OnRemoved         RemovedFunc
}

func (it Item) validate() error {
	if !it.AbsoluteExpiration.IsZero() && it.SlidingExpiration != 0 {
		return ErrConflictingExpiration
	}
	if it.SlidingExpiration < 0 {
		return errors.Newf("store: negative sliding expiration %s", it.SlidingExpiration)
	}
	return nil
}

// deadline computes the first expiry of an entry written at now.
func (it Item) deadline(now time.Time) time.Time {
	if it.SlidingExpiration > 0 {
		return now.Add(it.SlidingExpiration)
	}
	return it.AbsoluteExpiration
}

func (it Item) dependencyChanged() bool {
	return it.Dependency != nil && it.Dependency.HasChanged()
}

// removal is a pending callback collected under a lock and fired after it.
type removal struct {
	key    string
	value  []byte
	item   Item
	reason RemovedReason
}

func fire(rs []removal) {
	for _, r := range rs {
		r.fire()
	}
}

func (r removal) fire() {
	r.closeDependency()
	notify(r.item.OnRemoved, r.key, r.value, r.reason)
}

func (r removal) closeDependency() {
	_ = dependency.Close(r.item.Dependency)
}

func notify(fn RemovedFunc, key string, value []byte, reason RemovedReason) {
	if fn == nil {
		return
	}
	defer func() { _ = recover() }()
	fn(key, value, reason)
}

func nowFunc(clock func() time.Time) func() time.Time {
	if clock != nil {
		return clock
	}
	return time.Now
}
