package datacache

import (
	"context"
	"math"
	"time"

	"github.com/unkn0wn-root/datacache/dependency"
	"github.com/unkn0wn-root/datacache/store"
)

// NoExpiration caches a value without a deadline. It is still subject to the
// store's capacity eviction unless the priority is PriorityNotRemovable.
const NoExpiration time.Duration = math.MaxInt64

// Tier selects where a Request reads and writes.
type Tier uint8

const (
	// TierStore is the primary store. Default.
	TierStore Tier = iota
	// TierDictionary is the in-process dictionary. Entries never expire and
	// are never evicted; they leave only through Set, Remove, Clear or Close.
	TierDictionary
)

func (t Tier) String() string {
	if t == TierDictionary {
		return "dictionary"
	}
	return "store"
}

type (
	Priority      = store.Priority
	RemovedReason = store.RemovedReason
)

const (
	PriorityLow          = store.PriorityLow
	PriorityNormal       = store.PriorityNormal
	PriorityHigh         = store.PriorityHigh
	PriorityNotRemovable = store.PriorityNotRemovable

	Removed           = store.Removed
	Expired           = store.Expired
	Underused         = store.Underused
	DependencyChanged = store.DependencyChanged
)

// RemovalSink is told when an entry written for a Request leaves the primary
// tier. An error or panic from the sink is logged and swallowed.
type RemovalSink func(key string, reason RemovedReason) error

// Request describes one lookup or population attempt.
type Request struct {
	// Key is the logical key. Must not be empty.
	Key string
	// TTL <= 0 never caches. NoExpiration caches without a deadline.
	TTL time.Duration
	// Sliding turns TTL into an idle window that restarts on every read.
	Sliding  bool
	Priority Priority
	// Dependency voids the entry once it changes. The cache owns it from the
	// call on: it is handed to the store on write and closed otherwise.
	// Ignored by the dictionary tier.
	Dependency dependency.Dependency
	Tier       Tier
	OnRemoved  RemovalSink
}

// Regenerator produces the value for a missing key. found=false means there
// is nothing to cache; an error is logged and treated the same way.
//
// req is a private copy of the caller's Request. A regenerator may shorten
// the TTL or attach a Dependency it discovered while loading, such as the
// file it read the value from. To keep the caller's dependency as well, wrap
// both with dependency.NewAggregate; a replaced dependency that is not part
// of the new one is closed.
type Regenerator[V any] func(ctx context.Context, req *Request) (v V, found bool, err error)

func (r Request) item(now time.Time, onRemoved store.RemovedFunc) store.Item {
	it := store.Item{
		Priority:   r.Priority,
		Dependency: r.Dependency,
		OnRemoved:  onRemoved,
	}
	switch {
	case r.TTL == NoExpiration:
	case r.Sliding:
		it.SlidingExpiration = r.TTL
	default:
		it.AbsoluteExpiration = now.Add(r.TTL)
	}
	return it
}
