package datacache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/datacache/codec"
	"github.com/unkn0wn-root/datacache/store"
)

// Cache is the request-coalescing cache facade. V is the caller's value type;
// the primary tier stores it through a Codec[V], the dictionary tier keeps it
// as is.
type Cache[V any] interface {
	Enabled() bool
	Close(context.Context) error

	// GetOrCreate returns the cached value for req.Key or runs regen to
	// produce it. For the primary tier regen runs at most once per miss
	// episode across concurrent callers. The error is non-nil only for an
	// invalid key, a nil regen or cancellation of ctx while waiting;
	// regeneration failures read as found=false.
	GetOrCreate(ctx context.Context, req Request, regen Regenerator[V]) (v V, found bool, err error)

	// Get reads the primary tier, then the dictionary tier.
	Get(ctx context.Context, key string) (v V, found bool, err error)

	// Set writes value to req.Tier. A TTL <= 0 writes nothing. The dictionary
	// tier overwrites unconditionally.
	Set(ctx context.Context, req Request, value V) error

	// Remove deletes key from both tiers.
	Remove(ctx context.Context, key string) error

	// Clear removes every primary tier entry whose logical key starts with
	// prefix ("" clears the namespace) and empties the dictionary tier.
	Clear(ctx context.Context, prefix string) error

	Stats() Stats
}

// Options configure New. Namespace, Store and Codec are required.
type Options[V any] struct {
	// Required
	Namespace string // isolates keys inside a shared store. e.g. "user", "resource"
	Store     store.Store
	Codec     c.Codec[V]

	Logger      Logger           // if nil, NopLogger is used
	Hooks       Hooks            // if nil, NopHooks is used
	LockTimeout time.Duration    // bound on every lock wait; 0 => DefaultLockTimeout
	Clock       func() time.Time // absolute expirations are computed from it; nil => time.Now
	Disabled    bool             // GetOrCreate only runs the regenerator; nothing is read or cached
}

func New[V any](opts Options[V]) (Cache[V], error) {
	return newCache[V](opts)
}
