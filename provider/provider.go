// Package provider defines the byte stores that store.Adapter can sit on.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the bytes previously passed to Set for a key. store.Adapter frames every
// value with its own header and treats anything it cannot decode as
// corruption, deleting it.
//
// The keyspace "dc:<ns>:" is owned by datacache. External code MUST NOT write
// under it.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs. Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL; ttl <= 0 means no expiry. cost
	// may be ignored. Returns ok=false when the store rejected the write
	// under pressure. ok=true means a following Get observes the value.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}
