// Package genstore keeps monotonically increasing version counters for named
// external resources. A dependency snapshots the counter when an entry is
// cached and reports a change once the counter moves, so bumping a name
// voids every entry derived from it.
package genstore

import (
	"context"
	"time"
)

// GenStore abstracts where version counters live.
// Use Local for in-process counters or Redis to share them between processes.
type GenStore interface {
	// Snapshot returns the current generation; missing => 0.
	Snapshot(ctx context.Context, name string) (uint64, error)
	// SnapshotMany returns gens for many names; missing => 0.
	SnapshotMany(ctx context.Context, names []string) (map[string]uint64, error)
	// Bump atomically increments and returns the new generation.
	Bump(ctx context.Context, name string) (uint64, error)
	// Cleanup prunes old counters if applicable (no-op for Redis).
	Cleanup(retention time.Duration)
	Close(context.Context) error
}
