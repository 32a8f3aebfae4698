package dependency

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/unkn0wn-root/datacache/genstore"
)

// DefaultGenerationTimeout bounds each counter lookup made by HasChanged.
const DefaultGenerationTimeout = time.Second

// Generation is a logical version token: it snapshots the counters of one or
// more names and is changed once any of them moves. Producers bump the name
// (genstore.GenStore.Bump) when the resource behind it changes.
type Generation struct {
	gs       genstore.GenStore
	names    []string
	observed map[string]uint64
	timeout  time.Duration
	changed  atomic.Bool
}

var _ Dependency = (*Generation)(nil)

func NewGeneration(ctx context.Context, gs genstore.GenStore, names ...string) (*Generation, error) {
	if gs == nil {
		return nil, errors.New("dependency: nil generation store")
	}
	if len(names) == 0 {
		return nil, errors.New("dependency: no generation names")
	}
	observed, err := gs.SnapshotMany(ctx, names)
	if err != nil {
		return nil, errors.Wrap(err, "dependency: snapshot generations")
	}
	return &Generation{
		gs:       gs,
		names:    append([]string(nil), names...),
		observed: observed,
		timeout:  DefaultGenerationTimeout,
	}, nil
}

// HasChanged compares the current counters with the snapshot. A lookup
// error counts as a change: the entry is regenerated rather than served
// without knowing whether it is stale.
func (g *Generation) HasChanged() bool {
	if g.changed.Load() {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	cur, err := g.gs.SnapshotMany(ctx, g.names)
	if err != nil {
		g.changed.Store(true)
		return true
	}
	for _, n := range g.names {
		if cur[n] != g.observed[n] {
			g.changed.Store(true)
			return true
		}
	}
	return false
}
