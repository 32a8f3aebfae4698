package datacache

import "sync/atomic"

// Stats is a point-in-time copy of the cache counters.
type Stats struct {
	Hits                 uint64
	Misses               uint64
	Regenerations        uint64
	RegenerationFailures uint64
	StoreRejections      uint64
	LockTimeouts         uint64
	// CoalescedWaits counts GetOrCreate calls answered by another caller's
	// regeneration after waiting on the key lock.
	CoalescedWaits uint64
	SelfHeals      uint64
}

type counters struct {
	hits, misses          atomic.Uint64
	regens, regenFailures atomic.Uint64
	rejections            atomic.Uint64
	lockTimeouts          atomic.Uint64
	coalesced             atomic.Uint64
	selfHeals             atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Hits:                 c.hits.Load(),
		Misses:               c.misses.Load(),
		Regenerations:        c.regens.Load(),
		RegenerationFailures: c.regenFailures.Load(),
		StoreRejections:      c.rejections.Load(),
		LockTimeouts:         c.lockTimeouts.Load(),
		CoalescedWaits:       c.coalesced.Load(),
		SelfHeals:            c.selfHeals.Load(),
	}
}
