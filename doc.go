// Package datacache is a request-coalescing cache facade in front of a TTL
// key/value store.
//
// Under concurrent misses on one key, GetOrCreate runs the caller's
// regenerator at most once; every waiter observes that single result. Values
// live in one of two tiers:
//
//   - the primary tier, a store.Store that may expire or evict entries on its
//     own (store.Memory in process, or store.Adapter over ristretto, bigcache
//     or redis). Entries can carry a dependency.Dependency and are voided by
//     the store once it reports a change.
//   - the dictionary tier, an in-process map behind one reader/writer lock,
//     for values the primary store's eviction must not drop.
//
// Failures are isolated to the call that hit them: a failing or panicking
// regenerator reads as "no value", lock waits are bounded and fall back to an
// unlocked regeneration, and a store that declines a write is logged as an
// overflow.
//
// Keys:
//
//	dc:<ns>:<key>  - primary tier storage key
//
// Usage:
//
//	c, _ := datacache.New(datacache.Options[User]{
//		Namespace: "user",
//		Store:     store.NewMemory(store.MemoryOptions{}),
//		Codec:     codec.JSON[User]{},
//	})
//	u, ok, err := c.GetOrCreate(ctx, datacache.Request{Key: "42", TTL: time.Minute},
//		func(ctx context.Context, req *datacache.Request) (User, bool, error) {
//			return db.LoadUser(ctx, 42)
//		})
//
// A regenerator must not call GetOrCreate for its own key: the per-key lock
// is not reentrant and the nested call waits out LockTimeout.
package datacache
