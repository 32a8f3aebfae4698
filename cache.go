package datacache

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/unkn0wn-root/datacache/codec"
	"github.com/unkn0wn-root/datacache/dependency"
	"github.com/unkn0wn-root/datacache/internal/keylock"
	"github.com/unkn0wn-root/datacache/internal/util"
	"github.com/unkn0wn-root/datacache/store"
)

type cache[V any] struct {
	ns          string
	store       store.Store
	codec       codec.Codec[V]
	log         Logger
	hooks       Hooks
	enabled     bool
	lockTimeout time.Duration
	now         func() time.Time

	locks *keylock.Registry[V]
	dict  *dictionary[V]
	stats counters
}

func newCache[V any](opts Options[V]) (*cache[V], error) {
	if opts.Store == nil {
		return nil, errors.New("datacache: store is required")
	}
	if opts.Codec == nil {
		return nil, errors.New("datacache: codec is required")
	}
	if opts.Namespace == "" {
		return nil, errors.New("datacache: namespace is required")
	}
	if opts.LockTimeout < 0 {
		return nil, errors.Newf("datacache: negative lock timeout %s", opts.LockTimeout)
	}

	c := &cache[V]{
		ns:      opts.Namespace,
		store:   opts.Store,
		codec:   opts.Codec,
		enabled: !opts.Disabled,
	}

	// defaults
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.lockTimeout = coalesce(opts.LockTimeout, DefaultLockTimeout)
	c.now = opts.Clock
	if c.now == nil {
		c.now = time.Now
	}

	c.locks = keylock.New[V](c.lockTimeout)
	c.dict = newDictionary[V](c.lockTimeout)
	return c, nil
}

func (c *cache[V]) Enabled() bool { return c.enabled }

func (c *cache[V]) Stats() Stats { return c.stats.snapshot() }

// Close empties the dictionary tier and closes the store.
func (c *cache[V]) Close(ctx context.Context) error {
	_, dictErr := c.dict.clear(context.WithoutCancel(ctx))
	storeErr := c.store.Close(ctx)
	return errors.CombineErrors(storeErr, dictErr)
}

func (c *cache[V]) GetOrCreate(ctx context.Context, req Request, regen Regenerator[V]) (V, bool, error) {
	var zero V
	sk, err := c.storageKey(req.Key)
	if err != nil {
		closeDependency(req.Dependency)
		return zero, false, err
	}
	if regen == nil {
		closeDependency(req.Dependency)
		return zero, false, errNilRegenerator
	}
	if !c.enabled {
		r := req
		v, ok := c.regenerate(ctx, &r, regen)
		closeDependencies(req.Dependency, r.Dependency)
		return v, ok, nil
	}
	if req.Tier == TierDictionary {
		return c.getOrCreateDictionary(ctx, req, regen)
	}

	// fast path: no lock on hits
	if v, ok := c.lookup(ctx, sk); ok {
		c.stats.hits.Add(1)
		closeDependency(req.Dependency)
		return v, true, nil
	}
	c.stats.misses.Add(1)

	h, err := c.locks.Acquire(ctx, sk)
	if err != nil {
		return c.lockFailed(ctx, err, sk, req, regen, "registry")
	}
	defer func() {
		// the key must be released even if ctx was cancelled meanwhile
		if err := c.locks.Release(context.WithoutCancel(ctx), sk, h); err != nil {
			c.lockTimedOut(req.Key, "registry")
		}
	}()

	epoch := h.Epoch()
	unlock, err := h.Lock(ctx, c.lockTimeout)
	if err != nil {
		return c.lockFailed(ctx, err, sk, req, regen, "key")
	}
	defer unlock()

	if h.Epoch() != epoch {
		// a regeneration finished while we waited; share its outcome even if
		// the store declined to keep it
		c.stats.coalesced.Add(1)
		closeDependency(req.Dependency)
		v, ok := h.Result()
		return v, ok, nil
	}
	if v, ok := c.lookup(ctx, sk); ok {
		c.stats.coalesced.Add(1)
		closeDependency(req.Dependency)
		return v, true, nil
	}

	v, ok := c.fill(ctx, sk, req, regen)
	h.Publish(v, ok)
	return v, ok, nil
}

// lockFailed degrades a timed out lock wait to an unlocked regeneration.
// Cancellation of ctx is returned as is.
func (c *cache[V]) lockFailed(ctx context.Context, err error, sk string, req Request, regen Regenerator[V], lock string) (V, bool, error) {
	if !errors.Is(err, ErrLockTimeout) {
		var zero V
		closeDependency(req.Dependency)
		return zero, false, err
	}
	c.lockTimedOut(req.Key, lock)
	v, ok := c.fill(ctx, sk, req, regen)
	return v, ok, nil
}

// fill regenerates and writes the result to the primary tier. It owns
// req.Dependency and whatever dependency the regenerator attaches.
func (c *cache[V]) fill(ctx context.Context, sk string, req Request, regen Regenerator[V]) (V, bool) {
	r := req
	v, ok := c.regenerate(ctx, &r, regen)
	if !dependency.Contains(r.Dependency, req.Dependency) {
		closeDependency(req.Dependency)
	}
	if !ok {
		closeDependency(r.Dependency)
		return v, false
	}
	// waiters get the value even if our caller has gone away
	if err := c.write(context.WithoutCancel(ctx), sk, r, v); err != nil {
		c.log.Warn("cache write failed", Fields{"key": r.Key, "err": err})
	}
	return v, true
}

func (c *cache[V]) regenerate(ctx context.Context, req *Request, regen Regenerator[V]) (v V, ok bool) {
	key := req.Key
	c.stats.regens.Add(1)
	defer func() {
		if p := recover(); p != nil {
			var zero V
			v, ok = zero, false
			c.regenerationFailed(key, errors.Newf("regenerator panicked: %v", p))
		}
	}()

	v, ok, err := regen(ctx, req)
	if err != nil {
		var zero V
		c.regenerationFailed(key, err)
		return zero, false
	}
	// the key is fixed by the caller
	req.Key = key
	return v, ok
}

func (c *cache[V]) regenerationFailed(key string, err error) {
	err = errors.Mark(errors.Wrapf(err, "regenerate %q", key), ErrRegenerationFailed)
	c.stats.regenFailures.Add(1)
	c.log.Warn("regeneration failed; serving no value", Fields{"key": key, "err": err})
	c.hooks.RegenerationFailed(key, err)
}

// write encodes v and stores it. TTL <= 0 writes nothing. A rejection by the
// store is reported, not returned.
func (c *cache[V]) write(ctx context.Context, sk string, req Request, v V) error {
	if req.TTL <= 0 {
		closeDependency(req.Dependency)
		return nil
	}
	payload, err := c.codec.Encode(v)
	if err != nil {
		closeDependency(req.Dependency)
		return errors.Wrapf(err, "encode %q", req.Key)
	}
	ok, err := c.store.Set(ctx, sk, payload, req.item(c.now(), c.onRemoved(req.Key, req.OnRemoved)))
	if err != nil {
		return errors.Wrapf(err, "store set %q", req.Key)
	}
	if !ok {
		c.stats.rejections.Add(1)
		c.log.Warn("cache overflow: store rejected write", Fields{"key": req.Key, "err": ErrStoreRejected})
		c.hooks.StoreRejected(sk)
	}
	return nil
}

// lookup reads the primary tier. Read errors count as misses; undecodable
// entries are deleted.
func (c *cache[V]) lookup(ctx context.Context, sk string) (V, bool) {
	var zero V
	raw, ok, err := c.store.Get(ctx, sk)
	if err != nil {
		if errors.Is(err, store.ErrCorrupt) {
			c.selfHealed(sk, "corrupt", err)
		} else {
			c.log.Warn("store get failed; treating as miss", Fields{"key": sk, "err": err})
		}
		return zero, false
	}
	if !ok {
		return zero, false
	}
	v, err := c.codec.Decode(raw)
	if err != nil {
		_ = c.store.Del(ctx, sk)
		c.selfHealed(sk, "value_decode", err)
		return zero, false
	}
	return v, true
}

func (c *cache[V]) selfHealed(sk, reason string, err error) {
	c.stats.selfHeals.Add(1)
	c.log.Debug("self-heal: dropped unreadable entry", Fields{"key": sk, "reason": reason, "err": err})
	c.hooks.SelfHeal(sk, reason)
}

func (c *cache[V]) getOrCreateDictionary(ctx context.Context, req Request, regen Regenerator[V]) (V, bool, error) {
	var zero V

	v, ok, err := c.dict.get(ctx, req.Key)
	switch {
	case err == nil && ok:
		c.stats.hits.Add(1)
		closeDependency(req.Dependency)
		return v, true, nil
	case err != nil && !errors.Is(err, ErrLockTimeout):
		closeDependency(req.Dependency)
		return zero, false, err
	case err != nil:
		c.lockTimedOut(req.Key, "dictionary_read")
	}
	c.stats.misses.Add(1)

	// regenerate outside the lock so unrelated keys are not held up
	r := req
	v, ok = c.regenerate(ctx, &r, regen)
	closeDependencies(req.Dependency, r.Dependency)
	if !ok {
		return zero, false, nil
	}
	if r.TTL <= 0 {
		return v, true, nil
	}

	kept, inserted, err := c.dict.add(context.WithoutCancel(ctx), req.Key, v)
	if err != nil {
		c.lockTimedOut(req.Key, "dictionary_write")
		return v, true, nil
	}
	if !inserted {
		c.stats.coalesced.Add(1)
	}
	return kept, true, nil
}

func (c *cache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	sk, err := c.storageKey(key)
	if err != nil {
		return zero, false, err
	}
	if !c.enabled {
		return zero, false, nil
	}
	if v, ok := c.lookup(ctx, sk); ok {
		c.stats.hits.Add(1)
		return v, true, nil
	}

	v, ok, err := c.dict.get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrLockTimeout) {
			return zero, false, err
		}
		c.lockTimedOut(key, "dictionary_read")
		ok = false
	}
	if !ok {
		c.stats.misses.Add(1)
		return zero, false, nil
	}
	c.stats.hits.Add(1)
	return v, true, nil
}

func (c *cache[V]) Set(ctx context.Context, req Request, value V) error {
	sk, err := c.storageKey(req.Key)
	if err != nil {
		closeDependency(req.Dependency)
		return err
	}
	if !c.enabled || req.TTL <= 0 {
		closeDependency(req.Dependency)
		return nil
	}
	if req.Tier == TierDictionary {
		closeDependency(req.Dependency)
		if err := c.dict.set(ctx, req.Key, value); err != nil {
			return errors.Wrapf(err, "dictionary set %q", req.Key)
		}
		return nil
	}
	return c.write(ctx, sk, req, value)
}

func (c *cache[V]) Remove(ctx context.Context, key string) error {
	sk, err := c.storageKey(key)
	if err != nil {
		return err
	}
	if !c.enabled {
		return nil
	}
	storeErr := c.store.Del(ctx, sk)
	_, dictErr := c.dict.remove(ctx, key)
	if dictErr != nil {
		c.lockTimedOutIf(key, "dictionary_write", dictErr)
	}
	if storeErr == nil && dictErr == nil {
		return nil
	}
	// a failed tier may still hold the value
	return &RemoveError{Key: key, StoreErr: storeErr, DictErr: dictErr}
}

func (c *cache[V]) Clear(ctx context.Context, prefix string) error {
	if !c.enabled {
		return nil
	}
	match := util.Prefix(c.ns) + prefix

	var keys []string
	rangeErr := c.store.Range(ctx, func(sk string, _ []byte) bool {
		if strings.HasPrefix(sk, match) {
			keys = append(keys, sk)
		}
		return true
	})
	var errs error
	if rangeErr != nil {
		errs = errors.Wrap(rangeErr, "clear: enumerate store")
	}
	removed := 0
	for _, sk := range keys {
		if err := c.store.Del(ctx, sk); err != nil {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "clear: delete %q", sk))
			continue
		}
		removed++
	}

	n, err := c.dict.clear(ctx)
	if err != nil {
		errs = errors.CombineErrors(errs, errors.Wrap(err, "clear: dictionary"))
	}
	c.log.Debug("cleared", Fields{"prefix": prefix, "store_removed": removed, "dictionary_removed": n})
	return errs
}

// onRemoved adapts the store's callback to hooks, logging and the caller's sink.
func (c *cache[V]) onRemoved(key string, sink RemovalSink) store.RemovedFunc {
	return func(_ string, _ []byte, reason store.RemovedReason) {
		c.hooks.ItemRemoved(key, reason)
		c.log.Debug("cache item removed", Fields{"key": key, "reason": reason.String()})
		if sink == nil {
			return
		}
		if err := callSink(sink, key, reason); err != nil {
			c.log.Warn("removal sink failed", Fields{"key": key, "reason": reason.String(), "err": err})
		}
	}
}

func callSink(sink RemovalSink, key string, reason RemovedReason) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Newf("removal sink panicked: %v", p)
		}
	}()
	return sink(key, reason)
}

func (c *cache[V]) lockTimedOutIf(key, lock string, err error) {
	if errors.Is(err, ErrLockTimeout) {
		c.lockTimedOut(key, lock)
	}
}

func (c *cache[V]) lockTimedOut(key, lock string) {
	c.stats.lockTimeouts.Add(1)
	c.log.Warn("lock wait timed out; continuing without it", Fields{"key": key, "lock": lock, "timeout": c.lockTimeout.String()})
	c.hooks.LockTimeout(key, lock)
}

func (c *cache[V]) storageKey(key string) (string, error) {
	return NamespaceKey(c.ns, key)
}

func closeDependency(d dependency.Dependency) {
	_ = dependency.Close(d)
}

// closeDependencies closes the request's dependency and the one the
// regenerator left in its place, each once.
func closeDependencies(orig, final dependency.Dependency) {
	closeDependency(final)
	if !dependency.Contains(final, orig) {
		closeDependency(orig)
	}
}
