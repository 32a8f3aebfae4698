// Package sloghooks logs datacache.Hooks events through log/slog.
package sloghooks

import (
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/unkn0wn-root/datacache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery    uint64
	ItemRemovedEvery uint64
	// Optional key redactor. Defaults to the hex xxhash64 of the key.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr atomic.Uint64
	removedCtr  atomic.Uint64
}

var _ datacache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	return strconv.FormatUint(xxhash.Sum64String(k), 16)
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) RegenerationFailed(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("datacache.regeneration_failed",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) StoreRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("datacache.store_rejected",
		"key", h.redact(storageKey))
}

func (h *Hooks) LockTimeout(key, lock string) {
	if h.l == nil {
		return
	}
	h.l.Warn("datacache.lock_timeout",
		"key", h.redact(key),
		"lock", lock)
}

func (h *Hooks) ItemRemoved(key string, reason datacache.RemovedReason) {
	if h.l == nil || !sample(h.opts.ItemRemovedEvery, &h.removedCtr) {
		return
	}
	h.l.Debug("datacache.item_removed",
		"key", h.redact(key),
		"reason", reason.String())
}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("datacache.self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}
