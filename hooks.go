package datacache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// The regenerator returned an error or panicked. err is marked with
	// ErrRegenerationFailed.
	RegenerationFailed(key string, err error)

	// The primary store returned ok=false on Set (capacity pressure).
	StoreRejected(storageKey string)

	// A bounded lock wait expired and the call degraded.
	// lock ∈ {"registry", "key", "dictionary_read", "dictionary_write"}
	LockTimeout(key, lock string)

	// An entry written through the facade left the primary tier.
	ItemRemoved(key string, reason RemovedReason)

	// An entry was deleted by the cache on read.
	// reason ∈ {"corrupt", "value_decode"}
	SelfHeal(storageKey, reason string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) RegenerationFailed(string, error)  {}
func (NopHooks) StoreRejected(string)              {}
func (NopHooks) LockTimeout(string, string)        {}
func (NopHooks) ItemRemoved(string, RemovedReason) {}
func (NopHooks) SelfHeal(string, string)           {}
