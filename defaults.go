package datacache

import "time"

// DefaultLockTimeout bounds every lock wait when Options.LockTimeout is zero.
const DefaultLockTimeout = 5 * time.Second

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
