package datacache

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/unkn0wn-root/datacache/internal/rwlock"
)

var (
	// ErrInvalidKey is returned for empty keys and, by CleanKey, for storage
	// keys outside the namespace.
	ErrInvalidKey = errors.New("datacache: invalid key")

	// ErrLockTimeout marks a bounded lock wait that expired. GetOrCreate
	// recovers from it locally; it reaches callers only from Set, Remove and
	// Clear on the dictionary tier.
	ErrLockTimeout = rwlock.ErrTimeout

	// ErrRegenerationFailed marks errors and panics raised by a regenerator.
	// They are passed to Hooks and the Logger, never returned.
	ErrRegenerationFailed = errors.New("datacache: regeneration failed")

	// ErrStoreRejected marks writes the primary store declined.
	ErrStoreRejected = errors.New("datacache: store rejected write")

	errNilRegenerator = errors.New("datacache: nil regenerator")
)

// RemoveError is returned by Remove when a tier could not be updated. The
// nil field names the tier that succeeded; the key may still be served from
// the one that failed.
type RemoveError struct {
	Key      string
	StoreErr error
	DictErr  error
}

func (e *RemoveError) Error() string {
	switch {
	case e.StoreErr != nil && e.DictErr != nil:
		return fmt.Sprintf("remove %q failed in both tiers: store=%v; dictionary=%v", e.Key, e.StoreErr, e.DictErr)
	case e.StoreErr != nil:
		return fmt.Sprintf("remove %q: store: %v", e.Key, e.StoreErr)
	default:
		return fmt.Sprintf("remove %q: dictionary: %v", e.Key, e.DictErr)
	}
}

func (e *RemoveError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.StoreErr != nil {
		errs = append(errs, e.StoreErr)
	}
	if e.DictErr != nil {
		errs = append(errs, e.DictErr)
	}
	return errs
}
