package datacache

import (
	"github.com/cockroachdb/errors"

	"github.com/unkn0wn-root/datacache/internal/util"
)

// NamespaceKey maps a logical key to the storage key used in the primary
// tier: "dc:<namespace>:<key>".
func NamespaceKey(namespace, key string) (string, error) {
	sk, err := util.Namespace(namespace, key)
	if err != nil {
		return "", errors.Mark(errors.Wrapf(err, "namespace %q", key), ErrInvalidKey)
	}
	return sk, nil
}

// CleanKey is the inverse of NamespaceKey.
func CleanKey(namespace, storageKey string) (string, error) {
	key, err := util.Clean(namespace, storageKey)
	if err != nil {
		return "", errors.Mark(errors.Wrapf(err, "clean %q", storageKey), ErrInvalidKey)
	}
	return key, nil
}
