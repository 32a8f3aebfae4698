package util

import (
	"errors"
	"strings"
)

// KeyTag prefixes every storage key owned by datacache.
const KeyTag = "dc:"

var (
	ErrEmptyKey   = errors.New("empty key")
	ErrForeignKey = errors.New("key outside namespace")
)

// Prefix returns the storage prefix for namespace: "dc:<ns>:".
func Prefix(namespace string) string {
	return KeyTag + namespace + ":"
}

// Namespace maps a logical key to its storage key.
func Namespace(namespace, key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	return Prefix(namespace) + key, nil
}

// Clean is the inverse of Namespace.
func Clean(namespace, storageKey string) (string, error) {
	if storageKey == "" {
		return "", ErrEmptyKey
	}
	key, ok := strings.CutPrefix(storageKey, Prefix(namespace))
	if !ok {
		return "", ErrForeignKey
	}
	if key == "" {
		return "", ErrEmptyKey
	}
	return key, nil
}
