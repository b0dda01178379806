// Package cache provides a generic, thread-safe LRU cache with built-in statistics
// and optional Prometheus metrics.
package cache

import (
	"github.com/mulesoft/mule-sub047/errors"
)

// Cache is a keyed store of values of type V
type Cache[V any] interface {
	// Get retrieves a value by key and marks it as recently used.
	Get(key string) (V, bool)

	// Set stores a value. Returns true if a new entry was created, false if updated.
	Set(key string, value V) (bool, error)

	// Delete removes an entry. Returns true if the key existed.
	Delete(key string) (bool, error)

	// Clear removes all entries.
	Clear() error

	// Size returns the current number of entries.
	Size() int

	// Stats returns the cache statistics.
	Stats() *Statistics
}

// EvictCallback is called when an entry leaves the cache.
type EvictCallback[V any] func(key string, value V)

// NewLRU creates an LRU cache holding at most maxSize entries.
func NewLRU[V any](maxSize int, options ...Option[V]) (Cache[V], error) {
	if maxSize <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "NewLRU", "maxSize must be positive")
	}
	return newLRUCache[V](maxSize, applyOptions(options...))
}

func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "cache", "validateKey", "key cannot be empty")
	}
	return nil
}
