// Package cache is the shared key-value store both admission filters coordinate through.
//
// Implementations must be safe for concurrent use. Callers treat every
// implementation as eventually consistent and possibly unavailable.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidTTL is returned when a write is attempted with a non-positive TTL.
var ErrInvalidTTL = errors.New("cache ttl must be positive")

// Cache defines the operations the admission layer needs from its backing store.
type Cache interface {
	// Get returns the value for key. found is false on a miss; err is only
	// set when the store itself failed.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX stores value under key only if key is absent.
	// It reports whether the value was written.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Key joins a namespace and a key with ':'. An empty namespace leaves key untouched.
func Key(namespace, key string) string {
	if namespace == "" {
		return key
	}
	return namespace + ":" + key
}
