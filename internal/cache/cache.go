// Package cache provides the read-through listing cache and the TTL token
// store used for OTP challenges and password-reset grants. Both come in a
// Redis flavor and an in-memory flavor; the in-memory one backs deployments
// without Redis and all tests.
package cache

import (
	"context"
	"time"
)

// Cache is the read-through cache consulted by listing operations.
// Values are serialized snapshots; the cache never interprets them.
type Cache interface {
	// GetOrCompute returns the cached value for key, or runs compute,
	// stores its result with the given TTL and returns it. A failure to
	// talk to the cache backend degrades to calling compute directly.
	GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func() (string, error)) (string, error)

	// Invalidate removes the entry for key. Removing a missing key is not
	// an error.
	Invalidate(ctx context.Context, key string) error
}

// TokenStore is a small TTL key-value store for single-use tokens:
// OTP challenges under "otp:<token>" and password-reset grants under
// "password_reset_token:<token>".
type TokenStore interface {
	// Put stores value under key for ttl, replacing any previous value.
	Put(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the value and whether it exists and has not expired.
	Get(ctx context.Context, key string) (string, bool, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// TTL returns the remaining lifetime of key, or false when the key is
	// missing. Used to re-store a challenge without extending its expiry.
	TTL(ctx context.Context, key string) (time.Duration, bool, error)
}

// ListingKey composes the cache key for a scoped listing:
// urls:<scope>:<status|all>:<tag|all>. Keys are fully partitioned per scope,
// so no entry can ever be served across ownership boundaries.
func ListingKey(scope, status, tag string) string {
	if status == "" {
		status = "all"
	}
	if tag == "" {
		tag = "all"
	}
	return "urls:" + scope + ":" + status + ":" + tag
}
