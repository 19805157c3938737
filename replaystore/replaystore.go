package replaystore

import (
	"context"
	"time"
)

// Store is a TTL-capable key-value store. It backs token replay prevention
// and the short-lived MFA setup-secret cache. Implementations must be safe
// for concurrent use, and SetIfAbsent must be atomic per key.
type Store interface {
	// Exists reports whether key is present and unexpired.
	Exists(ctx context.Context, key string) (bool, error)

	// Get returns the value stored under key, or found=false if the key is
	// absent or expired.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// SetWithTTL stores value under key, overwriting any existing entry.
	// The entry expires after ttl.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// SetIfAbsent stores value under key only if the key is absent. It
	// returns stored=false when the key already exists. This is the
	// check-and-set used to consume a jti exactly once.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (stored bool, err error)
}
