package idempotency

import (
	"context"
	"time"
)

// KeyRepository stores idempotency keys for mutating HTTP endpoints.
// Implementations must make AcquireLock atomic so two concurrent requests
// carrying the same key cannot both proceed.
type KeyRepository interface {
	// AcquireLock upserts the key and marks it locked. It returns the
	// stored key and true when this call created it, false when a prior
	// request already registered the same key.
	AcquireLock(ctx context.Context, key *Key) (*Key, bool, error)

	// ReleaseLock clears the lock so a retry can take over. Called when
	// the handler fails before a response could be stored.
	ReleaseLock(ctx context.Context, keyID string) error

	// StoreResponse caches the final response and marks the key completed.
	StoreResponse(ctx context.Context, keyID string, responseCode int, responseBody []byte, headers map[string]string) error

	// Get returns the key scoped to a service, or ErrNotFound.
	Get(ctx context.Context, key, serviceID string) (*Key, error)

	// Clean removes keys that expired before the given time and returns
	// how many were deleted.
	Clean(ctx context.Context, before time.Time) (int64, error)

	// EnsureIndexes creates the collection indexes. Call at startup.
	EnsureIndexes(ctx context.Context) error
}
