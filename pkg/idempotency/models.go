package idempotency

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Key is a stored idempotency key for a mutating HTTP request.
// It records the request fingerprint and, once the handler has run,
// the response so retries can be replayed safely.
type Key struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty"`
	Key                string             `bson:"key"`
	ActorID            string             `bson:"actorId,omitempty"`
	ServiceID          string             `bson:"serviceId"`
	RequestPath        string             `bson:"requestPath"`
	RequestMethod      string             `bson:"requestMethod"`
	RequestFingerprint string             `bson:"requestFingerprint"` // SHA256 of request body

	// Set while a request holding this key is in flight.
	LockedAt *time.Time `bson:"lockedAt,omitempty"`

	// Cached response, populated on completion.
	ResponseCode    int               `bson:"responseCode,omitempty"`
	ResponseBody    []byte            `bson:"responseBody,omitempty"`
	ResponseHeaders map[string]string `bson:"responseHeaders,omitempty"`

	CreatedAt   time.Time  `bson:"createdAt"`
	CompletedAt *time.Time `bson:"completedAt,omitempty"`
	ExpiresAt   time.Time  `bson:"expiresAt"` // TTL index target
}

// IsCompleted returns true once a response has been stored for the key.
func (k *Key) IsCompleted() bool {
	return k.CompletedAt != nil
}

// IsLocked returns true while the original request is still being processed.
func (k *Key) IsLocked() bool {
	return k.LockedAt != nil && k.CompletedAt == nil
}
