package idempotency

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// DefaultMaxKeyLength is the maximum length for an idempotency key (Stripe standard)
	DefaultMaxKeyLength = 255

	// DefaultLockTimeout is how long a lock is honoured before it is treated as stale
	DefaultLockTimeout = 5 * time.Minute

	// DefaultRetentionPeriod is how long completed keys are kept for replay
	DefaultRetentionPeriod = 24 * time.Hour

	// DefaultMaxResponseSize is the largest response body cached for replay (1MB)
	DefaultMaxResponseSize = 1 * 1024 * 1024
)

// Config holds configuration for the idempotency middleware.
type Config struct {
	// ServiceName scopes stored keys, e.g. "stock-service".
	ServiceName string

	// Repository is the storage backend for idempotency keys.
	Repository KeyRepository

	// RequireKey makes the Idempotency-Key header mandatory on mutating
	// requests. When false, requests without a key pass through unchecked.
	RequireKey bool

	// ActorIDExtractor optionally scopes keys to the acting user.
	ActorIDExtractor func(*gin.Context) string

	// MaxKeyLength is the maximum allowed key length.
	MaxKeyLength int

	// LockTimeout is the age after which an in-flight lock is considered stale.
	LockTimeout time.Duration

	// RetentionPeriod is how long keys are retained.
	RetentionPeriod time.Duration

	// MaxResponseSize caps the response size stored for replay.
	MaxResponseSize int

	// Metrics is optional; when set the middleware reports hits, misses
	// and collisions.
	Metrics *Metrics
}

// DefaultConfig returns the standard middleware configuration for a service.
func DefaultConfig(serviceName string, repository KeyRepository) *Config {
	return &Config{
		ServiceName:     serviceName,
		Repository:      repository,
		RequireKey:      false,
		MaxKeyLength:    DefaultMaxKeyLength,
		LockTimeout:     DefaultLockTimeout,
		RetentionPeriod: DefaultRetentionPeriod,
		MaxResponseSize: DefaultMaxResponseSize,
	}
}
