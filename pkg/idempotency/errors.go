package idempotency

import "errors"

var (
	// ErrKeyRequired means the route demands an Idempotency-Key header
	// and the request did not carry one.
	ErrKeyRequired = errors.New("idempotency key is required for this operation")

	// ErrKeyInvalid means the key contains characters outside the
	// accepted set.
	ErrKeyInvalid = errors.New("invalid idempotency key format")

	// ErrKeyTooLong means the key exceeds the 255 character limit.
	ErrKeyTooLong = errors.New("idempotency key exceeds maximum length of 255 characters")

	// ErrNotFound means no stored record exists for the key.
	ErrNotFound = errors.New("idempotency key not found")
)
