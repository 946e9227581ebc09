package outbox

import (
	"context"
	"time"
)

// Repository persists outbox events alongside the aggregate writes that
// produce them. Implementations must make SaveAll atomic with respect to
// the surrounding document write so no event is lost on crash.
type Repository interface {
	// Save stores a single outbox event.
	Save(ctx context.Context, event *OutboxEvent) error

	// SaveAll stores a batch of outbox events in one operation.
	SaveAll(ctx context.Context, events []*OutboxEvent) error

	// FindUnpublished returns pending events, oldest first, up to limit.
	// Events that exhausted their retry budget are excluded.
	FindUnpublished(ctx context.Context, limit int) ([]*OutboxEvent, error)

	// MarkPublished records that the event reached the broker.
	MarkPublished(ctx context.Context, eventID string) error

	// IncrementRetry bumps the retry counter and records the last failure.
	IncrementRetry(ctx context.Context, eventID string, errorMsg string) error

	// DeletePublished prunes published events older than the retention window.
	DeletePublished(ctx context.Context, olderThan time.Duration) error

	// GetByID returns a single outbox event.
	GetByID(ctx context.Context, eventID string) (*OutboxEvent, error)
}
