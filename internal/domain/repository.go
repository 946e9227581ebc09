package domain

import (
	"context"
	"time"
)

// StockRecordRepository defines the port for stock record persistence.
//
// The conditional mutation methods (ReserveStock, ReleaseReserved,
// ApplyFulfillment, ApplyAdjustment, ReceiveStock) are the only way counters
// change: each is an atomic filtered update that re-checks the availability
// invariant at the storage layer, so concurrent callers cannot oversell no
// matter what the in-memory aggregate said.
type StockRecordRepository interface {
	Save(ctx context.Context, record *StockRecord) error
	FindByRecordID(ctx context.Context, recordID string) (*StockRecord, error)
	FindByKey(ctx context.Context, locationID string, family ProductFamily, productID string) (*StockRecord, error)
	FindByLocation(ctx context.Context, locationID string, family ProductFamily, limit, offset int) ([]*StockRecord, error)
	FindByProduct(ctx context.Context, family ProductFamily, productID string) ([]*StockRecord, error)
	FindByProducts(ctx context.Context, family ProductFamily, productIDs []string) ([]*StockRecord, error)
	FindByFamily(ctx context.Context, family ProductFamily) ([]*StockRecord, error)
	FindLowStock(ctx context.Context, locationID string) ([]*StockRecord, error)

	// ReserveStock atomically increments reserved by quantity iff
	// currentStock - reserved >= quantity. Returns ErrInsufficientStock
	// when the guard fails.
	ReserveStock(ctx context.Context, recordID string, quantity int) error

	// ReserveWithHold performs the ReserveStock counter increment and the
	// reservation document insert as one atomic commit. Either both are
	// durable or neither is; a crash mid-reserve can never leave the
	// counter inflated without a matching active reservation.
	ReserveWithHold(ctx context.Context, recordID string, quantity int, reservation *Reservation) error

	// ReleaseReserved atomically decrements reserved by quantity iff
	// reserved >= quantity.
	ReleaseReserved(ctx context.Context, recordID string, quantity int) error

	// ApplyFulfillment atomically decrements both currentStock and
	// reserved by quantity iff reserved >= quantity.
	ApplyFulfillment(ctx context.Context, recordID string, quantity int) error

	// ApplyAdjustment atomically applies a signed delta to currentStock
	// iff the result stays >= reserved. Returns ErrInvalidAdjustment when
	// the guard fails.
	ApplyAdjustment(ctx context.Context, recordID string, delta int) error

	// ReceiveStock atomically increments currentStock by quantity.
	ReceiveStock(ctx context.Context, recordID string, quantity int) error
}

// ReservationRepository defines the port for reservation persistence. The
// Mark* methods are conditional status flips: they succeed only when the
// reservation is still active, so racing finalizers resolve to exactly one
// winner.
type ReservationRepository interface {
	Save(ctx context.Context, reservation *Reservation) error
	FindByID(ctx context.Context, reservationID string) (*Reservation, error)
	FindByConsumerRef(ctx context.Context, consumerRef string) ([]*Reservation, error)
	FindActiveByRecord(ctx context.Context, stockRecordID string) ([]*Reservation, error)
	FindExpired(ctx context.Context, asOf time.Time, limit int) ([]*Reservation, error)

	MarkReleased(ctx context.Context, reservationID string, updatedBy string) (*Reservation, error)
	MarkFulfilled(ctx context.Context, reservationID string, updatedBy string) (*Reservation, error)
	MarkExpired(ctx context.Context, reservationID string) (*Reservation, error)
	ExtendExpiry(ctx context.Context, reservationID string, expiresAt time.Time) error
}

// TransferRepository defines the port for transfer persistence. Save uses
// the aggregate's version for a compare-and-set; a lost race surfaces as
// ErrConflictingTransition.
type TransferRepository interface {
	Save(ctx context.Context, transfer *Transfer) error
	FindByID(ctx context.Context, transferID string) (*Transfer, error)
	FindByLocation(ctx context.Context, locationID string, statuses []TransferStatus, limit, offset int) ([]*Transfer, error)
	FindPendingForSource(ctx context.Context, sourceID string) ([]*Transfer, error)
}

// LocationRepository defines the port for the location registry.
type LocationRepository interface {
	Save(ctx context.Context, location *Location) error
	FindByID(ctx context.Context, locationID string) (*Location, error)
	FindAll(ctx context.Context, activeOnly bool) ([]*Location, error)
}

// StockMovementRepository defines the port for the append-only movement log.
type StockMovementRepository interface {
	Save(ctx context.Context, movement *StockMovement) error
	FindByRecord(ctx context.Context, stockRecordID string, limit int) ([]*StockMovement, error)
	FindByReference(ctx context.Context, referenceID string) ([]*StockMovement, error)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	Publish(ctx context.Context, event DomainEvent) error
	PublishAll(ctx context.Context, events []DomainEvent) error
}
