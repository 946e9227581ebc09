package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReservationStatus is the lifecycle state of a hold. Every state except
// active is terminal; a terminal reservation is immutable.
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationReleased  ReservationStatus = "released"
	ReservationFulfilled ReservationStatus = "fulfilled"
	ReservationExpired   ReservationStatus = "expired"
)

// IsTerminal reports whether no further transition is allowed.
func (s ReservationStatus) IsTerminal() bool {
	return s != ReservationActive
}

// DefaultReservationTTL is the hold duration applied when the caller does not
// supply one. Conservative by design; tune via configuration.
const DefaultReservationTTL = 4 * time.Hour

// Reservation is a time-bounded hold of quantity units against one stock
// record for one consumer (typically a pending sales-order line). The sum of
// quantities over all active reservations on a record equals that record's
// Reserved counter; the pair is maintained transactionally, never recomputed
// from a scan outside audit/repair tooling.
type Reservation struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ReservationID string             `bson:"reservationId" json:"reservationId"`

	// Stock record compound key, denormalized so the janitor can restore
	// counters without a join.
	StockRecordID string        `bson:"stockRecordId" json:"stockRecordId"`
	LocationID    string        `bson:"locationId" json:"locationId"`
	Family        ProductFamily `bson:"family" json:"family"`
	ProductID     string        `bson:"productId" json:"productId"`

	Quantity    int               `bson:"quantity" json:"quantity"`
	ConsumerRef string            `bson:"consumerRef" json:"consumerRef"` // order id
	Status      ReservationStatus `bson:"status" json:"status"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	ExpiresAt time.Time `bson:"expiresAt" json:"expiresAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
	CreatedBy string    `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	UpdatedBy string    `bson:"updatedBy,omitempty" json:"updatedBy,omitempty"`
}

// NewReservation creates an active hold against a stock record.
func NewReservation(reservationID string, record *StockRecord, quantity int, consumerRef string, ttl time.Duration, createdBy string) (*Reservation, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if ttl <= 0 {
		ttl = DefaultReservationTTL
	}
	now := time.Now().UTC()
	return &Reservation{
		ReservationID: reservationID,
		StockRecordID: record.RecordID,
		LocationID:    record.LocationID,
		Family:        record.Family,
		ProductID:     record.ProductID,
		Quantity:      quantity,
		ConsumerRef:   consumerRef,
		Status:        ReservationActive,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
		UpdatedAt:     now,
		CreatedBy:     createdBy,
	}, nil
}

// Release marks the reservation released. Releasing an already-terminal
// reservation is a no-op success so callers can retry safely.
func (r *Reservation) Release(updatedBy string) error {
	if r.Status.IsTerminal() {
		return nil
	}
	r.Status = ReservationReleased
	r.UpdatedAt = time.Now().UTC()
	r.UpdatedBy = updatedBy
	return nil
}

// Fulfill marks the reservation consumed. Unlike Release this requires the
// active state: fulfilling released or expired stock would corrupt counters.
func (r *Reservation) Fulfill(updatedBy string) error {
	if r.Status != ReservationActive {
		return ErrInvalidState
	}
	r.Status = ReservationFulfilled
	r.UpdatedAt = time.Now().UTC()
	r.UpdatedBy = updatedBy
	return nil
}

// Expire marks the reservation expired (system-initiated release).
func (r *Reservation) Expire() error {
	if r.Status != ReservationActive {
		return ErrInvalidState
	}
	r.Status = ReservationExpired
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// Extend resets the expiry to now + ttl. Used when an order is still in
// progress near expiry.
func (r *Reservation) Extend(ttl time.Duration) error {
	if r.Status != ReservationActive {
		return ErrInvalidState
	}
	if ttl <= 0 {
		return ErrInvalidQuantity
	}
	now := time.Now().UTC()
	r.ExpiresAt = now.Add(ttl)
	r.UpdatedAt = now
	return nil
}

// IsExpired reports whether the hold is past its expiry instant.
func (r *Reservation) IsExpired() bool {
	return time.Now().After(r.ExpiresAt)
}
