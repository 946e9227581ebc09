package domain

import "time"

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// StockAdjustedEvent is published when a stock count is manually corrected
type StockAdjustedEvent struct {
	RecordID    string        `json:"recordId"`
	LocationID  string        `json:"locationId"`
	Family      ProductFamily `json:"family"`
	ProductID   string        `json:"productId"`
	OldQuantity int           `json:"oldQuantity"`
	NewQuantity int           `json:"newQuantity"`
	Reason      string        `json:"reason"`
	ActorID     string        `json:"actorId"`
	AdjustedAt  time.Time     `json:"adjustedAt"`
}

func (e *StockAdjustedEvent) EventType() string     { return "clinic.stock.adjusted" }
func (e *StockAdjustedEvent) OccurredAt() time.Time { return e.AdjustedAt }

// StockThresholdCrossedEvent is published when a record drops into low-stock
// or out-of-stock territory
type StockThresholdCrossedEvent struct {
	RecordID       string        `json:"recordId"`
	LocationID     string        `json:"locationId"`
	Family         ProductFamily `json:"family"`
	ProductID      string        `json:"productId"`
	PreviousStatus StockStatus   `json:"previousStatus"`
	NewStatus      StockStatus   `json:"newStatus"`
	CurrentStock   int           `json:"currentStock"`
	Reserved       int           `json:"reserved"`
	ReorderPoint   int           `json:"reorderPoint"`
	CrossedAt      time.Time     `json:"crossedAt"`
}

func (e *StockThresholdCrossedEvent) EventType() string     { return "clinic.stock.threshold-crossed" }
func (e *StockThresholdCrossedEvent) OccurredAt() time.Time { return e.CrossedAt }

// ReservationCreatedEvent is published when stock is put on hold
type ReservationCreatedEvent struct {
	ReservationID string        `json:"reservationId"`
	StockRecordID string        `json:"stockRecordId"`
	LocationID    string        `json:"locationId"`
	Family        ProductFamily `json:"family"`
	ProductID     string        `json:"productId"`
	Quantity      int           `json:"quantity"`
	ConsumerRef   string        `json:"consumerRef"`
	ExpiresAt     time.Time     `json:"expiresAt"`
	CreatedAt     time.Time     `json:"createdAt"`
}

func (e *ReservationCreatedEvent) EventType() string     { return "clinic.reservation.created" }
func (e *ReservationCreatedEvent) OccurredAt() time.Time { return e.CreatedAt }

// ReservationReleasedEvent is published when a hold is given back
type ReservationReleasedEvent struct {
	ReservationID string        `json:"reservationId"`
	StockRecordID string        `json:"stockRecordId"`
	LocationID    string        `json:"locationId"`
	Family        ProductFamily `json:"family"`
	ProductID     string        `json:"productId"`
	Quantity      int           `json:"quantity"`
	ReleasedAt    time.Time     `json:"releasedAt"`
}

func (e *ReservationReleasedEvent) EventType() string     { return "clinic.reservation.released" }
func (e *ReservationReleasedEvent) OccurredAt() time.Time { return e.ReleasedAt }

// ReservationFulfilledEvent is published when held stock is consumed
type ReservationFulfilledEvent struct {
	ReservationID string        `json:"reservationId"`
	StockRecordID string        `json:"stockRecordId"`
	LocationID    string        `json:"locationId"`
	Family        ProductFamily `json:"family"`
	ProductID     string        `json:"productId"`
	Quantity      int           `json:"quantity"`
	FulfilledAt   time.Time     `json:"fulfilledAt"`
}

func (e *ReservationFulfilledEvent) EventType() string     { return "clinic.reservation.fulfilled" }
func (e *ReservationFulfilledEvent) OccurredAt() time.Time { return e.FulfilledAt }

// ReservationExpiredEvent is published by the janitor when a stale hold is
// reclaimed
type ReservationExpiredEvent struct {
	ReservationID string        `json:"reservationId"`
	StockRecordID string        `json:"stockRecordId"`
	LocationID    string        `json:"locationId"`
	Family        ProductFamily `json:"family"`
	ProductID     string        `json:"productId"`
	Quantity      int           `json:"quantity"`
	ExpiredAt     time.Time     `json:"expiredAt"`
}

func (e *ReservationExpiredEvent) EventType() string     { return "clinic.reservation.expired" }
func (e *ReservationExpiredEvent) OccurredAt() time.Time { return e.ExpiredAt }

// TransferStatusChangedEvent is published on every transfer workflow
// transition
type TransferStatusChangedEvent struct {
	TransferID     string         `json:"transferId"`
	SourceID       string         `json:"sourceId"`
	DestinationID  string         `json:"destinationId"`
	PreviousStatus TransferStatus `json:"previousStatus"`
	NewStatus      TransferStatus `json:"newStatus"`
	ActorID        string         `json:"actorId"`
	ChangedAt      time.Time      `json:"changedAt"`
}

func (e *TransferStatusChangedEvent) EventType() string     { return "clinic.transfer.status-changed" }
func (e *TransferStatusChangedEvent) OccurredAt() time.Time { return e.ChangedAt }
