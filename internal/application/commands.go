package application

import (
	"time"

	"github.com/medflow/stock-service/internal/domain"
)

// CreateStockRecordCommand creates a ledger entry for a product's first
// appearance at a location.
type CreateStockRecordCommand struct {
	LocationID   string
	Family       domain.ProductFamily
	ProductID    string
	ProductName  string
	InitialStock int
	MinimumStock int
	ReorderPoint int
	ActorID      string
}

// AdjustStockCommand applies a signed delta to a record's current stock.
type AdjustStockCommand struct {
	RecordID string
	Delta    int
	Reason   string
	ActorID  string
}

// ReceiveStockCommand books an inbound shipment onto a record.
type ReceiveStockCommand struct {
	RecordID    string
	Quantity    int
	ReferenceID string
	ActorID     string
}

// DeactivateRecordCommand soft-deletes a stock record.
type DeactivateRecordCommand struct {
	RecordID string
	ActorID  string
}

// ReserveStockCommand places a TTL-bounded hold for a consumer.
type ReserveStockCommand struct {
	RecordID    string
	Quantity    int
	ConsumerRef string
	TTL         time.Duration // zero means the configured default
	ActorID     string
}

// ReleaseReservationCommand gives a hold back to the available pool.
type ReleaseReservationCommand struct {
	ReservationID string
	ActorID       string
}

// FulfillReservationCommand consumes a hold.
type FulfillReservationCommand struct {
	ReservationID string
	ActorID       string
}

// ExtendReservationCommand resets a hold's expiry clock.
type ExtendReservationCommand struct {
	ReservationID string
	TTL           time.Duration
	ActorID       string
}

// TransferItemInput is one requested line of a transfer. The product is
// identified by key only; the display name is read from the source record.
type TransferItemInput struct {
	ProductID string
	Family    domain.ProductFamily
	Quantity  int
}

// CreateTransferCommand drafts a transfer between two locations.
type CreateTransferCommand struct {
	SourceID      string
	DestinationID string
	Priority      domain.TransferPriority
	Reason        string
	Items         []TransferItemInput
	ActorID       string
}

// TransferActionCommand drives a workflow transition on an existing transfer.
type TransferActionCommand struct {
	TransferID string
	ActorID    string
	Note       string
}

// ReceiveTransferCommand books an in-transit transfer at the destination.
// Missing product ids in ReceivedQuantities default to the requested quantity.
type ReceiveTransferCommand struct {
	TransferID         string
	ReceivedQuantities map[string]int
	ActorID            string
}

// QuickTransferCommand creates and submits a transfer in one step, used by
// consolidation alerts.
type QuickTransferCommand struct {
	SourceID      string
	DestinationID string
	Priority      domain.TransferPriority
	Reason        string
	Items         []TransferItemInput
	ActorID       string
}

// GetRecordQuery fetches one stock record.
type GetRecordQuery struct {
	RecordID string
}

// ListByLocationQuery lists a location's records with pagination.
type ListByLocationQuery struct {
	LocationID string
	Family     domain.ProductFamily // empty means all families
	Limit      int
	Offset     int
}

// ListTransfersQuery lists transfers touching a location.
type ListTransfersQuery struct {
	LocationID string
	Statuses   []domain.TransferStatus
	Limit      int
	Offset     int
}

// ConsolidatedViewQuery builds the cross-location availability picture for one
// product.
type ConsolidatedViewQuery struct {
	Family    domain.ProductFamily
	ProductID string
}

// ConsolidateFamilyQuery builds the paginated cross-location picture for a
// whole product family.
type ConsolidateFamilyQuery struct {
	Family domain.ProductFamily
	Limit  int
	Offset int
}

// StockAlertsQuery lists shortage alerts, optionally scoped to one location.
type StockAlertsQuery struct {
	LocationID string
}
