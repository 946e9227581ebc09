package cloudevents

import (
	"time"
)

// EventType constants for stock domain events
const (
	// Stock ledger events
	StockRecordCreated     = "clinic.stock.record-created"
	StockAdjusted          = "clinic.stock.adjusted"
	StockThresholdCrossed  = "clinic.stock.threshold-crossed"
	StockRecordDeactivated = "clinic.stock.record-deactivated"

	// Reservation events
	ReservationCreated   = "clinic.reservation.created"
	ReservationReleased  = "clinic.reservation.released"
	ReservationFulfilled = "clinic.reservation.fulfilled"
	ReservationExpired   = "clinic.reservation.expired"
	ReservationExtended  = "clinic.reservation.extended"

	// Transfer events
	TransferStatusChanged = "clinic.transfer.status-changed"
)

// Source constants for event sources
const (
	SourceStockService = "/clinic/stock-service"
	SourceJanitor      = "/clinic/stock-service/janitor"
)

// ClinicCloudEvent represents a CloudEvents v1.0 compliant event for the
// clinic stock platform
type ClinicCloudEvent struct {
	SpecVersion     string                 `json:"specversion"`
	Type            string                 `json:"type"`
	Source          string                 `json:"source"`
	Subject         string                 `json:"subject,omitempty"`
	ID              string                 `json:"id"`
	Time            time.Time              `json:"time"`
	DataContentType string                 `json:"datacontenttype"`
	Data            interface{}            `json:"data"`
	Extensions      map[string]interface{} `json:"-"`

	// Clinic-specific extensions
	CorrelationID string `json:"cliniccorrelationid,omitempty"`
	LocationID    string `json:"cliniclocationid,omitempty"`
	TransferID    string `json:"clinictransferid,omitempty"`
	ActorID       string `json:"clinicactorid,omitempty"`
}

// StockAdjustedData represents the data payload for StockAdjusted events
type StockAdjustedData struct {
	RecordID    string `json:"recordId"`
	LocationID  string `json:"locationId"`
	Family      string `json:"family"`
	ProductID   string `json:"productId"`
	PreviousQty int    `json:"previousQuantity"`
	NewQty      int    `json:"newQuantity"`
	Reason      string `json:"reason,omitempty"`
}

// StockThresholdCrossedData represents the data payload for threshold events
type StockThresholdCrossedData struct {
	RecordID       string `json:"recordId"`
	LocationID     string `json:"locationId"`
	Family         string `json:"family"`
	ProductID      string `json:"productId"`
	PreviousStatus string `json:"previousStatus"`
	NewStatus      string `json:"newStatus"`
	CurrentStock   int    `json:"currentStock"`
	Reserved       int    `json:"reserved"`
	ReorderPoint   int    `json:"reorderPoint"`
}

// ReservationData represents the data payload shared by reservation
// lifecycle events
type ReservationData struct {
	ReservationID string    `json:"reservationId"`
	StockRecordID string    `json:"stockRecordId"`
	LocationID    string    `json:"locationId"`
	Family        string    `json:"family"`
	ProductID     string    `json:"productId"`
	Quantity      int       `json:"quantity"`
	ConsumerRef   string    `json:"consumerRef,omitempty"`
	ExpiresAt     time.Time `json:"expiresAt,omitempty"`
}

// TransferStatusChangedData represents the data payload for transfer
// transition events
type TransferStatusChangedData struct {
	TransferID     string `json:"transferId"`
	SourceID       string `json:"sourceId"`
	DestinationID  string `json:"destinationId"`
	PreviousStatus string `json:"previousStatus"`
	NewStatus      string `json:"newStatus"`
	ItemCount      int    `json:"itemCount"`
	TotalRequested int    `json:"totalRequested"`
}
