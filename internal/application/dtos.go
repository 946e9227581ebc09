package application

import "time"

// StockRecordDTO represents a stock record in responses.
type StockRecordDTO struct {
	RecordID     string    `json:"recordId"`
	LocationID   string    `json:"locationId"`
	Family       string    `json:"family"`
	ProductID    string    `json:"productId"`
	ProductName  string    `json:"productName"`
	CurrentStock int       `json:"currentStock"`
	Reserved     int       `json:"reserved"`
	Available    int       `json:"available"`
	MinimumStock int       `json:"minimumStock"`
	ReorderPoint int       `json:"reorderPoint"`
	Status       string    `json:"status"`
	IsDepot      bool      `json:"isDepot"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ReservationDTO represents a hold in responses.
type ReservationDTO struct {
	ReservationID string    `json:"reservationId"`
	StockRecordID string    `json:"stockRecordId"`
	LocationID    string    `json:"locationId"`
	Family        string    `json:"family"`
	ProductID     string    `json:"productId"`
	Quantity      int       `json:"quantity"`
	ConsumerRef   string    `json:"consumerRef"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// TransferItemDTO represents one line of a transfer.
type TransferItemDTO struct {
	ProductID         string `json:"productId"`
	Family            string `json:"family"`
	ProductName       string `json:"productName"`
	RequestedQuantity int    `json:"requestedQuantity"`
	ReceivedQuantity  int    `json:"receivedQuantity"`
	ReservationID     string `json:"reservationId,omitempty"`
	Status            string `json:"status"`
}

// ApprovalEntryDTO is one audit-trail line.
type ApprovalEntryDTO struct {
	Action         string    `json:"action"`
	PerformedBy    string    `json:"performedBy"`
	PreviousStatus string    `json:"previousStatus"`
	NewStatus      string    `json:"newStatus"`
	Note           string    `json:"note,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// TransferDTO represents a transfer in responses.
type TransferDTO struct {
	TransferID      string             `json:"transferId"`
	SourceID        string             `json:"sourceId"`
	DestinationID   string             `json:"destinationId"`
	Status          string             `json:"status"`
	Priority        string             `json:"priority"`
	Reason          string             `json:"reason,omitempty"`
	Items           []TransferItemDTO  `json:"items"`
	ApprovalHistory []ApprovalEntryDTO `json:"approvalHistory"`
	IsAutoGenerated bool               `json:"isAutoGenerated"`
	RequestedAt     *time.Time         `json:"requestedAt,omitempty"`
	ApprovedAt      *time.Time         `json:"approvedAt,omitempty"`
	ShippedAt       *time.Time         `json:"shippedAt,omitempty"`
	ReceivedAt      *time.Time         `json:"receivedAt,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

// MovementDTO represents one audit-log entry.
type MovementDTO struct {
	MovementID    string    `json:"movementId"`
	StockRecordID string    `json:"stockRecordId"`
	LocationID    string    `json:"locationId"`
	Family        string    `json:"family"`
	ProductID     string    `json:"productId"`
	Type          string    `json:"type"`
	Quantity      int       `json:"quantity"`
	ReferenceID   string    `json:"referenceId,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	ActorID       string    `json:"actorId,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// LocationDTO represents a clinic or the depot in responses.
type LocationDTO struct {
	LocationID string `json:"locationId"`
	Name       string `json:"name"`
	IsDepot    bool   `json:"isDepot"`
	Active     bool   `json:"active"`
}

// LocationStockDTO is one location's slice of a consolidated product view.
// Synthetic not_stocked rows carry zero counters and no record id.
type LocationStockDTO struct {
	LocationID          string `json:"locationId"`
	LocationName        string `json:"locationName"`
	IsDepot             bool   `json:"isDepot"`
	RecordID            string `json:"recordId,omitempty"`
	CurrentStock        int    `json:"currentStock"`
	Reserved            int    `json:"reserved"`
	Available           int    `json:"available"`
	Status              string `json:"status"`
	TransferableSurplus int    `json:"transferableSurplus"`
}

// ConsolidatedStockDTO is the cross-location availability picture for one
// product.
type ConsolidatedStockDTO struct {
	Family         string             `json:"family"`
	ProductID      string             `json:"productId"`
	ProductName    string             `json:"productName"`
	TotalStock     int                `json:"totalStock"`
	TotalReserved  int                `json:"totalReserved"`
	TotalAvailable int                `json:"totalAvailable"`
	AlertLevel     string             `json:"alertLevel"`
	Locations      []LocationStockDTO `json:"locations"`
}

// DonorDTO is a candidate source location for covering a shortage.
type DonorDTO struct {
	LocationID          string `json:"locationId"`
	LocationName        string `json:"locationName"`
	IsDepot             bool   `json:"isDepot"`
	TransferableSurplus int    `json:"transferableSurplus"`
}

// StockAlertDTO is one shortage with its ranked donor candidates.
type StockAlertDTO struct {
	RecordID     string     `json:"recordId"`
	LocationID   string     `json:"locationId"`
	Family       string     `json:"family"`
	ProductID    string     `json:"productId"`
	ProductName  string     `json:"productName"`
	CurrentStock int        `json:"currentStock"`
	Available    int        `json:"available"`
	ReorderPoint int        `json:"reorderPoint"`
	Status       string     `json:"status"`
	SuggestedQty int        `json:"suggestedQuantity"`
	CanTransfer  bool       `json:"canTransfer"`
	Donors       []DonorDTO `json:"donors"`
}

// ReservationSweepResultDTO summarizes one janitor pass.
type ReservationSweepResultDTO struct {
	Scanned int `json:"scanned"`
	Expired int `json:"expired"`
	Failed  int `json:"failed"`
}
