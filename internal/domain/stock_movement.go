package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MovementType classifies an entry in the stock movement log.
type MovementType string

const (
	MovementReserve     MovementType = "reserve"
	MovementRelease     MovementType = "release"
	MovementFulfill     MovementType = "fulfill"
	MovementExpire      MovementType = "expire"
	MovementAdjust      MovementType = "adjust"
	MovementTransferOut MovementType = "transfer_out"
	MovementTransferIn  MovementType = "transfer_in"
)

// StockMovement is one append-only audit entry. Movements are written in the
// same transaction as the stock mutation they describe, so the log and the
// counters cannot disagree.
type StockMovement struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	MovementID    string             `bson:"movementId" json:"movementId"`
	StockRecordID string             `bson:"stockRecordId" json:"stockRecordId"`
	LocationID    string             `bson:"locationId" json:"locationId"`
	Family        ProductFamily      `bson:"family" json:"family"`
	ProductID     string             `bson:"productId" json:"productId"`
	Type          MovementType       `bson:"type" json:"type"`
	Quantity      int                `bson:"quantity" json:"quantity"`
	ReferenceID   string             `bson:"referenceId,omitempty" json:"referenceId,omitempty"`
	Reason        string             `bson:"reason,omitempty" json:"reason,omitempty"`
	ActorID       string             `bson:"actorId,omitempty" json:"actorId,omitempty"`
	OccurredAt    time.Time          `bson:"occurredAt" json:"occurredAt"`
}

// NewStockMovement records one stock mutation. referenceID points at the
// reservation or transfer that caused it, when there is one.
func NewStockMovement(movementID string, record *StockRecord, movementType MovementType, quantity int, referenceID, reason, actorID string) *StockMovement {
	return &StockMovement{
		MovementID:    movementID,
		StockRecordID: record.RecordID,
		LocationID:    record.LocationID,
		Family:        record.Family,
		ProductID:     record.ProductID,
		Type:          movementType,
		Quantity:      quantity,
		ReferenceID:   referenceID,
		Reason:        reason,
		ActorID:       actorID,
		OccurredAt:    time.Now().UTC(),
	}
}
