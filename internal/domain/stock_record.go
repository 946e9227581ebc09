package domain

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StockStatus is the derived availability state of a stock record.
type StockStatus string

const (
	StatusInStock    StockStatus = "in_stock"
	StatusLowStock   StockStatus = "low_stock"
	StatusOutOfStock StockStatus = "out_of_stock"
	// StatusNotStocked is synthetic: it only appears in consolidated views
	// for locations that hold no record at all for a product.
	StatusNotStocked StockStatus = "not_stocked"
)

// StockRecord is the aggregate root for one (location, family, product)
// ledger entry. The central invariant is 0 <= Reserved <= CurrentStock:
// available quantity (CurrentStock - Reserved) must never go negative.
//
// Only the reservation operations touch Reserved; stock adjustments touch
// CurrentStock. Records are never deleted while referenced; Active is the
// soft-delete flag.
type StockRecord struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RecordID    string             `bson:"recordId" json:"recordId"`
	LocationID  string             `bson:"locationId" json:"locationId"`
	Family      ProductFamily      `bson:"family" json:"family"`
	ProductID   string             `bson:"productId" json:"productId"`
	ProductName string             `bson:"productName" json:"productName"`
	Attributes  *AttributeEnvelope `bson:"attributes,omitempty" json:"attributes,omitempty"`

	CurrentStock int `bson:"currentStock" json:"currentStock"`
	Reserved     int `bson:"reserved" json:"reserved"`
	MinimumStock int `bson:"minimumStock" json:"minimumStock"`
	ReorderPoint int `bson:"reorderPoint" json:"reorderPoint"`

	IsDepot bool `bson:"isDepot" json:"isDepot"`
	Active  bool `bson:"active" json:"active"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`

	domainEvents []DomainEvent `bson:"-" json:"-"`
}

// NewStockRecord creates a stock record for a product's first appearance at a
// location (manual creation or first shipment receipt).
func NewStockRecord(locationID string, family ProductFamily, productID, productName string, minimumStock, reorderPoint int, isDepot bool) (*StockRecord, error) {
	if !family.IsValid() {
		return nil, fmt.Errorf("unknown product family %q", family)
	}
	now := time.Now().UTC()
	return &StockRecord{
		RecordID:     fmt.Sprintf("%s:%s:%s", locationID, family, productID),
		LocationID:   locationID,
		Family:       family,
		ProductID:    productID,
		ProductName:  productName,
		CurrentStock: 0,
		Reserved:     0,
		MinimumStock: minimumStock,
		ReorderPoint: reorderPoint,
		IsDepot:      isDepot,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
		domainEvents: make([]DomainEvent, 0),
	}, nil
}

// Available returns the quantity that can still be promised.
func (r *StockRecord) Available() int {
	return r.CurrentStock - r.Reserved
}

// Status derives the availability state from the counters.
func (r *StockRecord) Status() StockStatus {
	if r.Available() <= 0 {
		return StatusOutOfStock
	}
	if r.CurrentStock <= r.ReorderPoint {
		return StatusLowStock
	}
	return StatusInStock
}

// TransferableSurplus is the quantity this record can donate to another
// location without dropping below its own minimum.
func (r *StockRecord) TransferableSurplus() int {
	surplus := r.CurrentStock - r.MinimumStock
	if surplus < 0 {
		return 0
	}
	return surplus
}

// Reserve places a hold of quantity units. Fails when the quantity exceeds
// current availability.
func (r *StockRecord) Reserve(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !r.Active {
		return ErrStockRecordInactive
	}
	if quantity > r.Available() {
		return ErrInsufficientStock
	}
	r.Reserved += quantity
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// ReleaseReserved returns quantity units from reserved to available.
// CurrentStock is untouched.
func (r *StockRecord) ReleaseReserved(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > r.Reserved {
		return ErrInvalidState
	}
	r.Reserved -= quantity
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// Fulfill consumes quantity units of previously reserved stock: both
// CurrentStock and Reserved decrease, availability is unchanged.
func (r *StockRecord) Fulfill(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > r.Reserved {
		return ErrInvalidState
	}
	before := r.Status()
	r.CurrentStock -= quantity
	r.Reserved -= quantity
	r.UpdatedAt = time.Now().UTC()
	r.emitThresholdCrossing(before)
	return nil
}

// Adjust changes CurrentStock by delta: positive for receipts, negative for
// consumption or shrinkage. The result must not drop below Reserved.
func (r *StockRecord) Adjust(delta int, reason, actorID string) error {
	if delta == 0 {
		return ErrInvalidQuantity
	}
	result := r.CurrentStock + delta
	if result < r.Reserved {
		return ErrInvalidAdjustment
	}
	before := r.Status()
	old := r.CurrentStock
	r.CurrentStock = result
	r.UpdatedAt = time.Now().UTC()

	r.addDomainEvent(&StockAdjustedEvent{
		RecordID:    r.RecordID,
		LocationID:  r.LocationID,
		Family:      r.Family,
		ProductID:   r.ProductID,
		OldQuantity: old,
		NewQuantity: r.CurrentStock,
		Reason:      reason,
		ActorID:     actorID,
		AdjustedAt:  r.UpdatedAt,
	})
	r.emitThresholdCrossing(before)
	return nil
}

// Deactivate soft-deletes the record. The row stays because reservations and
// transfer history may still reference it.
func (r *StockRecord) Deactivate() {
	r.Active = false
	r.UpdatedAt = time.Now().UTC()
}

func (r *StockRecord) emitThresholdCrossing(before StockStatus) {
	after := r.Status()
	if after == before || after == StatusInStock {
		return
	}
	r.addDomainEvent(&StockThresholdCrossedEvent{
		RecordID:       r.RecordID,
		LocationID:     r.LocationID,
		Family:         r.Family,
		ProductID:      r.ProductID,
		PreviousStatus: before,
		NewStatus:      after,
		CurrentStock:   r.CurrentStock,
		Reserved:       r.Reserved,
		ReorderPoint:   r.ReorderPoint,
		CrossedAt:      time.Now().UTC(),
	})
}

func (r *StockRecord) addDomainEvent(event DomainEvent) {
	r.domainEvents = append(r.domainEvents, event)
}

// GetDomainEvents returns pending domain events.
func (r *StockRecord) GetDomainEvents() []DomainEvent {
	return r.domainEvents
}

// ClearDomainEvents drops pending domain events after they are persisted.
func (r *StockRecord) ClearDomainEvents() {
	r.domainEvents = make([]DomainEvent, 0)
}
