package cloudevents

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventFactory creates CloudEvents for stock domain events
type EventFactory struct {
	source string
}

// NewEventFactory creates a new EventFactory for a specific source
func NewEventFactory(source string) *EventFactory {
	return &EventFactory{source: source}
}

// CreateEvent creates a new ClinicCloudEvent with the given parameters
func (f *EventFactory) CreateEvent(
	ctx context.Context,
	eventType string,
	subject string,
	data interface{},
) *ClinicCloudEvent {
	event := &ClinicCloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              uuid.New().String(),
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
		Extensions:      make(map[string]interface{}),
	}

	return event
}

// CreateStockAdjustedEvent creates a StockAdjusted event
func (f *EventFactory) CreateStockAdjustedEvent(
	ctx context.Context,
	recordID string,
	locationID string,
	family string,
	productID string,
	previousQty int,
	newQty int,
	reason string,
) *ClinicCloudEvent {
	data := StockAdjustedData{
		RecordID:    recordID,
		LocationID:  locationID,
		Family:      family,
		ProductID:   productID,
		PreviousQty: previousQty,
		NewQty:      newQty,
		Reason:      reason,
	}
	return f.CreateEvent(ctx, StockAdjusted, "stock-record/"+recordID, data).
		WithLocation(locationID)
}

// CreateThresholdCrossedEvent creates a StockThresholdCrossed event
func (f *EventFactory) CreateThresholdCrossedEvent(
	ctx context.Context,
	data StockThresholdCrossedData,
) *ClinicCloudEvent {
	return f.CreateEvent(ctx, StockThresholdCrossed, "stock-record/"+data.RecordID, data).
		WithLocation(data.LocationID)
}

// CreateReservationEvent creates one of the reservation lifecycle events
func (f *EventFactory) CreateReservationEvent(
	ctx context.Context,
	eventType string,
	data ReservationData,
) *ClinicCloudEvent {
	return f.CreateEvent(ctx, eventType, "reservation/"+data.ReservationID, data).
		WithLocation(data.LocationID)
}

// CreateTransferStatusChangedEvent creates a TransferStatusChanged event
func (f *EventFactory) CreateTransferStatusChangedEvent(
	ctx context.Context,
	data TransferStatusChangedData,
	actorID string,
) *ClinicCloudEvent {
	event := f.CreateEvent(ctx, TransferStatusChanged, "transfer/"+data.TransferID, data).
		WithActor(actorID)
	event.TransferID = data.TransferID
	return event
}
