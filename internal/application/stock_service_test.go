package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/stock-service/internal/domain"
)

func newStockService(stockRepo *fakeStockRepo, movementRepo *fakeMovementRepo, locationRepo *fakeLocationRepo, publisher *fakeEventPublisher) *StockApplicationService {
	return NewStockApplicationService(stockRepo, movementRepo, locationRepo, publisher, testMetrics(), testLogger())
}

func TestCreateRecord(t *testing.T) {
	stockRepo := newFakeStockRepo()
	movementRepo := &fakeMovementRepo{}
	locationRepo := newFakeLocationRepo(domain.NewLocation("clinic-north", "North Clinic", false))
	publisher := &fakeEventPublisher{}
	svc := newStockService(stockRepo, movementRepo, locationRepo, publisher)

	dto, err := svc.CreateRecord(context.Background(), CreateStockRecordCommand{
		LocationID:   "clinic-north",
		Family:       domain.FamilyPharmacy,
		ProductID:    "RX-0001",
		ProductName:  "Timolol 0.5%",
		InitialStock: 25,
		MinimumStock: 5,
		ReorderPoint: 10,
		ActorID:      "user-001",
	})
	require.NoError(t, err)

	assert.Equal(t, "clinic-north:pharmacy:RX-0001", dto.RecordID)
	assert.Equal(t, 25, dto.CurrentStock)
	assert.Equal(t, 0, dto.Reserved)
	assert.Equal(t, 25, dto.Available)
	assert.Equal(t, string(domain.StatusInStock), dto.Status)

	// Initial stock is audited as an adjustment.
	movements := movementRepo.byType(domain.MovementAdjust)
	require.Len(t, movements, 1)
	assert.Equal(t, 25, movements[0].Quantity)
}

func TestCreateRecord_UnknownLocation(t *testing.T) {
	svc := newStockService(newFakeStockRepo(), &fakeMovementRepo{}, newFakeLocationRepo(), &fakeEventPublisher{})

	_, err := svc.CreateRecord(context.Background(), CreateStockRecordCommand{
		LocationID: "clinic-ghost",
		Family:     domain.FamilyPharmacy,
		ProductID:  "RX-0001",
	})
	assert.ErrorIs(t, err, domain.ErrLocationNotFound)
}

func TestCreateRecord_InactiveLocation(t *testing.T) {
	closed := domain.NewLocation("clinic-closed", "Closed Clinic", false)
	closed.Deactivate()
	svc := newStockService(newFakeStockRepo(), &fakeMovementRepo{}, newFakeLocationRepo(closed), &fakeEventPublisher{})

	_, err := svc.CreateRecord(context.Background(), CreateStockRecordCommand{
		LocationID: "clinic-closed",
		Family:     domain.FamilyPharmacy,
		ProductID:  "RX-0001",
	})
	assert.ErrorIs(t, err, domain.ErrLocationInactive)
}

func TestCreateRecord_DuplicateKey(t *testing.T) {
	stockRepo := newFakeStockRepo()
	seedRecord(stockRepo, "clinic-north", "RX-0001", 10, 0)
	locationRepo := newFakeLocationRepo(domain.NewLocation("clinic-north", "North Clinic", false))
	svc := newStockService(stockRepo, &fakeMovementRepo{}, locationRepo, &fakeEventPublisher{})

	_, err := svc.CreateRecord(context.Background(), CreateStockRecordCommand{
		LocationID:  "clinic-north",
		Family:      domain.FamilyPharmacy,
		ProductID:   "RX-0001",
		ProductName: "Timolol 0.5%",
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateStockRecord)
}

func TestAdjust_AppliesDeltaAndPublishes(t *testing.T) {
	stockRepo := newFakeStockRepo()
	record := seedRecord(stockRepo, "clinic-north", "RX-0001", 20, 0)
	movementRepo := &fakeMovementRepo{}
	publisher := &fakeEventPublisher{}
	svc := newStockService(stockRepo, movementRepo, newFakeLocationRepo(), publisher)

	dto, err := svc.Adjust(context.Background(), AdjustStockCommand{
		RecordID: record.RecordID,
		Delta:    -8,
		Reason:   "cycle count",
		ActorID:  "user-001",
	})
	require.NoError(t, err)
	assert.Equal(t, 12, dto.CurrentStock)

	require.Len(t, movementRepo.byType(domain.MovementAdjust), 1)
	assert.Contains(t, publisher.eventTypes(), "clinic.stock.adjusted")
}

func TestAdjust_EmitsThresholdCrossing(t *testing.T) {
	stockRepo := newFakeStockRepo()
	record := seedRecord(stockRepo, "clinic-north", "RX-0001", 20, 0) // reorderPoint 10
	publisher := &fakeEventPublisher{}
	svc := newStockService(stockRepo, &fakeMovementRepo{}, newFakeLocationRepo(), publisher)

	_, err := svc.Adjust(context.Background(), AdjustStockCommand{
		RecordID: record.RecordID,
		Delta:    -12,
		Reason:   "damage write-off",
		ActorID:  "user-001",
	})
	require.NoError(t, err)

	types := publisher.eventTypes()
	assert.Contains(t, types, "clinic.stock.adjusted")
	assert.Contains(t, types, "clinic.stock.threshold-crossed")
}

func TestAdjust_GuardRejectsDropBelowReserved(t *testing.T) {
	stockRepo := newFakeStockRepo()
	record := seedRecord(stockRepo, "clinic-north", "RX-0001", 10, 6)
	svc := newStockService(stockRepo, &fakeMovementRepo{}, newFakeLocationRepo(), &fakeEventPublisher{})

	_, err := svc.Adjust(context.Background(), AdjustStockCommand{
		RecordID: record.RecordID,
		Delta:    -5,
		ActorID:  "user-001",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAdjustment)

	// Counters untouched.
	current := stockRepo.get(record.RecordID)
	assert.Equal(t, 10, current.CurrentStock)
	assert.Equal(t, 6, current.Reserved)
}

func TestAdjust_ZeroDelta(t *testing.T) {
	svc := newStockService(newFakeStockRepo(), &fakeMovementRepo{}, newFakeLocationRepo(), &fakeEventPublisher{})
	_, err := svc.Adjust(context.Background(), AdjustStockCommand{RecordID: "x", Delta: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestAdjust_InactiveRecord(t *testing.T) {
	stockRepo := newFakeStockRepo()
	record := seedRecord(stockRepo, "clinic-north", "RX-0001", 10, 0)
	stockRepo.records[record.RecordID].Active = false
	svc := newStockService(stockRepo, &fakeMovementRepo{}, newFakeLocationRepo(), &fakeEventPublisher{})

	_, err := svc.Adjust(context.Background(), AdjustStockCommand{RecordID: record.RecordID, Delta: 5})
	assert.ErrorIs(t, err, domain.ErrStockRecordInactive)
}

func TestReceive_IncrementsStock(t *testing.T) {
	stockRepo := newFakeStockRepo()
	record := seedRecord(stockRepo, "clinic-north", "RX-0001", 3, 0)
	movementRepo := &fakeMovementRepo{}
	svc := newStockService(stockRepo, movementRepo, newFakeLocationRepo(), &fakeEventPublisher{})

	dto, err := svc.Receive(context.Background(), ReceiveStockCommand{
		RecordID:    record.RecordID,
		Quantity:    50,
		ReferenceID: "PO-1001",
		ActorID:     "user-001",
	})
	require.NoError(t, err)
	assert.Equal(t, 53, dto.CurrentStock)

	movements := movementRepo.byType(domain.MovementAdjust)
	require.Len(t, movements, 1)
	assert.Equal(t, "PO-1001", movements[0].ReferenceID)
}

func TestReceive_RejectsNonPositive(t *testing.T) {
	svc := newStockService(newFakeStockRepo(), &fakeMovementRepo{}, newFakeLocationRepo(), &fakeEventPublisher{})
	_, err := svc.Receive(context.Background(), ReceiveStockCommand{RecordID: "x", Quantity: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestDeactivate(t *testing.T) {
	stockRepo := newFakeStockRepo()
	record := seedRecord(stockRepo, "clinic-north", "RX-0001", 10, 0)
	svc := newStockService(stockRepo, &fakeMovementRepo{}, newFakeLocationRepo(), &fakeEventPublisher{})

	err := svc.Deactivate(context.Background(), DeactivateRecordCommand{RecordID: record.RecordID, ActorID: "user-001"})
	require.NoError(t, err)
	assert.False(t, stockRepo.get(record.RecordID).Active)
}

func TestDeactivate_RejectedWhileReserved(t *testing.T) {
	stockRepo := newFakeStockRepo()
	record := seedRecord(stockRepo, "clinic-north", "RX-0001", 10, 2)
	svc := newStockService(stockRepo, &fakeMovementRepo{}, newFakeLocationRepo(), &fakeEventPublisher{})

	err := svc.Deactivate(context.Background(), DeactivateRecordCommand{RecordID: record.RecordID})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.True(t, stockRepo.get(record.RecordID).Active)
}

func TestGetLowStock(t *testing.T) {
	stockRepo := newFakeStockRepo()
	seedRecord(stockRepo, "clinic-north", "RX-0001", 8, 0)  // under reorder point
	seedRecord(stockRepo, "clinic-north", "RX-0002", 50, 0) // healthy
	seedRecord(stockRepo, "clinic-north", "RX-0003", 20, 20) // nothing available
	svc := newStockService(stockRepo, &fakeMovementRepo{}, newFakeLocationRepo(), &fakeEventPublisher{})

	dtos, err := svc.GetLowStock(context.Background(), "clinic-north")
	require.NoError(t, err)
	assert.Len(t, dtos, 2)
}

func TestListByLocation_UnknownLocation(t *testing.T) {
	svc := newStockService(newFakeStockRepo(), &fakeMovementRepo{}, newFakeLocationRepo(), &fakeEventPublisher{})
	_, err := svc.ListByLocation(context.Background(), ListByLocationQuery{LocationID: "clinic-ghost"})
	assert.ErrorIs(t, err, domain.ErrLocationNotFound)
}

func TestGetMovements_UnknownRecord(t *testing.T) {
	svc := newStockService(newFakeStockRepo(), &fakeMovementRepo{}, newFakeLocationRepo(), &fakeEventPublisher{})
	_, err := svc.GetMovements(context.Background(), "missing", 10)
	assert.ErrorIs(t, err, domain.ErrStockRecordNotFound)
}
