package application

import (
	"context"
	"errors"

	"github.com/medflow/stock-service/internal/domain"
	"github.com/medflow/stock-service/pkg/logging"
	"github.com/medflow/stock-service/pkg/metrics"
)

// StockApplicationService handles the stock ledger use cases: record
// lifecycle, adjustments, receipts and the movement log.
//
// Counter mutations go through the repository's conditional operations so the
// availability invariant is enforced at the storage layer; the service is
// responsible for ordering, audit movements and event emission.
type StockApplicationService struct {
	stockRepo    domain.StockRecordRepository
	movementRepo domain.StockMovementRepository
	locationRepo domain.LocationRepository
	publisher    domain.EventPublisher
	metrics      *metrics.Metrics
	logger       *logging.Logger
}

// NewStockApplicationService creates a stock application service.
func NewStockApplicationService(
	stockRepo domain.StockRecordRepository,
	movementRepo domain.StockMovementRepository,
	locationRepo domain.LocationRepository,
	publisher domain.EventPublisher,
	m *metrics.Metrics,
	logger *logging.Logger,
) *StockApplicationService {
	return &StockApplicationService{
		stockRepo:    stockRepo,
		movementRepo: movementRepo,
		locationRepo: locationRepo,
		publisher:    publisher,
		metrics:      m,
		logger:       logger,
	}
}

// CreateRecord creates a stock record at a location. The location must exist
// and be active; the (location, family, product) key must be unused.
func (s *StockApplicationService) CreateRecord(ctx context.Context, cmd CreateStockRecordCommand) (*StockRecordDTO, error) {
	location, err := s.locationRepo.FindByID(ctx, cmd.LocationID)
	if err != nil {
		return nil, err
	}
	if !location.Active {
		return nil, domain.ErrLocationInactive
	}

	if _, err := s.stockRepo.FindByKey(ctx, cmd.LocationID, cmd.Family, cmd.ProductID); err == nil {
		return nil, domain.ErrDuplicateStockRecord
	} else if !errors.Is(err, domain.ErrStockRecordNotFound) {
		return nil, err
	}

	record, err := domain.NewStockRecord(cmd.LocationID, cmd.Family, cmd.ProductID, cmd.ProductName, cmd.MinimumStock, cmd.ReorderPoint, location.IsDepot)
	if err != nil {
		return nil, err
	}
	if cmd.InitialStock < 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if cmd.InitialStock > 0 {
		if err := record.Adjust(cmd.InitialStock, "initial stock", cmd.ActorID); err != nil {
			return nil, err
		}
	}

	if err := s.stockRepo.Save(ctx, record); err != nil {
		s.logger.Error("Failed to create stock record", "recordId", record.RecordID, "error", err)
		return nil, err
	}

	if cmd.InitialStock > 0 {
		s.recordMovement(ctx, record, domain.MovementAdjust, cmd.InitialStock, "", "initial stock", cmd.ActorID)
	}

	s.logger.Info("Created stock record", "recordId", record.RecordID, "locationId", cmd.LocationID, "initialStock", cmd.InitialStock)
	return ToStockRecordDTO(record), nil
}

// GetRecord fetches one stock record.
func (s *StockApplicationService) GetRecord(ctx context.Context, query GetRecordQuery) (*StockRecordDTO, error) {
	record, err := s.stockRepo.FindByRecordID(ctx, query.RecordID)
	if err != nil {
		return nil, err
	}
	return ToStockRecordDTO(record), nil
}

// ListByLocation lists a location's active records with pagination.
func (s *StockApplicationService) ListByLocation(ctx context.Context, query ListByLocationQuery) ([]StockRecordDTO, error) {
	if _, err := s.locationRepo.FindByID(ctx, query.LocationID); err != nil {
		return nil, err
	}
	records, err := s.stockRepo.FindByLocation(ctx, query.LocationID, query.Family, query.Limit, query.Offset)
	if err != nil {
		return nil, err
	}
	return ToStockRecordDTOs(records), nil
}

// GetLowStock lists records at or under their reorder point, or with nothing
// left to promise.
func (s *StockApplicationService) GetLowStock(ctx context.Context, locationID string) ([]StockRecordDTO, error) {
	records, err := s.stockRepo.FindLowStock(ctx, locationID)
	if err != nil {
		return nil, err
	}
	return ToStockRecordDTOs(records), nil
}

// Adjust applies a signed correction to a record's current stock. The storage
// guard rejects any delta that would leave CurrentStock below Reserved.
func (s *StockApplicationService) Adjust(ctx context.Context, cmd AdjustStockCommand) (*StockRecordDTO, error) {
	if cmd.Delta == 0 {
		return nil, domain.ErrInvalidQuantity
	}

	before, err := s.stockRepo.FindByRecordID(ctx, cmd.RecordID)
	if err != nil {
		return nil, err
	}
	if !before.Active {
		return nil, domain.ErrStockRecordInactive
	}

	if err := s.stockRepo.ApplyAdjustment(ctx, cmd.RecordID, cmd.Delta); err != nil {
		s.logger.Warn("Stock adjustment rejected", "recordId", cmd.RecordID, "delta", cmd.Delta, "error", err)
		return nil, err
	}

	after, err := s.stockRepo.FindByRecordID(ctx, cmd.RecordID)
	if err != nil {
		return nil, err
	}

	s.recordMovement(ctx, after, domain.MovementAdjust, cmd.Delta, "", cmd.Reason, cmd.ActorID)
	s.publishCounterEvents(ctx, before, after, &domain.StockAdjustedEvent{
		RecordID:    after.RecordID,
		LocationID:  after.LocationID,
		Family:      after.Family,
		ProductID:   after.ProductID,
		OldQuantity: before.CurrentStock,
		NewQuantity: after.CurrentStock,
		Reason:      cmd.Reason,
		ActorID:     cmd.ActorID,
		AdjustedAt:  after.UpdatedAt,
	})
	s.metrics.RecordStockAdjustment(after.LocationID, cmd.Delta)

	s.logger.Info("Adjusted stock", "recordId", cmd.RecordID, "delta", cmd.Delta, "currentStock", after.CurrentStock, "reason", cmd.Reason)
	return ToStockRecordDTO(after), nil
}

// Receive books an inbound shipment: a positive-only increment that also
// works when the record is at zero.
func (s *StockApplicationService) Receive(ctx context.Context, cmd ReceiveStockCommand) (*StockRecordDTO, error) {
	if cmd.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	before, err := s.stockRepo.FindByRecordID(ctx, cmd.RecordID)
	if err != nil {
		return nil, err
	}

	if err := s.stockRepo.ReceiveStock(ctx, cmd.RecordID, cmd.Quantity); err != nil {
		return nil, err
	}

	after, err := s.stockRepo.FindByRecordID(ctx, cmd.RecordID)
	if err != nil {
		return nil, err
	}

	s.recordMovement(ctx, after, domain.MovementAdjust, cmd.Quantity, cmd.ReferenceID, "shipment receipt", cmd.ActorID)
	s.publishCounterEvents(ctx, before, after, &domain.StockAdjustedEvent{
		RecordID:    after.RecordID,
		LocationID:  after.LocationID,
		Family:      after.Family,
		ProductID:   after.ProductID,
		OldQuantity: before.CurrentStock,
		NewQuantity: after.CurrentStock,
		Reason:      "shipment receipt",
		ActorID:     cmd.ActorID,
		AdjustedAt:  after.UpdatedAt,
	})
	s.metrics.RecordStockAdjustment(after.LocationID, cmd.Quantity)

	s.logger.Info("Received stock", "recordId", cmd.RecordID, "quantity", cmd.Quantity, "referenceId", cmd.ReferenceID)
	return ToStockRecordDTO(after), nil
}

// Deactivate soft-deletes a record. Records with active reservations keep
// their counters; the row stays for history.
func (s *StockApplicationService) Deactivate(ctx context.Context, cmd DeactivateRecordCommand) error {
	record, err := s.stockRepo.FindByRecordID(ctx, cmd.RecordID)
	if err != nil {
		return err
	}
	if record.Reserved > 0 {
		return domain.ErrInvalidState
	}

	record.Deactivate()
	if err := s.stockRepo.Save(ctx, record); err != nil {
		s.logger.Error("Failed to deactivate record", "recordId", cmd.RecordID, "error", err)
		return err
	}

	s.logger.Audit(ctx, "deactivate", "stock_record", cmd.RecordID, cmd.ActorID, nil)
	return nil
}

// GetMovements returns the newest audit-log entries for a record.
func (s *StockApplicationService) GetMovements(ctx context.Context, recordID string, limit int) ([]MovementDTO, error) {
	if _, err := s.stockRepo.FindByRecordID(ctx, recordID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	movements, err := s.movementRepo.FindByRecord(ctx, recordID, limit)
	if err != nil {
		return nil, err
	}
	return ToMovementDTOs(movements), nil
}

// ListLocations returns the location registry.
func (s *StockApplicationService) ListLocations(ctx context.Context, activeOnly bool) ([]LocationDTO, error) {
	locations, err := s.locationRepo.FindAll(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	return ToLocationDTOs(locations), nil
}

// recordMovement appends an audit entry. Movement write failures are logged
// but do not fail the already-committed stock mutation.
func (s *StockApplicationService) recordMovement(ctx context.Context, record *domain.StockRecord, movementType domain.MovementType, quantity int, referenceID, reason, actorID string) {
	movement := domain.NewStockMovement(newMovementID(), record, movementType, quantity, referenceID, reason, actorID)
	if err := s.movementRepo.Save(ctx, movement); err != nil {
		s.logger.Error("Failed to record stock movement", "recordId", record.RecordID, "type", string(movementType), "error", err)
	}
}

// publishCounterEvents emits the adjustment event plus a threshold-crossed
// event when the before/after status changed for the worse.
func (s *StockApplicationService) publishCounterEvents(ctx context.Context, before, after *domain.StockRecord, adjusted *domain.StockAdjustedEvent) {
	events := []domain.DomainEvent{adjusted}
	if crossing := thresholdCrossing(before, after); crossing != nil {
		events = append(events, crossing)
	}
	if err := s.publisher.PublishAll(ctx, events); err != nil {
		s.logger.Error("Failed to publish stock events", "recordId", after.RecordID, "error", err)
	}
}

// thresholdCrossing returns a StockThresholdCrossedEvent when the record
// moved into low-stock or out-of-stock territory, nil otherwise.
func thresholdCrossing(before, after *domain.StockRecord) domain.DomainEvent {
	prev, next := before.Status(), after.Status()
	if next == prev || next == domain.StatusInStock {
		return nil
	}
	return &domain.StockThresholdCrossedEvent{
		RecordID:       after.RecordID,
		LocationID:     after.LocationID,
		Family:         after.Family,
		ProductID:      after.ProductID,
		PreviousStatus: prev,
		NewStatus:      next,
		CurrentStock:   after.CurrentStock,
		Reserved:       after.Reserved,
		ReorderPoint:   after.ReorderPoint,
		CrossedAt:      after.UpdatedAt,
	}
}
