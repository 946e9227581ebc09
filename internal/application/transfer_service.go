package application

import (
	"context"
	"errors"
	"time"

	"github.com/medflow/stock-service/internal/domain"
	"github.com/medflow/stock-service/pkg/logging"
	"github.com/medflow/stock-service/pkg/metrics"
)

// transferReservationTTL is the hold duration for source-side transfer
// reservations. Longer than the order default: an approved transfer waits on
// physical logistics, not a checkout flow.
const transferReservationTTL = 7 * 24 * time.Hour

// TransferApplicationService drives the transfer workflow. Transfers never
// mutate stock directly: approval reserves at the source, shipping fulfills
// those reservations, receipt books at the destination. Every transition is
// an optimistic-version save, so racing operators resolve to one winner.
type TransferApplicationService struct {
	transferRepo    domain.TransferRepository
	stockRepo       domain.StockRecordRepository
	reservationRepo domain.ReservationRepository
	movementRepo    domain.StockMovementRepository
	locationRepo    domain.LocationRepository
	metrics         *metrics.Metrics
	logger          *logging.Logger
}

// NewTransferApplicationService creates a transfer application service.
func NewTransferApplicationService(
	transferRepo domain.TransferRepository,
	stockRepo domain.StockRecordRepository,
	reservationRepo domain.ReservationRepository,
	movementRepo domain.StockMovementRepository,
	locationRepo domain.LocationRepository,
	m *metrics.Metrics,
	logger *logging.Logger,
) *TransferApplicationService {
	return &TransferApplicationService{
		transferRepo:    transferRepo,
		stockRepo:       stockRepo,
		reservationRepo: reservationRepo,
		movementRepo:    movementRepo,
		locationRepo:    locationRepo,
		metrics:         m,
		logger:          logger,
	}
}

// Create drafts a transfer. Both locations must exist and be active, and the
// source must hold a record for every requested line.
func (s *TransferApplicationService) Create(ctx context.Context, cmd CreateTransferCommand) (*TransferDTO, error) {
	if err := s.validateEndpoints(ctx, cmd.SourceID, cmd.DestinationID); err != nil {
		return nil, err
	}

	items, err := s.resolveItems(ctx, cmd.SourceID, cmd.Items)
	if err != nil {
		return nil, err
	}

	transfer, err := domain.NewTransfer(newTransferID(), cmd.SourceID, cmd.DestinationID, cmd.Priority, cmd.Reason, items, cmd.ActorID)
	if err != nil {
		return nil, err
	}

	if err := s.save(ctx, transfer); err != nil {
		return nil, err
	}

	s.logger.Info("Created transfer", "transferId", transfer.TransferID,
		"sourceId", cmd.SourceID, "destinationId", cmd.DestinationID, "items", len(items))
	return ToTransferDTO(transfer), nil
}

// Submit moves a draft into the approval queue.
func (s *TransferApplicationService) Submit(ctx context.Context, cmd TransferActionCommand) (*TransferDTO, error) {
	transfer, err := s.transferRepo.FindByID(ctx, cmd.TransferID)
	if err != nil {
		return nil, err
	}
	if err := transfer.Submit(cmd.ActorID); err != nil {
		return nil, err
	}
	if err := s.save(ctx, transfer); err != nil {
		return nil, err
	}

	s.metrics.RecordTransferTransition(string(domain.TransferRequested))
	s.logger.Info("Submitted transfer", "transferId", cmd.TransferID, "actorId", cmd.ActorID)
	return ToTransferDTO(transfer), nil
}

// Approve reserves every requested line at the source, then commits the
// transition. All lines reserve or none do: a failure part-way rolls back the
// holds already taken.
func (s *TransferApplicationService) Approve(ctx context.Context, cmd TransferActionCommand) (*TransferDTO, error) {
	transfer, err := s.transferRepo.FindByID(ctx, cmd.TransferID)
	if err != nil {
		return nil, err
	}
	if transfer.Status != domain.TransferRequested {
		return nil, domain.ErrInvalidState
	}

	reservationIDs := make(map[string]string, len(transfer.Items))
	var reserved []*domain.Reservation

	rollback := func() {
		for _, r := range reserved {
			if _, err := s.reservationRepo.MarkReleased(ctx, r.ReservationID, cmd.ActorID); err != nil {
				s.logger.Error("Approval rollback failed to release reservation", "reservationId", r.ReservationID, "error", err)
				continue
			}
			if err := s.stockRepo.ReleaseReserved(ctx, r.StockRecordID, r.Quantity); err != nil {
				s.logger.Error("Approval rollback failed to restore counter", "recordId", r.StockRecordID, "error", err)
			}
		}
	}

	for _, item := range transfer.Items {
		record, err := s.stockRepo.FindByKey(ctx, transfer.SourceID, item.Family, item.ProductID)
		if err != nil {
			rollback()
			return nil, err
		}

		reservation, err := domain.NewReservation(newReservationID(), record, item.RequestedQuantity, transfer.TransferID, transferReservationTTL, cmd.ActorID)
		if err != nil {
			rollback()
			return nil, err
		}

		// Each line's counter increment and hold commit atomically;
		// earlier lines roll back by explicit compensating release.
		if err := s.stockRepo.ReserveWithHold(ctx, record.RecordID, item.RequestedQuantity, reservation); err != nil {
			if errors.Is(err, domain.ErrInsufficientStock) {
				s.metrics.RecordOversellRejection(record.LocationID, string(record.Family))
				s.logger.Warn("Transfer approval rejected, insufficient stock at source",
					"transferId", cmd.TransferID, "productId", item.ProductID,
					"requested", item.RequestedQuantity, "available", record.Available())
			}
			rollback()
			return nil, err
		}

		reserved = append(reserved, reservation)
		reservationIDs[item.ProductID] = reservation.ReservationID
		s.recordMovement(ctx, record, domain.MovementReserve, item.RequestedQuantity, transfer.TransferID, "transfer approval", cmd.ActorID)
	}

	if err := transfer.Approve(cmd.ActorID, reservationIDs); err != nil {
		rollback()
		return nil, err
	}
	if err := s.save(ctx, transfer); err != nil {
		rollback()
		return nil, err
	}

	s.metrics.RecordTransferTransition(string(domain.TransferApproved))
	s.logger.Info("Approved transfer", "transferId", cmd.TransferID, "lines", len(transfer.Items), "actorId", cmd.ActorID)
	return ToTransferDTO(transfer), nil
}

// Ship fulfills every source reservation and marks the goods in transit.
func (s *TransferApplicationService) Ship(ctx context.Context, cmd TransferActionCommand) (*TransferDTO, error) {
	transfer, err := s.transferRepo.FindByID(ctx, cmd.TransferID)
	if err != nil {
		return nil, err
	}
	if transfer.Status != domain.TransferApproved {
		return nil, domain.ErrInvalidState
	}

	for _, item := range transfer.Items {
		reservation, err := s.reservationRepo.MarkFulfilled(ctx, item.ReservationID, cmd.ActorID)
		if err != nil {
			// A lapsed hold (janitor got there first) means the approval
			// no longer covers this line; the transfer must be re-approved.
			s.logger.Error("Ship aborted, source reservation not active",
				"transferId", cmd.TransferID, "reservationId", item.ReservationID, "error", err)
			return nil, err
		}
		if err := s.stockRepo.ApplyFulfillment(ctx, reservation.StockRecordID, reservation.Quantity); err != nil {
			s.logger.Error("Ship counter update failed", "transferId", cmd.TransferID, "recordId", reservation.StockRecordID, "error", err)
			return nil, err
		}
		s.recordReservationMovement(ctx, reservation, domain.MovementTransferOut, transfer.TransferID, cmd.ActorID)
	}

	if err := transfer.Ship(cmd.ActorID); err != nil {
		return nil, err
	}
	if err := s.save(ctx, transfer); err != nil {
		return nil, err
	}

	s.metrics.RecordTransferTransition(string(domain.TransferInTransit))
	s.logger.Info("Shipped transfer", "transferId", cmd.TransferID, "actorId", cmd.ActorID)
	return ToTransferDTO(transfer), nil
}

// Receive books an in-transit transfer at the destination, allowing partial
// receipt per line. Destination records are created on first receipt.
func (s *TransferApplicationService) Receive(ctx context.Context, cmd ReceiveTransferCommand) (*TransferDTO, error) {
	transfer, err := s.transferRepo.FindByID(ctx, cmd.TransferID)
	if err != nil {
		return nil, err
	}

	if err := transfer.Receive(cmd.ActorID, cmd.ReceivedQuantities); err != nil {
		return nil, err
	}

	for _, item := range transfer.Items {
		if item.ReceivedQuantity == 0 {
			continue
		}
		record, err := s.destinationRecord(ctx, transfer.DestinationID, item)
		if err != nil {
			return nil, err
		}
		if err := s.stockRepo.ReceiveStock(ctx, record.RecordID, item.ReceivedQuantity); err != nil {
			return nil, err
		}
		s.recordMovement(ctx, record, domain.MovementTransferIn, item.ReceivedQuantity, transfer.TransferID, "transfer receipt", cmd.ActorID)
	}

	if err := s.save(ctx, transfer); err != nil {
		return nil, err
	}

	s.metrics.RecordTransferTransition(string(domain.TransferReceived))
	s.logger.Info("Received transfer", "transferId", cmd.TransferID, "actorId", cmd.ActorID)
	return ToTransferDTO(transfer), nil
}

// Reject terminates a requested or approved transfer, giving back any source
// holds taken at approval.
func (s *TransferApplicationService) Reject(ctx context.Context, cmd TransferActionCommand) (*TransferDTO, error) {
	return s.terminate(ctx, cmd, func(t *domain.Transfer) error {
		return t.Reject(cmd.ActorID, cmd.Note)
	}, domain.TransferRejected)
}

// Cancel terminates a transfer from any non-terminal state. Past shipment
// there are no source holds left to give back, so the transition is pure
// bookkeeping.
func (s *TransferApplicationService) Cancel(ctx context.Context, cmd TransferActionCommand) (*TransferDTO, error) {
	return s.terminate(ctx, cmd, func(t *domain.Transfer) error {
		return t.Cancel(cmd.ActorID, cmd.Note)
	}, domain.TransferCancelled)
}

func (s *TransferApplicationService) terminate(ctx context.Context, cmd TransferActionCommand, transition func(*domain.Transfer) error, toStatus domain.TransferStatus) (*TransferDTO, error) {
	transfer, err := s.transferRepo.FindByID(ctx, cmd.TransferID)
	if err != nil {
		return nil, err
	}

	// Give back the approval holds before the state commits; the reservation
	// flips are idempotent, so a retry after a partial failure converges.
	if transfer.HasSourceReservations() {
		if err := s.releaseSourceReservations(ctx, transfer, cmd.ActorID); err != nil {
			return nil, err
		}
	}

	if err := transition(transfer); err != nil {
		return nil, err
	}
	if err := s.save(ctx, transfer); err != nil {
		return nil, err
	}

	s.metrics.RecordTransferTransition(string(toStatus))
	s.logger.Info("Terminated transfer", "transferId", cmd.TransferID, "status", string(toStatus), "actorId", cmd.ActorID)
	return ToTransferDTO(transfer), nil
}

// QuickTransfer creates and submits a transfer in one call. Used by the
// consolidation alert flow to turn a suggested donor into a pending request.
func (s *TransferApplicationService) QuickTransfer(ctx context.Context, cmd QuickTransferCommand) (*TransferDTO, error) {
	if err := s.validateEndpoints(ctx, cmd.SourceID, cmd.DestinationID); err != nil {
		return nil, err
	}

	items, err := s.resolveItems(ctx, cmd.SourceID, cmd.Items)
	if err != nil {
		return nil, err
	}

	transfer, err := domain.NewTransfer(newTransferID(), cmd.SourceID, cmd.DestinationID, cmd.Priority, cmd.Reason, items, cmd.ActorID)
	if err != nil {
		return nil, err
	}
	if err := transfer.MarkRequestedDirect(cmd.ActorID); err != nil {
		return nil, err
	}
	if err := s.save(ctx, transfer); err != nil {
		return nil, err
	}

	s.metrics.RecordTransferTransition(string(domain.TransferRequested))
	s.logger.Info("Created quick transfer", "transferId", transfer.TransferID,
		"sourceId", cmd.SourceID, "destinationId", cmd.DestinationID)
	return ToTransferDTO(transfer), nil
}

// Get fetches one transfer.
func (s *TransferApplicationService) Get(ctx context.Context, transferID string) (*TransferDTO, error) {
	transfer, err := s.transferRepo.FindByID(ctx, transferID)
	if err != nil {
		return nil, err
	}
	return ToTransferDTO(transfer), nil
}

// List lists transfers touching a location.
func (s *TransferApplicationService) List(ctx context.Context, query ListTransfersQuery) ([]TransferDTO, error) {
	transfers, err := s.transferRepo.FindByLocation(ctx, query.LocationID, query.Statuses, query.Limit, query.Offset)
	if err != nil {
		return nil, err
	}
	return ToTransferDTOs(transfers), nil
}

// PendingForSource lists transfers awaiting action at a source location.
func (s *TransferApplicationService) PendingForSource(ctx context.Context, sourceID string) ([]TransferDTO, error) {
	transfers, err := s.transferRepo.FindPendingForSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	return ToTransferDTOs(transfers), nil
}

func (s *TransferApplicationService) validateEndpoints(ctx context.Context, sourceID, destinationID string) error {
	if sourceID == destinationID {
		return domain.ErrSameLocation
	}
	for _, locationID := range []string{sourceID, destinationID} {
		location, err := s.locationRepo.FindByID(ctx, locationID)
		if err != nil {
			return err
		}
		if !location.Active {
			return domain.ErrLocationInactive
		}
	}
	return nil
}

// resolveItems checks every requested line against the source ledger. The
// source record is authoritative for the product's display name.
func (s *TransferApplicationService) resolveItems(ctx context.Context, sourceID string, inputs []TransferItemInput) ([]domain.TransferItem, error) {
	items := make([]domain.TransferItem, 0, len(inputs))
	for _, input := range inputs {
		record, err := s.stockRepo.FindByKey(ctx, sourceID, input.Family, input.ProductID)
		if err != nil {
			return nil, err
		}
		items = append(items, domain.TransferItem{
			ProductID:         input.ProductID,
			Family:            input.Family,
			ProductName:       record.ProductName,
			RequestedQuantity: input.Quantity,
		})
	}
	return items, nil
}

func (s *TransferApplicationService) releaseSourceReservations(ctx context.Context, transfer *domain.Transfer, actorID string) error {
	for _, item := range transfer.Items {
		if item.Status != domain.ItemReserved || item.ReservationID == "" {
			continue
		}
		reservation, err := s.reservationRepo.MarkReleased(ctx, item.ReservationID, actorID)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidState) {
				// Already finalized (janitor expiry restores the counter
				// itself), nothing left to give back for this line.
				continue
			}
			return err
		}
		if err := s.stockRepo.ReleaseReserved(ctx, reservation.StockRecordID, reservation.Quantity); err != nil {
			return err
		}
		s.recordReservationMovement(ctx, reservation, domain.MovementRelease, transfer.TransferID, actorID)
	}
	return nil
}

// destinationRecord finds the destination-side record for a line, creating a
// fresh zero-stock record on first receipt of this product at the location.
func (s *TransferApplicationService) destinationRecord(ctx context.Context, destinationID string, item domain.TransferItem) (*domain.StockRecord, error) {
	record, err := s.stockRepo.FindByKey(ctx, destinationID, item.Family, item.ProductID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, domain.ErrStockRecordNotFound) {
		return nil, err
	}

	location, err := s.locationRepo.FindByID(ctx, destinationID)
	if err != nil {
		return nil, err
	}
	record, err = domain.NewStockRecord(destinationID, item.Family, item.ProductID, item.ProductName, 0, 0, location.IsDepot)
	if err != nil {
		return nil, err
	}
	if err := s.stockRepo.Save(ctx, record); err != nil {
		// A concurrent receipt may have created it; re-read.
		if errors.Is(err, domain.ErrDuplicateStockRecord) {
			return s.stockRepo.FindByKey(ctx, destinationID, item.Family, item.ProductID)
		}
		return nil, err
	}
	return record, nil
}

func (s *TransferApplicationService) save(ctx context.Context, transfer *domain.Transfer) error {
	if err := s.transferRepo.Save(ctx, transfer); err != nil {
		if errors.Is(err, domain.ErrConflictingTransition) {
			s.metrics.RecordTransitionConflict()
			s.logger.Warn("Transfer transition lost a version race", "transferId", transfer.TransferID)
		}
		return err
	}
	return nil
}

func (s *TransferApplicationService) recordMovement(ctx context.Context, record *domain.StockRecord, movementType domain.MovementType, quantity int, referenceID, reason, actorID string) {
	movement := domain.NewStockMovement(newMovementID(), record, movementType, quantity, referenceID, reason, actorID)
	if err := s.movementRepo.Save(ctx, movement); err != nil {
		s.logger.Error("Failed to record stock movement", "recordId", record.RecordID, "type", string(movementType), "error", err)
	}
}

func (s *TransferApplicationService) recordReservationMovement(ctx context.Context, reservation *domain.Reservation, movementType domain.MovementType, referenceID, actorID string) {
	movement := &domain.StockMovement{
		MovementID:    newMovementID(),
		StockRecordID: reservation.StockRecordID,
		LocationID:    reservation.LocationID,
		Family:        reservation.Family,
		ProductID:     reservation.ProductID,
		Type:          movementType,
		Quantity:      reservation.Quantity,
		ReferenceID:   referenceID,
		ActorID:       actorID,
		OccurredAt:    time.Now().UTC(),
	}
	if err := s.movementRepo.Save(ctx, movement); err != nil {
		s.logger.Error("Failed to record stock movement", "recordId", reservation.StockRecordID, "type", string(movementType), "error", err)
	}
}
