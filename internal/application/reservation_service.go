package application

import (
	"context"
	"errors"
	"time"

	"github.com/medflow/stock-service/internal/domain"
	"github.com/medflow/stock-service/pkg/logging"
	"github.com/medflow/stock-service/pkg/metrics"
)

// ReservationApplicationService handles the hold lifecycle: reserve, release,
// fulfill and extend.
//
// Reserve is the one place a true transaction is required: the storage layer
// commits the conditional counter increment and the reservation document as
// one unit, so the reserved counter always equals the sum of active holds
// even across a crash.
type ReservationApplicationService struct {
	stockRepo       domain.StockRecordRepository
	reservationRepo domain.ReservationRepository
	movementRepo    domain.StockMovementRepository
	publisher       domain.EventPublisher
	defaultTTL      time.Duration
	metrics         *metrics.Metrics
	logger          *logging.Logger
}

// NewReservationApplicationService creates a reservation application service.
// A non-positive defaultTTL falls back to domain.DefaultReservationTTL.
func NewReservationApplicationService(
	stockRepo domain.StockRecordRepository,
	reservationRepo domain.ReservationRepository,
	movementRepo domain.StockMovementRepository,
	publisher domain.EventPublisher,
	defaultTTL time.Duration,
	m *metrics.Metrics,
	logger *logging.Logger,
) *ReservationApplicationService {
	if defaultTTL <= 0 {
		defaultTTL = domain.DefaultReservationTTL
	}
	return &ReservationApplicationService{
		stockRepo:       stockRepo,
		reservationRepo: reservationRepo,
		movementRepo:    movementRepo,
		publisher:       publisher,
		defaultTTL:      defaultTTL,
		metrics:         m,
		logger:          logger,
	}
}

// Reserve places a TTL-bounded hold against a stock record.
func (s *ReservationApplicationService) Reserve(ctx context.Context, cmd ReserveStockCommand) (*ReservationDTO, error) {
	if cmd.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if cmd.ConsumerRef == "" {
		return nil, domain.ErrInvalidQuantity
	}

	record, err := s.stockRepo.FindByRecordID(ctx, cmd.RecordID)
	if err != nil {
		return nil, err
	}
	if !record.Active {
		return nil, domain.ErrStockRecordInactive
	}

	ttl := cmd.TTL
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	reservation, err := domain.NewReservation(newReservationID(), record, cmd.Quantity, cmd.ConsumerRef, ttl, cmd.ActorID)
	if err != nil {
		return nil, err
	}

	// The availability check, counter increment and reservation insert
	// commit together; a crash mid-reserve leaves no inflated counter.
	if err := s.stockRepo.ReserveWithHold(ctx, cmd.RecordID, cmd.Quantity, reservation); err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			s.metrics.RecordOversellRejection(record.LocationID, string(record.Family))
			s.logger.Warn("Reservation rejected, insufficient stock",
				"recordId", cmd.RecordID, "requested", cmd.Quantity, "available", record.Available())
		}
		return nil, err
	}

	s.recordMovement(ctx, record, domain.MovementReserve, cmd.Quantity, reservation.ReservationID, "", cmd.ActorID)
	s.publishEvent(ctx, &domain.ReservationCreatedEvent{
		ReservationID: reservation.ReservationID,
		StockRecordID: reservation.StockRecordID,
		LocationID:    reservation.LocationID,
		Family:        reservation.Family,
		ProductID:     reservation.ProductID,
		Quantity:      reservation.Quantity,
		ConsumerRef:   reservation.ConsumerRef,
		ExpiresAt:     reservation.ExpiresAt,
		CreatedAt:     reservation.CreatedAt,
	})
	s.metrics.RecordReservationCreated(record.LocationID, string(record.Family))

	s.logger.Info("Reserved stock",
		"reservationId", reservation.ReservationID, "recordId", cmd.RecordID,
		"quantity", cmd.Quantity, "consumerRef", cmd.ConsumerRef, "expiresAt", reservation.ExpiresAt)
	return ToReservationDTO(reservation), nil
}

// Release gives a hold back to the available pool. Releasing an
// already-terminal reservation is a no-op success so callers can retry.
func (s *ReservationApplicationService) Release(ctx context.Context, cmd ReleaseReservationCommand) (*ReservationDTO, error) {
	reservation, err := s.reservationRepo.MarkReleased(ctx, cmd.ReservationID, cmd.ActorID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidState) && reservation != nil {
			// Already finalized by someone else: idempotent success.
			s.logger.Info("Release no-op, reservation already terminal",
				"reservationId", cmd.ReservationID, "status", string(reservation.Status))
			return ToReservationDTO(reservation), nil
		}
		return nil, err
	}

	if err := s.stockRepo.ReleaseReserved(ctx, reservation.StockRecordID, reservation.Quantity); err != nil {
		// The flip won but the counter restore failed. Return the error
		// so the caller does not treat the hold as released.
		s.logger.Error("Released reservation but counter restore failed",
			"reservationId", cmd.ReservationID, "recordId", reservation.StockRecordID, "error", err)
		return nil, err
	}

	s.recordReservationMovement(ctx, reservation, domain.MovementRelease, cmd.ActorID)
	s.publishEvent(ctx, &domain.ReservationReleasedEvent{
		ReservationID: reservation.ReservationID,
		StockRecordID: reservation.StockRecordID,
		LocationID:    reservation.LocationID,
		Family:        reservation.Family,
		ProductID:     reservation.ProductID,
		Quantity:      reservation.Quantity,
		ReleasedAt:    reservation.UpdatedAt,
	})
	s.metrics.RecordReservationFinalized("released")

	s.logger.Info("Released reservation", "reservationId", cmd.ReservationID, "quantity", reservation.Quantity)
	return ToReservationDTO(reservation), nil
}

// Fulfill consumes a hold: stock leaves the building. Unlike Release this
// requires the active state.
func (s *ReservationApplicationService) Fulfill(ctx context.Context, cmd FulfillReservationCommand) (*ReservationDTO, error) {
	reservation, err := s.reservationRepo.MarkFulfilled(ctx, cmd.ReservationID, cmd.ActorID)
	if err != nil {
		return nil, err
	}

	before, err := s.stockRepo.FindByRecordID(ctx, reservation.StockRecordID)
	if err != nil {
		return nil, err
	}

	if err := s.stockRepo.ApplyFulfillment(ctx, reservation.StockRecordID, reservation.Quantity); err != nil {
		s.logger.Error("Fulfilled reservation but counter update failed",
			"reservationId", cmd.ReservationID, "recordId", reservation.StockRecordID, "error", err)
		return nil, err
	}

	after, err := s.stockRepo.FindByRecordID(ctx, reservation.StockRecordID)
	if err == nil {
		if crossing := thresholdCrossing(before, after); crossing != nil {
			s.publishEvent(ctx, crossing)
		}
	}

	s.recordReservationMovement(ctx, reservation, domain.MovementFulfill, cmd.ActorID)
	s.publishEvent(ctx, &domain.ReservationFulfilledEvent{
		ReservationID: reservation.ReservationID,
		StockRecordID: reservation.StockRecordID,
		LocationID:    reservation.LocationID,
		Family:        reservation.Family,
		ProductID:     reservation.ProductID,
		Quantity:      reservation.Quantity,
		FulfilledAt:   reservation.UpdatedAt,
	})
	s.metrics.RecordReservationFinalized("fulfilled")

	s.logger.Info("Fulfilled reservation", "reservationId", cmd.ReservationID, "quantity", reservation.Quantity)
	return ToReservationDTO(reservation), nil
}

// Extend resets the expiry clock of an active hold to now + ttl.
func (s *ReservationApplicationService) Extend(ctx context.Context, cmd ExtendReservationCommand) (*ReservationDTO, error) {
	ttl := cmd.TTL
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	expiresAt := time.Now().UTC().Add(ttl)
	if err := s.reservationRepo.ExtendExpiry(ctx, cmd.ReservationID, expiresAt); err != nil {
		return nil, err
	}

	reservation, err := s.reservationRepo.FindByID(ctx, cmd.ReservationID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Extended reservation", "reservationId", cmd.ReservationID, "expiresAt", expiresAt)
	return ToReservationDTO(reservation), nil
}

// GetReservation fetches one hold.
func (s *ReservationApplicationService) GetReservation(ctx context.Context, reservationID string) (*ReservationDTO, error) {
	reservation, err := s.reservationRepo.FindByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	return ToReservationDTO(reservation), nil
}

// ListByConsumer lists the holds placed for one consumer reference.
func (s *ReservationApplicationService) ListByConsumer(ctx context.Context, consumerRef string) ([]ReservationDTO, error) {
	reservations, err := s.reservationRepo.FindByConsumerRef(ctx, consumerRef)
	if err != nil {
		return nil, err
	}
	return ToReservationDTOs(reservations), nil
}

func (s *ReservationApplicationService) recordMovement(ctx context.Context, record *domain.StockRecord, movementType domain.MovementType, quantity int, referenceID, reason, actorID string) {
	movement := domain.NewStockMovement(newMovementID(), record, movementType, quantity, referenceID, reason, actorID)
	if err := s.movementRepo.Save(ctx, movement); err != nil {
		s.logger.Error("Failed to record stock movement", "recordId", record.RecordID, "type", string(movementType), "error", err)
	}
}

// recordReservationMovement writes an audit entry from the reservation's
// denormalized record keys, saving the extra read.
func (s *ReservationApplicationService) recordReservationMovement(ctx context.Context, reservation *domain.Reservation, movementType domain.MovementType, actorID string) {
	movement := &domain.StockMovement{
		MovementID:    newMovementID(),
		StockRecordID: reservation.StockRecordID,
		LocationID:    reservation.LocationID,
		Family:        reservation.Family,
		ProductID:     reservation.ProductID,
		Type:          movementType,
		Quantity:      reservation.Quantity,
		ReferenceID:   reservation.ReservationID,
		ActorID:       actorID,
		OccurredAt:    time.Now().UTC(),
	}
	if err := s.movementRepo.Save(ctx, movement); err != nil {
		s.logger.Error("Failed to record stock movement", "recordId", reservation.StockRecordID, "type", string(movementType), "error", err)
	}
}

func (s *ReservationApplicationService) publishEvent(ctx context.Context, event domain.DomainEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish reservation event", "eventType", event.EventType(), "error", err)
	}
}
