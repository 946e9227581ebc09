package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/medflow/stock-service/internal/domain"
	"github.com/medflow/stock-service/pkg/logging"
	"github.com/medflow/stock-service/pkg/metrics"
)

// JanitorConfig holds configuration for the reservation expiry janitor.
type JanitorConfig struct {
	SweepInterval time.Duration
	BatchSize     int
}

// DefaultJanitorConfig returns default configuration.
func DefaultJanitorConfig() *JanitorConfig {
	return &JanitorConfig{
		SweepInterval: 2 * time.Minute,
		BatchSize:     100,
	}
}

// ReservationJanitor reclaims expired holds on a fixed sweep interval.
//
// Each sweep claims overdue reservations one by one: the MarkExpired status
// flip is the claim, so concurrent janitors (or a racing manual release)
// resolve to one winner per reservation and counters are restored exactly
// once. A failure on one reservation is logged and skipped; the rest of the
// batch proceeds.
type ReservationJanitor struct {
	stockRepo       domain.StockRecordRepository
	reservationRepo domain.ReservationRepository
	movementRepo    domain.StockMovementRepository
	publisher       domain.EventPublisher
	interval        time.Duration
	batchSize       int
	metrics         *metrics.Metrics
	logger          *logging.Logger

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// NewReservationJanitor creates a janitor.
func NewReservationJanitor(
	stockRepo domain.StockRecordRepository,
	reservationRepo domain.ReservationRepository,
	movementRepo domain.StockMovementRepository,
	publisher domain.EventPublisher,
	config *JanitorConfig,
	m *metrics.Metrics,
	logger *logging.Logger,
) *ReservationJanitor {
	if config == nil {
		config = DefaultJanitorConfig()
	}
	return &ReservationJanitor{
		stockRepo:       stockRepo,
		reservationRepo: reservationRepo,
		movementRepo:    movementRepo,
		publisher:       publisher,
		interval:        config.SweepInterval,
		batchSize:       config.BatchSize,
		metrics:         m,
		logger:          logger,
	}
}

// Start begins the sweep loop. A stopped janitor can be started again.
func (j *ReservationJanitor) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return fmt.Errorf("janitor already running")
	}
	j.running = true
	// Fresh channels per run; the previous pair is closed.
	j.stopCh = make(chan struct{})
	j.stoppedCh = make(chan struct{})
	stopCh, stoppedCh := j.stopCh, j.stoppedCh
	j.mu.Unlock()

	j.logger.Info("Starting reservation janitor", "interval", j.interval, "batchSize", j.batchSize)

	go j.run(ctx, stopCh, stoppedCh)
	return nil
}

// Stop halts the sweep loop and waits for the in-flight sweep to finish.
func (j *ReservationJanitor) Stop() error {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return fmt.Errorf("janitor not running")
	}
	stopCh, stoppedCh := j.stopCh, j.stoppedCh
	j.mu.Unlock()

	j.logger.Info("Stopping reservation janitor")
	close(stopCh)
	<-stoppedCh

	j.mu.Lock()
	j.running = false
	j.mu.Unlock()

	j.logger.Info("Reservation janitor stopped")
	return nil
}

func (j *ReservationJanitor) run(ctx context.Context, stopCh, stoppedCh chan struct{}) {
	defer close(stoppedCh)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.SweepOnce(ctx)
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// SweepOnce runs a single expiry pass and returns its summary. Exported so
// the janitor can run as a one-shot job.
func (j *ReservationJanitor) SweepOnce(ctx context.Context) ReservationSweepResultDTO {
	start := time.Now()
	result := ReservationSweepResultDTO{}

	expired, err := j.reservationRepo.FindExpired(ctx, time.Now().UTC(), j.batchSize)
	if err != nil {
		j.logger.Error("Janitor sweep failed to list expired reservations", "error", err)
		return result
	}
	result.Scanned = len(expired)

	for _, reservation := range expired {
		if err := j.expireOne(ctx, reservation); err != nil {
			result.Failed++
			continue
		}
		result.Expired++
		j.metrics.RecordReservationExpired(reservation.LocationID)
	}

	duration := time.Since(start)
	j.metrics.RecordJanitorSweep(duration)
	if result.Scanned > 0 {
		j.logger.SweepResult(ctx, result.Scanned, result.Expired, result.Failed, duration)
	}
	return result
}

func (j *ReservationJanitor) expireOne(ctx context.Context, candidate *domain.Reservation) error {
	// The status flip is the claim: a lost race means someone else already
	// finalized this hold, which is fine.
	reservation, err := j.reservationRepo.MarkExpired(ctx, candidate.ReservationID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidState) {
			return nil
		}
		j.logger.Error("Janitor failed to claim reservation", "reservationId", candidate.ReservationID, "error", err)
		return err
	}

	if err := j.stockRepo.ReleaseReserved(ctx, reservation.StockRecordID, reservation.Quantity); err != nil {
		j.logger.Error("Janitor expired reservation but counter restore failed",
			"reservationId", reservation.ReservationID, "recordId", reservation.StockRecordID, "error", err)
		return err
	}

	movement := &domain.StockMovement{
		MovementID:    newMovementID(),
		StockRecordID: reservation.StockRecordID,
		LocationID:    reservation.LocationID,
		Family:        reservation.Family,
		ProductID:     reservation.ProductID,
		Type:          domain.MovementExpire,
		Quantity:      reservation.Quantity,
		ReferenceID:   reservation.ReservationID,
		OccurredAt:    time.Now().UTC(),
	}
	if err := j.movementRepo.Save(ctx, movement); err != nil {
		j.logger.Error("Janitor failed to record expiry movement", "reservationId", reservation.ReservationID, "error", err)
	}

	if err := j.publisher.Publish(ctx, &domain.ReservationExpiredEvent{
		ReservationID: reservation.ReservationID,
		StockRecordID: reservation.StockRecordID,
		LocationID:    reservation.LocationID,
		Family:        reservation.Family,
		ProductID:     reservation.ProductID,
		Quantity:      reservation.Quantity,
		ExpiredAt:     reservation.UpdatedAt,
	}); err != nil {
		j.logger.Error("Janitor failed to publish expiry event", "reservationId", reservation.ReservationID, "error", err)
	}

	j.logger.Info("Expired reservation",
		"reservationId", reservation.ReservationID, "recordId", reservation.StockRecordID, "quantity", reservation.Quantity)
	return nil
}
