package application

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/medflow/stock-service/internal/domain"
	"github.com/medflow/stock-service/pkg/logging"
	"github.com/medflow/stock-service/pkg/metrics"
)

// In-memory fakes mirroring the storage-layer semantics: the counter
// operations enforce the same guards as the Mongo conditional updates, and
// the reservation flips succeed only from the active state.

type fakeStockRepo struct {
	mu      sync.Mutex
	records map[string]*domain.StockRecord
	saveErr error
	findErr error

	// holds receives the reservation half of ReserveWithHold so the fake
	// mirrors the storage layer's both-or-neither commit.
	holds *fakeReservationRepo
}

func newFakeStockRepo() *fakeStockRepo {
	return &fakeStockRepo{records: make(map[string]*domain.StockRecord)}
}

func (f *fakeStockRepo) Save(ctx context.Context, record *domain.StockRecord) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.records {
		if existing.RecordID != record.RecordID &&
			existing.LocationID == record.LocationID &&
			existing.Family == record.Family &&
			existing.ProductID == record.ProductID {
			return domain.ErrDuplicateStockRecord
		}
	}
	clone := *record
	f.records[record.RecordID] = &clone
	record.ClearDomainEvents()
	return nil
}

func (f *fakeStockRepo) FindByRecordID(ctx context.Context, recordID string) (*domain.StockRecord, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[recordID]
	if !ok {
		return nil, domain.ErrStockRecordNotFound
	}
	clone := *record
	return &clone, nil
}

func (f *fakeStockRepo) FindByKey(ctx context.Context, locationID string, family domain.ProductFamily, productID string) (*domain.StockRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, record := range f.records {
		if record.LocationID == locationID && record.Family == family && record.ProductID == productID {
			clone := *record
			return &clone, nil
		}
	}
	return nil, domain.ErrStockRecordNotFound
}

func (f *fakeStockRepo) FindByLocation(ctx context.Context, locationID string, family domain.ProductFamily, limit, offset int) ([]*domain.StockRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make([]*domain.StockRecord, 0)
	for _, record := range f.records {
		if record.LocationID == locationID && record.Active && (family == "" || record.Family == family) {
			clone := *record
			results = append(results, &clone)
		}
	}
	return results, nil
}

func (f *fakeStockRepo) FindByProduct(ctx context.Context, family domain.ProductFamily, productID string) ([]*domain.StockRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make([]*domain.StockRecord, 0)
	for _, record := range f.records {
		if record.Family == family && record.ProductID == productID && record.Active {
			clone := *record
			results = append(results, &clone)
		}
	}
	return results, nil
}

func (f *fakeStockRepo) FindByProducts(ctx context.Context, family domain.ProductFamily, productIDs []string) ([]*domain.StockRecord, error) {
	wanted := make(map[string]bool, len(productIDs))
	for _, id := range productIDs {
		wanted[id] = true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make([]*domain.StockRecord, 0)
	for _, record := range f.records {
		if record.Family == family && wanted[record.ProductID] && record.Active {
			clone := *record
			results = append(results, &clone)
		}
	}
	return results, nil
}

func (f *fakeStockRepo) FindByFamily(ctx context.Context, family domain.ProductFamily) ([]*domain.StockRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make([]*domain.StockRecord, 0)
	for _, record := range f.records {
		if record.Family == family && record.Active {
			clone := *record
			results = append(results, &clone)
		}
	}
	return results, nil
}

func (f *fakeStockRepo) FindLowStock(ctx context.Context, locationID string) ([]*domain.StockRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make([]*domain.StockRecord, 0)
	for _, record := range f.records {
		if !record.Active {
			continue
		}
		if locationID != "" && record.LocationID != locationID {
			continue
		}
		if record.CurrentStock <= record.ReorderPoint || record.Available() <= 0 {
			clone := *record
			results = append(results, &clone)
		}
	}
	return results, nil
}

func (f *fakeStockRepo) mutate(recordID string, guard func(*domain.StockRecord) error, apply func(*domain.StockRecord)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[recordID]
	if !ok {
		return domain.ErrStockRecordNotFound
	}
	if !record.Active {
		return domain.ErrStockRecordInactive
	}
	if err := guard(record); err != nil {
		return err
	}
	apply(record)
	record.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeStockRepo) ReserveStock(ctx context.Context, recordID string, quantity int) error {
	return f.mutate(recordID, func(r *domain.StockRecord) error {
		if r.Available() < quantity {
			return domain.ErrInsufficientStock
		}
		return nil
	}, func(r *domain.StockRecord) { r.Reserved += quantity })
}

func (f *fakeStockRepo) ReserveWithHold(ctx context.Context, recordID string, quantity int, reservation *domain.Reservation) error {
	// Check the hold write up front: a failing reservation store must leave
	// the counter untouched.
	if f.holds != nil && f.holds.saveErr != nil {
		return f.holds.saveErr
	}
	if err := f.ReserveStock(ctx, recordID, quantity); err != nil {
		return err
	}
	if f.holds != nil {
		if err := f.holds.Save(ctx, reservation); err != nil {
			_ = f.ReleaseReserved(ctx, recordID, quantity)
			return err
		}
	}
	return nil
}

func (f *fakeStockRepo) ReleaseReserved(ctx context.Context, recordID string, quantity int) error {
	return f.mutate(recordID, func(r *domain.StockRecord) error {
		if r.Reserved < quantity {
			return domain.ErrInvalidState
		}
		return nil
	}, func(r *domain.StockRecord) { r.Reserved -= quantity })
}

func (f *fakeStockRepo) ApplyFulfillment(ctx context.Context, recordID string, quantity int) error {
	return f.mutate(recordID, func(r *domain.StockRecord) error {
		if r.Reserved < quantity {
			return domain.ErrInvalidState
		}
		return nil
	}, func(r *domain.StockRecord) {
		r.CurrentStock -= quantity
		r.Reserved -= quantity
	})
}

func (f *fakeStockRepo) ApplyAdjustment(ctx context.Context, recordID string, delta int) error {
	return f.mutate(recordID, func(r *domain.StockRecord) error {
		if r.CurrentStock+delta < r.Reserved {
			return domain.ErrInvalidAdjustment
		}
		return nil
	}, func(r *domain.StockRecord) { r.CurrentStock += delta })
}

func (f *fakeStockRepo) ReceiveStock(ctx context.Context, recordID string, quantity int) error {
	return f.mutate(recordID, func(r *domain.StockRecord) error { return nil },
		func(r *domain.StockRecord) { r.CurrentStock += quantity })
}

func (f *fakeStockRepo) get(recordID string) *domain.StockRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	record := f.records[recordID]
	if record == nil {
		return nil
	}
	clone := *record
	return &clone
}

type fakeReservationRepo struct {
	mu           sync.Mutex
	reservations map[string]*domain.Reservation
	saveErr      error
}

func newFakeReservationRepo() *fakeReservationRepo {
	return &fakeReservationRepo{reservations: make(map[string]*domain.Reservation)}
}

func (f *fakeReservationRepo) Save(ctx context.Context, reservation *domain.Reservation) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *reservation
	f.reservations[reservation.ReservationID] = &clone
	return nil
}

func (f *fakeReservationRepo) FindByID(ctx context.Context, reservationID string) (*domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reservation, ok := f.reservations[reservationID]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}
	clone := *reservation
	return &clone, nil
}

func (f *fakeReservationRepo) FindByConsumerRef(ctx context.Context, consumerRef string) ([]*domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make([]*domain.Reservation, 0)
	for _, reservation := range f.reservations {
		if reservation.ConsumerRef == consumerRef {
			clone := *reservation
			results = append(results, &clone)
		}
	}
	return results, nil
}

func (f *fakeReservationRepo) FindActiveByRecord(ctx context.Context, stockRecordID string) ([]*domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make([]*domain.Reservation, 0)
	for _, reservation := range f.reservations {
		if reservation.StockRecordID == stockRecordID && reservation.Status == domain.ReservationActive {
			clone := *reservation
			results = append(results, &clone)
		}
	}
	return results, nil
}

func (f *fakeReservationRepo) FindExpired(ctx context.Context, asOf time.Time, limit int) ([]*domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make([]*domain.Reservation, 0)
	for _, reservation := range f.reservations {
		if reservation.Status == domain.ReservationActive && reservation.ExpiresAt.Before(asOf) {
			clone := *reservation
			results = append(results, &clone)
			if len(results) >= limit {
				break
			}
		}
	}
	return results, nil
}

func (f *fakeReservationRepo) flip(reservationID string, to domain.ReservationStatus, updatedBy string) (*domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reservation, ok := f.reservations[reservationID]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}
	if reservation.Status != domain.ReservationActive {
		clone := *reservation
		return &clone, domain.ErrInvalidState
	}
	reservation.Status = to
	reservation.UpdatedAt = time.Now().UTC()
	reservation.UpdatedBy = updatedBy
	clone := *reservation
	return &clone, nil
}

func (f *fakeReservationRepo) MarkReleased(ctx context.Context, reservationID string, updatedBy string) (*domain.Reservation, error) {
	return f.flip(reservationID, domain.ReservationReleased, updatedBy)
}

func (f *fakeReservationRepo) MarkFulfilled(ctx context.Context, reservationID string, updatedBy string) (*domain.Reservation, error) {
	reservation, err := f.flip(reservationID, domain.ReservationFulfilled, updatedBy)
	if err != nil && reservation != nil {
		// Mongo flipStatus returns only the sentinel for non-release flips.
		return nil, err
	}
	return reservation, err
}

func (f *fakeReservationRepo) MarkExpired(ctx context.Context, reservationID string) (*domain.Reservation, error) {
	reservation, err := f.flip(reservationID, domain.ReservationExpired, "")
	if err != nil && reservation != nil {
		return nil, err
	}
	return reservation, err
}

func (f *fakeReservationRepo) ExtendExpiry(ctx context.Context, reservationID string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	reservation, ok := f.reservations[reservationID]
	if !ok {
		return domain.ErrReservationNotFound
	}
	if reservation.Status != domain.ReservationActive {
		return domain.ErrInvalidState
	}
	reservation.ExpiresAt = expiresAt
	reservation.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeReservationRepo) get(reservationID string) *domain.Reservation {
	f.mu.Lock()
	defer f.mu.Unlock()
	reservation := f.reservations[reservationID]
	if reservation == nil {
		return nil
	}
	clone := *reservation
	return &clone
}

type fakeTransferRepo struct {
	mu        sync.Mutex
	transfers map[string]*domain.Transfer
	saveErr   error
}

func newFakeTransferRepo() *fakeTransferRepo {
	return &fakeTransferRepo{transfers: make(map[string]*domain.Transfer)}
}

func (f *fakeTransferRepo) Save(ctx context.Context, transfer *domain.Transfer) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.transfers[transfer.TransferID]
	if ok && existing.Version != transfer.Version {
		return domain.ErrConflictingTransition
	}
	transfer.Version++
	clone := *transfer
	f.transfers[transfer.TransferID] = &clone
	transfer.ClearDomainEvents()
	return nil
}

func (f *fakeTransferRepo) FindByID(ctx context.Context, transferID string) (*domain.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	transfer, ok := f.transfers[transferID]
	if !ok {
		return nil, domain.ErrTransferNotFound
	}
	clone := *transfer
	return &clone, nil
}

func (f *fakeTransferRepo) FindByLocation(ctx context.Context, locationID string, statuses []domain.TransferStatus, limit, offset int) ([]*domain.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make([]*domain.Transfer, 0)
	for _, transfer := range f.transfers {
		if transfer.SourceID != locationID && transfer.DestinationID != locationID {
			continue
		}
		if len(statuses) > 0 {
			match := false
			for _, status := range statuses {
				if transfer.Status == status {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		clone := *transfer
		results = append(results, &clone)
	}
	return results, nil
}

func (f *fakeTransferRepo) FindPendingForSource(ctx context.Context, sourceID string) ([]*domain.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make([]*domain.Transfer, 0)
	for _, transfer := range f.transfers {
		if transfer.SourceID == sourceID &&
			(transfer.Status == domain.TransferRequested || transfer.Status == domain.TransferApproved) {
			clone := *transfer
			results = append(results, &clone)
		}
	}
	return results, nil
}

type fakeLocationRepo struct {
	locations map[string]*domain.Location
}

func newFakeLocationRepo(locations ...*domain.Location) *fakeLocationRepo {
	repo := &fakeLocationRepo{locations: make(map[string]*domain.Location)}
	for _, location := range locations {
		repo.locations[location.LocationID] = location
	}
	return repo
}

func (f *fakeLocationRepo) Save(ctx context.Context, location *domain.Location) error {
	f.locations[location.LocationID] = location
	return nil
}

func (f *fakeLocationRepo) FindByID(ctx context.Context, locationID string) (*domain.Location, error) {
	location, ok := f.locations[locationID]
	if !ok {
		return nil, domain.ErrLocationNotFound
	}
	return location, nil
}

func (f *fakeLocationRepo) FindAll(ctx context.Context, activeOnly bool) ([]*domain.Location, error) {
	results := make([]*domain.Location, 0, len(f.locations))
	for _, location := range f.locations {
		if activeOnly && !location.Active {
			continue
		}
		results = append(results, location)
	}
	return results, nil
}

type fakeMovementRepo struct {
	mu        sync.Mutex
	movements []*domain.StockMovement
	saveErr   error
}

func (f *fakeMovementRepo) Save(ctx context.Context, movement *domain.StockMovement) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.movements = append(f.movements, movement)
	return nil
}

func (f *fakeMovementRepo) FindByRecord(ctx context.Context, stockRecordID string, limit int) ([]*domain.StockMovement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make([]*domain.StockMovement, 0)
	for i := len(f.movements) - 1; i >= 0 && len(results) < limit; i-- {
		if f.movements[i].StockRecordID == stockRecordID {
			results = append(results, f.movements[i])
		}
	}
	return results, nil
}

func (f *fakeMovementRepo) FindByReference(ctx context.Context, referenceID string) ([]*domain.StockMovement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make([]*domain.StockMovement, 0)
	for _, movement := range f.movements {
		if movement.ReferenceID == referenceID {
			results = append(results, movement)
		}
	}
	return results, nil
}

func (f *fakeMovementRepo) byType(movementType domain.MovementType) []*domain.StockMovement {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make([]*domain.StockMovement, 0)
	for _, movement := range f.movements {
		if movement.Type == movementType {
			results = append(results, movement)
		}
	}
	return results
}

type fakeEventPublisher struct {
	mu     sync.Mutex
	events []domain.DomainEvent
	err    error
}

func (f *fakeEventPublisher) Publish(ctx context.Context, event domain.DomainEvent) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEventPublisher) PublishAll(ctx context.Context, events []domain.DomainEvent) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeEventPublisher) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]string, 0, len(f.events))
	for _, event := range f.events {
		types = append(types, event.EventType())
	}
	return types
}

// Shared test fixtures.

func testLogger() *logging.Logger {
	config := logging.DefaultConfig("stock-service-test")
	config.Output = io.Discard
	return logging.New(config)
}

func testMetrics() *metrics.Metrics {
	return metrics.New(metrics.DefaultConfig("stock-service-test"))
}

func seedRecord(repo *fakeStockRepo, locationID, productID string, current, reserved int) *domain.StockRecord {
	record, _ := domain.NewStockRecord(locationID, domain.FamilyPharmacy, productID, "Timolol 0.5%", 5, 10, false)
	record.CurrentStock = current
	record.Reserved = reserved
	clone := *record
	repo.records[record.RecordID] = &clone
	return record
}
