package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/medflow/stock-service/internal/domain"
	"github.com/medflow/stock-service/pkg/cloudevents"
	"github.com/medflow/stock-service/pkg/kafka"
	"github.com/medflow/stock-service/pkg/logging"
	mongoutil "github.com/medflow/stock-service/pkg/mongodb"
	"github.com/medflow/stock-service/pkg/outbox"
	outboxMongo "github.com/medflow/stock-service/pkg/outbox/mongodb"
)

const stockRecordsCollection = "stock_records"

// StockRecordRepository persists stock records. Writes that change counters
// go through conditional filtered updates so the availability guard is
// re-checked at the storage layer; the in-memory aggregate is advisory.
type StockRecordRepository struct {
	collection   *mongo.Collection
	db           *mongo.Database
	outboxRepo   *outboxMongo.OutboxRepository
	eventFactory *cloudevents.EventFactory
}

// NewStockRecordRepository creates a stock record repository.
func NewStockRecordRepository(db *mongo.Database, eventFactory *cloudevents.EventFactory) *StockRecordRepository {
	repo := &StockRecordRepository{
		collection:   db.Collection(stockRecordsCollection),
		db:           db,
		outboxRepo:   outboxMongo.NewOutboxRepository(db),
		eventFactory: eventFactory,
	}
	return repo
}

// EnsureIndexes creates the collection indexes. Call at startup.
func (r *StockRecordRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "recordId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "locationId", Value: 1},
				{Key: "family", Value: 1},
				{Key: "productId", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "family", Value: 1},
				{Key: "productId", Value: 1},
			},
		},
		{
			Keys: bson.D{
				{Key: "locationId", Value: 1},
				{Key: "active", Value: 1},
			},
		},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// Save upserts the record and writes its pending domain events to the outbox
// in the same transaction.
func (r *StockRecordRepository) Save(ctx context.Context, record *domain.StockRecord) error {
	record.UpdatedAt = time.Now().UTC()

	session, err := r.db.Client().StartSession()
	if err != nil {
		return storageError("failed to start session", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		opts := options.Update().SetUpsert(true)
		filter := bson.M{"recordId": record.RecordID}
		update := bson.M{"$set": record}

		if _, err := r.collection.UpdateOne(sessCtx, filter, update, opts); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, domain.ErrDuplicateStockRecord
			}
			return nil, storageError("failed to save stock record", err)
		}

		if err := r.saveOutboxEvents(sessCtx, record); err != nil {
			return nil, err
		}

		record.ClearDomainEvents()
		return nil, nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateStockRecord) {
			return domain.ErrDuplicateStockRecord
		}
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

func (r *StockRecordRepository) saveOutboxEvents(sessCtx mongo.SessionContext, record *domain.StockRecord) error {
	domainEvents := record.GetDomainEvents()
	if len(domainEvents) == 0 {
		return nil
	}

	outboxEvents := make([]*outbox.OutboxEvent, 0, len(domainEvents))
	for _, event := range domainEvents {
		var cloudEvent *cloudevents.ClinicCloudEvent
		switch e := event.(type) {
		case *domain.StockAdjustedEvent:
			cloudEvent = r.eventFactory.CreateStockAdjustedEvent(
				sessCtx, e.RecordID, e.LocationID, string(e.Family), e.ProductID,
				e.OldQuantity, e.NewQuantity, e.Reason,
			).WithActor(e.ActorID)
		case *domain.StockThresholdCrossedEvent:
			cloudEvent = r.eventFactory.CreateThresholdCrossedEvent(sessCtx, cloudevents.StockThresholdCrossedData{
				RecordID:       e.RecordID,
				LocationID:     e.LocationID,
				Family:         string(e.Family),
				ProductID:      e.ProductID,
				PreviousStatus: string(e.PreviousStatus),
				NewStatus:      string(e.NewStatus),
				CurrentStock:   e.CurrentStock,
				Reserved:       e.Reserved,
				ReorderPoint:   e.ReorderPoint,
			})
		default:
			continue
		}

		if correlationID := logging.CorrelationIDFromContext(sessCtx); correlationID != "" {
			cloudEvent.WithCorrelation(correlationID)
		}

		outboxEvent, err := outbox.NewOutboxEventFromCloudEvent(
			record.RecordID,
			"StockRecord",
			kafka.TopicForEventType(cloudEvent.Type),
			cloudEvent,
		)
		if err != nil {
			return fmt.Errorf("failed to create outbox event: %w", err)
		}
		outboxEvents = append(outboxEvents, outboxEvent)
	}

	if len(outboxEvents) > 0 {
		if err := r.outboxRepo.SaveAll(sessCtx, outboxEvents); err != nil {
			return storageError("failed to save outbox events", err)
		}
	}
	return nil
}

// FindByRecordID returns the record or domain.ErrStockRecordNotFound.
func (r *StockRecordRepository) FindByRecordID(ctx context.Context, recordID string) (*domain.StockRecord, error) {
	var record domain.StockRecord
	err := r.collection.FindOne(ctx, bson.M{"recordId": recordID}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrStockRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByKey looks up the record by its compound business key.
func (r *StockRecordRepository) FindByKey(ctx context.Context, locationID string, family domain.ProductFamily, productID string) (*domain.StockRecord, error) {
	var record domain.StockRecord
	err := r.collection.FindOne(ctx, bson.M{
		"locationId": locationID,
		"family":     family,
		"productId":  productID,
	}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrStockRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByLocation lists active records at a location, optionally filtered by
// family, sorted by product for stable pagination.
func (r *StockRecordRepository) FindByLocation(ctx context.Context, locationID string, family domain.ProductFamily, limit, offset int) ([]*domain.StockRecord, error) {
	filter := bson.M{
		"locationId": locationID,
		"active":     true,
	}
	if family != "" {
		filter["family"] = family
	}

	opts := options.Find().
		SetSort(mongoutil.SortMultiple(
			mongoutil.SortField{Field: "family"},
			mongoutil.SortField{Field: "productId"},
		)).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []*domain.StockRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// FindByProduct returns every location's record for one product.
func (r *StockRecordRepository) FindByProduct(ctx context.Context, family domain.ProductFamily, productID string) ([]*domain.StockRecord, error) {
	cursor, err := r.collection.Find(ctx, bson.M{
		"family":    family,
		"productId": productID,
		"active":    true,
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []*domain.StockRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// FindByProducts returns records for a batch of products in one family,
// across all locations. Used by the consolidation view.
func (r *StockRecordRepository) FindByProducts(ctx context.Context, family domain.ProductFamily, productIDs []string) ([]*domain.StockRecord, error) {
	cursor, err := r.collection.Find(ctx, bson.M{
		"family":    family,
		"productId": bson.M{"$in": productIDs},
		"active":    true,
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []*domain.StockRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// FindByFamily returns every active record in one product family, across all
// locations. The family consolidation view groups the result by product.
func (r *StockRecordRepository) FindByFamily(ctx context.Context, family domain.ProductFamily) ([]*domain.StockRecord, error) {
	cursor, err := r.collection.Find(ctx, bson.M{
		"family": family,
		"active": true,
	}, options.Find().SetSort(mongoutil.SortMultiple(
		mongoutil.SortField{Field: "productId"},
		mongoutil.SortField{Field: "locationId"},
	)))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []*domain.StockRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// FindLowStock returns active records at or below their reorder point, or out
// of availability entirely. Empty locationID means all locations.
func (r *StockRecordRepository) FindLowStock(ctx context.Context, locationID string) ([]*domain.StockRecord, error) {
	filter := bson.M{
		"active": true,
		"$or": bson.A{
			bson.M{"$expr": bson.M{"$lte": bson.A{"$currentStock", "$reorderPoint"}}},
			bson.M{"$expr": bson.M{"$lte": bson.A{bson.M{"$subtract": bson.A{"$currentStock", "$reserved"}}, 0}}},
		},
	}
	if locationID != "" {
		filter["locationId"] = locationID
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []*domain.StockRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// ReserveStock increments reserved iff currentStock - reserved >= quantity.
// The guard lives in the update filter, so two racing reservations can never
// jointly oversell.
func (r *StockRecordRepository) ReserveStock(ctx context.Context, recordID string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	filter := bson.M{
		"recordId": recordID,
		"active":   true,
		"$expr": bson.M{
			"$gte": bson.A{bson.M{"$subtract": bson.A{"$currentStock", "$reserved"}}, quantity},
		},
	}
	update := bson.M{
		"$inc": bson.M{"reserved": quantity},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return storageError("failed to reserve stock", err)
	}
	if result.MatchedCount == 0 {
		return r.classifyGuardFailure(ctx, recordID, domain.ErrInsufficientStock)
	}
	return nil
}

// ReserveWithHold runs the reserve counter increment and the reservation
// insert in one session transaction. The guard failure aborts before the
// insert; an insert failure rolls the counter back with the transaction.
func (r *StockRecordRepository) ReserveWithHold(ctx context.Context, recordID string, quantity int, reservation *domain.Reservation) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	session, err := r.db.Client().StartSession()
	if err != nil {
		return storageError("failed to start session", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		filter := bson.M{
			"recordId": recordID,
			"active":   true,
			"$expr": bson.M{
				"$gte": bson.A{bson.M{"$subtract": bson.A{"$currentStock", "$reserved"}}, quantity},
			},
		}
		update := bson.M{
			"$inc": bson.M{"reserved": quantity},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		}

		result, err := r.collection.UpdateOne(sessCtx, filter, update)
		if err != nil {
			return nil, storageError("failed to reserve stock", err)
		}
		if result.MatchedCount == 0 {
			return nil, r.classifyGuardFailure(sessCtx, recordID, domain.ErrInsufficientStock)
		}

		if _, err := r.db.Collection(reservationsCollection).InsertOne(sessCtx, reservation); err != nil {
			return nil, storageError("failed to save reservation", err)
		}
		return nil, nil
	})
	return err
}

// ReleaseReserved decrements reserved iff reserved >= quantity.
func (r *StockRecordRepository) ReleaseReserved(ctx context.Context, recordID string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	filter := bson.M{
		"recordId": recordID,
		"reserved": bson.M{"$gte": quantity},
	}
	update := bson.M{
		"$inc": bson.M{"reserved": -quantity},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return storageError("failed to release reserved stock", err)
	}
	if result.MatchedCount == 0 {
		return r.classifyGuardFailure(ctx, recordID, domain.ErrInvalidState)
	}
	return nil
}

// ApplyFulfillment decrements both currentStock and reserved iff
// reserved >= quantity. Availability is unchanged.
func (r *StockRecordRepository) ApplyFulfillment(ctx context.Context, recordID string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	filter := bson.M{
		"recordId": recordID,
		"reserved": bson.M{"$gte": quantity},
	}
	update := bson.M{
		"$inc": bson.M{"currentStock": -quantity, "reserved": -quantity},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return storageError("failed to fulfill reserved stock", err)
	}
	if result.MatchedCount == 0 {
		return r.classifyGuardFailure(ctx, recordID, domain.ErrInvalidState)
	}
	return nil
}

// ApplyAdjustment applies a signed delta to currentStock iff the result stays
// at or above reserved.
func (r *StockRecordRepository) ApplyAdjustment(ctx context.Context, recordID string, delta int) error {
	if delta == 0 {
		return domain.ErrInvalidQuantity
	}

	filter := bson.M{
		"recordId": recordID,
		"active":   true,
		"$expr": bson.M{
			"$gte": bson.A{bson.M{"$add": bson.A{"$currentStock", delta}}, "$reserved"},
		},
	}
	update := bson.M{
		"$inc": bson.M{"currentStock": delta},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return storageError("failed to adjust stock", err)
	}
	if result.MatchedCount == 0 {
		return r.classifyGuardFailure(ctx, recordID, domain.ErrInvalidAdjustment)
	}
	return nil
}

// ReceiveStock increments currentStock by quantity (transfer receipt or
// supplier delivery). Receipts cannot violate the invariant, so there is no
// guard beyond the record being active.
func (r *StockRecordRepository) ReceiveStock(ctx context.Context, recordID string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	filter := bson.M{
		"recordId": recordID,
		"active":   true,
	}
	update := bson.M{
		"$inc": bson.M{"currentStock": quantity},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return storageError("failed to receive stock", err)
	}
	if result.MatchedCount == 0 {
		return r.classifyGuardFailure(ctx, recordID, domain.ErrStockRecordInactive)
	}
	return nil
}

// classifyGuardFailure distinguishes a missing or inactive record from a
// failed counter guard, so callers get the right sentinel.
func (r *StockRecordRepository) classifyGuardFailure(ctx context.Context, recordID string, guardErr error) error {
	var record domain.StockRecord
	err := r.collection.FindOne(ctx, bson.M{"recordId": recordID}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ErrStockRecordNotFound
	}
	if err != nil {
		return err
	}
	if !record.Active {
		return domain.ErrStockRecordInactive
	}
	return guardErr
}
