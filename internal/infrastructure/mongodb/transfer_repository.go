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

const transfersCollection = "transfers"

// TransferRepository persists transfers with per-document optimistic
// locking. Save replaces the document only when the stored version matches
// the version the aggregate was loaded with; a lost race surfaces as
// domain.ErrConflictingTransition and the caller re-reads and retries or
// reports the conflict.
type TransferRepository struct {
	collection   *mongo.Collection
	db           *mongo.Database
	outboxRepo   *outboxMongo.OutboxRepository
	eventFactory *cloudevents.EventFactory
}

// NewTransferRepository creates a transfer repository.
func NewTransferRepository(db *mongo.Database, eventFactory *cloudevents.EventFactory) *TransferRepository {
	return &TransferRepository{
		collection:   db.Collection(transfersCollection),
		db:           db,
		outboxRepo:   outboxMongo.NewOutboxRepository(db),
		eventFactory: eventFactory,
	}
}

// EnsureIndexes creates the collection indexes. Call at startup.
func (r *TransferRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "transferId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "sourceId", Value: 1},
				{Key: "status", Value: 1},
			},
		},
		{
			Keys: bson.D{
				{Key: "destinationId", Value: 1},
				{Key: "status", Value: 1},
			},
		},
		{
			Keys: bson.D{{Key: "createdAt", Value: -1}},
		},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// Save persists the transfer. A version of 1 after increment means first
// save (insert); anything later is a compare-and-set replace against the
// previous version. Outbox events ride the same transaction.
func (r *TransferRepository) Save(ctx context.Context, transfer *domain.Transfer) error {
	transfer.UpdatedAt = time.Now().UTC()
	previousVersion := transfer.Version
	transfer.Version++

	session, err := r.db.Client().StartSession()
	if err != nil {
		transfer.Version = previousVersion
		return storageError("failed to start session", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		if previousVersion == 0 {
			if _, err := r.collection.InsertOne(sessCtx, transfer); err != nil {
				if mongo.IsDuplicateKeyError(err) {
					return nil, domain.ErrConflictingTransition
				}
				return nil, storageError("failed to insert transfer", err)
			}
		} else {
			filter := bson.M{
				"transferId": transfer.TransferID,
				"version":    previousVersion,
			}
			result, err := r.collection.ReplaceOne(sessCtx, filter, transfer)
			if err != nil {
				return nil, storageError("failed to update transfer", err)
			}
			if result.MatchedCount == 0 {
				return nil, domain.ErrConflictingTransition
			}
		}

		if err := r.saveOutboxEvents(sessCtx, transfer); err != nil {
			return nil, err
		}

		transfer.ClearDomainEvents()
		return nil, nil
	})
	if err != nil {
		transfer.Version = previousVersion
		if errors.Is(err, domain.ErrConflictingTransition) {
			return domain.ErrConflictingTransition
		}
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

func (r *TransferRepository) saveOutboxEvents(sessCtx mongo.SessionContext, transfer *domain.Transfer) error {
	domainEvents := transfer.GetDomainEvents()
	if len(domainEvents) == 0 {
		return nil
	}

	outboxEvents := make([]*outbox.OutboxEvent, 0, len(domainEvents))
	for _, event := range domainEvents {
		e, ok := event.(*domain.TransferStatusChangedEvent)
		if !ok {
			continue
		}

		cloudEvent := r.eventFactory.CreateTransferStatusChangedEvent(sessCtx, cloudevents.TransferStatusChangedData{
			TransferID:     e.TransferID,
			SourceID:       e.SourceID,
			DestinationID:  e.DestinationID,
			PreviousStatus: string(e.PreviousStatus),
			NewStatus:      string(e.NewStatus),
			ItemCount:      len(transfer.Items),
			TotalRequested: transfer.TotalRequested(),
		}, e.ActorID)

		if correlationID := logging.CorrelationIDFromContext(sessCtx); correlationID != "" {
			cloudEvent.WithCorrelation(correlationID)
		}

		outboxEvent, err := outbox.NewOutboxEventFromCloudEvent(
			transfer.TransferID,
			"Transfer",
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

// FindByID returns the transfer or domain.ErrTransferNotFound.
func (r *TransferRepository) FindByID(ctx context.Context, transferID string) (*domain.Transfer, error) {
	var transfer domain.Transfer
	err := r.collection.FindOne(ctx, bson.M{"transferId": transferID}).Decode(&transfer)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrTransferNotFound
	}
	if err != nil {
		return nil, err
	}
	return &transfer, nil
}

// FindByLocation lists transfers where the location is source or
// destination, newest first, optionally filtered by status.
func (r *TransferRepository) FindByLocation(ctx context.Context, locationID string, statuses []domain.TransferStatus, limit, offset int) ([]*domain.Transfer, error) {
	filter := bson.M{
		"$or": bson.A{
			bson.M{"sourceId": locationID},
			bson.M{"destinationId": locationID},
		},
	}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}

	opts := options.Find().
		SetSort(mongoutil.SortDescending("createdAt")).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var transfers []*domain.Transfer
	if err := cursor.All(ctx, &transfers); err != nil {
		return nil, err
	}
	return transfers, nil
}

// FindPendingForSource returns transfers awaiting action at the source:
// requested (awaiting approval) or approved (awaiting shipment).
func (r *TransferRepository) FindPendingForSource(ctx context.Context, sourceID string) ([]*domain.Transfer, error) {
	cursor, err := r.collection.Find(ctx, bson.M{
		"sourceId": sourceID,
		"status": bson.M{"$in": bson.A{
			domain.TransferRequested,
			domain.TransferApproved,
		}},
	}, options.Find().SetSort(mongoutil.SortAscending("createdAt")))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var transfers []*domain.Transfer
	if err := cursor.All(ctx, &transfers); err != nil {
		return nil, err
	}
	return transfers, nil
}
