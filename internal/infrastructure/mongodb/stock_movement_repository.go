package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/medflow/stock-service/internal/domain"
	mongoutil "github.com/medflow/stock-service/pkg/mongodb"
)

const movementsCollection = "stock_movements"

// StockMovementRepository is the append-only movement log. Entries are only
// ever inserted; there is no update path.
type StockMovementRepository struct {
	collection *mongo.Collection
}

// NewStockMovementRepository creates a movement log repository.
func NewStockMovementRepository(db *mongo.Database) *StockMovementRepository {
	return &StockMovementRepository{collection: db.Collection(movementsCollection)}
}

// EnsureIndexes creates the collection indexes. Call at startup.
func (r *StockMovementRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "movementId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "stockRecordId", Value: 1},
				{Key: "occurredAt", Value: -1},
			},
		},
		{
			Keys: bson.D{{Key: "referenceId", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// Save inserts one movement entry.
func (r *StockMovementRepository) Save(ctx context.Context, movement *domain.StockMovement) error {
	_, err := r.collection.InsertOne(ctx, movement)
	return err
}

// FindByRecord returns the newest movements for a stock record.
func (r *StockMovementRepository) FindByRecord(ctx context.Context, stockRecordID string, limit int) ([]*domain.StockMovement, error) {
	opts := options.Find().
		SetSort(mongoutil.SortDescending("occurredAt")).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{"stockRecordId": stockRecordID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var movements []*domain.StockMovement
	if err := cursor.All(ctx, &movements); err != nil {
		return nil, err
	}
	return movements, nil
}

// FindByReference returns every movement caused by a reservation or transfer,
// oldest first, so the caller sees the causal sequence.
func (r *StockMovementRepository) FindByReference(ctx context.Context, referenceID string) ([]*domain.StockMovement, error) {
	cursor, err := r.collection.Find(ctx,
		bson.M{"referenceId": referenceID},
		options.Find().SetSort(mongoutil.SortAscending("occurredAt")),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var movements []*domain.StockMovement
	if err := cursor.All(ctx, &movements); err != nil {
		return nil, err
	}
	return movements, nil
}
