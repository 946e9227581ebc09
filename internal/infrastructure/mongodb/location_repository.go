package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/medflow/stock-service/internal/domain"
	mongoutil "github.com/medflow/stock-service/pkg/mongodb"
)

const locationsCollection = "locations"

// LocationRepository is the Mongo-backed location registry.
type LocationRepository struct {
	collection *mongo.Collection
}

// NewLocationRepository creates a location repository.
func NewLocationRepository(db *mongo.Database) *LocationRepository {
	return &LocationRepository{collection: db.Collection(locationsCollection)}
}

// EnsureIndexes creates the collection indexes. Call at startup.
func (r *LocationRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "locationId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// Save upserts the location by its business id.
func (r *LocationRepository) Save(ctx context.Context, location *domain.Location) error {
	location.UpdatedAt = time.Now().UTC()
	_, err := r.collection.ReplaceOne(ctx,
		bson.M{"locationId": location.LocationID},
		location,
		options.Replace().SetUpsert(true),
	)
	return err
}

// FindByID returns the location or domain.ErrLocationNotFound.
func (r *LocationRepository) FindByID(ctx context.Context, locationID string) (*domain.Location, error) {
	var location domain.Location
	err := r.collection.FindOne(ctx, bson.M{"locationId": locationID}).Decode(&location)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrLocationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &location, nil
}

// FindAll lists locations, optionally restricted to active ones, with the
// depot first so consolidation views render it at the top.
func (r *LocationRepository) FindAll(ctx context.Context, activeOnly bool) ([]*domain.Location, error) {
	filter := bson.M{}
	if activeOnly {
		filter["active"] = true
	}

	opts := options.Find().SetSort(mongoutil.SortMultiple(
		mongoutil.SortField{Field: "isDepot", Descending: true},
		mongoutil.SortField{Field: "locationId"},
	))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var locations []*domain.Location
	if err := cursor.All(ctx, &locations); err != nil {
		return nil, err
	}
	return locations, nil
}
