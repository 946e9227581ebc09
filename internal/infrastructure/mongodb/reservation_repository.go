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

const reservationsCollection = "reservations"

// ReservationRepository persists reservations. The Mark* methods are
// conditional flips on status "active" so racing finalizers (manual release,
// fulfillment, the expiry janitor) resolve to exactly one winner.
type ReservationRepository struct {
	collection *mongo.Collection
}

// NewReservationRepository creates a reservation repository.
func NewReservationRepository(db *mongo.Database) *ReservationRepository {
	return &ReservationRepository{
		collection: db.Collection(reservationsCollection),
	}
}

// EnsureIndexes creates the collection indexes. Call at startup.
func (r *ReservationRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "reservationId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "stockRecordId", Value: 1},
				{Key: "status", Value: 1},
			},
		},
		{
			Keys: bson.D{{Key: "consumerRef", Value: 1}},
		},
		{
			// Janitor sweep: active reservations ordered by expiry.
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "expiresAt", Value: 1},
			},
		},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// Save upserts the reservation by its business key.
func (r *ReservationRepository) Save(ctx context.Context, reservation *domain.Reservation) error {
	reservation.UpdatedAt = time.Now().UTC()

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"reservationId": reservation.ReservationID}
	update := bson.M{"$set": reservation}

	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return storageError("failed to save reservation", err)
	}
	return nil
}

// FindByID returns the reservation or domain.ErrReservationNotFound.
func (r *ReservationRepository) FindByID(ctx context.Context, reservationID string) (*domain.Reservation, error) {
	var reservation domain.Reservation
	err := r.collection.FindOne(ctx, bson.M{"reservationId": reservationID}).Decode(&reservation)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// FindByConsumerRef returns all reservations for one consumer reference
// (typically a sales-order id).
func (r *ReservationRepository) FindByConsumerRef(ctx context.Context, consumerRef string) ([]*domain.Reservation, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"consumerRef": consumerRef})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var reservations []*domain.Reservation
	if err := cursor.All(ctx, &reservations); err != nil {
		return nil, err
	}
	return reservations, nil
}

// FindActiveByRecord returns the active holds against one stock record.
func (r *ReservationRepository) FindActiveByRecord(ctx context.Context, stockRecordID string) ([]*domain.Reservation, error) {
	cursor, err := r.collection.Find(ctx, bson.M{
		"stockRecordId": stockRecordID,
		"status":        domain.ReservationActive,
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var reservations []*domain.Reservation
	if err := cursor.All(ctx, &reservations); err != nil {
		return nil, err
	}
	return reservations, nil
}

// FindExpired returns active reservations whose expiry is before asOf,
// oldest first, capped at limit. The janitor claims each one individually
// afterwards, so an overlapping sweep is harmless.
func (r *ReservationRepository) FindExpired(ctx context.Context, asOf time.Time, limit int) ([]*domain.Reservation, error) {
	opts := options.Find().
		SetSort(mongoutil.SortAscending("expiresAt")).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{
		"status":    domain.ReservationActive,
		"expiresAt": bson.M{"$lt": asOf},
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var reservations []*domain.Reservation
	if err := cursor.All(ctx, &reservations); err != nil {
		return nil, err
	}
	return reservations, nil
}

// MarkReleased flips active -> released and returns the updated reservation.
// Releasing an already-terminal reservation returns it unchanged: release is
// idempotent at the API level.
func (r *ReservationRepository) MarkReleased(ctx context.Context, reservationID string, updatedBy string) (*domain.Reservation, error) {
	reservation, err := r.flipStatus(ctx, reservationID, domain.ReservationReleased, updatedBy)
	if err == nil {
		return reservation, nil
	}
	if !errors.Is(err, domain.ErrInvalidState) {
		return nil, err
	}

	// Already terminal. Return the current document so the caller can
	// report the existing state without treating the retry as a failure.
	existing, findErr := r.FindByID(ctx, reservationID)
	if findErr != nil {
		return nil, findErr
	}
	return existing, domain.ErrInvalidState
}

// MarkFulfilled flips active -> fulfilled and returns the updated reservation.
func (r *ReservationRepository) MarkFulfilled(ctx context.Context, reservationID string, updatedBy string) (*domain.Reservation, error) {
	return r.flipStatus(ctx, reservationID, domain.ReservationFulfilled, updatedBy)
}

// MarkExpired flips active -> expired. This is the janitor's claim: only the
// caller that wins the flip restores the stock counters.
func (r *ReservationRepository) MarkExpired(ctx context.Context, reservationID string) (*domain.Reservation, error) {
	return r.flipStatus(ctx, reservationID, domain.ReservationExpired, "")
}

func (r *ReservationRepository) flipStatus(ctx context.Context, reservationID string, to domain.ReservationStatus, updatedBy string) (*domain.Reservation, error) {
	set := bson.M{
		"status":    to,
		"updatedAt": time.Now().UTC(),
	}
	if updatedBy != "" {
		set["updatedBy"] = updatedBy
	}

	filter := bson.M{
		"reservationId": reservationID,
		"status":        domain.ReservationActive,
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var reservation domain.Reservation
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&reservation)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// No active document: either it does not exist at all, or someone
		// else finalized it first.
		count, countErr := r.collection.CountDocuments(ctx, bson.M{"reservationId": reservationID})
		if countErr != nil {
			return nil, countErr
		}
		if count == 0 {
			return nil, domain.ErrReservationNotFound
		}
		return nil, domain.ErrInvalidState
	}
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// ExtendExpiry resets the expiry of an active reservation.
func (r *ReservationRepository) ExtendExpiry(ctx context.Context, reservationID string, expiresAt time.Time) error {
	filter := bson.M{
		"reservationId": reservationID,
		"status":        domain.ReservationActive,
	}
	update := bson.M{
		"$set": bson.M{
			"expiresAt": expiresAt,
			"updatedAt": time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return storageError("failed to extend reservation", err)
	}
	if result.MatchedCount == 0 {
		count, countErr := r.collection.CountDocuments(ctx, bson.M{"reservationId": reservationID})
		if countErr != nil {
			return countErr
		}
		if count == 0 {
			return domain.ErrReservationNotFound
		}
		return domain.ErrInvalidState
	}
	return nil
}
