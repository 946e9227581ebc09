package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Location is a clinic or the central depot: the unit of physical stock
// custody. Locations are never hard-deleted; deactivation flips the Active
// flag and every read path filters on it.
type Location struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	LocationID string             `bson:"locationId" json:"locationId"`
	Name       string             `bson:"name" json:"name"`
	IsDepot    bool               `bson:"isDepot" json:"isDepot"`
	Active     bool               `bson:"active" json:"active"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// NewLocation creates an active location record.
func NewLocation(locationID, name string, isDepot bool) *Location {
	now := time.Now().UTC()
	return &Location{
		LocationID: locationID,
		Name:       name,
		IsDepot:    isDepot,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Deactivate soft-deletes the location.
func (l *Location) Deactivate() {
	l.Active = false
	l.UpdatedAt = time.Now().UTC()
}
