package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Package is a purchasable membership plan.
type Package struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name             string             `bson:"name" json:"name"`
	Description      string             `bson:"description,omitempty" json:"description,omitempty"`
	Price            int64              `bson:"price" json:"price"`                       // Minor currency units, as sent to the gateway
	DurationDays     int                `bson:"durationDays" json:"durationDays"`         // Length of one membership term
	TrainingSessions int                `bson:"trainingSessions" json:"trainingSessions"` // Sessions granted per calendar month
	Active           bool               `bson:"active" json:"active"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
}
