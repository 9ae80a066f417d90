package mongo

import (
	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/repository"
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const paymentEventCollectionName = "payment_events"

type mongoPaymentEventRepository struct {
	collection *mongo.Collection
}

// NewMongoPaymentEventRepository creates a new PaymentEvent repository backed by MongoDB.
func NewMongoPaymentEventRepository(db *mongo.Database) repository.PaymentEventRepository {
	return &mongoPaymentEventRepository{
		collection: db.Collection(paymentEventCollectionName),
	}
}

func (r *mongoPaymentEventRepository) Create(ctx context.Context, event *domain.PaymentEvent) (primitive.ObjectID, error) {
	event.ID = primitive.NewObjectID()
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now().UTC()
	}
	if event.Outcome == "" {
		event.Outcome = domain.EventReceived
	}

	if _, err := r.collection.InsertOne(ctx, event); err != nil {
		return primitive.NilObjectID, err
	}
	return event.ID, nil
}

func (r *mongoPaymentEventRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.PaymentEvent, error) {
	var event domain.PaymentEvent
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&event)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &event, nil
}

// Finish records the reconciler's outcome for the event.
func (r *mongoPaymentEventRepository) Finish(ctx context.Context, id primitive.ObjectID, outcome domain.PaymentEventOutcome, errMsg string, now time.Time) error {
	set := bson.M{"outcome": outcome, "processedAt": now}
	if errMsg != "" {
		set["error"] = errMsg
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsurePaymentEventIndexes creates necessary indexes for the payment_events collection.
func EnsurePaymentEventIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "transactionId", Value: 1}, {Key: "receivedAt", Value: -1}},
			Options: options.Index(),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
