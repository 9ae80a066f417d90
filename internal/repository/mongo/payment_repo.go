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

const paymentCollectionName = "payments"

type mongoPaymentRepository struct {
	collection *mongo.Collection
}

// NewMongoPaymentRepository creates a new Payment repository backed by MongoDB.
func NewMongoPaymentRepository(db *mongo.Database) repository.PaymentRepository {
	return &mongoPaymentRepository{
		collection: db.Collection(paymentCollectionName),
	}
}

// Create inserts a new payment. TransactionID must be unique.
func (r *mongoPaymentRepository) Create(ctx context.Context, payment *domain.Payment) (primitive.ObjectID, error) {
	if payment.TransactionID == "" {
		return primitive.NilObjectID, errors.New("payment requires a transactionId")
	}

	payment.ID = primitive.NewObjectID()
	// Services stamp CreatedAt from their clock; default to wall time
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	payment.UpdatedAt = payment.CreatedAt
	if payment.Status == "" {
		payment.Status = domain.PaymentPending
	}

	if _, err := r.collection.InsertOne(ctx, payment); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}
	return payment.ID, nil
}

func (r *mongoPaymentRepository) findOne(ctx context.Context, filter bson.M) (*domain.Payment, error) {
	var payment domain.Payment
	err := r.collection.FindOne(ctx, filter).Decode(&payment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &payment, nil
}

// GetByID retrieves a payment by its ID.
func (r *mongoPaymentRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Payment, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetByTransactionID retrieves a payment by its gateway order reference.
func (r *mongoPaymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error) {
	return r.findOne(ctx, bson.M{"transactionId": transactionID})
}

// Transition moves the payment from one status to another. Only one of any
// number of concurrent callers can match the `from` status.
func (r *mongoPaymentRepository) Transition(ctx context.Context, transactionID string, from, to domain.PaymentStatus, info map[string]interface{}, now time.Time) (*domain.Payment, error) {
	filter := bson.M{"transactionId": transactionID, "status": from}
	set := bson.M{
		"status":    to,
		"updatedAt": now,
	}
	if info != nil {
		set["paymentInfo"] = info
	}
	switch to {
	case domain.PaymentCompleted:
		set["completedAt"] = now
	case domain.PaymentFailed, domain.PaymentCancelled:
		set["failedAt"] = now
	}

	var payment domain.Payment
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, returnAfter()).Decode(&payment)
	if err != nil {
		return nil, guardedResult(err)
	}
	return &payment, nil
}

// SetMembership links the payment to the membership it activated.
func (r *mongoPaymentRepository) SetMembership(ctx context.Context, id, membershipID primitive.ObjectID) error {
	update := bson.M{"$set": bson.M{"membershipId": membershipID, "updatedAt": time.Now().UTC()}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsurePaymentIndexes creates necessary indexes for the payments collection.
func EnsurePaymentIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "transactionId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "memberId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
