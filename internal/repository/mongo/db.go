package mongo

import (
	"alcyxob/gym-app/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Default connection timeout
const defaultTimeout = 10 * time.Second

// ConnectDB establishes a connection to MongoDB using the provided URI.
// It returns the mongo.Client which can be used to access databases and collections.
func ConnectDB(uri string) (*mongo.Client, error) {
	// Set context with timeout for the connection attempt
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	// Ping the primary node to verify the connection.
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()

	err = client.Ping(pingCtx, readpref.Primary())
	if err != nil {
		// If ping fails, disconnect the client before returning the error
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, err
	}

	return client, nil
}

// DisconnectDB gracefully disconnects the MongoDB client.
func DisconnectDB(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return client.Disconnect(ctx)
}

// returnAfter makes FindOneAndUpdate hand back the updated document.
func returnAfter() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().SetReturnDocument(options.After)
}

// guardedResult maps the outcome of a guarded FindOneAndUpdate: no match means
// the document is missing or not in the expected state.
func guardedResult(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repository.ErrConditionFailed
	}
	return err
}

// EnsureIndexes creates the indexes every repository relies on. Failures are
// logged by each helper and do not stop the others.
func EnsureIndexes(ctx context.Context, db *mongo.Database) {
	EnsureUserIndexes(ctx, db.Collection(userCollectionName))
	EnsureMembershipIndexes(ctx, db.Collection(membershipCollectionName))
	EnsureAppointmentIndexes(ctx, db.Collection(appointmentCollectionName))
	EnsurePaymentIndexes(ctx, db.Collection(paymentCollectionName))
	EnsurePaymentEventIndexes(ctx, db.Collection(paymentEventCollectionName))
}

// NewStore builds every MongoDB repository on db.
func NewStore(db *mongo.Database) *repository.Store {
	return &repository.Store{
		Users:         NewMongoUserRepository(db),
		Trainers:      NewMongoTrainerRepository(db),
		Packages:      NewMongoPackageRepository(db),
		Memberships:   NewMongoMembershipRepository(db),
		Appointments:  NewMongoAppointmentRepository(db),
		Payments:      NewMongoPaymentRepository(db),
		PaymentEvents: NewMongoPaymentEventRepository(db),
	}
}
