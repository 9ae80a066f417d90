package lock

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const lockCollectionName = "locks"

type lockDocument struct {
	Key       string    `bson:"_id"`
	Token     string    `bson:"token"`
	ExpiresAt time.Time `bson:"expiresAt"`
}

// MongoBackend keeps one document per held key. The unique _id makes the
// insert the atomic acquire.
type MongoBackend struct {
	collection *mongo.Collection
}

// NewMongoBackend creates a Backend on the "locks" collection.
func NewMongoBackend(db *mongo.Database) *MongoBackend {
	return &MongoBackend{collection: db.Collection(lockCollectionName)}
}

func (b *MongoBackend) TryAcquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	doc := lockDocument{Key: key, Token: token, ExpiresAt: now.Add(ttl)}

	_, err := b.collection.InsertOne(ctx, doc)
	if err == nil {
		return true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return false, err
	}

	// Held. Take it over only if the holder's lease has run out; the TTL
	// monitor runs once a minute so expired documents can linger.
	filter := bson.M{"_id": key, "expiresAt": bson.M{"$lt": now}}
	update := bson.M{"$set": bson.M{"token": token, "expiresAt": doc.ExpiresAt}}
	result, err := b.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.ModifiedCount == 1, nil
}

func (b *MongoBackend) Release(ctx context.Context, key, token string) error {
	_, err := b.collection.DeleteOne(ctx, bson.M{"_id": key, "token": token})
	return err
}

// EnsureLockIndexes creates the TTL index that purges abandoned locks.
func EnsureLockIndexes(ctx context.Context, db *mongo.Database) {
	collection := db.Collection(lockCollectionName)
	index := mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	}
	if _, err := collection.Indexes().CreateOne(ctx, index); err != nil {
		log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
