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

const membershipCollectionName = "memberships"

// mongoMembershipRepository implements repository.MembershipRepository.
// Counter and status changes are single-document FindOneAndUpdate calls whose
// filter carries the precondition, so concurrent writers cannot interleave.
type mongoMembershipRepository struct {
	collection *mongo.Collection
}

// NewMongoMembershipRepository creates a new Membership repository backed by MongoDB.
func NewMongoMembershipRepository(db *mongo.Database) repository.MembershipRepository {
	return &mongoMembershipRepository{
		collection: db.Collection(membershipCollectionName),
	}
}

// Create inserts a new membership.
func (r *mongoMembershipRepository) Create(ctx context.Context, membership *domain.Membership) (primitive.ObjectID, error) {
	if membership.MemberID == primitive.NilObjectID || membership.PackageID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("membership requires memberId and packageId")
	}

	membership.ID = primitive.NewObjectID()
	// Services stamp CreatedAt from their clock; default to wall time
	if membership.CreatedAt.IsZero() {
		membership.CreatedAt = time.Now().UTC()
	}
	membership.UpdatedAt = membership.CreatedAt
	if membership.Status == "" {
		membership.Status = domain.MembershipPending
	}

	if _, err := r.collection.InsertOne(ctx, membership); err != nil {
		// Unique index on paymentId: the payment already produced a membership
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}
	return membership.ID, nil
}

func (r *mongoMembershipRepository) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*domain.Membership, error) {
	var membership domain.Membership
	err := r.collection.FindOne(ctx, filter, opts...).Decode(&membership)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &membership, nil
}

func (r *mongoMembershipRepository) guardedUpdate(ctx context.Context, filter bson.M, update interface{}) (*domain.Membership, error) {
	var membership domain.Membership
	err := r.collection.FindOneAndUpdate(ctx, filter, update, returnAfter()).Decode(&membership)
	if err != nil {
		return nil, guardedResult(err)
	}
	return &membership, nil
}

// GetByID retrieves a membership by its ID.
func (r *mongoMembershipRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Membership, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetByPaymentID retrieves the membership a payment activated.
func (r *mongoMembershipRepository) GetByPaymentID(ctx context.Context, paymentID primitive.ObjectID) (*domain.Membership, error) {
	return r.findOne(ctx, bson.M{"paymentId": paymentID})
}

// FindPending returns the oldest pending membership for member+package.
func (r *mongoMembershipRepository) FindPending(ctx context.Context, memberID, packageID primitive.ObjectID) (*domain.Membership, error) {
	filter := bson.M{"memberId": memberID, "packageId": packageID, "status": domain.MembershipPending}
	return r.findOne(ctx, filter, options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
}

// ListByMember returns a member's memberships, newest first.
func (r *mongoMembershipRepository) ListByMember(ctx context.Context, memberID primitive.ObjectID) ([]domain.Membership, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"memberId": memberID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	memberships := []domain.Membership{}
	if err = cursor.All(ctx, &memberships); err != nil {
		return nil, err
	}
	return memberships, nil
}

// ReserveSession atomically consumes one session.
func (r *mongoMembershipRepository) ReserveSession(ctx context.Context, id primitive.ObjectID, now time.Time) (*domain.Membership, error) {
	filter := bson.M{
		"_id":               id,
		"status":            domain.MembershipActive,
		"startDate":         bson.M{"$lte": now},
		"endDate":           bson.M{"$gte": now},
		"availableSessions": bson.M{"$gt": 0},
	}
	update := bson.M{
		"$inc": bson.M{"availableSessions": -1, "usedSessions": 1},
		"$set": bson.M{"updatedAt": now},
	}
	return r.guardedUpdate(ctx, filter, update)
}

// ReleaseSession atomically returns one session, never above the grant.
func (r *mongoMembershipRepository) ReleaseSession(ctx context.Context, id primitive.ObjectID, now time.Time) (*domain.Membership, error) {
	filter := bson.M{
		"_id":          id,
		"status":       domain.MembershipActive,
		"usedSessions": bson.M{"$gt": 0},
		"$expr":        bson.M{"$lt": bson.A{"$availableSessions", "$sessionGrant"}},
	}
	update := bson.M{
		"$inc": bson.M{"availableSessions": 1, "usedSessions": -1},
		"$set": bson.M{"updatedAt": now},
	}
	return r.guardedUpdate(ctx, filter, update)
}

// ResetSessions restores the monthly grant once per period. The update is a
// pipeline so availableSessions is copied from the stored sessionGrant.
func (r *mongoMembershipRepository) ResetSessions(ctx context.Context, id primitive.ObjectID, periodStart, now time.Time) (*domain.Membership, error) {
	filter := bson.M{
		"_id":               id,
		"status":            domain.MembershipActive,
		"lastSessionsReset": bson.M{"$lt": periodStart},
	}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "availableSessions", Value: "$sessionGrant"},
			{Key: "usedSessions", Value: 0},
			{Key: "lastSessionsReset", Value: now},
			{Key: "updatedAt", Value: now},
		}}},
	}
	return r.guardedUpdate(ctx, filter, update)
}

// ActivatePending activates the member's oldest pending membership for the package.
func (r *mongoMembershipRepository) ActivatePending(ctx context.Context, in repository.ActivateMembershipInput) (*domain.Membership, error) {
	filter := bson.M{
		"memberId":  in.MemberID,
		"packageId": in.PackageID,
		"status":    domain.MembershipPending,
	}
	update := bson.M{"$set": bson.M{
		"paymentId":         in.PaymentID,
		"status":            domain.MembershipActive,
		"startDate":         in.StartDate,
		"endDate":           in.EndDate,
		"sessionGrant":      in.SessionGrant,
		"availableSessions": in.SessionGrant,
		"usedSessions":      0,
		"lastSessionsReset": in.Now,
		"updatedAt":         in.Now,
	}}
	opts := returnAfter().SetSort(bson.D{{Key: "createdAt", Value: 1}})

	var membership domain.Membership
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&membership)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, repository.ErrDuplicate
		}
		return nil, err
	}
	return &membership, nil
}

// Expire moves a lapsed active membership to expired.
func (r *mongoMembershipRepository) Expire(ctx context.Context, id primitive.ObjectID, now time.Time) (*domain.Membership, error) {
	filter := bson.M{
		"_id":     id,
		"status":  domain.MembershipActive,
		"endDate": bson.M{"$lt": now},
	}
	update := bson.M{"$set": bson.M{"status": domain.MembershipExpired, "updatedAt": now}}
	return r.guardedUpdate(ctx, filter, update)
}

// ExpireDue expires every lapsed active membership in one statement.
func (r *mongoMembershipRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	filter := bson.M{
		"status":  domain.MembershipActive,
		"endDate": bson.M{"$lt": now},
	}
	update := bson.M{"$set": bson.M{"status": domain.MembershipExpired, "updatedAt": now}}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// Pause clears the end date and remembers how many days were left.
func (r *mongoMembershipRepository) Pause(ctx context.Context, id primitive.ObjectID, remainingDays int, now time.Time) (*domain.Membership, error) {
	filter := bson.M{"_id": id, "status": domain.MembershipActive}
	update := bson.M{
		"$set": bson.M{
			"status":        domain.MembershipPaused,
			"remainingDays": remainingDays,
			"pausedAt":      now,
			"updatedAt":     now,
		},
		"$unset": bson.M{"endDate": ""},
	}
	return r.guardedUpdate(ctx, filter, update)
}

// Resume reactivates a paused membership with a recomputed end date.
func (r *mongoMembershipRepository) Resume(ctx context.Context, id primitive.ObjectID, endDate, now time.Time) (*domain.Membership, error) {
	filter := bson.M{"_id": id, "status": domain.MembershipPaused}
	update := bson.M{
		"$set": bson.M{
			"status":    domain.MembershipActive,
			"endDate":   endDate,
			"updatedAt": now,
		},
		"$unset": bson.M{"pausedAt": "", "remainingDays": ""},
	}
	return r.guardedUpdate(ctx, filter, update)
}

// EnsureMembershipIndexes creates necessary indexes for the memberships collection.
func EnsureMembershipIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// One membership per payment; makes activation idempotent
			Keys:    bson.D{{Key: "paymentId", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "memberId", Value: 1}, {Key: "packageId", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index(),
		},
		{
			// Expiry sweep
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "endDate", Value: 1}},
			Options: options.Index(),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
