package mongo

import (
	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/repository"
	"context"
	"errors"
	"log"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const appointmentCollectionName = "appointments"

// mongoAppointmentRepository implements repository.AppointmentRepository
type mongoAppointmentRepository struct {
	collection *mongo.Collection
}

// NewMongoAppointmentRepository creates a new Appointment repository backed by MongoDB.
func NewMongoAppointmentRepository(db *mongo.Database) repository.AppointmentRepository {
	return &mongoAppointmentRepository{
		collection: db.Collection(appointmentCollectionName),
	}
}

// Create inserts a new appointment.
func (r *mongoAppointmentRepository) Create(ctx context.Context, appointment *domain.Appointment) (primitive.ObjectID, error) {
	if appointment.MemberID == primitive.NilObjectID || appointment.TrainerID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("appointment requires memberId and trainerId")
	}

	appointment.ID = primitive.NewObjectID()
	// Services stamp CreatedAt from their clock; default to wall time
	if appointment.CreatedAt.IsZero() {
		appointment.CreatedAt = time.Now().UTC()
	}
	appointment.UpdatedAt = appointment.CreatedAt
	if appointment.Status == "" {
		appointment.Status = domain.AppointmentPending
	}

	if _, err := r.collection.InsertOne(ctx, appointment); err != nil {
		return primitive.NilObjectID, err
	}
	return appointment.ID, nil
}

// GetByID retrieves an appointment by its ID.
func (r *mongoAppointmentRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Appointment, error) {
	var appointment domain.Appointment
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&appointment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &appointment, nil
}

// FindBlocking returns the trainer's slot-holding appointments for one day.
func (r *mongoAppointmentRepository) FindBlocking(ctx context.Context, trainerID primitive.ObjectID, date string) ([]domain.Appointment, error) {
	filter := bson.M{
		"trainerId": trainerID,
		"date":      date,
		"status":    bson.M{"$in": domain.BlockingStatuses},
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "time.start", Value: 1}})
	return r.find(ctx, filter, findOptions)
}

// List returns appointments matching the filter, newest date first.
func (r *mongoAppointmentRepository) List(ctx context.Context, f repository.AppointmentListFilter) ([]domain.Appointment, error) {
	filter := bson.M{}
	if f.MemberID != nil {
		filter["memberId"] = *f.MemberID
	}
	if f.TrainerID != nil {
		filter["trainerId"] = *f.TrainerID
	}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	}

	// Dates are zero-padded strings, so lexical range == chronological range
	dateRange := bson.M{}
	if f.DateFrom != "" {
		dateRange["$gte"] = f.DateFrom
	}
	if f.DateTo != "" {
		dateRange["$lte"] = f.DateTo
	}
	if len(dateRange) > 0 {
		filter["date"] = dateRange
	}

	if f.SearchTerm != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(f.SearchTerm), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"location": pattern},
			bson.M{"notes": pattern},
		}
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "time.start", Value: -1}})
	if f.Limit > 0 {
		findOptions.SetLimit(f.Limit)
	}
	if f.Skip > 0 {
		findOptions.SetSkip(f.Skip)
	}
	return r.find(ctx, filter, findOptions)
}

func (r *mongoAppointmentRepository) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]domain.Appointment, error) {
	cursor, err := r.collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	appointments := []domain.Appointment{}
	if err = cursor.All(ctx, &appointments); err != nil {
		return nil, err
	}
	return appointments, nil
}

// Transition changes the status if the current one is in t.From and stamps
// the matching timestamp field.
func (r *mongoAppointmentRepository) Transition(ctx context.Context, id primitive.ObjectID, t repository.AppointmentTransition) (*domain.Appointment, error) {
	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$in": t.From},
	}
	set := bson.M{
		"status":    t.To,
		"updatedAt": t.At,
	}
	switch t.To {
	case domain.AppointmentCancelled:
		set["cancelledAt"] = t.At
		set["cancelledBy"] = t.ActorID
		set["refundPending"] = t.RefundPending
	case domain.AppointmentCompleted:
		set["completedAt"] = t.At
	case domain.AppointmentConfirmed:
		set["confirmedAt"] = t.At
	}

	var appointment domain.Appointment
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, returnAfter()).Decode(&appointment)
	if err != nil {
		return nil, guardedResult(err)
	}
	return &appointment, nil
}

// SettleRefund closes out the refund owed by a cancellation.
func (r *mongoAppointmentRepository) SettleRefund(ctx context.Context, id primitive.ObjectID, refunded bool, now time.Time) error {
	update := bson.M{"$set": bson.M{"sessionRefunded": refunded, "refundPending": false, "updatedAt": now}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Reschedule moves a slot-holding appointment to a new date and time.
func (r *mongoAppointmentRepository) Reschedule(ctx context.Context, id primitive.ObjectID, date string, slot domain.TimeRange, now time.Time) (*domain.Appointment, error) {
	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$in": domain.BlockingStatuses},
	}
	update := bson.M{"$set": bson.M{
		"date":      date,
		"time":      slot,
		"updatedAt": now,
	}}

	var appointment domain.Appointment
	err := r.collection.FindOneAndUpdate(ctx, filter, update, returnAfter()).Decode(&appointment)
	if err != nil {
		return nil, guardedResult(err)
	}
	return &appointment, nil
}

// EnsureAppointmentIndexes creates necessary indexes for the appointments collection.
func EnsureAppointmentIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// Availability lookups
			Keys:    bson.D{{Key: "trainerId", Value: 1}, {Key: "date", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "memberId", Value: 1}, {Key: "date", Value: -1}},
			Options: options.Index(),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
