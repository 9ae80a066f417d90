package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AppointmentStatus type for appointment lifecycle
type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"   // Booked, session already deducted
	AppointmentConfirmed AppointmentStatus = "confirmed" // Accepted by the trainer
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentCompleted AppointmentStatus = "completed"
)

// BlockingStatuses are the statuses that hold a trainer's time slot.
var BlockingStatuses = []AppointmentStatus{AppointmentPending, AppointmentConfirmed}

// Holds reports whether the appointment still occupies its slot.
func (s AppointmentStatus) Holds() bool {
	return s == AppointmentPending || s == AppointmentConfirmed
}

// Appointment is a booked training session between a member and a trainer.
type Appointment struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	MemberID        primitive.ObjectID  `bson:"memberId" json:"memberId"`
	TrainerID       primitive.ObjectID  `bson:"trainerId" json:"trainerId"`
	MembershipID    primitive.ObjectID  `bson:"membershipId" json:"membershipId"`
	Date            string              `bson:"date" json:"date"` // YYYY-MM-DD in the gym's timezone
	Time            TimeRange           `bson:"time" json:"time"`
	Location        string              `bson:"location,omitempty" json:"location,omitempty"`
	Notes           string              `bson:"notes,omitempty" json:"notes,omitempty"`
	Status          AppointmentStatus   `bson:"status" json:"status"`
	SessionRefunded bool                `bson:"sessionRefunded" json:"sessionRefunded"`
	RefundPending   bool                `bson:"refundPending,omitempty" json:"refundPending,omitempty"` // Cancelled, session not yet returned
	CancelledBy     *primitive.ObjectID `bson:"cancelledBy,omitempty" json:"cancelledBy,omitempty"`
	CancelledAt     *time.Time          `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	CompletedAt     *time.Time          `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	ConfirmedAt     *time.Time          `bson:"confirmedAt,omitempty" json:"confirmedAt,omitempty"`
	CreatedAt       time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// EndsAt is the instant the appointment finishes in loc.
func (a *Appointment) EndsAt(loc *time.Location) (time.Time, error) {
	return At(a.Date, a.Time.End, loc)
}

// CompletionDeadline is the last instant at which the appointment may be
// marked completed: the following day at 23:59:59.999.
func (a *Appointment) CompletionDeadline(loc *time.Location) (time.Time, error) {
	day, err := ParseDate(a.Date, loc)
	if err != nil {
		return time.Time{}, err
	}
	next := day.AddDate(0, 0, 1)
	return time.Date(next.Year(), next.Month(), next.Day(), 23, 59, 59, int(999*time.Millisecond), loc), nil
}
