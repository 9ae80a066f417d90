package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MembershipStatus type for membership lifecycle
type MembershipStatus string

const (
	MembershipPending MembershipStatus = "pending" // Payment requested, not yet confirmed
	MembershipActive  MembershipStatus = "active"
	MembershipPaused  MembershipStatus = "paused"
	MembershipExpired MembershipStatus = "expired"
)

// Membership links a member to a purchased package and carries the
// training-session balance for the current calendar month.
//
// Counter fields are only written through the session ledger's guarded
// repository primitives.
type Membership struct {
	ID                primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	MemberID          primitive.ObjectID  `bson:"memberId" json:"memberId"`
	PackageID         primitive.ObjectID  `bson:"packageId" json:"packageId"`
	PaymentID         *primitive.ObjectID `bson:"paymentId,omitempty" json:"paymentId,omitempty"`
	Status            MembershipStatus    `bson:"status" json:"status"`
	StartDate         *time.Time          `bson:"startDate,omitempty" json:"startDate,omitempty"`
	EndDate           *time.Time          `bson:"endDate,omitempty" json:"endDate,omitempty"` // nil while pending or paused
	SessionGrant      int                 `bson:"sessionGrant" json:"sessionGrant"`           // Package training sessions, copied at activation
	AvailableSessions int                 `bson:"availableSessions" json:"availableSessions"`
	UsedSessions      int                 `bson:"usedSessions" json:"usedSessions"`
	LastSessionsReset time.Time           `bson:"lastSessionsReset" json:"lastSessionsReset"`
	RemainingDays     int                 `bson:"remainingDays,omitempty" json:"remainingDays,omitempty"` // Set while paused
	PausedAt          *time.Time          `bson:"pausedAt,omitempty" json:"pausedAt,omitempty"`
	CreatedAt         time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// IsActiveAt reports whether the membership is usable at now: status active
// with a date range that contains now.
func (m *Membership) IsActiveAt(now time.Time) bool {
	if m.Status != MembershipActive || m.StartDate == nil || m.EndDate == nil {
		return false
	}
	return !now.Before(*m.StartDate) && !now.After(*m.EndDate)
}

// IsLapsed reports whether an active membership has passed its end date and
// should be moved to expired.
func (m *Membership) IsLapsed(now time.Time) bool {
	return m.Status == MembershipActive && m.EndDate != nil && now.After(*m.EndDate)
}

// NeedsSessionReset reports whether a new calendar month (in loc) has begun
// since the last reset.
func (m *Membership) NeedsSessionReset(now time.Time, loc *time.Location) bool {
	if m.Status != MembershipActive {
		return false
	}
	return m.LastSessionsReset.Before(MonthStart(now, loc))
}
