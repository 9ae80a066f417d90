package repository

import (
	"alcyxob/gym-app/internal/domain"
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrUpdateFailed = RepositoryError("update failed")
	ErrDuplicate    = RepositoryError("duplicate key")
	// ErrConditionFailed means a guarded (compare-and-swap) update matched no
	// document: the record exists but not in the expected state, or it is gone.
	ErrConditionFailed = RepositoryError("condition not met")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
}

// TrainerRepository stores trainer profiles and weekly schedules.
type TrainerRepository interface {
	Create(ctx context.Context, trainer *domain.Trainer) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Trainer, error)
	List(ctx context.Context) ([]domain.Trainer, error)
	UpdateSchedule(ctx context.Context, id primitive.ObjectID, schedule []domain.ScheduleDay) (*domain.Trainer, error)
}

// PackageRepository stores the package catalog.
type PackageRepository interface {
	Create(ctx context.Context, pkg *domain.Package) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Package, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Package, error)
}

// ActivateMembershipInput carries the fields written when a payment
// confirmation activates a membership.
type ActivateMembershipInput struct {
	MemberID     primitive.ObjectID
	PackageID    primitive.ObjectID
	PaymentID    primitive.ObjectID
	StartDate    time.Time
	EndDate      time.Time
	SessionGrant int
	Now          time.Time
}

// MembershipRepository is the membership registry. Every counter or status
// mutation is a single guarded update; callers never read-modify-write.
type MembershipRepository interface {
	Create(ctx context.Context, membership *domain.Membership) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Membership, error)
	GetByPaymentID(ctx context.Context, paymentID primitive.ObjectID) (*domain.Membership, error)
	FindPending(ctx context.Context, memberID, packageID primitive.ObjectID) (*domain.Membership, error)
	ListByMember(ctx context.Context, memberID primitive.ObjectID) ([]domain.Membership, error)

	// ReserveSession decrements availableSessions and increments usedSessions
	// only if the membership is active, within its dates at now, and has at
	// least one session left. Returns ErrConditionFailed otherwise.
	ReserveSession(ctx context.Context, id primitive.ObjectID, now time.Time) (*domain.Membership, error)
	// ReleaseSession reverses one reservation only if the membership is active,
	// has used sessions, and availableSessions is below sessionGrant.
	ReleaseSession(ctx context.Context, id primitive.ObjectID, now time.Time) (*domain.Membership, error)
	// ResetSessions restores a full grant only if lastSessionsReset is before
	// periodStart, so concurrent callers reset a period at most once.
	ResetSessions(ctx context.Context, id primitive.ObjectID, periodStart, now time.Time) (*domain.Membership, error)

	// ActivatePending moves the member's pending membership for the package to
	// active. Returns ErrNotFound if there is no pending membership.
	ActivatePending(ctx context.Context, in ActivateMembershipInput) (*domain.Membership, error)
	// Expire moves an active membership whose end date is before now to expired.
	Expire(ctx context.Context, id primitive.ObjectID, now time.Time) (*domain.Membership, error)
	// ExpireDue expires every lapsed active membership and returns the count.
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
	Pause(ctx context.Context, id primitive.ObjectID, remainingDays int, now time.Time) (*domain.Membership, error)
	Resume(ctx context.Context, id primitive.ObjectID, endDate, now time.Time) (*domain.Membership, error)
}

// AppointmentListFilter selects appointments for listing. Zero values mean
// "no constraint".
type AppointmentListFilter struct {
	MemberID   *primitive.ObjectID
	TrainerID  *primitive.ObjectID
	Statuses   []domain.AppointmentStatus
	DateFrom   string // inclusive YYYY-MM-DD
	DateTo     string // inclusive YYYY-MM-DD
	SearchTerm string // case-insensitive match on location or notes
	Limit      int64
	Skip       int64
}

// AppointmentTransition describes a guarded status change.
type AppointmentTransition struct {
	From    []domain.AppointmentStatus
	To      domain.AppointmentStatus
	ActorID primitive.ObjectID
	At      time.Time
	// RefundPending is stored with a cancellation that still owes the
	// member a session.
	RefundPending bool
}

// AppointmentRepository defines the interface for interacting with appointment data.
type AppointmentRepository interface {
	Create(ctx context.Context, appointment *domain.Appointment) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Appointment, error)
	// FindBlocking returns the trainer's pending/confirmed appointments on date.
	FindBlocking(ctx context.Context, trainerID primitive.ObjectID, date string) ([]domain.Appointment, error)
	List(ctx context.Context, filter AppointmentListFilter) ([]domain.Appointment, error)
	// Transition changes status only if the current status is one of t.From.
	Transition(ctx context.Context, id primitive.ObjectID, t AppointmentTransition) (*domain.Appointment, error)
	// SettleRefund clears refundPending and records whether the session went back.
	SettleRefund(ctx context.Context, id primitive.ObjectID, refunded bool, now time.Time) error
	// Reschedule moves the appointment only while its status still holds the slot.
	Reschedule(ctx context.Context, id primitive.ObjectID, date string, slot domain.TimeRange, now time.Time) (*domain.Appointment, error)
}

// PaymentRepository defines the interface for interacting with payment data.
type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Payment, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error)
	// Transition changes status only from `from`; it is the reconciliation lock.
	Transition(ctx context.Context, transactionID string, from, to domain.PaymentStatus, info map[string]interface{}, now time.Time) (*domain.Payment, error)
	SetMembership(ctx context.Context, id, membershipID primitive.ObjectID) error
}

// PaymentEventRepository logs inbound gateway notifications.
type PaymentEventRepository interface {
	Create(ctx context.Context, event *domain.PaymentEvent) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.PaymentEvent, error)
	Finish(ctx context.Context, id primitive.ObjectID, outcome domain.PaymentEventOutcome, errMsg string, now time.Time) error
}

// Store bundles one instance of every repository for a single backend.
type Store struct {
	Users         UserRepository
	Trainers      TrainerRepository
	Packages      PackageRepository
	Memberships   MembershipRepository
	Appointments  AppointmentRepository
	Payments      PaymentRepository
	PaymentEvents PaymentEventRepository
}
