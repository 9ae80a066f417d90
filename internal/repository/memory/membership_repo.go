package memory

import (
	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/repository"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// membershipRepository applies every guarded update under one mutex, which
// gives the same single-winner behaviour as a conditional FindOneAndUpdate.
type membershipRepository struct {
	mu          sync.Mutex
	memberships map[primitive.ObjectID]*domain.Membership
}

// NewMembershipRepository creates an empty in-memory membership repository.
func NewMembershipRepository() repository.MembershipRepository {
	return &membershipRepository{memberships: make(map[primitive.ObjectID]*domain.Membership)}
}

func copyMembership(m *domain.Membership) *domain.Membership {
	out := *m
	if m.PaymentID != nil {
		id := *m.PaymentID
		out.PaymentID = &id
	}
	out.StartDate = copyTime(m.StartDate)
	out.EndDate = copyTime(m.EndDate)
	out.PausedAt = copyTime(m.PausedAt)
	return &out
}

func (r *membershipRepository) paymentTaken(paymentID *primitive.ObjectID, except primitive.ObjectID) bool {
	if paymentID == nil {
		return false
	}
	for id, m := range r.memberships {
		if id != except && m.PaymentID != nil && *m.PaymentID == *paymentID {
			return true
		}
	}
	return false
}

func (r *membershipRepository) Create(_ context.Context, membership *domain.Membership) (primitive.ObjectID, error) {
	if membership.MemberID == primitive.NilObjectID || membership.PackageID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("membership requires memberId and packageId")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paymentTaken(membership.PaymentID, primitive.NilObjectID) {
		return primitive.NilObjectID, repository.ErrDuplicate
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
	r.memberships[membership.ID] = copyMembership(membership)
	return membership.ID, nil
}

func (r *membershipRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memberships[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyMembership(m), nil
}

func (r *membershipRepository) GetByPaymentID(_ context.Context, paymentID primitive.ObjectID) (*domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.memberships {
		if m.PaymentID != nil && *m.PaymentID == paymentID {
			return copyMembership(m), nil
		}
	}
	return nil, repository.ErrNotFound
}

// oldestPending must be called with the mutex held.
func (r *membershipRepository) oldestPending(memberID, packageID primitive.ObjectID) *domain.Membership {
	var found *domain.Membership
	for _, m := range r.memberships {
		if m.MemberID != memberID || m.PackageID != packageID || m.Status != domain.MembershipPending {
			continue
		}
		if found == nil || m.CreatedAt.Before(found.CreatedAt) {
			found = m
		}
	}
	return found
}

func (r *membershipRepository) FindPending(_ context.Context, memberID, packageID primitive.ObjectID) (*domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.oldestPending(memberID, packageID)
	if m == nil {
		return nil, repository.ErrNotFound
	}
	return copyMembership(m), nil
}

func (r *membershipRepository) ListByMember(_ context.Context, memberID primitive.ObjectID) ([]domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	memberships := []domain.Membership{}
	for _, m := range r.memberships {
		if m.MemberID == memberID {
			memberships = append(memberships, *copyMembership(m))
		}
	}
	sort.Slice(memberships, func(i, j int) bool {
		return memberships[i].CreatedAt.After(memberships[j].CreatedAt)
	})
	return memberships, nil
}

// guarded runs apply on the stored membership if cond holds.
func (r *membershipRepository) guarded(id primitive.ObjectID, cond func(*domain.Membership) bool, apply func(*domain.Membership)) (*domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memberships[id]
	if !ok || !cond(m) {
		return nil, repository.ErrConditionFailed
	}
	apply(m)
	return copyMembership(m), nil
}

func (r *membershipRepository) ReserveSession(_ context.Context, id primitive.ObjectID, now time.Time) (*domain.Membership, error) {
	return r.guarded(id,
		func(m *domain.Membership) bool {
			return m.IsActiveAt(now) && m.AvailableSessions > 0
		},
		func(m *domain.Membership) {
			m.AvailableSessions--
			m.UsedSessions++
			m.UpdatedAt = now
		})
}

func (r *membershipRepository) ReleaseSession(_ context.Context, id primitive.ObjectID, now time.Time) (*domain.Membership, error) {
	return r.guarded(id,
		func(m *domain.Membership) bool {
			return m.Status == domain.MembershipActive && m.UsedSessions > 0 && m.AvailableSessions < m.SessionGrant
		},
		func(m *domain.Membership) {
			m.AvailableSessions++
			m.UsedSessions--
			m.UpdatedAt = now
		})
}

func (r *membershipRepository) ResetSessions(_ context.Context, id primitive.ObjectID, periodStart, now time.Time) (*domain.Membership, error) {
	return r.guarded(id,
		func(m *domain.Membership) bool {
			return m.Status == domain.MembershipActive && m.LastSessionsReset.Before(periodStart)
		},
		func(m *domain.Membership) {
			m.AvailableSessions = m.SessionGrant
			m.UsedSessions = 0
			m.LastSessionsReset = now
			m.UpdatedAt = now
		})
}

func (r *membershipRepository) ActivatePending(_ context.Context, in repository.ActivateMembershipInput) (*domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.oldestPending(in.MemberID, in.PackageID)
	if m == nil {
		return nil, repository.ErrNotFound
	}
	if r.paymentTaken(&in.PaymentID, m.ID) {
		return nil, repository.ErrDuplicate
	}

	paymentID := in.PaymentID
	m.PaymentID = &paymentID
	m.Status = domain.MembershipActive
	m.StartDate = timePtr(in.StartDate)
	m.EndDate = timePtr(in.EndDate)
	m.SessionGrant = in.SessionGrant
	m.AvailableSessions = in.SessionGrant
	m.UsedSessions = 0
	m.LastSessionsReset = in.Now
	m.UpdatedAt = in.Now
	return copyMembership(m), nil
}

func (r *membershipRepository) Expire(_ context.Context, id primitive.ObjectID, now time.Time) (*domain.Membership, error) {
	return r.guarded(id,
		func(m *domain.Membership) bool { return m.IsLapsed(now) },
		func(m *domain.Membership) {
			m.Status = domain.MembershipExpired
			m.UpdatedAt = now
		})
}

func (r *membershipRepository) ExpireDue(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.memberships {
		if m.IsLapsed(now) {
			m.Status = domain.MembershipExpired
			m.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (r *membershipRepository) Pause(_ context.Context, id primitive.ObjectID, remainingDays int, now time.Time) (*domain.Membership, error) {
	return r.guarded(id,
		func(m *domain.Membership) bool { return m.Status == domain.MembershipActive },
		func(m *domain.Membership) {
			m.Status = domain.MembershipPaused
			m.RemainingDays = remainingDays
			m.PausedAt = timePtr(now)
			m.EndDate = nil
			m.UpdatedAt = now
		})
}

func (r *membershipRepository) Resume(_ context.Context, id primitive.ObjectID, endDate, now time.Time) (*domain.Membership, error) {
	return r.guarded(id,
		func(m *domain.Membership) bool { return m.Status == domain.MembershipPaused },
		func(m *domain.Membership) {
			m.Status = domain.MembershipActive
			m.EndDate = timePtr(endDate)
			m.PausedAt = nil
			m.RemainingDays = 0
			m.UpdatedAt = now
		})
}
