package service

import (
	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/repository"
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SessionLedger owns the training-session counters of a membership. All
// counter writes go through the repository's guarded primitives, so two
// callers can never both take the last session.
type SessionLedger interface {
	// Refresh loads a membership and applies lazy transitions: an active
	// membership past its end date is expired, and a membership not reset
	// since the current month began gets exactly one fresh grant.
	Refresh(ctx context.Context, membershipID primitive.ObjectID) (*domain.Membership, error)
	// Reserve consumes one session. Errors: ErrMembershipNotFound,
	// ErrMembershipNotActive, ErrNoSessionsLeft.
	Reserve(ctx context.Context, membershipID primitive.ObjectID) (*domain.Membership, error)
	// Release returns one session. refunded is false when the guard refused
	// (membership no longer active, or already at its full grant).
	Release(ctx context.Context, membershipID primitive.ObjectID) (m *domain.Membership, refunded bool, err error)
}

type sessionLedger struct {
	membershipRepo repository.MembershipRepository
	clock          Clock
	loc            *time.Location
}

// NewSessionLedger creates a ledger. loc defines calendar-month boundaries.
func NewSessionLedger(membershipRepo repository.MembershipRepository, clock Clock, loc *time.Location) SessionLedger {
	if loc == nil {
		loc = time.UTC
	}
	return &sessionLedger{membershipRepo: membershipRepo, clock: clock, loc: loc}
}

func (l *sessionLedger) get(ctx context.Context, id primitive.ObjectID) (*domain.Membership, error) {
	m, err := l.membershipRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, err
	}
	return m, nil
}

func (l *sessionLedger) Refresh(ctx context.Context, membershipID primitive.ObjectID) (*domain.Membership, error) {
	now := l.clock.Now()
	m, err := l.get(ctx, membershipID)
	if err != nil {
		return nil, err
	}

	if m.IsLapsed(now) {
		expired, err := l.membershipRepo.Expire(ctx, m.ID, now)
		switch {
		case err == nil:
			log.Printf("INFO: Membership %s expired (end date %s)", m.ID.Hex(), m.EndDate.Format(time.RFC3339))
			return expired, nil
		case errors.Is(err, repository.ErrConditionFailed):
			// Someone else moved it first
			return l.get(ctx, membershipID)
		default:
			return nil, err
		}
	}

	if m.NeedsSessionReset(now, l.loc) {
		reset, err := l.membershipRepo.ResetSessions(ctx, m.ID, domain.MonthStart(now, l.loc), now)
		switch {
		case err == nil:
			return reset, nil
		case errors.Is(err, repository.ErrConditionFailed):
			return l.get(ctx, membershipID)
		default:
			return nil, err
		}
	}
	return m, nil
}

func (l *sessionLedger) Reserve(ctx context.Context, membershipID primitive.ObjectID) (*domain.Membership, error) {
	if _, err := l.Refresh(ctx, membershipID); err != nil {
		return nil, err
	}

	now := l.clock.Now()
	m, err := l.membershipRepo.ReserveSession(ctx, membershipID, now)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, repository.ErrConditionFailed) {
		return nil, err
	}

	// The guard refused; report why from the current state.
	current, getErr := l.get(ctx, membershipID)
	if getErr != nil {
		return nil, getErr
	}
	if !current.IsActiveAt(now) {
		return nil, ErrMembershipNotActive
	}
	return nil, ErrNoSessionsLeft
}

func (l *sessionLedger) Release(ctx context.Context, membershipID primitive.ObjectID) (*domain.Membership, bool, error) {
	now := l.clock.Now()
	m, err := l.membershipRepo.ReleaseSession(ctx, membershipID, now)
	if err == nil {
		return m, true, nil
	}
	if !errors.Is(err, repository.ErrConditionFailed) {
		return nil, false, err
	}
	current, getErr := l.get(ctx, membershipID)
	if getErr != nil {
		return nil, false, getErr
	}
	return current, false, nil
}
