package service

import (
	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/notify"
	"alcyxob/gym-app/internal/repository"
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MembershipService exposes memberships to their owners.
type MembershipService interface {
	Get(ctx context.Context, actor domain.Actor, id primitive.ObjectID) (*domain.Membership, error)
	ListByMember(ctx context.Context, actor domain.Actor, memberID primitive.ObjectID) ([]domain.Membership, error)
	Pause(ctx context.Context, actor domain.Actor, id primitive.ObjectID) (*domain.Membership, error)
	Resume(ctx context.Context, actor domain.Actor, id primitive.ObjectID) (*domain.Membership, error)
	// ExpireDue moves every lapsed active membership to expired.
	ExpireDue(ctx context.Context) (int64, error)
}

type membershipService struct {
	membershipRepo repository.MembershipRepository
	ledger         SessionLedger
	notifier       notify.Notifier
	clock          Clock
}

func NewMembershipService(membershipRepo repository.MembershipRepository, ledger SessionLedger, notifier notify.Notifier, clock Clock) MembershipService {
	return &membershipService{
		membershipRepo: membershipRepo,
		ledger:         ledger,
		notifier:       notifier,
		clock:          clock,
	}
}

func canSeeMembership(actor domain.Actor, m *domain.Membership) bool {
	return actor.Role == domain.RoleAdmin || m.MemberID == actor.ID
}

// Get applies the lazy expiry and monthly reset before returning.
func (s *membershipService) Get(ctx context.Context, actor domain.Actor, id primitive.ObjectID) (*domain.Membership, error) {
	m, err := s.ledger.Refresh(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSeeMembership(actor, m) {
		return nil, ErrAccessDenied
	}
	return m, nil
}

func (s *membershipService) ListByMember(ctx context.Context, actor domain.Actor, memberID primitive.ObjectID) ([]domain.Membership, error) {
	if actor.Role != domain.RoleAdmin && actor.ID != memberID {
		return nil, ErrAccessDenied
	}
	memberships, err := s.membershipRepo.ListByMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	for i := range memberships {
		if memberships[i].Status != domain.MembershipActive {
			continue
		}
		refreshed, err := s.ledger.Refresh(ctx, memberships[i].ID)
		if err != nil {
			return nil, err
		}
		memberships[i] = *refreshed
	}
	return memberships, nil
}

// Pause freezes the remaining term. Only the owner may pause.
func (s *membershipService) Pause(ctx context.Context, actor domain.Actor, id primitive.ObjectID) (*domain.Membership, error) {
	m, err := s.ledger.Refresh(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.MemberID != actor.ID {
		return nil, ErrAccessDenied
	}
	if m.Status != domain.MembershipActive || m.EndDate == nil {
		return nil, fmt.Errorf("%w: only an active membership can be paused", ErrInvalidTransition)
	}

	now := s.clock.Now()
	remaining := int(math.Ceil(m.EndDate.Sub(now).Hours() / 24))
	if remaining < 0 {
		remaining = 0
	}
	paused, err := s.membershipRepo.Pause(ctx, id, remaining, now)
	if err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return nil, fmt.Errorf("%w: only an active membership can be paused", ErrInvalidTransition)
		}
		return nil, err
	}
	log.Printf("INFO: Membership %s paused with %d days remaining", id.Hex(), remaining)
	return paused, nil
}

// Resume restarts the term with the days left at pause time.
func (s *membershipService) Resume(ctx context.Context, actor domain.Actor, id primitive.ObjectID) (*domain.Membership, error) {
	m, err := s.membershipRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, err
	}
	if m.MemberID != actor.ID {
		return nil, ErrAccessDenied
	}
	if m.Status != domain.MembershipPaused {
		return nil, fmt.Errorf("%w: only a paused membership can be resumed", ErrInvalidTransition)
	}

	now := s.clock.Now()
	endDate := now.AddDate(0, 0, m.RemainingDays)
	resumed, err := s.membershipRepo.Resume(ctx, id, endDate, now)
	if err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return nil, fmt.Errorf("%w: only a paused membership can be resumed", ErrInvalidTransition)
		}
		return nil, err
	}
	log.Printf("INFO: Membership %s resumed until %s", id.Hex(), endDate.Format(time.RFC3339))
	return resumed, nil
}

func (s *membershipService) ExpireDue(ctx context.Context) (int64, error) {
	n, err := s.membershipRepo.ExpireDue(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("INFO: Expired %d memberships", n)
	}
	return n, nil
}
