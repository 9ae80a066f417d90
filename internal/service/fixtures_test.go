package service

import (
	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/lock"
	"alcyxob/gym-app/internal/repository"
	"alcyxob/gym-app/internal/repository/memory"
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Monday 2025-03-03 09:00 UTC. 2025-03-10 is the following Monday.
var testNow = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

const testDay = "2025-03-10"

// testEnv wires the booking services against in-memory repositories.
type testEnv struct {
	clock        *FixedClock
	users        repository.UserRepository
	trainers     repository.TrainerRepository
	packages     repository.PackageRepository
	memberships  repository.MembershipRepository
	appointments repository.AppointmentRepository
	payments     repository.PaymentRepository
	events       repository.PaymentEventRepository

	availability AvailabilityChecker
	ledger       SessionLedger
	booking      AppointmentService
	membership   MembershipService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		clock:        NewFixedClock(testNow),
		users:        memory.NewUserRepository(),
		trainers:     memory.NewTrainerRepository(),
		packages:     memory.NewPackageRepository(),
		memberships:  memory.NewMembershipRepository(),
		appointments: memory.NewAppointmentRepository(),
		payments:     memory.NewPaymentRepository(),
		events:       memory.NewPaymentEventRepository(),
	}
	locker := lock.NewLocker(lock.NewMemoryBackend(), 10*time.Second, 2*time.Second)
	env.availability = NewAvailabilityChecker(env.trainers, env.appointments, time.UTC)
	env.ledger = NewSessionLedger(env.memberships, env.clock, time.UTC)
	env.booking = NewAppointmentService(env.appointments, env.trainers, env.availability, env.ledger, locker, nil, env.clock, time.UTC)
	env.membership = NewMembershipService(env.memberships, env.ledger, nil, env.clock)
	return env
}

func (e *testEnv) addUser(t *testing.T, role domain.Role) domain.Actor {
	t.Helper()
	u := &domain.User{
		Name:         string(role),
		Email:        primitive.NewObjectID().Hex() + "@example.com",
		PasswordHash: "x",
		Role:         role,
	}
	id, err := e.users.Create(context.Background(), u)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return domain.Actor{ID: id, Role: role}
}

// addTrainer creates a trainer working 08:00-20:00 every day.
func (e *testEnv) addTrainer(t *testing.T) domain.Actor {
	t.Helper()
	actor := e.addUser(t, domain.RoleTrainer)
	week := domain.EmptyWeek()
	for i := range week {
		week[i].Available = true
		week[i].WorkingHours = []domain.WorkingHours{{Start: "08:00", End: "20:00"}}
	}
	if err := e.trainers.Create(context.Background(), &domain.Trainer{ID: actor.ID, Name: "Coach", Location: "Studio A", Schedule: week}); err != nil {
		t.Fatalf("create trainer: %v", err)
	}
	return actor
}

// addMembership creates an active membership for the member that started
// on 2025-03-01 and runs to the end of April.
func (e *testEnv) addMembership(t *testing.T, memberID primitive.ObjectID, grant int) *domain.Membership {
	t.Helper()
	start := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, time.April, 30, 23, 59, 59, 0, time.UTC)
	m := &domain.Membership{
		MemberID:          memberID,
		PackageID:         primitive.NewObjectID(),
		Status:            domain.MembershipActive,
		StartDate:         &start,
		EndDate:           &end,
		SessionGrant:      grant,
		AvailableSessions: grant,
		LastSessionsReset: start,
		CreatedAt:         start,
	}
	if _, err := e.memberships.Create(context.Background(), m); err != nil {
		t.Fatalf("create membership: %v", err)
	}
	return m
}

func (e *testEnv) sessionsLeft(t *testing.T, id primitive.ObjectID) int {
	t.Helper()
	m, err := e.memberships.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get membership: %v", err)
	}
	return m.AvailableSessions
}

func (e *testEnv) book(t *testing.T, member domain.Actor, trainer domain.Actor, membership *domain.Membership, start, end string) *domain.Appointment {
	t.Helper()
	a, err := e.booking.Create(context.Background(), CreateAppointmentInput{
		MemberID:     member.ID,
		TrainerID:    trainer.ID,
		MembershipID: membership.ID,
		Date:         testDay,
		Slot:         domain.TimeRange{Start: start, End: end},
	})
	if err != nil {
		t.Fatalf("book %s-%s: %v", start, end, err)
	}
	return a
}
