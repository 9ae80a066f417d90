package service

import (
	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/lock"
	"alcyxob/gym-app/internal/repository"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCreateAppointmentConsumesSession(t *testing.T) {
	env := newTestEnv(t)
	member := env.addUser(t, domain.RoleMember)
	trainer := env.addTrainer(t)
	m := env.addMembership(t, member.ID, 4)

	a := env.book(t, member, trainer, m, "10:00", "11:00")
	if a.Status != domain.AppointmentPending {
		t.Errorf("status = %s, want pending", a.Status)
	}
	if a.Location != "Studio A" {
		t.Errorf("location = %q, want trainer default", a.Location)
	}
	if got := env.sessionsLeft(t, m.ID); got != 3 {
		t.Errorf("available sessions = %d, want 3", got)
	}
}

func TestCreateAppointmentRejections(t *testing.T) {
	env := newTestEnv(t)
	member := env.addUser(t, domain.RoleMember)
	other := env.addUser(t, domain.RoleMember)
	trainer := env.addTrainer(t)
	m := env.addMembership(t, member.ID, 4)
	env.book(t, member, trainer, m, "10:00", "11:00")

	tests := []struct {
		name    string
		in      CreateAppointmentInput
		wantErr error
	}{
		{
			name:    "overlapping slot",
			in:      CreateAppointmentInput{MemberID: member.ID, TrainerID: trainer.ID, MembershipID: m.ID, Date: testDay, Slot: domain.TimeRange{Start: "10:30", End: "11:30"}},
			wantErr: ErrSlotUnavailable,
		},
		{
			name:    "outside working hours",
			in:      CreateAppointmentInput{MemberID: member.ID, TrainerID: trainer.ID, MembershipID: m.ID, Date: testDay, Slot: domain.TimeRange{Start: "19:30", End: "20:30"}},
			wantErr: ErrSlotUnavailable,
		},
		{
			name:    "end before start",
			in:      CreateAppointmentInput{MemberID: member.ID, TrainerID: trainer.ID, MembershipID: m.ID, Date: testDay, Slot: domain.TimeRange{Start: "12:00", End: "11:00"}},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "slot in the past",
			in:      CreateAppointmentInput{MemberID: member.ID, TrainerID: trainer.ID, MembershipID: m.ID, Date: "2025-03-02", Slot: domain.TimeRange{Start: "10:00", End: "11:00"}},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "someone else's membership",
			in:      CreateAppointmentInput{MemberID: other.ID, TrainerID: trainer.ID, MembershipID: m.ID, Date: testDay, Slot: domain.TimeRange{Start: "14:00", End: "15:00"}},
			wantErr: ErrAccessDenied,
		},
		{
			name:    "unknown trainer",
			in:      CreateAppointmentInput{MemberID: member.ID, TrainerID: other.ID, MembershipID: m.ID, Date: testDay, Slot: domain.TimeRange{Start: "14:00", End: "15:00"}},
			wantErr: ErrTrainerNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.booking.Create(context.Background(), tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	// None of the rejected bookings may have used a session.
	if got := env.sessionsLeft(t, m.ID); got != 3 {
		t.Errorf("available sessions = %d, want 3", got)
	}
}

func TestConcurrentOverlappingBookingsSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	trainer := env.addTrainer(t)

	const n = 8
	members := make([]domain.Actor, n)
	memberships := make([]*domain.Membership, n)
	for i := range members {
		members[i] = env.addUser(t, domain.RoleMember)
		memberships[i] = env.addMembership(t, members[i].ID, 2)
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Windows 10:00-11:00, 10:15-11:15, ... all overlap pairwise.
			start := []string{"10:00", "10:15", "10:30", "10:45"}[i%4]
			end := []string{"11:00", "11:15", "11:30", "11:45"}[i%4]
			_, errs[i] = env.booking.Create(context.Background(), CreateAppointmentInput{
				MemberID:     members[i].ID,
				TrainerID:    trainer.ID,
				MembershipID: memberships[i].ID,
				Date:         testDay,
				Slot:         domain.TimeRange{Start: start, End: end},
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for i, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotUnavailable):
			if got := env.sessionsLeft(t, memberships[i].ID); got != 2 {
				t.Errorf("loser %d lost a session: available = %d", i, got)
			}
		default:
			t.Errorf("booking %d: unexpected error %v", i, err)
		}
	}
	if wins != 1 {
		t.Fatalf("wins = %d, want exactly 1", wins)
	}

	blocking, err := env.appointments.FindBlocking(context.Background(), trainer.ID, testDay)
	if err != nil {
		t.Fatal(err)
	}
	if len(blocking) != 1 {
		t.Errorf("stored appointments = %d, want 1", len(blocking))
	}
}

func TestConcurrentBookingsLastSession(t *testing.T) {
	env := newTestEnv(t)
	member := env.addUser(t, domain.RoleMember)
	trainers := []domain.Actor{env.addTrainer(t), env.addTrainer(t), env.addTrainer(t), env.addTrainer(t)}
	m := env.addMembership(t, member.ID, 1)

	var wg sync.WaitGroup
	errs := make([]error, len(trainers))
	for i, tr := range trainers {
		wg.Add(1)
		go func(i int, tr domain.Actor) {
			defer wg.Done()
			_, errs[i] = env.booking.Create(context.Background(), CreateAppointmentInput{
				MemberID: member.ID, TrainerID: tr.ID, MembershipID: m.ID,
				Date: testDay, Slot: domain.TimeRange{Start: "10:00", End: "11:00"},
			})
		}(i, tr)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else if !errors.Is(err, ErrNoSessionsLeft) {
			t.Errorf("unexpected error %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("wins = %d, want 1", wins)
	}
	if got := env.sessionsLeft(t, m.ID); got != 0 {
		t.Errorf("available sessions = %d, want 0", got)
	}
}

func TestCancelThenRebookRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	member := env.addUser(t, domain.RoleMember)
	second := env.addUser(t, domain.RoleMember)
	trainer := env.addTrainer(t)
	m := env.addMembership(t, member.ID, 1)
	m2 := env.addMembership(t, second.ID, 1)

	a := env.book(t, member, trainer, m, "10:00", "11:00")
	if _, err := env.booking.Create(context.Background(), CreateAppointmentInput{
		MemberID: member.ID, TrainerID: trainer.ID, MembershipID: m.ID,
		Date: testDay, Slot: domain.TimeRange{Start: "12:00", End: "13:00"},
	}); !errors.Is(err, ErrNoSessionsLeft) {
		t.Fatalf("second booking err = %v, want ErrNoSessionsLeft", err)
	}

	cancelled, err := env.booking.Cancel(context.Background(), a.ID, member, false)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != domain.AppointmentCancelled || !cancelled.SessionRefunded {
		t.Errorf("cancelled = %s refunded=%v, want cancelled and refunded", cancelled.Status, cancelled.SessionRefunded)
	}
	if got := env.sessionsLeft(t, m.ID); got != 1 {
		t.Errorf("available sessions = %d, want 1", got)
	}

	// The freed slot is bookable by someone else.
	env.book(t, second, trainer, m2, "10:00", "11:00")

	if _, err := env.booking.Cancel(context.Background(), a.ID, member, false); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second cancel err = %v, want ErrInvalidTransition", err)
	}
}

func TestCancelRefundPolicy(t *testing.T) {
	t.Run("admin without refund", func(t *testing.T) {
		env := newTestEnv(t)
		member := env.addUser(t, domain.RoleMember)
		admin := env.addUser(t, domain.RoleAdmin)
		trainer := env.addTrainer(t)
		m := env.addMembership(t, member.ID, 2)
		a := env.book(t, member, trainer, m, "10:00", "11:00")

		got, err := env.booking.Cancel(context.Background(), a.ID, admin, false)
		if err != nil {
			t.Fatal(err)
		}
		if got.SessionRefunded {
			t.Error("admin cancel without refund flag refunded the session")
		}
		if left := env.sessionsLeft(t, m.ID); left != 1 {
			t.Errorf("available sessions = %d, want 1", left)
		}
	})

	t.Run("trainer always refunds", func(t *testing.T) {
		env := newTestEnv(t)
		member := env.addUser(t, domain.RoleMember)
		trainer := env.addTrainer(t)
		m := env.addMembership(t, member.ID, 2)
		a := env.book(t, member, trainer, m, "10:00", "11:00")

		got, err := env.booking.Cancel(context.Background(), a.ID, trainer, false)
		if err != nil {
			t.Fatal(err)
		}
		if !got.SessionRefunded || env.sessionsLeft(t, m.ID) != 2 {
			t.Error("trainer cancel did not refund")
		}
	})

	t.Run("unrelated member denied", func(t *testing.T) {
		env := newTestEnv(t)
		member := env.addUser(t, domain.RoleMember)
		stranger := env.addUser(t, domain.RoleMember)
		trainer := env.addTrainer(t)
		m := env.addMembership(t, member.ID, 2)
		a := env.book(t, member, trainer, m, "10:00", "11:00")

		if _, err := env.booking.Cancel(context.Background(), a.ID, stranger, true); !errors.Is(err, ErrAccessDenied) {
			t.Errorf("err = %v, want ErrAccessDenied", err)
		}
	})

	t.Run("no refund into a later period", func(t *testing.T) {
		env := newTestEnv(t)
		member := env.addUser(t, domain.RoleMember)
		trainer := env.addTrainer(t)
		m := env.addMembership(t, member.ID, 2)
		a, err := env.booking.Create(context.Background(), CreateAppointmentInput{
			MemberID: member.ID, TrainerID: trainer.ID, MembershipID: m.ID,
			Date: "2025-04-07", Slot: domain.TimeRange{Start: "10:00", End: "11:00"},
		})
		if err != nil {
			t.Fatal(err)
		}

		// April begins: the grant resets, the March session is gone.
		env.clock.Set(time.Date(2025, time.April, 2, 9, 0, 0, 0, time.UTC))
		got, err := env.booking.Cancel(context.Background(), a.ID, member, true)
		if err != nil {
			t.Fatal(err)
		}
		if got.SessionRefunded {
			t.Error("session refunded into the next period")
		}
		if left := env.sessionsLeft(t, m.ID); left != 2 {
			t.Errorf("available sessions = %d, want the fresh grant 2", left)
		}
	})

	t.Run("paused membership: cancelled, no refund, counters unchanged", func(t *testing.T) {
		env := newTestEnv(t)
		member := env.addUser(t, domain.RoleMember)
		trainer := env.addTrainer(t)
		m := env.addMembership(t, member.ID, 2)
		a := env.book(t, member, trainer, m, "10:00", "11:00")
		if _, err := env.membership.Pause(context.Background(), member, m.ID); err != nil {
			t.Fatalf("pause: %v", err)
		}

		got, err := env.booking.Cancel(context.Background(), a.ID, member, true)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != domain.AppointmentCancelled || got.SessionRefunded || got.RefundPending {
			t.Errorf("got status=%s refunded=%v pending=%v, want cancelled without refund", got.Status, got.SessionRefunded, got.RefundPending)
		}
		assertCounters(t, env, m.ID, 1, 1)
	})

	t.Run("expired membership: cancelled, no refund, counters unchanged", func(t *testing.T) {
		env := newTestEnv(t)
		member := env.addUser(t, domain.RoleMember)
		trainer := env.addTrainer(t)
		m := env.addMembership(t, member.ID, 2)
		a := env.book(t, member, trainer, m, "10:00", "11:00")

		env.clock.Set(time.Date(2025, time.May, 1, 9, 0, 0, 0, time.UTC))
		got, err := env.booking.Cancel(context.Background(), a.ID, member, true)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != domain.AppointmentCancelled || got.SessionRefunded {
			t.Errorf("got status=%s refunded=%v, want cancelled without refund", got.Status, got.SessionRefunded)
		}
		stored, err := env.memberships.GetByID(context.Background(), m.ID)
		if err != nil {
			t.Fatal(err)
		}
		if stored.Status != domain.MembershipExpired {
			t.Errorf("membership status = %s, want expired", stored.Status)
		}
		assertCounters(t, env, m.ID, 1, 1)
	})
}

func assertCounters(t *testing.T, env *testEnv, id primitive.ObjectID, available, used int) {
	t.Helper()
	m, err := env.memberships.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get membership: %v", err)
	}
	if m.AvailableSessions != available || m.UsedSessions != used {
		t.Errorf("sessions available=%d used=%d, want %d/%d", m.AvailableSessions, m.UsedSessions, available, used)
	}
}

var errStorage = errors.New("storage unavailable")

// flakyMemberships fails selected membership calls on demand.
type flakyMemberships struct {
	repository.MembershipRepository
	failGet     bool
	failRelease bool
}

func (f *flakyMemberships) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Membership, error) {
	if f.failGet {
		return nil, errStorage
	}
	return f.MembershipRepository.GetByID(ctx, id)
}

func (f *flakyMemberships) ReleaseSession(ctx context.Context, id primitive.ObjectID, now time.Time) (*domain.Membership, error) {
	if f.failRelease {
		return nil, errStorage
	}
	return f.MembershipRepository.ReleaseSession(ctx, id, now)
}

type flakyAppointments struct {
	repository.AppointmentRepository
	failSettle bool
}

func (f *flakyAppointments) SettleRefund(ctx context.Context, id primitive.ObjectID, refunded bool, now time.Time) error {
	if f.failSettle {
		return errStorage
	}
	return f.AppointmentRepository.SettleRefund(ctx, id, refunded, now)
}

func TestCancelSurvivesStorageFaults(t *testing.T) {
	setup := func(t *testing.T) (*testEnv, *flakyMemberships, *flakyAppointments, AppointmentService) {
		env := newTestEnv(t)
		memberships := &flakyMemberships{MembershipRepository: env.memberships}
		appointments := &flakyAppointments{AppointmentRepository: env.appointments}
		ledger := NewSessionLedger(memberships, env.clock, time.UTC)
		locker := lock.NewLocker(lock.NewMemoryBackend(), 10*time.Second, 2*time.Second)
		svc := NewAppointmentService(appointments, env.trainers, env.availability, ledger, locker, nil, env.clock, time.UTC)
		return env, memberships, appointments, svc
	}

	t.Run("membership read fails before anything changes", func(t *testing.T) {
		env, memberships, _, svc := setup(t)
		member := env.addUser(t, domain.RoleMember)
		trainer := env.addTrainer(t)
		m := env.addMembership(t, member.ID, 2)
		a := env.book(t, member, trainer, m, "10:00", "11:00")

		memberships.failGet = true
		if _, err := svc.Cancel(context.Background(), a.ID, member, true); !errors.Is(err, errStorage) {
			t.Fatalf("err = %v, want storage error", err)
		}
		stored, _ := env.appointments.GetByID(context.Background(), a.ID)
		if stored.Status != domain.AppointmentPending {
			t.Errorf("status = %s, want still pending", stored.Status)
		}
		assertCounters(t, env, m.ID, 1, 1)

		memberships.failGet = false
		got, err := svc.Cancel(context.Background(), a.ID, member, true)
		if err != nil {
			t.Fatalf("retry: %v", err)
		}
		if !got.SessionRefunded {
			t.Error("retry did not refund")
		}
		assertCounters(t, env, m.ID, 2, 0)
	})

	t.Run("release fails: cancel again completes the refund", func(t *testing.T) {
		env, memberships, _, svc := setup(t)
		member := env.addUser(t, domain.RoleMember)
		trainer := env.addTrainer(t)
		m := env.addMembership(t, member.ID, 2)
		a := env.book(t, member, trainer, m, "10:00", "11:00")

		memberships.failRelease = true
		if _, err := svc.Cancel(context.Background(), a.ID, member, true); !errors.Is(err, errStorage) {
			t.Fatalf("err = %v, want storage error", err)
		}
		stored, _ := env.appointments.GetByID(context.Background(), a.ID)
		if stored.Status != domain.AppointmentCancelled || !stored.RefundPending {
			t.Fatalf("stored status=%s pending=%v, want cancelled with refund pending", stored.Status, stored.RefundPending)
		}
		assertCounters(t, env, m.ID, 1, 1)

		memberships.failRelease = false
		got, err := svc.Cancel(context.Background(), a.ID, member, true)
		if err != nil {
			t.Fatalf("retry: %v", err)
		}
		if !got.SessionRefunded || got.RefundPending {
			t.Errorf("retry refunded=%v pending=%v, want refunded and settled", got.SessionRefunded, got.RefundPending)
		}
		assertCounters(t, env, m.ID, 2, 0)

		if _, err := svc.Cancel(context.Background(), a.ID, member, true); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("third cancel err = %v, want ErrInvalidTransition", err)
		}
		assertCounters(t, env, m.ID, 2, 0)
	})

	t.Run("settle fails after release: still a success", func(t *testing.T) {
		env, _, appointments, svc := setup(t)
		member := env.addUser(t, domain.RoleMember)
		trainer := env.addTrainer(t)
		m := env.addMembership(t, member.ID, 2)
		a := env.book(t, member, trainer, m, "10:00", "11:00")

		appointments.failSettle = true
		got, err := svc.Cancel(context.Background(), a.ID, member, true)
		if err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if got.Status != domain.AppointmentCancelled || !got.SessionRefunded {
			t.Errorf("got status=%s refunded=%v, want cancelled and refunded", got.Status, got.SessionRefunded)
		}
		assertCounters(t, env, m.ID, 2, 0)
	})
}

func TestCompletionWindow(t *testing.T) {
	env := newTestEnv(t)
	member := env.addUser(t, domain.RoleMember)
	trainer := env.addTrainer(t)
	m := env.addMembership(t, member.ID, 4)
	a := env.book(t, member, trainer, m, "17:00", "18:00")

	if _, err := env.booking.Complete(context.Background(), a.ID, member); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("complete pending err = %v, want ErrInvalidTransition", err)
	}
	if _, err := env.booking.Confirm(context.Background(), a.ID, member); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("member confirm err = %v, want ErrAccessDenied", err)
	}
	if _, err := env.booking.Confirm(context.Background(), a.ID, trainer); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	tests := []struct {
		name    string
		now     time.Time
		wantErr error
	}{
		{"before end", time.Date(2025, time.March, 10, 17, 59, 0, 0, time.UTC), ErrTooEarly},
		{"after next day", time.Date(2025, time.March, 12, 0, 0, 1, 0, time.UTC), ErrTooLate},
		{"last instant", time.Date(2025, time.March, 11, 23, 59, 59, 0, time.UTC), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.clock.Set(tt.now)
			_, err := env.booking.Complete(context.Background(), a.ID, member)
			if !errors.Is(err, tt.wantErr) && !(tt.wantErr == nil && err == nil) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	got, err := env.booking.Get(context.Background(), a.ID, member)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.AppointmentCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	if left := env.sessionsLeft(t, m.ID); left != 3 {
		t.Errorf("completion changed the session balance: %d", left)
	}
}

func TestCompleteAtEndInstant(t *testing.T) {
	env := newTestEnv(t)
	member := env.addUser(t, domain.RoleMember)
	trainer := env.addTrainer(t)
	m := env.addMembership(t, member.ID, 4)
	a := env.book(t, member, trainer, m, "17:00", "18:00")
	if _, err := env.booking.Confirm(context.Background(), a.ID, trainer); err != nil {
		t.Fatal(err)
	}

	env.clock.Set(time.Date(2025, time.March, 10, 19, 0, 0, 0, time.UTC))
	if _, err := env.booking.Complete(context.Background(), a.ID, trainer); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("trainer complete err = %v, want ErrAccessDenied", err)
	}
	if _, err := env.booking.Complete(context.Background(), a.ID, member); err != nil {
		t.Errorf("complete at 19:00: %v", err)
	}
}

func TestRescheduleKeepsStatusAndSessions(t *testing.T) {
	env := newTestEnv(t)
	member := env.addUser(t, domain.RoleMember)
	other := env.addUser(t, domain.RoleMember)
	trainer := env.addTrainer(t)
	m := env.addMembership(t, member.ID, 4)
	m2 := env.addMembership(t, other.ID, 4)

	a := env.book(t, member, trainer, m, "10:00", "11:00")
	env.book(t, other, trainer, m2, "12:00", "13:00")
	if _, err := env.booking.Confirm(context.Background(), a.ID, trainer); err != nil {
		t.Fatal(err)
	}

	// Overlapping its own current slot is fine.
	moved, err := env.booking.Reschedule(context.Background(), a.ID, member, testDay, domain.TimeRange{Start: "10:30", End: "11:30"})
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if moved.Status != domain.AppointmentConfirmed || moved.Time.Start != "10:30" {
		t.Errorf("moved = %s %s, want confirmed 10:30", moved.Status, moved.Time.Start)
	}

	if _, err := env.booking.Reschedule(context.Background(), a.ID, member, testDay, domain.TimeRange{Start: "12:30", End: "13:30"}); !errors.Is(err, ErrSlotUnavailable) {
		t.Errorf("reschedule onto booked slot err = %v, want ErrSlotUnavailable", err)
	}
	if _, err := env.booking.Reschedule(context.Background(), a.ID, trainer, testDay, domain.TimeRange{Start: "15:00", End: "16:00"}); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("trainer reschedule err = %v, want ErrAccessDenied", err)
	}
	if left := env.sessionsLeft(t, m.ID); left != 3 {
		t.Errorf("available sessions = %d, want 3", left)
	}
}

func TestListAppointmentsScopedByRole(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addUser(t, domain.RoleMember)
	bob := env.addUser(t, domain.RoleMember)
	admin := env.addUser(t, domain.RoleAdmin)
	trainer := env.addTrainer(t)
	ma := env.addMembership(t, alice.ID, 4)
	mb := env.addMembership(t, bob.ID, 4)

	env.book(t, alice, trainer, ma, "09:00", "10:00")
	env.book(t, alice, trainer, ma, "10:00", "11:00")
	env.book(t, bob, trainer, mb, "11:00", "12:00")

	tests := []struct {
		name  string
		actor domain.Actor
		want  int
	}{
		{"member sees own", alice, 2},
		{"other member", bob, 1},
		{"trainer sees schedule", trainer, 3},
		{"admin sees all", admin, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.booking.List(context.Background(), tt.actor, repository.AppointmentListFilter{})
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}

	if _, err := env.booking.List(context.Background(), admin, repository.AppointmentListFilter{DateFrom: "10/03/2025"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad dateFrom err = %v, want ErrInvalidInput", err)
	}
}

type slowAvailability struct{ delay time.Duration }

func (s slowAvailability) IsAvailable(context.Context, SlotQuery) (bool, error) {
	time.Sleep(s.delay)
	return true, nil
}

func TestCreateAbortsWhenSlotLockRunsOut(t *testing.T) {
	env := newTestEnv(t)
	member := env.addUser(t, domain.RoleMember)
	trainer := env.addTrainer(t)
	m := env.addMembership(t, member.ID, 2)

	locker := lock.NewLocker(lock.NewMemoryBackend(), 40*time.Millisecond, time.Second)
	svc := NewAppointmentService(env.appointments, env.trainers, slowAvailability{delay: 35 * time.Millisecond}, env.ledger, locker, nil, env.clock, time.UTC)

	_, err := svc.Create(context.Background(), CreateAppointmentInput{
		MemberID: member.ID, TrainerID: trainer.ID, MembershipID: m.ID,
		Date: testDay, Slot: domain.TimeRange{Start: "10:00", End: "11:00"},
	})
	if !errors.Is(err, ErrSlotBusy) {
		t.Fatalf("err = %v, want ErrSlotBusy", err)
	}
	assertCounters(t, env, m.ID, 2, 0)
	list, err := env.appointments.List(context.Background(), repository.AppointmentListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("%d appointments stored, want none", len(list))
	}
}
