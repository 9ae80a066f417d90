package memory

import (
	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/repository"
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type appointmentRepository struct {
	mu           sync.Mutex
	appointments map[primitive.ObjectID]*domain.Appointment
}

// NewAppointmentRepository creates an empty in-memory appointment repository.
func NewAppointmentRepository() repository.AppointmentRepository {
	return &appointmentRepository{appointments: make(map[primitive.ObjectID]*domain.Appointment)}
}

func copyAppointment(a *domain.Appointment) *domain.Appointment {
	out := *a
	if a.CancelledBy != nil {
		id := *a.CancelledBy
		out.CancelledBy = &id
	}
	out.CancelledAt = copyTime(a.CancelledAt)
	out.CompletedAt = copyTime(a.CompletedAt)
	out.ConfirmedAt = copyTime(a.ConfirmedAt)
	return &out
}

func (r *appointmentRepository) Create(_ context.Context, appointment *domain.Appointment) (primitive.ObjectID, error) {
	if appointment.MemberID == primitive.NilObjectID || appointment.TrainerID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("appointment requires memberId and trainerId")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	appointment.ID = primitive.NewObjectID()
	// Services stamp CreatedAt from their clock; default to wall time
	if appointment.CreatedAt.IsZero() {
		appointment.CreatedAt = time.Now().UTC()
	}
	appointment.UpdatedAt = appointment.CreatedAt
	if appointment.Status == "" {
		appointment.Status = domain.AppointmentPending
	}
	r.appointments[appointment.ID] = copyAppointment(appointment)
	return appointment.ID, nil
}

func (r *appointmentRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyAppointment(a), nil
}

func (r *appointmentRepository) FindBlocking(_ context.Context, trainerID primitive.ObjectID, date string) ([]domain.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Appointment{}
	for _, a := range r.appointments {
		if a.TrainerID == trainerID && a.Date == date && a.Status.Holds() {
			out = append(out, *copyAppointment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Start < out[j].Time.Start })
	return out, nil
}

func matchesFilter(a *domain.Appointment, f repository.AppointmentListFilter) bool {
	if f.MemberID != nil && a.MemberID != *f.MemberID {
		return false
	}
	if f.TrainerID != nil && a.TrainerID != *f.TrainerID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if a.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.DateFrom != "" && a.Date < f.DateFrom {
		return false
	}
	if f.DateTo != "" && a.Date > f.DateTo {
		return false
	}
	if f.SearchTerm != "" {
		term := strings.ToLower(f.SearchTerm)
		if !strings.Contains(strings.ToLower(a.Location), term) && !strings.Contains(strings.ToLower(a.Notes), term) {
			return false
		}
	}
	return true
}

func (r *appointmentRepository) List(_ context.Context, f repository.AppointmentListFilter) ([]domain.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Appointment{}
	for _, a := range r.appointments {
		if matchesFilter(a, f) {
			out = append(out, *copyAppointment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].Time.Start > out[j].Time.Start
	})

	if f.Skip > 0 {
		if f.Skip >= int64(len(out)) {
			return []domain.Appointment{}, nil
		}
		out = out[f.Skip:]
	}
	if f.Limit > 0 && f.Limit < int64(len(out)) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *appointmentRepository) Transition(_ context.Context, id primitive.ObjectID, t repository.AppointmentTransition) (*domain.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, repository.ErrConditionFailed
	}
	allowed := false
	for _, from := range t.From {
		if a.Status == from {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, repository.ErrConditionFailed
	}

	a.Status = t.To
	a.UpdatedAt = t.At
	switch t.To {
	case domain.AppointmentCancelled:
		actor := t.ActorID
		a.CancelledBy = &actor
		a.CancelledAt = timePtr(t.At)
		a.RefundPending = t.RefundPending
	case domain.AppointmentCompleted:
		a.CompletedAt = timePtr(t.At)
	case domain.AppointmentConfirmed:
		a.ConfirmedAt = timePtr(t.At)
	}
	return copyAppointment(a), nil
}

func (r *appointmentRepository) SettleRefund(_ context.Context, id primitive.ObjectID, refunded bool, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.SessionRefunded = refunded
	a.RefundPending = false
	a.UpdatedAt = now
	return nil
}

func (r *appointmentRepository) Reschedule(_ context.Context, id primitive.ObjectID, date string, slot domain.TimeRange, now time.Time) (*domain.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || !a.Status.Holds() {
		return nil, repository.ErrConditionFailed
	}
	a.Date = date
	a.Time = slot
	a.UpdatedAt = now
	return copyAppointment(a), nil
}
