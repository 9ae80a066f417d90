// Package memory holds in-process implementations of the repository
// interfaces. They honour the same guarded-update and uniqueness semantics as
// the MongoDB repositories and back the "memory" database driver and the
// service tests.
package memory

import (
	"alcyxob/gym-app/internal/repository"
	"time"
)

// NewStore creates empty repositories.
func NewStore() *repository.Store {
	return &repository.Store{
		Users:         NewUserRepository(),
		Trainers:      NewTrainerRepository(),
		Packages:      NewPackageRepository(),
		Memberships:   NewMembershipRepository(),
		Appointments:  NewAppointmentRepository(),
		Payments:      NewPaymentRepository(),
		PaymentEvents: NewPaymentEventRepository(),
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	return timePtr(*t)
}
