package service

import (
	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/repository"
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SlotQuery asks whether a trainer can take a booking.
type SlotQuery struct {
	TrainerID primitive.ObjectID
	Date      string // YYYY-MM-DD
	Slot      domain.TimeRange
	// ExcludeID skips one existing appointment in the overlap test (reschedule).
	ExcludeID primitive.ObjectID
}

// AvailabilityChecker answers whether a slot fits the trainer's weekly
// schedule and does not overlap a slot-holding appointment.
type AvailabilityChecker interface {
	IsAvailable(ctx context.Context, q SlotQuery) (bool, error)
}

type availabilityChecker struct {
	trainerRepo     repository.TrainerRepository
	appointmentRepo repository.AppointmentRepository
	loc             *time.Location
}

// NewAvailabilityChecker creates a checker. loc is the gym's timezone, used
// to resolve the weekday of a date.
func NewAvailabilityChecker(trainerRepo repository.TrainerRepository, appointmentRepo repository.AppointmentRepository, loc *time.Location) AvailabilityChecker {
	if loc == nil {
		loc = time.UTC
	}
	return &availabilityChecker{
		trainerRepo:     trainerRepo,
		appointmentRepo: appointmentRepo,
		loc:             loc,
	}
}

// IsAvailable returns false, not an error, for an unknown trainer. Malformed
// input is ErrInvalidInput.
func (c *availabilityChecker) IsAvailable(ctx context.Context, q SlotQuery) (bool, error) {
	// 1. Validate Inputs
	day, err := domain.ParseDate(q.Date, c.loc)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := q.Slot.Validate(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	// 2. Weekly schedule
	trainer, err := c.trainerRepo.GetByID(ctx, q.TrainerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	schedule, ok := trainer.DaySchedule(day.Weekday())
	if !ok || !schedule.Available {
		return false, nil
	}
	if !fitsWorkingHours(q.Slot, schedule.WorkingHours) {
		return false, nil
	}

	// 3. Existing bookings
	booked, err := c.appointmentRepo.FindBlocking(ctx, q.TrainerID, q.Date)
	if err != nil {
		return false, err
	}
	for _, a := range booked {
		if a.ID == q.ExcludeID || !a.Status.Holds() {
			continue
		}
		if q.Slot.Overlaps(a.Time) {
			return false, nil
		}
	}
	return true, nil
}

// fitsWorkingHours requires the slot to lie inside a single window. Malformed
// stored windows are skipped so degenerate data cannot widen availability.
func fitsWorkingHours(slot domain.TimeRange, windows []domain.WorkingHours) bool {
	for _, w := range windows {
		if w.Validate() != nil {
			continue
		}
		if slot.Within(w) {
			return true
		}
	}
	return false
}
