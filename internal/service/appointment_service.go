package service

import (
	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/lock"
	"alcyxob/gym-app/internal/notify"
	"alcyxob/gym-app/internal/repository"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// SlotLocker serialises bookings per key.
type SlotLocker interface {
	Acquire(ctx context.Context, key string) (*lock.Lease, error)
}

// CreateAppointmentInput carries a booking request.
type CreateAppointmentInput struct {
	MemberID     primitive.ObjectID
	TrainerID    primitive.ObjectID
	MembershipID primitive.ObjectID
	Date         string
	Slot         domain.TimeRange
	Location     string
	Notes        string
}

type AppointmentService interface {
	Create(ctx context.Context, in CreateAppointmentInput) (*domain.Appointment, error)
	Cancel(ctx context.Context, appointmentID primitive.ObjectID, actor domain.Actor, isRefund bool) (*domain.Appointment, error)
	Confirm(ctx context.Context, appointmentID primitive.ObjectID, actor domain.Actor) (*domain.Appointment, error)
	Complete(ctx context.Context, appointmentID primitive.ObjectID, actor domain.Actor) (*domain.Appointment, error)
	Reschedule(ctx context.Context, appointmentID primitive.ObjectID, actor domain.Actor, date string, slot domain.TimeRange) (*domain.Appointment, error)
	Get(ctx context.Context, appointmentID primitive.ObjectID, actor domain.Actor) (*domain.Appointment, error)
	List(ctx context.Context, actor domain.Actor, filter repository.AppointmentListFilter) ([]domain.Appointment, error)
	CheckAvailability(ctx context.Context, trainerID primitive.ObjectID, date string, slot domain.TimeRange) (bool, error)
}

type appointmentService struct {
	appointmentRepo repository.AppointmentRepository
	trainerRepo     repository.TrainerRepository
	availability    AvailabilityChecker
	ledger          SessionLedger
	locker          SlotLocker
	notifier        notify.Notifier
	clock           Clock
	loc             *time.Location
}

// NewAppointmentService wires the booking state machine.
func NewAppointmentService(
	appointmentRepo repository.AppointmentRepository,
	trainerRepo repository.TrainerRepository,
	availability AvailabilityChecker,
	ledger SessionLedger,
	locker SlotLocker,
	notifier notify.Notifier,
	clock Clock,
	loc *time.Location,
) AppointmentService {
	if loc == nil {
		loc = time.UTC
	}
	return &appointmentService{
		appointmentRepo: appointmentRepo,
		trainerRepo:     trainerRepo,
		availability:    availability,
		ledger:          ledger,
		locker:          locker,
		notifier:        notifier,
		clock:           clock,
		loc:             loc,
	}
}

func slotLockKey(trainerID primitive.ObjectID, date string) string {
	return "slot:" + trainerID.Hex() + ":" + date
}

// validateSlot checks formats and that the slot has not started yet.
func (s *appointmentService) validateSlot(date string, slot domain.TimeRange) error {
	if err := slot.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	start, err := domain.At(date, slot.Start, s.loc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if start.Before(s.clock.Now()) {
		return fmt.Errorf("%w: slot start is in the past", ErrInvalidInput)
	}
	return nil
}

func (s *appointmentService) acquireSlotLock(ctx context.Context, trainerID primitive.ObjectID, date string) (*lock.Lease, error) {
	lease, err := s.locker.Acquire(ctx, slotLockKey(trainerID, date))
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			return nil, ErrSlotBusy
		}
		return nil, err
	}
	return lease, nil
}

func (s *appointmentService) load(ctx context.Context, id primitive.ObjectID) (*domain.Appointment, error) {
	appointment, err := s.appointmentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return appointment, nil
}

// canView: owning member, assigned trainer, or admin.
func canView(a *domain.Appointment, actor domain.Actor) bool {
	switch actor.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleMember:
		return a.MemberID == actor.ID
	case domain.RoleTrainer:
		return a.TrainerID == actor.ID
	}
	return false
}

// Create books a slot. Order: slot lock, availability, session reserve,
// insert. The lock makes the overlap check and insert atomic per trainer and
// day; a failed insert hands the session back.
func (s *appointmentService) Create(ctx context.Context, in CreateAppointmentInput) (*domain.Appointment, error) {
	// 1. Validate Inputs
	if in.MemberID.IsZero() || in.TrainerID.IsZero() || in.MembershipID.IsZero() {
		return nil, fmt.Errorf("%w: member, trainer and membership are required", ErrInvalidInput)
	}
	if err := s.validateSlot(in.Date, in.Slot); err != nil {
		return nil, err
	}

	// 2. Ownership of the membership
	membership, err := s.ledger.Refresh(ctx, in.MembershipID)
	if err != nil {
		return nil, err
	}
	if membership.MemberID != in.MemberID {
		return nil, fmt.Errorf("%w: membership belongs to another member", ErrAccessDenied)
	}

	trainer, err := s.trainerRepo.GetByID(ctx, in.TrainerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTrainerNotFound
		}
		return nil, err
	}

	// 3. Serialise bookings for this trainer and day
	lease, err := s.acquireSlotLock(ctx, in.TrainerID, in.Date)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	// 4. Availability, now stable while the lock is held
	ok, err := s.availability.IsAvailable(ctx, SlotQuery{TrainerID: in.TrainerID, Date: in.Date, Slot: in.Slot})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSlotUnavailable
	}

	// 5. Consume a session
	if _, err := s.ledger.Reserve(ctx, in.MembershipID); err != nil {
		return nil, err
	}

	// 6. Persist, unless the lock may already belong to someone else
	if lease.Expiring() {
		log.Printf("WARN: Booking for trainer %s on %s outlived its slot lock; aborting", in.TrainerID.Hex(), in.Date)
		if _, refunded, relErr := s.ledger.Release(ctx, in.MembershipID); relErr != nil || !refunded {
			log.Printf("ERROR: Session for membership %s was not returned after aborted booking (refunded=%v): %v", in.MembershipID.Hex(), refunded, relErr)
		}
		return nil, ErrSlotBusy
	}
	location := in.Location
	if location == "" {
		location = trainer.Location
	}
	appointment := &domain.Appointment{
		MemberID:     in.MemberID,
		TrainerID:    in.TrainerID,
		MembershipID: in.MembershipID,
		Date:         in.Date,
		Time:         in.Slot,
		Location:     location,
		Notes:        in.Notes,
		Status:       domain.AppointmentPending,
		CreatedAt:    s.clock.Now(),
	}
	id, err := s.appointmentRepo.Create(ctx, appointment)
	if err != nil {
		if _, refunded, relErr := s.ledger.Release(ctx, in.MembershipID); relErr != nil || !refunded {
			log.Printf("ERROR: Booking insert failed and session for membership %s was not returned (refunded=%v): %v", in.MembershipID.Hex(), refunded, relErr)
		}
		return nil, err
	}
	appointment.ID = id

	log.Printf("INFO: Appointment %s booked: trainer %s on %s %s-%s", id.Hex(), in.TrainerID.Hex(), in.Date, in.Slot.Start, in.Slot.End)
	notify.Dispatch(s.notifier, notify.Message{
		Kind:        notify.AppointmentBooked,
		RecipientID: in.TrainerID,
		Subject:     "New appointment request",
		Data:        map[string]string{"appointmentId": id.Hex(), "date": in.Date, "start": in.Slot.Start, "end": in.Slot.End},
	})
	return appointment, nil
}

// Cancel moves a pending or confirmed appointment to cancelled. Members and
// trainers always refund; admins refund only when isRefund is set. A session
// goes back only while the membership is active and still in the period the
// session was drawn from.
//
// Eligibility is settled before the status changes, and a cancellation that
// still owes a session is stored with refundPending. If returning the session
// fails, cancelling again finishes the refund.
func (s *appointmentService) Cancel(ctx context.Context, appointmentID primitive.ObjectID, actor domain.Actor, isRefund bool) (*domain.Appointment, error) {
	appointment, err := s.load(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if !canView(appointment, actor) {
		return nil, ErrAccessDenied
	}
	if appointment.Status == domain.AppointmentCancelled && appointment.RefundPending {
		return s.retryRefund(ctx, appointment)
	}
	if !appointment.Status.Holds() {
		return nil, fmt.Errorf("%w: cannot cancel a %s appointment", ErrInvalidTransition, appointment.Status)
	}

	refund := isRefund
	if actor.Role != domain.RoleAdmin {
		refund = true
	}
	eligible := false
	if refund {
		if eligible, err = s.refundEligible(ctx, appointment); err != nil {
			return nil, err
		}
	}

	cancelled, err := s.appointmentRepo.Transition(ctx, appointmentID, repository.AppointmentTransition{
		From:          domain.BlockingStatuses,
		To:            domain.AppointmentCancelled,
		ActorID:       actor.ID,
		At:            s.clock.Now(),
		RefundPending: eligible,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return nil, fmt.Errorf("%w: appointment changed concurrently", ErrInvalidTransition)
		}
		return nil, err
	}

	if eligible {
		if err := s.completeRefund(ctx, cancelled); err != nil {
			log.Printf("ERROR: Appointment %s cancelled but session refund failed, cancel again to retry: %v", appointmentID.Hex(), err)
			return nil, err
		}
	}

	notify.Dispatch(s.notifier, notify.Message{
		Kind:        notify.AppointmentCancelled,
		RecipientID: counterpart(cancelled, actor),
		Subject:     "Appointment cancelled",
		Data:        map[string]string{"appointmentId": appointmentID.Hex(), "date": cancelled.Date, "start": cancelled.Time.Start},
	})
	return cancelled, nil
}

// retryRefund finishes the refund of an earlier cancellation. The membership
// may have moved on since, so eligibility is checked again.
func (s *appointmentService) retryRefund(ctx context.Context, a *domain.Appointment) (*domain.Appointment, error) {
	eligible, err := s.refundEligible(ctx, a)
	if err != nil {
		return nil, err
	}
	if !eligible {
		if err := s.appointmentRepo.SettleRefund(ctx, a.ID, false, s.clock.Now()); err != nil {
			return nil, err
		}
		a.RefundPending = false
		return a, nil
	}
	if err := s.completeRefund(ctx, a); err != nil {
		return nil, err
	}
	log.Printf("INFO: Pending refund for appointment %s completed", a.ID.Hex())
	return a, nil
}

func (s *appointmentService) refundEligible(ctx context.Context, a *domain.Appointment) (bool, error) {
	membership, err := s.ledger.Refresh(ctx, a.MembershipID)
	if err != nil {
		return false, err
	}
	if membership.Status != domain.MembershipActive {
		log.Printf("INFO: Appointment %s cancelled without refund: membership %s is %s", a.ID.Hex(), membership.ID.Hex(), membership.Status)
		return false, nil
	}
	if a.CreatedAt.Before(membership.LastSessionsReset) {
		log.Printf("INFO: Appointment %s cancelled without refund: session belongs to a previous period", a.ID.Hex())
		return false, nil
	}
	return true, nil
}

// completeRefund returns the session and settles the appointment. A release
// error leaves refundPending set.
func (s *appointmentService) completeRefund(ctx context.Context, a *domain.Appointment) error {
	_, refunded, err := s.ledger.Release(ctx, a.MembershipID)
	if err != nil {
		return err
	}
	if err := s.appointmentRepo.SettleRefund(ctx, a.ID, refunded, s.clock.Now()); err != nil {
		log.Printf("WARN: Session for appointment %s returned (refunded=%v) but the appointment was not updated: %v", a.ID.Hex(), refunded, err)
	}
	a.SessionRefunded = refunded
	a.RefundPending = false
	return nil
}

// counterpart is who should hear about an action: the member if staff acted,
// otherwise the trainer.
func counterpart(a *domain.Appointment, actor domain.Actor) primitive.ObjectID {
	if actor.ID == a.MemberID {
		return a.TrainerID
	}
	return a.MemberID
}

// Confirm is the trainer's (or an admin's) acceptance of a pending booking.
func (s *appointmentService) Confirm(ctx context.Context, appointmentID primitive.ObjectID, actor domain.Actor) (*domain.Appointment, error) {
	appointment, err := s.load(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleMember || !canView(appointment, actor) {
		return nil, ErrAccessDenied
	}
	if appointment.Status != domain.AppointmentPending {
		return nil, fmt.Errorf("%w: cannot confirm a %s appointment", ErrInvalidTransition, appointment.Status)
	}

	confirmed, err := s.appointmentRepo.Transition(ctx, appointmentID, repository.AppointmentTransition{
		From:    []domain.AppointmentStatus{domain.AppointmentPending},
		To:      domain.AppointmentConfirmed,
		ActorID: actor.ID,
		At:      s.clock.Now(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return nil, fmt.Errorf("%w: appointment changed concurrently", ErrInvalidTransition)
		}
		return nil, err
	}

	notify.Dispatch(s.notifier, notify.Message{
		Kind:        notify.AppointmentConfirmed,
		RecipientID: confirmed.MemberID,
		Subject:     "Appointment confirmed",
		Data:        map[string]string{"appointmentId": appointmentID.Hex(), "date": confirmed.Date, "start": confirmed.Time.Start},
	})
	return confirmed, nil
}

// Complete is allowed to the owning member from the appointment's end until
// 23:59:59.999 of the following day.
func (s *appointmentService) Complete(ctx context.Context, appointmentID primitive.ObjectID, actor domain.Actor) (*domain.Appointment, error) {
	appointment, err := s.load(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleMember || appointment.MemberID != actor.ID {
		return nil, ErrAccessDenied
	}
	if appointment.Status != domain.AppointmentConfirmed {
		return nil, fmt.Errorf("%w: only confirmed appointments can be completed", ErrInvalidTransition)
	}

	endsAt, err := appointment.EndsAt(s.loc)
	if err != nil {
		return nil, err
	}
	deadline, err := appointment.CompletionDeadline(s.loc)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if now.Before(endsAt) {
		return nil, ErrTooEarly
	}
	if now.After(deadline) {
		return nil, ErrTooLate
	}

	completed, err := s.appointmentRepo.Transition(ctx, appointmentID, repository.AppointmentTransition{
		From:    []domain.AppointmentStatus{domain.AppointmentConfirmed},
		To:      domain.AppointmentCompleted,
		ActorID: actor.ID,
		At:      now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return nil, fmt.Errorf("%w: appointment changed concurrently", ErrInvalidTransition)
		}
		return nil, err
	}
	return completed, nil
}

// Reschedule moves the owner's pending or confirmed appointment to a new
// slot with the same trainer. Status and session accounting are unchanged.
func (s *appointmentService) Reschedule(ctx context.Context, appointmentID primitive.ObjectID, actor domain.Actor, date string, slot domain.TimeRange) (*domain.Appointment, error) {
	appointment, err := s.load(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleMember || appointment.MemberID != actor.ID {
		return nil, ErrAccessDenied
	}
	if !appointment.Status.Holds() {
		return nil, fmt.Errorf("%w: cannot reschedule a %s appointment", ErrInvalidTransition, appointment.Status)
	}
	if err := s.validateSlot(date, slot); err != nil {
		return nil, err
	}

	lease, err := s.acquireSlotLock(ctx, appointment.TrainerID, date)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	ok, err := s.availability.IsAvailable(ctx, SlotQuery{
		TrainerID: appointment.TrainerID,
		Date:      date,
		Slot:      slot,
		ExcludeID: appointment.ID,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSlotUnavailable
	}
	if lease.Expiring() {
		log.Printf("WARN: Reschedule of appointment %s outlived its slot lock; aborting", appointmentID.Hex())
		return nil, ErrSlotBusy
	}

	moved, err := s.appointmentRepo.Reschedule(ctx, appointmentID, date, slot, s.clock.Now())
	if err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return nil, fmt.Errorf("%w: appointment changed concurrently", ErrInvalidTransition)
		}
		return nil, err
	}
	log.Printf("INFO: Appointment %s rescheduled to %s %s-%s", appointmentID.Hex(), date, slot.Start, slot.End)
	return moved, nil
}

func (s *appointmentService) Get(ctx context.Context, appointmentID primitive.ObjectID, actor domain.Actor) (*domain.Appointment, error) {
	appointment, err := s.load(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if !canView(appointment, actor) {
		return nil, ErrAccessDenied
	}
	return appointment, nil
}

// List scopes the filter to the actor: members see their own bookings,
// trainers their own schedule, admins everything.
func (s *appointmentService) List(ctx context.Context, actor domain.Actor, filter repository.AppointmentListFilter) ([]domain.Appointment, error) {
	switch actor.Role {
	case domain.RoleMember:
		id := actor.ID
		filter.MemberID = &id
	case domain.RoleTrainer:
		id := actor.ID
		filter.TrainerID = &id
	case domain.RoleAdmin:
	default:
		return nil, ErrAccessDenied
	}

	if filter.DateFrom != "" && !domain.IsDate(filter.DateFrom) {
		return nil, fmt.Errorf("%w: dateFrom: %v", ErrInvalidInput, domain.ErrInvalidDate)
	}
	if filter.DateTo != "" && !domain.IsDate(filter.DateTo) {
		return nil, fmt.Errorf("%w: dateTo: %v", ErrInvalidInput, domain.ErrInvalidDate)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Skip < 0 {
		filter.Skip = 0
	}
	return s.appointmentRepo.List(ctx, filter)
}

func (s *appointmentService) CheckAvailability(ctx context.Context, trainerID primitive.ObjectID, date string, slot domain.TimeRange) (bool, error) {
	return s.availability.IsAvailable(ctx, SlotQuery{TrainerID: trainerID, Date: date, Slot: slot})
}
