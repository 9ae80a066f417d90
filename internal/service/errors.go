package service

import "errors"

// Sentinel errors returned by the booking, ledger, membership and payment
// services. Handlers map them to HTTP responses; wrap with fmt.Errorf("%w: ...")
// to add detail.
var (
	// Validation
	ErrInvalidInput = errors.New("invalid input")

	// Authorization
	ErrAccessDenied = errors.New("access denied")

	// Conflict
	ErrSlotUnavailable       = errors.New("trainer is not available for the requested time slot")
	ErrSlotBusy              = errors.New("another booking for this trainer and day is in progress, try again")
	ErrNoSessionsLeft        = errors.New("no training sessions left on this membership")
	ErrMembershipNotActive   = errors.New("membership is not active")
	ErrInvalidTransition     = errors.New("current status does not allow this action")
	ErrTooEarly              = errors.New("appointment has not ended yet")
	ErrTooLate               = errors.New("completion window for this appointment has closed")
	ErrPaymentAlreadySettled = errors.New("payment is already settled")

	// Not found
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrMembershipNotFound  = errors.New("membership not found")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrTrainerNotFound     = errors.New("trainer not found")
	ErrPackageNotFound     = errors.New("package not found")
	ErrMemberNotFound      = errors.New("member not found")
	ErrEventNotFound       = errors.New("payment event not found")

	// External
	ErrInvalidSignature   = errors.New("invalid payment notification signature")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrArchiveUnavailable = errors.New("notification archive is not configured")
)
