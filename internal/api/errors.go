package api

import (
	"alcyxob/gym-app/internal/service"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Machine readable error codes returned alongside the message.
const (
	codeValidation         = "VALIDATION_ERROR"
	codeInvalidID          = "INVALID_ID"
	codeUnauthorized       = "UNAUTHORIZED"
	codeAccessDenied       = "ACCESS_DENIED"
	codeInternal           = "INTERNAL_ERROR"
	codeUserExists         = "USER_EXISTS"
	codeAuthFailed         = "AUTHENTICATION_FAILED"
	codeSlotUnavailable    = "SLOT_UNAVAILABLE"
	codeSlotBusy           = "SLOT_BUSY"
	codeNoSessionsLeft     = "NO_SESSIONS_LEFT"
	codeMembershipInactive = "MEMBERSHIP_NOT_ACTIVE"
	codeInvalidState       = "INVALID_STATE"
	codeTooEarly           = "TOO_EARLY"
	codeTooLate            = "TOO_LATE"
	codePaymentSettled     = "PAYMENT_ALREADY_SETTLED"
	codeNotFound           = "NOT_FOUND"
	codeInvalidSignature   = "INVALID_SIGNATURE"
	codeGatewayUnavailable = "GATEWAY_UNAVAILABLE"
	codeArchiveUnavailable = "ARCHIVE_UNAVAILABLE"
	codePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

// serviceErrors maps each service sentinel to its HTTP status and code.
var serviceErrors = []errorMapping{
	// Validation
	{service.ErrInvalidInput, http.StatusBadRequest, codeValidation},

	// Authorization
	{service.ErrAccessDenied, http.StatusForbidden, codeAccessDenied},

	// Identity
	{service.ErrUserAlreadyExists, http.StatusConflict, codeUserExists},
	{service.ErrAuthenticationFailed, http.StatusUnauthorized, codeAuthFailed},

	// Conflict
	{service.ErrSlotUnavailable, http.StatusConflict, codeSlotUnavailable},
	{service.ErrSlotBusy, http.StatusConflict, codeSlotBusy},
	{service.ErrNoSessionsLeft, http.StatusConflict, codeNoSessionsLeft},
	{service.ErrMembershipNotActive, http.StatusConflict, codeMembershipInactive},
	{service.ErrInvalidTransition, http.StatusConflict, codeInvalidState},
	{service.ErrTooEarly, http.StatusConflict, codeTooEarly},
	{service.ErrTooLate, http.StatusConflict, codeTooLate},
	{service.ErrPaymentAlreadySettled, http.StatusConflict, codePaymentSettled},

	// Not found
	{service.ErrAppointmentNotFound, http.StatusNotFound, "APPOINTMENT_NOT_FOUND"},
	{service.ErrMembershipNotFound, http.StatusNotFound, "MEMBERSHIP_NOT_FOUND"},
	{service.ErrPaymentNotFound, http.StatusNotFound, "PAYMENT_NOT_FOUND"},
	{service.ErrTrainerNotFound, http.StatusNotFound, "TRAINER_NOT_FOUND"},
	{service.ErrPackageNotFound, http.StatusNotFound, "PACKAGE_NOT_FOUND"},
	{service.ErrMemberNotFound, http.StatusNotFound, "MEMBER_NOT_FOUND"},
	{service.ErrEventNotFound, http.StatusNotFound, codeNotFound},

	// External
	{service.ErrInvalidSignature, http.StatusUnauthorized, codeInvalidSignature},
	{service.ErrGatewayUnavailable, http.StatusBadGateway, codeGatewayUnavailable},
	{service.ErrArchiveUnavailable, http.StatusServiceUnavailable, codeArchiveUnavailable},
}

// writeServiceError translates a service error into a JSON response.
// Unknown errors are logged and hidden behind a generic 500.
func writeServiceError(c *gin.Context, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			abortWithError(c, m.status, m.code, err.Error())
			return
		}
	}
	log.Printf("ERROR: %s %s: %v", c.Request.Method, c.FullPath(), err)
	abortWithError(c, http.StatusInternalServerError, codeInternal, "An unexpected error occurred")
}

func abortWithValidation(c *gin.Context, err error) {
	abortWithError(c, http.StatusBadRequest, codeValidation, fmt.Sprintf("Validation error: %v", err))
}
