package api

import (
	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/repository"
	"alcyxob/gym-app/internal/service"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AppointmentHandler struct {
	appointmentService service.AppointmentService
}

func NewAppointmentHandler(appointmentService service.AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{appointmentService: appointmentService}
}

// --- DTOs ---

type CreateAppointmentRequest struct {
	TrainerID    string `json:"trainerId" binding:"required"`
	MembershipID string `json:"membershipId" binding:"required"`
	Date         string `json:"date" binding:"required,ymd"`
	StartTime    string `json:"startTime" binding:"required,hhmm"`
	EndTime      string `json:"endTime" binding:"required,hhmm"`
	Location     string `json:"location" binding:"max=200"`
	Notes        string `json:"notes" binding:"max=1000"`
}

type CancelAppointmentRequest struct {
	IsRefund bool `json:"isRefund"` // Only read for admins; members and trainers always refund
}

type RescheduleAppointmentRequest struct {
	Date      string `json:"date" binding:"required,ymd"`
	StartTime string `json:"startTime" binding:"required,hhmm"`
	EndTime   string `json:"endTime" binding:"required,hhmm"`
}

type ListAppointmentsQuery struct {
	Status    string `form:"status"` // Comma separated
	TrainerID string `form:"trainerId"`
	MemberID  string `form:"memberId"`
	DateFrom  string `form:"dateFrom" binding:"omitempty,ymd"`
	DateTo    string `form:"dateTo" binding:"omitempty,ymd"`
	Search    string `form:"search" binding:"max=100"`
	Limit     int64  `form:"limit" binding:"min=0,max=200"`
	Skip      int64  `form:"skip" binding:"min=0"`
}

func parseStatuses(raw string) ([]domain.AppointmentStatus, bool) {
	if raw == "" {
		return nil, true
	}
	var statuses []domain.AppointmentStatus
	for _, part := range strings.Split(raw, ",") {
		s := domain.AppointmentStatus(strings.TrimSpace(part))
		switch s {
		case domain.AppointmentPending, domain.AppointmentConfirmed, domain.AppointmentCancelled, domain.AppointmentCompleted:
			statuses = append(statuses, s)
		default:
			return nil, false
		}
	}
	return statuses, true
}

func optionalObjectID(raw string) (*primitive.ObjectID, bool) {
	if raw == "" {
		return nil, true
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return nil, false
	}
	return &id, true
}

// --- Handler Methods ---

// CreateAppointment godoc
// @Summary Book a training session
// @Description Reserves one session from the membership and holds the trainer's slot.
// @Tags Appointments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param appointment body CreateAppointmentRequest true "Booking"
// @Success 201 {object} domain.Appointment
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 403 {object} gin.H "Membership belongs to another member"
// @Failure 409 {object} gin.H "Slot unavailable, no sessions left, or membership not active"
// @Router /appointments [post]
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithValidation(c, err)
		return
	}
	trainerID, err := primitive.ObjectIDFromHex(req.TrainerID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, codeInvalidID, "Invalid trainerId format")
		return
	}
	membershipID, err := primitive.ObjectIDFromHex(req.MembershipID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, codeInvalidID, "Invalid membershipId format")
		return
	}

	appointment, err := h.appointmentService.Create(c.Request.Context(), service.CreateAppointmentInput{
		MemberID:     actor.ID,
		TrainerID:    trainerID,
		MembershipID: membershipID,
		Date:         req.Date,
		Slot:         domain.TimeRange{Start: req.StartTime, End: req.EndTime},
		Location:     req.Location,
		Notes:        req.Notes,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, appointment)
}

func (h *AppointmentHandler) ListAppointments(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var q ListAppointmentsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abortWithValidation(c, err)
		return
	}
	statuses, ok := parseStatuses(q.Status)
	if !ok {
		abortWithError(c, http.StatusBadRequest, codeValidation, "status must be a comma separated list of pending, confirmed, cancelled, completed")
		return
	}
	trainerID, ok := optionalObjectID(q.TrainerID)
	if !ok {
		abortWithError(c, http.StatusBadRequest, codeInvalidID, "Invalid trainerId format")
		return
	}
	memberID, ok := optionalObjectID(q.MemberID)
	if !ok {
		abortWithError(c, http.StatusBadRequest, codeInvalidID, "Invalid memberId format")
		return
	}

	appointments, err := h.appointmentService.List(c.Request.Context(), actor, repository.AppointmentListFilter{
		MemberID:   memberID,
		TrainerID:  trainerID,
		Statuses:   statuses,
		DateFrom:   q.DateFrom,
		DateTo:     q.DateTo,
		SearchTerm: q.Search,
		Limit:      q.Limit,
		Skip:       q.Skip,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if appointments == nil {
		appointments = []domain.Appointment{}
	}
	c.JSON(http.StatusOK, appointments)
}

func (h *AppointmentHandler) GetAppointment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	appointment, err := h.appointmentService.Get(c.Request.Context(), id, actor)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, appointment)
}

// CancelAppointment godoc
// @Summary Cancel a pending or confirmed appointment
// @Tags Appointments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Appointment ID"
// @Param body body CancelAppointmentRequest false "Refund flag (admins only)"
// @Success 200 {object} domain.Appointment
// @Failure 409 {object} gin.H "Appointment is not pending or confirmed"
// @Router /appointments/{id}/cancel [post]
func (h *AppointmentHandler) CancelAppointment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	var req CancelAppointmentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithValidation(c, err)
			return
		}
	}

	appointment, err := h.appointmentService.Cancel(c.Request.Context(), id, actor, req.IsRefund)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, appointment)
}

func (h *AppointmentHandler) ConfirmAppointment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	appointment, err := h.appointmentService.Confirm(c.Request.Context(), id, actor)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, appointment)
}

// CompleteAppointment godoc
// @Summary Mark an attended appointment as completed
// @Description Allowed from the appointment's end until 23:59:59 of the following day.
// @Tags Appointments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Appointment ID"
// @Success 200 {object} domain.Appointment
// @Failure 409 {object} gin.H "TOO_EARLY, TOO_LATE or INVALID_STATE"
// @Router /appointments/{id}/complete [post]
func (h *AppointmentHandler) CompleteAppointment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	appointment, err := h.appointmentService.Complete(c.Request.Context(), id, actor)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, appointment)
}

func (h *AppointmentHandler) RescheduleAppointment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	var req RescheduleAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithValidation(c, err)
		return
	}

	appointment, err := h.appointmentService.Reschedule(c.Request.Context(), id, actor, req.Date, domain.TimeRange{Start: req.StartTime, End: req.EndTime})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, appointment)
}
