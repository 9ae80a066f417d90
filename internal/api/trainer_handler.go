// internal/api/trainer_handler.go
package api

import (
	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

type TrainerHandler struct {
	trainerService     service.TrainerService
	appointmentService service.AppointmentService // For availability checks
}

func NewTrainerHandler(trainerService service.TrainerService, appointmentService service.AppointmentService) *TrainerHandler {
	return &TrainerHandler{
		trainerService:     trainerService,
		appointmentService: appointmentService,
	}
}

// --- DTOs ---

type WorkingHoursRequest struct {
	Start string `json:"start" binding:"required,hhmm"`
	End   string `json:"end" binding:"required,hhmm"`
}

type ScheduleDayRequest struct {
	DayOfWeek    int                   `json:"dayOfWeek" binding:"min=0,max=6"`
	Available    bool                  `json:"available"`
	WorkingHours []WorkingHoursRequest `json:"workingHours" binding:"dive"`
}

type UpdateScheduleRequest struct {
	Schedule []ScheduleDayRequest `json:"schedule" binding:"required,dive"`
}

type AvailabilityQuery struct {
	Date  string `form:"date" binding:"required,ymd"`
	Start string `form:"start" binding:"required,hhmm"`
	End   string `form:"end" binding:"required,hhmm"`
}

type AvailabilityResponse struct {
	TrainerID string `json:"trainerId"`
	Date      string `json:"date"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Available bool   `json:"available"`
}

// --- Handler Methods ---

// ListTrainers godoc
// @Summary List trainers
// @Tags Trainers
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.Trainer
// @Router /trainers [get]
func (h *TrainerHandler) ListTrainers(c *gin.Context) {
	trainers, err := h.trainerService.ListTrainers(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if trainers == nil {
		trainers = []domain.Trainer{} // Return empty JSON array, not null
	}
	c.JSON(http.StatusOK, trainers)
}

func (h *TrainerHandler) GetTrainer(c *gin.Context) {
	trainerID, ok := objectIDParam(c, "trainerId")
	if !ok {
		return
	}
	trainer, err := h.trainerService.GetTrainer(c.Request.Context(), trainerID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, trainer)
}

// UpdateSchedule godoc
// @Summary Replace a trainer's weekly schedule
// @Description Days not listed become unavailable. Working hours within a day must not overlap.
// @Tags Trainers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param trainerId path string true "Trainer ID"
// @Param schedule body UpdateScheduleRequest true "Weekly schedule"
// @Success 200 {object} domain.Trainer
// @Failure 400 {object} gin.H "Invalid schedule"
// @Failure 403 {object} gin.H "Not this trainer or an admin"
// @Failure 404 {object} gin.H "Trainer not found"
// @Router /trainers/{trainerId}/schedule [put]
func (h *TrainerHandler) UpdateSchedule(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	trainerID, ok := objectIDParam(c, "trainerId")
	if !ok {
		return
	}
	var req UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithValidation(c, err)
		return
	}

	days := make([]domain.ScheduleDay, len(req.Schedule))
	for i, d := range req.Schedule {
		hours := make([]domain.WorkingHours, len(d.WorkingHours))
		for j, wh := range d.WorkingHours {
			hours[j] = domain.WorkingHours{Start: wh.Start, End: wh.End}
		}
		days[i] = domain.ScheduleDay{DayOfWeek: d.DayOfWeek, Available: d.Available, WorkingHours: hours}
	}

	trainer, err := h.trainerService.UpdateSchedule(c.Request.Context(), actor, trainerID, days)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, trainer)
}

// CheckAvailability godoc
// @Summary Check whether a trainer can take a booking
// @Tags Trainers
// @Produce json
// @Security BearerAuth
// @Param trainerId path string true "Trainer ID"
// @Param date query string true "YYYY-MM-DD"
// @Param start query string true "HH:MM"
// @Param end query string true "HH:MM"
// @Success 200 {object} AvailabilityResponse
// @Router /trainers/{trainerId}/availability [get]
func (h *TrainerHandler) CheckAvailability(c *gin.Context) {
	trainerID, ok := objectIDParam(c, "trainerId")
	if !ok {
		return
	}
	var q AvailabilityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abortWithValidation(c, err)
		return
	}

	available, err := h.appointmentService.CheckAvailability(c.Request.Context(), trainerID, q.Date, domain.TimeRange{Start: q.Start, End: q.End})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, AvailabilityResponse{
		TrainerID: trainerID.Hex(),
		Date:      q.Date,
		Start:     q.Start,
		End:       q.End,
		Available: available,
	})
}
