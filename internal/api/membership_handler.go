package api

import (
	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MembershipHandler struct {
	membershipService service.MembershipService
}

func NewMembershipHandler(membershipService service.MembershipService) *MembershipHandler {
	return &MembershipHandler{membershipService: membershipService}
}

// ListMemberships returns the caller's memberships. Admins may pass
// ?memberId= to look at someone else's.
func (h *MembershipHandler) ListMemberships(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	memberID := actor.ID
	if raw := c.Query("memberId"); raw != "" {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, codeInvalidID, "Invalid memberId format")
			return
		}
		memberID = id
	}

	memberships, err := h.membershipService.ListByMember(c.Request.Context(), actor, memberID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if memberships == nil {
		memberships = []domain.Membership{}
	}
	c.JSON(http.StatusOK, memberships)
}

func (h *MembershipHandler) GetMembership(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	m, err := h.membershipService.Get(c.Request.Context(), actor, id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// PauseMembership godoc
// @Summary Freeze an active membership
// @Description Stores the remaining days and clears the end date until resumed.
// @Tags Memberships
// @Produce json
// @Security BearerAuth
// @Param id path string true "Membership ID"
// @Success 200 {object} domain.Membership
// @Failure 409 {object} gin.H "Membership is not active"
// @Router /memberships/{id}/pause [post]
func (h *MembershipHandler) PauseMembership(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	m, err := h.membershipService.Pause(c.Request.Context(), actor, id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *MembershipHandler) ResumeMembership(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	m, err := h.membershipService.Resume(c.Request.Context(), actor, id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}
