package api

import (
	"alcyxob/gym-app/internal/gateway"
	"alcyxob/gym-app/internal/service"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PaymentHandler struct {
	paymentService service.PaymentService
}

func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// --- DTOs ---

type CreatePaymentRequest struct {
	PackageID string `json:"packageId" binding:"required"`
}

type ArchiveURLResponse struct {
	URL string `json:"url"`
}

// --- Handler Methods ---

// CreatePayment godoc
// @Summary Start a package purchase
// @Description Registers the order with the payment gateway and returns the URL the member pays at.
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreatePaymentRequest true "Package to buy"
// @Success 201 {object} service.CreatePaymentResult
// @Failure 404 {object} gin.H "Package not found or inactive"
// @Failure 502 {object} gin.H "Gateway rejected the request"
// @Router /payments [post]
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithValidation(c, err)
		return
	}
	packageID, err := primitive.ObjectIDFromHex(req.PackageID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, codeInvalidID, "Invalid packageId format")
		return
	}

	result, err := h.paymentService.CreatePaymentRequest(c.Request.Context(), actor.ID, packageID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// Gateway notifications are a few hundred bytes of JSON.
const maxNotificationBytes = 64 << 10

// Notify godoc
// @Summary Gateway server-to-server payment notification (IPN)
// @Description Signed JSON body. Replies 204 once the notification is recorded, including duplicates.
// @Tags Payments
// @Accept json
// @Success 204
// @Failure 401 {object} gin.H "Signature does not verify"
// @Failure 413 {object} gin.H "Body over 64 KiB"
// @Router /payments/notify [post]
func (h *PaymentHandler) Notify(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxNotificationBytes)
	raw, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Printf("WARN: Payment notification over %d bytes refused from %s", maxNotificationBytes, c.ClientIP())
			abortWithError(c, http.StatusRequestEntityTooLarge, codePayloadTooLarge, "Notification body too large")
			return
		}
		abortWithError(c, http.StatusBadRequest, codeValidation, "Could not read request body")
		return
	}
	var n gateway.Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		log.Printf("WARN: Undecodable payment notification (%d bytes): %v", len(raw), err)
		abortWithValidation(c, err)
		return
	}

	if _, err := h.paymentService.Reconcile(c.Request.Context(), service.SourceIPN, &n, raw); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Return handles the browser redirect after checkout. It carries the same
// signed fields as the IPN in the query string and goes through the same
// reconciliation, so whichever arrives first activates the membership.
func (h *PaymentHandler) Return(c *gin.Context) {
	var n gateway.Notification
	if err := c.ShouldBindQuery(&n); err != nil {
		abortWithValidation(c, err)
		return
	}
	raw, err := json.Marshal(n)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	result, err := h.paymentService.Reconcile(c.Request.Context(), service.SourceRedirect, &n, raw)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// EventArchiveURL godoc
// @Summary Presigned link to the raw payload of a payment notification
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param eventId path string true "Payment event ID"
// @Success 200 {object} ArchiveURLResponse
// @Failure 503 {object} gin.H "Archive not configured"
// @Router /admin/payment-events/{eventId}/raw [get]
func (h *PaymentHandler) EventArchiveURL(c *gin.Context) {
	eventID, ok := objectIDParam(c, "eventId")
	if !ok {
		return
	}
	url, err := h.paymentService.GetEventArchiveURL(c.Request.Context(), eventID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ArchiveURLResponse{URL: url})
}
