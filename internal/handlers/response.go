package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/happypaws/dogwalk-backend/internal/middleware"
	"github.com/happypaws/dogwalk-backend/internal/models"
)

// Response is the envelope every API response uses
type Response struct {
	Success bool                `json:"success"`
	Data    interface{}         `json:"data,omitempty"`
	Message string              `json:"message,omitempty"`
	Error   string              `json:"error,omitempty"`
	Errors  []models.FieldError `json:"errors,omitempty"`
	Count   *int                `json:"count,omitempty"`
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

func respondList(c *gin.Context, data interface{}, count int) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data, Count: &count})
}

func respondMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, Response{Success: true, Message: message})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, Response{Success: false, Error: message})
}

// respondServiceError maps a service error onto a status code and envelope.
// Provider and unexpected errors are logged and replaced with a generic message.
func respondServiceError(c *gin.Context, logger *logrus.Logger, err error, operation string) {
	if verr, ok := models.IsValidationError(err); ok {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "Validation failed",
			Errors:  verr.Fields,
		})
		return
	}

	switch {
	case errors.Is(err, models.ErrBookingNotFound):
		respondError(c, http.StatusNotFound, "Booking not found")
	case errors.Is(err, models.ErrUnauthorized):
		respondError(c, http.StatusUnauthorized, "Not authorized, no valid token")
	case errors.Is(err, models.ErrForbidden):
		respondError(c, http.StatusForbidden, "Not authorized to access this booking")
	case errors.Is(err, models.ErrPaymentInProgress),
		errors.Is(err, models.ErrPaidBookingDelete):
		respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrBookingLocked),
		errors.Is(err, models.ErrAlreadyPaid),
		errors.Is(err, models.ErrBookingCancelled),
		errors.Is(err, models.ErrNotPaid),
		errors.Is(err, models.ErrAlreadyRefunded),
		errors.Is(err, models.ErrNoCharge):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrWebhookVerification):
		respondError(c, http.StatusBadRequest, "Webhook signature verification failed")
	case errors.Is(err, models.ErrProvider):
		logger.WithError(err).WithField("operation", operation).Error("Payment provider error")
		respondError(c, http.StatusInternalServerError, "Failed to process payment")
	default:
		logger.WithError(err).WithField("operation", operation).Error("Request failed")
		respondError(c, http.StatusInternalServerError, "Server error")
	}
}

// requesterFrom reads the authenticated caller set by the auth middleware
func requesterFrom(c *gin.Context) (models.Requester, bool) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, "Not authorized, no valid token")
		return models.Requester{}, false
	}
	return userCtx.Requester(), true
}

// parseIDParam parses a uuid path parameter, responding 400 when malformed
func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid id format")
		return uuid.Nil, false
	}
	return id, true
}
