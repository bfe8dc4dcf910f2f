package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/happypaws/dogwalk-backend/internal/models"
)

// BookingManager is the booking lifecycle the handler drives
type BookingManager interface {
	Create(ctx context.Context, userID uuid.UUID, req *models.CreateBookingRequest) (*models.Booking, error)
	Get(ctx context.Context, requester models.Requester, id uuid.UUID) (*models.Booking, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Booking, error)
	ListAll(ctx context.Context, requester models.Requester) ([]*models.BookingWithOwner, error)
	Update(ctx context.Context, requester models.Requester, id uuid.UUID, req *models.UpdateBookingRequest) (*models.Booking, error)
	Delete(ctx context.Context, requester models.Requester, id uuid.UUID) error
}

// BookingHandler handles booking endpoints
type BookingHandler struct {
	bookings BookingManager
	logger   *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(bookings BookingManager, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		bookings: bookings,
		logger:   logger,
	}
}

// ============================================================================
// CREATE - POST /api/v1/bookings
// ============================================================================

// CreateBooking creates a booking for the authenticated user.
// Price and status in the body are ignored.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	requester, ok := requesterFrom(c)
	if !ok {
		return
	}

	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	booking, err := h.bookings.Create(c.Request.Context(), requester.UserID, &req)
	if err != nil {
		respondServiceError(c, h.logger, err, "create_booking")
		return
	}

	respondOK(c, http.StatusCreated, booking)
}

// ============================================================================
// LIST - GET /api/v1/bookings, GET /api/v1/bookings/admin/all
// ============================================================================

// GetMyBookings lists the authenticated user's bookings
func (h *BookingHandler) GetMyBookings(c *gin.Context) {
	requester, ok := requesterFrom(c)
	if !ok {
		return
	}

	bookings, err := h.bookings.ListForUser(c.Request.Context(), requester.UserID)
	if err != nil {
		respondServiceError(c, h.logger, err, "list_bookings")
		return
	}

	respondList(c, bookings, len(bookings))
}

// GetAllBookings lists every booking with owner details (admin)
func (h *BookingHandler) GetAllBookings(c *gin.Context) {
	requester, ok := requesterFrom(c)
	if !ok {
		return
	}

	bookings, err := h.bookings.ListAll(c.Request.Context(), requester)
	if err != nil {
		respondServiceError(c, h.logger, err, "list_all_bookings")
		return
	}

	respondList(c, bookings, len(bookings))
}

// ============================================================================
// SINGLE BOOKING - GET/PUT/DELETE /api/v1/bookings/:id
// ============================================================================

// GetBooking returns one booking to its owner or an admin
func (h *BookingHandler) GetBooking(c *gin.Context) {
	requester, ok := requesterFrom(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	booking, err := h.bookings.Get(c.Request.Context(), requester, id)
	if err != nil {
		respondServiceError(c, h.logger, err, "get_booking")
		return
	}

	respondOK(c, http.StatusOK, booking)
}

// UpdateBooking applies a partial update
func (h *BookingHandler) UpdateBooking(c *gin.Context) {
	requester, ok := requesterFrom(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.UpdateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	booking, err := h.bookings.Update(c.Request.Context(), requester, id, &req)
	if err != nil {
		respondServiceError(c, h.logger, err, "update_booking")
		return
	}

	respondOK(c, http.StatusOK, booking)
}

// DeleteBooking removes a booking
func (h *BookingHandler) DeleteBooking(c *gin.Context) {
	requester, ok := requesterFrom(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.bookings.Delete(c.Request.Context(), requester, id); err != nil {
		respondServiceError(c, h.logger, err, "delete_booking")
		return
	}

	respondMessage(c, "Booking deleted successfully")
}
