package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/happypaws/dogwalk-backend/internal/models"
	"github.com/happypaws/dogwalk-backend/pkg/events"
	"github.com/happypaws/dogwalk-backend/pkg/validator"
)

// DefaultDurationMinutes is used when a booking is created without a duration
const DefaultDurationMinutes = 60

// NewRequestValidator builds the validator for booking and payment payloads
func NewRequestValidator(opts ...validator.Option) *validator.Validator {
	v := validator.New(opts...)
	msg := "must be one of: " + strings.Join(models.Services, ", ")
	if err := v.RegisterRule("service", models.IsKnownService, msg); err != nil {
		panic(err)
	}
	return v
}

// ValidateRequest runs v over req and converts failures into a ValidationError
func ValidateRequest(v *validator.Validator, req interface{}) error {
	fields := v.Struct(req)
	if len(fields) == 0 {
		return nil
	}
	verr := &models.ValidationError{}
	for _, f := range fields {
		verr.Add(f.Field, f.Message)
	}
	return verr
}

// BookingService manages the booking lifecycle
type BookingService struct {
	store     BookingStore
	publisher events.Publisher
	validate  *validator.Validator
	logger    *logrus.Logger
	now       func() time.Time
}

// NewBookingService creates a new BookingService
func NewBookingService(store BookingStore, publisher events.Publisher, logger *logrus.Logger) *BookingService {
	s := &BookingService{
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
	s.validate = NewRequestValidator(validator.WithClock(func() time.Time { return s.now() }))
	return s
}

// Create validates the request, prices the service and stores a pending booking
func (s *BookingService) Create(ctx context.Context, userID uuid.UUID, req *models.CreateBookingRequest) (*models.Booking, error) {
	if err := ValidateRequest(s.validate, req); err != nil {
		return nil, err
	}

	date, err := validator.ParseDate(req.Date)
	if err != nil {
		return nil, models.NewValidationError("date", "must be a valid date in YYYY-MM-DD format")
	}

	duration := DefaultDurationMinutes
	if req.Duration != nil {
		duration = *req.Duration
	}

	booking := &models.Booking{
		ID:                  uuid.New(),
		UserID:              userID,
		DogName:             strings.TrimSpace(req.DogName),
		DogBreed:            req.DogBreed,
		DogAge:              req.DogAge,
		Service:             req.Service,
		Date:                date,
		Time:                req.Time,
		Duration:            duration,
		Notes:               req.Notes,
		SpecialInstructions: req.SpecialInstructions,
		Status:              models.BookingStatusPending,
		Price:               models.PriceForService(req.Service),
		PaymentStatus:       models.PaymentStatusPending,
	}

	if err := s.store.Create(ctx, booking); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"user_id":    userID,
		"service":    booking.Service,
		"price":      booking.Price,
	}).Info("Booking created")

	publishBookingEvent(ctx, s.publisher, s.logger, events.BookingCreated, booking, s.now())
	return booking, nil
}

// Get returns a booking the requester owns, or any booking for admins
func (s *BookingService) Get(ctx context.Context, requester models.Requester, id uuid.UUID) (*models.Booking, error) {
	booking, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, models.ErrBookingNotFound
	}
	if !requester.CanAccess(booking) {
		return nil, models.ErrForbidden
	}
	return booking, nil
}

// ListForUser returns the user's own bookings, newest first
func (s *BookingService) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Booking, error) {
	return s.store.ListByUser(ctx, userID)
}

// ListAll returns every booking with its owner. Admin only.
func (s *BookingService) ListAll(ctx context.Context, requester models.Requester) ([]*models.BookingWithOwner, error) {
	if !requester.IsAdmin() {
		return nil, models.ErrForbidden
	}
	return s.store.ListAllWithOwners(ctx)
}

// Update applies a partial update. Non-admins cannot touch status or price and
// may only edit a booking that is still pending.
func (s *BookingService) Update(ctx context.Context, requester models.Requester, id uuid.UUID, req *models.UpdateBookingRequest) (*models.Booking, error) {
	booking, err := s.Get(ctx, requester, id)
	if err != nil {
		return nil, err
	}

	if !requester.IsAdmin() {
		req.StripPrivileged()
		if booking.Status != models.BookingStatusPending {
			return nil, models.ErrBookingLocked
		}
	}

	if err := ValidateRequest(s.validate, req); err != nil {
		return nil, err
	}

	if err := checkPrivilegedUpdate(booking, req); err != nil {
		return nil, err
	}

	previousStatus := booking.Status
	if err := applyUpdate(booking, req); err != nil {
		return nil, err
	}

	// Status and price are only sent when asked for, so a payment update that
	// lands after the read above is not overwritten.
	booking, err = s.store.Update(ctx, booking, req.Status, req.Price)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, models.ErrBookingNotFound
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"user_id":    requester.UserID,
		"admin":      requester.IsAdmin(),
		"status":     booking.Status,
	}).Info("Booking updated")

	if booking.Status != previousStatus {
		s.logger.WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"from":       previousStatus,
			"to":         booking.Status,
		}).Info("Booking status changed")
	}

	publishBookingEvent(ctx, s.publisher, s.logger, events.BookingUpdated, booking, s.now())
	return booking, nil
}

func applyUpdate(b *models.Booking, req *models.UpdateBookingRequest) error {
	if req.DogName != nil {
		b.DogName = strings.TrimSpace(*req.DogName)
	}
	if req.DogBreed != nil {
		b.DogBreed = req.DogBreed
	}
	if req.DogAge != nil {
		b.DogAge = req.DogAge
	}
	if req.Service != nil {
		b.Service = *req.Service
	}
	if req.Date != nil {
		date, err := validator.ParseDate(*req.Date)
		if err != nil {
			return models.NewValidationError("date", "must be a valid date in YYYY-MM-DD format")
		}
		b.Date = date
	}
	if req.Time != nil {
		b.Time = *req.Time
	}
	if req.Duration != nil {
		b.Duration = *req.Duration
	}
	if req.Notes != nil {
		b.Notes = req.Notes
	}
	if req.SpecialInstructions != nil {
		b.SpecialInstructions = req.SpecialInstructions
	}
	return nil
}

// checkPrivilegedUpdate rejects admin edits that would break the payment state:
// a refunded booking stays cancelled, and price is fixed once payment has started.
func checkPrivilegedUpdate(b *models.Booking, req *models.UpdateBookingRequest) error {
	verr := &models.ValidationError{}

	if req.Status != nil && *req.Status != models.BookingStatusCancelled && b.PaymentStatus == models.PaymentStatusRefunded {
		verr.Add("status", "must remain cancelled once the booking is refunded")
	}

	if req.Price != nil && *req.Price != b.Price {
		switch {
		case b.RefundAmount != nil && *req.Price < *b.RefundAmount:
			verr.Add("price", fmt.Sprintf("cannot be lower than the refunded amount of %.2f", *b.RefundAmount))
		case b.PaymentStatus != models.PaymentStatusPending && b.PaymentStatus != models.PaymentStatusFailed:
			verr.Add("price", "cannot change once payment has started")
		}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// Delete removes a booking. Bookings with a payment in flight or completed must be refunded first.
func (s *BookingService) Delete(ctx context.Context, requester models.Requester, id uuid.UUID) error {
	booking, err := s.Get(ctx, requester, id)
	if err != nil {
		return err
	}

	switch booking.PaymentStatus {
	case models.PaymentStatusProcessing, models.PaymentStatusSucceeded:
		return models.ErrPaidBookingDelete
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete booking %s: %w", id, err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": id,
		"user_id":    requester.UserID,
	}).Info("Booking deleted")

	publishBookingEvent(ctx, s.publisher, s.logger, events.BookingDeleted, booking, s.now())
	return nil
}

// publishBookingEvent emits a lifecycle event. Delivery failures are logged only.
func publishBookingEvent(ctx context.Context, publisher events.Publisher, logger *logrus.Logger, eventType string, b *models.Booking, at time.Time) {
	if publisher == nil {
		return
	}

	event := events.Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		BookingID:     b.ID.String(),
		UserID:        b.UserID.String(),
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		OccurredAt:    at.UTC(),
	}
	switch eventType {
	case events.PaymentRefunded:
		event.Amount = b.RefundAmount
	case events.PaymentSucceeded, events.BookingCreated:
		price := b.Price
		event.Amount = &price
	}

	if err := publisher.Publish(ctx, event); err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"booking_id": b.ID,
			"event_type": eventType,
		}).Warn("Failed to publish booking event")
	}
}
