package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/happypaws/dogwalk-backend/internal/models"
)

// BookingStore is the persistence boundary for bookings.
// Lookups return nil, nil when nothing matches.
type BookingStore interface {
	Create(ctx context.Context, booking *models.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	GetByIntentID(ctx context.Context, intentID string) (*models.Booking, error)
	GetByChargeID(ctx context.Context, chargeID string) (*models.Booking, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Booking, error)
	ListAllWithOwners(ctx context.Context) ([]*models.BookingWithOwner, error)
	// Update writes the descriptive fields, and status and price only when non-nil.
	// Returns nil, nil when the booking no longer exists.
	Update(ctx context.Context, booking *models.Booking, status *models.BookingStatus, price *float64) (*models.Booking, error)
	Delete(ctx context.Context, id uuid.UUID) error

	AttachIntent(ctx context.Context, id uuid.UUID, intentID string, previousIntentID *string) (bool, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkPaymentSucceeded(ctx context.Context, intentID string, chargeID, paymentMethod *string, paidAt time.Time) (*models.Booking, error)
	MarkPaymentFailed(ctx context.Context, intentID string) (*models.Booking, error)
	MarkRefunded(ctx context.Context, id uuid.UUID, amount float64, refundedAt time.Time) (*models.Booking, error)
	ListStaleProcessing(ctx context.Context, cutoff time.Time, limit int) ([]*models.Booking, error)
	MarkPaymentChecked(ctx context.Context, id uuid.UUID, at time.Time) error
}

// PaymentAuditLogger records payment activity
type PaymentAuditLogger interface {
	Log(ctx context.Context, audit *models.PaymentAudit) error
	HasEvent(ctx context.Context, eventID string) (bool, error)
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]*models.PaymentAudit, error)
}
