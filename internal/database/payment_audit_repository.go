package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/happypaws/dogwalk-backend/internal/models"
)

// PaymentAuditRepository handles payment audit operations
type PaymentAuditRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPaymentAuditRepository creates a new payment audit repository
func NewPaymentAuditRepository(db *sqlx.DB, logger *logrus.Logger) *PaymentAuditRepository {
	return &PaymentAuditRepository{
		db:     db,
		logger: logger,
	}
}

// Log creates a new payment audit entry
func (r *PaymentAuditRepository) Log(ctx context.Context, audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO payment_audits (
			id, booking_id, provider_intent_id, provider_charge_id, provider_event_id,
			event_type, event_source,
			amount, currency, payment_status, details,
			error_message, is_duplicate,
			ip_address, user_agent, device,
			created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7,
			$8, $9, $10, $11,
			$12, $13,
			$14, $15, $16,
			$17
		)`

	_, err := r.db.ExecContext(ctx, query,
		audit.ID, audit.BookingID, audit.ProviderIntentID, audit.ProviderChargeID, audit.ProviderEventID,
		audit.EventType, audit.EventSource,
		audit.Amount, audit.Currency, audit.PaymentStatus, audit.Details,
		audit.ErrorMessage, audit.IsDuplicate,
		audit.IPAddress, audit.UserAgent, audit.Device,
		audit.CreatedAt,
	)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": audit.EventType,
			"booking_id": audit.BookingID,
		}).Error("Failed to log payment audit")
		return fmt.Errorf("failed to log payment audit: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"audit_id":   audit.ID,
		"event_type": audit.EventType,
		"booking_id": audit.BookingID,
	}).Debug("Payment audit logged")

	return nil
}

// HasEvent reports whether a provider event id was already recorded
func (r *PaymentAuditRepository) HasEvent(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM payment_audits
			WHERE provider_event_id = $1 AND is_duplicate = FALSE
		)`

	if err := r.db.GetContext(ctx, &exists, query, eventID); err != nil {
		return false, fmt.Errorf("failed to check duplicate event: %w", err)
	}
	return exists, nil
}

// ListByBooking retrieves all audit entries for a booking, oldest first
func (r *PaymentAuditRepository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]*models.PaymentAudit, error) {
	audits := []*models.PaymentAudit{}
	query := `
		SELECT id, booking_id, provider_intent_id, provider_charge_id, provider_event_id,
		       event_type, event_source, amount, currency, payment_status, details,
		       error_message, is_duplicate, ip_address, user_agent, device, created_at
		FROM payment_audits
		WHERE booking_id = $1
		ORDER BY created_at ASC`

	if err := r.db.SelectContext(ctx, &audits, query, bookingID); err != nil {
		return nil, fmt.Errorf("failed to get audits by booking: %w", err)
	}
	return audits, nil
}
