package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/happypaws/dogwalk-backend/internal/models"
)

const bookingColumns = `
	id, user_id, dog_name, dog_breed, dog_age, service, booking_date, start_time,
	duration, notes, special_instructions, status, price,
	payment_status, provider_intent_id, provider_charge_id, payment_method,
	paid_at, refunded_at, refund_amount, created_at, updated_at`

// BookingRepository handles database operations for the bookings table
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create inserts a new booking
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	now := time.Now()
	booking.CreatedAt = now
	booking.UpdatedAt = now

	query := `
		INSERT INTO bookings (
			id, user_id, dog_name, dog_breed, dog_age, service, booking_date, start_time,
			duration, notes, special_instructions, status, price, payment_status,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)`

	_, err := r.db.ExecContext(ctx, query,
		booking.ID, booking.UserID, booking.DogName, booking.DogBreed, booking.DogAge,
		booking.Service, booking.Date, booking.Time, booking.Duration, booking.Notes,
		booking.SpecialInstructions, booking.Status, booking.Price, booking.PaymentStatus,
		booking.CreatedAt, booking.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	return nil
}

// GetByID retrieves a booking by ID. Returns nil, nil when not found.
func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	return r.getOne(ctx, "get booking", query, id)
}

// GetByIntentID retrieves the booking bound to a provider intent
func (r *BookingRepository) GetByIntentID(ctx context.Context, intentID string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE provider_intent_id = $1`
	return r.getOne(ctx, "get booking by intent", query, intentID)
}

// GetByChargeID retrieves the booking bound to a provider charge
func (r *BookingRepository) GetByChargeID(ctx context.Context, chargeID string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE provider_charge_id = $1 LIMIT 1`
	return r.getOne(ctx, "get booking by charge", query, chargeID)
}

// ListByUser returns a user's bookings, newest first
func (r *BookingRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Booking, error) {
	bookings := []*models.Booking{}
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC`

	if err := r.db.SelectContext(ctx, &bookings, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

type bookingOwnerRow struct {
	models.Booking
	OwnerName  *string `db:"owner_name"`
	OwnerEmail *string `db:"owner_email"`
	OwnerPhone *string `db:"owner_phone"`
}

// ListAllWithOwners returns every booking joined with its owner's identity, newest first
func (r *BookingRepository) ListAllWithOwners(ctx context.Context) ([]*models.BookingWithOwner, error) {
	var rows []bookingOwnerRow
	query := `
		SELECT b.id, b.user_id, b.dog_name, b.dog_breed, b.dog_age, b.service, b.booking_date,
		       b.start_time, b.duration, b.notes, b.special_instructions, b.status, b.price,
		       b.payment_status, b.provider_intent_id, b.provider_charge_id, b.payment_method,
		       b.paid_at, b.refunded_at, b.refund_amount, b.created_at, b.updated_at,
		       u.name AS owner_name, u.email AS owner_email, u.phone AS owner_phone
		FROM bookings b
		LEFT JOIN users u ON u.id = b.user_id
		ORDER BY b.created_at DESC`

	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list all bookings: %w", err)
	}

	result := make([]*models.BookingWithOwner, 0, len(rows))
	for _, row := range rows {
		result = append(result, &models.BookingWithOwner{
			Booking: row.Booking,
			Owner: models.BookingOwner{
				ID:    row.UserID,
				Name:  row.OwnerName,
				Email: row.OwnerEmail,
				Phone: row.OwnerPhone,
			},
		})
	}
	return result, nil
}

// Update writes the descriptive fields of a booking. status and price are only written
// when set. A refunded booking stays cancelled, and price is frozen once payment has
// started, even if a payment update landed after the booking was read.
// Returns the stored row, or nil, nil when the booking is gone.
func (r *BookingRepository) Update(ctx context.Context, booking *models.Booking, status *models.BookingStatus, price *float64) (*models.Booking, error) {
	query := `
		UPDATE bookings
		SET dog_name = $2, dog_breed = $3, dog_age = $4, service = $5, booking_date = $6,
		    start_time = $7, duration = $8, notes = $9, special_instructions = $10,
		    status = CASE WHEN payment_status = 'refunded' THEN 'cancelled'
		                  ELSE COALESCE($11::text, status) END,
		    price = CASE WHEN payment_status IN ('pending', 'failed')
		                 THEN COALESCE($12::numeric, price) ELSE price END,
		    updated_at = $13
		WHERE id = $1
		RETURNING ` + bookingColumns

	return r.getOne(ctx, "update booking", query,
		booking.ID, booking.DogName, booking.DogBreed, booking.DogAge, booking.Service,
		booking.Date, booking.Time, booking.Duration, booking.Notes, booking.SpecialInstructions,
		status, price, time.Now(),
	)
}

// Delete removes a booking unless a payment is in flight or completed
func (r *BookingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `
		DELETE FROM bookings
		WHERE id = $1 AND payment_status NOT IN ('processing', 'succeeded')`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return models.ErrPaidBookingDelete
	}
	return nil
}

// AttachIntent binds a new provider intent to the booking and moves payment to processing.
// The write only lands if the stored intent is still previousIntentID and the booking is
// neither paid, refunded nor cancelled. Returns false when another writer got there first.
func (r *BookingRepository) AttachIntent(ctx context.Context, id uuid.UUID, intentID string, previousIntentID *string) (bool, error) {
	query := `
		UPDATE bookings
		SET provider_intent_id = $2, payment_status = 'processing', updated_at = NOW()
		WHERE id = $1
		  AND provider_intent_id IS NOT DISTINCT FROM $3
		  AND payment_status NOT IN ('succeeded', 'refunded')
		  AND status <> 'cancelled'`

	result, err := r.db.ExecContext(ctx, query, id, intentID, previousIntentID)
	if err != nil {
		return false, fmt.Errorf("failed to attach payment intent: %w", err)
	}

	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// MarkProcessing moves a pending or failed payment back to processing
func (r *BookingRepository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE bookings
		SET payment_status = 'processing', updated_at = NOW()
		WHERE id = $1 AND payment_status IN ('pending', 'failed')`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark payment processing: %w", err)
	}
	return nil
}

// MarkPaymentSucceeded records a successful payment for the intent.
// The first paid_at wins, a pending booking is confirmed, refunded bookings are left alone.
// Returns nil, nil when no booking qualifies.
func (r *BookingRepository) MarkPaymentSucceeded(ctx context.Context, intentID string, chargeID, paymentMethod *string, paidAt time.Time) (*models.Booking, error) {
	query := `
		UPDATE bookings
		SET payment_status = 'succeeded',
		    provider_charge_id = COALESCE($2, provider_charge_id),
		    payment_method = COALESCE($3, payment_method),
		    paid_at = COALESCE(paid_at, $4),
		    status = CASE WHEN status = 'pending' THEN 'confirmed' ELSE status END,
		    updated_at = NOW()
		WHERE provider_intent_id = $1 AND payment_status <> 'refunded'
		RETURNING ` + bookingColumns

	return r.getOne(ctx, "mark payment succeeded", query, intentID, chargeID, paymentMethod, paidAt)
}

// MarkPaymentFailed records a failed or canceled attempt for the intent.
// Succeeded and refunded payments are never downgraded.
func (r *BookingRepository) MarkPaymentFailed(ctx context.Context, intentID string) (*models.Booking, error) {
	query := `
		UPDATE bookings
		SET payment_status = 'failed', updated_at = NOW()
		WHERE provider_intent_id = $1 AND payment_status IN ('pending', 'processing', 'failed')
		RETURNING ` + bookingColumns

	return r.getOne(ctx, "mark payment failed", query, intentID)
}

// MarkRefunded records a refund and cancels the booking. The amount is capped at the
// booking price and the first refunded_at is kept.
func (r *BookingRepository) MarkRefunded(ctx context.Context, id uuid.UUID, amount float64, refundedAt time.Time) (*models.Booking, error) {
	query := `
		UPDATE bookings
		SET payment_status = 'refunded',
		    status = 'cancelled',
		    refund_amount = LEAST($2::numeric, price),
		    refunded_at = COALESCE(refunded_at, $3),
		    updated_at = NOW()
		WHERE id = $1 AND payment_status IN ('succeeded', 'refunded')
		RETURNING ` + bookingColumns

	return r.getOne(ctx, "mark refunded", query, id, amount, refundedAt)
}

// ListStaleProcessing returns bookings stuck in processing since before cutoff.
// Rows checked after cutoff are left out, so skipped rows rotate to the back of the queue.
func (r *BookingRepository) ListStaleProcessing(ctx context.Context, cutoff time.Time, limit int) ([]*models.Booking, error) {
	bookings := []*models.Booking{}
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE payment_status = 'processing'
		  AND provider_intent_id IS NOT NULL
		  AND updated_at < $1
		  AND (payment_checked_at IS NULL OR payment_checked_at < $1)
		ORDER BY COALESCE(payment_checked_at, updated_at) ASC
		LIMIT $2`

	if err := r.db.SelectContext(ctx, &bookings, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("failed to list stale payments: %w", err)
	}
	return bookings, nil
}

// MarkPaymentChecked records when reconciliation last looked at the booking.
// updated_at is left alone.
func (r *BookingRepository) MarkPaymentChecked(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE bookings SET payment_checked_at = $2 WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("failed to mark payment checked: %w", err)
	}
	return nil
}

func (r *BookingRepository) getOne(ctx context.Context, op, query string, args ...interface{}) (*models.Booking, error) {
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return &booking, nil
}
