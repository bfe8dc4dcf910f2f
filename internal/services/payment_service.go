package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/happypaws/dogwalk-backend/internal/models"
	"github.com/happypaws/dogwalk-backend/pkg/events"
	"github.com/happypaws/dogwalk-backend/pkg/lock"
	"github.com/happypaws/dogwalk-backend/pkg/payment"
)

// PaymentConfig holds settings for the payment orchestrator
type PaymentConfig struct {
	Currency string        // ISO currency sent to the provider (default usd)
	LockTTL  time.Duration // How long one intent setup may hold the booking lock
}

// DefaultPaymentConfig returns default configuration
func DefaultPaymentConfig() PaymentConfig {
	return PaymentConfig{
		Currency: "usd",
		LockTTL:  15 * time.Second,
	}
}

// PaymentService bridges bookings to the payment provider
type PaymentService struct {
	store     BookingStore
	gateway   payment.Gateway
	locker    lock.Locker
	audits    PaymentAuditLogger
	publisher events.Publisher
	config    PaymentConfig
	logger    *logrus.Logger
	now       func() time.Time
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	store BookingStore,
	gateway payment.Gateway,
	locker lock.Locker,
	audits PaymentAuditLogger,
	publisher events.Publisher,
	config PaymentConfig,
	logger *logrus.Logger,
) *PaymentService {
	if config.Currency == "" {
		config.Currency = "usd"
	}
	if config.LockTTL <= 0 {
		config.LockTTL = 15 * time.Second
	}
	return &PaymentService{
		store:     store,
		gateway:   gateway,
		locker:    locker,
		audits:    audits,
		publisher: publisher,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}

func intentLockKey(bookingID uuid.UUID) string {
	return "payment-intent:" + bookingID.String()
}

// ============================================================================
// CREATE OR REUSE INTENT
// ============================================================================

// CreateOrReuseIntent returns a confirmable intent for the requester's booking.
// A stored intent that the client can still confirm is returned as is; otherwise
// a new one is created and bound to the booking.
func (s *PaymentService) CreateOrReuseIntent(ctx context.Context, requester models.Requester, bookingID uuid.UUID, meta models.RequestMeta) (*models.PaymentIntentResponse, error) {
	if _, err := s.loadPayable(ctx, requester, bookingID); err != nil {
		return nil, err
	}

	held, err := s.locker.Acquire(ctx, intentLockKey(bookingID), s.config.LockTTL)
	switch {
	case errors.Is(err, lock.ErrNotAcquired):
		return nil, models.ErrPaymentInProgress
	case err != nil:
		// The conditional intent write still guards the booking without the lock
		s.logger.WithError(err).WithField("booking_id", bookingID).Warn("Payment lock unavailable, continuing without it")
	default:
		defer func() {
			if err := held.Release(context.WithoutCancel(ctx)); err != nil {
				s.logger.WithError(err).WithField("booking_id", bookingID).Warn("Failed to release payment lock")
			}
		}()
	}

	// Re-read under the lock
	booking, err := s.loadPayable(ctx, requester, bookingID)
	if err != nil {
		return nil, err
	}

	if booking.ProviderIntentID != nil {
		resp, err := s.reuseIntent(ctx, booking, meta)
		if err != nil || resp != nil {
			return resp, err
		}
	}

	return s.createIntent(ctx, booking, meta)
}

// loadPayable loads the booking and checks the requester may pay for it now
func (s *PaymentService) loadPayable(ctx context.Context, requester models.Requester, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := s.store.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, models.ErrBookingNotFound
	}
	if !booking.IsOwnedBy(requester.UserID) {
		return nil, models.ErrForbidden
	}
	if err := checkPayable(booking); err != nil {
		return nil, err
	}
	return booking, nil
}

func checkPayable(b *models.Booking) error {
	switch {
	case b.PaymentStatus == models.PaymentStatusSucceeded:
		return models.ErrAlreadyPaid
	case b.PaymentStatus == models.PaymentStatusRefunded:
		return models.ErrAlreadyRefunded
	case b.Status == models.BookingStatusCancelled:
		return models.ErrBookingCancelled
	case b.AmountMinorUnits() <= 0:
		return models.NewValidationError("booking_id", "booking has no payable amount")
	}
	return nil
}

// reuseIntent returns the stored intent when the client can still confirm it.
// A nil response with nil error means a new intent is needed.
func (s *PaymentService) reuseIntent(ctx context.Context, booking *models.Booking, meta models.RequestMeta) (*models.PaymentIntentResponse, error) {
	log := s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"intent_id":  *booking.ProviderIntentID,
	})

	intent, err := s.gateway.GetIntent(ctx, *booking.ProviderIntentID)
	if err != nil {
		log.WithError(err).Warn("Failed to retrieve stored payment intent, creating a new one")
		return nil, nil
	}

	switch {
	case intent.Reusable():
	case intent.Status == payment.IntentStatusSucceeded:
		// The success webhook has not landed yet; settle now instead of charging twice
		log.Warn("Stored intent already succeeded, settling booking")
		if _, err := s.settleSucceeded(ctx, intent.ID, intent.LatestChargeID, intent.PaymentMethodType); err != nil {
			log.WithError(err).Error("Failed to settle succeeded intent")
		}
		return nil, models.ErrAlreadyPaid
	case intent.Status == payment.IntentStatusProcessing:
		return nil, models.ErrPaymentInProgress
	default:
		log.WithField("remote_status", intent.Status).Info("Stored intent is no longer usable")
		return nil, nil
	}

	if booking.PaymentStatus == models.PaymentStatusPending || booking.PaymentStatus == models.PaymentStatusFailed {
		if err := s.store.MarkProcessing(ctx, booking.ID); err != nil {
			log.WithError(err).Error("Failed to mark payment processing")
		}
	}

	s.audit(ctx, models.NewPaymentAudit(models.PaymentEventIntentReused, models.PaymentSourceUser).
		SetBooking(booking.ID).
		SetIntent(intent.ID).
		SetAmount(models.FromMinorUnits(intent.AmountMinor), intent.Currency).
		SetPaymentStatus(intent.Status).
		SetMetadata(meta))

	log.Info("Reusing existing payment intent")
	return &models.PaymentIntentResponse{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
	}, nil
}

func (s *PaymentService) createIntent(ctx context.Context, booking *models.Booking, meta models.RequestMeta) (*models.PaymentIntentResponse, error) {
	amount := booking.AmountMinorUnits()
	previous := "none"
	if booking.ProviderIntentID != nil {
		previous = *booking.ProviderIntentID
	}

	params := payment.CreateIntentParams{
		AmountMinor: amount,
		Currency:    s.config.Currency,
		Description: fmt.Sprintf("%s for %s", booking.Service, booking.DogName),
		Metadata: map[string]string{
			"booking_id": booking.ID.String(),
			"user_id":    booking.UserID.String(),
			"service":    booking.Service,
			"dog_name":   booking.DogName,
			"date":       booking.Date.Format("2006-01-02"),
		},
	}
	// Concurrent creators for the same booking state get the same provider intent
	params.IdempotencyKey = intentIdempotencyKey(booking.ID, previous, params)

	intent, err := s.gateway.CreateIntent(ctx, params)
	if err != nil {
		s.logger.WithError(err).WithField("booking_id", booking.ID).Error("Failed to create payment intent")
		s.audit(ctx, models.NewPaymentAudit(models.PaymentEventError, models.PaymentSourceUser).
			SetBooking(booking.ID).
			SetAmount(booking.Price, s.config.Currency).
			SetError(err.Error()).
			SetMetadata(meta))
		return nil, fmt.Errorf("%w: %w", models.ErrProvider, err)
	}

	attached, err := s.store.AttachIntent(ctx, booking.ID, intent.ID, booking.ProviderIntentID)
	if err != nil {
		return nil, err
	}
	if !attached {
		return s.resolveLostRace(ctx, booking.ID, intent, meta)
	}

	s.audit(ctx, models.NewPaymentAudit(models.PaymentEventIntentCreated, models.PaymentSourceUser).
		SetBooking(booking.ID).
		SetIntent(intent.ID).
		SetAmount(booking.Price, s.config.Currency).
		SetPaymentStatus(string(models.PaymentStatusProcessing)).
		SetMetadata(meta))

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"intent_id":  intent.ID,
		"amount":     amount,
	}).Info("Payment intent created")

	return &models.PaymentIntentResponse{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
	}, nil
}

// resolveLostRace handles a conditional write that found the booking changed underneath us.
// The intent that is now stored wins and ours is recorded as orphaned.
func (s *PaymentService) resolveLostRace(ctx context.Context, bookingID uuid.UUID, ours *payment.Intent, meta models.RequestMeta) (*models.PaymentIntentResponse, error) {
	current, err := s.store.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, models.ErrBookingNotFound
	}
	if err := checkPayable(current); err != nil {
		return nil, err
	}

	if current.ProviderIntentID == nil || *current.ProviderIntentID == ours.ID {
		if current.ProviderIntentID == nil {
			return nil, models.ErrPaymentInProgress
		}
		return &models.PaymentIntentResponse{ClientSecret: ours.ClientSecret, PaymentIntentID: ours.ID}, nil
	}

	winnerID := *current.ProviderIntentID
	s.logger.WithFields(logrus.Fields{
		"booking_id":       bookingID,
		"intent_id":        winnerID,
		"orphan_intent_id": ours.ID,
	}).Warn("Concurrent intent creation detected, returning stored intent")
	s.audit(ctx, models.NewPaymentAudit(models.PaymentEventIntentOrphaned, models.PaymentSourceUser).
		SetBooking(bookingID).
		SetIntent(ours.ID).
		SetDetails(map[string]interface{}{"stored_intent_id": winnerID}).
		SetMetadata(meta))

	winner, err := s.gateway.GetIntent(ctx, winnerID)
	if err != nil {
		s.logger.WithError(err).WithField("intent_id", winnerID).Error("Failed to retrieve stored payment intent")
		return nil, fmt.Errorf("%w: %w", models.ErrProvider, err)
	}
	return &models.PaymentIntentResponse{ClientSecret: winner.ClientSecret, PaymentIntentID: winner.ID}, nil
}

// ============================================================================
// WEBHOOK
// ============================================================================

// HandleWebhook verifies a provider callback and applies it. Once the signature is
// verified the call succeeds even if no booking matches or the store fails.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string, meta models.RequestMeta) error {
	evt, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		s.logger.WithError(err).WithField("ip", meta.IPAddress).Warn("Rejected webhook")
		return fmt.Errorf("%w: %w", models.ErrWebhookVerification, err)
	}

	duplicate := false
	if evt.ID != "" {
		seen, err := s.audits.HasEvent(ctx, evt.ID)
		if err != nil {
			s.logger.WithError(err).WithField("event_id", evt.ID).Warn("Failed to check webhook event history")
		}
		duplicate = seen
	}

	log := s.logger.WithFields(logrus.Fields{
		"event_id":   evt.ID,
		"event_type": evt.Type,
		"intent_id":  evt.IntentID,
		"charge_id":  evt.ChargeID,
		"duplicate":  duplicate,
	})
	log.Info("Webhook received")

	audit := models.NewPaymentAudit(models.PaymentEventWebhookReceived, models.PaymentSourceWebhook).
		SetEvent(evt.ID).
		SetIntent(evt.IntentID).
		SetCharge(evt.ChargeID).
		SetDetails(map[string]interface{}{"provider_event_type": evt.Type}).
		SetMetadata(meta)
	if duplicate {
		audit.MarkAsDuplicate()
	}

	var booking *models.Booking
	switch evt.Type {
	case payment.EventIntentSucceeded:
		audit.EventType = models.PaymentEventSuccess
		audit.SetAmount(models.FromMinorUnits(evt.AmountMinor), "")
		booking, err = s.settleSucceeded(ctx, evt.IntentID, evt.ChargeID, evt.PaymentMethodType)
	case payment.EventIntentFailed, payment.EventIntentCanceled:
		audit.EventType = models.PaymentEventFailed
		if evt.Type == payment.EventIntentCanceled {
			audit.EventType = models.PaymentEventCancelled
		}
		if evt.FailureMessage != "" {
			audit.SetDetails(map[string]interface{}{
				"provider_event_type": evt.Type,
				"failure_message":     evt.FailureMessage,
			})
		}
		booking, err = s.settleFailed(ctx, evt.IntentID)
	case payment.EventChargeRefunded:
		audit.EventType = models.PaymentEventRefundCompleted
		audit.SetAmount(models.FromMinorUnits(evt.AmountRefundedMinor), "")
		booking, err = s.settleRefunded(ctx, evt.ChargeID, evt.AmountRefundedMinor)
	default:
		log.Debug("Ignoring unhandled webhook event type")
		s.audit(ctx, audit)
		return nil
	}

	switch {
	case err != nil:
		log.WithError(err).Error("Failed to apply webhook event")
		audit.SetError(err.Error())
	case booking == nil:
		current, lookupErr := s.webhookBooking(ctx, evt)
		if lookupErr != nil || current == nil {
			log.Warn("No booking matched webhook event")
			audit.SetError("no matching booking")
			break
		}
		// The booking exists but its payment state did not allow the transition
		audit.SetBooking(current.ID).
			SetPaymentStatus(string(current.PaymentStatus)).
			SetError(fmt.Sprintf("event ignored in payment status %s", current.PaymentStatus))
		log.WithFields(logrus.Fields{
			"booking_id":     current.ID,
			"payment_status": current.PaymentStatus,
		}).Info("Webhook event left booking unchanged")
	default:
		audit.SetBooking(booking.ID).SetPaymentStatus(string(booking.PaymentStatus))
		log.WithField("booking_id", booking.ID).Info("Webhook event applied")
	}

	s.audit(ctx, audit)
	return nil
}

// intentIdempotencyKey identifies one intent request. The provider rejects a reused key
// whose parameters differ, so everything sent is folded into the key.
func intentIdempotencyKey(bookingID uuid.UUID, previous string, params payment.CreateIntentParams) string {
	keys := make([]string, 0, len(params.Metadata))
	for k := range params.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(params.Currency)
	b.WriteByte(0)
	b.WriteString(params.Description)
	for _, k := range keys {
		b.WriteByte(0)
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params.Metadata[k])
	}
	sum := sha256.Sum256([]byte(b.String()))

	return fmt.Sprintf("booking:%s:%s:%d:%s", bookingID, previous, params.AmountMinor, hex.EncodeToString(sum[:8]))
}

// webhookBooking finds the booking an event refers to, by intent first and then by charge
func (s *PaymentService) webhookBooking(ctx context.Context, evt *payment.Event) (*models.Booking, error) {
	if evt.IntentID != "" {
		booking, err := s.store.GetByIntentID(ctx, evt.IntentID)
		if err != nil || booking != nil {
			return booking, err
		}
	}
	if evt.ChargeID != "" {
		return s.store.GetByChargeID(ctx, evt.ChargeID)
	}
	return nil, nil
}

// settleSucceeded records a successful payment for the intent and confirms a pending booking
func (s *PaymentService) settleSucceeded(ctx context.Context, intentID, chargeID, paymentMethod string) (*models.Booking, error) {
	if intentID == "" {
		return nil, nil
	}
	booking, err := s.store.MarkPaymentSucceeded(ctx, intentID, optional(chargeID), optional(paymentMethod), s.now())
	if err != nil || booking == nil {
		return booking, err
	}
	publishBookingEvent(ctx, s.publisher, s.logger, events.PaymentSucceeded, booking, s.now())
	return booking, nil
}

// settleFailed records a failed or canceled attempt. Booking status is left alone.
func (s *PaymentService) settleFailed(ctx context.Context, intentID string) (*models.Booking, error) {
	if intentID == "" {
		return nil, nil
	}
	booking, err := s.store.MarkPaymentFailed(ctx, intentID)
	if err != nil || booking == nil {
		return booking, err
	}
	publishBookingEvent(ctx, s.publisher, s.logger, events.PaymentFailed, booking, s.now())
	return booking, nil
}

// settleRefunded records a refund reported against a charge
func (s *PaymentService) settleRefunded(ctx context.Context, chargeID string, refundedMinor int64) (*models.Booking, error) {
	if chargeID == "" {
		return nil, nil
	}
	booking, err := s.store.GetByChargeID(ctx, chargeID)
	if err != nil || booking == nil {
		return booking, err
	}

	amount := models.FromMinorUnits(refundedMinor)
	if refundedMinor <= 0 {
		amount = booking.Price
	}

	updated, err := s.store.MarkRefunded(ctx, booking.ID, amount, s.now())
	if err != nil || updated == nil {
		return updated, err
	}
	publishBookingEvent(ctx, s.publisher, s.logger, events.PaymentRefunded, updated, s.now())
	return updated, nil
}

// ============================================================================
// REFUND
// ============================================================================

// Refund issues a full or partial refund for a paid booking. Admin only.
// Local state is updated right away and the later webhook converges on the same values.
func (s *PaymentService) Refund(ctx context.Context, requester models.Requester, bookingID uuid.UUID, amount *float64, meta models.RequestMeta) (*models.RefundResponse, error) {
	if !requester.IsAdmin() {
		return nil, models.ErrForbidden
	}

	booking, err := s.store.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, models.ErrBookingNotFound
	}

	switch {
	case booking.PaymentStatus == models.PaymentStatusRefunded:
		return nil, models.ErrAlreadyRefunded
	case booking.PaymentStatus != models.PaymentStatusSucceeded:
		return nil, models.ErrNotPaid
	case booking.ProviderChargeID == nil || *booking.ProviderChargeID == "":
		return nil, models.ErrNoCharge
	}

	refundAmount := booking.Price
	if amount != nil {
		if *amount <= 0 {
			return nil, models.NewValidationError("amount", "must be greater than 0")
		}
		if *amount > booking.Price {
			return nil, models.NewValidationError("amount", fmt.Sprintf("cannot exceed the booking price of %.2f", booking.Price))
		}
		refundAmount = *amount
	}
	minor := models.ToMinorUnits(refundAmount)

	log := s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"charge_id":  *booking.ProviderChargeID,
		"admin_id":   requester.UserID,
		"amount":     refundAmount,
	})

	refund, err := s.gateway.Refund(ctx, payment.RefundParams{
		ChargeID:    *booking.ProviderChargeID,
		AmountMinor: &minor,
		Metadata: map[string]string{
			"booking_id": booking.ID.String(),
			"admin_id":   requester.UserID.String(),
		},
	})
	if err != nil {
		log.WithError(err).Error("Refund failed at provider")
		s.audit(ctx, models.NewPaymentAudit(models.PaymentEventError, models.PaymentSourceAdmin).
			SetBooking(booking.ID).
			SetCharge(*booking.ProviderChargeID).
			SetAmount(refundAmount, s.config.Currency).
			SetError(err.Error()).
			SetMetadata(meta))
		return nil, fmt.Errorf("%w: %w", models.ErrProvider, err)
	}

	s.audit(ctx, models.NewPaymentAudit(models.PaymentEventRefundInitiated, models.PaymentSourceAdmin).
		SetBooking(booking.ID).
		SetCharge(*booking.ProviderChargeID).
		SetAmount(refundAmount, s.config.Currency).
		SetPaymentStatus(string(models.PaymentStatusRefunded)).
		SetDetails(map[string]interface{}{"refund_id": refund.ID, "admin_id": requester.UserID.String()}).
		SetMetadata(meta))

	updated, err := s.store.MarkRefunded(ctx, booking.ID, refundAmount, s.now())
	switch {
	case err != nil:
		log.WithError(err).Error("Refund issued but local update failed; webhook will reconcile")
	case updated == nil:
		log.Warn("Refund issued but booking no longer qualified for a local update")
	default:
		publishBookingEvent(ctx, s.publisher, s.logger, events.PaymentRefunded, updated, s.now())
	}

	log.WithField("refund_id", refund.ID).Info("Refund issued")

	refunded := refundAmount
	if refund.AmountMinor > 0 {
		refunded = models.FromMinorUnits(refund.AmountMinor)
	}
	return &models.RefundResponse{
		RefundID: refund.ID,
		Amount:   refunded,
		Status:   refund.Status,
	}, nil
}

// ============================================================================
// STATUS
// ============================================================================

// GetStatus returns the payment summary of a booking the requester may read
func (s *PaymentService) GetStatus(ctx context.Context, requester models.Requester, bookingID uuid.UUID) (*models.PaymentSummary, error) {
	booking, err := s.store.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, models.ErrBookingNotFound
	}
	if !requester.CanAccess(booking) {
		return nil, models.ErrForbidden
	}
	return booking.PaymentSummary(), nil
}

// AuditTrail lists the recorded payment activity of a booking, oldest first. Admin only.
// Entries outlive the booking, so a deleted booking still has its trail.
func (s *PaymentService) AuditTrail(ctx context.Context, requester models.Requester, bookingID uuid.UUID) ([]*models.PaymentAudit, error) {
	if !requester.IsAdmin() {
		return nil, models.ErrForbidden
	}
	entries, err := s.audits.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment audits: %w", err)
	}
	return entries, nil
}

// ============================================================================
// RECONCILIATION
// ============================================================================

// Reconcile settles bookings stuck in processing by asking the provider for
// their intent status. It covers webhooks that never arrived.
func (s *PaymentService) Reconcile(ctx context.Context, staleAfter time.Duration, limit int) (*models.ReconcileResult, error) {
	cutoff := s.now().Add(-staleAfter)
	stale, err := s.store.ListStaleProcessing(ctx, cutoff, limit)
	if err != nil {
		return nil, err
	}

	result := &models.ReconcileResult{}
	for _, b := range stale {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.Checked++

		log := s.logger.WithFields(logrus.Fields{
			"booking_id": b.ID,
			"intent_id":  *b.ProviderIntentID,
		})

		// Move the booking to the back of the queue whatever the outcome
		if err := s.store.MarkPaymentChecked(ctx, b.ID, s.now()); err != nil {
			log.WithError(err).Warn("Failed to record reconciliation check")
		}

		intent, err := s.gateway.GetIntent(ctx, *b.ProviderIntentID)
		if err != nil {
			log.WithError(err).Warn("Failed to retrieve intent during reconciliation")
			result.Errors++
			continue
		}

		var settled *models.Booking
		switch intent.Status {
		case payment.IntentStatusSucceeded:
			settled, err = s.settleSucceeded(ctx, intent.ID, intent.LatestChargeID, intent.PaymentMethodType)
			if err == nil && settled != nil {
				result.Succeeded++
			}
		case payment.IntentStatusCanceled:
			settled, err = s.settleFailed(ctx, intent.ID)
			if err == nil && settled != nil {
				result.Failed++
			}
		default:
			result.Skipped++
			continue
		}

		if err != nil {
			log.WithError(err).Error("Failed to apply reconciled intent status")
			result.Errors++
			continue
		}
		if settled == nil {
			result.Skipped++
			continue
		}

		log.WithField("remote_status", intent.Status).Info("Payment reconciled")
		s.audit(ctx, models.NewPaymentAudit(models.PaymentEventReconciled, models.PaymentSourceReconciler).
			SetBooking(settled.ID).
			SetIntent(intent.ID).
			SetCharge(intent.LatestChargeID).
			SetAmount(models.FromMinorUnits(intent.AmountMinor), intent.Currency).
			SetPaymentStatus(string(settled.PaymentStatus)))
	}

	return result, nil
}

// audit writes an audit entry. Failures never break the payment flow.
func (s *PaymentService) audit(ctx context.Context, entry *models.PaymentAudit) {
	if s.audits == nil {
		return
	}
	entry.CreatedAt = s.now()
	if err := s.audits.Log(ctx, entry); err != nil {
		s.logger.WithError(err).WithField("event_type", entry.EventType).Warn("Failed to write payment audit")
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
