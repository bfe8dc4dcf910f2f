package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/happypaws/dogwalk-backend/internal/middleware"
	"github.com/happypaws/dogwalk-backend/internal/models"
	"github.com/happypaws/dogwalk-backend/internal/services"
	"github.com/happypaws/dogwalk-backend/internal/utils"
	"github.com/happypaws/dogwalk-backend/pkg/validator"
)

// SignatureHeader carries the provider's webhook signature
const SignatureHeader = "Stripe-Signature"

// PaymentOrchestrator is the payment flow the handler drives
type PaymentOrchestrator interface {
	CreateOrReuseIntent(ctx context.Context, requester models.Requester, bookingID uuid.UUID, meta models.RequestMeta) (*models.PaymentIntentResponse, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string, meta models.RequestMeta) error
	Refund(ctx context.Context, requester models.Requester, bookingID uuid.UUID, amount *float64, meta models.RequestMeta) (*models.RefundResponse, error)
	GetStatus(ctx context.Context, requester models.Requester, bookingID uuid.UUID) (*models.PaymentSummary, error)
	AuditTrail(ctx context.Context, requester models.Requester, bookingID uuid.UUID) ([]*models.PaymentAudit, error)
}

// Reconciler runs one payment reconciliation pass on demand
type Reconciler interface {
	RunOnce(ctx context.Context) (*models.ReconcileResult, error)
	Status() map[string]interface{}
}

// PaymentHandler handles payment endpoints
type PaymentHandler struct {
	payments   PaymentOrchestrator
	reconciler Reconciler
	validate   *validator.Validator
	logger     *logrus.Logger
}

// NewPaymentHandler creates a new PaymentHandler. reconciler may be nil.
func NewPaymentHandler(payments PaymentOrchestrator, reconciler Reconciler, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments:   payments,
		reconciler: reconciler,
		validate:   services.NewRequestValidator(),
		logger:     logger,
	}
}

// ============================================================================
// CREATE PAYMENT INTENT - POST /api/v1/payments/create-payment-intent
// ============================================================================

// CreatePaymentIntent returns a client secret for paying a booking
func (h *PaymentHandler) CreatePaymentIntent(c *gin.Context) {
	requester, ok := requesterFrom(c)
	if !ok {
		return
	}

	var req models.CreatePaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := services.ValidateRequest(h.validate, &req); err != nil {
		respondServiceError(c, h.logger, err, "create_payment_intent")
		return
	}

	bookingID, err := uuid.Parse(req.BookingID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid id format")
		return
	}

	resp, err := h.payments.CreateOrReuseIntent(c.Request.Context(), requester, bookingID, utils.RequestMetaFrom(c))
	if err != nil {
		respondServiceError(c, h.logger, err, "create_payment_intent")
		return
	}

	respondOK(c, http.StatusOK, resp)
}

// ============================================================================
// STATUS - GET /api/v1/payments/status/:bookingId
// ============================================================================

// GetPaymentStatus returns the payment summary of a booking
func (h *PaymentHandler) GetPaymentStatus(c *gin.Context) {
	requester, ok := requesterFrom(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "bookingId")
	if !ok {
		return
	}

	summary, err := h.payments.GetStatus(c.Request.Context(), requester, id)
	if err != nil {
		respondServiceError(c, h.logger, err, "payment_status")
		return
	}

	respondOK(c, http.StatusOK, summary)
}

// ============================================================================
// WEBHOOK - POST /api/v1/payments/webhook
// ============================================================================

// Webhook receives provider callbacks. It must run behind middleware.RawBody so
// the signature is checked against the exact bytes that were sent.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, ok := middleware.GetRawBody(c)
	if !ok {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			respondError(c, http.StatusBadRequest, "Could not read request body")
			return
		}
		payload = body
	}

	signature := c.GetHeader(SignatureHeader)
	if signature == "" {
		respondError(c, http.StatusBadRequest, "Missing "+SignatureHeader+" header")
		return
	}

	if err := h.payments.HandleWebhook(c.Request.Context(), payload, signature, utils.RequestMetaFrom(c)); err != nil {
		if errors.Is(err, models.ErrWebhookVerification) {
			respondError(c, http.StatusBadRequest, "Webhook Error: signature verification failed")
			return
		}
		// Verified events are always acknowledged
		h.logger.WithError(err).Error("Webhook processing error")
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// ============================================================================
// REFUND - POST /api/v1/payments/refund/:id (admin)
// ============================================================================

// RefundPayment refunds a paid booking in full or in part
func (h *PaymentHandler) RefundPayment(c *gin.Context) {
	requester, ok := requesterFrom(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.RefundRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(c, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	if err := services.ValidateRequest(h.validate, &req); err != nil {
		respondServiceError(c, h.logger, err, "refund")
		return
	}

	resp, err := h.payments.Refund(c.Request.Context(), requester, id, req.Amount, utils.RequestMetaFrom(c))
	if err != nil {
		respondServiceError(c, h.logger, err, "refund")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "Refund processed successfully",
		Data:    resp,
	})
}

// ============================================================================
// AUDIT TRAIL - GET /api/v1/payments/admin/audit/:bookingId (admin)
// ============================================================================

// GetAuditTrail lists the payment activity recorded for a booking
func (h *PaymentHandler) GetAuditTrail(c *gin.Context) {
	requester, ok := requesterFrom(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "bookingId")
	if !ok {
		return
	}

	entries, err := h.payments.AuditTrail(c.Request.Context(), requester, id)
	if err != nil {
		respondServiceError(c, h.logger, err, "payment_audit_trail")
		return
	}

	respondList(c, entries, len(entries))
}

// ============================================================================
// RECONCILE - POST /api/v1/payments/admin/reconcile (admin)
// ============================================================================

// Reconcile runs a reconciliation pass immediately
func (h *PaymentHandler) Reconcile(c *gin.Context) {
	if h.reconciler == nil {
		respondError(c, http.StatusServiceUnavailable, "Payment reconciliation is disabled")
		return
	}

	result, err := h.reconciler.RunOnce(c.Request.Context())
	if err != nil {
		respondServiceError(c, h.logger, err, "reconcile")
		return
	}

	respondOK(c, http.StatusOK, result)
}

// ReconcileStatus reports the reconciliation schedule
func (h *PaymentHandler) ReconcileStatus(c *gin.Context) {
	if h.reconciler == nil {
		respondOK(c, http.StatusOK, gin.H{"enabled": false})
		return
	}

	status := h.reconciler.Status()
	status["enabled"] = true
	respondOK(c, http.StatusOK, status)
}
