package payment

import (
	"context"
	"errors"
	"time"
)

// Provider event types handled by the orchestrator
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
	EventIntentCanceled  = "payment_intent.canceled"
	EventChargeRefunded  = "charge.refunded"
)

// Remote intent statuses the orchestrator acts on
const (
	IntentStatusRequiresPaymentMethod = "requires_payment_method"
	IntentStatusRequiresConfirmation  = "requires_confirmation"
	IntentStatusProcessing            = "processing"
	IntentStatusSucceeded             = "succeeded"
	IntentStatusCanceled              = "canceled"
)

// ErrInvalidSignature is returned when a webhook payload fails verification
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Intent is the provider's record of one payment attempt
type Intent struct {
	ID                string
	ClientSecret      string
	Status            string
	AmountMinor       int64
	Currency          string
	LatestChargeID    string
	PaymentMethodType string
	Metadata          map[string]string
}

// Reusable reports whether the client can still confirm this intent
func (i *Intent) Reusable() bool {
	return i.Status == IntentStatusRequiresPaymentMethod || i.Status == IntentStatusRequiresConfirmation
}

// CreateIntentParams describes a new payment intent
type CreateIntentParams struct {
	AmountMinor    int64
	Currency       string
	Description    string
	Metadata       map[string]string
	IdempotencyKey string
}

// RefundParams describes a refund against a charge. A nil amount refunds the full charge.
type RefundParams struct {
	ChargeID    string
	AmountMinor *int64
	Metadata    map[string]string
}

// Refund is the provider's record of a refund
type Refund struct {
	ID          string
	AmountMinor int64
	Status      string
}

// Event is a verified webhook notification reduced to the fields the orchestrator reads
type Event struct {
	ID                  string
	Type                string
	Created             time.Time
	IntentID            string
	ChargeID            string
	PaymentMethodType   string
	AmountMinor         int64
	AmountRefundedMinor int64
	FailureMessage      string
}

// Gateway is the payment provider boundary
type Gateway interface {
	CreateIntent(ctx context.Context, params CreateIntentParams) (*Intent, error)
	GetIntent(ctx context.Context, intentID string) (*Intent, error)
	Refund(ctx context.Context, params RefundParams) (*Refund, error)
	ParseWebhook(payload []byte, signature string) (*Event, error)
}
