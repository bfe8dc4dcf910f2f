package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeGateway implements Gateway on the Stripe API
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	tolerance     time.Duration
}

// NewStripeGateway creates a Stripe-backed gateway. Nil backends use Stripe's defaults.
func NewStripeGateway(secretKey, webhookSecret string, backends *stripe.Backends) *StripeGateway {
	return &StripeGateway{
		api:           client.New(secretKey, backends),
		webhookSecret: webhookSecret,
		tolerance:     webhook.DefaultTolerance,
	}
}

// CreateIntent creates a payment intent with automatic payment methods
func (g *StripeGateway) CreateIntent(ctx context.Context, p CreateIntentParams) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(p.AmountMinor),
		Currency:    stripe.String(p.Currency),
		Description: stripe.String(p.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create payment intent: %w", err)
	}
	return intentFromStripe(pi), nil
}

// GetIntent retrieves a payment intent by id
func (g *StripeGateway) GetIntent(ctx context.Context, intentID string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe retrieve payment intent %s: %w", intentID, err)
	}
	return intentFromStripe(pi), nil
}

// Refund refunds a charge on behalf of the customer
func (g *StripeGateway) Refund(ctx context.Context, p RefundParams) (*Refund, error) {
	params := &stripe.RefundParams{
		Charge: stripe.String(p.ChargeID),
		Reason: stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	if p.AmountMinor != nil {
		params.Amount = stripe.Int64(*p.AmountMinor)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	r, err := g.api.Refunds.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create refund: %w", err)
	}
	return &Refund{ID: r.ID, AmountMinor: r.Amount, Status: string(r.Status)}, nil
}

// ParseWebhook verifies the Stripe-Signature header over the raw payload and decodes the event
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*Event, error) {
	if g.webhookSecret == "" {
		return nil, fmt.Errorf("%w: webhook secret not configured", ErrInvalidSignature)
	}

	evt, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                g.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	event := &Event{
		ID:      evt.ID,
		Type:    string(evt.Type),
		Created: time.Unix(evt.Created, 0).UTC(),
	}

	switch event.Type {
	case EventIntentSucceeded, EventIntentFailed, EventIntentCanceled:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent event %s: %w", evt.ID, err)
		}
		intent := intentFromStripe(&pi)
		event.IntentID = intent.ID
		event.ChargeID = intent.LatestChargeID
		event.PaymentMethodType = intent.PaymentMethodType
		event.AmountMinor = intent.AmountMinor
		if pi.LastPaymentError != nil {
			event.FailureMessage = pi.LastPaymentError.Msg
		}
	case EventChargeRefunded:
		var ch stripe.Charge
		if err := json.Unmarshal(evt.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("decode charge event %s: %w", evt.ID, err)
		}
		event.ChargeID = ch.ID
		event.AmountMinor = ch.Amount
		event.AmountRefundedMinor = ch.AmountRefunded
		if ch.PaymentIntent != nil {
			event.IntentID = ch.PaymentIntent.ID
		}
	}

	return event, nil
}

func intentFromStripe(pi *stripe.PaymentIntent) *Intent {
	intent := &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		AmountMinor:  pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}
	if pi.LatestCharge != nil {
		intent.LatestChargeID = pi.LatestCharge.ID
	}
	switch {
	case pi.PaymentMethod != nil && pi.PaymentMethod.Type != "":
		intent.PaymentMethodType = string(pi.PaymentMethod.Type)
	case len(pi.PaymentMethodTypes) > 0:
		intent.PaymentMethodType = pi.PaymentMethodTypes[0]
	}
	return intent
}
