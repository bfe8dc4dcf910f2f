package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JSONB is a custom type for handling JSONB fields
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	bytes, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	}
	return nil
}

// PaymentEventType represents the type of payment event
type PaymentEventType string

const (
	PaymentEventIntentCreated   PaymentEventType = "intent_created"
	PaymentEventIntentReused    PaymentEventType = "intent_reused"
	PaymentEventIntentOrphaned  PaymentEventType = "intent_orphaned"
	PaymentEventWebhookReceived PaymentEventType = "webhook_received"
	PaymentEventSuccess         PaymentEventType = "payment_succeeded"
	PaymentEventFailed          PaymentEventType = "payment_failed"
	PaymentEventCancelled       PaymentEventType = "payment_cancelled"
	PaymentEventRefundInitiated PaymentEventType = "refund_initiated"
	PaymentEventRefundCompleted PaymentEventType = "refund_completed"
	PaymentEventReconciled      PaymentEventType = "reconciled"
	PaymentEventError           PaymentEventType = "error"
)

// PaymentEventSource identifies where the event originated
type PaymentEventSource string

const (
	PaymentSourceUser       PaymentEventSource = "user"
	PaymentSourceAdmin      PaymentEventSource = "admin"
	PaymentSourceWebhook    PaymentEventSource = "provider_webhook"
	PaymentSourceReconciler PaymentEventSource = "reconciler"
)

// PaymentAudit represents an immutable audit log entry for payment activity
type PaymentAudit struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	BookingID        *uuid.UUID `json:"booking_id,omitempty" db:"booking_id"`
	ProviderIntentID *string    `json:"provider_intent_id,omitempty" db:"provider_intent_id"`
	ProviderChargeID *string    `json:"provider_charge_id,omitempty" db:"provider_charge_id"`
	ProviderEventID  *string    `json:"provider_event_id,omitempty" db:"provider_event_id"`

	EventType   PaymentEventType   `json:"event_type" db:"event_type"`
	EventSource PaymentEventSource `json:"event_source" db:"event_source"`

	Amount        *float64 `json:"amount,omitempty" db:"amount"`
	Currency      *string  `json:"currency,omitempty" db:"currency"`
	PaymentStatus *string  `json:"payment_status,omitempty" db:"payment_status"`
	Details       JSONB    `json:"details,omitempty" db:"details"`

	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`
	IsDuplicate  bool    `json:"is_duplicate" db:"is_duplicate"`

	// Request metadata
	IPAddress *string `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent *string `json:"user_agent,omitempty" db:"user_agent"`
	Device    *string `json:"device,omitempty" db:"device"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// RequestMeta carries caller details recorded alongside payment audits
type RequestMeta struct {
	IPAddress string
	UserAgent string
	Device    string
}

// NewPaymentAudit creates a new payment audit entry with required fields
func NewPaymentAudit(eventType PaymentEventType, source PaymentEventSource) *PaymentAudit {
	return &PaymentAudit{
		ID:          uuid.New(),
		EventType:   eventType,
		EventSource: source,
		CreatedAt:   time.Now(),
	}
}

// SetBooking sets the booking the audit refers to
func (pa *PaymentAudit) SetBooking(bookingID uuid.UUID) *PaymentAudit {
	pa.BookingID = &bookingID
	return pa
}

// SetIntent sets the provider intent id
func (pa *PaymentAudit) SetIntent(intentID string) *PaymentAudit {
	if intentID != "" {
		pa.ProviderIntentID = &intentID
	}
	return pa
}

// SetCharge sets the provider charge id
func (pa *PaymentAudit) SetCharge(chargeID string) *PaymentAudit {
	if chargeID != "" {
		pa.ProviderChargeID = &chargeID
	}
	return pa
}

// SetEvent sets the provider event id
func (pa *PaymentAudit) SetEvent(eventID string) *PaymentAudit {
	if eventID != "" {
		pa.ProviderEventID = &eventID
	}
	return pa
}

// SetAmount sets the amount and currency
func (pa *PaymentAudit) SetAmount(amount float64, currency string) *PaymentAudit {
	pa.Amount = &amount
	if currency != "" {
		pa.Currency = &currency
	}
	return pa
}

// SetPaymentStatus records the payment status observed at this point
func (pa *PaymentAudit) SetPaymentStatus(status string) *PaymentAudit {
	pa.PaymentStatus = &status
	return pa
}

// SetDetails attaches free-form details
func (pa *PaymentAudit) SetDetails(details map[string]interface{}) *PaymentAudit {
	pa.Details = JSONB(details)
	return pa
}

// SetError sets error information
func (pa *PaymentAudit) SetError(message string) *PaymentAudit {
	pa.ErrorMessage = &message
	return pa
}

// SetMetadata sets request metadata
func (pa *PaymentAudit) SetMetadata(meta RequestMeta) *PaymentAudit {
	if meta.IPAddress != "" {
		pa.IPAddress = &meta.IPAddress
	}
	if meta.UserAgent != "" {
		pa.UserAgent = &meta.UserAgent
	}
	if meta.Device != "" {
		pa.Device = &meta.Device
	}
	return pa
}

// MarkAsDuplicate marks this event as a duplicate
func (pa *PaymentAudit) MarkAsDuplicate() *PaymentAudit {
	pa.IsDuplicate = true
	return pa
}
