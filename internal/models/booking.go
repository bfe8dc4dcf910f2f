package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the payment sub-state of a booking
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSucceeded  PaymentStatus = "succeeded"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// BookingStatus represents the lifecycle status of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// IsValid reports whether s is one of the known booking statuses
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCompleted, BookingStatusCancelled:
		return true
	}
	return false
}

// Booking represents a dog-walking service reservation
type Booking struct {
	ID                  uuid.UUID     `json:"id" db:"id"`
	UserID              uuid.UUID     `json:"user_id" db:"user_id"`
	DogName             string        `json:"dog_name" db:"dog_name"`
	DogBreed            *string       `json:"dog_breed,omitempty" db:"dog_breed"`
	DogAge              *int          `json:"dog_age,omitempty" db:"dog_age"`
	Service             string        `json:"service" db:"service"`
	Date                time.Time     `json:"date" db:"booking_date"`
	Time                string        `json:"time" db:"start_time"`
	Duration            int           `json:"duration" db:"duration"`
	Notes               *string       `json:"notes,omitempty" db:"notes"`
	SpecialInstructions *string       `json:"special_instructions,omitempty" db:"special_instructions"`
	Status              BookingStatus `json:"status" db:"status"`
	Price               float64       `json:"price" db:"price"`

	// Payment sub-state
	PaymentStatus    PaymentStatus `json:"payment_status" db:"payment_status"`
	ProviderIntentID *string       `json:"provider_intent_id,omitempty" db:"provider_intent_id"`
	ProviderChargeID *string       `json:"provider_charge_id,omitempty" db:"provider_charge_id"`
	PaymentMethod    *string       `json:"payment_method,omitempty" db:"payment_method"`
	PaidAt           *time.Time    `json:"paid_at,omitempty" db:"paid_at"`
	RefundedAt       *time.Time    `json:"refunded_at,omitempty" db:"refunded_at"`
	RefundAmount     *float64      `json:"refund_amount,omitempty" db:"refund_amount"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsOwnedBy reports whether the booking belongs to userID
func (b *Booking) IsOwnedBy(userID uuid.UUID) bool {
	return b.UserID == userID
}

// AmountMinorUnits converts the booking price to the provider's smallest currency unit
func (b *Booking) AmountMinorUnits() int64 {
	return ToMinorUnits(b.Price)
}

// BookingOwner is the minimal owner identity joined into admin listings
type BookingOwner struct {
	ID    uuid.UUID `json:"id"`
	Name  *string   `json:"name,omitempty"`
	Email *string   `json:"email,omitempty"`
	Phone *string   `json:"phone,omitempty"`
}

// BookingWithOwner is a booking with its owner's identity
type BookingWithOwner struct {
	Booking
	Owner BookingOwner `json:"user"`
}

// PaymentSummary is the read-only payment view returned by the status endpoint
type PaymentSummary struct {
	Status        PaymentStatus `json:"status"`
	Amount        float64       `json:"amount"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	PaymentMethod *string       `json:"payment_method,omitempty"`
	RefundAmount  *float64      `json:"refund_amount,omitempty"`
	RefundedAt    *time.Time    `json:"refunded_at,omitempty"`
}

// PaymentSummary builds the payment view of the booking
func (b *Booking) PaymentSummary() *PaymentSummary {
	return &PaymentSummary{
		Status:        b.PaymentStatus,
		Amount:        b.Price,
		PaidAt:        b.PaidAt,
		PaymentMethod: b.PaymentMethod,
		RefundAmount:  b.RefundAmount,
		RefundedAt:    b.RefundedAt,
	}
}
