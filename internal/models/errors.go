package models

import (
	"errors"
	"strings"
)

var (
	// Booking errors
	ErrBookingNotFound   = errors.New("booking not found")
	ErrBookingLocked     = errors.New("booking can only be changed while pending")
	ErrPaidBookingDelete = errors.New("cannot delete a booking with a payment in progress or completed; refund it first")

	// Authorization errors
	ErrUnauthorized = errors.New("user not authenticated")
	ErrForbidden    = errors.New("not authorized to access this booking")

	// Payment errors
	ErrAlreadyPaid         = errors.New("this booking has already been paid")
	ErrBookingCancelled    = errors.New("cannot process payment for a cancelled booking")
	ErrNotPaid             = errors.New("cannot refund a booking that has not been paid")
	ErrAlreadyRefunded     = errors.New("this booking has already been refunded")
	ErrNoCharge            = errors.New("no payment charge found for this booking")
	ErrPaymentInProgress   = errors.New("payment setup for this booking is already in progress")
	ErrProvider            = errors.New("payment provider request failed")
	ErrWebhookVerification = errors.New("webhook signature verification failed")
)

// FieldError describes a validation failure on a single input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates field errors for one request
type ValidationError struct {
	Fields []FieldError `json:"errors"`
}

// NewValidationError creates a validation error for a single field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// Add appends a field error
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any field failed
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// IsValidationError reports whether err carries field errors
func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
