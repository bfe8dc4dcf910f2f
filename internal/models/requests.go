package models

// CreateBookingRequest is the client payload for a new booking.
// Price and status are assigned server-side and have no place here.
type CreateBookingRequest struct {
	DogName             string  `json:"dog_name" validate:"required,max=100"`
	DogBreed            *string `json:"dog_breed,omitempty" validate:"omitnil,max=100"`
	DogAge              *int    `json:"dog_age,omitempty" validate:"omitnil,min=0,max=30"`
	Service             string  `json:"service" validate:"required,service"`
	Date                string  `json:"date" validate:"required,isodate,notpast"`
	Time                string  `json:"time" validate:"required,hhmm"`
	Duration            *int    `json:"duration,omitempty" validate:"omitnil,min=15,max=480"`
	Notes               *string `json:"notes,omitempty" validate:"omitnil,max=500"`
	SpecialInstructions *string `json:"special_instructions,omitempty" validate:"omitnil,max=500"`
}

// UpdateBookingRequest is a partial update. Nil fields are left untouched.
// Status and Price are honoured for admins only.
type UpdateBookingRequest struct {
	DogName             *string        `json:"dog_name,omitempty" validate:"omitnil,min=1,max=100"`
	DogBreed            *string        `json:"dog_breed,omitempty" validate:"omitnil,max=100"`
	DogAge              *int           `json:"dog_age,omitempty" validate:"omitnil,min=0,max=30"`
	Service             *string        `json:"service,omitempty" validate:"omitnil,service"`
	Date                *string        `json:"date,omitempty" validate:"omitnil,isodate,notpast"`
	Time                *string        `json:"time,omitempty" validate:"omitnil,hhmm"`
	Duration            *int           `json:"duration,omitempty" validate:"omitnil,min=15,max=480"`
	Notes               *string        `json:"notes,omitempty" validate:"omitnil,max=500"`
	SpecialInstructions *string        `json:"special_instructions,omitempty" validate:"omitnil,max=500"`
	Status              *BookingStatus `json:"status,omitempty" validate:"omitnil,oneof=pending confirmed completed cancelled"`
	Price               *float64       `json:"price,omitempty" validate:"omitnil,gte=0"`
}

// StripPrivileged drops the fields only admins may set
func (r *UpdateBookingRequest) StripPrivileged() {
	r.Status = nil
	r.Price = nil
}

// CreatePaymentIntentRequest asks for a payment intent for a booking
type CreatePaymentIntentRequest struct {
	BookingID string `json:"booking_id" validate:"required,uuid"`
}

// PaymentIntentResponse is what the client needs to confirm a payment
type PaymentIntentResponse struct {
	ClientSecret    string `json:"client_secret"`
	PaymentIntentID string `json:"payment_intent_id"`
}

// RefundRequest optionally carries a partial refund amount in dollars
type RefundRequest struct {
	Amount *float64 `json:"amount,omitempty" validate:"omitnil,gt=0"`
}

// RefundResponse describes a refund issued at the provider
type RefundResponse struct {
	RefundID string  `json:"refund_id"`
	Amount   float64 `json:"amount"`
	Status   string  `json:"status"`
}

// ReconcileResult summarises one reconciliation pass
type ReconcileResult struct {
	Checked   int `json:"checked"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}
