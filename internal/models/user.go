package models

import (
	"time"

	"github.com/google/uuid"
)

// User roles carried in identity tokens
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is an account owned by the identity provider. The booking service only reads it.
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      *string   `json:"name,omitempty" db:"name"`
	Email     string    `json:"email" db:"email"`
	Phone     *string   `json:"phone,omitempty" db:"phone"`
	Role      string    `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Requester is the authenticated caller of an operation
type Requester struct {
	UserID uuid.UUID
	Role   string
}

// IsAdmin reports whether the requester holds the admin role
func (r Requester) IsAdmin() bool {
	return r.Role == RoleAdmin
}

// CanAccess reports whether the requester may read or modify the booking
func (r Requester) CanAccess(b *Booking) bool {
	return r.IsAdmin() || b.IsOwnedBy(r.UserID)
}
