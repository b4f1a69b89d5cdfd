package models

import (
	"time"

	"github.com/google/uuid"
)

// UserRole represents the role of a user in the system
type UserRole string

const (
	RolePassenger UserRole = "passenger"
	RoleDriver    UserRole = "driver"
	RoleManager   UserRole = "manager"
	RoleAdmin     UserRole = "admin"
)

// IsManagerial reports whether the role may use manager controls.
func (r UserRole) IsManagerial() bool {
	return r == RoleManager || r == RoleAdmin
}

// User represents a platform account. Phone/OTP verification happens upstream;
// the engine only reads the authenticated identity and role.
type User struct {
	ID          uuid.UUID `json:"id" db:"id"`
	PhoneNumber string    `json:"phone_number" db:"phone_number"`
	FullName    string    `json:"full_name" db:"full_name"`
	Role        UserRole  `json:"role" db:"role"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
