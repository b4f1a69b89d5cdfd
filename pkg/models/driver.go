package models

import (
	"time"

	"github.com/google/uuid"
)

// Driver represents mutable driver dispatch state.
//
// IsAvailable strictly implies IsOnline. CurrentTripID is non-nil exactly when
// the driver is claimed by an active trip; only the matching claim and the
// state-machine release may write those two fields.
type Driver struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	IsOnline         bool       `json:"is_online" db:"is_online"`
	IsAvailable      bool       `json:"is_available" db:"is_available"`
	LastLatitude     *float64   `json:"last_latitude,omitempty" db:"last_latitude"`
	LastLongitude    *float64   `json:"last_longitude,omitempty" db:"last_longitude"`
	LastLocationCell *string    `json:"last_location_cell,omitempty" db:"last_location_cell"`
	CurrentTripID    *uuid.UUID `json:"current_trip_id,omitempty" db:"current_trip_id"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// HasLocation reports whether the driver has posted a position yet.
func (d *Driver) HasLocation() bool {
	return d.LastLatitude != nil && d.LastLongitude != nil
}

// LocationUpdateRequest is the driver position ingress payload
type LocationUpdateRequest struct {
	Latitude  float64 `json:"latitude" binding:"required,latitude"`
	Longitude float64 `json:"longitude" binding:"required,longitude"`
}
