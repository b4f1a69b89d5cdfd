package models

import (
	"time"

	"github.com/google/uuid"
)

// FeatureFlag names accepted by the manager toggle endpoint
const (
	FlagTrips      = "trips_enabled"
	FlagRoadblocks = "roadblocks_enabled"
	FlagPayments   = "payments_enabled"
)

// SystemConfig is the feature-flag singleton. TripsEnabled is the global
// kill switch consulted on every admission that creates work.
type SystemConfig struct {
	TripsEnabled      bool       `json:"trips_enabled" db:"trips_enabled"`
	RoadblocksEnabled bool       `json:"roadblocks_enabled" db:"roadblocks_enabled"`
	PaymentsEnabled   bool       `json:"payments_enabled" db:"payments_enabled"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
	UpdatedBy         *uuid.UUID `json:"updated_by,omitempty" db:"updated_by"`
}

// DefaultSystemConfig returns the defaults used when the singleton row is missing.
func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		TripsEnabled:      true,
		RoadblocksEnabled: true,
		PaymentsEnabled:   false,
	}
}

// ValidFlag reports whether the given name is a known feature flag.
func ValidFlag(name string) bool {
	switch name {
	case FlagTrips, FlagRoadblocks, FlagPayments:
		return true
	}
	return false
}
