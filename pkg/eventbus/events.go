package eventbus

import (
	"time"

	"github.com/google/uuid"
)

// TripRequestedData is emitted when a passenger requests a trip, whether or
// not a driver was found. Subscribers (notifications, realtime fan-out) react
// to the canonical state; the engine never pushes to devices itself.
type TripRequestedData struct {
	RequestID         uuid.UUID  `json:"request_id"`
	PassengerID       uuid.UUID  `json:"passenger_id"`
	TripID            *uuid.UUID `json:"trip_id,omitempty"`
	DriverID          *uuid.UUID `json:"driver_id,omitempty"`
	Matched           bool       `json:"matched"`
	PickupLatitude    float64    `json:"pickup_latitude"`
	PickupLongitude   float64    `json:"pickup_longitude"`
	DropoffLatitude   float64    `json:"dropoff_latitude"`
	DropoffLongitude  float64    `json:"dropoff_longitude"`
	EstimatedPriceIls int        `json:"estimated_price_ils"`
	RequestedAt       time.Time  `json:"requested_at"`
}

// TripStatusChangedData is emitted on every trip state-machine transition.
type TripStatusChangedData struct {
	TripID      uuid.UUID `json:"trip_id"`
	PassengerID uuid.UUID `json:"passenger_id"`
	DriverID    uuid.UUID `json:"driver_id"`
	Status      string    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	ChangedAt   time.Time `json:"changed_at"`
}

// PaymentConfirmedData is emitted when a cash payment is confirmed.
type PaymentConfirmedData struct {
	PaymentID string    `json:"payment_id"`
	TripID    uuid.UUID `json:"trip_id"`
	DriverID  uuid.UUID `json:"driver_id"`
	Amount    int       `json:"amount"`
	Currency  string    `json:"currency"`
	PaidAt    time.Time `json:"paid_at"`
}

// DriverPresenceData is emitted on driver online/offline toggles.
type DriverPresenceData struct {
	DriverID  uuid.UUID `json:"driver_id"`
	Online    bool      `json:"online"`
	ChangedAt time.Time `json:"changed_at"`
}
