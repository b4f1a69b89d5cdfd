package models

import (
	"time"

	"github.com/google/uuid"
)

// TripStatus represents the status of a trip
type TripStatus string

const (
	TripStatusPending              TripStatus = "pending"
	TripStatusAccepted             TripStatus = "accepted"
	TripStatusDriverArrived        TripStatus = "driver_arrived"
	TripStatusInProgress           TripStatus = "in_progress"
	TripStatusCompleted            TripStatus = "completed"
	TripStatusCancelledByPassenger TripStatus = "cancelled_by_passenger"
	TripStatusCancelledByDriver    TripStatus = "cancelled_by_driver"
	TripStatusCancelledBySystem    TripStatus = "cancelled_by_system"
	TripStatusNoDriverAvailable    TripStatus = "no_driver_available"
)

// ActiveTripStatuses are the statuses during which the trip owns its driver.
var ActiveTripStatuses = []TripStatus{
	TripStatusPending,
	TripStatusAccepted,
	TripStatusDriverArrived,
	TripStatusInProgress,
}

// IsActive reports whether the status is non-terminal.
func (s TripStatus) IsActive() bool {
	switch s {
	case TripStatusPending, TripStatusAccepted, TripStatusDriverArrived, TripStatusInProgress:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are legal.
func (s TripStatus) IsTerminal() bool {
	return !s.IsActive()
}

// legalTransitions holds every caller-driven edge of the trip state machine.
// Sweeper and manager edges are validated separately since they apply from
// several pre-states.
var legalTransitions = map[TripStatus][]TripStatus{
	TripStatusPending: {
		TripStatusAccepted,
		TripStatusNoDriverAvailable,
		TripStatusCancelledByPassenger,
		TripStatusCancelledByDriver,
		TripStatusCancelledBySystem,
	},
	TripStatusAccepted: {
		TripStatusDriverArrived,
		TripStatusCancelledByPassenger,
		TripStatusCancelledByDriver,
		TripStatusCancelledBySystem,
	},
	TripStatusDriverArrived: {
		TripStatusInProgress,
		TripStatusCancelledBySystem,
	},
	TripStatusInProgress: {
		TripStatusCompleted,
		TripStatusCancelledBySystem,
	},
}

// CanTransition reports whether from → to is a legal state-machine edge.
func CanTransition(from, to TripStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CancellationActor identifies who drove a trip into a cancelled state
type CancellationActor string

const (
	CancelledByPassenger CancellationActor = "passenger"
	CancelledByDriver    CancellationActor = "driver"
	CancelledBySystem    CancellationActor = "system"
)

// Cancellation reasons recorded on system-driven terminations
const (
	ReasonNoDriverFound   = "no_driver_found"
	ReasonDriverNoShow    = "driver_no_show"
	ReasonOfferExpired    = "offer_expired"
	ReasonManagerOverride = "manager_override"
)

// Trip is the authoritative record of a single ride attempt, from creation to
// terminal state. Prices are server-recomputed; the client estimate is never
// trusted.
type Trip struct {
	ID                   uuid.UUID  `json:"id" db:"id"`
	RequestID            uuid.UUID  `json:"request_id" db:"request_id"`
	PassengerID          uuid.UUID  `json:"passenger_id" db:"passenger_id"`
	DriverID             uuid.UUID  `json:"driver_id" db:"driver_id"`
	PickupLatitude       float64    `json:"pickup_latitude" db:"pickup_latitude"`
	PickupLongitude      float64    `json:"pickup_longitude" db:"pickup_longitude"`
	DropoffLatitude      float64    `json:"dropoff_latitude" db:"dropoff_latitude"`
	DropoffLongitude     float64    `json:"dropoff_longitude" db:"dropoff_longitude"`
	EstimatedDistanceKm  float64    `json:"estimated_distance_km" db:"estimated_distance_km"`
	EstimatedDurationMin int        `json:"estimated_duration_min" db:"estimated_duration_min"`
	EstimatedPriceIls    int        `json:"estimated_price_ils" db:"estimated_price_ils"`
	Status               TripStatus `json:"status" db:"status"`
	PaymentMethod        string     `json:"payment_method" db:"payment_method"`
	FareAmount           int        `json:"fare_amount" db:"fare_amount"`
	PaymentStatus        string     `json:"payment_status" db:"payment_status"`
	PaidAt               *time.Time `json:"paid_at,omitempty" db:"paid_at"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	AcceptedAt           *time.Time `json:"accepted_at,omitempty" db:"accepted_at"`
	ArrivedAt            *time.Time `json:"arrived_at,omitempty" db:"arrived_at"`
	StartedAt            *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt          *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CancelledAt          *time.Time `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CancellationReason   *string    `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	CancelledBy          *string    `json:"cancelled_by,omitempty" db:"cancelled_by"`
	Rating               *int       `json:"rating,omitempty" db:"rating"`
	RatingComment        *string    `json:"rating_comment,omitempty" db:"rating_comment"`
	UpdatedAt            time.Time  `json:"updated_at" db:"updated_at"`
}

// PaymentStatusPending / PaymentStatusPaid are the trip-side payment states
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
)

// TripRequestStatus represents the status of a trip request
type TripRequestStatus string

const (
	RequestStatusOpen      TripRequestStatus = "open"
	RequestStatusMatched   TripRequestStatus = "matched"
	RequestStatusExpired   TripRequestStatus = "expired"
	RequestStatusCancelled TripRequestStatus = "cancelled"
)

// TripRequest is the passenger's admission record; it lives only until
// matched, expired or cancelled, and never transitions backwards.
type TripRequest struct {
	ID                   uuid.UUID         `json:"id" db:"id"`
	PassengerID          uuid.UUID         `json:"passenger_id" db:"passenger_id"`
	PickupLatitude       float64           `json:"pickup_latitude" db:"pickup_latitude"`
	PickupLongitude      float64           `json:"pickup_longitude" db:"pickup_longitude"`
	DropoffLatitude      float64           `json:"dropoff_latitude" db:"dropoff_latitude"`
	DropoffLongitude     float64           `json:"dropoff_longitude" db:"dropoff_longitude"`
	EstimatedDistanceKm  float64           `json:"estimated_distance_km" db:"estimated_distance_km"`
	EstimatedDurationMin int               `json:"estimated_duration_min" db:"estimated_duration_min"`
	EstimatedPriceIls    int               `json:"estimated_price_ils" db:"estimated_price_ils"`
	Status               TripRequestStatus `json:"status" db:"status"`
	MatchedDriverID      *uuid.UUID        `json:"matched_driver_id,omitempty" db:"matched_driver_id"`
	MatchedTripID        *uuid.UUID        `json:"matched_trip_id,omitempty" db:"matched_trip_id"`
	MatchedAt            *time.Time        `json:"matched_at,omitempty" db:"matched_at"`
	ExpiryReason         *string           `json:"expiry_reason,omitempty" db:"expiry_reason"`
	CreatedAt            time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at" db:"updated_at"`
}

// OfferStatus represents the status of a driver offer
type OfferStatus string

const (
	OfferStatusPending   OfferStatus = "pending"
	OfferStatusAccepted  OfferStatus = "accepted"
	OfferStatusRejected  OfferStatus = "rejected"
	OfferStatusCancelled OfferStatus = "cancelled"
	OfferStatusExpired   OfferStatus = "expired"
)

// IsTerminal reports whether the offer can no longer change.
func (s OfferStatus) IsTerminal() bool {
	return s != OfferStatusPending
}

// DriverOffer mirrors the invitation presented to exactly one driver for a
// specific trip.
type DriverOffer struct {
	DriverID  uuid.UUID   `json:"driver_id" db:"driver_id"`
	TripID    uuid.UUID   `json:"trip_id" db:"trip_id"`
	Status    OfferStatus `json:"status" db:"status"`
	ExpiresAt time.Time   `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

// TripEstimate is the client-side estimate submitted with a request.
// The server recomputes the price and overrides silently.
type TripEstimate struct {
	DistanceKm  float64 `json:"distance_km" binding:"required,gt=0"`
	DurationMin int     `json:"duration_min" binding:"required,gt=0"`
	PriceIls    int     `json:"price_ils" binding:"gte=0"`
}

// RequestTripInput is the requestTrip payload
type RequestTripInput struct {
	PickupLatitude   float64      `json:"pickup_latitude" binding:"required,latitude"`
	PickupLongitude  float64      `json:"pickup_longitude" binding:"required,longitude"`
	DropoffLatitude  float64      `json:"dropoff_latitude" binding:"required,latitude"`
	DropoffLongitude float64      `json:"dropoff_longitude" binding:"required,longitude"`
	Estimate         TripEstimate `json:"estimate" binding:"required"`
}

// CancelTripInput is the optional cancellation payload
type CancelTripInput struct {
	Reason string `json:"reason,omitempty" binding:"omitempty,max=100"`
}

// RatingInput is the submitRating payload
type RatingInput struct {
	Rating  int     `json:"rating" binding:"required,min=1,max=5"`
	Comment *string `json:"comment,omitempty" binding:"omitempty,max=500"`
}
