package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus values for the payments collection
const (
	PaymentRecordPending = "pending"
	PaymentRecordPaid    = "paid"
	PaymentRecordFailed  = "failed"
)

// CurrencyILS is the only currency in the cash-only pilot
const CurrencyILS = "ILS"

// PaymentMethodCash is the only payment method in the pilot
const PaymentMethodCash = "cash"

// Payment is the idempotent payment record created when a trip completes.
// Its id is deterministic so that retried completions write at most once.
type Payment struct {
	ID          string    `json:"id" db:"id"`
	TripID      uuid.UUID `json:"trip_id" db:"trip_id"`
	PassengerID uuid.UUID `json:"passenger_id" db:"passenger_id"`
	DriverID    uuid.UUID `json:"driver_id" db:"driver_id"`
	Amount      int       `json:"amount" db:"amount"`
	Currency    string    `json:"currency" db:"currency"`
	Method      string    `json:"method" db:"method"`
	Status      string    `json:"status" db:"status"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// PaymentID returns the deterministic payment id for a trip.
func PaymentID(tripID uuid.UUID) string {
	return "payment_" + tripID.String()
}
