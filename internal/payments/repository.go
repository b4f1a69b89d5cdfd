package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mishwari/taxi-dispatch/pkg/models"
)

// ErrPaymentNotFound is returned when no payment record exists for the trip.
var ErrPaymentNotFound = errors.New("payment not found")

// Repository handles database operations for payments
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new payments repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetByTripID retrieves the payment record for a trip.
func (r *Repository) GetByTripID(ctx context.Context, tripID uuid.UUID) (*models.Payment, error) {
	query := `
		SELECT id, trip_id, passenger_id, driver_id, amount, currency, method,
			   status, created_at, updated_at
		FROM payments
		WHERE trip_id = $1
	`

	payment := &models.Payment{}
	err := r.db.QueryRow(ctx, query, tripID).Scan(
		&payment.ID,
		&payment.TripID,
		&payment.PassengerID,
		&payment.DriverID,
		&payment.Amount,
		&payment.Currency,
		&payment.Method,
		&payment.Status,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return payment, nil
}

// ConfirmCash atomically settles a completed trip's cash payment: the trip's
// payment_status and the payment record flip to paid in one transaction,
// guarded so a payment settles exactly once.
func (r *Repository) ConfirmCash(ctx context.Context, tripID, driverID uuid.UUID) (*models.Payment, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin confirm: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()

	tag, err := tx.Exec(ctx, `
		UPDATE trips
		SET payment_status = $1, paid_at = $2, updated_at = $2
		WHERE id = $3 AND driver_id = $4 AND status = $5 AND payment_status = $6
	`, models.PaymentStatusPaid, now, tripID, driverID,
		models.TripStatusCompleted, models.PaymentStatusPending)
	if err != nil {
		return nil, false, fmt.Errorf("failed to mark trip paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, false, nil
	}

	payment := &models.Payment{}
	err = tx.QueryRow(ctx, `
		UPDATE payments
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
		RETURNING id, trip_id, passenger_id, driver_id, amount, currency,
				  method, status, created_at, updated_at
	`, models.PaymentRecordPaid, now, models.PaymentID(tripID), models.PaymentRecordPending).Scan(
		&payment.ID,
		&payment.TripID,
		&payment.PassengerID,
		&payment.DriverID,
		&payment.Amount,
		&payment.Currency,
		&payment.Method,
		&payment.Status,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		// Trip and payment disagree; roll back rather than settle half.
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to mark payment paid: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit confirm: %w", err)
	}

	return payment, true, nil
}
