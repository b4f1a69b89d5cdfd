package trips

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

// ErrTripNotFound is returned when no trip exists for the given id.
var ErrTripNotFound = errors.New("trip not found")

const tripColumns = `
	id, request_id, passenger_id, driver_id, pickup_latitude, pickup_longitude,
	dropoff_latitude, dropoff_longitude, estimated_distance_km,
	estimated_duration_min, estimated_price_ils, status, payment_method,
	fare_amount, payment_status, paid_at, created_at, accepted_at, arrived_at,
	started_at, completed_at, cancelled_at, cancellation_reason, cancelled_by,
	rating, rating_comment, updated_at
`

// Repository handles database operations for trips and offers
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new trips repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanTrip(row pgx.Row) (*models.Trip, error) {
	trip := &models.Trip{}
	err := row.Scan(
		&trip.ID,
		&trip.RequestID,
		&trip.PassengerID,
		&trip.DriverID,
		&trip.PickupLatitude,
		&trip.PickupLongitude,
		&trip.DropoffLatitude,
		&trip.DropoffLongitude,
		&trip.EstimatedDistanceKm,
		&trip.EstimatedDurationMin,
		&trip.EstimatedPriceIls,
		&trip.Status,
		&trip.PaymentMethod,
		&trip.FareAmount,
		&trip.PaymentStatus,
		&trip.PaidAt,
		&trip.CreatedAt,
		&trip.AcceptedAt,
		&trip.ArrivedAt,
		&trip.StartedAt,
		&trip.CompletedAt,
		&trip.CancelledAt,
		&trip.CancellationReason,
		&trip.CancelledBy,
		&trip.Rating,
		&trip.RatingComment,
		&trip.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTripNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan trip: %w", err)
	}
	return trip, nil
}

// GetByID retrieves a trip by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`
	return scanTrip(r.db.QueryRow(ctx, query, id))
}

// GetOffer retrieves the offer presented to a driver for a trip.
func (r *Repository) GetOffer(ctx context.Context, driverID, tripID uuid.UUID) (*models.DriverOffer, error) {
	query := `
		SELECT driver_id, trip_id, status, expires_at, created_at, updated_at
		FROM driver_offers
		WHERE driver_id = $1 AND trip_id = $2
	`

	offer := &models.DriverOffer{}
	err := r.db.QueryRow(ctx, query, driverID, tripID).Scan(
		&offer.DriverID,
		&offer.TripID,
		&offer.Status,
		&offer.ExpiresAt,
		&offer.CreatedAt,
		&offer.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTripNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get offer: %w", err)
	}

	return offer, nil
}

// AcceptOffer atomically accepts a pending, unexpired offer and moves the trip
// pending → accepted in one transaction. Returns false when the guard fails:
// the offer expired, was withdrawn, or the trip already left pending.
func (r *Repository) AcceptOffer(ctx context.Context, tripID, driverID uuid.UUID) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin accept: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()

	tag, err := tx.Exec(ctx, `
		UPDATE driver_offers
		SET status = $1, updated_at = $2
		WHERE driver_id = $3 AND trip_id = $4 AND status = $5 AND expires_at > $2
	`, models.OfferStatusAccepted, now, driverID, tripID, models.OfferStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to accept offer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	tag, err = tx.Exec(ctx, `
		UPDATE trips
		SET status = $1, accepted_at = $2, updated_at = $2
		WHERE id = $3 AND driver_id = $4 AND status = $5
	`, models.TripStatusAccepted, now, tripID, driverID, models.TripStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to accept trip: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit accept: %w", err)
	}
	return true, nil
}

// Progress atomically moves a trip along a single caller-driven edge,
// guarded on the expected pre-state and the owning driver. The timestamp
// column for the target status is stamped in the same statement.
func (r *Repository) Progress(ctx context.Context, tripID, driverID uuid.UUID, from, to models.TripStatus) (bool, error) {
	var stampColumn string
	switch to {
	case models.TripStatusDriverArrived:
		stampColumn = "arrived_at"
	case models.TripStatusInProgress:
		stampColumn = "started_at"
	default:
		return false, fmt.Errorf("progress does not handle transition to %s", to)
	}

	query := fmt.Sprintf(`
		UPDATE trips
		SET status = $1, %s = $2, updated_at = $2
		WHERE id = $3 AND driver_id = $4 AND status = $5
	`, stampColumn)

	tag, err := r.db.Exec(ctx, query, to, time.Now(), tripID, driverID, from)
	if err != nil {
		return false, fmt.Errorf("failed to progress trip: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Complete atomically finishes an in_progress trip: the trip goes to
// completed with a pending cash payment, the idempotent payment record is
// created, and the driver's claim is released. One transaction, guarded on
// the pre-state.
func (r *Repository) Complete(ctx context.Context, tripID, driverID uuid.UUID) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin complete: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()

	trip, err := scanTrip(tx.QueryRow(ctx, `
		UPDATE trips
		SET status = $1, completed_at = $2, updated_at = $2, payment_status = $3
		WHERE id = $4 AND driver_id = $5 AND status = $6
		RETURNING `+tripColumns+`
	`, models.TripStatusCompleted, now, models.PaymentStatusPending,
		tripID, driverID, models.TripStatusInProgress))
	if errors.Is(err, ErrTripNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to complete trip: %w", err)
	}

	// Deterministic id makes retried completions write at most one record.
	_, err = tx.Exec(ctx, `
		INSERT INTO payments (id, trip_id, passenger_id, driver_id, amount, currency, method, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, models.PaymentID(tripID), tripID, trip.PassengerID, driverID,
		trip.FareAmount, models.CurrencyILS, models.PaymentMethodCash, models.PaymentRecordPending)
	if err != nil {
		return false, fmt.Errorf("failed to create payment record: %w", err)
	}

	if err := releaseDriver(ctx, tx, driverID, tripID, now); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit complete: %w", err)
	}
	return true, nil
}

// Terminate atomically drives a trip into a terminal cancellation state from
// any of the allowed pre-states, settles a still-pending offer into offerTo,
// and releases the driver's claim.
func (r *Repository) Terminate(ctx context.Context, tripID uuid.UUID, to models.TripStatus, actor models.CancellationActor, reason string, offerTo models.OfferStatus, allowedFrom []models.TripStatus) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin terminate: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()

	trip, err := scanTrip(tx.QueryRow(ctx, `
		UPDATE trips
		SET status = $1, cancelled_at = $2, updated_at = $2, cancellation_reason = $3, cancelled_by = $4
		WHERE id = $5 AND status = ANY($6)
		RETURNING `+tripColumns+`
	`, to, now, reason, string(actor), tripID, statusStrings(allowedFrom)))
	if errors.Is(err, ErrTripNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to terminate trip: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE driver_offers
		SET status = $1, updated_at = $2
		WHERE trip_id = $3 AND status = $4
	`, offerTo, now, tripID, models.OfferStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to settle offer: %w", err)
	}

	if err := releaseDriver(ctx, tx, trip.DriverID, tripID, now); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit terminate: %w", err)
	}
	return true, nil
}

// releaseDriver frees the driver claimed by the given trip. Availability
// follows presence: an offline driver stays out of matching.
func releaseDriver(ctx context.Context, tx pgx.Tx, driverID, tripID uuid.UUID, now time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE drivers
		SET current_trip_id = NULL, is_available = is_online, updated_at = $1
		WHERE id = $2 AND current_trip_id = $3
	`, now, driverID, tripID)
	if err != nil {
		return fmt.Errorf("failed to release driver: %w", err)
	}
	return nil
}

// SetRating records the passenger's rating on a completed trip, once.
func (r *Repository) SetRating(ctx context.Context, tripID, passengerID uuid.UUID, rating int, comment *string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE trips
		SET rating = $1, rating_comment = $2, updated_at = $3
		WHERE id = $4 AND passenger_id = $5 AND status = $6 AND rating IS NULL
	`, rating, comment, time.Now(), tripID, passengerID, models.TripStatusCompleted)
	if err != nil {
		return false, fmt.Errorf("failed to set rating: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByPassenger returns the passenger's trips, newest first.
func (r *Repository) ListByPassenger(ctx context.Context, passengerID uuid.UUID, limit, offset int) ([]*models.Trip, int64, error) {
	return r.list(ctx, "passenger_id", passengerID, limit, offset)
}

// ListByDriver returns the driver's trips, newest first.
func (r *Repository) ListByDriver(ctx context.Context, driverID uuid.UUID, limit, offset int) ([]*models.Trip, int64, error) {
	return r.list(ctx, "driver_id", driverID, limit, offset)
}

func (r *Repository) list(ctx context.Context, column string, id uuid.UUID, limit, offset int) ([]*models.Trip, int64, error) {
	var total int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM trips WHERE %s = $1`, column)
	if err := r.db.QueryRow(ctx, countQuery, id).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count trips: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM trips
		WHERE %s = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, tripColumns, column)

	rows, err := r.db.Query(ctx, query, id, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list trips: %w", err)
	}
	defer rows.Close()

	var result []*models.Trip
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, trip)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate trips: %w", err)
	}

	return result, total, nil
}

// GetActiveByDriver returns the driver's current active trip, if any.
func (r *Repository) GetActiveByDriver(ctx context.Context, driverID uuid.UUID) (*models.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE driver_id = $1 AND status = ANY($2)`
	return scanTrip(r.db.QueryRow(ctx, query, driverID, statusStrings(models.ActiveTripStatuses)))
}

func statusStrings(statuses []models.TripStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
