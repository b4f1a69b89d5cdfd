package sweeper

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

// Repository handles database operations for timeout sweeps
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new sweeper repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ListTimedOutRequests returns open requests created before the cutoff.
func (r *Repository) ListTimedOutRequests(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT id FROM trip_requests
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3
	`
	return r.listIDs(ctx, query, models.RequestStatusOpen, cutoff, limit)
}

// ExpireRequest moves an open request to expired, once, recording the
// machine-readable reason.
func (r *Repository) ExpireRequest(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE trip_requests
		SET status = $1, expiry_reason = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`, models.RequestStatusExpired, reason, time.Now(), id, models.RequestStatusOpen)
	if err != nil {
		return false, fmt.Errorf("failed to expire request: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListTripsWithExpiredOffers returns pending trips whose offer lapsed.
func (r *Repository) ListTripsWithExpiredOffers(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT t.id
		FROM trips t
		JOIN driver_offers o ON o.trip_id = t.id
		WHERE t.status = $1 AND o.status = $2 AND o.expires_at <= $3
		ORDER BY o.expires_at
		LIMIT $4
	`
	return r.listIDs(ctx, query, models.TripStatusPending, models.OfferStatusPending, now, limit)
}

// ExpireOfferTrip terminates a pending trip whose offer lapsed: the offer
// goes to expired, the trip to no_driver_available, and the driver is
// released, all in one guarded transaction.
func (r *Repository) ExpireOfferTrip(ctx context.Context, tripID uuid.UUID) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin offer expiry: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()

	tag, err := tx.Exec(ctx, `
		UPDATE driver_offers
		SET status = $1, updated_at = $2
		WHERE trip_id = $3 AND status = $4 AND expires_at <= $2
	`, models.OfferStatusExpired, now, tripID, models.OfferStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to expire offer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	var driverID uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE trips
		SET status = $1, cancelled_at = $2, updated_at = $2,
			cancellation_reason = $3, cancelled_by = $4
		WHERE id = $5 AND status = $6
		RETURNING driver_id
	`, models.TripStatusNoDriverAvailable, now, models.ReasonOfferExpired,
		string(models.CancelledBySystem), tripID, models.TripStatusPending).Scan(&driverID)
	if errors.Is(err, pgx.ErrNoRows) {
		// Trip left pending while we were sweeping; let the new state stand.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to expire trip: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE drivers
		SET current_trip_id = NULL, is_available = is_online, updated_at = $1
		WHERE id = $2 AND current_trip_id = $3
	`, now, driverID, tripID)
	if err != nil {
		return false, fmt.Errorf("failed to release driver: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit offer expiry: %w", err)
	}
	return true, nil
}

// ListNoShowTrips returns accepted trips whose driver never arrived before
// the cutoff.
func (r *Repository) ListNoShowTrips(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT id FROM trips
		WHERE status = $1 AND accepted_at < $2
		ORDER BY accepted_at
		LIMIT $3
	`
	return r.listIDs(ctx, query, models.TripStatusAccepted, cutoff, limit)
}

// CancelNoShow terminates an accepted trip as a driver no-show and releases
// the driver, in one guarded transaction.
func (r *Repository) CancelNoShow(ctx context.Context, tripID uuid.UUID) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin no-show cancel: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()

	var driverID uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE trips
		SET status = $1, cancelled_at = $2, updated_at = $2,
			cancellation_reason = $3, cancelled_by = $4
		WHERE id = $5 AND status = $6
		RETURNING driver_id
	`, models.TripStatusCancelledBySystem, now, models.ReasonDriverNoShow,
		string(models.CancelledBySystem), tripID, models.TripStatusAccepted).Scan(&driverID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to cancel no-show trip: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE drivers
		SET current_trip_id = NULL, is_available = is_online, updated_at = $1
		WHERE id = $2 AND current_trip_id = $3
	`, now, driverID, tripID)
	if err != nil {
		return false, fmt.Errorf("failed to release driver: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit no-show cancel: %w", err)
	}
	return true, nil
}

func (r *Repository) listIDs(ctx context.Context, query string, args ...interface{}) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sweep candidates: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ids: %w", err)
	}

	return ids, nil
}
