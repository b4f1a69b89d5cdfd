package matching

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

// ErrRequestNotFound is returned when no trip request exists for the id.
var ErrRequestNotFound = errors.New("trip request not found")

// Repository handles database operations for trip requests and the claim
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new matching repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateRequest persists a new open trip request.
func (r *Repository) CreateRequest(ctx context.Context, req *models.TripRequest) error {
	query := `
		INSERT INTO trip_requests (
			id, passenger_id, pickup_latitude, pickup_longitude,
			dropoff_latitude, dropoff_longitude, estimated_distance_km,
			estimated_duration_min, estimated_price_ils, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		req.ID,
		req.PassengerID,
		req.PickupLatitude,
		req.PickupLongitude,
		req.DropoffLatitude,
		req.DropoffLongitude,
		req.EstimatedDistanceKm,
		req.EstimatedDurationMin,
		req.EstimatedPriceIls,
		req.Status,
	).Scan(&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create trip request: %w", err)
	}

	return nil
}

// GetRequest retrieves a trip request by ID
func (r *Repository) GetRequest(ctx context.Context, id uuid.UUID) (*models.TripRequest, error) {
	query := `
		SELECT id, passenger_id, pickup_latitude, pickup_longitude,
			   dropoff_latitude, dropoff_longitude, estimated_distance_km,
			   estimated_duration_min, estimated_price_ils, status,
			   matched_driver_id, matched_trip_id, matched_at, expiry_reason,
			   created_at, updated_at
		FROM trip_requests
		WHERE id = $1
	`

	req := &models.TripRequest{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&req.ID,
		&req.PassengerID,
		&req.PickupLatitude,
		&req.PickupLongitude,
		&req.DropoffLatitude,
		&req.DropoffLongitude,
		&req.EstimatedDistanceKm,
		&req.EstimatedDurationMin,
		&req.EstimatedPriceIls,
		&req.Status,
		&req.MatchedDriverID,
		&req.MatchedTripID,
		&req.MatchedAt,
		&req.ExpiryReason,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip request: %w", err)
	}

	return req, nil
}

// CountActiveTripsByPassenger counts the passenger's live trips plus open
// requests; both hold a slot against the pilot cap.
func (r *Repository) CountActiveTripsByPassenger(ctx context.Context, passengerID uuid.UUID) (int, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM trips
			 WHERE passenger_id = $1 AND status = ANY($2))
			+
			(SELECT COUNT(*) FROM trip_requests
			 WHERE passenger_id = $1 AND status = 'open')
	`

	statuses := make([]string, len(models.ActiveTripStatuses))
	for i, s := range models.ActiveTripStatuses {
		statuses[i] = string(s)
	}

	var count int
	if err := r.db.QueryRow(ctx, query, passengerID, statuses).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active trips: %w", err)
	}

	return count, nil
}

// ClaimDriver atomically claims an available driver for a new trip: the
// driver row is flipped unavailable with a guard, and the trip, its offer,
// and the request's matched marker are written in the same transaction.
// Returns false without error when another claim won the driver or the
// request already left open. On success req is updated in place to mirror
// the persisted matched state.
func (r *Repository) ClaimDriver(ctx context.Context, req *models.TripRequest, driverID uuid.UUID, offerExpiry time.Time) (*models.Trip, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin claim: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	tripID := uuid.New()

	// The guard is the whole race resolution: exactly one transaction flips
	// the driver from available to claimed.
	tag, err := tx.Exec(ctx, `
		UPDATE drivers
		SET is_available = FALSE, current_trip_id = $1, updated_at = $2
		WHERE id = $3 AND is_online AND is_available AND current_trip_id IS NULL
	`, tripID, now, driverID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to claim driver: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, false, nil
	}

	trip := &models.Trip{
		ID:                   tripID,
		RequestID:            req.ID,
		PassengerID:          req.PassengerID,
		DriverID:             driverID,
		PickupLatitude:       req.PickupLatitude,
		PickupLongitude:      req.PickupLongitude,
		DropoffLatitude:      req.DropoffLatitude,
		DropoffLongitude:     req.DropoffLongitude,
		EstimatedDistanceKm:  req.EstimatedDistanceKm,
		EstimatedDurationMin: req.EstimatedDurationMin,
		EstimatedPriceIls:    req.EstimatedPriceIls,
		Status:               models.TripStatusPending,
		PaymentMethod:        models.PaymentMethodCash,
		FareAmount:           req.EstimatedPriceIls,
		PaymentStatus:        models.PaymentStatusPending,
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO trips (
			id, request_id, passenger_id, driver_id, pickup_latitude,
			pickup_longitude, dropoff_latitude, dropoff_longitude,
			estimated_distance_km, estimated_duration_min, estimated_price_ils,
			status, payment_method, fare_amount, payment_status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at
	`,
		trip.ID, trip.RequestID, trip.PassengerID, trip.DriverID,
		trip.PickupLatitude, trip.PickupLongitude, trip.DropoffLatitude,
		trip.DropoffLongitude, trip.EstimatedDistanceKm, trip.EstimatedDurationMin,
		trip.EstimatedPriceIls, trip.Status, trip.PaymentMethod,
		trip.FareAmount, trip.PaymentStatus,
	).Scan(&trip.CreatedAt, &trip.UpdatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create trip: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO driver_offers (driver_id, trip_id, status, expires_at)
		VALUES ($1, $2, $3, $4)
	`, driverID, tripID, models.OfferStatusPending, offerExpiry)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create offer: %w", err)
	}

	tag, err = tx.Exec(ctx, `
		UPDATE trip_requests
		SET status = $1, matched_driver_id = $2, matched_trip_id = $3,
			matched_at = $4, updated_at = $4
		WHERE id = $5 AND status = $6
	`, models.RequestStatusMatched, driverID, tripID, now, req.ID, models.RequestStatusOpen)
	if err != nil {
		return nil, false, fmt.Errorf("failed to mark request matched: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Request expired or was cancelled while we were claiming.
		return nil, false, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit claim: %w", err)
	}

	req.Status = models.RequestStatusMatched
	req.MatchedDriverID = &trip.DriverID
	req.MatchedTripID = &trip.ID
	req.MatchedAt = &now
	req.UpdatedAt = now

	return trip, true, nil
}
