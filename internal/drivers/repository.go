package drivers

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

// ErrDriverNotFound is returned when no dispatch row exists for the driver.
var ErrDriverNotFound = errors.New("driver not found")

// Repository handles database operations for driver dispatch state
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new drivers repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetByID retrieves a driver's dispatch state
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Driver, error) {
	query := `
		SELECT id, is_online, is_available, last_latitude, last_longitude,
			   last_location_cell, current_trip_id, updated_at
		FROM drivers
		WHERE id = $1
	`

	driver := &models.Driver{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&driver.ID,
		&driver.IsOnline,
		&driver.IsAvailable,
		&driver.LastLatitude,
		&driver.LastLongitude,
		&driver.LastLocationCell,
		&driver.CurrentTripID,
		&driver.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDriverNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get driver: %w", err)
	}

	return driver, nil
}

// SetOnline marks the driver online, creating the dispatch row on first use.
// Availability follows the claim: a driver coming online mid-trip stays
// unavailable until the trip releases them.
func (r *Repository) SetOnline(ctx context.Context, id uuid.UUID) (*models.Driver, error) {
	query := `
		INSERT INTO drivers (id, is_online, is_available, updated_at)
		VALUES ($1, TRUE, TRUE, $2)
		ON CONFLICT (id) DO UPDATE
		SET is_online    = TRUE,
			is_available = (drivers.current_trip_id IS NULL),
			updated_at   = $2
		RETURNING id, is_online, is_available, last_latitude, last_longitude,
				  last_location_cell, current_trip_id, updated_at
	`

	driver := &models.Driver{}
	err := r.db.QueryRow(ctx, query, id, time.Now()).Scan(
		&driver.ID,
		&driver.IsOnline,
		&driver.IsAvailable,
		&driver.LastLatitude,
		&driver.LastLongitude,
		&driver.LastLocationCell,
		&driver.CurrentTripID,
		&driver.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set driver online: %w", err)
	}

	return driver, nil
}

// SetOffline marks the driver offline and withdraws them from matching.
// An active trip is untouched; the claim on the driver survives going offline.
func (r *Repository) SetOffline(ctx context.Context, id uuid.UUID) (*models.Driver, error) {
	query := `
		UPDATE drivers
		SET is_online = FALSE, is_available = FALSE, updated_at = $2
		WHERE id = $1
		RETURNING id, is_online, is_available, last_latitude, last_longitude,
				  last_location_cell, current_trip_id, updated_at
	`

	driver := &models.Driver{}
	err := r.db.QueryRow(ctx, query, id, time.Now()).Scan(
		&driver.ID,
		&driver.IsOnline,
		&driver.IsAvailable,
		&driver.LastLatitude,
		&driver.LastLongitude,
		&driver.LastLocationCell,
		&driver.CurrentTripID,
		&driver.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDriverNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set driver offline: %w", err)
	}

	return driver, nil
}

// UpdateLocation records the driver's latest position and H3 cell.
func (r *Repository) UpdateLocation(ctx context.Context, id uuid.UUID, lat, lng float64, cell string) error {
	query := `
		UPDATE drivers
		SET last_latitude = $2, last_longitude = $3, last_location_cell = $4, updated_at = $5
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, lat, lng, cell, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update driver location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDriverNotFound
	}

	return nil
}

// ListAvailable returns online, available drivers with a known location.
// The caller ranks them by distance; the pilot fleet is small enough to scan.
func (r *Repository) ListAvailable(ctx context.Context) ([]*models.Driver, error) {
	query := `
		SELECT id, is_online, is_available, last_latitude, last_longitude,
			   last_location_cell, current_trip_id, updated_at
		FROM drivers
		WHERE is_online AND is_available
		  AND last_latitude IS NOT NULL AND last_longitude IS NOT NULL
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list available drivers: %w", err)
	}
	defer rows.Close()

	var result []*models.Driver
	for rows.Next() {
		driver := &models.Driver{}
		if err := rows.Scan(
			&driver.ID,
			&driver.IsOnline,
			&driver.IsAvailable,
			&driver.LastLatitude,
			&driver.LastLongitude,
			&driver.LastLocationCell,
			&driver.CurrentTripID,
			&driver.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan driver: %w", err)
		}
		result = append(result, driver)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate drivers: %w", err)
	}

	return result, nil
}
