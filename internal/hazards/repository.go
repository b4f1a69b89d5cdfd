package hazards

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mishwari/taxi-dispatch/pkg/models"
)

// ErrHazardNotFound is returned when no hazard exists for the given id.
var ErrHazardNotFound = errors.New("hazard not found")

// Repository handles database operations for road hazards
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new hazards repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a hazard report.
func (r *Repository) Create(ctx context.Context, hazard *models.RoadHazard) error {
	query := `
		INSERT INTO road_hazards (id, reported_by, kind, latitude, longitude, cell, active, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query,
		hazard.ID,
		hazard.ReportedBy,
		hazard.Kind,
		hazard.Latitude,
		hazard.Longitude,
		hazard.Cell,
		hazard.Active,
		hazard.ExpiresAt,
	).Scan(&hazard.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create hazard: %w", err)
	}

	return nil
}

// ListActive returns hazards that are active and not yet expired.
func (r *Repository) ListActive(ctx context.Context) ([]*models.RoadHazard, error) {
	query := `
		SELECT id, reported_by, kind, latitude, longitude, cell, active, created_at, expires_at
		FROM road_hazards
		WHERE active AND expires_at > $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to list hazards: %w", err)
	}
	defer rows.Close()

	var result []*models.RoadHazard
	for rows.Next() {
		hazard := &models.RoadHazard{}
		if err := rows.Scan(
			&hazard.ID,
			&hazard.ReportedBy,
			&hazard.Kind,
			&hazard.Latitude,
			&hazard.Longitude,
			&hazard.Cell,
			&hazard.Active,
			&hazard.CreatedAt,
			&hazard.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan hazard: %w", err)
		}
		result = append(result, hazard)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate hazards: %w", err)
	}

	return result, nil
}

// ActiveInCells returns active hazards whose cell is in the given set.
func (r *Repository) ActiveInCells(ctx context.Context, cells []string) ([]*models.RoadHazard, error) {
	if len(cells) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, reported_by, kind, latitude, longitude, cell, active, created_at, expires_at
		FROM road_hazards
		WHERE active AND expires_at > $1 AND cell = ANY($2)
	`

	rows, err := r.db.Query(ctx, query, time.Now(), cells)
	if err != nil {
		return nil, fmt.Errorf("failed to query hazards by cell: %w", err)
	}
	defer rows.Close()

	var result []*models.RoadHazard
	for rows.Next() {
		hazard := &models.RoadHazard{}
		if err := rows.Scan(
			&hazard.ID,
			&hazard.ReportedBy,
			&hazard.Kind,
			&hazard.Latitude,
			&hazard.Longitude,
			&hazard.Cell,
			&hazard.Active,
			&hazard.CreatedAt,
			&hazard.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan hazard: %w", err)
		}
		result = append(result, hazard)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate hazards: %w", err)
	}

	return result, nil
}

// Deactivate clears the active bit on a hazard.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE road_hazards SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate hazard: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrHazardNotFound
	}
	return nil
}
