package sysconfig

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

// Repository handles database operations for the system_config singleton
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new sysconfig repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Get reads the singleton row. A missing row yields the defaults; the row is
// created lazily on first write.
func (r *Repository) Get(ctx context.Context) (*models.SystemConfig, error) {
	query := `
		SELECT trips_enabled, roadblocks_enabled, payments_enabled, updated_at, updated_by
		FROM system_config
		WHERE id = TRUE
	`

	cfg := &models.SystemConfig{}
	err := r.db.QueryRow(ctx, query).Scan(
		&cfg.TripsEnabled,
		&cfg.RoadblocksEnabled,
		&cfg.PaymentsEnabled,
		&cfg.UpdatedAt,
		&cfg.UpdatedBy,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.DefaultSystemConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read system config: %w", err)
	}

	return cfg, nil
}

// SetFlag upserts the singleton row with the given flag value.
func (r *Repository) SetFlag(ctx context.Context, flag string, enabled bool, updatedBy uuid.UUID) error {
	if !models.ValidFlag(flag) {
		return fmt.Errorf("unknown feature flag %q", flag)
	}

	defaults := models.DefaultSystemConfig()

	// Column name is validated against the flag whitelist above.
	query := fmt.Sprintf(`
		INSERT INTO system_config (id, trips_enabled, roadblocks_enabled, payments_enabled, updated_at, updated_by)
		VALUES (TRUE, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET %s = $1, updated_at = $5, updated_by = $6
	`, flag)

	flagged := *defaults
	switch flag {
	case models.FlagTrips:
		flagged.TripsEnabled = enabled
	case models.FlagRoadblocks:
		flagged.RoadblocksEnabled = enabled
	case models.FlagPayments:
		flagged.PaymentsEnabled = enabled
	}

	_, err := r.db.Exec(ctx, query,
		enabled,
		flagged.TripsEnabled,
		flagged.RoadblocksEnabled,
		flagged.PaymentsEnabled,
		time.Now(),
		updatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to set feature flag: %w", err)
	}

	return nil
}
