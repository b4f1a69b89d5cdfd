// Package hazards tracks driver-reported road obstructions. Hazards are
// advisory only: matching consults them to warn riders, never to refuse work.
package hazards

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mishwari/taxi-dispatch/pkg/common"
	"github.com/mishwari/taxi-dispatch/pkg/geo"
	"github.com/mishwari/taxi-dispatch/pkg/logger"
	"github.com/mishwari/taxi-dispatch/pkg/models"
)

// hazardTTL bounds how long a report stays active without re-confirmation.
const hazardTTL = 4 * time.Hour

// Store abstracts hazard persistence for testing.
type Store interface {
	Create(ctx context.Context, hazard *models.RoadHazard) error
	ListActive(ctx context.Context) ([]*models.RoadHazard, error)
	ActiveInCells(ctx context.Context, cells []string) ([]*models.RoadHazard, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// FlagReader reports whether hazard tracking is enabled.
type FlagReader interface {
	Get(ctx context.Context) *models.SystemConfig
}

// Service handles road hazard business logic
type Service struct {
	store Store
	flags FlagReader
}

// NewService creates a new hazards service
func NewService(store Store, flags FlagReader) *Service {
	return &Service{store: store, flags: flags}
}

// Report records a hazard at the reporter's stated position.
func (s *Service) Report(ctx context.Context, reporterID uuid.UUID, req *models.ReportHazardInput) (*models.RoadHazard, error) {
	if !s.flags.Get(ctx).RoadblocksEnabled {
		return nil, common.NewServiceDisabledError("hazard reporting is currently disabled")
	}

	hazard := &models.RoadHazard{
		ID:         uuid.New(),
		ReportedBy: reporterID,
		Kind:       req.Kind,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		Cell:       geo.HazardCell(req.Latitude, req.Longitude),
		Active:     true,
		ExpiresAt:  time.Now().Add(hazardTTL),
	}

	if err := s.store.Create(ctx, hazard); err != nil {
		return nil, common.NewInternalError("failed to record hazard", err)
	}

	logger.InfoContext(ctx, "road hazard reported",
		zap.String("hazard_id", hazard.ID.String()),
		zap.String("kind", string(hazard.Kind)),
		zap.String("cell", hazard.Cell),
	)

	return hazard, nil
}

// ListActive returns all currently active hazards.
func (s *Service) ListActive(ctx context.Context) ([]*models.RoadHazard, error) {
	if !s.flags.Get(ctx).RoadblocksEnabled {
		return []*models.RoadHazard{}, nil
	}

	hazards, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, common.NewInternalError("failed to list hazards", err)
	}

	return hazards, nil
}

// Deactivate clears a hazard before its TTL lapses. Not gated by the
// roadblocks flag: stale reports must stay clearable during an outage.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	err := s.store.Deactivate(ctx, id)
	if errors.Is(err, ErrHazardNotFound) {
		return common.NewNotFoundError("hazard not found", err)
	}
	if err != nil {
		return common.NewInternalError("failed to deactivate hazard", err)
	}

	logger.InfoContext(ctx, "road hazard deactivated", zap.String("hazard_id", id.String()))
	return nil
}

// CheckRoute returns active hazards overlapping the straight route between
// pickup and dropoff. Errors degrade to no warnings; a hazard lookup must
// never block a trip request.
func (s *Service) CheckRoute(ctx context.Context, from, to geo.Point) []*models.RoadHazard {
	if !s.flags.Get(ctx).RoadblocksEnabled {
		return nil
	}

	cells := geo.RouteCells(from, to)
	hazards, err := s.store.ActiveInCells(ctx, cells)
	if err != nil {
		logger.WarnContext(ctx, "hazard route check failed", zap.Error(err))
		return nil
	}

	return hazards
}
