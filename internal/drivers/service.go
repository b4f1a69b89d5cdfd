// Package drivers manages driver presence and position for dispatch.
// Availability is owned by the trip lifecycle: presence toggles here never
// release or steal a claim.
package drivers

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mishwari/taxi-dispatch/pkg/common"
	"github.com/mishwari/taxi-dispatch/pkg/eventbus"
	"github.com/mishwari/taxi-dispatch/pkg/geo"
	"github.com/mishwari/taxi-dispatch/pkg/logger"
	"github.com/mishwari/taxi-dispatch/pkg/models"
	"github.com/mishwari/taxi-dispatch/pkg/validation"
)

// Store abstracts driver persistence for testing.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Driver, error)
	SetOnline(ctx context.Context, id uuid.UUID) (*models.Driver, error)
	SetOffline(ctx context.Context, id uuid.UUID) (*models.Driver, error)
	UpdateLocation(ctx context.Context, id uuid.UUID, lat, lng float64, cell string) error
}

// Service handles driver presence business logic
type Service struct {
	store  Store
	events eventbus.Publisher
}

// NewService creates a new drivers service
func NewService(store Store, events eventbus.Publisher) *Service {
	return &Service{store: store, events: events}
}

// GoOnline marks the driver as on shift.
func (s *Service) GoOnline(ctx context.Context, driverID uuid.UUID) (*models.Driver, error) {
	driver, err := s.store.SetOnline(ctx, driverID)
	if err != nil {
		return nil, common.NewInternalError("failed to go online", err)
	}

	s.publishPresence(ctx, driverID, true)

	logger.InfoContext(ctx, "driver online",
		zap.String("driver_id", driverID.String()),
		zap.Bool("available", driver.IsAvailable),
	)

	return driver, nil
}

// GoOffline ends the driver's shift. A driver with an active trip keeps the
// claim; they drop out of matching but the trip runs to its terminal state.
func (s *Service) GoOffline(ctx context.Context, driverID uuid.UUID) (*models.Driver, error) {
	driver, err := s.store.SetOffline(ctx, driverID)
	if errors.Is(err, ErrDriverNotFound) {
		return nil, common.NewNotFoundError("driver not found", err)
	}
	if err != nil {
		return nil, common.NewInternalError("failed to go offline", err)
	}

	s.publishPresence(ctx, driverID, false)

	if driver.CurrentTripID != nil {
		logger.WarnContext(ctx, "driver went offline mid-trip",
			zap.String("driver_id", driverID.String()),
			zap.String("trip_id", driver.CurrentTripID.String()),
		)
	}

	return driver, nil
}

// UpdateLocation ingests a position report and derives the driver's H3 cell.
func (s *Service) UpdateLocation(ctx context.Context, driverID uuid.UUID, req *models.LocationUpdateRequest) error {
	if !validation.ValidCoordinate(req.Latitude, req.Longitude) {
		return common.NewInvalidArgumentError("coordinates out of range")
	}

	cell := geo.DriverCell(req.Latitude, req.Longitude)

	err := s.store.UpdateLocation(ctx, driverID, req.Latitude, req.Longitude, cell)
	if errors.Is(err, ErrDriverNotFound) {
		return common.NewNotFoundError("driver not found, go online first", err)
	}
	if err != nil {
		return common.NewInternalError("failed to update location", err)
	}

	return nil
}

// GetState returns the driver's current dispatch state.
func (s *Service) GetState(ctx context.Context, driverID uuid.UUID) (*models.Driver, error) {
	driver, err := s.store.GetByID(ctx, driverID)
	if errors.Is(err, ErrDriverNotFound) {
		return nil, common.NewNotFoundError("driver not found", err)
	}
	if err != nil {
		return nil, common.NewInternalError("failed to get driver state", err)
	}

	return driver, nil
}

func (s *Service) publishPresence(ctx context.Context, driverID uuid.UUID, online bool) {
	if s.events == nil {
		return
	}
	_ = s.events.Publish(ctx, eventbus.SubjectDriverPresence, eventbus.DriverPresenceData{
		DriverID:  driverID,
		Online:    online,
		ChangedAt: time.Now().UTC(),
	})
}
