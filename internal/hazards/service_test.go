package hazards

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mishwari/taxi-dispatch/pkg/common"
	"github.com/mishwari/taxi-dispatch/pkg/geo"
	"github.com/mishwari/taxi-dispatch/pkg/models"
)

type mockStore struct {
	hazards      []*models.RoadHazard
	createErr    error
	listErr      error
	cellsErr     error
	queriedCells []string
}

func (m *mockStore) Create(ctx context.Context, hazard *models.RoadHazard) error {
	if m.createErr != nil {
		return m.createErr
	}
	hazard.CreatedAt = time.Now()
	m.hazards = append(m.hazards, hazard)
	return nil
}

func (m *mockStore) ListActive(ctx context.Context) ([]*models.RoadHazard, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.hazards, nil
}

func (m *mockStore) ActiveInCells(ctx context.Context, cells []string) ([]*models.RoadHazard, error) {
	if m.cellsErr != nil {
		return nil, m.cellsErr
	}
	m.queriedCells = cells
	set := make(map[string]bool, len(cells))
	for _, c := range cells {
		set[c] = true
	}
	var hit []*models.RoadHazard
	for _, h := range m.hazards {
		if set[h.Cell] {
			hit = append(hit, h)
		}
	}
	return hit, nil
}

func (m *mockStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	for _, h := range m.hazards {
		if h.ID == id {
			h.Active = false
			return nil
		}
	}
	return ErrHazardNotFound
}

type mockFlags struct {
	cfg *models.SystemConfig
}

func (m *mockFlags) Get(ctx context.Context) *models.SystemConfig {
	return m.cfg
}

func enabledFlags() *mockFlags {
	return &mockFlags{cfg: models.DefaultSystemConfig()}
}

func TestReportDerivesCell(t *testing.T) {
	store := &mockStore{}
	svc := NewService(store, enabledFlags())

	hazard, err := svc.Report(context.Background(), uuid.New(), &models.ReportHazardInput{
		Kind:      models.HazardRoadblock,
		Latitude:  31.9038,
		Longitude: 35.2034,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, hazard.Cell)
	assert.True(t, hazard.Active)
	assert.True(t, hazard.ExpiresAt.After(time.Now()))
	require.Len(t, store.hazards, 1)
}

func TestReportDisabledByFlag(t *testing.T) {
	flags := enabledFlags()
	flags.cfg.RoadblocksEnabled = false
	svc := NewService(&mockStore{}, flags)

	_, err := svc.Report(context.Background(), uuid.New(), &models.ReportHazardInput{
		Kind:      models.HazardClosure,
		Latitude:  31.9,
		Longitude: 35.2,
	})

	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.KindServiceDisabled, appErr.Kind)
}

func TestCheckRouteFindsOverlap(t *testing.T) {
	store := &mockStore{}
	svc := NewService(store, enabledFlags())

	// Hazard sits on the midpoint of the route.
	from := geo.Point{Lat: 31.90, Lng: 35.20}
	to := geo.Point{Lat: 31.95, Lng: 35.22}
	store.hazards = append(store.hazards, &models.RoadHazard{
		ID:   uuid.New(),
		Kind: models.HazardCheckpoint,
		Cell: geo.HazardCell(31.925, 35.21),
	})

	hits := svc.CheckRoute(context.Background(), from, to)

	require.Len(t, hits, 1)
	assert.Equal(t, models.HazardCheckpoint, hits[0].Kind)
	assert.NotEmpty(t, store.queriedCells)
}

func TestCheckRouteDegradesOnError(t *testing.T) {
	store := &mockStore{cellsErr: errors.New("timeout")}
	svc := NewService(store, enabledFlags())

	hits := svc.CheckRoute(context.Background(),
		geo.Point{Lat: 31.9, Lng: 35.2},
		geo.Point{Lat: 31.95, Lng: 35.22},
	)

	assert.Nil(t, hits, "hazard lookup failure must not surface to the caller")
}

func TestCheckRouteDisabledByFlag(t *testing.T) {
	flags := enabledFlags()
	flags.cfg.RoadblocksEnabled = false
	store := &mockStore{}
	svc := NewService(store, flags)

	hits := svc.CheckRoute(context.Background(),
		geo.Point{Lat: 31.9, Lng: 35.2},
		geo.Point{Lat: 31.95, Lng: 35.22},
	)

	assert.Nil(t, hits)
	assert.Empty(t, store.queriedCells)
}

func TestDeactivateClearsHazard(t *testing.T) {
	hazard := &models.RoadHazard{ID: uuid.New(), Active: true}
	store := &mockStore{hazards: []*models.RoadHazard{hazard}}
	svc := NewService(store, enabledFlags())

	require.NoError(t, svc.Deactivate(context.Background(), hazard.ID))
	assert.False(t, hazard.Active)

	err := svc.Deactivate(context.Background(), uuid.New())
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.KindNotFound, appErr.Kind)
}

func TestListActiveDisabledReturnsEmpty(t *testing.T) {
	flags := enabledFlags()
	flags.cfg.RoadblocksEnabled = false
	svc := NewService(&mockStore{hazards: []*models.RoadHazard{{ID: uuid.New()}}}, flags)

	hazards, err := svc.ListActive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, hazards)
}
