package sysconfig

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mishwari/taxi-dispatch/pkg/common"
	"github.com/mishwari/taxi-dispatch/pkg/models"
)

type mockStore struct {
	cfg      *models.SystemConfig
	getErr   error
	setErr   error
	getCalls int
	setCalls int
	lastFlag string
	lastVal  bool
}

func (m *mockStore) Get(ctx context.Context) (*models.SystemConfig, error) {
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	cfg := *m.cfg
	return &cfg, nil
}

func (m *mockStore) SetFlag(ctx context.Context, flag string, enabled bool, updatedBy uuid.UUID) error {
	m.setCalls++
	if m.setErr != nil {
		return m.setErr
	}
	m.lastFlag = flag
	m.lastVal = enabled
	switch flag {
	case models.FlagTrips:
		m.cfg.TripsEnabled = enabled
	case models.FlagRoadblocks:
		m.cfg.RoadblocksEnabled = enabled
	case models.FlagPayments:
		m.cfg.PaymentsEnabled = enabled
	}
	return nil
}

func newTestService(store *mockStore, ttl time.Duration) (*Service, *time.Time) {
	svc := NewService(store, ttl)
	now := time.Now()
	svc.now = func() time.Time { return now }
	return svc, &now
}

func TestGetCachesWithinTTL(t *testing.T) {
	store := &mockStore{cfg: models.DefaultSystemConfig()}
	svc, _ := newTestService(store, 10*time.Second)

	ctx := context.Background()
	first := svc.Get(ctx)
	second := svc.Get(ctx)

	assert.True(t, first.TripsEnabled)
	assert.True(t, second.TripsEnabled)
	assert.Equal(t, 1, store.getCalls, "second read within TTL must come from cache")
}

func TestGetRefreshesAfterTTL(t *testing.T) {
	store := &mockStore{cfg: models.DefaultSystemConfig()}
	svc, now := newTestService(store, 10*time.Second)

	ctx := context.Background()
	svc.Get(ctx)

	store.cfg.TripsEnabled = false
	*now = now.Add(11 * time.Second)

	cfg := svc.Get(ctx)
	assert.False(t, cfg.TripsEnabled)
	assert.Equal(t, 2, store.getCalls)
}

func TestGetFallsBackToStaleOnError(t *testing.T) {
	store := &mockStore{cfg: models.DefaultSystemConfig()}
	store.cfg.TripsEnabled = false
	svc, now := newTestService(store, 10*time.Second)

	ctx := context.Background()
	svc.Get(ctx)

	store.getErr = errors.New("connection refused")
	*now = now.Add(time.Minute)

	cfg := svc.Get(ctx)
	assert.False(t, cfg.TripsEnabled, "stale cache must be served on read failure")
}

func TestGetDefaultsWhenNothingCached(t *testing.T) {
	store := &mockStore{cfg: models.DefaultSystemConfig(), getErr: errors.New("down")}
	svc, _ := newTestService(store, 10*time.Second)

	cfg := svc.Get(context.Background())
	assert.True(t, cfg.TripsEnabled)
	assert.False(t, cfg.PaymentsEnabled)
}

func TestSetFlagInvalidatesCache(t *testing.T) {
	store := &mockStore{cfg: models.DefaultSystemConfig()}
	svc, _ := newTestService(store, time.Hour)

	ctx := context.Background()
	assert.True(t, svc.Get(ctx).TripsEnabled)

	manager := uuid.New()
	require.NoError(t, svc.SetFlag(ctx, models.FlagTrips, false, manager))
	assert.Equal(t, models.FlagTrips, store.lastFlag)
	assert.False(t, store.lastVal)

	// Next read must bypass the still-valid cache window.
	assert.False(t, svc.Get(ctx).TripsEnabled)
}

func TestSetFlagRejectsUnknownFlag(t *testing.T) {
	store := &mockStore{cfg: models.DefaultSystemConfig()}
	svc, _ := newTestService(store, time.Second)

	err := svc.SetFlag(context.Background(), "surge_enabled", true, uuid.New())
	require.Error(t, err)

	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.KindInvalidArgument, appErr.Kind)
	assert.Equal(t, 0, store.setCalls)
}
