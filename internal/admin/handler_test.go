package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mishwari/taxi-dispatch/pkg/common"
	"github.com/mishwari/taxi-dispatch/pkg/models"
)

type fakeFlags struct {
	cfg      *models.SystemConfig
	setErr   error
	lastFlag string
	lastVal  bool
}

func (f *fakeFlags) Get(ctx context.Context) *models.SystemConfig { return f.cfg }

func (f *fakeFlags) SetFlag(ctx context.Context, flag string, enabled bool, updatedBy uuid.UUID) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.lastFlag = flag
	f.lastVal = enabled
	if flag == models.FlagTrips {
		f.cfg.TripsEnabled = enabled
	}
	return nil
}

type fakeTrips struct {
	trip *models.Trip
	err  error
}

func (f *fakeTrips) ForceCancel(ctx context.Context, tripID, managerID uuid.UUID) (*models.Trip, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.trip, nil
}

func setupRouter(flags *fakeFlags, trips *fakeTrips, role models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", uuid.New())
		c.Set("user_role", role)
	})
	NewHandler(flags, trips).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func TestSetTripsEnabledKillSwitch(t *testing.T) {
	flags := &fakeFlags{cfg: models.DefaultSystemConfig()}
	r := setupRouter(flags, &fakeTrips{}, models.RoleManager)

	body, _ := json.Marshal(map[string]bool{"enabled": false})
	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/config/trips", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.FlagTrips, flags.lastFlag)
	assert.False(t, flags.lastVal)
}

func TestSetFlagByName(t *testing.T) {
	flags := &fakeFlags{cfg: models.DefaultSystemConfig()}
	r := setupRouter(flags, &fakeTrips{}, models.RoleAdmin)

	body, _ := json.Marshal(map[string]bool{"enabled": true})
	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/config/flags/payments_enabled", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.FlagPayments, flags.lastFlag)
	assert.True(t, flags.lastVal)
}

func TestSetFlagRejectsMissingBody(t *testing.T) {
	flags := &fakeFlags{cfg: models.DefaultSystemConfig()}
	r := setupRouter(flags, &fakeTrips{}, models.RoleManager)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/config/trips", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNonManagerForbidden(t *testing.T) {
	flags := &fakeFlags{cfg: models.DefaultSystemConfig()}
	r := setupRouter(flags, &fakeTrips{}, models.RoleDriver)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/config", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestForceCancelTrip(t *testing.T) {
	tripID := uuid.New()
	trips := &fakeTrips{trip: &models.Trip{ID: tripID, Status: models.TripStatusCancelledBySystem}}
	r := setupRouter(&fakeFlags{cfg: models.DefaultSystemConfig()}, trips, models.RoleManager)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/trips/"+tripID.String()+"/force-cancel", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp common.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestForceCancelTerminalTripPassesThrough(t *testing.T) {
	trips := &fakeTrips{err: common.NewForbiddenError("trip is already terminal: completed")}
	r := setupRouter(&fakeFlags{cfg: models.DefaultSystemConfig()}, trips, models.RoleManager)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/trips/"+uuid.New().String()+"/force-cancel", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
