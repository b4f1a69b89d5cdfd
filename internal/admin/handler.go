// Package admin exposes the manager controls: the trips kill switch, the
// other feature flags, and the force-cancel override. Every route requires a
// managerial role.
package admin

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mishwari/taxi-dispatch/pkg/common"
	"github.com/mishwari/taxi-dispatch/pkg/middleware"
	"github.com/mishwari/taxi-dispatch/pkg/models"
)

// FlagWriter toggles feature flags and reads current config.
type FlagWriter interface {
	Get(ctx context.Context) *models.SystemConfig
	SetFlag(ctx context.Context, flag string, enabled bool, updatedBy uuid.UUID) error
}

// TripForceCanceller terminates any active trip by manager override.
type TripForceCanceller interface {
	ForceCancel(ctx context.Context, tripID, managerID uuid.UUID) (*models.Trip, error)
}

// Handler handles HTTP requests for manager controls
type Handler struct {
	flags FlagWriter
	trips TripForceCanceller
}

// NewHandler creates a new admin handler
func NewHandler(flags FlagWriter, trips TripForceCanceller) *Handler {
	return &Handler{flags: flags, trips: trips}
}

// toggleInput is the body for flag toggles
type toggleInput struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// GetConfig handles GET /admin/config
func (h *Handler) GetConfig(c *gin.Context) {
	common.SuccessResponse(c, h.flags.Get(c.Request.Context()))
}

// SetTripsEnabled handles PUT /admin/config/trips
func (h *Handler) SetTripsEnabled(c *gin.Context) {
	h.setFlag(c, models.FlagTrips)
}

// SetFlag handles PUT /admin/config/flags/:flag
func (h *Handler) SetFlag(c *gin.Context) {
	h.setFlag(c, c.Param("flag"))
}

func (h *Handler) setFlag(c *gin.Context, flag string) {
	managerID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	var req toggleInput
	if !common.BindJSON(c, &req) {
		return
	}

	err := h.flags.SetFlag(c.Request.Context(), flag, *req.Enabled, managerID)
	if common.HandleServiceError(c, err, "failed to update flag") {
		return
	}

	common.SuccessResponse(c, h.flags.Get(c.Request.Context()))
}

// ForceCancelTrip handles POST /admin/trips/:id/force-cancel
func (h *Handler) ForceCancelTrip(c *gin.Context) {
	managerID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	tripID, ok := common.ParseUUIDParam(c, "id", "trip ID")
	if !ok {
		return
	}

	trip, err := h.trips.ForceCancel(c.Request.Context(), tripID, managerID)
	if common.HandleServiceError(c, err, "failed to force-cancel trip") {
		return
	}

	common.SuccessResponse(c, trip)
}

// RegisterRoutes registers manager routes on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/admin")
	g.Use(middleware.RequireManager())
	{
		g.GET("/config", h.GetConfig)
		g.PUT("/config/trips", h.SetTripsEnabled)
		g.PUT("/config/flags/:flag", h.SetFlag)
		g.POST("/trips/:id/force-cancel", h.ForceCancelTrip)
	}
}
