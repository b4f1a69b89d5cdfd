package drivers

import (
	"github.com/gin-gonic/gin"

	"github.com/mishwari/taxi-dispatch/pkg/common"
	"github.com/mishwari/taxi-dispatch/pkg/middleware"
	"github.com/mishwari/taxi-dispatch/pkg/models"
)

// Handler handles HTTP requests for driver presence
type Handler struct {
	service *Service
}

// NewHandler creates a new drivers handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GoOnline handles POST /drivers/online
func (h *Handler) GoOnline(c *gin.Context) {
	driverID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	driver, err := h.service.GoOnline(c.Request.Context(), driverID)
	if common.HandleServiceError(c, err, "failed to go online") {
		return
	}

	common.SuccessResponse(c, driver)
}

// GoOffline handles POST /drivers/offline
func (h *Handler) GoOffline(c *gin.Context) {
	driverID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	driver, err := h.service.GoOffline(c.Request.Context(), driverID)
	if common.HandleServiceError(c, err, "failed to go offline") {
		return
	}

	common.SuccessResponse(c, driver)
}

// UpdateLocation handles POST /drivers/location
func (h *Handler) UpdateLocation(c *gin.Context) {
	driverID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	var req models.LocationUpdateRequest
	if !common.BindJSON(c, &req) {
		return
	}

	err := h.service.UpdateLocation(c.Request.Context(), driverID, &req)
	if common.HandleServiceError(c, err, "failed to update location") {
		return
	}

	common.SuccessResponse(c, gin.H{"updated": true})
}

// GetMe handles GET /drivers/me
func (h *Handler) GetMe(c *gin.Context) {
	driverID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	driver, err := h.service.GetState(c.Request.Context(), driverID)
	if common.HandleServiceError(c, err, "failed to get driver state") {
		return
	}

	common.SuccessResponse(c, driver)
}

// RegisterRoutes registers driver routes on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/drivers")
	g.Use(middleware.RequireRole(models.RoleDriver))
	{
		g.POST("/online", h.GoOnline)
		g.POST("/offline", h.GoOffline)
		g.POST("/location", h.UpdateLocation)
		g.GET("/me", h.GetMe)
	}
}
