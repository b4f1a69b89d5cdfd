package hazards

import (
	"github.com/gin-gonic/gin"

	"github.com/mishwari/taxi-dispatch/pkg/common"
	"github.com/mishwari/taxi-dispatch/pkg/middleware"
	"github.com/mishwari/taxi-dispatch/pkg/models"
)

// Handler handles HTTP requests for road hazards
type Handler struct {
	service *Service
}

// NewHandler creates a new hazards handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Report handles POST /hazards
func (h *Handler) Report(c *gin.Context) {
	reporterID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	var req models.ReportHazardInput
	if !common.BindJSON(c, &req) {
		return
	}

	hazard, err := h.service.Report(c.Request.Context(), reporterID, &req)
	if common.HandleServiceError(c, err, "failed to report hazard") {
		return
	}

	common.CreatedResponse(c, hazard)
}

// ListActive handles GET /hazards
func (h *Handler) ListActive(c *gin.Context) {
	hazards, err := h.service.ListActive(c.Request.Context())
	if common.HandleServiceError(c, err, "failed to list hazards") {
		return
	}

	common.SuccessResponse(c, hazards)
}

// Deactivate handles DELETE /hazards/:id
func (h *Handler) Deactivate(c *gin.Context) {
	hazardID, ok := common.ParseUUIDParam(c, "id", "hazard ID")
	if !ok {
		return
	}

	err := h.service.Deactivate(c.Request.Context(), hazardID)
	if common.HandleServiceError(c, err, "failed to deactivate hazard") {
		return
	}

	common.SuccessResponse(c, gin.H{"deactivated": true})
}

// RegisterRoutes registers hazard routes on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/hazards")
	{
		g.POST("", middleware.RequireRole(models.RoleDriver), h.Report)
		g.GET("", h.ListActive)
		g.DELETE("/:id", middleware.RequireManager(), h.Deactivate)
	}
}
