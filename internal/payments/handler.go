package payments

import (
	"github.com/gin-gonic/gin"

	"github.com/mishwari/taxi-dispatch/pkg/common"
	"github.com/mishwari/taxi-dispatch/pkg/middleware"
	"github.com/mishwari/taxi-dispatch/pkg/models"
)

// Handler handles HTTP requests for payment settlement
type Handler struct {
	service *Service
}

// NewHandler creates a new payments handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ConfirmCash handles POST /trips/:id/confirm-cash
func (h *Handler) ConfirmCash(c *gin.Context) {
	driverID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	tripID, ok := common.ParseUUIDParam(c, "id", "trip ID")
	if !ok {
		return
	}

	payment, err := h.service.ConfirmCash(c.Request.Context(), tripID, driverID)
	if common.HandleServiceError(c, err, "failed to confirm payment") {
		return
	}

	common.SuccessResponse(c, payment)
}

// GetByTrip handles GET /trips/:id/payment
func (h *Handler) GetByTrip(c *gin.Context) {
	callerID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	tripID, ok := common.ParseUUIDParam(c, "id", "trip ID")
	if !ok {
		return
	}
	role, _ := middleware.GetUserRole(c)

	payment, err := h.service.GetByTrip(c.Request.Context(), tripID, callerID, role)
	if common.HandleServiceError(c, err, "failed to get payment") {
		return
	}

	common.SuccessResponse(c, payment)
}

// RegisterRoutes registers payment routes on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/trips/:id/confirm-cash", middleware.RequireRole(models.RoleDriver), h.ConfirmCash)
	rg.GET("/trips/:id/payment", h.GetByTrip)
}
