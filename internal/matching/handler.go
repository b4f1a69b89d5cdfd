package matching

import (
	"github.com/gin-gonic/gin"

	"github.com/mishwari/taxi-dispatch/pkg/common"
	"github.com/mishwari/taxi-dispatch/pkg/middleware"
	"github.com/mishwari/taxi-dispatch/pkg/models"
)

// Handler handles HTTP requests for trip admission
type Handler struct {
	service *Service
}

// NewHandler creates a new matching handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RequestTrip handles POST /trips/request
func (h *Handler) RequestTrip(c *gin.Context) {
	passengerID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	var req models.RequestTripInput
	if !common.BindJSON(c, &req) {
		return
	}

	result, err := h.service.RequestTrip(c.Request.Context(), passengerID, &req)
	if common.HandleServiceError(c, err, "failed to request trip") {
		return
	}

	common.CreatedResponse(c, result)
}

// GetRequest handles GET /trips/request/:id, the polling endpoint for a
// request still in searching state.
func (h *Handler) GetRequest(c *gin.Context) {
	passengerID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	requestID, ok := common.ParseUUIDParam(c, "id", "request ID")
	if !ok {
		return
	}

	req, err := h.service.GetRequest(c.Request.Context(), requestID, passengerID)
	if common.HandleServiceError(c, err, "failed to get trip request") {
		return
	}

	common.SuccessResponse(c, req)
}

// RegisterRoutes registers admission routes on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/trips/request", middleware.RequireRole(models.RolePassenger), h.RequestTrip)
	rg.GET("/trips/request/:id", middleware.RequireRole(models.RolePassenger), h.GetRequest)
}
