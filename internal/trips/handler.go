package trips

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mishwari/taxi-dispatch/pkg/common"
	"github.com/mishwari/taxi-dispatch/pkg/middleware"
	"github.com/mishwari/taxi-dispatch/pkg/models"
)

// Handler handles HTTP requests for the trip lifecycle
type Handler struct {
	service *Service
}

// NewHandler creates a new trips handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Get handles GET /trips/:id
func (h *Handler) Get(c *gin.Context) {
	callerID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	tripID, ok := common.ParseUUIDParam(c, "id", "trip ID")
	if !ok {
		return
	}

	role, err := middleware.GetUserRole(c)
	if err != nil {
		common.ErrorResponseWithKind(c, http.StatusUnauthorized, common.KindUnauthenticated, "unauthenticated")
		return
	}

	trip, err := h.service.Get(c.Request.Context(), tripID, callerID, role)
	if common.HandleServiceError(c, err, "failed to get trip") {
		return
	}

	common.SuccessResponse(c, trip)
}

// List handles GET /trips
func (h *Handler) List(c *gin.Context) {
	callerID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	role, _ := middleware.GetUserRole(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	trips, total, err := h.service.ListMine(c.Request.Context(), callerID, role, perPage, (page-1)*perPage)
	if common.HandleServiceError(c, err, "failed to list trips") {
		return
	}

	totalPages := int((total + int64(perPage) - 1) / int64(perPage))
	common.SuccessResponseWithMeta(c, trips, &common.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

// Accept handles POST /trips/:id/accept
func (h *Handler) Accept(c *gin.Context) {
	h.driverTransition(c, h.service.Accept)
}

// Arrived handles POST /trips/:id/arrived
func (h *Handler) Arrived(c *gin.Context) {
	h.driverTransition(c, h.service.Arrived)
}

// Start handles POST /trips/:id/start
func (h *Handler) Start(c *gin.Context) {
	h.driverTransition(c, h.service.Start)
}

// Complete handles POST /trips/:id/complete. The response carries the final
// price explicitly; it equals the fare fixed at creation (no post-trip
// recompute).
func (h *Handler) Complete(c *gin.Context) {
	driverID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	tripID, ok := common.ParseUUIDParam(c, "id", "trip ID")
	if !ok {
		return
	}

	trip, err := h.service.Complete(c.Request.Context(), tripID, driverID)
	if common.HandleServiceError(c, err, "failed to complete trip") {
		return
	}

	common.SuccessResponse(c, gin.H{
		"trip":            trip,
		"final_price_ils": trip.FareAmount,
	})
}

// Active handles GET /trips/active, the driver's current trip lookup.
func (h *Handler) Active(c *gin.Context) {
	driverID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	trip, err := h.service.ActiveForDriver(c.Request.Context(), driverID)
	if common.HandleServiceError(c, err, "failed to get active trip") {
		return
	}

	common.SuccessResponse(c, trip)
}

// Reject handles POST /trips/:id/reject
func (h *Handler) Reject(c *gin.Context) {
	driverID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	tripID, ok := common.ParseUUIDParam(c, "id", "trip ID")
	if !ok {
		return
	}

	err := h.service.Reject(c.Request.Context(), tripID, driverID)
	if common.HandleServiceError(c, err, "failed to reject trip") {
		return
	}

	common.SuccessResponse(c, gin.H{"rejected": true})
}

// Cancel handles POST /trips/:id/cancel
func (h *Handler) Cancel(c *gin.Context) {
	callerID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	tripID, ok := common.ParseUUIDParam(c, "id", "trip ID")
	if !ok {
		return
	}
	role, _ := middleware.GetUserRole(c)

	var req models.CancelTripInput
	if c.Request.ContentLength > 0 && !common.BindJSON(c, &req) {
		return
	}

	trip, err := h.service.Cancel(c.Request.Context(), tripID, callerID, role, req.Reason)
	if common.HandleServiceError(c, err, "failed to cancel trip") {
		return
	}

	common.SuccessResponse(c, trip)
}

// Rate handles POST /trips/:id/rating
func (h *Handler) Rate(c *gin.Context) {
	passengerID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	tripID, ok := common.ParseUUIDParam(c, "id", "trip ID")
	if !ok {
		return
	}

	var req models.RatingInput
	if !common.BindJSON(c, &req) {
		return
	}

	err := h.service.Rate(c.Request.Context(), tripID, passengerID, &req)
	if common.HandleServiceError(c, err, "failed to rate trip") {
		return
	}

	common.SuccessResponse(c, gin.H{"rated": true})
}

// driverTransition runs a driver-actor state transition shared by the accept,
// arrived, start and complete endpoints.
func (h *Handler) driverTransition(c *gin.Context, fn func(ctx context.Context, tripID, driverID uuid.UUID) (*models.Trip, error)) {
	driverID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	tripID, ok := common.ParseUUIDParam(c, "id", "trip ID")
	if !ok {
		return
	}

	trip, err := fn(c.Request.Context(), tripID, driverID)
	if common.HandleServiceError(c, err, "failed to update trip") {
		return
	}

	common.SuccessResponse(c, trip)
}

// RegisterRoutes registers trip lifecycle routes on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/trips")
	{
		g.GET("", h.List)
		g.GET("/:id", h.Get)
		g.POST("/:id/cancel", h.Cancel)
		g.POST("/:id/rating", middleware.RequireRole(models.RolePassenger), h.Rate)

		driver := g.Group("")
		driver.Use(middleware.RequireRole(models.RoleDriver))
		{
			driver.GET("/active", h.Active)
			driver.POST("/:id/accept", h.Accept)
			driver.POST("/:id/reject", h.Reject)
			driver.POST("/:id/arrived", h.Arrived)
			driver.POST("/:id/start", h.Start)
			driver.POST("/:id/complete", h.Complete)
		}
	}
}
