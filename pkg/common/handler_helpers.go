package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mishwari/taxi-dispatch/pkg/logger"
	"go.uber.org/zap"
)

// HandleServiceError handles service errors with consistent patterns.
// Returns true if an error was handled (and a response was sent), false otherwise.
//
// Usage:
//
//	result, err := h.service.DoSomething(ctx, req)
//	if common.HandleServiceError(c, err, "failed to do something") {
//	    return
//	}
func HandleServiceError(c *gin.Context, err error, fallbackMessage string) bool {
	if err == nil {
		return false
	}

	// Typed business errors carry their own kind and status
	var appErr *AppError
	if errors.As(err, &appErr) {
		AppErrorResponse(c, appErr)
		return true
	}

	// Unexpected errors become internal with no leaked internals
	logger.ErrorContext(c.Request.Context(), fallbackMessage,
		zap.Error(err),
	)

	ErrorResponseWithKind(c, http.StatusInternalServerError, KindInternal, fallbackMessage)
	return true
}

// ParseUUIDParam parses a UUID from a URL parameter.
// Returns the UUID and true on success, or sends an error response and returns false.
func ParseUUIDParam(c *gin.Context, paramName, displayName string) (uuid.UUID, bool) {
	paramValue := c.Param(paramName)
	if paramValue == "" {
		ErrorResponseWithKind(c, http.StatusBadRequest, KindInvalidArgument, displayName+" is required")
		return uuid.Nil, false
	}

	id, err := uuid.Parse(paramValue)
	if err != nil {
		ErrorResponseWithKind(c, http.StatusBadRequest, KindInvalidArgument, "invalid "+displayName)
		return uuid.Nil, false
	}

	return id, true
}

// BindJSON binds the JSON request body and sends an invalid_argument response on failure.
// Returns true on success, false on failure (response already sent).
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		ErrorResponseWithKind(c, http.StatusBadRequest, KindInvalidArgument, err.Error())
		return false
	}
	return true
}

// RequireUserID extracts and validates the caller identity from context.
// Returns the user ID and true on success, or sends an unauthenticated response and returns false.
func RequireUserID(c *gin.Context, getUserID func(*gin.Context) (uuid.UUID, error)) (uuid.UUID, bool) {
	userID, err := getUserID(c)
	if err != nil {
		ErrorResponseWithKind(c, http.StatusUnauthorized, KindUnauthenticated, "unauthenticated")
		return uuid.Nil, false
	}
	return userID, true
}
