package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mishwari/taxi-dispatch/pkg/common"
	"github.com/mishwari/taxi-dispatch/pkg/models"
)

// Claims represents JWT claims issued by the identity service.
type Claims struct {
	UserID uuid.UUID       `json:"user_id"`
	Phone  string          `json:"phone"`
	Role   models.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates the bearer token and stores the caller identity in
// the gin context. Every dispatch callable sits behind this.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			common.ErrorResponseWithKind(c, http.StatusUnauthorized, common.KindUnauthenticated, "authorization required")
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			common.ErrorResponseWithKind(c, http.StatusUnauthorized, common.KindUnauthenticated, "invalid authorization header format")
			c.Abort()
			return
		}

		token, err := jwt.ParseWithClaims(parts[1], &Claims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			common.ErrorResponseWithKind(c, http.StatusUnauthorized, common.KindUnauthenticated, "invalid or expired token")
			c.Abort()
			return
		}

		claims, ok := token.Claims.(*Claims)
		if !ok {
			common.ErrorResponseWithKind(c, http.StatusUnauthorized, common.KindUnauthenticated, "invalid token claims")
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_phone", claims.Phone)
		c.Set("user_role", claims.Role)

		c.Next()
	}
}

// RequireRole checks that the caller holds one of the given roles.
func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get("user_role")
		if !exists {
			common.ErrorResponseWithKind(c, http.StatusUnauthorized, common.KindUnauthenticated, "user role not found")
			c.Abort()
			return
		}

		role := value.(models.UserRole)

		for _, required := range roles {
			if role == required {
				c.Next()
				return
			}
		}

		common.ErrorResponseWithKind(c, http.StatusForbidden, common.KindForbidden, "insufficient permissions")
		c.Abort()
	}
}

// RequireManager restricts a route to managerial roles.
func RequireManager() gin.HandlerFunc {
	return RequireRole(models.RoleManager, models.RoleAdmin)
}

// GetUserID extracts the authenticated user ID from context.
func GetUserID(c *gin.Context) (uuid.UUID, error) {
	userID, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, common.ErrUnauthorized
	}
	return userID.(uuid.UUID), nil
}

// GetUserRole extracts the authenticated user role from context.
func GetUserRole(c *gin.Context) (models.UserRole, error) {
	role, exists := c.Get("user_role")
	if !exists {
		return "", common.ErrUnauthorized
	}
	return role.(models.UserRole), nil
}
