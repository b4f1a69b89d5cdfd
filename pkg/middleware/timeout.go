package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/timeout"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mishwari/taxi-dispatch/pkg/common"
	"github.com/mishwari/taxi-dispatch/pkg/logger"
)

// CallableTimeout enforces the per-request budget. A callable that cannot
// finish inside the budget returns 504 rather than holding the connection.
func CallableTimeout(budget time.Duration) gin.HandlerFunc {
	return timeout.New(
		timeout.WithTimeout(budget),
		timeout.WithResponse(func(c *gin.Context) {
			logger.WithContext(c.Request.Context()).Warn("request exceeded callable budget",
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
				zap.Duration("budget", budget),
			)
			common.ErrorResponseWithKind(c, http.StatusGatewayTimeout, common.KindInternal, "request timed out")
		}),
	)
}
