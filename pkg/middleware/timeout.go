package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/timeout"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cityhail/dispatch/pkg/logger"
)

// RequestTimeout aborts requests that run longer than the given duration
// with a 504 Gateway Timeout response. WebSocket upgrades are passed through
// untouched since those connections are long-lived.
func RequestTimeout(d time.Duration) gin.HandlerFunc {
	withTimeout := timeout.New(
		timeout.WithTimeout(d),
		timeout.WithHandler(func(c *gin.Context) {
			c.Next()
		}),
		timeout.WithResponse(func(c *gin.Context) {
			logger.WithContext(c.Request.Context()).Warn("Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
				zap.Duration("timeout", d),
			)
			c.JSON(http.StatusGatewayTimeout, gin.H{
				"error":   "Request timeout",
				"message": "The request took too long to process",
			})
		}),
	)

	return func(c *gin.Context) {
		if c.IsWebsocket() {
			c.Next()
			return
		}
		withTimeout(c)
	}
}
