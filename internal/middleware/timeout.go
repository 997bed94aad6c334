package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"voicedesk-backend/pkg/logger"
)

// TimeoutConfig holds timeout configuration
type TimeoutConfig struct {
	DefaultTimeout time.Duration
}

// DefaultTimeoutConfig returns default timeout configuration
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		DefaultTimeout: 30 * time.Second,
	}
}

// TimeoutMiddleware bounds request handling time. Webhook handlers hold an
// open telephony connection, so a stuck downstream must not hold it forever.
type TimeoutMiddleware struct {
	config *TimeoutConfig
}

// NewTimeoutMiddleware creates a new timeout middleware
func NewTimeoutMiddleware(config *TimeoutConfig) *TimeoutMiddleware {
	if config == nil {
		config = DefaultTimeoutConfig()
	}
	return &TimeoutMiddleware{config: config}
}

// Middleware returns a Gin middleware for timeout protection
func (tm *TimeoutMiddleware) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), tm.config.DefaultTimeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)

		start := time.Now()

		c.Next()

		select {
		case <-ctx.Done():
			if ctx.Err() != context.DeadlineExceeded {
				return
			}
			logger.Warn("Request timed out",
				zap.Duration("timeout", tm.config.DefaultTimeout),
				zap.Duration("duration", time.Since(start)),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			)

			if !c.Writer.Written() {
				c.JSON(http.StatusGatewayTimeout, gin.H{
					"error": "Request timeout",
					"code":  "REQUEST_TIMEOUT",
				})
			}
			c.Abort()
		default:
		}
	}
}
