package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"voicedesk-backend/pkg/logger"
	"voicedesk-backend/pkg/metrics"
)

// PrometheusMiddleware is a Gin middleware that records HTTP metrics
type PrometheusMiddleware struct {
	metrics *metrics.Metrics
}

// NewPrometheusMiddleware creates a new Prometheus middleware
func NewPrometheusMiddleware(m *metrics.Metrics) *PrometheusMiddleware {
	return &PrometheusMiddleware{
		metrics: m,
	}
}

// Handler returns the Gin middleware handler
func (p *PrometheusMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		p.metrics.IncrementHTTPRequestsInFlight()
		defer p.metrics.DecrementHTTPRequestsInFlight()

		start := time.Now()

		c.Next()

		p.metrics.RecordHTTPRequest(
			c.Request.Method,
			c.FullPath(),
			HTTPStatusToLabel(c.Writer.Status()),
			time.Since(start),
		)
	}
}

// MetricsHandler returns the /metrics endpoint handler for the service's
// registry. It reports liveness even when collection breaks.
func MetricsHandler(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Metrics collection panicked", zap.Any("panic", r))
				c.JSON(200, gin.H{"status": "metrics_collection_error"})
				c.Abort()
			}
		}()

		if m == nil || m.GetRegistry() == nil {
			c.JSON(200, gin.H{"status": "metrics_not_initialized"})
			return
		}

		c.Header("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		handler := promhttp.HandlerFor(m.GetRegistry(), promhttp.HandlerOpts{
			EnableOpenMetrics: false,
		})
		handler.ServeHTTP(c.Writer, c.Request)
	}
}

// HTTPStatusToLabel buckets status codes to keep label cardinality down
func HTTPStatusToLabel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500:
		return "5xx"
	default:
		return strconv.Itoa(statusCode)
	}
}
