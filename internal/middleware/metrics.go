package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"relationship-service/internal/observability"
)

// Metrics records per-route request counts and latency. Scrapes of /metrics
// itself are not counted.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		done := observability.TrackInFlight()
		start := time.Now()
		c.Next()
		done()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		observability.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
