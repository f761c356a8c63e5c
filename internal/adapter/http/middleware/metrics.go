package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jefferypippitt/essential-todo/internal/core/telemetry"
)

const unmatchedRoute = "unmatched"

// MetricsMiddleware labels requests by route pattern so /todos/1 and /todos/2
// share a series.
func MetricsMiddleware(metrics *telemetry.AppMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()

		metrics.IncrementActiveConnections(ctx)
		defer metrics.DecrementActiveConnections(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}

		metrics.RecordRequest(ctx, c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
