package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	ct "github.com/jefferypippitt/essential-todo/pkg/context"
	"github.com/jefferypippitt/essential-todo/pkg/logger"
)

// LoggingMiddleware writes one access line per request. Server errors are
// logged at error level.
func LoggingMiddleware(log *logger.LokiLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		ctx := c.Request.Context()
		status := c.Writer.Status()
		clientIP, _ := ct.GetCurrent(ctx).GetString(ct.KeyIPAddress)
		fields := []zap.Field{
			zap.String("request_id", ct.RequestID(ctx)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.RequestURI()),
			zap.String("route", c.FullPath()),
			zap.Int("status", status),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", clientIP),
		}

		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		if status >= 500 {
			log.ErrorWithTrace(ctx, "request", fields...)
			return
		}

		log.InfoWithTrace(ctx, "request", fields...)
	}
}
