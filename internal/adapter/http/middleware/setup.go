package middleware

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/jefferypippitt/essential-todo/internal/core/telemetry"
	"github.com/jefferypippitt/essential-todo/pkg/config"
	"github.com/jefferypippitt/essential-todo/pkg/logger"
)

// Setup installs the middleware chain shared by every route. store may be
// nil when rate limiting is disabled.
func Setup(router *gin.Engine, cfg *config.Config, metrics *telemetry.AppMetrics, log *logger.LokiLogger, store Store) {
	router.Use(gin.Recovery())

	router.Use(NewHTTPSEnforcer(cfg.Server.EnforceHTTPS, log.Zap()).HTTPSMiddleware())

	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/health"})))

	router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))

	router.Use(CurrentMiddleware())

	router.Use(LoggingMiddleware(log))

	if cfg.RateLimit.Enabled && store != nil {
		rateLimiter := NewRateLimiter(store, cfg.RateLimit.Endpoints, log.Zap(), metrics)
		router.Use(rateLimiter.RateLimitMiddleware())
	}

	router.Use(MetricsMiddleware(metrics))
}
