package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jefferypippitt/essential-todo/internal/core/model/response"
	"github.com/jefferypippitt/essential-todo/internal/core/telemetry"
	"github.com/jefferypippitt/essential-todo/pkg"
	"github.com/jefferypippitt/essential-todo/pkg/config"
)

const (
	CodeRateLimited  = "RATE_LIMITED"
	defaultLimitKey  = "default"
	rateLimitKeyType = "ip"
)

// RateLimiter enforces fixed window limits per client IP. Limits are looked
// up by "METHOD /route/pattern", falling back to the "default" entry. A route
// whose limit has no requests or no window is not limited.
type RateLimiter struct {
	store   Store
	limits  map[string]config.EndpointLimit
	logger  *zap.Logger
	metrics *telemetry.AppMetrics
}

func NewRateLimiter(store Store, limits map[string]config.EndpointLimit, logger *zap.Logger, metrics *telemetry.AppMetrics) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RateLimiter{store: store, limits: limits, logger: logger, metrics: metrics}
}

func (rl *RateLimiter) limitFor(route string) (string, config.EndpointLimit) {
	if limit, ok := rl.limits[route]; ok {
		return route, limit
	}

	return defaultLimitKey, rl.limits[defaultLimitKey]
}

func (rl *RateLimiter) RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		bucket, limit := rl.limitFor(c.Request.Method + " " + path)
		if limit.Requests <= 0 || limit.Window <= 0 {
			c.Next()
			return
		}

		key := "rate_limit:" + bucket + ":" + pkg.GetClientIP(c)

		allowed, remaining, resetAt, err := rl.store.Allow(ctx, key, limit.Requests, limit.Window)
		if err != nil {
			// Fail open on store errors.
			rl.logger.Error("rate limit store unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		header := c.Writer.Header()
		header.Set("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
		header.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		header.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if allowed {
			if rl.metrics != nil {
				rl.metrics.RecordRateLimitAllowed(ctx, path, rateLimitKeyType)
			}

			c.Next()
			return
		}

		if rl.metrics != nil {
			rl.metrics.RecordRateLimitHit(ctx, path, rateLimitKeyType)
		}

		rl.logger.Warn("rate limit exceeded",
			zap.String("key", key),
			zap.Int("limit", limit.Requests),
			zap.Duration("window", limit.Window))

		rl.reject(c, limit, resetAt)
	}
}

func (rl *RateLimiter) reject(c *gin.Context, limit config.EndpointLimit, resetAt time.Time) {
	retryAfter := int(math.Ceil(time.Until(resetAt).Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}

	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, response.ErrorResponse{
		Error: response.ResponseError{
			Code: CodeRateLimited,
			Errors: []response.ValidationError{{
				Field:   "request",
				Message: fmt.Sprintf("Too many requests, limit is %d per %s", limit.Requests, limit.Window),
			}},
			Details: gin.H{"retry_after": retryAfter},
		},
	})
}
