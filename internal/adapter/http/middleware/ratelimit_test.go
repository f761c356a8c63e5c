package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jefferypippitt/essential-todo/internal/core/telemetry"
	"github.com/jefferypippitt/essential-todo/pkg/config"
)

func newLimitedRouter(store Store, limits map[string]config.EndpointLimit, registry *prometheus.Registry) *gin.Engine {
	gin.SetMode(gin.TestMode)

	limiter := NewRateLimiter(store, limits, zap.NewNop(), telemetry.NewAppMetrics(registry))

	router := gin.New()
	router.Use(limiter.RateLimitMiddleware())
	router.GET("/todos", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.DELETE("/todos/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	return router
}

func serve(router *gin.Engine, method, path, ip string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	req.Header.Set("X-Forwarded-For", ip)

	router.ServeHTTP(rr, req)

	return rr
}

func TestRateLimiter_BlocksAfterLimit(t *testing.T) {
	RegisterTestingT(t)

	registry := prometheus.NewRegistry()
	router := newLimitedRouter(NewMemoryStore(), map[string]config.EndpointLimit{
		"GET /todos": {Requests: 2, Window: time.Minute},
		"default":    {Requests: 100, Window: time.Minute},
	}, registry)

	first := serve(router, "GET", "/todos", "10.0.0.1")
	Expect(first.Code).To(Equal(http.StatusOK))
	Expect(first.Header().Get("X-RateLimit-Limit")).To(Equal("2"))
	Expect(first.Header().Get("X-RateLimit-Remaining")).To(Equal("1"))

	Expect(serve(router, "GET", "/todos", "10.0.0.1").Code).To(Equal(http.StatusOK))

	blocked := serve(router, "GET", "/todos", "10.0.0.1")
	Expect(blocked.Code).To(Equal(http.StatusTooManyRequests))
	Expect(blocked.Header().Get("X-RateLimit-Remaining")).To(Equal("0"))
	Expect(blocked.Header().Get("Retry-After")).ToNot(BeEmpty())
	Expect(blocked.Body.String()).To(ContainSubstring(CodeRateLimited))

	count, err := testutil.GatherAndCount(registry, "rate_limit_hits_total")
	Expect(err).ToNot(HaveOccurred())
	Expect(count).To(Equal(1))
}

func TestRateLimiter_KeysByClient(t *testing.T) {
	RegisterTestingT(t)

	router := newLimitedRouter(NewMemoryStore(), map[string]config.EndpointLimit{
		"GET /todos": {Requests: 1, Window: time.Minute},
	}, prometheus.NewRegistry())

	Expect(serve(router, "GET", "/todos", "10.0.0.1").Code).To(Equal(http.StatusOK))
	Expect(serve(router, "GET", "/todos", "10.0.0.1").Code).To(Equal(http.StatusTooManyRequests))
	Expect(serve(router, "GET", "/todos", "10.0.0.2").Code).To(Equal(http.StatusOK))
}

func TestRateLimiter_RoutePatternSharesBucket(t *testing.T) {
	RegisterTestingT(t)

	router := newLimitedRouter(NewMemoryStore(), map[string]config.EndpointLimit{
		"DELETE /todos/:id": {Requests: 1, Window: time.Minute},
	}, prometheus.NewRegistry())

	Expect(serve(router, "DELETE", "/todos/1", "10.0.0.1").Code).To(Equal(http.StatusOK))
	Expect(serve(router, "DELETE", "/todos/2", "10.0.0.1").Code).To(Equal(http.StatusTooManyRequests))
}

func TestRateLimiter_FallsBackToDefault(t *testing.T) {
	RegisterTestingT(t)

	router := newLimitedRouter(NewMemoryStore(), map[string]config.EndpointLimit{
		"default": {Requests: 1, Window: time.Minute},
	}, prometheus.NewRegistry())

	Expect(serve(router, "GET", "/health", "10.0.0.1").Code).To(Equal(http.StatusOK))
	Expect(serve(router, "GET", "/health", "10.0.0.1").Code).To(Equal(http.StatusTooManyRequests))
}

func TestRateLimiter_NoLimitConfigured(t *testing.T) {
	RegisterTestingT(t)

	router := newLimitedRouter(NewMemoryStore(), map[string]config.EndpointLimit{}, prometheus.NewRegistry())

	for range 5 {
		rr := serve(router, "GET", "/health", "10.0.0.1")
		Expect(rr.Code).To(Equal(http.StatusOK))
		Expect(rr.Header().Get("X-RateLimit-Limit")).To(BeEmpty())
	}
}

func TestMemoryStore_WindowExpires(t *testing.T) {
	RegisterTestingT(t)

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	allowed, remaining, _, _ := store.Allow(ctx, "k", 1, time.Minute)
	Expect(allowed).To(BeTrue())
	Expect(remaining).To(Equal(0))

	allowed, _, resetAt, _ := store.Allow(ctx, "k", 1, time.Minute)
	Expect(allowed).To(BeFalse())
	Expect(resetAt).To(Equal(now.Add(time.Minute)))

	now = now.Add(time.Minute + time.Second)

	allowed, _, _, _ = store.Allow(ctx, "k", 1, time.Minute)
	Expect(allowed).To(BeTrue())
}

func TestRedisStore_FixedWindow(t *testing.T) {
	RegisterTestingT(t)

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	ctx := context.Background()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping test")
	}

	key := "test:" + t.Name()
	defer client.Del(ctx, "rate_limit_test:"+key)

	store := NewRedisStore(client, "rate_limit_test:")

	for i := range 3 {
		allowed, remaining, resetAt, err := store.Allow(ctx, key, 3, time.Minute)

		Expect(err).ToNot(HaveOccurred())
		Expect(allowed).To(BeTrue())
		Expect(remaining).To(Equal(2 - i))
		Expect(resetAt).To(BeTemporally(">", time.Now()))
	}

	allowed, remaining, _, err := store.Allow(ctx, key, 3, time.Minute)
	Expect(err).ToNot(HaveOccurred())
	Expect(allowed).To(BeFalse())
	Expect(remaining).To(Equal(0))

	ttl, err := client.PTTL(ctx, "rate_limit_test:"+key).Result()
	Expect(err).ToNot(HaveOccurred())
	Expect(ttl).To(BeNumerically(">", 0))
}
