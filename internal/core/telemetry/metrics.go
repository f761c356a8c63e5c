package telemetry

import (
	"context"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const memorySampleInterval = 10 * time.Second

var (
	requestLabels   = []string{"method", "path", "status"}
	rateLimitLabels = []string{"path", "key_type"}
)

// AppMetrics holds the Prometheus collectors the HTTP layer, the todo service
// and the repositories report into.
type AppMetrics struct {
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	activeConnections  prometheus.Gauge
	memoryUsage        prometheus.Gauge
	todoOperations     *prometheus.CounterVec
	reorderShifted     prometheus.Histogram
	databaseOperations *prometheus.CounterVec
	rateLimitHits      *prometheus.CounterVec
	rateLimitAllowed   *prometheus.CounterVec
}

func NewAppMetrics(registry prometheus.Registerer) *AppMetrics {
	factory := promauto.With(registry)

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Goroutines alive at scrape time",
	}, func() float64 { return float64(runtime.NumGoroutine()) })

	return &AppMetrics{
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: prometheus.ExponentialBuckets(0.001, 2.5, 10),
		}, requestLabels),
		requestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served by route pattern and status",
		}, requestLabels),
		activeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Requests currently in flight",
		}),
		memoryUsage: factory.NewGauge(prometheus.GaugeOpts{
			Name: "memory_usage_bytes",
			Help: "Heap bytes allocated, sampled periodically",
		}),
		todoOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "todo_operations_total",
			Help: "Todo service operations by outcome",
		}, []string{"operation", "result"}),
		reorderShifted: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "todo_reorder_shifted_rows",
			Help:    "Rows shifted by a single reorder",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		}),
		databaseOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "database_operations_total",
			Help: "Repository calls by operation and table",
		}, []string{"operation", "table"}),
		rateLimitHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter",
		}, rateLimitLabels),
		rateLimitAllowed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limit_allowed_total",
			Help: "Requests let through by the rate limiter",
		}, rateLimitLabels),
	}
}

func (m *AppMetrics) RecordRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	labels := prometheus.Labels{"method": method, "path": path, "status": strconv.Itoa(status)}

	m.requestDuration.With(labels).Observe(duration.Seconds())
	m.requestTotal.With(labels).Inc()
}

func (m *AppMetrics) IncrementActiveConnections(ctx context.Context) {
	m.activeConnections.Inc()
}

func (m *AppMetrics) DecrementActiveConnections(ctx context.Context) {
	m.activeConnections.Dec()
}

// RecordTodoOperation counts one service call, labelled ok or error.
func (m *AppMetrics) RecordTodoOperation(ctx context.Context, operation string, err error) {
	m.todoOperations.WithLabelValues(operation, outcome(err)).Inc()
}

func (m *AppMetrics) RecordReorderShift(ctx context.Context, rows int64) {
	m.reorderShifted.Observe(float64(rows))
}

func (m *AppMetrics) RecordDatabaseOperation(ctx context.Context, operation, table string) {
	m.databaseOperations.WithLabelValues(operation, table).Inc()
}

func (m *AppMetrics) RecordRateLimitHit(ctx context.Context, path, keyType string) {
	m.rateLimitHits.WithLabelValues(path, keyType).Inc()
}

func (m *AppMetrics) RecordRateLimitAllowed(ctx context.Context, path, keyType string) {
	m.rateLimitAllowed.WithLabelValues(path, keyType).Inc()
}

// StartSystemMetrics samples heap usage until ctx is cancelled. ReadMemStats
// stops the world, so it runs on a timer rather than per scrape.
func (m *AppMetrics) StartSystemMetrics(ctx context.Context) {
	sample := func() {
		var stats runtime.MemStats
		runtime.ReadMemStats(&stats)
		m.memoryUsage.Set(float64(stats.HeapAlloc))
	}

	sample()

	go func() {
		ticker := time.NewTicker(memorySampleInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sample()
			}
		}
	}()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}

	return "ok"
}
