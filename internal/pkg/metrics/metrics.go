package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "etxebila",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "etxebila",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "etxebila",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Search sessions
	SessionsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "etxebila",
		Subsystem: "search",
		Name:      "sessions_started_total",
		Help:      "Search sessions started, by query mode",
	}, []string{"mode"})

	SessionsSuperseded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "etxebila",
		Subsystem: "search",
		Name:      "sessions_superseded_total",
		Help:      "Search sessions superseded by a newer selection before settling",
	})

	StaleResponsesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "etxebila",
		Subsystem: "search",
		Name:      "stale_responses_dropped_total",
		Help:      "Index responses discarded because their search was no longer current",
	})

	PagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "etxebila",
		Subsystem: "search",
		Name:      "pages_fetched_total",
		Help:      "Result pages merged into a live session",
	}, []string{"mode", "outcome"})

	IndexRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "etxebila",
		Subsystem: "index",
		Name:      "request_duration_seconds",
		Help:      "Search index request latency",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"mode", "result"})

	FallbackPagesServed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "etxebila",
		Subsystem: "index",
		Name:      "fallback_pages_served_total",
		Help:      "Cached pages served because the search index was unreachable",
	})

	// Geometry
	OversizeGeometries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "etxebila",
		Subsystem: "geometry",
		Name:      "oversize_total",
		Help:      "Polygon filters still over budget after maximum simplification",
	}, []string{"policy"})

	SimplifyIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "etxebila",
		Subsystem: "geometry",
		Name:      "simplify_iterations",
		Help:      "Tolerance iterations needed to fit a polygon filter",
		Buckets:   []float64{0, 1, 2, 3, 4, 5, 6, 8, 10},
	})

	GeometryErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "etxebila",
		Subsystem: "geometry",
		Name:      "errors_total",
		Help:      "Stored geometries that could not be turned into a filter",
	}, []string{"kind"})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "etxebila",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "etxebila",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "etxebila",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "etxebila",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "etxebila",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// PoolStat is the subset of pgxpool.Stat read by UpdateDBPoolMetrics.
type PoolStat interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
}

// UpdateDBPoolMetrics copies pool gauges from a pgx pool snapshot.
func UpdateDBPoolMetrics(s PoolStat) {
	DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
	DBPoolConnsIdle.Set(float64(s.IdleConns()))
	DBPoolConnsOpen.Set(float64(s.TotalConns()))
}
