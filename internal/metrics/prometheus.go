package metrics

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rulings_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"route", "status"},
	)

	Interactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rulings_interactions_total",
			Help: "Dashboard interactions by view",
		},
		[]string{"view"},
	)

	FilteredRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rulings_filtered_rows",
			Help:    "Rows remaining after applying a filter state",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	EmptyResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rulings_empty_results_total",
			Help: "Interactions that matched no rulings",
		},
		[]string{"view"},
	)

	ExportsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rulings_exports_total",
			Help: "CSV exports served",
		},
	)

	ExportedRows = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rulings_exported_rows_total",
			Help: "Rows written to CSV exports",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rulings_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rulings_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	DatasetRows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rulings_dataset_rows",
			Help: "Rows in the loaded dataset",
		},
	)

	DistinctTerms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rulings_distinct_terms",
			Help: "Distinct descriptor terms in the loaded dataset",
		},
	)

	ColumnWarnings = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rulings_column_warnings",
			Help: "Expected columns that could not be resolved",
		},
	)

	CacheBreakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rulings_cache_breaker_state",
			Help: "Shared cache circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
	)

	WebSocketSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rulings_websocket_sessions",
			Help: "Open live-filter websocket sessions",
		},
	)
)

var once sync.Once

// Init registers the collectors with the default registry. Safe to call
// more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			RequestDuration,
			Interactions,
			FilteredRows,
			EmptyResults,
			ExportsTotal,
			ExportedRows,
			CacheHits,
			CacheMisses,
			DatasetRows,
			DistinctTerms,
			ColumnWarnings,
			CacheBreakerState,
			WebSocketSessions,
		)
	})
}

// Middleware observes the latency of every request by route template.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		RequestDuration.WithLabelValues(c.Route().Path, statusClass(status)).Observe(time.Since(start).Seconds())
		return err
	}
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
