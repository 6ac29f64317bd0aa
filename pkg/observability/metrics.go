package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	PermissionChecksTotal *prometheus.CounterVec
	ClientAccessTotal     *prometheus.CounterVec
	PermissionCheckErrors prometheus.Counter

	// Memory store metrics
	MemoryOperationsTotal   *prometheus.CounterVec
	MemoryOperationDuration *prometheus.HistogramVec
	MemoryCacheHitsTotal    prometheus.Counter
	MemoryCacheMissesTotal  prometheus.Counter

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agencyhub_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agencyhub_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		PermissionChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agencyhub_permission_checks_total",
				Help: "Total number of permission checks by resource, action and outcome",
			},
			[]string{"resource", "action", "outcome"},
		),
		ClientAccessTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agencyhub_client_access_checks_total",
				Help: "Total number of per-client access checks by level and outcome",
			},
			[]string{"level", "outcome"},
		),
		PermissionCheckErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "agencyhub_permission_check_errors_total",
				Help: "Total number of unexpected errors during authorization",
			},
		),
		MemoryOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agencyhub_memory_operations_total",
				Help: "Total number of memory store operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		MemoryOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agencyhub_memory_operation_duration_seconds",
				Help:    "Memory store operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		MemoryCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "agencyhub_memory_cache_hits_total",
				Help: "Total number of memory scope cache hits",
			},
		),
		MemoryCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "agencyhub_memory_cache_misses_total",
				Help: "Total number of memory scope cache misses",
			},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "agencyhub_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "agencyhub_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PermissionChecksTotal,
		m.ClientAccessTotal,
		m.PermissionCheckErrors,
		m.MemoryOperationsTotal,
		m.MemoryOperationDuration,
		m.MemoryCacheHitsTotal,
		m.MemoryCacheMissesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// Handler returns an HTTP handler for the metrics endpoint
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
