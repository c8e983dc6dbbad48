// Package metrics provides Prometheus metrics for the metadata service
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "metadata_service"

// Metrics holds all Prometheus metrics for the service
type Metrics struct {
	// HTTP request metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// gRPC request metrics (health service)
	GrpcRequestsTotal   *prometheus.CounterVec
	GrpcRequestDuration *prometheus.HistogramVec

	// Datastore metrics
	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHitsTotal          prometheus.Counter
	CacheMissesTotal        prometheus.Counter
	CacheInvalidationsTotal prometheus.Counter

	// Query metrics
	StatusLookupsTotal  *prometheus.CounterVec
	VersionQueriesTotal prometheus.Counter

	// Server metrics
	ServerUptimeSeconds prometheus.Gauge
	ServerStartTime     time.Time

	stop chan struct{}
}

// NewMetrics creates all metrics and registers them with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		ServerStartTime: time.Now(),
		stop:            make(chan struct{}),
	}

	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	m.HTTPRequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)

	m.GrpcRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "Total number of gRPC requests",
		},
		[]string{"method", "status"},
	)

	m.GrpcRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_request_duration_seconds",
			Help:      "Duration of gRPC requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	m.StoreOperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Total number of datastore reads",
		},
		[]string{"operation", "status"},
	)

	m.StoreOperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Duration of datastore reads in seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation"},
	)

	m.CacheHitsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of document cache hits",
		},
	)

	m.CacheMissesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of document cache misses",
		},
	)

	m.CacheInvalidationsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidations_total",
			Help:      "Total number of document cache invalidations",
		},
	)

	m.StatusLookupsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_lookups_total",
			Help:      "Total number of data structure status lookups",
		},
		[]string{"result"},
	)

	m.VersionQueriesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "version_queries_total",
			Help:      "Total number of version history queries",
		},
	)

	m.ServerUptimeSeconds = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "server_uptime_seconds",
			Help:      "Server uptime in seconds",
		},
	)

	go m.updateUptime()

	return m
}

// Close stops the uptime updater
func (m *Metrics) Close() {
	select {
	case <-m.stop:
	default:
		close(m.stop)
	}
}

// updateUptime periodically updates the server uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.ServerUptimeSeconds.Set(time.Since(m.ServerStartTime).Seconds())
		}
	}
}

// RecordHTTPRequest records an HTTP request with its status
func (m *Metrics) RecordHTTPRequest(route, method, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(route, method, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordGrpcRequest records a gRPC request with its status
func (m *Metrics) RecordGrpcRequest(method string, status string, duration time.Duration) {
	m.GrpcRequestsTotal.WithLabelValues(method, status).Inc()
	m.GrpcRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordStoreOperation records a datastore read
func (m *Metrics) RecordStoreOperation(operation string, status string, duration time.Duration) {
	m.StoreOperationsTotal.WithLabelValues(operation, status).Inc()
	m.StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCacheLookup records a cache hit or miss
func (m *Metrics) RecordCacheLookup(hit bool) {
	if hit {
		m.CacheHitsTotal.Inc()
		return
	}
	m.CacheMissesTotal.Inc()
}

// RecordCacheInvalidation records a cache invalidation
func (m *Metrics) RecordCacheInvalidation() {
	m.CacheInvalidationsTotal.Inc()
}

// RecordStatusLookup records a status lookup for one name
func (m *Metrics) RecordStatusLookup(found bool) {
	result := "found"
	if !found {
		result = "not_found"
	}
	m.StatusLookupsTotal.WithLabelValues(result).Inc()
}

// RecordVersionQuery records a version history query
func (m *Metrics) RecordVersionQuery() {
	m.VersionQueriesTotal.Inc()
}
