package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Session simulation metrics
	SimulationsTotal    *prometheus.CounterVec
	SimulatedDataVolume *prometheus.HistogramVec
	SimulatedCallTime   prometheus.Histogram

	// Invoice metrics
	InvoicesTotal       *prometheus.CounterVec
	InvoiceCharges      prometheus.Histogram
	InvoiceSessions     prometheus.Histogram
	ArchiveErrorsTotal  prometheus.Counter
	BillingCyclesTotal  *prometheus.CounterVec
	BillingCycleSeconds prometheus.Histogram

	// Lock metrics
	LockWaitDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBConnectionsIdle  prometheus.Gauge
	DBWaitCount        prometheus.Gauge

	// Business metrics
	SubscribersTotal prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matsecom_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "matsecom_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		SimulationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matsecom_simulations_total",
				Help: "Total number of simulated sessions by service and outcome",
			},
			[]string{"service", "outcome"},
		),
		SimulatedDataVolume: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "matsecom_simulated_data_volume",
				Help:    "Data volume of successfully simulated sessions",
				Buckets: prometheus.ExponentialBuckets(1, 10, 8),
			},
			[]string{"service"},
		),
		SimulatedCallTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "matsecom_simulated_call_seconds",
				Help:    "Call time of successfully simulated voice sessions",
				Buckets: []float64{30, 60, 300, 900, 3600, 14400, 86400},
			},
		),

		InvoicesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matsecom_invoices_total",
				Help: "Total number of invoice runs",
			},
			[]string{"status"},
		),
		InvoiceCharges: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "matsecom_invoice_charges",
				Help:    "Charges of generated invoices in the smallest currency unit",
				Buckets: []float64{500, 1000, 2500, 5000, 10000, 50000, 100000},
			},
		),
		InvoiceSessions: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "matsecom_invoice_sessions",
				Help:    "Number of sessions claimed by one invoice",
				Buckets: []float64{0, 1, 5, 10, 50, 100, 500},
			},
		),
		ArchiveErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "matsecom_invoice_archive_errors_total",
				Help: "Total number of invoices that could not be archived",
			},
		),
		BillingCyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matsecom_billing_cycles_total",
				Help: "Total number of billing cycles by status",
			},
			[]string{"status"},
		),
		BillingCycleSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "matsecom_billing_cycle_duration_seconds",
				Help:    "Billing cycle duration in seconds",
				Buckets: []float64{.1, 1, 5, 30, 60, 300, 900},
			},
		),

		LockWaitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "matsecom_lock_wait_duration_seconds",
				Help:    "Time spent waiting for a subscriber lock",
				Buckets: []float64{.0001, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"operation"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matsecom_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matsecom_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),

		DBConnectionsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "matsecom_db_connections_open",
				Help: "Number of open database connections",
			},
		),
		DBConnectionsInUse: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "matsecom_db_connections_in_use",
				Help: "Number of database connections in use",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "matsecom_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "matsecom_db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),

		SubscribersTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "matsecom_subscribers_total",
				Help: "Number of registered subscribers",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SimulationsTotal,
		m.SimulatedDataVolume,
		m.SimulatedCallTime,
		m.InvoicesTotal,
		m.InvoiceCharges,
		m.InvoiceSessions,
		m.ArchiveErrorsTotal,
		m.BillingCyclesTotal,
		m.BillingCycleSeconds,
		m.LockWaitDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBConnectionsIdle,
		m.DBWaitCount,
		m.SubscribersTotal,
	)

	return m
}

// ObserveSimulation records one simulation result.
func (m *Metrics) ObserveSimulation(service, outcome string, dataVolume, callSeconds int64) {
	if m == nil {
		return
	}
	m.SimulationsTotal.WithLabelValues(service, outcome).Inc()
	if outcome != "OK" {
		return
	}
	if callSeconds > 0 {
		m.SimulatedCallTime.Observe(float64(callSeconds))
	} else {
		m.SimulatedDataVolume.WithLabelValues(service).Observe(float64(dataVolume))
	}
}

// ObserveInvoice records one invoice run. A non-nil err counts as a failed run.
func (m *Metrics) ObserveInvoice(charges int64, sessions int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.InvoicesTotal.WithLabelValues("error").Inc()
		return
	}
	m.InvoicesTotal.WithLabelValues("success").Inc()
	m.InvoiceCharges.Observe(float64(charges))
	m.InvoiceSessions.Observe(float64(sessions))
}

// ObserveArchiveError counts an invoice that could not be archived.
func (m *Metrics) ObserveArchiveError() {
	if m == nil {
		return
	}
	m.ArchiveErrorsTotal.Inc()
}

// ObserveBillingCycle records a finished billing cycle.
func (m *Metrics) ObserveBillingCycle(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.BillingCyclesTotal.WithLabelValues(status).Inc()
	m.BillingCycleSeconds.Observe(d.Seconds())
}

// ObserveLockWait records how long an operation waited for a subscriber lock.
func (m *Metrics) ObserveLockWait(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.LockWaitDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveCache records a cache lookup.
func (m *Metrics) ObserveCache(cacheType string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cacheType).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(cacheType).Inc()
	}
}

// ObserveDBStats copies connection pool statistics into the database gauges.
func (m *Metrics) ObserveDBStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
	m.DBConnectionsInUse.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	m.DBWaitCount.Set(float64(stats.WaitCount))
}

// SetSubscribers updates the subscriber gauge.
func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.SubscribersTotal.Set(float64(n))
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics. The path
// label uses the route template when one is supplied by routeName.
func HTTPMetricsMiddleware(metrics *Metrics, routeName func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if metrics == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			path := r.URL.Path
			if routeName != nil {
				if name := routeName(r); name != "" {
					path = name
				}
			}
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
