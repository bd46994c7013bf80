package observability

import (
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersAll(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	require.NotNil(t, m)

	// Registering twice on the same registry must panic with a duplicate error.
	assert.Panics(t, func() { NewMetrics(registry) })
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveSimulation("AV", "OK", 10, 0)
		m.ObserveInvoice(800, 1, nil)
		m.ObserveArchiveError()
		m.ObserveBillingCycle("success", time.Second)
		m.ObserveLockWait("simulate", time.Millisecond)
		m.ObserveCache("subscriber", true)
		m.ObserveDBStats(sql.DBStats{})
		m.SetSubscribers(3)
	})
}

func TestMetrics_ObserveSimulation(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveSimulation("AV", "OK", 7500, 0)
	m.ObserveSimulation("AV", "InsufficientBandwidth", 0, 0)
	m.ObserveSimulation("VC", "OK", 0, 120)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.SimulationsTotal.WithLabelValues("AV", "OK")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SimulationsTotal.WithLabelValues("AV", "InsufficientBandwidth")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SimulatedCallTime))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SimulatedDataVolume))
}

func TestMetrics_ObserveInvoice(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveInvoice(2200, 3, nil)
	m.ObserveInvoice(0, 0, errors.New("store down"))
	m.ObserveArchiveError()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.InvoicesTotal.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.InvoicesTotal.WithLabelValues("error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ArchiveErrorsTotal))
}

func TestMetrics_Gauges(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveDBStats(sql.DBStats{OpenConnections: 4, InUse: 1, Idle: 3, WaitCount: 9})
	m.SetSubscribers(12)
	m.ObserveCache("subscriber", true)
	m.ObserveCache("subscriber", false)

	assert.Equal(t, float64(4), testutil.ToFloat64(m.DBConnectionsOpen))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.DBConnectionsIdle))
	assert.Equal(t, float64(9), testutil.ToFloat64(m.DBWaitCount))
	assert.Equal(t, float64(12), testutil.ToFloat64(m.SubscribersTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheHitsTotal.WithLabelValues("subscriber")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheMissesTotal.WithLabelValues("subscriber")))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	handler := HTTPMetricsMiddleware(m, func(*http.Request) string { return "/api/v1/subscribers/{id}" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/subscribers/42", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/subscribers/{id}", "404")))
}

func TestHTTPMetricsMiddleware_NilMetrics(t *testing.T) {
	handler := HTTPMetricsMiddleware(nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.SetSubscribers(2)

	mux := http.NewServeMux()
	RegisterMetricsEndpoint(mux, registry)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "matsecom_subscribers_total 2"))
}
