package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the outbound CalDAV protocol calls.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	caldavDuration  *prometheus.HistogramVec
	caldavTotal     *prometheus.CounterVec
	queueDepth      prometheus.Gauge
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	caldavDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "caldav_operation_duration_seconds",
		Help:    "Duration of outbound CalDAV operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "outcome"})

	caldavTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "caldav_operations_total",
		Help: "Total outbound CalDAV operations",
	}, []string{"operation", "outcome"})

	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "resync_queue_depth",
		Help: "Jobs currently waiting in the resync queue",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, caldavDuration, caldavTotal, queueDepth, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		caldavDuration:  caldavDuration,
		caldavTotal:     caldavTotal,
		queueDepth:      queueDepth,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveCalDAVOperation records one outbound protocol call. operation is
// one of create, delete, test_connection; outcome is success or failure.
func (m *MetricsService) ObserveCalDAVOperation(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.caldavDuration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
	m.caldavTotal.WithLabelValues(operation, outcome).Inc()
}

// SetQueueDepth reports the resync queue backlog.
func (m *MetricsService) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}
