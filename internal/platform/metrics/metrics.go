// Package metrics exposes Prometheus collectors for the HTTP surface, the
// alert dispatcher and the realtime broadcaster.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "remora"

type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	alertsTriggered      *prometheus.CounterVec
	notificationFailures prometheus.Counter

	broadcastDelivered *prometheus.CounterVec
	broadcastDropped   *prometheus.CounterVec
	wsSessions         prometheus.Gauge
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		alertsTriggered: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_triggered_total",
				Help:      "Emergency alerts raised, by credential source",
			},
			[]string{"source"},
		),
		notificationFailures: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notification_failures_total",
				Help:      "Per-caregiver notifications that could not be stored",
			},
		),

		broadcastDelivered: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "broadcast_delivered_total",
				Help:      "Event frames handed to session buffers",
			},
			[]string{"event"},
		),
		broadcastDropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "broadcast_dropped_total",
				Help:      "Event frames dropped before reaching a session",
			},
			[]string{"event", "reason"},
		),
		wsSessions: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ws_sessions",
				Help:      "Connected websocket sessions",
			},
		),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and latency keyed by route pattern.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			method := c.Request().Method

			m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
			m.httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func (m *Metrics) AlertTriggered(source string) {
	m.alertsTriggered.WithLabelValues(source).Inc()
}

func (m *Metrics) NotificationFailed() {
	m.notificationFailures.Inc()
}

// SessionsChanged, Delivered and Dropped make Metrics a websocket.Observer.

func (m *Metrics) SessionsChanged(n int) {
	m.wsSessions.Set(float64(n))
}

func (m *Metrics) Delivered(eventType string, n int) {
	m.broadcastDelivered.WithLabelValues(eventType).Add(float64(n))
}

func (m *Metrics) Dropped(eventType, reason string, n int) {
	m.broadcastDropped.WithLabelValues(eventType, reason).Add(float64(n))
}
