package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the gateway's Prometheus metrics. A fresh registry is
// created per collector so tests can instantiate it without double
// registration panics.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	rateLimitExceeded *prometheus.CounterVec
	wsActive          prometheus.Gauge
	wsRejected        *prometheus.CounterVec
	backendUp         *prometheus.GaugeVec
}

// NewCollector creates and registers all gateway metrics.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total inbound HTTP requests by normalized route.",
		}, []string{"route", "method", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Inbound request latency by normalized route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		rateLimitExceeded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_rate_limit_exceeded_total",
			Help: "Requests rejected by the rate limiter.",
		}, []string{"route"}),
		wsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_ws_connections_active",
			Help: "Currently open WebSocket connections.",
		}),
		wsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_ws_rejected_total",
			Help: "WebSocket upgrades rejected before activation.",
		}, []string{"reason"}),
		backendUp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_backend_up",
			Help: "Last observed backend health (1 online, 0.5 degraded, 0 offline).",
		}, []string{"service"}),
	}
}

// Handler returns the Prometheus text exposition handler.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordRequest records a completed request.
func (c *Collector) RecordRequest(route, method string, status int, seconds float64) {
	c.requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(route).Observe(seconds)
}

// RecordRateLimited counts a 429 issued for the given route.
func (c *Collector) RecordRateLimited(route string) {
	c.rateLimitExceeded.WithLabelValues(route).Inc()
}

// WSOpened increments the active connection gauge.
func (c *Collector) WSOpened() { c.wsActive.Inc() }

// WSClosed decrements the active connection gauge.
func (c *Collector) WSClosed() { c.wsActive.Dec() }

// RecordWSRejected counts a rejected WebSocket upgrade.
func (c *Collector) RecordWSRejected(reason string) {
	c.wsRejected.WithLabelValues(reason).Inc()
}

// SetBackendHealth records the latest aggregated health for a service.
func (c *Collector) SetBackendHealth(service string, value float64) {
	c.backendUp.WithLabelValues(service).Set(value)
}
