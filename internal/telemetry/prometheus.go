package telemetry

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector records metrics into its own registry, served by Handler.
type PrometheusCollector struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	investments *prometheus.CounterVec
	upgrades    *prometheus.CounterVec
}

// NewPrometheusCollector registers the VonVault metrics under namespace,
// lowercased to follow Prometheus naming.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	ns := strings.ToLower(namespace)
	c := &PrometheusCollector{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of API requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "API request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		investments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "investments",
				Name:      "outcomes_total",
				Help:      "Investment submissions by outcome and membership level",
			},
			[]string{"outcome", "level"},
		),
		upgrades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "membership",
				Name:      "upgrades_total",
				Help:      "Cached membership level upgrades",
			},
			[]string{"from", "to"},
		),
	}

	c.registry.MustRegister(c.requests, c.latency, c.investments, c.upgrades)
	return c
}

// Registry returns the underlying registry.
func (c *PrometheusCollector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordRequest implements core.MetricsCollector.
func (c *PrometheusCollector) RecordRequest(method, endpoint, status string, duration time.Duration) {
	c.requests.WithLabelValues(method, endpoint, status).Inc()
	c.latency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordInvestment implements membership.Metrics.
func (c *PrometheusCollector) RecordInvestment(outcome, level string) {
	c.investments.WithLabelValues(outcome, level).Inc()
}

// RecordUpgrade implements membership.Metrics.
func (c *PrometheusCollector) RecordUpgrade(from, to string) {
	c.upgrades.WithLabelValues(from, to).Inc()
}
