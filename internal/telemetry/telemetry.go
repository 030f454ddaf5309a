// Package telemetry provides the metrics backends of the VonVault API.
//
// Every backend records the same three signals:
//   - HTTP requests, labelled by method, chi route pattern and status.
//   - Investment outcomes, labelled by outcome and membership level.
//   - Membership upgrades, labelled by source and target level.
//
// The backend is selected by METRICS_BACKEND: "cloudwatch" buffers datums and
// ships them with PutMetricData, "prometheus" exposes a scrape endpoint, and
// "none" discards everything.
package telemetry

import (
	"time"

	"vonvault/internal/core"
	"vonvault/internal/membership"
)

// Collector is implemented by every backend.
type Collector interface {
	core.MetricsCollector
	membership.Metrics
}

// Metric names shared by the backends.
const (
	MetricRequestCount      = "RequestCount"
	MetricRequestLatency    = "RequestLatency"
	MetricInvestmentOutcome = "InvestmentOutcome"
	MetricMembershipUpgrade = "MembershipUpgrade"
)

// NoopCollector discards all metrics.
type NoopCollector struct{}

// RecordRequest implements core.MetricsCollector.
func (NoopCollector) RecordRequest(method, endpoint, status string, duration time.Duration) {}

// RecordInvestment implements membership.Metrics.
func (NoopCollector) RecordInvestment(outcome, level string) {}

// RecordUpgrade implements membership.Metrics.
func (NoopCollector) RecordUpgrade(from, to string) {}

var (
	_ Collector = NoopCollector{}
	_ Collector = (*CloudWatchCollector)(nil)
	_ Collector = (*PrometheusCollector)(nil)
)
