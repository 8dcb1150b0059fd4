// Package telemetry wires the core's ambient metrics: ticks processed,
// trades executed, and tick duration, registered against a private
// registry so tests never collide with the default global one.
//
// Grounded on metrics/metrics.go's promauto.With(Registry) idiom from the
// pack's SynapseStrike repo (namespace/subsystem GaugeVec construction);
// the teacher itself declares prometheus/client_golang but never wires it.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every counter, gauge and histogram the session
// orchestrator updates.
type Metrics struct {
	Registry *prometheus.Registry

	TicksProcessed  *prometheus.CounterVec
	TicksFailed     *prometheus.CounterVec
	TradesExecuted  *prometheus.CounterVec
	TickDuration    *prometheus.HistogramVec
	ActiveSessions  prometheus.Gauge
	PortfolioValue  *prometheus.GaugeVec
}

// New builds a fresh Metrics bundle against a new private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	return &Metrics{
		Registry: reg,

		TicksProcessed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "paperengine",
			Subsystem: "session",
			Name:      "ticks_processed_total",
			Help:      "Completed orchestrator ticks per session.",
		}, []string{"session_id", "asset"}),

		TicksFailed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "paperengine",
			Subsystem: "session",
			Name:      "ticks_failed_total",
			Help:      "Ticks that aborted before mutating session state.",
		}, []string{"session_id", "reason"}),

		TradesExecuted: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "paperengine",
			Subsystem: "execution",
			Name:      "trades_executed_total",
			Help:      "Buy/Sell fills, including forced stop-loss exits.",
		}, []string{"session_id", "kind"}),

		TickDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "paperengine",
			Subsystem: "session",
			Name:      "tick_duration_seconds",
			Help:      "Wall-clock duration of one orchestrator tick.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"session_id"}),

		ActiveSessions: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "paperengine",
			Subsystem: "session",
			Name:      "active_sessions",
			Help:      "Number of sessions currently active.",
		}),

		PortfolioValue: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "paperengine",
			Subsystem: "session",
			Name:      "portfolio_value",
			Help:      "Latest total_value snapshot per session.",
		}, []string{"session_id", "asset"}),
	}
}
