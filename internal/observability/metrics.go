// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the risk core.
type Metrics struct {
	// Monitor metrics
	MonitorCycles        prometheus.Counter
	MonitorCycleDuration prometheus.Histogram
	PositionsMonitored   prometheus.Gauge
	DecisionsTotal       *prometheus.CounterVec

	// Trailing stop metrics
	TrailingActivations prometheus.Counter
	TrailingUpdates     prometheus.Counter
	TrailingTriggers    prometheus.Counter

	// Circuit breaker metrics
	BreakerState       prometheus.Gauge // 0=CLOSED, 1=HALF_OPEN, 2=OPEN
	BreakerTransitions *prometheus.CounterVec

	// Risk limiter metrics
	LimitRejections *prometheus.CounterVec
	LimitWarnings   prometheus.Counter

	// Strategy metrics
	StrategiesBuilt  *prometheus.CounterVec
	StrategiesScored prometheus.Counter
	BuildFailures    *prometheus.CounterVec

	// Event log metrics
	EventLogBuffered prometheus.Gauge
	EventLogFlushes  prometheus.Counter
	EventsWritten    prometheus.Counter

	// Market data feed metrics
	FeedMessages   prometheus.Counter
	FeedReconnects prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "options_risk_core"
	}

	return &Metrics{
		MonitorCycles: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "cycles_total",
			Help:      "Total number of monitoring cycles completed",
		}),
		MonitorCycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "cycle_duration_seconds",
			Help:      "Monitoring cycle duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		PositionsMonitored: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "positions",
			Help:      "Number of open positions in the last cycle",
		}),
		DecisionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "decisions_total",
			Help:      "Total number of decisions by action and urgency",
		}, []string{"action", "urgency"}),

		TrailingActivations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trailing",
			Name:      "activations_total",
			Help:      "Total number of trailing stop activations",
		}),
		TrailingUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trailing",
			Name:      "updates_total",
			Help:      "Total number of trailing stop level updates",
		}),
		TrailingTriggers: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trailing",
			Name:      "triggers_total",
			Help:      "Total number of trailing stop triggers",
		}),

		BreakerState: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "state",
			Help:      "Circuit breaker state (0=CLOSED, 1=HALF_OPEN, 2=OPEN)",
		}),
		BreakerTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "transitions_total",
			Help:      "Total number of circuit breaker transitions by target state",
		}, []string{"to"}),

		LimitRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "limit_rejections_total",
			Help:      "Total number of portfolio limit rejections by check",
		}, []string{"check"}),
		LimitWarnings: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "limit_warnings_total",
			Help:      "Total number of health-check limit warnings",
		}),

		StrategiesBuilt: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "built_total",
			Help:      "Total number of strategies built by type",
		}, []string{"type"}),
		StrategiesScored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "scored_total",
			Help:      "Total number of strategies scored",
		}),
		BuildFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "build_failures_total",
			Help:      "Total number of strategy build failures by reason",
		}, []string{"reason"}),

		EventLogBuffered: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "eventlog",
			Name:      "buffered",
			Help:      "Number of risk events awaiting flush",
		}),
		EventLogFlushes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eventlog",
			Name:      "flushes_total",
			Help:      "Total number of event log flushes",
		}),
		EventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eventlog",
			Name:      "events_written_total",
			Help:      "Total number of risk events written to storage",
		}),

		FeedMessages: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "messages_total",
			Help:      "Total number of quote feed messages processed",
		}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of quote feed reconnections",
		}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordDecision increments the decision counter.
func RecordDecision(action, urgency string) {
	DefaultMetrics.DecisionsTotal.WithLabelValues(action, urgency).Inc()
}

// RecordCycle records one completed monitoring cycle.
func RecordCycle(positions int, seconds float64) {
	DefaultMetrics.MonitorCycles.Inc()
	DefaultMetrics.PositionsMonitored.Set(float64(positions))
	DefaultMetrics.MonitorCycleDuration.Observe(seconds)
}

// RecordTrailingOutcome updates trailing stop counters for one update.
func RecordTrailingOutcome(outcome string) {
	switch outcome {
	case "ACTIVATED":
		DefaultMetrics.TrailingActivations.Inc()
	case "UPDATED":
		DefaultMetrics.TrailingUpdates.Inc()
	case "TRIGGERED":
		DefaultMetrics.TrailingTriggers.Inc()
	}
}

// RecordBreakerState updates the breaker state gauge and transition counter.
func RecordBreakerState(state string) {
	var v float64
	switch state {
	case "HALF_OPEN":
		v = 1
	case "OPEN":
		v = 2
	}
	DefaultMetrics.BreakerState.Set(v)
	DefaultMetrics.BreakerTransitions.WithLabelValues(state).Inc()
}

// RecordLimitRejection increments the rejection counter for a check.
func RecordLimitRejection(check string) {
	DefaultMetrics.LimitRejections.WithLabelValues(check).Inc()
}

// RecordStrategyBuilt increments the build counter for a type.
func RecordStrategyBuilt(strategyType string) {
	DefaultMetrics.StrategiesBuilt.WithLabelValues(strategyType).Inc()
}

// RecordBuildFailure increments the build failure counter.
func RecordBuildFailure(reason string) {
	DefaultMetrics.BuildFailures.WithLabelValues(reason).Inc()
}

// SetEventLogBuffered updates the buffered events gauge.
func SetEventLogBuffered(n int) {
	DefaultMetrics.EventLogBuffered.Set(float64(n))
}

// RecordEventLogFlush records one flush of n events.
func RecordEventLogFlush(n int) {
	DefaultMetrics.EventLogFlushes.Inc()
	DefaultMetrics.EventsWritten.Add(float64(n))
}

// RecordFeedMessage increments the feed message counter.
func RecordFeedMessage() {
	DefaultMetrics.FeedMessages.Inc()
}

// RecordFeedReconnect increments the feed reconnect counter.
func RecordFeedReconnect() {
	DefaultMetrics.FeedReconnects.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
