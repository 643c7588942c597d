// Package metrics provides Prometheus instrumentation for the training controller.
//
// ctrain is a batch process, so metrics live on a private registry and are
// exported by writing a node-exporter textfile when a session ends.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the namespace for all ctrain metrics.
	Namespace = "ctrain"

	// Subsystem is the subsystem for controller metrics.
	Subsystem = "controller"
)

// Metrics holds the controller's Prometheus collectors.
type Metrics struct {
	reg *prometheus.Registry

	// Attempt metrics
	AttemptsTotal          *prometheus.CounterVec
	AttemptFailuresTotal   *prometheus.CounterVec
	RetriesTotal           prometheus.Counter
	AttemptDurationSeconds *prometheus.HistogramVec

	// Progress metrics
	CurrentRound prometheus.Gauge
	LatestMetric prometheus.Gauge
	BestMetric   prometheus.Gauge

	// Session metrics
	SessionsTotal      *prometheus.CounterVec
	ArchiveErrorsTotal prometheus.Counter
}

// New creates all metrics on a fresh private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	m := &Metrics{reg: reg}

	m.initAttemptMetrics(factory)
	m.initProgressMetrics(factory)
	m.initSessionMetrics(factory)

	return m
}

func (m *Metrics) initAttemptMetrics(factory promauto.Factory) {
	m.AttemptsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "attempts_total",
			Help:      "Total number of archived round attempts",
		},
		[]string{"status"},
	)

	m.AttemptFailuresTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "attempt_failures_total",
			Help:      "Total number of failed attempts by failure kind",
		},
		[]string{"reason"},
	)

	m.RetriesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "retries_total",
			Help:      "Total number of round retries",
		},
	)

	m.AttemptDurationSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "attempt_duration_seconds",
			Help:      "Wall time of a train+evaluate attempt in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 16), // 1s to ~9h
		},
		[]string{"status"},
	)
}

func (m *Metrics) initProgressMetrics(factory promauto.Factory) {
	m.CurrentRound = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "current_round",
			Help:      "Index of the round currently running",
		},
	)

	m.LatestMetric = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "latest_target_metric",
			Help:      "Target metric of the most recent successful round",
		},
	)

	m.BestMetric = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "best_target_metric",
			Help:      "Best target metric across the session's history",
		},
	)
}

func (m *Metrics) initSessionMetrics(factory promauto.Factory) {
	m.SessionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "sessions_total",
			Help:      "Total number of sessions by terminal verdict",
		},
		[]string{"verdict"},
	)

	m.ArchiveErrorsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "archive_errors_total",
			Help:      "Total number of fatal archive errors",
		},
	)
}

// ObserveAttempt records one archived attempt.
func (m *Metrics) ObserveAttempt(status string, d time.Duration) {
	m.AttemptsTotal.WithLabelValues(status).Inc()
	m.AttemptDurationSeconds.WithLabelValues(status).Observe(d.Seconds())
}

// ObserveFailure records a failed attempt by kind.
func (m *Metrics) ObserveFailure(reason string, retrying bool) {
	m.AttemptFailuresTotal.WithLabelValues(reason).Inc()
	if retrying {
		m.RetriesTotal.Inc()
	}
}

// Registry returns the private registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// WriteTextfile writes all metrics to path in the text exposition format,
// atomically, for the node-exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}
