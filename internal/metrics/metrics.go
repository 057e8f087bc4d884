// Package metrics provides Prometheus metrics for gea operations.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gea"

// Metrics holds every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	appendsTotal          *prometheus.CounterVec
	notificationsTotal    *prometheus.CounterVec
	statsCollectionsTotal *prometheus.CounterVec
	lockWaitsTotal        *prometheus.CounterVec
	commandDuration       *prometheus.HistogramVec
	categoryRecords       *prometheus.GaugeVec
	lastSuccess           *prometheus.GaugeVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		appendsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "appends_total",
				Help:      "Total record appends by category and result",
			},
			[]string{"category", "result"},
		),

		notificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Total notification attempts by result (sent, failed, disabled)",
			},
			[]string{"result"},
		),

		statsCollectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stats_collections_total",
				Help:      "Total statistics snapshots by result",
			},
			[]string{"result"},
		),

		lockWaitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lock_acquisitions_total",
				Help:      "Advisory lock acquisitions by result (acquired, contended, timeout, stale_removed)",
			},
			[]string{"result"},
		),

		commandDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "remote_command_duration_seconds",
				Help:      "Remote command round trip duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"result"},
		),

		categoryRecords: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "category_records",
				Help:      "Record lines per category at the last statistics snapshot",
			},
			[]string{"category"},
		),

		lastSuccess: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful operation",
			},
			[]string{"operation"},
		),
	}
}

// Registry exposes the underlying registry for tests and textfile output.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordAppend records one append attempt for a category.
func (m *Metrics) RecordAppend(category string, err error) {
	if m == nil {
		return
	}
	m.appendsTotal.WithLabelValues(category, result(err)).Inc()
	if err == nil {
		m.lastSuccess.WithLabelValues("append").SetToCurrentTime()
	}
}

// RecordNotification records a notification outcome: "sent", "failed" or "disabled".
func (m *Metrics) RecordNotification(outcome string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(outcome).Inc()
}

// RecordStats records a snapshot attempt and, on success, the per-category counts.
func (m *Metrics) RecordStats(counts map[string]int, err error) {
	if m == nil {
		return
	}
	m.statsCollectionsTotal.WithLabelValues(result(err)).Inc()
	if err != nil {
		return
	}
	for category, n := range counts {
		m.categoryRecords.WithLabelValues(category).Set(float64(n))
	}
	m.lastSuccess.WithLabelValues("stats").SetToCurrentTime()
}

// RecordLock records a lock acquisition outcome.
func (m *Metrics) RecordLock(outcome string) {
	if m == nil {
		return
	}
	m.lockWaitsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCommand records one remote command round trip.
func (m *Metrics) ObserveCommand(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.commandDuration.WithLabelValues(result(err)).Observe(d.Seconds())
}
