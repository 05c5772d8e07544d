// Package metrics exposes Prometheus collectors for polling and delivery.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors. A nil *Metrics records nothing, so
// components can be built without instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	cycles        *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec
	fetchedItems  *prometheus.GaugeVec
	newItems      *prometheus.CounterVec
	notifications *prometheus.CounterVec
	saveErrors    *prometheus.CounterVec
	tracked       *prometheus.GaugeVec
}

// Cycle outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeNoData   = "no_data"
	OutcomeFetchErr = "fetch_error"
	OutcomeError    = "error"
)

// New creates collectors registered on a private registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.cycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamwatch_cycles_total",
			Help: "Poll cycles by source and outcome",
		},
		[]string{"source", "outcome"},
	)
	m.cycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streamwatch_cycle_duration_seconds",
			Help:    "Duration of poll cycles",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"source"},
	)
	m.fetchedItems = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "streamwatch_snapshot_items",
			Help: "Items in the latest snapshot of a source",
		},
		[]string{"source"},
	)
	m.newItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamwatch_new_items_total",
			Help: "Newly detected items",
		},
		[]string{"source"},
	)
	m.notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamwatch_notifications_total",
			Help: "Notification attempts by result",
		},
		[]string{"source", "result"},
	)
	m.saveErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamwatch_state_save_errors_total",
			Help: "Failed last-seen state writes",
		},
		[]string{"source"},
	)
	m.tracked = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "streamwatch_tracked_items",
			Help: "Identifiers in the last-seen set",
		},
		[]string{"source"},
	)

	m.registry.MustRegister(
		m.cycles, m.cycleDuration, m.fetchedItems, m.newItems,
		m.notifications, m.saveErrors, m.tracked,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCycle records a finished cycle.
func (m *Metrics) ObserveCycle(source, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(source, outcome).Inc()
	m.cycleDuration.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveSnapshot records the size of a fetched snapshot and how many of
// its items were new.
func (m *Metrics) ObserveSnapshot(source string, items, fresh int) {
	if m == nil {
		return
	}
	m.fetchedItems.WithLabelValues(source).Set(float64(items))
	m.newItems.WithLabelValues(source).Add(float64(fresh))
}

// Notification records one delivery attempt.
func (m *Metrics) Notification(source string, ok bool) {
	if m == nil {
		return
	}
	result := "sent"
	if !ok {
		result = "failed"
	}
	m.notifications.WithLabelValues(source, result).Inc()
}

// SaveError records a failed state write.
func (m *Metrics) SaveError(source string) {
	if m == nil {
		return
	}
	m.saveErrors.WithLabelValues(source).Inc()
}

// Tracked sets the size of a source's last-seen set.
func (m *Metrics) Tracked(source string, n int) {
	if m == nil {
		return
	}
	m.tracked.WithLabelValues(source).Set(float64(n))
}
