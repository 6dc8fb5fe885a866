package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yourusername/u2s/internal/core"
)

// Metrics holds the collectors exported on /metrics
type Metrics struct {
	registry *prometheus.Registry

	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	applies       *prometheus.CounterVec
	cameras       prometheus.Gauge
	monitors      prometheus.Gauge
	lastSuccess   prometheus.Gauge
}

// New creates the collectors on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "u2s_cycles_total",
			Help: "Reconciliation cycles by outcome.",
		}, []string{"outcome"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "u2s_cycle_duration_seconds",
			Help:    "Time spent in one reconciliation cycle.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		applies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "u2s_monitor_applies_total",
			Help: "Monitor apply calls by action and result.",
		}, []string{"action", "result"}),
		cameras: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "u2s_cameras",
			Help: "Cameras returned by the provider in the last successful cycle.",
		}),
		monitors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "u2s_monitors",
			Help: "Monitors listed by the platform in the last successful cycle.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "u2s_last_success_timestamp_seconds",
			Help: "Unix time of the last successful cycle.",
		}),
	}

	m.registry.MustRegister(
		m.cycles,
		m.cycleDuration,
		m.applies,
		m.cameras,
		m.monitors,
		m.lastSuccess,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveCycle records a finished cycle
func (m *Metrics) ObserveCycle(record core.CycleRecord) {
	m.cycles.WithLabelValues(string(record.Outcome)).Inc()
	m.cycleDuration.Observe(record.Duration.Seconds())

	if record.Outcome == core.OutcomeSuccess {
		m.cameras.Set(float64(record.Cameras))
		m.monitors.Set(float64(record.Monitors))
		m.lastSuccess.Set(float64(record.FinishedAt.Unix()))
	}
}

// ObserveApply records one create, update or skip
func (m *Metrics) ObserveApply(action string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.applies.WithLabelValues(action, result).Inc()
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the registry for tests and extra collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
