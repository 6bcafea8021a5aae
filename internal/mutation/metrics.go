package mutation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the queue's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	pending       prometheus.Gauge
	failed        prometheus.Gauge
	drains        *prometheus.CounterVec
	outcomes      *prometheus.CounterVec
	drainDuration prometheus.Histogram
	dropped       prometheus.Counter
}

// NewMetrics creates queue collectors registered on a fresh registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "waypost"
	}

	m := &Metrics{registry: prometheus.NewRegistry()}

	m.pending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "pending_mutations",
		Help:      "Current number of pending mutations.",
	})
	m.failed = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "failed_mutations",
		Help:      "Current number of failed or conflicted mutations.",
	})
	m.drains = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "drains_total",
			Help:      "Drain passes by result (ran, busy, offline).",
		},
		[]string{"result"},
	)
	m.outcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "outcomes_total",
			Help:      "Mutation executions by outcome.",
		},
		[]string{"type", "outcome"},
	)
	m.drainDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "drain_duration_seconds",
		Help:      "Duration of drain passes that ran.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
	})
	m.dropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "dropped_total",
		Help:      "Mutations dropped at enqueue because they could not be serialized.",
	})

	m.registry.MustRegister(
		m.pending,
		m.failed,
		m.drains,
		m.outcomes,
		m.drainDuration,
		m.dropped,
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) setDepth(pending, failed int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(pending))
	m.failed.Set(float64(failed))
}

func (m *Metrics) recordDrain(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.drains.WithLabelValues(result).Inc()
	if result == drainRan {
		m.drainDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) recordOutcome(typ string, o Outcome) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(typ, o.String()).Inc()
}

func (m *Metrics) recordDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}
