// Package analytics carries navigation events to fire-and-forget sinks.
//
// The navigation coordinator never blocks on or inspects a sink. Sinks must
// return quickly; anything slow belongs behind a buffer in the sink itself.
package analytics

import (
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Kind identifies an event.
type Kind string

const (
	ScreenViewed       Kind = "screen_viewed"
	FlowStarted        Kind = "flow_started"
	FlowStepCompleted  Kind = "flow_step_completed"
	FlowCompleted      Kind = "flow_completed"
	FlowAbandoned      Kind = "flow_abandoned"
	EntitlementBlocked Kind = "entitlement_blocked"
)

// Kinds lists every event kind in a stable order.
var Kinds = []Kind{
	ScreenViewed,
	FlowStarted,
	FlowStepCompleted,
	FlowCompleted,
	FlowAbandoned,
	EntitlementBlocked,
}

// Event is one analytics record. Fields irrelevant to a Kind are empty.
type Event struct {
	Kind        Kind      `json:"kind" yaml:"kind"`
	Route       string    `json:"route,omitempty" yaml:"route,omitempty"`
	Style       string    `json:"style,omitempty" yaml:"style,omitempty"`
	Tab         int       `json:"tab" yaml:"tab"`
	FlowID      string    `json:"flow_id,omitempty" yaml:"flow_id,omitempty"`
	FlowType    string    `json:"flow_type,omitempty" yaml:"flow_type,omitempty"`
	Step        int       `json:"step,omitempty" yaml:"step,omitempty"`
	Requirement string    `json:"requirement,omitempty" yaml:"requirement,omitempty"`
	At          time.Time `json:"-" yaml:"-"`
}

// Sink receives events.
type Sink interface {
	Track(e Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(e Event)

// Track implements Sink.
func (f SinkFunc) Track(e Event) { f(e) }

// Nop discards every event.
type Nop struct{}

// Track implements Sink.
func (Nop) Track(Event) {}

// LogSink writes events to a slog logger at debug level.
type LogSink struct {
	Logger *slog.Logger
}

// Track implements Sink.
func (s LogSink) Track(e Event) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("analytics event",
		"kind", e.Kind,
		"route", e.Route,
		"style", e.Style,
		"tab", e.Tab,
		"flow_id", e.FlowID,
		"flow_type", e.FlowType,
		"step", e.Step,
		"requirement", e.Requirement,
	)
}

// Recorder keeps events in memory. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Track implements Sink.
func (r *Recorder) Track(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfKind returns the recorded events of one kind.
func (r *Recorder) OfKind(k Kind) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

// Reset drops every recorded event.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Multi fans an event out to several sinks in order.
type Multi []Sink

// Track implements Sink.
func (m Multi) Track(e Event) {
	for _, s := range m {
		s.Track(e)
	}
}

// MetricsSink counts events by kind.
type MetricsSink struct {
	events *prometheus.CounterVec
}

// NewMetricsSink creates a sink registered on reg.
func NewMetricsSink(namespace string, reg prometheus.Registerer) *MetricsSink {
	if namespace == "" {
		namespace = "waypost"
	}
	s := &MetricsSink{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "navigation",
				Name:      "events_total",
				Help:      "Navigation analytics events by kind.",
			},
			[]string{"kind"},
		),
	}
	reg.MustRegister(s.events)
	return s
}

// Track implements Sink.
func (s *MetricsSink) Track(e Event) {
	s.events.WithLabelValues(string(e.Kind)).Inc()
}
