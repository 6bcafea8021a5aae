package analytics

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	r.Track(Event{Kind: ScreenViewed, Route: "home"})
	r.Track(Event{Kind: FlowStarted, FlowID: "f-1"})
	r.Track(Event{Kind: ScreenViewed, Route: "detail"})

	assert.Len(t, r.Events(), 3)
	views := r.OfKind(ScreenViewed)
	assert.Len(t, views, 2)
	assert.Equal(t, "detail", views[1].Route)

	r.Reset()
	assert.Empty(t, r.Events())
}

func TestMulti(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	var calls int
	Multi{a, b, SinkFunc(func(Event) { calls++ }), Nop{}}.Track(Event{Kind: FlowCompleted})

	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)
	assert.Equal(t, 1, calls)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	LogSink{Logger: logger}.Track(Event{Kind: EntitlementBlocked, Route: "pro.export", Requirement: "pro"})

	out := buf.String()
	assert.Contains(t, out, "kind=entitlement_blocked")
	assert.Contains(t, out, "route=pro.export")
	assert.Contains(t, out, "requirement=pro")
}

func TestMetricsSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewMetricsSink("test", reg)

	s.Track(Event{Kind: ScreenViewed})
	s.Track(Event{Kind: ScreenViewed})
	s.Track(Event{Kind: FlowAbandoned})

	assert.Equal(t, 2.0, promtestutil.ToFloat64(s.events.WithLabelValues(string(ScreenViewed))))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(s.events.WithLabelValues(string(FlowAbandoned))))
}
