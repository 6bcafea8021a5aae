package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/waypost/internal/analytics"
	"github.com/roach88/waypost/internal/navigation"
)

func sampleResult() *Result {
	r := NewResult()
	r.Trace = []TraceEvent{{Step: 0, Op: OpNavigate, Target: "list", Outcome: "ok"}}
	r.Events = []analytics.Event{
		{Kind: analytics.ScreenViewed, Route: "list"},
		{Kind: analytics.FlowStarted, FlowID: "flow-0001"},
		{Kind: analytics.EntitlementBlocked, Requirement: "pro"},
		{Kind: analytics.FlowStepCompleted, FlowID: "flow-0001"},
	}
	r.Blocked = []BlockedCall{{Route: "sync", Requirement: "pro"}}
	r.State = navigation.State{
		SelectedTab: 1,
		Tabs: []navigation.TabState{
			{Index: 0, Name: "home", Path: []string{"list"}},
			{Index: 1, Name: "search", Path: []string{}},
		},
		Sheets:     []string{"compose"},
		FullScreen: "player",
		Flows:      []navigation.FlowView{{ID: "flow-0001"}},
	}
	return r
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	assertions := []Assertion{
		{Type: AssertPath, Tab: intPtr(0), Routes: []string{"list"}},
		{Type: AssertPath, Tab: intPtr(1)},
		{Type: AssertSheets, Routes: []string{"compose"}},
		{Type: AssertFullScreen, Route: "player"},
		{Type: AssertSelectedTab, Tab: intPtr(1)},
		{Type: AssertEventCount, Kind: "flow_started", Count: 1},
		{Type: AssertEventCount, Kind: "flow_completed", Count: 0},
		{Type: AssertEventOrder, Kinds: []string{"screen_viewed", "flow_step_completed"}},
		{Type: AssertActiveFlows, Count: 1},
		{Type: AssertBlocked, Count: 1, Requirement: "pro"},
	}

	assert.Empty(t, EvaluateAssertions(sampleResult(), assertions))
}

func TestEvaluateAssertions_Failures(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		want      string
	}{
		{
			name:      "path",
			assertion: Assertion{Type: AssertPath, Tab: intPtr(0), Routes: []string{"detail"}},
			want:      "Expected: [detail]",
		},
		{
			name:      "path tab out of range",
			assertion: Assertion{Type: AssertPath, Tab: intPtr(7)},
			want:      "Actual: 2 tabs",
		},
		{
			name:      "no fullscreen expected",
			assertion: Assertion{Type: AssertFullScreen},
			want:      `Actual: "player"`,
		},
		{
			name:      "event order",
			assertion: Assertion{Type: AssertEventOrder, Kinds: []string{"flow_step_completed", "flow_started"}},
			want:      "Assertion failed: event_order",
		},
		{
			name:      "blocked requirement",
			assertion: Assertion{Type: AssertBlocked, Count: 1, Requirement: "team"},
			want:      "Expected: team",
		},
		{
			name:      "event count",
			assertion: Assertion{Type: AssertEventCount, Kind: "screen_viewed", Count: 2},
			want:      "Expected: 2 screen_viewed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(sampleResult(), []Assertion{tt.assertion})
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.want)
			assert.Contains(t, errs[0], "[0] navigate list -> ok", "failure carries the trace")
		})
	}
}

func TestSubsequence(t *testing.T) {
	r := sampleResult()
	assert.True(t, subsequence(r, nil))
	assert.True(t, subsequence(r, []string{"flow_started", "entitlement_blocked"}))
	assert.False(t, subsequence(r, []string{"flow_started", "flow_started"}))
}
