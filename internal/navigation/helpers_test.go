package navigation

import (
	"testing"

	"github.com/roach88/waypost/internal/analytics"
	"github.com/roach88/waypost/internal/testutil"
)

type blockedCall struct {
	route Route
	req   Entitlement
}

type fixture struct {
	c       *Coordinator
	events  *analytics.Recorder
	grants  *Grants
	blocked []blockedCall
}

// newFixture builds a coordinator with three tabs, a recording sink,
// sequential flow ids and a blocked-callback recorder.
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		events: &analytics.Recorder{},
		grants: NewGrants(),
	}
	clock := testutil.NewManualClock(testutil.Epoch)
	base := []Option{
		WithTabs(Tab{Name: "home"}, Tab{Name: "search"}, Tab{Name: "profile"}),
		WithSink(f.events),
		WithEntitlements(f.grants),
		WithIDGenerator(testutil.NewSequentialGenerator("flow")),
		WithNow(clock.Now),
		OnBlocked(func(r Route, req Entitlement) {
			f.blocked = append(f.blocked, blockedCall{route: r, req: req})
		}),
	}
	f.c = NewCoordinator(append(base, opts...)...)
	return f
}

func onboarding() FlowDefinition {
	return FlowDefinition{
		Type: "onboarding",
		Steps: []FlowStep{
			{Path: "welcome"},
			{Path: "profile"},
			{Path: "interests"},
			{Path: "done"},
		},
	}
}

func upgrade() FlowDefinition {
	return FlowDefinition{
		Type: "upgrade",
		Steps: []FlowStep{
			{Path: "intro"},
			{Path: "export", Requires: "pro"},
			{Path: "finish"},
		},
	}
}

func routeIDs(rs []Route) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}
