package harness

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/roach88/waypost/internal/analytics"
	"github.com/roach88/waypost/internal/ir"
	"github.com/roach88/waypost/internal/manifest"
	"github.com/roach88/waypost/internal/navigation"
	"github.com/roach88/waypost/internal/store"
	"github.com/roach88/waypost/internal/testutil"
)

// Harness executes one scenario.
type Harness struct {
	scenario *Scenario
	opts     []navigation.Option
	store    *store.Store
	grants   *navigation.Grants
	events   *analytics.Recorder
	ids      *testutil.SequentialGenerator
	clock    *testutil.ManualClock
	coord    *navigation.Coordinator
	aliases  map[string]string
	result   *Result
}

// Run executes a scenario in a fresh in-memory store and returns its
// result. An error means the scenario could not run at all; step and
// assertion failures are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		scenario: scenario,
		store:    st,
		events:   &analytics.Recorder{},
		ids:      testutil.NewSequentialGenerator("flow"),
		clock:    testutil.NewManualClock(testutil.Epoch),
		aliases:  make(map[string]string),
		result:   NewResult(),
	}
	h.grants = navigation.NewGrants()
	for _, e := range scenario.Entitlements {
		h.grants.Grant(navigation.Entitlement(e))
	}

	if scenario.Manifest != "" {
		m, err := manifest.Load(scenario.Manifest)
		if err != nil {
			return nil, fmt.Errorf("failed to load manifest: %w", err)
		}
		if h.opts, err = m.Options(h.grants); err != nil {
			return nil, fmt.Errorf("failed to build coordinator: %w", err)
		}
	} else {
		h.opts = []navigation.Option{navigation.WithEntitlements(h.grants)}
	}
	h.opts = append(h.opts,
		navigation.WithSink(h.events),
		navigation.WithIDGenerator(h.ids),
		navigation.WithNow(h.clock.Now),
		navigation.WithFlowStore(st),
		navigation.OnBlocked(func(r navigation.Route, req navigation.Entitlement) {
			h.result.Blocked = append(h.result.Blocked, BlockedCall{Route: r.String(), Requirement: string(req)})
		}),
	)
	if scenario.Layout == "regular" {
		h.opts = append(h.opts, navigation.WithLayout(navigation.Regular))
	}
	h.coord = navigation.NewCoordinator(h.opts...)

	for i, step := range scenario.Steps {
		if err := h.execute(i, step); err != nil {
			return nil, fmt.Errorf("steps[%d] %s: %w", i, step.Op, err)
		}
	}

	h.result.Events = h.events.Events()
	h.result.State = h.coord.Snapshot()
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

// execute runs one step and appends its trace entry. Each step advances
// the manual clock by one second.
func (h *Harness) execute(i int, step Step) error {
	h.clock.Advance(time.Second)
	before := len(h.events.Events())

	target, outcome, err := h.apply(step)
	if err != nil {
		return err
	}

	ev := TraceEvent{Step: i, Op: step.Op, Target: target, Outcome: outcome}
	for _, e := range h.events.Events()[before:] {
		ev.Events = append(ev.Events, renderEvent(e))
	}
	h.result.Trace = append(h.result.Trace, ev)

	if step.Expect != "" && step.Expect != outcome {
		h.result.AddError(fmt.Sprintf("steps[%d] %s: expected %q, got %q", i, step.Op, step.Expect, outcome))
	}
	return nil
}

func (h *Harness) apply(step Step) (target, outcome string, err error) {
	c := h.coord

	switch step.Op {
	case OpNavigate, OpNavigateIfAllowed:
		route := navigation.Route{ID: step.Route, Params: step.Params, Requires: navigation.Entitlement(step.Requires)}
		target = route.String()
		var style navigation.PresentationStyle
		if step.Style != "" {
			if style, err = navigation.ParseStyle(step.Style); err != nil {
				return "", "", err
			}
		}
		if step.Op == OpNavigateIfAllowed {
			return target, strconv.FormatBool(c.NavigateWithIfAllowed(route, style)), nil
		}
		c.NavigateWith(route, style)
		return target, "ok", nil

	case OpDismiss:
		levels := step.Levels
		if levels == 0 {
			levels = 1
		}
		return strconv.Itoa(levels), strconv.Itoa(c.Dismiss(levels)), nil

	case OpDismissSheets:
		return strconv.Itoa(step.Depth), strconv.Itoa(c.DismissSheets(step.Depth)), nil

	case OpPopToRoot:
		if step.Tab == nil {
			c.PopToRoot()
			return "", "ok", nil
		}
		return strconv.Itoa(*step.Tab), strconv.FormatBool(c.PopTabToRoot(*step.Tab)), nil

	case OpSelectTab:
		return strconv.Itoa(*step.Tab), strconv.FormatBool(c.SelectTab(*step.Tab)), nil

	case OpStartFlow:
		flow, err := c.StartFlow(step.Flow, step.At)
		if err != nil {
			return step.Flow, "error: " + err.Error(), nil
		}
		if step.As != "" {
			h.aliases[step.As] = flow.ID
		}
		return step.Flow, flow.ID, nil

	case OpAdvance:
		data, err := ir.ObjectFromAny(step.Data)
		if err != nil {
			return "", "", err
		}
		id := h.flowID(step.Flow)
		return id, c.AdvanceFlow(id, data).String(), nil

	case OpBack:
		id := h.flowID(step.Flow)
		return id, strconv.FormatBool(c.FlowBack(id)), nil

	case OpSkip:
		id := h.flowID(step.Flow)
		return id, strconv.FormatBool(c.SkipFlow(id, step.To)), nil

	case OpCancel:
		id := h.flowID(step.Flow)
		return id, strconv.FormatBool(c.CancelFlow(id)), nil

	case OpDeepLink:
		return step.URL, strconv.FormatBool(c.Handle(step.URL)), nil

	case OpGrant:
		h.grants.Grant(navigation.Entitlement(step.Entitlement))
		return step.Entitlement, "ok", nil

	case OpRevoke:
		h.grants.Revoke(navigation.Entitlement(step.Entitlement))
		return step.Entitlement, "ok", nil

	case OpLayout:
		layout := navigation.Compact
		if step.Layout == "regular" {
			layout = navigation.Regular
		}
		c.SetLayout(layout)
		return step.Layout, "ok", nil

	case OpRestart:
		// A new coordinator over the same store: only persistent flows survive.
		h.coord = navigation.NewCoordinator(h.opts...)
		n, err := h.coord.RestoreFlows(context.Background())
		if err != nil {
			return "", "", err
		}
		return "", strconv.Itoa(n), nil
	}
	return "", "", fmt.Errorf("unknown op %q", step.Op)
}

func (h *Harness) flowID(ref string) string {
	if id, ok := h.aliases[ref]; ok {
		return id
	}
	return ref
}
