package navigation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/waypost/internal/analytics"
	"github.com/roach88/waypost/internal/ir"
)

// FlowOutcome is the result of AdvanceFlow.
type FlowOutcome int

const (
	// FlowNotFound means no active flow has the id.
	FlowNotFound FlowOutcome = iota
	// FlowAdvanced means the flow moved to its next step.
	FlowAdvanced
	// FlowCompleted means the flow was on its last step and is now finished.
	FlowCompleted
	// FlowBlocked means the next step requires a missing entitlement. The
	// flow and its data are unchanged.
	FlowBlocked
)

func (o FlowOutcome) String() string {
	switch o {
	case FlowAdvanced:
		return "advanced"
	case FlowCompleted:
		return "completed"
	case FlowBlocked:
		return "blocked"
	default:
		return "not_found"
	}
}

// RegisterFlow adds or replaces a flow definition.
func (c *Coordinator) RegisterFlow(def FlowDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	def.Steps = append([]FlowStep(nil), def.Steps...)
	c.definitions[def.Type] = def
	return nil
}

// FlowDefinition returns a registered definition.
func (c *Coordinator) FlowDefinition(flowType string) (FlowDefinition, bool) {
	def, ok := c.definitions[flowType]
	return def, ok
}

// StartFlow starts a new flow of the given type at startingStep, or at
// step 0 when startingStep is empty. The returned state is a copy.
func (c *Coordinator) StartFlow(flowType, startingStep string) (*FlowState, error) {
	def, ok := c.definitions[flowType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFlow, flowType)
	}
	start := 0
	if startingStep != "" {
		if start, ok = def.StepIndex(startingStep); !ok {
			return nil, fmt.Errorf("%w: %s has no step %q", ErrUnknownStep, flowType, startingStep)
		}
	}
	if req := def.Steps[start].Requires; !c.allowed(req) {
		c.blocked(Route{ID: def.Steps[start].Path, Requires: req}, req)
		return nil, fmt.Errorf("%w: %s", ErrBlocked, req)
	}

	flow, err := NewFlowState(c.ids.Generate(), def.Type, def.paths(), start)
	if err != nil {
		return nil, err
	}
	flow.Persistent = def.Persistent

	c.flows[flow.ID] = flow
	c.flowOrder = append(c.flowOrder, flow.ID)
	c.persist(flow)

	slog.Debug("flow started", "flow_id", flow.ID, "flow_type", flow.Type, "step", flow.Current)
	c.track(analytics.Event{
		Kind:     analytics.FlowStarted,
		Tab:      c.selected,
		FlowID:   flow.ID,
		FlowType: flow.Type,
		Step:     flow.Current,
	})
	return flow.Clone(), nil
}

// AdvanceFlow merges data into the flow and moves it forward. On the last
// step the flow completes and is removed.
func (c *Coordinator) AdvanceFlow(id string, data ir.Object) FlowOutcome {
	flow, ok := c.flows[id]
	if !ok {
		return FlowNotFound
	}
	if !flow.IsLastStep() {
		if !c.stepAllowed(flow, flow.Current+1) {
			return FlowBlocked
		}
	}

	flow.Merge(data)
	completed := flow.Current
	if flow.Advance() {
		c.persist(flow)
		c.track(analytics.Event{
			Kind:     analytics.FlowStepCompleted,
			Tab:      c.selected,
			FlowID:   flow.ID,
			FlowType: flow.Type,
			Step:     completed,
		})
		return FlowAdvanced
	}

	c.removeFlow(id)
	slog.Debug("flow completed", "flow_id", flow.ID, "flow_type", flow.Type)
	c.track(analytics.Event{
		Kind:     analytics.FlowCompleted,
		Tab:      c.selected,
		FlowID:   flow.ID,
		FlowType: flow.Type,
		Step:     flow.Current,
	})
	if c.onCompleted != nil {
		c.onCompleted(flow.Clone())
	}
	return FlowCompleted
}

// FlowBack returns a flow to its previous step.
func (c *Coordinator) FlowBack(id string) bool {
	flow, ok := c.flows[id]
	if !ok || !flow.Back() {
		return false
	}
	c.persist(flow)
	return true
}

// SkipFlow jumps a flow forward to step index to. Gated targets are
// blocked like AdvanceFlow.
func (c *Coordinator) SkipFlow(id string, to int) bool {
	flow, ok := c.flows[id]
	if !ok || to <= flow.Current || to >= flow.TotalSteps() {
		return false
	}
	if !c.stepAllowed(flow, to) {
		return false
	}
	flow.Skip(to)
	c.persist(flow)
	return true
}

// CancelFlow abandons a flow and dismisses one presentation level.
// Returns false, dismissing nothing, if the flow does not exist.
func (c *Coordinator) CancelFlow(id string) bool {
	flow, ok := c.flows[id]
	if !ok {
		return false
	}
	c.removeFlow(id)
	slog.Debug("flow abandoned", "flow_id", flow.ID, "flow_type", flow.Type, "step", flow.Current)
	c.track(analytics.Event{
		Kind:     analytics.FlowAbandoned,
		Tab:      c.selected,
		FlowID:   flow.ID,
		FlowType: flow.Type,
		Step:     flow.Current,
	})
	c.Dismiss(1)
	return true
}

// Flow returns a copy of an active flow.
func (c *Coordinator) Flow(id string) (*FlowState, bool) {
	flow, ok := c.flows[id]
	if !ok {
		return nil, false
	}
	return flow.Clone(), true
}

// ActiveFlows returns copies of the active flows in start order.
func (c *Coordinator) ActiveFlows() []*FlowState {
	out := make([]*FlowState, 0, len(c.flowOrder))
	for _, id := range c.flowOrder {
		out = append(out, c.flows[id].Clone())
	}
	return out
}

// RestoreFlows loads persisted flows from the FlowStore. Flows already
// active are left alone; malformed snapshots are logged and skipped.
// Returns the number of flows restored.
func (c *Coordinator) RestoreFlows(ctx context.Context) (int, error) {
	if c.flowStore == nil {
		return 0, nil
	}
	snaps, err := c.flowStore.LoadFlows(ctx)
	if err != nil {
		return 0, fmt.Errorf("restore flows: %w", err)
	}
	restored := 0
	for _, snap := range snaps {
		if _, ok := c.flows[snap.ID]; ok {
			continue
		}
		flow, err := FlowFromSnapshot(snap)
		if err != nil {
			slog.Warn("skipping persisted flow", "flow_id", snap.ID, "error", err)
			continue
		}
		c.flows[flow.ID] = flow
		c.flowOrder = append(c.flowOrder, flow.ID)
		restored++
	}
	slog.Debug("flows restored", "count", restored)
	return restored, nil
}

func (c *Coordinator) stepAllowed(flow *FlowState, index int) bool {
	def, ok := c.definitions[flow.Type]
	if !ok || index >= len(def.Steps) {
		return true
	}
	req := def.Steps[index].Requires
	if c.allowed(req) {
		return true
	}
	c.blocked(Route{ID: def.Steps[index].Path, Requires: req}, req)
	return false
}

func (c *Coordinator) removeFlow(id string) {
	flow := c.flows[id]
	delete(c.flows, id)
	for i, fid := range c.flowOrder {
		if fid == id {
			c.flowOrder = append(c.flowOrder[:i], c.flowOrder[i+1:]...)
			break
		}
	}
	if flow.Persistent && c.flowStore != nil {
		if err := c.flowStore.DeleteFlow(context.Background(), id); err != nil {
			slog.Warn("failed to delete persisted flow", "flow_id", id, "error", err)
		}
	}
}

// persist writes a persistent flow. Failures are logged; the in-memory
// state stays authoritative.
func (c *Coordinator) persist(flow *FlowState) {
	if !flow.Persistent || c.flowStore == nil {
		return
	}
	if err := c.flowStore.SaveFlow(context.Background(), flow.Snapshot(c.now())); err != nil {
		slog.Warn("failed to persist flow", "flow_id", flow.ID, "error", err)
	}
}
