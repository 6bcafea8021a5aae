package navigation

import (
	"fmt"
	"time"

	"github.com/roach88/waypost/internal/ir"
)

// FlowStep is one screen of a flow.
type FlowStep struct {
	Path     string      `json:"path" yaml:"path"`
	Requires Entitlement `json:"requires,omitempty" yaml:"requires,omitempty"`
}

// FlowDefinition describes a kind of flow. Persistent flows are written to
// the coordinator's FlowStore on every change and survive restarts.
type FlowDefinition struct {
	Type       string     `json:"type" yaml:"type"`
	Steps      []FlowStep `json:"steps" yaml:"steps"`
	Persistent bool       `json:"persistent,omitempty" yaml:"persistent,omitempty"`
}

// Validate checks that the definition has a type and unique, non-empty
// step paths.
func (d FlowDefinition) Validate() error {
	if d.Type == "" {
		return fmt.Errorf("%w: missing type", ErrInvalidFlow)
	}
	if len(d.Steps) == 0 {
		return fmt.Errorf("%w: flow %q has no steps", ErrInvalidFlow, d.Type)
	}
	seen := make(map[string]bool, len(d.Steps))
	for i, s := range d.Steps {
		if s.Path == "" {
			return fmt.Errorf("%w: flow %q step %d has no path", ErrInvalidFlow, d.Type, i)
		}
		if seen[s.Path] {
			return fmt.Errorf("%w: flow %q repeats step %q", ErrInvalidFlow, d.Type, s.Path)
		}
		seen[s.Path] = true
	}
	return nil
}

// StepIndex returns the index of the step with the given path.
func (d FlowDefinition) StepIndex(path string) (int, bool) {
	for i, s := range d.Steps {
		if s.Path == path {
			return i, true
		}
	}
	return 0, false
}

func (d FlowDefinition) paths() []string {
	out := make([]string, len(d.Steps))
	for i, s := range d.Steps {
		out[i] = s.Path
	}
	return out
}

// FlowState is the cursor of one running flow.
//
// Current is always in [0, TotalSteps()). History holds the indices the
// flow left, most recent last; every entry is below the step that was
// entered after it.
type FlowState struct {
	ID         string
	Type       string
	Current    int
	History    []int
	Data       ir.Object
	StepPaths  []string
	Persistent bool
}

// NewFlowState creates a flow positioned at start.
func NewFlowState(id, flowType string, stepPaths []string, start int) (*FlowState, error) {
	if len(stepPaths) == 0 {
		return nil, fmt.Errorf("%w: flow %q has no steps", ErrInvalidFlow, flowType)
	}
	if start < 0 || start >= len(stepPaths) {
		return nil, fmt.Errorf("%w: start %d out of range for %d steps", ErrUnknownStep, start, len(stepPaths))
	}
	paths := make([]string, len(stepPaths))
	copy(paths, stepPaths)
	return &FlowState{
		ID:        id,
		Type:      flowType,
		Current:   start,
		Data:      ir.Object{},
		StepPaths: paths,
	}, nil
}

// TotalSteps returns the number of steps.
func (f *FlowState) TotalSteps() int {
	return len(f.StepPaths)
}

// IsLastStep reports whether the cursor is on the final step.
func (f *FlowState) IsLastStep() bool {
	return f.Current >= len(f.StepPaths)-1
}

// CurrentPath returns the path of the current step.
func (f *FlowState) CurrentPath() string {
	return f.StepPaths[f.Current]
}

// Advance moves one step forward. Returns false without change on the
// last step.
func (f *FlowState) Advance() bool {
	if f.IsLastStep() {
		return false
	}
	f.History = append(f.History, f.Current)
	f.Current++
	return true
}

// Back returns to the previous step. Returns false without change when
// history is empty.
func (f *FlowState) Back() bool {
	n := len(f.History)
	if n == 0 {
		return false
	}
	f.Current = f.History[n-1]
	f.History = f.History[:n-1]
	return true
}

// Skip jumps forward to index, recording the current step in history so
// Back returns to it. Only strictly forward, in-range jumps are allowed.
func (f *FlowState) Skip(to int) bool {
	if to <= f.Current || to >= len(f.StepPaths) {
		return false
	}
	f.History = append(f.History, f.Current)
	f.Current = to
	return true
}

// Reset returns to step 0 and drops history and collected data.
func (f *FlowState) Reset() {
	f.Current = 0
	f.History = nil
	f.Data = ir.Object{}
}

// Merge copies data into the collected data. Incoming keys win.
func (f *FlowState) Merge(data ir.Object) {
	if len(data) == 0 {
		return
	}
	if f.Data == nil {
		f.Data = ir.Object{}
	}
	f.Data.Merge(data)
}

// Clone returns a deep copy.
func (f *FlowState) Clone() *FlowState {
	out := *f
	out.History = append([]int(nil), f.History...)
	out.StepPaths = append([]string(nil), f.StepPaths...)
	out.Data = f.Data.Clone()
	return &out
}

// Snapshot converts the flow to its persisted form.
func (f *FlowState) Snapshot(at time.Time) ir.FlowSnapshot {
	return ir.FlowSnapshot{
		ID:          f.ID,
		FlowType:    f.Type,
		CurrentStep: f.Current,
		History:     append([]int(nil), f.History...),
		Data:        f.Data.Clone(),
		TotalSteps:  len(f.StepPaths),
		StepPaths:   append([]string(nil), f.StepPaths...),
		UpdatedAt:   at,
	}
}

// FlowFromSnapshot rebuilds a persistent flow, rejecting snapshots that
// break the cursor invariants.
func FlowFromSnapshot(snap ir.FlowSnapshot) (*FlowState, error) {
	if snap.TotalSteps != len(snap.StepPaths) {
		return nil, fmt.Errorf("flow %s: %d step paths for %d steps", snap.ID, len(snap.StepPaths), snap.TotalSteps)
	}
	f, err := NewFlowState(snap.ID, snap.FlowType, snap.StepPaths, snap.CurrentStep)
	if err != nil {
		return nil, fmt.Errorf("flow %s: %w", snap.ID, err)
	}
	prev := -1
	for _, h := range snap.History {
		if h < 0 || h >= snap.CurrentStep {
			return nil, fmt.Errorf("flow %s: history entry %d not before step %d", snap.ID, h, snap.CurrentStep)
		}
		if h <= prev {
			return nil, fmt.Errorf("flow %s: history not increasing", snap.ID)
		}
		prev = h
	}
	f.History = append([]int(nil), snap.History...)
	if snap.Data != nil {
		f.Data = snap.Data.Clone()
	}
	f.Persistent = true
	return f, nil
}
