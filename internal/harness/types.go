package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/waypost/internal/analytics"
	"github.com/roach88/waypost/internal/navigation"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Step    int      `json:"step"`
	Op      string   `json:"op"`
	Target  string   `json:"target,omitempty"`
	Outcome string   `json:"outcome"`
	Events  []string `json:"events,omitempty"` // analytics emitted by the step
}

// BlockedCall is one invocation of the entitlement-blocked callback.
type BlockedCall struct {
	Route       string `json:"route"`
	Requirement string `json:"requirement"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	Trace   []TraceEvent      `json:"trace"`
	Events  []analytics.Event `json:"-"`
	Blocked []BlockedCall     `json:"blocked"`
	State   navigation.State  `json:"state"`

	// Errors holds expect and assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Blocked: []BlockedCall{},
		Errors:  []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// renderEvent formats an analytics event on one line with a fixed field
// order, for traces and golden files.
func renderEvent(e analytics.Event) string {
	parts := []string{string(e.Kind)}
	if e.Route != "" {
		parts = append(parts, "route="+e.Route)
	}
	if e.Style != "" {
		parts = append(parts, "style="+e.Style)
	}
	parts = append(parts, fmt.Sprintf("tab=%d", e.Tab))
	if e.FlowID != "" {
		parts = append(parts,
			"flow="+e.FlowID,
			"type="+e.FlowType,
			fmt.Sprintf("step=%d", e.Step),
		)
	}
	if e.Requirement != "" {
		parts = append(parts, "requires="+e.Requirement)
	}
	return strings.Join(parts, " ")
}
