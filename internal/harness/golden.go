package harness

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/waypost/internal/ir"
)

// TraceSnapshot is what golden files hold: the step trace, every blocked
// callback and the final state.
type TraceSnapshot struct {
	Scenario string        `json:"scenario"`
	Trace    []TraceEvent  `json:"trace"`
	Blocked  []BlockedCall `json:"blocked"`
	State    any           `json:"state"`
}

// CanonicalTrace serializes a result's snapshot with ir.MarshalCanonical
// so golden files are byte-stable.
func CanonicalTrace(name string, r *Result) ([]byte, error) {
	snap := TraceSnapshot{
		Scenario: name,
		Trace:    r.Trace,
		Blocked:  r.Blocked,
		State:    r.State,
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal trace: %w", err)
	}
	val, err := ir.UnmarshalValue(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize trace: %w", err)
	}
	out, err := ir.MarshalCanonical(val)
	if err != nil {
		return nil, fmt.Errorf("canonicalize trace: %w", err)
	}
	return append(out, '\n'), nil
}

// RunWithGolden runs a scenario and compares its trace with
// testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result with its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	traceJSON, err := CanonicalTrace(name, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, traceJSON)
	return nil
}
