package harness

import (
	"fmt"
	"reflect"
	"strings"
)

// AssertionError describes a failed assertion with enough context to
// debug it from test output alone.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s -> %s\n", ev.Step, ev.Op, ev.Target, ev.Outcome)
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against a finished result and
// returns one message per failure.
func EvaluateAssertions(r *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(r, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluate(r *Result, a Assertion) error {
	fail := func(expected, actual any) error {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%v", expected),
			Actual:   fmt.Sprintf("%v", actual),
			Trace:    r.Trace,
		}
	}
	st := r.State

	switch a.Type {
	case AssertPath:
		if *a.Tab < 0 || *a.Tab >= len(st.Tabs) {
			return fail(fmt.Sprintf("tab %d", *a.Tab), fmt.Sprintf("%d tabs", len(st.Tabs)))
		}
		if got := st.Tabs[*a.Tab].Path; !sameStrings(got, a.Routes) {
			return fail(a.Routes, got)
		}

	case AssertSheets:
		if !sameStrings(st.Sheets, a.Routes) {
			return fail(a.Routes, st.Sheets)
		}

	case AssertFullScreen:
		if st.FullScreen != a.Route {
			return fail(quoteOrNone(a.Route), quoteOrNone(st.FullScreen))
		}

	case AssertSelectedTab:
		if st.SelectedTab != *a.Tab {
			return fail(*a.Tab, st.SelectedTab)
		}

	case AssertEventCount:
		n := 0
		for _, e := range r.Events {
			if string(e.Kind) == a.Kind {
				n++
			}
		}
		if n != a.Count {
			return fail(fmt.Sprintf("%d %s", a.Count, a.Kind), fmt.Sprintf("%d %s", n, a.Kind))
		}

	case AssertEventOrder:
		if !subsequence(r, a.Kinds) {
			kinds := make([]string, len(r.Events))
			for i, e := range r.Events {
				kinds[i] = string(e.Kind)
			}
			return fail(a.Kinds, kinds)
		}

	case AssertActiveFlows:
		if len(st.Flows) != a.Count {
			return fail(a.Count, len(st.Flows))
		}

	case AssertBlocked:
		if len(r.Blocked) != a.Count {
			return fail(a.Count, len(r.Blocked))
		}
		if a.Requirement != "" {
			for _, b := range r.Blocked {
				if b.Requirement != a.Requirement {
					return fail(a.Requirement, b.Requirement)
				}
			}
		}

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// subsequence reports whether kinds appear in the event stream in order,
// not necessarily adjacent.
func subsequence(r *Result, kinds []string) bool {
	next := 0
	for _, e := range r.Events {
		if next < len(kinds) && string(e.Kind) == kinds[next] {
			next++
		}
	}
	return next == len(kinds)
}

// sameStrings treats nil and empty as equal.
func sameStrings(a, b []string) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

func quoteOrNone(s string) string {
	if s == "" {
		return "<none>"
	}
	return fmt.Sprintf("%q", s)
}
