package manifest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/waypost/internal/navigation"
)

// Validation error codes (E200-E299).
const (
	ErrDuplicateTab     = "E201" // two tabs share a name
	ErrUnknownTab       = "E202" // link selects a tab that does not exist
	ErrUnknownFlow      = "E203" // link starts a flow that does not exist
	ErrUnknownStep      = "E204" // link names a step the flow does not have
	ErrLinkTarget       = "E205" // link has neither or both of route and flow
	ErrInvalidFlow      = "E206" // flow definition rejected by navigation
	ErrUnboundCapture   = "E207" // step ":name" has no matching capture in the pattern
	ErrDuplicatePattern = "E208" // two links share a pattern
)

// ValidationError is a cross-reference problem in a manifest.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is returned by Compile when Validate finds problems.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// AsValidationErrors extracts ValidationErrors from err.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var errs ValidationErrors
	if errors.As(err, &errs) {
		return errs, true
	}
	return nil, false
}

// Validate checks references between tabs, flows and links.
// Returns all errors found (does not fail fast).
func Validate(m *Manifest) []ValidationError {
	var errs []ValidationError

	seenTab := make(map[string]bool, len(m.Tabs))
	for i, t := range m.Tabs {
		if seenTab[t.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("tabs[%d]", i),
				Message: fmt.Sprintf("duplicate tab %q", t.Name),
				Code:    ErrDuplicateTab,
			})
		}
		seenTab[t.Name] = true
	}

	flows := make(map[string]navigation.FlowDefinition, len(m.Flows))
	for _, def := range m.Flows {
		if err := def.Validate(); err != nil {
			errs = append(errs, ValidationError{
				Field:   "flows." + def.Type,
				Message: err.Error(),
				Code:    ErrInvalidFlow,
			})
		}
		flows[def.Type] = def
	}

	seenPattern := make(map[string]bool, len(m.Links))
	for i, link := range m.Links {
		field := fmt.Sprintf("links[%d]", i)

		if seenPattern[link.Pattern] {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("duplicate pattern %q", link.Pattern), Code: ErrDuplicatePattern})
		}
		seenPattern[link.Pattern] = true

		if (link.Route == "") == (link.Flow == "") {
			errs = append(errs, ValidationError{Field: field, Message: "exactly one of route or flow is required", Code: ErrLinkTarget})
		}
		if link.Tab != nil && (*link.Tab < 0 || *link.Tab >= len(m.Tabs)) {
			errs = append(errs, ValidationError{Field: field + ".tab", Message: "unknown tab", Code: ErrUnknownTab})
		}
		if link.Flow == "" {
			continue
		}

		def, ok := flows[link.Flow]
		if !ok {
			errs = append(errs, ValidationError{Field: field + ".flow", Message: fmt.Sprintf("unknown flow %q", link.Flow), Code: ErrUnknownFlow})
			continue
		}
		switch {
		case strings.HasPrefix(link.Step, ":"):
			if !strings.Contains(link.Pattern+"/", "/"+link.Step+"/") {
				errs = append(errs, ValidationError{Field: field + ".step", Message: fmt.Sprintf("pattern has no capture %s", link.Step), Code: ErrUnboundCapture})
			}
		case link.Step != "":
			if _, ok := def.StepIndex(link.Step); !ok {
				errs = append(errs, ValidationError{Field: field + ".step", Message: fmt.Sprintf("flow %q has no step %q", link.Flow, link.Step), Code: ErrUnknownStep})
			}
		}
	}
	return errs
}
