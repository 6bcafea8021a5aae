package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is one navigation script.
type Scenario struct {
	Name         string      `yaml:"name"`
	Description  string      `yaml:"description"`
	Manifest     string      `yaml:"manifest,omitempty"`
	Entitlements []string    `yaml:"entitlements,omitempty"`
	Layout       string      `yaml:"layout,omitempty"`
	Steps        []Step      `yaml:"steps"`
	Assertions   []Assertion `yaml:"assertions,omitempty"`
}

// Step is one coordinator operation. Only the fields used by Op are read.
type Step struct {
	Op          string            `yaml:"op"`
	Route       string            `yaml:"route,omitempty"`
	Params      map[string]string `yaml:"params,omitempty"`
	Requires    string            `yaml:"requires,omitempty"`
	Style       string            `yaml:"style,omitempty"`
	Levels      int               `yaml:"levels,omitempty"`
	Depth       int               `yaml:"depth,omitempty"`
	Tab         *int              `yaml:"tab,omitempty"`
	Flow        string            `yaml:"flow,omitempty"`
	At          string            `yaml:"at,omitempty"`
	As          string            `yaml:"as,omitempty"`
	To          int               `yaml:"to,omitempty"`
	Data        map[string]any    `yaml:"data,omitempty"`
	URL         string            `yaml:"url,omitempty"`
	Entitlement string            `yaml:"entitlement,omitempty"`
	Layout      string            `yaml:"layout,omitempty"`
	Expect      string            `yaml:"expect,omitempty"`
}

// Step operations.
const (
	OpNavigate          = "navigate"
	OpNavigateIfAllowed = "navigate_if_allowed"
	OpDismiss           = "dismiss"
	OpDismissSheets     = "dismiss_sheets"
	OpPopToRoot         = "pop_to_root"
	OpSelectTab         = "select_tab"
	OpStartFlow         = "start_flow"
	OpAdvance           = "advance"
	OpBack              = "back"
	OpSkip              = "skip"
	OpCancel            = "cancel"
	OpDeepLink          = "deeplink"
	OpGrant             = "grant"
	OpRevoke            = "revoke"
	OpLayout            = "layout"
	OpRestart           = "restart"
)

// Assertion checks the final coordinator state or the analytics stream.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Tab selects the tab for "path" and "selected_tab".
	Tab *int `yaml:"tab,omitempty"`

	// Routes is the expected route list for "path" and "sheets", rendered
	// with Route.String.
	Routes []string `yaml:"routes,omitempty"`

	// Route is the expected fullscreen route for "full_screen". Empty means none.
	Route string `yaml:"route,omitempty"`

	// Kind is the analytics event kind for "event_count".
	Kind string `yaml:"kind,omitempty"`

	// Kinds is the expected subsequence of event kinds for "event_order".
	Kinds []string `yaml:"kinds,omitempty"`

	// Count is used by "event_count", "active_flows" and "blocked".
	Count int `yaml:"count"`

	// Requirement, when set, must match every blocked call for "blocked".
	Requirement string `yaml:"requirement,omitempty"`
}

// Assertion types.
const (
	AssertPath        = "path"
	AssertSheets      = "sheets"
	AssertFullScreen  = "full_screen"
	AssertSelectedTab = "selected_tab"
	AssertEventCount  = "event_count"
	AssertEventOrder  = "event_order"
	AssertActiveFlows = "active_flows"
	AssertBlocked     = "blocked"
)

// LoadScenario reads and validates a scenario file. A relative manifest
// path is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if scenario.Manifest != "" && !filepath.IsAbs(scenario.Manifest) {
		scenario.Manifest = filepath.Join(filepath.Dir(path), scenario.Manifest)
	}
	return scenario, nil
}

// ParseScenario decodes scenario YAML, rejecting unknown fields.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps must not be empty")
	}
	switch s.Layout {
	case "", "compact", "regular":
	default:
		return fmt.Errorf("layout must be compact or regular, got %q", s.Layout)
	}
	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, s Step) error {
	need := func(field, value string) error {
		if value == "" {
			return fmt.Errorf("steps[%d]: %s is required for %s", i, field, s.Op)
		}
		return nil
	}

	switch s.Op {
	case OpNavigate, OpNavigateIfAllowed:
		return need("route", s.Route)
	case OpDismiss, OpDismissSheets, OpPopToRoot, OpRestart:
		return nil
	case OpSelectTab:
		if s.Tab == nil {
			return fmt.Errorf("steps[%d]: tab is required for %s", i, s.Op)
		}
		return nil
	case OpStartFlow, OpAdvance, OpBack, OpSkip, OpCancel:
		return need("flow", s.Flow)
	case OpDeepLink:
		return need("url", s.URL)
	case OpGrant, OpRevoke:
		return need("entitlement", s.Entitlement)
	case OpLayout:
		if s.Layout != "compact" && s.Layout != "regular" {
			return fmt.Errorf("steps[%d]: layout must be compact or regular", i)
		}
		return nil
	case "":
		return fmt.Errorf("steps[%d]: op is required", i)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", i, s.Op)
	}
}

func validateAssertion(i int, a Assertion) error {
	switch a.Type {
	case AssertPath:
		if a.Tab == nil {
			return fmt.Errorf("assertions[%d]: tab is required for path", i)
		}
	case AssertSelectedTab:
		if a.Tab == nil {
			return fmt.Errorf("assertions[%d]: tab is required for selected_tab", i)
		}
	case AssertEventCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for event_count", i)
		}
	case AssertEventOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds is required for event_order", i)
		}
	case AssertSheets, AssertFullScreen, AssertActiveFlows, AssertBlocked:
	case "":
		return fmt.Errorf("assertions[%d]: type is required", i)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", i)
	}
	return nil
}
