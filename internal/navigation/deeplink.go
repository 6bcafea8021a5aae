package navigation

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// ResolutionKind says what a deep link resolved to.
type ResolutionKind string

const (
	ResolutionActions  ResolutionKind = "actions"
	ResolutionFlow     ResolutionKind = "flow"
	ResolutionBlocked  ResolutionKind = "blocked"
	ResolutionNotFound ResolutionKind = "not_found"
	ResolutionInvalid  ResolutionKind = "invalid"
)

// ActionKind is one coordinator operation in a deep-link plan.
type ActionKind string

const (
	ActionSelectTab ActionKind = "select_tab"
	ActionPush      ActionKind = "push"
	ActionPresent   ActionKind = "present"
	ActionDismiss   ActionKind = "dismiss"
	ActionPopToRoot ActionKind = "pop_to_root"
	ActionStartFlow ActionKind = "start_flow"
)

// Action is one step of a deep-link plan. Only the fields relevant to Kind
// are read. A nil Tab on ActionPopToRoot means the selected tab.
type Action struct {
	Kind     ActionKind
	Route    Route
	Style    PresentationStyle
	Tab      *int
	Levels   int
	FlowType string
	Step     string
}

// LinkResolution is the result of resolving a URL.
type LinkResolution struct {
	Kind     ResolutionKind
	Actions  []Action
	FlowType string
	Step     string
	Route    Route
	Requires Entitlement
}

// DeepLinkResolver turns a URL into a LinkResolution.
type DeepLinkResolver interface {
	Resolve(u *url.URL) LinkResolution
}

// ResolverFunc adapts a function to DeepLinkResolver.
type ResolverFunc func(u *url.URL) LinkResolution

// Resolve implements DeepLinkResolver.
func (f ResolverFunc) Resolve(u *url.URL) LinkResolution { return f(u) }

// Handle resolves rawURL and carries out the result. Action plans run in
// order with no rollback; a flow entry starts the flow. Returns false when
// the link is invalid, unknown, blocked, or its flow could not start.
func (c *Coordinator) Handle(rawURL string) bool {
	if c.resolver == nil {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	res := c.resolver.Resolve(u)
	slog.Debug("deep link resolved", "url", rawURL, "kind", string(res.Kind))

	switch res.Kind {
	case ResolutionActions:
		for _, a := range res.Actions {
			c.apply(a)
		}
		return true
	case ResolutionFlow:
		_, err := c.StartFlow(res.FlowType, res.Step)
		return err == nil
	case ResolutionBlocked:
		c.blocked(res.Route, res.Requires)
		return false
	default:
		return false
	}
}

func (c *Coordinator) apply(a Action) {
	switch a.Kind {
	case ActionSelectTab:
		if a.Tab != nil {
			c.SelectTab(*a.Tab)
		}
	case ActionPush:
		c.NavigateWith(a.Route, Push)
	case ActionPresent:
		c.NavigateWith(a.Route, a.Style)
	case ActionDismiss:
		levels := a.Levels
		if levels < 1 {
			levels = 1
		}
		c.Dismiss(levels)
	case ActionPopToRoot:
		if a.Tab != nil {
			c.PopTabToRoot(*a.Tab)
		} else {
			c.PopToRoot()
		}
	case ActionStartFlow:
		if _, err := c.StartFlow(a.FlowType, a.Step); err != nil {
			slog.Debug("deep link flow not started", "flow_type", a.FlowType, "error", err)
		}
	default:
		slog.Warn("unknown deep link action", "kind", string(a.Kind))
	}
}

// LinkRule maps a path pattern to a destination.
//
// Pattern segments starting with ':' capture a parameter, so "/items/:id"
// matches "/items/42" with id=42. A rule with Flow set starts that flow at
// Step; a Step of the form ":name" takes the captured value. Otherwise the
// rule selects Tab (when set), optionally pops it to root, and presents
// Route in Style (zero means the registry's style for Route).
type LinkRule struct {
	Pattern   string
	Route     string
	Style     PresentationStyle
	Tab       *int
	PopToRoot bool
	Flow      string
	Step      string
	Requires  Entitlement
}

type compiledRule struct {
	LinkRule
	segments []string
}

// PatternResolver matches URL paths against LinkRules in order; the first
// match wins. For non-http schemes the host is the first path segment, so
// "app://items/42" and "https://example.com/items/42" both match
// "/items/:id". Query parameters become route params; captures win on
// collision.
type PatternResolver struct {
	rules        []compiledRule
	entitlements EntitlementChecker
}

// NewPatternResolver compiles rules. A nil checker grants nothing.
func NewPatternResolver(entitlements EntitlementChecker, rules ...LinkRule) (*PatternResolver, error) {
	if entitlements == nil {
		entitlements = NewGrants()
	}
	p := &PatternResolver{entitlements: entitlements}
	for _, rule := range rules {
		if err := p.Add(rule); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Add appends a rule.
func (p *PatternResolver) Add(rule LinkRule) error {
	if !strings.HasPrefix(rule.Pattern, "/") {
		return fmt.Errorf("link pattern %q must start with '/'", rule.Pattern)
	}
	if rule.Route == "" && rule.Flow == "" {
		return fmt.Errorf("link pattern %q needs a route or a flow", rule.Pattern)
	}
	segs := splitPath(rule.Pattern)
	for _, s := range segs {
		if s == ":" {
			return fmt.Errorf("link pattern %q has an unnamed capture", rule.Pattern)
		}
	}
	p.rules = append(p.rules, compiledRule{LinkRule: rule, segments: segs})
	return nil
}

// Resolve implements DeepLinkResolver.
func (p *PatternResolver) Resolve(u *url.URL) LinkResolution {
	path, ok := linkPath(u)
	if !ok {
		return LinkResolution{Kind: ResolutionInvalid}
	}
	segs := splitPath(path)

	for _, rule := range p.rules {
		captures, ok := match(rule.segments, segs)
		if !ok {
			continue
		}
		return p.resolve(rule, captures, u.Query())
	}
	return LinkResolution{Kind: ResolutionNotFound}
}

func (p *PatternResolver) resolve(rule compiledRule, captures map[string]string, query url.Values) LinkResolution {
	params := make(map[string]string, len(captures)+len(query))
	for k, v := range query {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	for k, v := range captures {
		params[k] = v
	}
	route := Route{ID: rule.Route, Requires: rule.Requires}
	if len(params) > 0 {
		route.Params = params
	}
	if rule.Route == "" {
		route.ID = rule.Flow
	}

	if rule.Requires != "" && !p.entitlements.Has(rule.Requires) {
		return LinkResolution{Kind: ResolutionBlocked, Route: route, Requires: rule.Requires}
	}

	if rule.Flow != "" {
		step := rule.Step
		if strings.HasPrefix(step, ":") {
			step = captures[step[1:]]
		}
		return LinkResolution{Kind: ResolutionFlow, FlowType: rule.Flow, Step: step}
	}

	var actions []Action
	if rule.Tab != nil {
		tab := *rule.Tab
		actions = append(actions, Action{Kind: ActionSelectTab, Tab: &tab})
	}
	if rule.PopToRoot {
		actions = append(actions, Action{Kind: ActionPopToRoot})
	}
	actions = append(actions, Action{Kind: ActionPresent, Route: route, Style: rule.Style})
	return LinkResolution{Kind: ResolutionActions, Actions: actions, Route: route}
}

// linkPath extracts the matchable path. Opaque URLs like "mailto:x" and
// paths containing ".." are invalid.
func linkPath(u *url.URL) (string, bool) {
	if u.Opaque != "" {
		return "", false
	}
	path := u.Path
	switch u.Scheme {
	case "", "http", "https":
	default:
		if u.Host != "" {
			path = "/" + u.Host + path
		}
	}
	if path == "" {
		path = "/"
	}
	for _, s := range splitPath(path) {
		if s == ".." {
			return "", false
		}
	}
	return path, true
}

func splitPath(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

func match(pattern, segs []string) (map[string]string, bool) {
	if len(pattern) != len(segs) {
		return nil, false
	}
	var captures map[string]string
	for i, p := range pattern {
		if strings.HasPrefix(p, ":") {
			if captures == nil {
				captures = make(map[string]string)
			}
			captures[p[1:]] = segs[i]
			continue
		}
		if p != segs[i] {
			return nil, false
		}
	}
	return captures, true
}
