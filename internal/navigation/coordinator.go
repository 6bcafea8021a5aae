package navigation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/waypost/internal/analytics"
	"github.com/roach88/waypost/internal/ir"
)

// IDGenerator produces flow ids.
type IDGenerator interface {
	Generate() string
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FlowStore persists flows whose definition is marked Persistent.
// Implemented by store.Store.
type FlowStore interface {
	SaveFlow(ctx context.Context, snap ir.FlowSnapshot) error
	DeleteFlow(ctx context.Context, id string) error
	LoadFlows(ctx context.Context) ([]ir.FlowSnapshot, error)
}

// BlockedFunc is called when navigation is refused for a missing entitlement.
type BlockedFunc func(route Route, requirement Entitlement)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTabs sets the tab bar. Tabs are re-indexed by position.
func WithTabs(tabs ...Tab) Option {
	return func(c *Coordinator) {
		if len(tabs) > 0 {
			c.tabs = append([]Tab(nil), tabs...)
		}
	}
}

// WithStyles sets the route style registry.
func WithStyles(r *StyleRegistry) Option {
	return func(c *Coordinator) { c.styles = r }
}

// WithEntitlements sets the entitlement source.
func WithEntitlements(e EntitlementChecker) Option {
	return func(c *Coordinator) { c.entitlements = e }
}

// WithResolver sets the deep-link resolver used by Handle.
func WithResolver(r DeepLinkResolver) Option {
	return func(c *Coordinator) { c.resolver = r }
}

// WithSink sets the analytics sink.
func WithSink(s analytics.Sink) Option {
	return func(c *Coordinator) { c.sink = s }
}

// WithPresenter sets the collaborator for platform styles.
func WithPresenter(p Presenter) Option {
	return func(c *Coordinator) { c.presenter = p }
}

// WithLayout sets the initial layout.
func WithLayout(l Layout) Option {
	return func(c *Coordinator) { c.layout = l }
}

// OnBlocked sets the entitlement-blocked callback.
func OnBlocked(fn BlockedFunc) Option {
	return func(c *Coordinator) { c.onBlocked = fn }
}

// OnFlowCompleted sets a callback that receives a flow's final state.
func OnFlowCompleted(fn func(*FlowState)) Option {
	return func(c *Coordinator) { c.onCompleted = fn }
}

// WithFlows registers flow definitions. Invalid definitions are logged and skipped.
func WithFlows(defs ...FlowDefinition) Option {
	return func(c *Coordinator) {
		for _, d := range defs {
			if err := c.RegisterFlow(d); err != nil {
				slog.Warn("flow definition skipped", "type", d.Type, "error", err)
			}
		}
	}
}

// WithFlowStore enables persistence for persistent flows.
func WithFlowStore(s FlowStore) Option {
	return func(c *Coordinator) { c.flowStore = s }
}

// WithIDGenerator sets the flow id source. Defaults to UUIDv7.
func WithIDGenerator(g IDGenerator) Option {
	return func(c *Coordinator) { c.ids = g }
}

// WithNow sets the time source for events and snapshots.
func WithNow(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithScreenTracking toggles the screen_viewed event on every navigation.
// On by default.
func WithScreenTracking(enabled bool) Option {
	return func(c *Coordinator) { c.trackScreens = enabled }
}

// Coordinator owns navigation state. See the package doc for the
// concurrency rules.
type Coordinator struct {
	tabs       []Tab
	paths      [][]Route
	selected   int
	sheets     []Route
	fullScreen *Route

	flows       map[string]*FlowState
	flowOrder   []string
	definitions map[string]FlowDefinition

	styles       *StyleRegistry
	entitlements EntitlementChecker
	resolver     DeepLinkResolver
	sink         analytics.Sink
	presenter    Presenter
	layout       Layout
	onBlocked    BlockedFunc
	onCompleted  func(*FlowState)
	flowStore    FlowStore
	ids          IDGenerator
	now          func() time.Time
	trackScreens bool
}

// NewCoordinator creates a coordinator with one tab named "main" unless
// WithTabs says otherwise.
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		tabs:         []Tab{{Index: 0, Name: "main"}},
		flows:        make(map[string]*FlowState),
		definitions:  make(map[string]FlowDefinition),
		styles:       NewStyleRegistry(Push),
		entitlements: NewGrants(),
		sink:         analytics.Nop{},
		ids:          uuidGenerator{},
		now:          time.Now,
		trackScreens: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	for i := range c.tabs {
		c.tabs[i].Index = i
	}
	c.paths = make([][]Route, len(c.tabs))
	return c
}

// Styles returns the style registry.
func (c *Coordinator) Styles() *StyleRegistry { return c.styles }

// SetLayout changes the layout, for example on a size-class change.
func (c *Coordinator) SetLayout(l Layout) { c.layout = l }

// Navigate presents route in the style registered for its id.
func (c *Coordinator) Navigate(route Route) {
	c.NavigateWith(route, PresentationStyle{})
}

// NavigateWith presents route in the given style. A zero style resolves
// through the registry.
func (c *Coordinator) NavigateWith(route Route, style PresentationStyle) {
	if style.IsZero() {
		style = c.styles.Style(route.ID)
	}
	route = route.clone()

	switch style.Kind {
	case KindPush:
		c.paths[c.selected] = append(c.paths[c.selected], route)
	case KindReplace:
		path := c.paths[c.selected]
		if n := len(path); n > 0 {
			path[n-1] = route
		} else {
			c.paths[c.selected] = append(path, route)
		}
	case KindSheet:
		c.sheets = append(c.sheets, route)
	case KindFullScreen:
		c.fullScreen = &route
	case KindPopover:
		if c.layout == Compact || !c.present(route, style) {
			c.sheets = append(c.sheets, route)
		}
	case KindTab:
		if !c.SelectTab(style.TabIndex) {
			slog.Debug("tab style ignored", "route", route.ID, "tab", style.TabIndex)
		}
	case KindWindow, KindImmersiveSpace, KindSettingsPane, KindInspector:
		if !c.present(route, style) {
			slog.Debug("presentation not handled", "route", route.ID, "style", style.String())
		}
	default:
		slog.Warn("unknown presentation style", "route", route.ID, "style", string(style.Kind))
		return
	}

	if c.trackScreens {
		c.track(analytics.Event{
			Kind:  analytics.ScreenViewed,
			Route: route.ID,
			Style: style.String(),
			Tab:   c.selected,
		})
	}
}

func (c *Coordinator) present(route Route, style PresentationStyle) bool {
	if c.presenter == nil {
		return false
	}
	return c.presenter.Present(route, style)
}

// NavigateIfAllowed navigates only if the route's entitlement is granted.
// The requirement is the route's own Requires, else the registry's. When
// blocked it reports through OnBlocked and an entitlement_blocked event and
// returns false without touching any state.
func (c *Coordinator) NavigateIfAllowed(route Route) bool {
	return c.NavigateWithIfAllowed(route, PresentationStyle{})
}

// NavigateWithIfAllowed is NavigateIfAllowed with an explicit style.
func (c *Coordinator) NavigateWithIfAllowed(route Route, style PresentationStyle) bool {
	req := route.Requires
	if req == "" {
		req = c.styles.Requirement(route.ID)
	}
	if !c.allowed(req) {
		c.blocked(route, req)
		return false
	}
	c.NavigateWith(route, style)
	return true
}

func (c *Coordinator) allowed(req Entitlement) bool {
	return req == "" || c.entitlements.Has(req)
}

func (c *Coordinator) blocked(route Route, req Entitlement) {
	slog.Debug("navigation blocked", "route", route.ID, "requires", string(req))
	c.track(analytics.Event{
		Kind:        analytics.EntitlementBlocked,
		Route:       route.ID,
		Tab:         c.selected,
		Requirement: string(req),
	})
	if c.onBlocked != nil {
		c.onBlocked(route, req)
	}
}

// Dismiss consumes up to levels dismissals. Each level closes the
// fullscreen route if there is one, else pops the topmost sheet, else pops
// the current tab's path. Returns the number of levels consumed.
func (c *Coordinator) Dismiss(levels int) int {
	done := 0
	for done < levels {
		path := c.paths[c.selected]
		switch {
		case c.fullScreen != nil:
			c.fullScreen = nil
		case len(c.sheets) > 0:
			c.sheets = c.sheets[:len(c.sheets)-1]
		case len(path) > 0:
			c.paths[c.selected] = path[:len(path)-1]
		default:
			return done
		}
		done++
	}
	return done
}

// DismissSheets pops sheets until at most depth remain. Returns how many
// were removed.
func (c *Coordinator) DismissSheets(depth int) int {
	if depth < 0 {
		depth = 0
	}
	if len(c.sheets) <= depth {
		return 0
	}
	removed := len(c.sheets) - depth
	c.sheets = c.sheets[:depth]
	return removed
}

// PopToRoot clears the selected tab's path.
func (c *Coordinator) PopToRoot() {
	c.paths[c.selected] = nil
}

// PopTabToRoot clears the path of the tab at index. Returns false for an
// index that is not a tab.
func (c *Coordinator) PopTabToRoot(index int) bool {
	if !c.validTab(index) {
		return false
	}
	c.paths[index] = nil
	return true
}

// SelectTab switches tabs. Other tabs' paths are untouched. Returns false
// for an index that is not a tab.
func (c *Coordinator) SelectTab(index int) bool {
	if !c.validTab(index) {
		return false
	}
	c.selected = index
	return true
}

// TabNamed returns the tab with the given name.
func (c *Coordinator) TabNamed(name string) (Tab, bool) {
	for _, t := range c.tabs {
		if t.Name == name {
			return t, true
		}
	}
	return Tab{}, false
}

func (c *Coordinator) validTab(index int) bool {
	return index >= 0 && index < len(c.tabs)
}

// SelectedTab returns the current tab.
func (c *Coordinator) SelectedTab() Tab { return c.tabs[c.selected] }

// Tabs returns the tab bar.
func (c *Coordinator) Tabs() []Tab { return append([]Tab(nil), c.tabs...) }

// Path returns a copy of a tab's path, or nil for an unknown tab.
func (c *Coordinator) Path(tab int) []Route {
	if !c.validTab(tab) {
		return nil
	}
	return cloneRoutes(c.paths[tab])
}

// CurrentPath returns a copy of the selected tab's path.
func (c *Coordinator) CurrentPath() []Route { return c.Path(c.selected) }

// Sheets returns the sheet stack, bottom first.
func (c *Coordinator) Sheets() []Route { return cloneRoutes(c.sheets) }

// FullScreenRoute returns the fullscreen route, if any.
func (c *Coordinator) FullScreenRoute() (Route, bool) {
	if c.fullScreen == nil {
		return Route{}, false
	}
	return c.fullScreen.clone(), true
}

func (c *Coordinator) track(e analytics.Event) {
	e.At = c.now()
	c.sink.Track(e)
}

func cloneRoutes(rs []Route) []Route {
	if len(rs) == 0 {
		return nil
	}
	out := make([]Route, len(rs))
	for i, r := range rs {
		out[i] = r.clone()
	}
	return out
}
