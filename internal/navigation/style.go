package navigation

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// StyleKind is the manner in which a route becomes visible.
type StyleKind string

const (
	KindPush           StyleKind = "push"
	KindReplace        StyleKind = "replace"
	KindSheet          StyleKind = "sheet"
	KindFullScreen     StyleKind = "fullScreen"
	KindPopover        StyleKind = "popover"
	KindWindow         StyleKind = "window"
	KindTab            StyleKind = "tab"
	KindImmersiveSpace StyleKind = "immersiveSpace"
	KindSettingsPane   StyleKind = "settingsPane"
	KindInspector      StyleKind = "inspector"
)

// PresentationStyle is a StyleKind plus the argument some kinds carry.
// The zero value means "resolve from the StyleRegistry".
type PresentationStyle struct {
	Kind     StyleKind
	WindowID string // KindWindow only
	TabIndex int    // KindTab only
}

// Argument-free styles.
var (
	Push           = PresentationStyle{Kind: KindPush}
	Replace        = PresentationStyle{Kind: KindReplace}
	Sheet          = PresentationStyle{Kind: KindSheet}
	FullScreen     = PresentationStyle{Kind: KindFullScreen}
	Popover        = PresentationStyle{Kind: KindPopover}
	ImmersiveSpace = PresentationStyle{Kind: KindImmersiveSpace}
	SettingsPane   = PresentationStyle{Kind: KindSettingsPane}
	Inspector      = PresentationStyle{Kind: KindInspector}
)

// Window presents in the window with the given id.
func Window(id string) PresentationStyle {
	return PresentationStyle{Kind: KindWindow, WindowID: id}
}

// TabStyle switches to the tab at index.
func TabStyle(index int) PresentationStyle {
	return PresentationStyle{Kind: KindTab, TabIndex: index}
}

// IsZero reports whether the style is unset.
func (s PresentationStyle) IsZero() bool {
	return s.Kind == ""
}

// platform reports whether the style is handled by a Presenter rather than
// by coordinator state.
func (s PresentationStyle) platform() bool {
	switch s.Kind {
	case KindWindow, KindImmersiveSpace, KindSettingsPane, KindInspector:
		return true
	}
	return false
}

// String renders the style as "sheet", "window(main)" or "tab(2)".
func (s PresentationStyle) String() string {
	switch s.Kind {
	case KindWindow:
		return fmt.Sprintf("window(%s)", s.WindowID)
	case KindTab:
		return fmt.Sprintf("tab(%d)", s.TabIndex)
	}
	return string(s.Kind)
}

// ParseStyle is the inverse of String.
func ParseStyle(s string) (PresentationStyle, error) {
	name, arg, hasArg := strings.Cut(strings.TrimSpace(s), "(")
	if hasArg {
		if !strings.HasSuffix(arg, ")") {
			return PresentationStyle{}, fmt.Errorf("invalid style %q: missing ')'", s)
		}
		arg = strings.TrimSuffix(arg, ")")
	}

	switch StyleKind(name) {
	case KindPush, KindReplace, KindSheet, KindFullScreen, KindPopover,
		KindImmersiveSpace, KindSettingsPane, KindInspector:
		if hasArg {
			return PresentationStyle{}, fmt.Errorf("invalid style %q: %s takes no argument", s, name)
		}
		return PresentationStyle{Kind: StyleKind(name)}, nil
	case KindWindow:
		if arg == "" {
			return PresentationStyle{}, fmt.Errorf("invalid style %q: window needs an id", s)
		}
		return Window(arg), nil
	case KindTab:
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 {
			return PresentationStyle{}, fmt.Errorf("invalid style %q: tab needs a non-negative index", s)
		}
		return TabStyle(n), nil
	}
	return PresentationStyle{}, fmt.Errorf("unknown style %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s PresentationStyle) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *PresentationStyle) UnmarshalText(text []byte) error {
	parsed, err := ParseStyle(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// RouteMetadata is what the registry knows about a route id.
type RouteMetadata struct {
	Style    PresentationStyle
	Requires Entitlement
	Title    string
}

// StyleRegistry maps route ids to presentation metadata. Unknown ids
// resolve to the registry's default style. There is no invalidation; later
// registrations overwrite earlier ones.
//
// Safe for concurrent use.
type StyleRegistry struct {
	mu       sync.RWMutex
	routes   map[string]RouteMetadata
	fallback PresentationStyle
}

// NewStyleRegistry creates an empty registry. A zero fallback means Push.
func NewStyleRegistry(fallback PresentationStyle) *StyleRegistry {
	if fallback.IsZero() {
		fallback = Push
	}
	return &StyleRegistry{
		routes:   make(map[string]RouteMetadata),
		fallback: fallback,
	}
}

// Register sets the metadata for a route id. A zero Style in meta resolves
// to the default at lookup time.
func (r *StyleRegistry) Register(routeID string, meta RouteMetadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[routeID] = meta
}

// Lookup returns the registered metadata for a route id.
func (r *StyleRegistry) Lookup(routeID string) (RouteMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	meta, ok := r.routes[routeID]
	return meta, ok
}

// Style resolves the presentation style for a route id.
func (r *StyleRegistry) Style(routeID string) PresentationStyle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if meta, ok := r.routes[routeID]; ok && !meta.Style.IsZero() {
		return meta.Style
	}
	return r.fallback
}

// Requirement returns the entitlement registered for a route id, if any.
func (r *StyleRegistry) Requirement(routeID string) Entitlement {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.routes[routeID].Requires
}

// Default returns the fallback style.
func (r *StyleRegistry) Default() PresentationStyle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fallback
}

// Len returns the number of registered routes.
func (r *StyleRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.routes)
}

// Layout is the horizontal size class the UI is currently rendered in.
type Layout int

const (
	// Compact is a phone-width layout. Popovers become sheets.
	Compact Layout = iota
	// Regular is a tablet or desktop layout.
	Regular
)

func (l Layout) String() string {
	if l == Regular {
		return "regular"
	}
	return "compact"
}

// Presenter handles the styles the coordinator does not model itself:
// windows, immersive spaces, settings panes, inspectors, and popovers on
// regular layouts. Present reports whether the route was shown.
type Presenter interface {
	Present(route Route, style PresentationStyle) bool
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(route Route, style PresentationStyle) bool

// Present implements Presenter.
func (f PresenterFunc) Present(route Route, style PresentationStyle) bool {
	return f(route, style)
}
