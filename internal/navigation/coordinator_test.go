package navigation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/waypost/internal/analytics"
)

func TestNavigate_Push(t *testing.T) {
	f := newFixture(t)

	f.c.Navigate(R("list"))
	f.c.Navigate(R("item", "id", "1"))

	assert.Equal(t, []string{"list", "item"}, routeIDs(f.c.CurrentPath()))
	assert.Empty(t, f.c.Sheets())
}

func TestNavigate_Replace(t *testing.T) {
	f := newFixture(t)

	f.c.NavigateWith(R("first"), Replace)
	assert.Equal(t, []string{"first"}, routeIDs(f.c.CurrentPath()), "replace on empty path appends")

	f.c.Navigate(R("second"))
	f.c.NavigateWith(R("third"), Replace)
	assert.Equal(t, []string{"first", "third"}, routeIDs(f.c.CurrentPath()))
}

func TestNavigate_SheetsStack(t *testing.T) {
	f := newFixture(t)

	f.c.NavigateWith(R("a"), Sheet)
	f.c.NavigateWith(R("b"), Sheet)

	assert.Equal(t, []string{"a", "b"}, routeIDs(f.c.Sheets()))
	assert.Empty(t, f.c.CurrentPath())
}

func TestNavigate_FullScreenIsSingleSlot(t *testing.T) {
	f := newFixture(t)

	f.c.NavigateWith(R("player"), FullScreen)
	f.c.NavigateWith(R("camera"), FullScreen)

	got, ok := f.c.FullScreenRoute()
	require.True(t, ok)
	assert.Equal(t, "camera", got.ID)
}

func TestNavigate_ResolvesStyleFromRegistry(t *testing.T) {
	styles := NewStyleRegistry(Push)
	styles.Register("settings", RouteMetadata{Style: Sheet})
	styles.Register("player", RouteMetadata{Style: FullScreen})
	f := newFixture(t, WithStyles(styles))

	f.c.Navigate(R("settings"))
	f.c.Navigate(R("player"))
	f.c.Navigate(R("unregistered"))

	assert.Equal(t, []string{"settings"}, routeIDs(f.c.Sheets()))
	_, ok := f.c.FullScreenRoute()
	assert.True(t, ok)
	assert.Equal(t, []string{"unregistered"}, routeIDs(f.c.CurrentPath()))
}

func TestNavigate_PopoverByLayout(t *testing.T) {
	var presented []string
	presenter := PresenterFunc(func(r Route, s PresentationStyle) bool {
		presented = append(presented, r.ID+":"+s.String())
		return true
	})
	f := newFixture(t, WithPresenter(presenter))

	f.c.NavigateWith(R("tip"), Popover)
	assert.Equal(t, []string{"tip"}, routeIDs(f.c.Sheets()), "compact layout treats popover as sheet")
	assert.Empty(t, presented)

	f.c.SetLayout(Regular)
	f.c.NavigateWith(R("menu"), Popover)
	assert.Equal(t, []string{"menu:popover"}, presented)
	assert.Len(t, f.c.Sheets(), 1)
}

func TestNavigate_PopoverRegularWithoutPresenterFallsBackToSheet(t *testing.T) {
	f := newFixture(t, WithLayout(Regular))

	f.c.NavigateWith(R("menu"), Popover)
	assert.Equal(t, []string{"menu"}, routeIDs(f.c.Sheets()))
}

func TestNavigate_PlatformStylesGoToPresenter(t *testing.T) {
	var presented []PresentationStyle
	f := newFixture(t, WithPresenter(PresenterFunc(func(_ Route, s PresentationStyle) bool {
		presented = append(presented, s)
		return true
	})))

	f.c.NavigateWith(R("doc"), Window("doc-1"))
	f.c.NavigateWith(R("space"), ImmersiveSpace)
	f.c.NavigateWith(R("prefs"), SettingsPane)
	f.c.NavigateWith(R("info"), Inspector)

	assert.Equal(t, []PresentationStyle{Window("doc-1"), ImmersiveSpace, SettingsPane, Inspector}, presented)
	st := f.c.Snapshot()
	assert.Empty(t, st.Sheets)
	assert.Empty(t, st.Tabs[0].Path)
}

func TestNavigate_TabStyle(t *testing.T) {
	f := newFixture(t)

	f.c.NavigateWith(R("search"), TabStyle(1))
	assert.Equal(t, 1, f.c.SelectedTab().Index)

	f.c.NavigateWith(R("nowhere"), TabStyle(9))
	assert.Equal(t, 1, f.c.SelectedTab().Index, "invalid tab index is ignored")
}

func TestNavigate_TracksScreens(t *testing.T) {
	f := newFixture(t)

	f.c.SelectTab(2)
	f.c.NavigateWith(R("item", "id", "7"), Sheet)

	views := f.events.OfKind(analytics.ScreenViewed)
	require.Len(t, views, 1)
	assert.Equal(t, "item", views[0].Route)
	assert.Equal(t, "sheet", views[0].Style)
	assert.Equal(t, 2, views[0].Tab)
	assert.False(t, views[0].At.IsZero())
}

func TestNavigate_ScreenTrackingDisabled(t *testing.T) {
	f := newFixture(t, WithScreenTracking(false))

	f.c.Navigate(R("home"))
	assert.Empty(t, f.events.Events())
}

func TestTabs_IndependentPaths(t *testing.T) {
	f := newFixture(t)

	f.c.Navigate(R("a"))
	f.c.Navigate(R("b"))
	require.True(t, f.c.SelectTab(1))
	f.c.Navigate(R("q"))

	assert.Equal(t, []string{"a", "b"}, routeIDs(f.c.Path(0)))
	assert.Equal(t, []string{"q"}, routeIDs(f.c.Path(1)))

	assert.False(t, f.c.SelectTab(3))
	assert.False(t, f.c.SelectTab(-1))
	assert.Equal(t, 1, f.c.SelectedTab().Index)
	assert.Nil(t, f.c.Path(7))
}

func TestPopToRoot(t *testing.T) {
	f := newFixture(t)
	f.c.Navigate(R("a"))
	f.c.Navigate(R("b"))
	f.c.SelectTab(1)
	f.c.Navigate(R("q"))

	f.c.PopToRoot()
	assert.Empty(t, f.c.Path(1))
	assert.Len(t, f.c.Path(0), 2, "other tabs untouched")

	assert.True(t, f.c.PopTabToRoot(0))
	assert.Empty(t, f.c.Path(0))
	assert.False(t, f.c.PopTabToRoot(5))
}

func TestTabNamed(t *testing.T) {
	f := newFixture(t)

	tab, ok := f.c.TabNamed("profile")
	require.True(t, ok)
	assert.Equal(t, 2, tab.Index)

	_, ok = f.c.TabNamed("missing")
	assert.False(t, ok)
}

func TestDismiss_Priority(t *testing.T) {
	f := newFixture(t)
	f.c.Navigate(R("p1"))
	f.c.Navigate(R("p2"))
	f.c.Navigate(R("p3"))
	f.c.NavigateWith(R("s1"), Sheet)
	f.c.NavigateWith(R("s2"), Sheet)
	f.c.NavigateWith(R("fs"), FullScreen)

	assert.Equal(t, 2, f.c.Dismiss(2))

	_, ok := f.c.FullScreenRoute()
	assert.False(t, ok, "fullscreen cleared first")
	assert.Equal(t, []string{"s1"}, routeIDs(f.c.Sheets()), "exactly one sheet popped")
	assert.Equal(t, []string{"p1", "p2", "p3"}, routeIDs(f.c.CurrentPath()), "tab path untouched")
}

func TestDismiss_FallsThroughLayers(t *testing.T) {
	f := newFixture(t)
	f.c.Navigate(R("p1"))
	f.c.Navigate(R("p2"))
	f.c.NavigateWith(R("s1"), Sheet)

	assert.Equal(t, 2, f.c.Dismiss(2))
	assert.Empty(t, f.c.Sheets())
	assert.Equal(t, []string{"p1"}, routeIDs(f.c.CurrentPath()))

	assert.Equal(t, 1, f.c.Dismiss(5), "stops when nothing is left")
	assert.Equal(t, 0, f.c.Dismiss(1))
}

func TestDismissSheets(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"s1", "s2", "s3", "s4"} {
		f.c.NavigateWith(R(id), Sheet)
	}

	assert.Equal(t, 3, f.c.DismissSheets(1))
	assert.Equal(t, []string{"s1"}, routeIDs(f.c.Sheets()))
	assert.Equal(t, 0, f.c.DismissSheets(3))
	assert.Equal(t, 1, f.c.DismissSheets(-2))
	assert.Empty(t, f.c.Sheets())
}

func TestNavigateIfAllowed_Blocked(t *testing.T) {
	f := newFixture(t)
	f.c.Navigate(R("home"))
	f.c.NavigateWith(R("s1"), Sheet)
	f.events.Reset()
	before := f.c.Snapshot()

	ok := f.c.NavigateIfAllowed(Route{ID: "export", Requires: "pro"})

	assert.False(t, ok)
	assert.Equal(t, before, f.c.Snapshot(), "no state change")
	require.Len(t, f.blocked, 1, "callback invoked exactly once")
	assert.Equal(t, Entitlement("pro"), f.blocked[0].req)
	assert.Equal(t, "export", f.blocked[0].route.ID)

	events := f.events.Events()
	require.Len(t, events, 1)
	assert.Equal(t, analytics.EntitlementBlocked, events[0].Kind)
	assert.Equal(t, "pro", events[0].Requirement)
}

func TestNavigateIfAllowed_Granted(t *testing.T) {
	f := newFixture(t)
	f.grants.Grant("pro")

	assert.True(t, f.c.NavigateIfAllowed(Route{ID: "export", Requires: "pro"}))
	assert.Equal(t, []string{"export"}, routeIDs(f.c.CurrentPath()))
	assert.Empty(t, f.blocked)
}

func TestNavigateIfAllowed_RegistryRequirement(t *testing.T) {
	styles := NewStyleRegistry(Push)
	styles.Register("export", RouteMetadata{Style: Sheet, Requires: "pro"})
	f := newFixture(t, WithStyles(styles))

	assert.False(t, f.c.NavigateIfAllowed(R("export")))
	require.Len(t, f.blocked, 1)
	assert.Equal(t, Entitlement("pro"), f.blocked[0].req)

	f.grants.Grant("pro")
	assert.True(t, f.c.NavigateIfAllowed(R("export")))
	assert.Equal(t, []string{"export"}, routeIDs(f.c.Sheets()))
}

func TestNavigateWithIfAllowed(t *testing.T) {
	f := newFixture(t)

	assert.False(t, f.c.NavigateWithIfAllowed(Route{ID: "export", Requires: "pro"}, Sheet))
	assert.Empty(t, f.c.Sheets())

	f.grants.Grant("pro")
	assert.True(t, f.c.NavigateWithIfAllowed(Route{ID: "export", Requires: "pro"}, Sheet))
	assert.Equal(t, []string{"export"}, routeIDs(f.c.Sheets()))
	assert.Empty(t, f.c.CurrentPath())
}

func TestNavigateIfAllowed_Ungated(t *testing.T) {
	f := newFixture(t)

	assert.True(t, f.c.NavigateIfAllowed(R("home")))
	assert.Empty(t, f.blocked)
}

func TestDefaultCoordinator(t *testing.T) {
	c := NewCoordinator()

	assert.Equal(t, []Tab{{Index: 0, Name: "main"}}, c.Tabs())
	c.Navigate(R("home"))
	assert.Len(t, c.CurrentPath(), 1)
	assert.False(t, c.NavigateIfAllowed(Route{ID: "x", Requires: "pro"}), "nothing granted by default")
	assert.False(t, c.Handle("app://anything"), "no resolver configured")
}
