package navigation

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/waypost/internal/analytics"
)

func intp(i int) *int { return &i }

func newResolver(t *testing.T, grants EntitlementChecker) *PatternResolver {
	t.Helper()
	p, err := NewPatternResolver(grants,
		LinkRule{Pattern: "/items/:id", Route: "item", Tab: intp(1), PopToRoot: true},
		LinkRule{Pattern: "/settings", Route: "settings", Style: Sheet},
		LinkRule{Pattern: "/export/:format", Route: "export", Style: Sheet, Requires: "pro"},
		LinkRule{Pattern: "/onboarding", Flow: "onboarding"},
		LinkRule{Pattern: "/onboarding/:step", Flow: "onboarding", Step: ":step"},
	)
	require.NoError(t, err)
	return p
}

func resolve(t *testing.T, p *PatternResolver, raw string) LinkResolution {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return p.Resolve(u)
}

func TestPatternResolver_Actions(t *testing.T) {
	p := newResolver(t, NewGrants())

	for _, raw := range []string{"app://items/42?ref=mail", "https://example.com/items/42?ref=mail", "/items/42?ref=mail"} {
		t.Run(raw, func(t *testing.T) {
			res := resolve(t, p, raw)
			require.Equal(t, ResolutionActions, res.Kind)
			require.Len(t, res.Actions, 3)

			assert.Equal(t, ActionSelectTab, res.Actions[0].Kind)
			assert.Equal(t, 1, *res.Actions[0].Tab)
			assert.Equal(t, ActionPopToRoot, res.Actions[1].Kind)
			assert.Equal(t, ActionPresent, res.Actions[2].Kind)
			assert.Equal(t, R("item", "id", "42", "ref", "mail"), res.Actions[2].Route)
		})
	}
}

func TestPatternResolver_CaptureWinsOverQuery(t *testing.T) {
	p := newResolver(t, NewGrants())

	res := resolve(t, p, "app://items/42?id=99")
	assert.Equal(t, "42", res.Route.Param("id"))
}

func TestPatternResolver_Flow(t *testing.T) {
	p := newResolver(t, NewGrants())

	res := resolve(t, p, "app://onboarding")
	assert.Equal(t, LinkResolution{Kind: ResolutionFlow, FlowType: "onboarding"}, res)

	res = resolve(t, p, "app://onboarding/interests")
	assert.Equal(t, ResolutionFlow, res.Kind)
	assert.Equal(t, "interests", res.Step)
}

func TestPatternResolver_Blocked(t *testing.T) {
	grants := NewGrants()
	p := newResolver(t, grants)

	res := resolve(t, p, "app://export/csv")
	assert.Equal(t, ResolutionBlocked, res.Kind)
	assert.Equal(t, Entitlement("pro"), res.Requires)
	assert.Equal(t, "csv", res.Route.Param("format"))

	grants.Grant("pro")
	assert.Equal(t, ResolutionActions, resolve(t, p, "app://export/csv").Kind)
}

func TestPatternResolver_NotFoundAndInvalid(t *testing.T) {
	p := newResolver(t, NewGrants())

	assert.Equal(t, ResolutionNotFound, resolve(t, p, "app://nothing/here").Kind)
	assert.Equal(t, ResolutionNotFound, resolve(t, p, "app://items").Kind)
	assert.Equal(t, ResolutionInvalid, resolve(t, p, "mailto:someone").Kind)
	assert.Equal(t, ResolutionInvalid, resolve(t, p, "app://items/../settings").Kind)
}

func TestNewPatternResolver_RejectsBadRules(t *testing.T) {
	bad := []LinkRule{
		{Pattern: "items/:id", Route: "item"},
		{Pattern: "/items/:id"},
		{Pattern: "/items/:", Route: "item"},
	}
	for _, rule := range bad {
		_, err := NewPatternResolver(nil, rule)
		assert.Error(t, err, rule.Pattern)
	}
}

func TestHandle_ExecutesActions(t *testing.T) {
	styles := NewStyleRegistry(Push)
	f := newFixture(t, WithStyles(styles), WithResolver(newResolver(t, NewGrants())))
	f.c.SelectTab(1)
	f.c.Navigate(R("stale"))
	f.c.SelectTab(0)

	assert.True(t, f.c.Handle("app://items/42"))

	assert.Equal(t, 1, f.c.SelectedTab().Index)
	assert.Equal(t, []string{"item?id=42"}, routeStringsOf(f.c.CurrentPath()))

	assert.True(t, f.c.Handle("app://settings"))
	assert.Equal(t, []string{"settings"}, routeIDs(f.c.Sheets()))
}

func TestHandle_StartsFlow(t *testing.T) {
	f := newFixture(t, WithFlows(onboarding()), WithResolver(newResolver(t, NewGrants())))

	assert.True(t, f.c.Handle("app://onboarding/profile"))
	flows := f.c.ActiveFlows()
	require.Len(t, flows, 1)
	assert.Equal(t, 1, flows[0].Current)

	assert.False(t, f.c.Handle("app://onboarding/payment"), "unknown step")
	assert.Len(t, f.c.ActiveFlows(), 1)
}

func TestHandle_BlockedAndFailures(t *testing.T) {
	f := newFixture(t, WithResolver(newResolver(t, NewGrants())))

	assert.False(t, f.c.Handle("app://export/csv"))
	require.Len(t, f.blocked, 1)
	assert.Equal(t, Entitlement("pro"), f.blocked[0].req)
	assert.Len(t, f.events.OfKind(analytics.EntitlementBlocked), 1)

	assert.False(t, f.c.Handle("app://missing"))
	assert.False(t, f.c.Handle("mailto:someone"))
	assert.False(t, f.c.Handle("%zz"))
	assert.Empty(t, f.c.CurrentPath())
}

func TestHandle_CustomResolverPlan(t *testing.T) {
	plan := ResolverFunc(func(*url.URL) LinkResolution {
		return LinkResolution{Kind: ResolutionActions, Actions: []Action{
			{Kind: ActionPush, Route: R("a")},
			{Kind: ActionPush, Route: R("b")},
			{Kind: ActionPresent, Route: R("modal"), Style: FullScreen},
			{Kind: ActionDismiss},
			{Kind: ActionSelectTab, Tab: intp(9)},
			{Kind: ActionPopToRoot, Tab: intp(2)},
			{Kind: ActionPush, Route: R("c")},
			{Kind: ActionStartFlow, FlowType: "unknown"},
		}}
	})
	f := newFixture(t, WithResolver(plan))

	assert.True(t, f.c.Handle("app://whatever"))

	assert.Equal(t, 0, f.c.SelectedTab().Index, "invalid tab action is a no-op")
	assert.Equal(t, []string{"a", "b", "c"}, routeIDs(f.c.CurrentPath()))
	_, ok := f.c.FullScreenRoute()
	assert.False(t, ok)
	assert.Empty(t, f.c.ActiveFlows())
}

func routeStringsOf(rs []Route) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.String()
	}
	return out
}
