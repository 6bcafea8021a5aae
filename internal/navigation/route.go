package navigation

import (
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Entitlement names a capability grant, such as a purchased tier.
// The empty Entitlement is always satisfied.
type Entitlement string

// Route is a navigation target.
type Route struct {
	ID       string            `json:"id" yaml:"id"`
	Params   map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
	Requires Entitlement       `json:"requires,omitempty" yaml:"requires,omitempty"`
}

// R builds a route from an id and alternating key/value params.
// A trailing key without a value is ignored.
func R(id string, kv ...string) Route {
	r := Route{ID: id}
	for i := 0; i+1 < len(kv); i += 2 {
		if r.Params == nil {
			r.Params = make(map[string]string, len(kv)/2)
		}
		r.Params[kv[i]] = kv[i+1]
	}
	return r
}

// Param returns a parameter value, or "" if absent.
func (r Route) Param(key string) string {
	return r.Params[key]
}

// String renders the route as id?k=v with params in key order.
func (r Route) String() string {
	if len(r.Params) == 0 {
		return r.ID
	}
	keys := make([]string, 0, len(r.Params))
	for k := range r.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(r.ID)
	for i, k := range keys {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(r.Params[k]))
	}
	return b.String()
}

func (r Route) clone() Route {
	if r.Params == nil {
		return r
	}
	params := make(map[string]string, len(r.Params))
	for k, v := range r.Params {
		params[k] = v
	}
	r.Params = params
	return r
}

// Tab is one top-level tab. Each tab owns an independent navigation path.
type Tab struct {
	Index int    `json:"index" yaml:"index"`
	Name  string `json:"name" yaml:"name"`
}

// EntitlementChecker reports whether an entitlement is currently granted.
type EntitlementChecker interface {
	Has(e Entitlement) bool
}

// Grants is an in-memory EntitlementChecker. Safe for concurrent use, so a
// purchase callback may Grant while the owner goroutine reads.
type Grants struct {
	mu  sync.RWMutex
	set map[Entitlement]struct{}
}

// NewGrants creates a set holding the given entitlements.
func NewGrants(es ...Entitlement) *Grants {
	g := &Grants{set: make(map[Entitlement]struct{}, len(es))}
	for _, e := range es {
		g.set[e] = struct{}{}
	}
	return g
}

// Has implements EntitlementChecker.
func (g *Grants) Has(e Entitlement) bool {
	if e == "" {
		return true
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.set[e]
	return ok
}

// Grant adds an entitlement.
func (g *Grants) Grant(e Entitlement) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.set[e] = struct{}{}
}

// Revoke removes an entitlement.
func (g *Grants) Revoke(e Entitlement) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.set, e)
}

// List returns the granted entitlements in sorted order.
func (g *Grants) List() []Entitlement {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Entitlement, 0, len(g.set))
	for e := range g.set {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
