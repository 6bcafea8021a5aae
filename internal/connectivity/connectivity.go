// Package connectivity reports whether the remote side is reachable.
//
// The mutation queue only ever reads a Source; it never sets it. Toggle is a
// settable source for tests and the --offline flag. Prober polls an HTTP
// health endpoint and backs off exponentially while the remote is down.
package connectivity

import "sync/atomic"

// Source exposes the current connectivity signal.
type Source interface {
	Connected() bool
}

// Toggle is a Source whose value is set explicitly.
// Safe for concurrent use.
type Toggle struct {
	connected atomic.Bool
}

// NewToggle returns a Toggle with the given initial value.
func NewToggle(connected bool) *Toggle {
	t := &Toggle{}
	t.connected.Store(connected)
	return t
}

// Connected implements Source.
func (t *Toggle) Connected() bool {
	return t.connected.Load()
}

// Set changes the connectivity value.
func (t *Toggle) Set(connected bool) {
	t.connected.Store(connected)
}

// Always is a Source that never changes.
type Always bool

// Connected implements Source.
func (a Always) Connected() bool { return bool(a) }
