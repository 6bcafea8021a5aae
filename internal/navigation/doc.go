// Package navigation coordinates where the user is: per-tab navigation
// paths, a stack of sheets, one fullscreen slot, and any number of active
// multi-step flows.
//
// A Coordinator resolves a Route plus an optional PresentationStyle into a
// concrete change to that state. Styles come from a StyleRegistry when the
// caller does not give one. Routes and flow steps may require an Entitlement;
// NavigateIfAllowed and AdvanceFlow refuse to move into a gated screen and
// report the block through a callback and an analytics event instead.
//
// Deep links are parsed by a DeepLinkResolver (PatternResolver is the stock
// implementation) and executed by Coordinator.Handle.
//
// # Concurrency
//
// A Coordinator is not safe for concurrent use. Own it from one goroutine
// and marshal calls onto it, for example with mainloop.Loop.Do.
package navigation
