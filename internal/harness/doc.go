// Package harness runs YAML navigation scenarios against a real
// navigation.Coordinator and compares the resulting trace with golden
// files.
//
// # Scenario Format
//
//	name: deep_link_into_flow
//	description: "A link starts onboarding at its second step"
//	manifest: ../manifests/notes.cue   # relative to the scenario file
//	entitlements: [pro]
//	layout: compact
//	steps:
//	  - op: navigate
//	    route: note
//	    params: {id: "7"}
//	  - op: deeplink
//	    url: notes://start/account
//	    expect: "true"
//	  - op: advance
//	    flow: flow-0001
//	    data: {name: Ada}
//	    expect: advanced
//	assertions:
//	  - type: path
//	    tab: 0
//	    routes: ["note?id=7"]
//	  - type: event_count
//	    kind: flow_started
//	    count: 1
//
// Steps may bind a started flow to a name with `as:` and refer to it later
// with `flow:`; otherwise flow ids are the sequential "flow-0001",
// "flow-0002", ... produced for every run.
//
// # Determinism
//
// Each run gets a fresh in-memory SQLite flow store, a manual clock fixed at
// testutil.Epoch and sequential flow ids, so the same scenario always
// produces byte-identical traces.
package harness
