// Package manifest loads the CUE app manifest that describes an app's
// navigation surface: tabs, per-route presentation metadata, flow
// definitions and deep-link rules.
//
// # Manifest Format
//
//	app: {
//		name:          "notes"
//		default_style: "push"
//		tabs: ["home", "search", "settings"]
//		routes: {
//			compose: {style: "sheet", title: "New note"}
//			export:  {style: "sheet", requires: "pro"}
//		}
//		flows: {
//			onboarding: {
//				persistent: true
//				steps: [{path: "welcome"}, {path: "sync", requires: "pro"}]
//			}
//		}
//		links: [
//			{pattern: "/notes/:id", route: "note", tab: "home", pop_to_root: true},
//			{pattern: "/start/:step", flow: "onboarding", step: ":step"},
//		]
//	}
//
// The manifest is unified with an embedded schema (schema.cue) before it
// is compiled, so type errors carry CUE source positions. Cross-reference
// checks (unknown tabs, flows and steps) run afterwards and are reported
// as ValidationErrors.
package manifest
