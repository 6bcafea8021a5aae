package manifest

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/waypost/internal/navigation"
)

//go:embed schema.cue
var schemaSource string

// schemaFile names the embedded schema in CUE positions.
const schemaFile = "<waypost>/schema.cue"

// Manifest is a compiled app manifest.
type Manifest struct {
	Name         string
	DefaultStyle navigation.PresentationStyle
	Tabs         []navigation.Tab
	Routes       []Route // declaration order
	Flows        []navigation.FlowDefinition
	Links        []navigation.LinkRule
}

// Route is one entry of the routes table.
type Route struct {
	ID string
	navigation.RouteMetadata
}

// CompileError is a schema or decode failure with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileErrors holds every CUE error found in one compile. errors.As
// reaches each entry as a *CompileError.
type CompileErrors []*CompileError

func (errs CompileErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

func (errs CompileErrors) Unwrap() []error {
	out := make([]error, len(errs))
	for i, e := range errs {
		out[i] = e
	}
	return out
}

// Load reads a manifest from a .cue file or from a directory of .cue
// files. Files in a directory may omit the package clause.
func Load(path string) (*Manifest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}

	ctx := cuecontext.New()
	if !info.IsDir() {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("manifest: %w", err)
		}
		return Compile(ctx.CompileBytes(src, cue.Filename(path)))
	}

	matches, err := filepath.Glob(filepath.Join(path, "*.cue"))
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("manifest: no CUE files in %s", path)
	}
	// Listing files rather than "." also loads files with no package clause.
	files := make([]string, len(matches))
	for i, m := range matches {
		files[i] = filepath.Base(m)
	}
	instances := load.Instances(files, &load.Config{Dir: path})
	if len(instances) == 0 {
		return nil, fmt.Errorf("manifest: no CUE instances in %s", path)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("manifest: loading %s: %w", path, inst.Err)
	}
	return Compile(ctx.BuildInstance(inst))
}

// Parse compiles manifest source. filename is used in error positions.
func Parse(src []byte, filename string) (*Manifest, error) {
	return Compile(cuecontext.New().CompileBytes(src, cue.Filename(filename)))
}

// Compile turns a CUE value holding an `app` field into a Manifest. The
// result has passed both the schema and Validate.
func Compile(v cue.Value) (*Manifest, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err, v)
	}
	src := v.LookupPath(cue.ParsePath("app"))
	if !src.Exists() {
		return nil, &CompileError{Field: "app", Message: "app is required", Pos: v.Pos()}
	}

	schema := v.Context().CompileString(schemaSource, cue.Filename(schemaFile))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("manifest schema: %w", err)
	}
	app := schema.LookupPath(cue.ParsePath("#App")).Unify(src)
	if err := app.Err(); err != nil {
		return nil, formatCUEError(err, src)
	}
	if err := app.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err, src)
	}

	m := &Manifest{}
	var err error
	name := app.LookupPath(cue.ParsePath("name"))
	if m.Name, err = name.String(); err != nil {
		return nil, formatCUEError(err, name)
	}
	if m.DefaultStyle, err = parseStyle(app.LookupPath(cue.ParsePath("default_style"))); err != nil {
		return nil, err
	}
	if m.Tabs, err = parseTabs(app.LookupPath(cue.ParsePath("tabs"))); err != nil {
		return nil, err
	}
	if m.Routes, err = parseRoutes(app.LookupPath(cue.ParsePath("routes"))); err != nil {
		return nil, err
	}
	if m.Flows, err = parseFlows(app.LookupPath(cue.ParsePath("flows"))); err != nil {
		return nil, err
	}
	if m.Links, err = parseLinks(app.LookupPath(cue.ParsePath("links")), m.Tabs); err != nil {
		return nil, err
	}

	if errs := Validate(m); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return m, nil
}

func parseStyle(v cue.Value) (navigation.PresentationStyle, error) {
	s, err := v.String()
	if err != nil {
		return navigation.PresentationStyle{}, formatCUEError(err, v)
	}
	style, err := navigation.ParseStyle(s)
	if err != nil {
		return navigation.PresentationStyle{}, &CompileError{Field: "style", Message: err.Error(), Pos: v.Pos()}
	}
	return style, nil
}

func parseTabs(v cue.Value) ([]navigation.Tab, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err, v)
	}
	var tabs []navigation.Tab
	for iter.Next() {
		name, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err, iter.Value())
		}
		tabs = append(tabs, navigation.Tab{Index: len(tabs), Name: name})
	}
	return tabs, nil
}

func parseRoutes(v cue.Value) ([]Route, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err, v)
	}

	var routes []Route
	for iter.Next() {
		r := Route{ID: iter.Label()}
		val := iter.Value()

		if sv := val.LookupPath(cue.ParsePath("style")); sv.Exists() {
			if r.Style, err = parseStyle(sv); err != nil {
				return nil, err
			}
		}
		if rv := val.LookupPath(cue.ParsePath("requires")); rv.Exists() {
			s, err := rv.String()
			if err != nil {
				return nil, formatCUEError(err, rv)
			}
			r.Requires = navigation.Entitlement(s)
		}
		if tv := val.LookupPath(cue.ParsePath("title")); tv.Exists() {
			if r.Title, err = tv.String(); err != nil {
				return nil, formatCUEError(err, tv)
			}
		}
		routes = append(routes, r)
	}
	return routes, nil
}

func parseFlows(v cue.Value) ([]navigation.FlowDefinition, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err, v)
	}

	var flows []navigation.FlowDefinition
	for iter.Next() {
		def := navigation.FlowDefinition{Type: iter.Label()}
		val := iter.Value()

		if def.Persistent, err = val.LookupPath(cue.ParsePath("persistent")).Bool(); err != nil {
			return nil, formatCUEError(err, val)
		}
		// FlowStep carries json tags matching the schema's field names
		if err := val.LookupPath(cue.ParsePath("steps")).Decode(&def.Steps); err != nil {
			return nil, formatCUEError(err, val)
		}
		flows = append(flows, def)
	}
	return flows, nil
}

type rawLink struct {
	Pattern   string `json:"pattern"`
	Route     string `json:"route,omitempty"`
	Style     string `json:"style,omitempty"`
	Tab       string `json:"tab,omitempty"`
	PopToRoot bool   `json:"pop_to_root"`
	Flow      string `json:"flow,omitempty"`
	Step      string `json:"step,omitempty"`
	Requires  string `json:"requires,omitempty"`
}

// parseLinks decodes link rules. Tab names that do not match a tab are
// left for Validate, which reports them with the link's index.
func parseLinks(v cue.Value, tabs []navigation.Tab) ([]navigation.LinkRule, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err, v)
	}

	var links []navigation.LinkRule
	for iter.Next() {
		var raw rawLink
		if err := iter.Value().Decode(&raw); err != nil {
			return nil, formatCUEError(err, iter.Value())
		}
		rule := navigation.LinkRule{
			Pattern:   raw.Pattern,
			Route:     raw.Route,
			PopToRoot: raw.PopToRoot,
			Flow:      raw.Flow,
			Step:      raw.Step,
			Requires:  navigation.Entitlement(raw.Requires),
		}
		if raw.Style != "" {
			if rule.Style, err = navigation.ParseStyle(raw.Style); err != nil {
				return nil, &CompileError{Field: "links.style", Message: err.Error(), Pos: iter.Value().Pos()}
			}
		}
		if raw.Tab != "" {
			idx := -1
			for _, t := range tabs {
				if t.Name == raw.Tab {
					idx = t.Index
					break
				}
			}
			rule.Tab = &idx
		}
		links = append(links, rule)
	}
	return links, nil
}

// formatCUEError turns each CUE error into a CompileError. A position
// is the first one outside the embedded schema, falling back to at, the
// value being read. A single error comes back as a plain *CompileError.
func formatCUEError(err error, at cue.Value) error {
	if err == nil {
		return nil
	}
	var out CompileErrors
	for _, e := range errors.Errors(err) {
		out = append(out, compileError(e, at))
	}
	switch len(out) {
	case 0:
		return &CompileError{Field: "app", Message: err.Error(), Pos: at.Pos()}
	case 1:
		return out[0]
	}
	return out
}

func compileError(e errors.Error, at cue.Value) *CompileError {
	format, args := e.Msg()
	ce := &CompileError{Field: "app", Message: fmt.Sprintf(format, args...), Pos: at.Pos()}
	if path := e.Path(); len(path) > 0 {
		if path[0] == "#App" {
			path = append([]string{"app"}, path[1:]...)
		}
		ce.Field = strings.Join(path, ".")
	}
	for _, pos := range errors.Positions(e) {
		if pos.IsValid() && pos.Filename() != schemaFile {
			ce.Pos = pos
			break
		}
	}
	return ce
}

// Styles builds a StyleRegistry from the routes table.
func (m *Manifest) Styles() *navigation.StyleRegistry {
	reg := navigation.NewStyleRegistry(m.DefaultStyle)
	for _, r := range m.Routes {
		reg.Register(r.ID, r.RouteMetadata)
	}
	return reg
}

// Resolver builds a PatternResolver from the link rules.
func (m *Manifest) Resolver(entitlements navigation.EntitlementChecker) (*navigation.PatternResolver, error) {
	return navigation.NewPatternResolver(entitlements, m.Links...)
}

// Options returns coordinator options for tabs, styles, flows, the deep
// link resolver and the entitlement source.
func (m *Manifest) Options(entitlements navigation.EntitlementChecker) ([]navigation.Option, error) {
	resolver, err := m.Resolver(entitlements)
	if err != nil {
		return nil, err
	}
	return []navigation.Option{
		navigation.WithTabs(m.Tabs...),
		navigation.WithStyles(m.Styles()),
		navigation.WithFlows(m.Flows...),
		navigation.WithResolver(resolver),
		navigation.WithEntitlements(entitlements),
	}, nil
}
