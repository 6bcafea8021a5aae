package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/roach88/waypost/internal/manifest"
)

// ManifestSummary is the output of a successful `manifest validate`.
type ManifestSummary struct {
	Name   string   `json:"name"`
	Tabs   []string `json:"tabs"`
	Routes int      `json:"routes"`
	Flows  []string `json:"flows"`
	Links  int      `json:"links"`
}

// NewManifestCommand creates the manifest command group.
func NewManifestCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Work with navigation manifests",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate <path>",
		Short: "Validate a CUE navigation manifest",
		Long: `Validate a CUE navigation manifest against the schema and check the
references between tabs, routes, flows and links.

Exit codes:
  0 - Manifest is valid
  1 - Manifest has schema or reference errors
  2 - Manifest could not be read`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runManifestValidate(newFormatter(rootOpts, cmd), args[0])
		},
	})
	return cmd
}

func runManifestValidate(f *OutputFormatter, path string) error {
	m, err := manifest.Load(path)
	if err != nil {
		if errs, ok := manifest.AsValidationErrors(err); ok {
			if werr := f.Error(ErrCodeManifest, fmt.Sprintf("%d validation error(s)", len(errs)), []manifest.ValidationError(errs)); werr != nil {
				return werr
			}
			if f.Format != "json" {
				for _, e := range errs {
					fmt.Fprintf(f.Writer, "  %s\n", e.Error())
				}
			}
			return NewExitError(ExitFailure, "manifest is invalid")
		}
		if errors.Is(err, fs.ErrNotExist) {
			return f.Fail(ExitCommandError, ErrCodeManifest, "manifest not found", err)
		}
		return f.Fail(ExitFailure, ErrCodeManifest, "manifest is invalid", err)
	}

	summary := ManifestSummary{
		Name:   m.Name,
		Tabs:   make([]string, len(m.Tabs)),
		Routes: len(m.Routes),
		Flows:  make([]string, len(m.Flows)),
		Links:  len(m.Links),
	}
	for i, t := range m.Tabs {
		summary.Tabs[i] = t.Name
	}
	for i, fl := range m.Flows {
		summary.Flows[i] = fl.Type
	}
	return f.Success(summary, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %s is valid\n", m.Name)
		fmt.Fprintf(w, "  tabs: %v\n  routes: %d\n  flows: %v\n  links: %d\n",
			summary.Tabs, summary.Routes, summary.Flows, summary.Links)
	})
}
