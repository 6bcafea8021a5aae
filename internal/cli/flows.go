package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/waypost/internal/ir"
	"github.com/roach88/waypost/internal/store"
)

// NewFlowsCommand creates the flows command group.
func NewFlowsCommand(rootOpts *RootOptions) *cobra.Command {
	var db string

	cmd := &cobra.Command{
		Use:   "flows",
		Short: "Inspect persisted navigation flows",
	}
	cmd.PersistentFlags().StringVar(&db, "db", "", "store path (overrides store.path)")

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List persisted flows",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			cfg, err := loadStoreConfig(rootOpts, db)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
			}
			st, err := store.Open(cfg.Store.Path)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeStore, "failed to open store", err)
			}
			defer st.Close()

			flows, err := st.LoadFlows(cmd.Context())
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeStore, "failed to load flows", err)
			}
			if flows == nil {
				flows = []ir.FlowSnapshot{}
			}
			return f.Success(flows, func(w io.Writer) {
				if len(flows) == 0 {
					fmt.Fprintln(w, "No persisted flows.")
					return
				}
				for _, fl := range flows {
					step := ""
					if fl.CurrentStep < len(fl.StepPaths) {
						step = fl.StepPaths[fl.CurrentStep]
					}
					fmt.Fprintf(w, "%s  %s  step %d/%d (%s)  updated %s\n",
						fl.ID, fl.FlowType, fl.CurrentStep+1, fl.TotalSteps, step,
						fl.UpdatedAt.Format("2006-01-02 15:04:05"))
				}
			})
		},
	})
	return cmd
}
