package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/waypost/internal/config"
	"github.com/roach88/waypost/internal/ir"
	"github.com/roach88/waypost/internal/mutation"
)

// QueueListing is the output of `queue list`.
type QueueListing struct {
	Connected bool                `json:"connected"`
	Pending   []ir.MutationRecord `json:"pending"`
	Failed    []ir.MutationRecord `json:"failed"`
}

type queueOptions struct {
	*RootOptions
	DB string
}

// NewQueueCommand creates the queue command group.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &queueOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the offline mutation queue",
		Long: `Inspect and manage the offline mutation queue directly in its store.

Run these while the daemon is stopped, or against the admin API when it is
running; two processes draining one SQLite file is not supported.`,
	}
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "store path (overrides store.path)")

	cmd.AddCommand(
		queueSubcommand(opts, "list", "List pending and failed mutations", cobra.NoArgs, runQueueList),
		queueSubcommand(opts, "retry <id>", "Move a failed mutation back to pending", cobra.ExactArgs(1), runQueueRetry),
		queueSubcommand(opts, "retry-all", "Move every failed mutation back to pending", cobra.NoArgs, runQueueRetryAll),
		queueSubcommand(opts, "discard <id>", "Drop a failed mutation", cobra.ExactArgs(1), runQueueDiscard),
		queueSubcommand(opts, "clear-failed", "Drop every failed mutation", cobra.NoArgs, runQueueClearFailed),
		queueSubcommand(opts, "clear-all", "Drop every pending and failed mutation", cobra.NoArgs, runQueueClearAll),
		queueSubcommand(opts, "enqueue <method> <path> [json-body]", "Queue an HTTP request mutation", cobra.RangeArgs(2, 3), runQueueEnqueue),
		queueSubcommand(opts, "drain", "Run one drain pass now", cobra.NoArgs, runQueueDrain),
	)
	return cmd
}

type queueRunFunc func(ctx context.Context, rt *runtime, f *OutputFormatter, args []string) error

// queueSubcommand wraps fn with config loading and store lifecycle.
func queueSubcommand(opts *queueOptions, use, short string, args cobra.PositionalArgs, fn queueRunFunc) *cobra.Command {
	return &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          args,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(opts.RootOptions, cmd)
			cfg, err := loadStoreConfig(opts.RootOptions, opts.DB)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
			}
			rt, err := openRuntime(cmd.Context(), cfg, false)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeStore, "failed to open queue", err)
			}
			defer rt.Close()
			f.VerboseLog("store %s (%s backend)", cfg.Store.Path, cfg.Store.Backend)
			return fn(cmd.Context(), rt, f, args)
		},
	}
}

func loadStoreConfig(opts *RootOptions, db string) (*config.Config, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if db != "" {
		cfg.Store.Path = db
	}
	return cfg, nil
}

func runQueueList(_ context.Context, rt *runtime, f *OutputFormatter, _ []string) error {
	q := rt.Queue()
	listing := QueueListing{
		Connected: rt.conn.Connected(),
		Pending:   q.Pending(),
		Failed:    q.Failed(),
	}
	return f.Success(listing, func(w io.Writer) {
		fmt.Fprintf(w, "connected: %t\n", listing.Connected)
		writeRecords(w, "pending", listing.Pending)
		writeRecords(w, "failed", listing.Failed)
	})
}

func writeRecords(w io.Writer, title string, recs []ir.MutationRecord) {
	fmt.Fprintf(w, "%s (%d)\n", title, len(recs))
	for _, rec := range recs {
		fmt.Fprintf(w, "  %-36s  %-14s  %-10s  seq=%d retries=%d", rec.ID, rec.Type, rec.State, rec.Seq, rec.RetryCount)
		if rec.LastError != "" {
			fmt.Fprintf(w, "  error=%q", rec.LastError)
		}
		fmt.Fprintln(w)
	}
}

func runQueueRetry(ctx context.Context, rt *runtime, f *OutputFormatter, args []string) error {
	if !rt.Queue().Retry(ctx, args[0]) {
		return f.Fail(ExitFailure, ErrCodeNotFound, "mutation not in failed set: "+args[0], nil)
	}
	return f.Success(map[string]string{"retried": args[0]}, func(w io.Writer) {
		fmt.Fprintf(w, "retried %s\n", args[0])
	})
}

func runQueueRetryAll(ctx context.Context, rt *runtime, f *OutputFormatter, _ []string) error {
	n := rt.Queue().RetryAll(ctx)
	return f.Success(map[string]int{"retried": n}, func(w io.Writer) {
		fmt.Fprintf(w, "retried %d mutation(s)\n", n)
	})
}

func runQueueDiscard(ctx context.Context, rt *runtime, f *OutputFormatter, args []string) error {
	if !rt.Queue().Discard(ctx, args[0]) {
		return f.Fail(ExitFailure, ErrCodeNotFound, "mutation not in failed set: "+args[0], nil)
	}
	return f.Success(map[string]string{"discarded": args[0]}, func(w io.Writer) {
		fmt.Fprintf(w, "discarded %s\n", args[0])
	})
}

func runQueueClearFailed(ctx context.Context, rt *runtime, f *OutputFormatter, _ []string) error {
	_, failed := rt.Queue().Len()
	rt.Queue().ClearFailed(ctx)
	return f.Success(map[string]int{"cleared": failed}, func(w io.Writer) {
		fmt.Fprintf(w, "cleared %d failed mutation(s)\n", failed)
	})
}

func runQueueClearAll(ctx context.Context, rt *runtime, f *OutputFormatter, _ []string) error {
	pending, failed := rt.Queue().Len()
	rt.Queue().ClearAll(ctx)
	return f.Success(map[string]int{"cleared": pending + failed}, func(w io.Writer) {
		fmt.Fprintf(w, "cleared %d mutation(s)\n", pending+failed)
	})
}

func runQueueEnqueue(ctx context.Context, rt *runtime, f *OutputFormatter, args []string) error {
	if rt.remote == nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "remote.base_url is not configured", nil)
	}
	var body ir.Object
	if len(args) == 3 {
		v, err := ir.UnmarshalValue([]byte(args[2]))
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeUsage, "invalid JSON body", err)
		}
		obj, ok := v.(ir.Object)
		if !ok {
			return f.Fail(ExitCommandError, ErrCodeUsage, "JSON body must be an object", nil)
		}
		body = obj
	}

	m := rt.remote.NewRequest(args[0], args[1], body)
	if err := m.Request.Validate(); err != nil {
		return f.Fail(ExitCommandError, ErrCodeUsage, "invalid request", err)
	}
	rt.Queue().Enqueue(ctx, m)
	return f.Success(map[string]string{"id": m.ID()}, func(w io.Writer) {
		fmt.Fprintf(w, "queued %s\n", m.ID())
	})
}

func runQueueDrain(ctx context.Context, rt *runtime, f *OutputFormatter, _ []string) error {
	report := rt.sync.SyncNow(ctx)
	return f.Success(report, func(w io.Writer) {
		writeDrainReport(w, report)
	})
}

func writeDrainReport(w io.Writer, r mutation.DrainReport) {
	if r.Skipped != "" {
		fmt.Fprintf(w, "drain skipped: %s\n", r.Skipped)
		return
	}
	fmt.Fprintf(w, "attempted %d: %d succeeded, %d requeued, %d failed, %d conflicted\n",
		r.Attempted, r.Succeeded, r.Requeued, r.Failed, r.Conflicted)
	if r.Cancelled {
		fmt.Fprintln(w, "drain cancelled")
	}
}
