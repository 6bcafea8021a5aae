package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/waypost/internal/analytics"
	"github.com/roach88/waypost/internal/api"
	"github.com/roach88/waypost/internal/config"
	"github.com/roach88/waypost/internal/mainloop"
	"github.com/roach88/waypost/internal/manifest"
	"github.com/roach88/waypost/internal/navigation"
)

const shutdownTimeout = 5 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync daemon and admin API",
		Long: `Run the mutation queue loops, the connectivity prober and the admin
HTTP API until interrupted.

The navigation coordinator is built from navigation.manifest when set and
runs on a single owner goroutine; persistent flows are restored on start.

Examples:
  waypost serve --config waypost.yaml
  waypost serve --listen :8080`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
			}
			if listen != "" {
				cfg.API.Listen = listen
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := serve(ctx, cfg); err != nil {
				return f.Fail(GetExitCode(err), ErrCodeStore, "serve failed", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides api.listen)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	rt, err := openRuntime(ctx, cfg, true)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start", err)
	}
	defer rt.Close()

	navReg := prometheus.NewRegistry()
	navReg.MustRegister(collectors.NewGoCollector())

	loop := mainloop.New()
	nav, err := buildNavigation(ctx, cfg, rt, navReg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build navigation", err)
	}

	opts := []api.Option{
		api.WithNavigation(loop, nav),
		api.WithMetrics(prometheus.Gatherers{rt.metrics.Registry(), navReg}, navReg, cfg.API.Namespace),
	}
	if rt.remote != nil {
		opts = append(opts, api.WithRemote(rt.remote))
	}
	srv := &http.Server{
		Addr:              cfg.API.Listen,
		Handler:           api.New(rt.sync, opts...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if err := rt.sync.Start(gctx); err != nil {
		return err
	}
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error {
		slog.Info("admin api listening", "addr", cfg.API.Listen)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin api: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return errors.Join(srv.Shutdown(shutdownCtx), rt.sync.Stop())
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("waypost stopped")
	return nil
}

// buildNavigation creates the coordinator from the configured manifest and
// restores persisted flows. It runs before the loop starts, so touching the
// coordinator here is safe.
func buildNavigation(ctx context.Context, cfg *config.Config, rt *runtime, reg prometheus.Registerer) (*navigation.Coordinator, error) {
	grants := navigation.NewGrants()
	for _, e := range cfg.Navigation.Entitlements {
		grants.Grant(navigation.Entitlement(e))
	}

	var opts []navigation.Option
	if cfg.Navigation.Manifest != "" {
		m, err := manifest.Load(cfg.Navigation.Manifest)
		if err != nil {
			return nil, err
		}
		if opts, err = m.Options(grants); err != nil {
			return nil, err
		}
		slog.Info("manifest loaded", "name", m.Name, "tabs", len(m.Tabs), "flows", len(m.Flows))
	} else {
		opts = append(opts, navigation.WithEntitlements(grants))
	}

	sink := analytics.Multi{
		analytics.LogSink{},
		analytics.NewMetricsSink(cfg.API.Namespace, reg),
	}
	opts = append(opts,
		navigation.WithSink(sink),
		navigation.WithFlowStore(rt.store),
		navigation.OnBlocked(func(r navigation.Route, req navigation.Entitlement) {
			slog.Info("navigation blocked", "route", r.String(), "requires", string(req))
		}),
	)
	nav := navigation.NewCoordinator(opts...)

	n, err := nav.RestoreFlows(ctx)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		slog.Info("flows restored", "count", n)
	}
	return nav, nil
}
