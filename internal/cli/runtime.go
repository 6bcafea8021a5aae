package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/roach88/waypost/internal/config"
	"github.com/roach88/waypost/internal/connectivity"
	"github.com/roach88/waypost/internal/mutation"
	"github.com/roach88/waypost/internal/remote"
	"github.com/roach88/waypost/internal/store"
	"github.com/roach88/waypost/internal/syncer"
)

// runtime is the mutation side of waypost wired from a config: storage,
// executor, connectivity and the sync coordinator.
type runtime struct {
	cfg     *config.Config
	store   *store.Store      // flows, and mutations for the sqlite backend
	redis   *store.RedisStore // mutations for the redis backend
	remote  *remote.Client    // nil without remote.base_url
	conn    connectivity.Source
	prober  *connectivity.Prober
	metrics *mutation.Metrics
	sync    *syncer.Coordinator
}

// openRuntime opens storage and loads the queue. live enables the health
// prober; one-shot commands probe once instead.
func openRuntime(ctx context.Context, cfg *config.Config, live bool) (*runtime, error) {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	rt := &runtime{cfg: cfg, store: st}

	var persistence mutation.Persistence = st
	if cfg.Store.Backend == config.BackendRedis {
		r := cfg.Store.Redis
		if rt.redis, err = store.OpenRedis(ctx, r.Addr, r.Password, r.DB, r.Namespace); err != nil {
			st.Close()
			return nil, err
		}
		persistence = rt.redis
	}

	reg := mutation.NewRegistry()
	if cfg.Remote.BaseURL != "" {
		var opts []remote.ClientOption
		for k, v := range cfg.Remote.Headers {
			opts = append(opts, remote.WithHeader(k, v))
		}
		rt.remote = remote.NewClient(cfg.Remote.BaseURL, opts...)
		rt.remote.Register(reg)
	}

	rt.conn = rt.connectivity(ctx, live)

	rt.metrics = mutation.NewMetrics(cfg.API.Namespace)
	qopts := []mutation.Option{
		mutation.WithMetrics(rt.metrics),
		mutation.WithPollInterval(cfg.Queue.PollInterval.Std()),
		mutation.WithSyncInterval(cfg.Queue.SyncInterval.Std()),
	}
	if cfg.Queue.RateLimit > 0 {
		qopts = append(qopts, mutation.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.Queue.RateLimit), cfg.Queue.Burst)))
	}
	q := mutation.New(persistence, rt.conn, reg, qopts...)
	if err := q.Load(ctx); err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to load queue: %w", err)
	}

	sopts := []syncer.Option{
		syncer.WithResolver(syncer.Policy(cfg.Resolution())),
		syncer.WithResolveInterval(cfg.Sync.ResolveInterval.Std()),
	}
	if rt.prober != nil && live {
		sopts = append(sopts, syncer.WithProber(rt.prober))
	}
	rt.sync = syncer.New(q, rt.conn, sopts...)
	return rt, nil
}

// connectivity picks the Source: forced offline, an HTTP prober, or always
// connected when no probe URL is configured.
func (rt *runtime) connectivity(ctx context.Context, live bool) connectivity.Source {
	c := rt.cfg.Connectivity
	switch {
	case c.Offline:
		return connectivity.NewToggle(false)
	case c.ProbeURL == "":
		return connectivity.Always(true)
	}

	rt.prober = connectivity.NewProber(c.ProbeURL,
		connectivity.WithProbeInterval(c.ProbeInterval.Std()),
		connectivity.WithMaxBackoff(c.MaxBackoff.Std()),
	)
	if !live {
		if err := rt.prober.Check(ctx); err != nil {
			slog.Debug("remote unreachable", "url", c.ProbeURL, "error", err)
		}
	}
	return rt.prober
}

// Queue returns the loaded mutation queue.
func (rt *runtime) Queue() *mutation.Queue { return rt.sync.Queue() }

// Close waits for background drains and closes storage.
func (rt *runtime) Close() error {
	if rt.sync != nil {
		rt.sync.Queue().Wait()
	}
	var errs []error
	if rt.redis != nil {
		errs = append(errs, rt.redis.Close())
	}
	errs = append(errs, rt.store.Close())
	return errors.Join(errs...)
}
