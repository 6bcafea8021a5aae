package mutation

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Run drives the background drain loops until ctx is cancelled:
//
//   - connectivity watch: polls every poll interval and drains on an
//     offline to online edge when work is pending
//   - periodic timer: drains every sync interval when connected with work
//     pending
//
// If the queue is connected with pending work when Run starts, one drain
// runs immediately. Run waits for triggered drains before returning
// ctx.Err().
func (q *Queue) Run(ctx context.Context) error {
	q.mu.Lock()
	q.lifetime = ctx
	q.mu.Unlock()

	slog.Info("mutation queue starting",
		"poll_interval", q.pollInterval,
		"sync_interval", q.syncInterval,
	)

	if q.conn.Connected() && q.hasPending() {
		q.triggerDrain()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return q.watchConnectivity(gctx) })
	g.Go(func() error { return q.periodicDrain(gctx) })
	err := g.Wait()

	q.drains.Wait()
	slog.Info("mutation queue stopped")
	return err
}

func (q *Queue) watchConnectivity(ctx context.Context) error {
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	was := q.conn.Connected()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			now := q.conn.Connected()
			if now && !was && q.hasPending() {
				slog.Info("connectivity restored, draining")
				q.ProcessQueue(ctx)
			}
			was = now
		}
	}
}

func (q *Queue) periodicDrain(ctx context.Context) error {
	ticker := time.NewTicker(q.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if q.conn.Connected() && q.hasPending() {
				q.ProcessQueue(ctx)
			}
		}
	}
}
