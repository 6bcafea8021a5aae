// Package syncer coordinates the mutation queue with connectivity and
// resolves conflicted mutations.
//
// A Coordinator owns the queue's background loops and, optionally, a
// connectivity prober. Conflicts are terminal in the queue; the
// coordinator's ConflictResolver decides what happens to them: keep them
// for manual review, resend the local write, or accept the remote state and
// drop the local write.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/waypost/internal/connectivity"
	"github.com/roach88/waypost/internal/ir"
	"github.com/roach88/waypost/internal/mutation"
)

// DefaultResolveInterval is how often automatic conflict policies run.
const DefaultResolveInterval = 30 * time.Second

// Resolution is the decision for one conflicted mutation.
type Resolution string

const (
	// ResolutionManual leaves the record in the failed set.
	ResolutionManual Resolution = "manual"
	// ResolutionClientWins resends the local write.
	ResolutionClientWins Resolution = "client_wins"
	// ResolutionServerWins drops the local write.
	ResolutionServerWins Resolution = "server_wins"
)

// ParseResolution validates a resolution name.
func ParseResolution(s string) (Resolution, error) {
	switch r := Resolution(s); r {
	case ResolutionManual, ResolutionClientWins, ResolutionServerWins:
		return r, nil
	default:
		return "", fmt.Errorf("unknown conflict resolution %q", s)
	}
}

// ConflictResolver decides what to do with a conflicted record.
type ConflictResolver interface {
	Resolve(ctx context.Context, rec ir.MutationRecord) Resolution
}

// Policy is a ConflictResolver that always returns the same Resolution.
type Policy Resolution

// Resolve implements ConflictResolver.
func (p Policy) Resolve(context.Context, ir.MutationRecord) Resolution {
	return Resolution(p)
}

// Errors returned by Coordinator.Resolve.
var (
	ErrNotFound      = errors.New("mutation not in failed set")
	ErrNotConflicted = errors.New("mutation is not conflicted")
	ErrRunning       = errors.New("coordinator already running")
)

// Status is a point-in-time view of the sync state.
type Status struct {
	Connected  bool      `json:"connected"`
	Pending    int       `json:"pending"`
	Failed     int       `json:"failed"`
	Conflicts  int       `json:"conflicts"`
	LastSync   time.Time `json:"last_sync"`
	Processing bool      `json:"processing"`
}

// Coordinator runs the queue loops and applies conflict policy.
type Coordinator struct {
	queue    *mutation.Queue
	conn     connectivity.Source
	prober   *connectivity.Prober
	resolver ConflictResolver
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithResolver sets the conflict resolver. Default: Policy(ResolutionManual).
func WithResolver(r ConflictResolver) Option {
	return func(c *Coordinator) {
		c.resolver = r
	}
}

// WithProber runs p alongside the queue loops.
func WithProber(p *connectivity.Prober) Option {
	return func(c *Coordinator) {
		c.prober = p
	}
}

// WithResolveInterval sets how often the resolver runs in the background.
func WithResolveInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.interval = d
		}
	}
}

// New creates a coordinator for q. conn must be the source q reads.
func New(q *mutation.Queue, conn connectivity.Source, opts ...Option) *Coordinator {
	c := &Coordinator{
		queue:    q,
		conn:     conn,
		resolver: Policy(ResolutionManual),
		interval: DefaultResolveInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Queue returns the coordinated queue.
func (c *Coordinator) Queue() *mutation.Queue {
	return c.queue
}

// Start launches the background loops. They run until Stop is called or
// ctx is cancelled.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	done := make(chan error, 1)
	c.done = done

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.queue.Run(gctx) })
	if c.prober != nil {
		g.Go(func() error { return c.prober.Run(gctx) })
	}
	g.Go(func() error { return c.resolveLoop(gctx) })

	go func() {
		err := g.Wait()
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		done <- err
	}()

	slog.Info("sync coordinator started")
	return nil
}

// Stop cancels the loops and waits for them to exit.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	err := <-done
	slog.Info("sync coordinator stopped")
	return err
}

// SyncNow applies the conflict policy and runs one drain pass. Records
// resent by the policy are drained by that same pass.
func (c *Coordinator) SyncNow(ctx context.Context) mutation.DrainReport {
	c.resolveAll(ctx, false)
	return c.queue.ProcessQueue(ctx)
}

// Status returns the current sync state.
func (c *Coordinator) Status() Status {
	failed := c.queue.Failed()
	conflicts := 0
	for _, rec := range failed {
		if rec.State == ir.StateConflicted {
			conflicts++
		}
	}
	pending, _ := c.queue.Len()
	return Status{
		Connected:  c.conn.Connected(),
		Pending:    pending,
		Failed:     len(failed),
		Conflicts:  conflicts,
		LastSync:   c.queue.LastSync(),
		Processing: c.queue.IsProcessing(),
	}
}

// Conflicts returns the conflicted records awaiting resolution.
func (c *Coordinator) Conflicts() []ir.MutationRecord {
	var out []ir.MutationRecord
	for _, rec := range c.queue.Failed() {
		if rec.State == ir.StateConflicted {
			out = append(out, rec)
		}
	}
	return out
}

// Resolve applies a decision to one conflicted record.
func (c *Coordinator) Resolve(ctx context.Context, id string, r Resolution) error {
	rec, ok := c.queue.FailedRecord(id)
	if !ok {
		return fmt.Errorf("resolve %s: %w", id, ErrNotFound)
	}
	if rec.State != ir.StateConflicted {
		return fmt.Errorf("resolve %s: %w", id, ErrNotConflicted)
	}
	c.apply(ctx, rec, r, true)
	return nil
}

// ResolveConflicts runs the resolver over every conflicted record and
// returns how many were resolved automatically.
func (c *Coordinator) ResolveConflicts(ctx context.Context) int {
	return c.resolveAll(ctx, true)
}

func (c *Coordinator) resolveAll(ctx context.Context, trigger bool) int {
	resolved := 0
	for _, rec := range c.Conflicts() {
		if c.apply(ctx, rec, c.resolver.Resolve(ctx, rec), trigger) {
			resolved++
		}
	}
	return resolved
}

// apply carries out r. With trigger unset a client-wins resend waits for
// the caller's own drain pass.
func (c *Coordinator) apply(ctx context.Context, rec ir.MutationRecord, r Resolution, trigger bool) bool {
	var ok bool
	switch r {
	case ResolutionClientWins:
		if trigger {
			ok = c.queue.Retry(ctx, rec.ID)
		} else {
			ok = c.queue.Requeue(ctx, rec.ID)
		}
	case ResolutionServerWins:
		ok = c.queue.Discard(ctx, rec.ID)
	default:
		return false
	}
	if ok {
		slog.Info("conflict resolved", "id", rec.ID, "type", rec.Type, "resolution", r)
	}
	return ok
}

func (c *Coordinator) resolveLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.ResolveConflicts(ctx)
		}
	}
}
