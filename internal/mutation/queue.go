package mutation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/roach88/waypost/internal/connectivity"
	"github.com/roach88/waypost/internal/ir"
)

// MaxDrainAttempts is the number of failed drain attempts after which a
// record moves to the failed set. It applies to every record regardless of
// the mutation's own MaxRetries.
const MaxDrainAttempts = 3

// Default loop intervals.
const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultSyncInterval = 30 * time.Second
)

// Drain results used for metrics and reports.
const (
	drainRan     = "ran"
	drainBusy    = "busy"
	drainOffline = "offline"
)

// Persistence is the durable home of queue records.
// Implemented by store.Store (SQLite) and store.RedisStore.
type Persistence interface {
	Save(ctx context.Context, rec ir.MutationRecord) error
	Update(ctx context.Context, rec ir.MutationRecord) error
	Remove(ctx context.Context, id string) error
	RemoveFailed(ctx context.Context, id string) error
	MoveToFailed(ctx context.Context, rec ir.MutationRecord) error
	MoveFromFailed(ctx context.Context, rec ir.MutationRecord) error
	LoadPending(ctx context.Context) ([]ir.MutationRecord, error)
	LoadFailed(ctx context.Context) ([]ir.MutationRecord, error)
	ClearFailedQueue(ctx context.Context) error
	ClearPendingQueue(ctx context.Context) error
}

// SkipReason explains why ProcessQueue did not run a pass.
type SkipReason string

const (
	SkipNone    SkipReason = ""
	SkipBusy    SkipReason = drainBusy
	SkipOffline SkipReason = drainOffline
)

// DrainReport summarizes one ProcessQueue call.
type DrainReport struct {
	Skipped    SkipReason `json:"skipped,omitempty"`
	Attempted  int        `json:"attempted"`
	Succeeded  int        `json:"succeeded"`
	Requeued   int        `json:"requeued"`
	Failed     int        `json:"failed"`
	Conflicted int        `json:"conflicted"`
	Cancelled  bool       `json:"cancelled,omitempty"`
}

// Queue is the offline mutation queue.
//
// Thread-safety model:
//   - All public methods are safe from any goroutine
//   - At most one drain pass runs at a time (processing flag)
//   - Handlers run without the queue lock held, so a handler may call
//     Enqueue; the new record waits for the next pass
//   - A record's in-memory move and its store write happen together under
//     writeMu, so memory and storage see the same order of changes. writeMu
//     is taken before mu and never held while a handler runs
type Queue struct {
	store    Persistence
	conn     connectivity.Source
	registry *Registry
	clock    *Clock
	now      func() time.Time
	limiter  *rate.Limiter
	metrics  *Metrics

	pollInterval time.Duration
	syncInterval time.Duration

	writeMu  sync.Mutex
	mu       sync.Mutex
	pending  []ir.MutationRecord // enqueue order
	failed   []ir.MutationRecord
	lastSync time.Time
	lifetime context.Context // context for triggered drains; set by Run

	processing atomic.Bool
	drains     sync.WaitGroup
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock sets the logical clock used for record seq numbers.
func WithClock(c *Clock) Option {
	return func(q *Queue) {
		q.clock = c
	}
}

// WithNow sets the wall-clock source for created-at and last-sync stamps.
func WithNow(now func() time.Time) Option {
	return func(q *Queue) {
		q.now = now
	}
}

// WithRateLimiter throttles handler dispatch during a drain.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(q *Queue) {
		q.limiter = l
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(q *Queue) {
		q.metrics = m
	}
}

// WithPollInterval sets the connectivity-watch interval.
func WithPollInterval(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.pollInterval = d
		}
	}
}

// WithSyncInterval sets the periodic drain interval.
func WithSyncInterval(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.syncInterval = d
		}
	}
}

// New creates an empty queue. Call Load to pick up persisted records.
func New(store Persistence, conn connectivity.Source, registry *Registry, opts ...Option) *Queue {
	q := &Queue{
		store:        store,
		conn:         conn,
		registry:     registry,
		clock:        NewClock(),
		now:          time.Now,
		pollInterval: DefaultPollInterval,
		syncInterval: DefaultSyncInterval,
		lifetime:     context.Background(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Load replaces the in-memory view with the persisted records and resumes
// the clock after the highest persisted seq.
//
// Records left in_progress by a crash mid-drain are returned to pending.
func (q *Queue) Load(ctx context.Context) error {
	pending, err := q.store.LoadPending(ctx)
	if err != nil {
		return fmt.Errorf("load queue: %w", err)
	}
	failed, err := q.store.LoadFailed(ctx)
	if err != nil {
		return fmt.Errorf("load queue: %w", err)
	}

	var maxSeq int64
	for i := range pending {
		if pending[i].State == ir.StateInProgress {
			pending[i].State = ir.StatePending
			q.persisted("update", pending[i].ID, q.store.Update(ctx, pending[i]))
			slog.Warn("recovered interrupted mutation", "id", pending[i].ID, "type", pending[i].Type)
		}
		maxSeq = max(maxSeq, pending[i].Seq)
	}
	for _, rec := range failed {
		maxSeq = max(maxSeq, rec.Seq)
	}
	q.clock.AdvanceTo(maxSeq)

	q.mu.Lock()
	q.pending = pending
	q.failed = failed
	q.updateDepthLocked()
	q.mu.Unlock()

	slog.Info("mutation queue loaded",
		"pending", len(pending),
		"failed", len(failed),
		"seq", maxSeq,
	)
	return nil
}

// Enqueue persists m and appends it to the pending list. When connected an
// asynchronous drain is triggered.
//
// Enqueue never fails. A mutation whose payload cannot be serialized is
// dropped, as is one whose id is already queued.
func (q *Queue) Enqueue(ctx context.Context, m Mutation) {
	payload, err := m.Payload()
	if err != nil {
		slog.Debug("dropping mutation: payload not serializable",
			"id", m.ID(),
			"type", m.Type(),
			"error", err,
		)
		q.metrics.recordDropped()
		return
	}

	createdAt := m.CreatedAt()
	if createdAt.IsZero() {
		createdAt = q.now()
	}
	rec := ir.MutationRecord{
		ID:         m.ID(),
		Type:       m.Type(),
		Payload:    payload,
		State:      ir.StatePending,
		CreatedAt:  createdAt.UTC(),
		RetryCount: m.RetryCount(),
	}

	q.writeMu.Lock()
	q.mu.Lock()
	if indexOf(q.pending, rec.ID) >= 0 || indexOf(q.failed, rec.ID) >= 0 {
		q.mu.Unlock()
		q.writeMu.Unlock()
		slog.Warn("dropping mutation: id already queued", "id", rec.ID, "type", rec.Type)
		return
	}
	// Assigned under the lock so pending stays in seq order
	rec.Seq = q.clock.Next()
	q.pending = append(q.pending, rec)
	q.updateDepthLocked()
	q.mu.Unlock()

	q.persisted("save", rec.ID, q.store.Save(ctx, rec))
	q.writeMu.Unlock()
	slog.Debug("mutation enqueued", "id", rec.ID, "type", rec.Type, "seq", rec.Seq)

	if q.conn.Connected() {
		q.triggerDrain()
	}
}

// ProcessQueue runs one drain pass over the records pending when it starts.
//
// No-op when offline or when another pass is in flight. Cancellation of
// ctx is observed between records; the record in flight runs to completion.
func (q *Queue) ProcessQueue(ctx context.Context) DrainReport {
	if !q.conn.Connected() {
		q.metrics.recordDrain(drainOffline, 0)
		return DrainReport{Skipped: SkipOffline}
	}
	if !q.processing.CompareAndSwap(false, true) {
		q.metrics.recordDrain(drainBusy, 0)
		return DrainReport{Skipped: SkipBusy}
	}
	defer q.processing.Store(false)

	start := time.Now()
	q.mu.Lock()
	batch := slices.Clone(q.pending)
	q.mu.Unlock()

	var report DrainReport
	for _, rec := range batch {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		if q.limiter != nil {
			if err := q.limiter.Wait(ctx); err != nil {
				report.Cancelled = true
				break
			}
		}

		outcome, ok := q.drainOne(ctx, rec)
		if !ok {
			continue
		}
		report.Attempted++
		switch outcome {
		case ir.StateCompleted:
			report.Succeeded++
		case ir.StatePending:
			report.Requeued++
		case ir.StateFailed:
			report.Failed++
		case ir.StateConflicted:
			report.Conflicted++
		}
	}

	q.mu.Lock()
	q.lastSync = q.now()
	q.updateDepthLocked()
	q.mu.Unlock()

	q.metrics.recordDrain(drainRan, time.Since(start))
	slog.Info("drain finished",
		"attempted", report.Attempted,
		"succeeded", report.Succeeded,
		"requeued", report.Requeued,
		"failed", report.Failed,
		"conflicted", report.Conflicted,
		"cancelled", report.Cancelled,
	)
	return report
}

// drainOne executes a single record and applies the result to memory and
// storage. Returns the record's resulting state, or ok=false if the record
// was no longer pending when its turn came.
func (q *Queue) drainOne(ctx context.Context, rec ir.MutationRecord) (ir.RecordState, bool) {
	// The record in flight is finished even if ctx is cancelled meanwhile.
	rctx := context.WithoutCancel(ctx)

	if err := advance(&rec, EventStart); err != nil {
		slog.Error("skipping mutation", "id", rec.ID, "error", err)
		return "", false
	}
	q.writeMu.Lock()
	if !q.replacePending(rec) {
		q.writeMu.Unlock()
		// Discarded or cleared since the pass started.
		return "", false
	}
	q.persisted("update", rec.ID, q.store.Update(rctx, rec))
	q.writeMu.Unlock()

	result := q.registry.dispatch(rctx, rec)
	if result.Outcome == 0 {
		result = Failure(errors.New("handler returned no outcome"))
	}
	q.metrics.recordOutcome(rec.Type, result.Outcome)

	switch result.Outcome {
	case OutcomeSuccess:
		q.must(advance(&rec, EventComplete))
		rec.LastError = ""
		q.commit(rec, "remove", func() error { return q.store.Remove(rctx, rec.ID) })
		slog.Info("mutation completed", "id", rec.ID, "type", rec.Type)

	case OutcomeConflict:
		q.must(advance(&rec, EventConflict))
		rec.LastError = conflictMessage(result.Data)
		q.commit(rec, "move_to_failed", func() error { return q.store.MoveToFailed(rctx, rec) })
		slog.Warn("mutation conflicted", "id", rec.ID, "type", rec.Type)

	case OutcomeRetry:
		rec.RetryCount++
		q.must(advance(&rec, EventRequeue))
		q.commit(rec, "update", func() error { return q.store.Update(rctx, rec) })
		slog.Debug("mutation requested retry", "id", rec.ID, "type", rec.Type, "retry_count", rec.RetryCount)

	default:
		rec.RetryCount++
		rec.LastError = errorText(result.Err)
		if rec.RetryCount < MaxDrainAttempts {
			q.must(advance(&rec, EventRequeue))
			q.commit(rec, "update", func() error { return q.store.Update(rctx, rec) })
			slog.Debug("mutation failed, will retry",
				"id", rec.ID,
				"type", rec.Type,
				"retry_count", rec.RetryCount,
				"error", rec.LastError,
			)
		} else {
			q.must(advance(&rec, EventFail))
			q.commit(rec, "move_to_failed", func() error { return q.store.MoveToFailed(rctx, rec) })
			slog.Warn("mutation failed permanently",
				"id", rec.ID,
				"type", rec.Type,
				"retry_count", rec.RetryCount,
				"error", rec.LastError,
			)
		}
	}
	return rec.State, true
}

// replacePending overwrites the pending entry with the same id.
// Returns false if the id is no longer pending.
func (q *Queue) replacePending(rec ir.MutationRecord) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := indexOf(q.pending, rec.ID)
	if i < 0 {
		return false
	}
	q.pending[i] = rec
	return true
}

// commit applies a resolved record to memory and then runs write against
// storage. A record that left pending while its handler ran (ClearAll) is
// not written back.
func (q *Queue) commit(rec ir.MutationRecord, op string, write func() error) {
	q.writeMu.Lock()
	defer q.writeMu.Unlock()
	if !q.finish(rec) {
		return
	}
	q.persisted(op, rec.ID, write())
}

// finish applies a resolved record to the in-memory lists. Returns false
// if the record is no longer pending.
func (q *Queue) finish(rec ir.MutationRecord) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := indexOf(q.pending, rec.ID)
	if i < 0 {
		return false
	}
	switch rec.State {
	case ir.StatePending:
		q.pending[i] = rec
	case ir.StateFailed, ir.StateConflicted:
		q.pending = slices.Delete(q.pending, i, i+1)
		q.failed = append(q.failed, rec)
	default:
		q.pending = slices.Delete(q.pending, i, i+1)
	}
	return true
}

// Retry moves a failed record back to pending with its retry count reset,
// then triggers a drain when connected. Returns false for an unknown id.
func (q *Queue) Retry(ctx context.Context, id string) bool {
	if !q.Requeue(ctx, id) {
		return false
	}
	if q.conn.Connected() {
		q.triggerDrain()
	}
	return true
}

// Requeue is Retry without the drain trigger, for callers that run the
// next pass themselves.
func (q *Queue) Requeue(ctx context.Context, id string) bool {
	q.writeMu.Lock()
	defer q.writeMu.Unlock()

	q.mu.Lock()
	i := indexOf(q.failed, id)
	if i < 0 {
		q.mu.Unlock()
		return false
	}
	rec := q.revive(q.failed[i])
	q.failed = slices.Delete(q.failed, i, i+1)
	q.pending = append(q.pending, rec)
	q.updateDepthLocked()
	q.mu.Unlock()

	q.persisted("move_from_failed", rec.ID, q.store.MoveFromFailed(ctx, rec))
	slog.Info("mutation retried", "id", rec.ID, "type", rec.Type)
	return true
}

// RetryAll moves every failed record back to pending and returns how many
// were moved.
func (q *Queue) RetryAll(ctx context.Context) int {
	q.writeMu.Lock()
	q.mu.Lock()
	revived := make([]ir.MutationRecord, 0, len(q.failed))
	for _, rec := range q.failed {
		revived = append(revived, q.revive(rec))
	}
	q.failed = nil
	q.pending = append(q.pending, revived...)
	q.updateDepthLocked()
	q.mu.Unlock()

	for _, rec := range revived {
		q.persisted("move_from_failed", rec.ID, q.store.MoveFromFailed(ctx, rec))
	}
	q.writeMu.Unlock()

	if len(revived) > 0 {
		slog.Info("failed mutations retried", "count", len(revived))
		if q.conn.Connected() {
			q.triggerDrain()
		}
	}
	return len(revived)
}

// revive resets a failed record for another round. The record gets a new
// seq so it drains after everything already pending, in memory and after
// a reload alike.
func (q *Queue) revive(rec ir.MutationRecord) ir.MutationRecord {
	if err := advance(&rec, EventRevive); err != nil {
		slog.Warn("reviving record from unexpected state", "id", rec.ID, "error", err)
		rec.State = ir.StatePending
	}
	rec.RetryCount = 0
	rec.LastError = ""
	rec.Seq = q.clock.Next()
	return rec
}

// Discard drops a single failed record. Returns false for an unknown id.
func (q *Queue) Discard(ctx context.Context, id string) bool {
	q.writeMu.Lock()
	defer q.writeMu.Unlock()

	q.mu.Lock()
	i := indexOf(q.failed, id)
	if i < 0 {
		q.mu.Unlock()
		return false
	}
	q.failed = slices.Delete(q.failed, i, i+1)
	q.updateDepthLocked()
	q.mu.Unlock()

	q.persisted("remove_failed", id, q.store.RemoveFailed(ctx, id))
	slog.Info("failed mutation discarded", "id", id)
	return true
}

// ClearFailed drops every failed record from memory and storage.
func (q *Queue) ClearFailed(ctx context.Context) {
	q.writeMu.Lock()
	defer q.writeMu.Unlock()

	q.mu.Lock()
	n := len(q.failed)
	q.failed = nil
	q.updateDepthLocked()
	q.mu.Unlock()

	q.persisted("clear_failed", "", q.store.ClearFailedQueue(ctx))
	slog.Info("failed queue cleared", "count", n)
}

// ClearAll drops every pending and failed record from memory and storage.
func (q *Queue) ClearAll(ctx context.Context) {
	q.writeMu.Lock()
	defer q.writeMu.Unlock()

	q.mu.Lock()
	np, nf := len(q.pending), len(q.failed)
	q.pending = nil
	q.failed = nil
	q.updateDepthLocked()
	q.mu.Unlock()

	q.persisted("clear_pending", "", q.store.ClearPendingQueue(ctx))
	q.persisted("clear_failed", "", q.store.ClearFailedQueue(ctx))
	slog.Info("queue cleared", "pending", np, "failed", nf)
}

// Pending returns a copy of the pending records in drain order.
func (q *Queue) Pending() []ir.MutationRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.pending)
}

// Failed returns a copy of the failed and conflicted records.
func (q *Queue) Failed() []ir.MutationRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.failed)
}

// FailedRecord returns one failed record by id.
func (q *Queue) FailedRecord(id string) (ir.MutationRecord, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if i := indexOf(q.failed, id); i >= 0 {
		return q.failed[i], true
	}
	return ir.MutationRecord{}, false
}

// Len returns the pending and failed counts.
func (q *Queue) Len() (pending, failed int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending), len(q.failed)
}

// LastSync returns when the last drain pass finished. Zero if none has run.
func (q *Queue) LastSync() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastSync
}

// IsProcessing reports whether a drain pass is in flight.
func (q *Queue) IsProcessing() bool {
	return q.processing.Load()
}

// Wait blocks until every asynchronously triggered drain has returned.
func (q *Queue) Wait() {
	q.drains.Wait()
}

// triggerDrain starts a drain pass on its own goroutine.
func (q *Queue) triggerDrain() {
	q.mu.Lock()
	ctx := q.lifetime
	q.mu.Unlock()

	q.drains.Add(1)
	go func() {
		defer q.drains.Done()
		q.ProcessQueue(ctx)
	}()
}

func (q *Queue) hasPending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) > 0
}

func (q *Queue) updateDepthLocked() {
	q.metrics.setDepth(len(q.pending), len(q.failed))
}

// persisted logs a persistence error. Storage failures never reach callers.
func (q *Queue) persisted(op, id string, err error) {
	if err != nil {
		slog.Error("mutation persistence failed",
			"op", op,
			"id", id,
			"error", err,
		)
	}
}

func (q *Queue) must(err error) {
	if err != nil {
		slog.Error("invalid record transition", "error", err)
	}
}

func indexOf(recs []ir.MutationRecord, id string) int {
	return slices.IndexFunc(recs, func(r ir.MutationRecord) bool { return r.ID == id })
}

func errorText(err error) string {
	if err == nil {
		return "mutation failed"
	}
	return err.Error()
}

func conflictMessage(data []byte) string {
	if len(data) == 0 {
		return "conflict"
	}
	return "conflict: " + string(data)
}
