package mutation

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/roach88/waypost/internal/connectivity"
	"github.com/roach88/waypost/internal/ir"
	"github.com/roach88/waypost/internal/store"
)

const noteType = "note.create"

// noteMutation is a minimal Mutation used across queue tests.
type noteMutation struct {
	Base
	Text string
}

func newNote(id, text string) noteMutation {
	return noteMutation{
		Base: NewBaseAt(id, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		Text: text,
	}
}

func (n noteMutation) Type() string { return noteType }

func (n noteMutation) Payload() ([]byte, error) {
	return json.Marshal(map[string]string{"text": n.Text})
}

func (n noteMutation) Execute(ctx context.Context) Result { return Success(nil) }

// brokenMutation cannot be serialized.
type brokenMutation struct{ Base }

func (brokenMutation) Type() string                    { return "broken" }
func (brokenMutation) Payload() ([]byte, error)        { return nil, errors.New("not encodable") }
func (brokenMutation) Execute(context.Context) Result { return Success(nil) }

// callRecorder records handler invocations in order.
type callRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *callRecorder) record(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, id)
}

func (r *callRecorder) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *callRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// handlerReturning registers a handler for noteType that records the call
// and returns result.
func handlerReturning(reg *Registry, rec *callRecorder, result Result) {
	reg.Register(noteType, func(ctx context.Context, r ir.MutationRecord) Result {
		rec.record(r.ID)
		return result
	})
}

func createTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestQueue(t *testing.T, conn connectivity.Source, reg *Registry, opts ...Option) (*Queue, *store.Store) {
	t.Helper()
	s := createTestStore(t)
	q := New(s, conn, reg, opts...)
	if err := q.Load(context.Background()); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	t.Cleanup(q.Wait)
	return q, s
}

func recordIDs(recs []ir.MutationRecord) []string {
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return ids
}

// failingStore fails every operation.
type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) Save(context.Context, ir.MutationRecord) error           { return errStoreDown }
func (failingStore) Update(context.Context, ir.MutationRecord) error         { return errStoreDown }
func (failingStore) Remove(context.Context, string) error                    { return errStoreDown }
func (failingStore) RemoveFailed(context.Context, string) error              { return errStoreDown }
func (failingStore) MoveToFailed(context.Context, ir.MutationRecord) error   { return errStoreDown }
func (failingStore) MoveFromFailed(context.Context, ir.MutationRecord) error { return errStoreDown }
func (failingStore) ClearFailedQueue(context.Context) error                  { return errStoreDown }
func (failingStore) ClearPendingQueue(context.Context) error                 { return errStoreDown }

func (failingStore) LoadPending(context.Context) ([]ir.MutationRecord, error) {
	return nil, errStoreDown
}

func (failingStore) LoadFailed(context.Context) ([]ir.MutationRecord, error) {
	return nil, errStoreDown
}
