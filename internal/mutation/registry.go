package mutation

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/roach88/waypost/internal/ir"
)

// Handler replays a persisted record against the remote system.
// The payload is opaque to the queue; decoding it is the handler's job.
type Handler func(ctx context.Context, rec ir.MutationRecord) Result

// Decoder rebuilds a Mutation from its persisted record.
type Decoder func(rec ir.MutationRecord) (Mutation, error)

// Registry maps type tags to handlers.
// Safe for concurrent use; handlers are usually registered at startup.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register associates a handler with a type tag, replacing any previous one.
func (r *Registry) Register(typ string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[typ] = h
}

// RegisterDecoder registers a handler that decodes the record into a
// Mutation and calls its Execute.
func (r *Registry) RegisterDecoder(typ string, decode Decoder) {
	r.Register(typ, func(ctx context.Context, rec ir.MutationRecord) Result {
		m, err := decode(rec)
		if err != nil {
			return Failure(NewDecodeError(typ, err))
		}
		return m.Execute(ctx)
	})
}

// RegisterFunc registers a handler whose payload is JSON-decoded into T.
func RegisterFunc[T any](r *Registry, typ string, fn func(ctx context.Context, v T) Result) {
	r.Register(typ, func(ctx context.Context, rec ir.MutationRecord) Result {
		var v T
		if err := json.Unmarshal(rec.Payload, &v); err != nil {
			return Failure(NewDecodeError(typ, err))
		}
		return fn(ctx, v)
	})
}

// Lookup returns the handler for a type tag.
func (r *Registry) Lookup(typ string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[typ]
	return h, ok
}

// Types returns the registered type tags, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// dispatch runs the handler for rec, or fails with a no-handler error.
func (r *Registry) dispatch(ctx context.Context, rec ir.MutationRecord) Result {
	h, ok := r.Lookup(rec.Type)
	if !ok {
		return Failure(NewNoHandlerError(rec.ID, rec.Type))
	}
	return h(ctx, rec)
}
