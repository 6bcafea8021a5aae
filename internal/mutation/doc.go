// Package mutation implements the offline mutation queue.
//
// Application code enqueues Mutations: write intents bound for a remote
// system. Each one is persisted as a type-erased ir.MutationRecord and
// drained later, in enqueue order, by the handler registered for its type
// tag.
//
// DRAIN SEMANTICS:
//
// A drain pass runs only when connected, and at most one pass runs at a
// time. A second ProcessQueue call while a pass is in flight is dropped,
// not queued. For each pending record the pass marks it in_progress,
// dispatches it, and resolves the Result:
//
//   - Success: completed and removed from the store
//   - Failure: retry count +1; back to pending while below MaxDrainAttempts,
//     otherwise moved to the failed set
//   - Conflict: moved to the failed set immediately
//   - Retry: retry count +1 and back to pending, with no ceiling
//
// A record whose type has no handler takes the Failure path.
//
// The ceiling is MaxDrainAttempts for every record. A Mutation's own
// MaxRetries and CanRetry are not consulted by the queue.
//
// PERSISTENCE:
//
// Every in-memory change is written through to a Persistence before the
// call returns. Persistence errors are logged, never returned, so memory
// and storage can diverge after a write failure or crash.
//
// BACKGROUND LOOPS:
//
// Run drives two loops until its context is cancelled: a connectivity watch
// that drains on an offline to online edge, and a periodic timer that drains
// whenever connected with pending work.
package mutation
