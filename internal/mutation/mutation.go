package mutation

import (
	"context"
	"time"
)

// DefaultMaxRetries is the MaxRetries value Base reports unless overridden.
const DefaultMaxRetries = 3

// Mutation is a pending write bound for a remote system.
//
// Type must be stable across releases: it is persisted with the record and
// used to find the handler that replays the payload after a restart.
type Mutation interface {
	ID() string
	Type() string
	CreatedAt() time.Time
	RetryCount() int
	MaxRetries() int
	CanRetry() bool

	// Payload serializes the mutation for persistence.
	Payload() ([]byte, error)

	// Execute performs the write.
	Execute(ctx context.Context) Result
}

// Base carries the bookkeeping every Mutation needs. Embed it and supply
// Type, Payload and Execute.
type Base struct {
	id         string
	createdAt  time.Time
	retryCount int
	maxRetries int
}

// NewBase creates a Base with a fresh UUIDv7 id stamped now.
func NewBase() Base {
	return NewBaseAt(UUIDv7Generator{}.Generate(), time.Now())
}

// NewBaseAt creates a Base with an explicit id and creation time.
// Used when decoding a persisted record and in tests.
func NewBaseAt(id string, createdAt time.Time) Base {
	return Base{
		id:         id,
		createdAt:  createdAt.UTC(),
		maxRetries: DefaultMaxRetries,
	}
}

// WithMaxRetries returns a copy of b with a different retry budget.
func (b Base) WithMaxRetries(n int) Base {
	b.maxRetries = n
	return b
}

// WithRetryCount returns a copy of b with the given retry count.
func (b Base) WithRetryCount(n int) Base {
	b.retryCount = n
	return b
}

func (b Base) ID() string           { return b.id }
func (b Base) CreatedAt() time.Time { return b.createdAt }
func (b Base) RetryCount() int      { return b.retryCount }
func (b Base) MaxRetries() int      { return b.maxRetries }

// CanRetry reports whether the mutation's own budget allows another attempt.
func (b Base) CanRetry() bool { return b.retryCount < b.maxRetries }

// Outcome is the kind of Result an execution produced.
type Outcome int

const (
	OutcomeSuccess Outcome = iota + 1
	OutcomeFailure
	OutcomeConflict
	OutcomeRetry
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeConflict:
		return "conflict"
	case OutcomeRetry:
		return "retry"
	default:
		return "unknown"
	}
}

// Result is what executing a mutation produced.
type Result struct {
	Outcome Outcome

	// Data is the remote response for Success and Conflict.
	Data []byte

	// Err is the cause for Failure.
	Err error
}

// Success reports a completed write.
func Success(data []byte) Result {
	return Result{Outcome: OutcomeSuccess, Data: data}
}

// Failure reports a failed attempt. It counts against the retry ceiling.
func Failure(err error) Result {
	return Result{Outcome: OutcomeFailure, Err: err}
}

// Conflict reports a write the remote could not reconcile. Conflicts are
// terminal until resolved by a caller.
func Conflict(data []byte) Result {
	return Result{Outcome: OutcomeConflict, Data: data}
}

// Retry asks for another attempt on a later drain with no ceiling.
func Retry() Result {
	return Result{Outcome: OutcomeRetry}
}
