// Package mainloop runs closures on a single owner goroutine.
//
// State that is not safe for concurrent use, like the navigation
// coordinator, is only touched from inside tasks run by a Loop. Other
// goroutines submit work with Post (fire and forget) or Do (wait for the
// result).
//
// Tasks run in FIFO order. A task must not call Do on its own loop; it
// would wait on itself forever. Post from inside a task is fine.
package mainloop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrClosed is returned when submitting to a closed loop.
var ErrClosed = errors.New("mainloop: closed")

// Loop is a single-goroutine task executor.
type Loop struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool
	signal chan struct{} // buffered, size 1; closed by Close
}

// New creates an idle loop. Start it with Run.
func New() *Loop {
	return &Loop{
		tasks:  make([]func(), 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Post enqueues fn. Returns false if the loop is closed.
// Safe from any goroutine.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false
	}
	l.tasks = append(l.tasks, fn)

	// Non-blocking; the buffer of 1 coalesces signals
	select {
	case l.signal <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn on the loop and waits for it to finish or for ctx to end.
// If ctx ends first fn may still run later.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrClosed
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes tasks until ctx is cancelled or Close is called.
// Must be called from exactly one goroutine. Tasks still queued when
// Close is called are run before Run returns; on ctx cancellation they
// are dropped.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if fn, ok := l.next(); ok {
			l.run(fn)
			continue
		}

		select {
		case <-ctx.Done():
			l.Close()
			return ctx.Err()
		case <-l.signal:
			// A closed signal channel fires immediately
			if l.isClosed() && l.Len() == 0 {
				return nil
			}
		}
	}
}

// run executes one task, recovering a panic so one bad task cannot take
// the owner goroutine down.
func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("mainloop task panicked", "panic", r)
		}
	}()
	fn()
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.tasks) == 0 {
		return nil, false
	}
	fn := l.tasks[0]
	l.tasks[0] = nil // release the closure for GC
	if len(l.tasks) == 1 {
		l.tasks = l.tasks[:0]
	} else {
		l.tasks = l.tasks[1:]
	}
	return fn, true
}

// Len returns the number of queued tasks.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

// Close stops accepting tasks and wakes Run.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	close(l.signal)
}

func (l *Loop) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
