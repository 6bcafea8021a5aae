package mutation

import (
	"context"

	"github.com/looplab/fsm"

	"github.com/roach88/waypost/internal/ir"
)

// Record lifecycle events.
const (
	EventStart    = "start"    // pending -> in_progress
	EventComplete = "complete" // in_progress -> completed
	EventFail     = "fail"     // in_progress -> failed
	EventConflict = "conflict" // in_progress -> conflicted
	EventRequeue  = "requeue"  // in_progress -> pending
	EventRevive   = "revive"   // failed|conflicted -> pending
)

var recordTransitions = fsm.Events{
	{Name: EventStart, Src: []string{string(ir.StatePending)}, Dst: string(ir.StateInProgress)},
	{Name: EventComplete, Src: []string{string(ir.StateInProgress)}, Dst: string(ir.StateCompleted)},
	{Name: EventFail, Src: []string{string(ir.StateInProgress)}, Dst: string(ir.StateFailed)},
	{Name: EventConflict, Src: []string{string(ir.StateInProgress)}, Dst: string(ir.StateConflicted)},
	{Name: EventRequeue, Src: []string{string(ir.StateInProgress)}, Dst: string(ir.StatePending)},
	{Name: EventRevive, Src: []string{string(ir.StateFailed), string(ir.StateConflicted)}, Dst: string(ir.StatePending)},
}

// Transition applies a lifecycle event to a record state.
// Returns an ErrCodeTransition error if the event is not allowed from 'from'.
func Transition(from ir.RecordState, event string) (ir.RecordState, error) {
	machine := fsm.NewFSM(string(from), recordTransitions, fsm.Callbacks{})
	if err := machine.Event(context.Background(), event); err != nil {
		return from, &Error{
			Code:    ErrCodeTransition,
			Message: "cannot " + event + " from " + string(from),
			Err:     err,
		}
	}
	return ir.RecordState(machine.Current()), nil
}

// advance applies event to rec in place. Transition errors are programming
// errors in the queue; the record keeps its state and the error is returned
// for logging.
func advance(rec *ir.MutationRecord, event string) error {
	next, err := Transition(rec.State, event)
	if err != nil {
		return err
	}
	rec.State = next
	return nil
}
