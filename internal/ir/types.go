package ir

import "time"

// RecordState is the lifecycle state of a persisted mutation.
type RecordState string

const (
	StatePending    RecordState = "pending"
	StateInProgress RecordState = "in_progress"
	StateCompleted  RecordState = "completed"
	StateFailed     RecordState = "failed"
	StateConflicted RecordState = "conflicted"
)

// ValidRecordStates defines allowed record states.
var ValidRecordStates = map[RecordState]bool{
	StatePending:    true,
	StateInProgress: true,
	StateCompleted:  true,
	StateFailed:     true,
	StateConflicted: true,
}

// MutationRecord is the persisted, type-erased projection of a mutation.
// Exactly one record exists per mutation id, in either the pending or the
// failed namespace.
type MutationRecord struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`    // Handler dispatch tag
	Payload    []byte      `json:"payload"` // Opaque to the queue
	State      RecordState `json:"state"`
	CreatedAt  time.Time   `json:"created_at"`
	Seq        int64       `json:"seq"` // Enqueue order
	RetryCount int         `json:"retry_count"`
	LastError  string      `json:"last_error,omitempty"`
}

// FlowSnapshot is the persisted form of a flow that was started with persistence enabled.
type FlowSnapshot struct {
	ID          string    `json:"id"`
	FlowType    string    `json:"flow_type"`
	CurrentStep int       `json:"current_step"`
	History     []int     `json:"history"`
	Data        Object    `json:"data"`
	TotalSteps  int       `json:"total_steps"`
	StepPaths   []string  `json:"step_paths"`
	UpdatedAt   time.Time `json:"updated_at"`
}
