package api

import "time"

// EventType identifies a run history event.
type EventType string

const (
	EventRunStarted   EventType = "run.started"
	EventRunResumed   EventType = "run.resumed"
	EventRunCompleted EventType = "run.completed"
	EventRunSuspended EventType = "run.suspended"

	EventStepStarted   EventType = "step.started"
	EventStepWaiting   EventType = "step.waiting"
	EventStepCompleted EventType = "step.completed"
	EventStepFailed    EventType = "step.failed"
	EventStepSuspended EventType = "step.suspended"
)

// RunEvent is a minimal append-only history record for audit/debugging.
// It is intentionally small and stable; richer history can be layered later.
type RunEvent struct {
	RunID string
	At    time.Time
	Type  EventType

	// Optional context.
	WorkflowName string
	StepID       string

	// Small, human-oriented details (e.g. error string, state path).
	// Keep this low-volume: do NOT dump large payloads here.
	Detail string
}
