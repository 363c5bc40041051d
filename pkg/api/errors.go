package api

import "errors"

var (
	// ErrTriggerValidation is returned by Execute when trigger data does not
	// match the workflow's trigger schema. No step runs in that case.
	ErrTriggerValidation = errors.New("trigger data validation failed")

	// ErrNotCommitted is returned when executing a workflow that has never
	// been committed.
	ErrNotCommitted = errors.New("workflow not committed")

	// ErrDuplicateStep is returned by Commit when the same step id appears at
	// more than one position of the graph.
	ErrDuplicateStep = errors.New("duplicate step id")

	ErrEmptyWorkflow    = errors.New("workflow has no steps")
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrNoRecordStore    = errors.New("no record store configured")
)
