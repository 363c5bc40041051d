package api

import (
	"maps"
	"slices"

	"github.com/samber/lo"
)

// StepStatus is the terminal status recorded for a step in a run.
type StepStatus string

const (
	StatusSuccess   StepStatus = "success"
	StatusFailed    StepStatus = "failed"
	StatusSuspended StepStatus = "suspended"
)

// StepResult is the outcome of a single step. Payload is only set on
// success, Error only on failure.
type StepResult struct {
	Status  StepStatus `json:"status"`
	Payload any        `json:"payload,omitempty"`
	Error   string     `json:"error,omitempty"`
}

func Success(payload any) StepResult {
	return StepResult{Status: StatusSuccess, Payload: payload}
}

func Failure(msg string) StepResult {
	return StepResult{Status: StatusFailed, Error: msg}
}

func Suspension() StepResult {
	return StepResult{Status: StatusSuspended}
}

// Succeeded reports whether r is a success result.
func (r StepResult) Succeeded() bool { return r.Status == StatusSuccess }

// WorkflowContext is the mutable state of one run. It is owned by the run
// and only ever handed out as a copy.
type WorkflowContext struct {
	TriggerData any                   `json:"triggerData"`
	StepResults map[string]StepResult `json:"stepResults"`

	// Attempts holds the remaining dependency-check budget per step id.
	Attempts map[string]int `json:"attempts"`
}

// Clone returns a copy of c whose maps can be read while the run keeps
// mutating the original. Payload values are shared.
func (c WorkflowContext) Clone() WorkflowContext {
	return WorkflowContext{
		TriggerData: c.TriggerData,
		StepResults: cloneResults(c.StepResults),
		Attempts:    maps.Clone(c.Attempts),
	}
}

// PayloadOf returns the success payload of stepID, or the trigger data when
// stepID is TriggerStepID. ok is false when there is no such source.
func (c WorkflowContext) PayloadOf(stepID string) (any, bool) {
	if stepID == TriggerStepID {
		return c.TriggerData, c.TriggerData != nil
	}
	res, found := c.StepResults[stepID]
	if !found || !res.Succeeded() {
		return nil, false
	}
	return res.Payload, true
}

// RunResult is returned by Execute once every branch of the run settled.
// It is not itself a failure signal: inspect Results per step.
type RunResult struct {
	RunID       string                `json:"runId"`
	TriggerData any                   `json:"triggerData"`
	Results     map[string]StepResult `json:"results"`
}

// Failed returns the ids of steps that recorded a failure, sorted.
func (r *RunResult) Failed() []string {
	return r.idsWithStatus(StatusFailed)
}

// Suspended returns the ids of steps that were suspended.
func (r *RunResult) Suspended() []string {
	return r.idsWithStatus(StatusSuspended)
}

func (r *RunResult) idsWithStatus(s StepStatus) []string {
	ids := lo.Keys(lo.PickBy(r.Results, func(_ string, res StepResult) bool {
		return res.Status == s
	}))
	slices.Sort(ids)
	return ids
}

func cloneResults(in map[string]StepResult) map[string]StepResult {
	out := make(map[string]StepResult, len(in))
	maps.Copy(out, in)
	return out
}
