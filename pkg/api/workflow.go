package api

import (
	"context"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/mitchellh/mapstructure"
)

// TriggerStepID is the pseudo step id that selects the trigger data of a run
// in variable references and conditions.
const TriggerStepID = "trigger"

// Default retry budget used when neither the step nor the workflow
// configures one.
const (
	DefaultAttempts = 3
	DefaultDelay    = time.Second
)

// ActionFunc is the unit of work executed for a step.
//
// The returned value becomes the step's success payload. A returned error
// marks the step as failed; only err.Error() is recorded.
type ActionFunc func(ctx context.Context, params ActionParams) (any, error)

// ActionParams is what the engine hands to an ActionFunc.
type ActionParams struct {
	Context ActionContext
	RunID   string
}

// ActionContext is a read-only view of the run at the moment the step starts,
// plus the step's input data.
type ActionContext struct {
	// StepResults holds a copy of the results recorded so far in the run.
	StepResults map[string]StepResult

	// TriggerData is the payload the run was started with.
	TriggerData any

	// Data is the step's static payload merged with its resolved variables.
	// Resolved variables take precedence over payload keys.
	Data map[string]any
}

// Get returns the value stored under key in Data.
func (c ActionContext) Get(key string) (any, bool) {
	v, ok := c.Data[key]
	return v, ok
}

// Decode decodes Data into out, which must be a pointer to a struct or map.
// Field names are matched case-insensitively, or through `mapstructure` tags.
func (c ActionContext) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(c.Data)
}

// RetryConfig controls how often a step re-checks unmet dependencies and how
// long it waits between checks.
//
// Attempts <= 0 and Delay <= 0 fall back to the enclosing default.
type RetryConfig struct {
	Attempts int           `json:"attempts" mapstructure:"attempts"`
	Delay    time.Duration `json:"delay" mapstructure:"delay"`
}

// Step is a named unit of work. Steps are created up front and referenced,
// not owned, by the workflow graph. They must not be mutated after they are
// added to a workflow.
type Step struct {
	ID string

	// InputSchema and OutputSchema document the step's data shape. They are
	// not enforced by the engine.
	InputSchema  *jsonschema.Schema
	OutputSchema *jsonschema.Schema

	// Payload is static input merged into ActionContext.Data.
	Payload map[string]any

	Action ActionFunc

	// Retry overrides the workflow-level RetryConfig for this step.
	Retry *RetryConfig
}

// NewStep is a convenience constructor for the common id + action case.
func NewStep(id string, action ActionFunc) *Step {
	return &Step{ID: id, Action: action}
}

// StepConfig is the per-edge configuration given to Workflow.Step and
// Workflow.Then.
type StepConfig struct {
	// Variables maps input keys to VariableRef values. Entries of any other
	// type are ignored.
	Variables map[string]any

	// When is a declarative condition evaluated before the step runs.
	When *Condition

	// WhenFunc is a predicate evaluated instead of When when set.
	WhenFunc ConditionFunc

	// SnapshotOnTimeout suspends the step instead of failing it once its
	// attempts are exhausted.
	SnapshotOnTimeout bool
}
