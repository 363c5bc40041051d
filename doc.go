// Package stepflow is an embeddable engine for step-graph workflows.
//
// A workflow is a set of root chains. Each Step call starts a new root
// chain and each Then call appends to the chain of the most recent Step.
// Root chains run concurrently; steps within a chain run in order.
//
//	wf := stepflow.New("orders")
//	wf.Step(validate).Then(charge).Then(ship)
//	wf.Step(audit)
//	if _, err := wf.Commit(); err != nil {
//	    return err
//	}
//	res, err := wf.Execute(ctx, stepflow.ExecuteOptions{TriggerData: order})
//
// # Data flow
//
// Every run keeps a WorkflowContext holding the trigger data and the result
// of each finished step. A step reads earlier results through variable
// bindings:
//
//	wf.Step(charge, stepflow.Variable("amount", stepflow.FromStep(validate, "total")))
//
// Paths are dotted JSON paths into a step payload; FromTrigger reads the
// trigger data the same way. An action sees the resolved values in
// ActionParams.Context.Data and can decode them into a struct with
// ActionContext.Decode.
//
// # Conditions
//
// When guards a step with a declarative Condition built from Ref, And and
// Or. WhenFunc guards it with an arbitrary predicate instead. A condition
// that refers to a step in another chain which has not finished yet is
// re-checked up to RetryConfig.Attempts times, RetryConfig.Delay apart.
// A condition that is simply false fails the step.
//
// # Snapshots
//
// A step marked SnapshotOnTimeout is suspended instead of failed when its
// dependency checks run out. The run then finishes with that chain
// suspended and, with a RecordStore configured, a snapshot of the run is
// saved under its run id. Workflow.Resume or Registry.Resume continues it
// later from the snapshot.
//
// # Running in the background
//
// Registry holds committed workflows by name. LocalRunner combines a
// Registry with a task queue and worker goroutines so runs can be started
// and resumed asynchronously. The queue is in memory unless OpenQueue and
// WithQueue select a durable one. The config package loads engine
// settings from a file and STEPFLOW_* environment variables, and
// FromConfig turns them into workflow options.
package stepflow
