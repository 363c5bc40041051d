// Package api contains the core types shared by the stepflow engine and
// its integrations.
//
// Most users interact with the higher-level stepflow package, which
// re-exports the types from this package and adds the Workflow builder. The
// api package is intended for custom integrations (record stores, loggers,
// telemetry, observers) and for contributors extending the engine itself.
//
// # Steps
//
// A Step is a named unit of work backed by an ActionFunc. Steps are created
// before the graph is built and are referenced, not owned, by it. The
// engine calls the action with an ActionContext holding a copy of the run's
// results, the trigger data and the step's resolved input data.
//
// # Results
//
// Every step reaches exactly one StepResult per run: success with a
// payload, failed with an error message, or suspended. A RunResult is
// never a failure signal in itself; callers inspect each step's status.
//
// # Conditions and variables
//
// VariableRef points into the trigger data or a prior step's success
// payload using a dotted, array-index aware path. Condition combines
// reference clauses (with a small closed set of comparison operators) using
// And and Or.
//
// # Collaborators
//
// The engine consumes a few optional collaborators:
//
//   - RecordStore persists snapshots of suspended runs.
//   - Logger receives structured log messages.
//   - Telemetry wraps step handlers and actions in spans.
//   - Observer receives run, step and state-transition callbacks.
//
// A nil collaborator is always a no-op.
package api
