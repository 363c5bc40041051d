// Package worker runs workflows in the background.
//
// A Worker consumes run requests from a task queue and hands them to a
// Runner, normally a *stepflow.Registry:
//
//   - execute tasks start a new run of a registered workflow
//   - resume tasks continue a suspended run from its snapshot
//
// Tasks can be scheduled for later with EnqueueExecuteAt and
// EnqueueResumeAt. A run that returns an error (for example because its
// snapshot could not be loaded yet) is re-enqueued with exponential backoff,
// capped at Config.MaxBackoff, until Config.MaxAttempts is reached. Step failures are part of the run's
// result and are not retried by the worker.
//
// Workers are decoupled from any particular queue backend; in-memory,
// SQLite, PostgreSQL, Redis and MongoDB queues are available. Multiple workers can safely
// operate on the same queue to scale processing.
//
// Most applications use stepflow.LocalRunner, which wires a registry, an
// in-memory queue and a worker pool together.
package worker
