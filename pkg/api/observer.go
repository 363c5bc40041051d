package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// NodeState is the state of one step node inside its branch.
type NodeState string

const (
	StatePending   NodeState = "pending"
	StateWaiting   NodeState = "waiting"
	StateExecuting NodeState = "executing"
	StateCompleted NodeState = "completed"
	StateFailed    NodeState = "failed"
	StateSuspended NodeState = "suspended"
)

// Terminal reports whether a branch sitting in s has settled.
func (s NodeState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateSuspended
}

// RunInfo identifies the run an observer callback belongs to.
type RunInfo struct {
	WorkflowName string
	RunID        string
	Resumed      bool
}

// Transition describes one state change of a step node.
//
// Region is the root step id of the branch. Path is the dotted state path
// of the branch after the transition, for example "s1.s2.executing".
type Transition struct {
	Region string
	StepID string
	Path   string
	From   NodeState
	To     NodeState
}

// Observer receives callbacks from the workflow engine for logging and metrics.
//
// Callbacks run on the run's event loop; implementations should be fast and
// non-blocking so as not to delay workflow execution.
type Observer interface {
	// OnRunStart is called once per Execute, after trigger validation and
	// before the first dependency check.
	OnRunStart(ctx context.Context, run RunInfo)

	// OnRunCompleted is called when every branch has settled.
	OnRunCompleted(ctx context.Context, run RunInfo, result *RunResult)

	// OnStepStart is called before a step's action is invoked.
	OnStepStart(ctx context.Context, run RunInfo, stepID string)

	// OnStepCompleted is called once a result has been recorded for stepID,
	// whatever its status. d is zero for steps that never executed.
	OnStepCompleted(ctx context.Context, run RunInfo, stepID string, res StepResult, d time.Duration)

	OnTransition(ctx context.Context, run RunInfo, t Transition)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnRunStart(ctx context.Context, run RunInfo)                         {}
func (NoopObserver) OnRunCompleted(ctx context.Context, run RunInfo, result *RunResult) {}
func (NoopObserver) OnStepStart(ctx context.Context, run RunInfo, stepID string)        {}
func (NoopObserver) OnStepCompleted(ctx context.Context, run RunInfo, stepID string, res StepResult, d time.Duration) {
}
func (NoopObserver) OnTransition(ctx context.Context, run RunInfo, t Transition) {}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnRunStart(ctx context.Context, run RunInfo) {
	for _, o := range c.observers {
		o.OnRunStart(ctx, run)
	}
}

func (c *CompositeObserver) OnRunCompleted(ctx context.Context, run RunInfo, result *RunResult) {
	for _, o := range c.observers {
		o.OnRunCompleted(ctx, run, result)
	}
}

func (c *CompositeObserver) OnStepStart(ctx context.Context, run RunInfo, stepID string) {
	for _, o := range c.observers {
		o.OnStepStart(ctx, run, stepID)
	}
}

func (c *CompositeObserver) OnStepCompleted(ctx context.Context, run RunInfo, stepID string, res StepResult, d time.Duration) {
	for _, o := range c.observers {
		o.OnStepCompleted(ctx, run, stepID, res, d)
	}
}

func (c *CompositeObserver) OnTransition(ctx context.Context, run RunInfo, t Transition) {
	for _, o := range c.observers {
		o.OnTransition(ctx, run, t)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs run / step lifecycle
// events using the provided slog.Logger. If logger is nil, slog.Default()
// is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnRunStart(ctx context.Context, run RunInfo) {
	o.Logger.InfoContext(ctx, "run_start",
		slog.String("workflow", run.WorkflowName),
		slog.String("run_id", run.RunID),
		slog.Bool("resumed", run.Resumed),
	)
}

func (o *LoggingObserver) OnRunCompleted(ctx context.Context, run RunInfo, result *RunResult) {
	level := slog.LevelInfo
	failed := result.Failed()
	if len(failed) > 0 {
		level = slog.LevelWarn
	}
	o.Logger.Log(ctx, level, "run_completed",
		slog.String("workflow", run.WorkflowName),
		slog.String("run_id", run.RunID),
		slog.Int("steps", len(result.Results)),
		slog.Any("failed", failed),
		slog.Any("suspended", result.Suspended()),
	)
}

func (o *LoggingObserver) OnStepStart(ctx context.Context, run RunInfo, stepID string) {
	o.Logger.DebugContext(ctx, "step_start",
		slog.String("workflow", run.WorkflowName),
		slog.String("run_id", run.RunID),
		slog.String("step", stepID),
	)
}

func (o *LoggingObserver) OnStepCompleted(ctx context.Context, run RunInfo, stepID string, res StepResult, d time.Duration) {
	level := slog.LevelDebug
	if res.Status == StatusFailed {
		level = slog.LevelError
	}
	o.Logger.Log(ctx, level, "step_completed",
		slog.String("workflow", run.WorkflowName),
		slog.String("run_id", run.RunID),
		slog.String("step", stepID),
		slog.String("status", string(res.Status)),
		slog.Duration("duration", d),
		slog.String("error", res.Error),
	)
}

func (o *LoggingObserver) OnTransition(ctx context.Context, run RunInfo, t Transition) {
	o.Logger.DebugContext(ctx, "transition",
		slog.String("run_id", run.RunID),
		slog.String("region", t.Region),
		slog.String("path", t.Path),
	)
}

// BasicMetrics collects simple counters and aggregate step durations.
// It implements Observer, and can be combined with LoggingObserver via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	runsStarted       atomic.Int64
	runsCompleted     atomic.Int64
	stepsSucceeded    atomic.Int64
	stepsFailed       atomic.Int64
	stepsSuspended    atomic.Int64
	retries           atomic.Int64
	totalStepDuration atomic.Int64 // nanoseconds
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	RunsStarted   int64
	RunsCompleted int64
	RunsInFlight  int64

	StepsSucceeded  int64
	StepsFailed     int64
	StepsSuspended  int64
	Retries         int64
	AvgStepDuration time.Duration
}

func (m *BasicMetrics) OnRunStart(ctx context.Context, run RunInfo) {
	m.runsStarted.Add(1)
}

func (m *BasicMetrics) OnRunCompleted(ctx context.Context, run RunInfo, result *RunResult) {
	m.runsCompleted.Add(1)
}

func (m *BasicMetrics) OnStepCompleted(ctx context.Context, run RunInfo, stepID string, res StepResult, d time.Duration) {
	switch res.Status {
	case StatusSuccess:
		// Only successful steps count towards the average duration.
		m.stepsSucceeded.Add(1)
		m.totalStepDuration.Add(d.Nanoseconds())
	case StatusFailed:
		m.stepsFailed.Add(1)
	case StatusSuspended:
		m.stepsSuspended.Add(1)
	}
}

func (m *BasicMetrics) OnTransition(ctx context.Context, run RunInfo, t Transition) {
	if t.To == StateWaiting {
		m.retries.Add(1)
	}
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	started := m.runsStarted.Load()
	completed := m.runsCompleted.Load()
	steps := m.stepsSucceeded.Load()
	totalNs := m.totalStepDuration.Load()

	var avg time.Duration
	if steps > 0 {
		avg = time.Duration(totalNs / steps)
	}

	return BasicMetricsSnapshot{
		RunsStarted:     started,
		RunsCompleted:   completed,
		RunsInFlight:    started - completed,
		StepsSucceeded:  steps,
		StepsFailed:     m.stepsFailed.Load(),
		StepsSuspended:  m.stepsSuspended.Load(),
		Retries:         m.retries.Load(),
		AvgStepDuration: avg,
	}
}
