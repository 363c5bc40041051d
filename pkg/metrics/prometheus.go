// Package metrics exports engine activity as Prometheus metrics.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/petrijr/stepflow/pkg/api"
)

// Run outcomes used as the "outcome" label.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeSuspended = "suspended"
)

var _ api.Observer = (*PrometheusObserver)(nil)

// PrometheusObserver is an api.Observer that records run and step counters,
// step durations and dependency-check retries.
type PrometheusObserver struct {
	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runsInFlight  *prometheus.GaugeVec

	stepsStarted *prometheus.CounterVec
	stepResults  *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	stepRetries  *prometheus.CounterVec
}

// NewPrometheusObserver registers the collectors with registry, or with
// the default registerer when nil.
func NewPrometheusObserver(registry prometheus.Registerer) *PrometheusObserver {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &PrometheusObserver{
		runsStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stepflow_runs_started_total",
				Help: "Total number of workflow runs started or resumed",
			},
			[]string{"workflow", "resumed"},
		),
		runsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stepflow_runs_completed_total",
				Help: "Total number of settled workflow runs by outcome",
			},
			[]string{"workflow", "outcome"},
		),
		runsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stepflow_runs_in_flight",
				Help: "Number of workflow runs currently executing",
			},
			[]string{"workflow"},
		),
		stepsStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stepflow_steps_started_total",
				Help: "Total number of step handler invocations",
			},
			[]string{"workflow", "step"},
		),
		stepResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stepflow_step_results_total",
				Help: "Total number of recorded step results by status",
			},
			[]string{"workflow", "step", "status"},
		),
		stepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stepflow_step_duration_seconds",
				Help:    "Duration of step handler execution in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"workflow", "step"},
		),
		stepRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stepflow_step_retries_total",
				Help: "Total number of unmet dependency checks that scheduled a retry",
			},
			[]string{"workflow", "step"},
		),
	}
}

func (o *PrometheusObserver) OnRunStart(_ context.Context, run api.RunInfo) {
	o.runsStarted.WithLabelValues(run.WorkflowName, strconv.FormatBool(run.Resumed)).Inc()
	o.runsInFlight.WithLabelValues(run.WorkflowName).Inc()
}

func (o *PrometheusObserver) OnRunCompleted(_ context.Context, run api.RunInfo, result *api.RunResult) {
	o.runsInFlight.WithLabelValues(run.WorkflowName).Dec()
	o.runsCompleted.WithLabelValues(run.WorkflowName, outcome(result)).Inc()
}

func (o *PrometheusObserver) OnStepStart(_ context.Context, run api.RunInfo, stepID string) {
	o.stepsStarted.WithLabelValues(run.WorkflowName, stepID).Inc()
}

func (o *PrometheusObserver) OnStepCompleted(_ context.Context, run api.RunInfo, stepID string, res api.StepResult, d time.Duration) {
	o.stepResults.WithLabelValues(run.WorkflowName, stepID, string(res.Status)).Inc()
	if res.Status != api.StatusSuspended {
		o.stepDuration.WithLabelValues(run.WorkflowName, stepID).Observe(d.Seconds())
	}
}

func (o *PrometheusObserver) OnTransition(_ context.Context, run api.RunInfo, t api.Transition) {
	if t.To == api.StateWaiting {
		o.stepRetries.WithLabelValues(run.WorkflowName, t.StepID).Inc()
	}
}

func outcome(result *api.RunResult) string {
	switch {
	case result == nil:
		return OutcomeFailed
	case len(result.Suspended()) > 0:
		return OutcomeSuspended
	case len(result.Failed()) > 0:
		return OutcomeFailed
	default:
		return OutcomeCompleted
	}
}
