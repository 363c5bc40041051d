package engine

import (
	"context"
	"fmt"

	"github.com/petrijr/stepflow/internal/condition"
	"github.com/petrijr/stepflow/pkg/api"
)

type checkOutcome int

const (
	checkMet checkOutcome = iota
	checkNotMet
	checkTimedOut
	checkConditionFailed
	checkSuspended
)

func (o checkOutcome) String() string {
	switch o {
	case checkMet:
		return "DEPENDENCIES_MET"
	case checkNotMet:
		return "DEPENDENCIES_NOT_MET"
	case checkTimedOut:
		return "TIMED_OUT"
	case checkSuspended:
		return "SUSPENDED"
	default:
		return "CONDITION_FAILED"
	}
}

// check decides whether node may execute. wc and pending are private
// copies owned by the calling invocation.
func (r *run) check(ctx context.Context, node *api.StepNode, wc api.WorkflowContext, pending map[string]bool) (outcome checkOutcome, msg string) {
	id := node.Step.ID
	cfg := node.Config

	if left, ok := wc.Attempts[id]; !ok || left <= 0 {
		if cfg.SnapshotOnTimeout {
			return checkSuspended, ""
		}
		return checkTimedOut, fmt.Sprintf("Step:%s timed out", id)
	}

	switch {
	case cfg.WhenFunc != nil:
		failed := fmt.Sprintf("Step:%s condition function check failed", id)
		defer func() {
			if p := recover(); p != nil {
				r.log(ctx, api.LevelError, api.LogTypeStep, id, "condition function panicked", map[string]any{"panic": fmt.Sprint(p)})
				outcome, msg = checkConditionFailed, failed
			}
		}()
		ok, err := cfg.WhenFunc(ctx, wc)
		if err != nil {
			r.log(ctx, api.LevelWarn, api.LogTypeStep, id, "condition function returned an error", map[string]any{"error": err.Error()})
			return checkConditionFailed, failed
		}
		if !ok {
			return checkConditionFailed, failed
		}
		return checkMet, ""

	case cfg.When != nil:
		failed := fmt.Sprintf("Step:%s condition check failed", id)
		res, err := condition.Evaluate(*cfg.When, condition.Env{
			Context: wc,
			Pending: func(stepID string) bool { return pending[stepID] },
		})
		if err != nil {
			r.log(ctx, api.LevelError, api.LogTypeStep, id, "workflow condition check failed", map[string]any{"error": err.Error()})
			return checkConditionFailed, failed
		}
		switch res {
		case condition.True:
			return checkMet, ""
		case condition.Unknown:
			return checkNotMet, ""
		default:
			return checkConditionFailed, failed
		}

	default:
		return checkMet, ""
	}
}
