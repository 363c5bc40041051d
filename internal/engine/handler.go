package engine

import (
	"context"
	"fmt"

	"github.com/petrijr/stepflow/internal/resolve"
	"github.com/petrijr/stepflow/pkg/api"
)

// execute runs node's handler: variable resolution, payload merge and the
// action, each wrapped in its telemetry span. Errors and panics become a
// failed result carrying only the message.
func (r *run) execute(ctx context.Context, node *api.StepNode, wc api.WorkflowContext) (res api.StepResult) {
	step := node.Step

	defer func() {
		if p := recover(); p != nil {
			res = api.Failure(fmt.Sprintf("panic: %v", p))
		}
	}()

	action := r.trace(fmt.Sprintf("workflow.%s.action.%s", r.m.name, step.ID), func(ctx context.Context) (any, error) {
		if step.Action == nil {
			return map[string]any{}, nil
		}
		vars := resolve.Variables(wc, node.Bindings)
		return step.Action(ctx, api.ActionParams{
			RunID: r.info.RunID,
			Context: api.ActionContext{
				StepResults: wc.StepResults,
				TriggerData: wc.TriggerData,
				Data:        resolve.Merge(step.Payload, vars),
			},
		})
	})

	handler := r.trace(fmt.Sprintf("workflow.%s.step.%s", r.m.name, step.ID), func(ctx context.Context) (any, error) {
		r.log(ctx, api.LevelDebug, api.LogTypeStep, step.ID, fmt.Sprintf("Executing step %s", step.ID), nil)
		return action(ctx)
	})

	out, err := handler(ctx)
	if err != nil {
		return api.Failure(err.Error())
	}
	return api.Success(out)
}

func (r *run) trace(span string, fn api.TracedFunc) api.TracedFunc {
	if r.m.telemetry == nil {
		return fn
	}
	return r.m.telemetry.TraceMethod(span, fn)
}
