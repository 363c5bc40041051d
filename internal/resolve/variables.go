package resolve

import (
	"maps"

	"github.com/petrijr/stepflow/pkg/api"
)

// Variables resolves every binding against wc. A binding whose source step
// has not succeeded resolves to nil; resolution never fails.
func Variables(wc api.WorkflowContext, bindings map[string]api.VariableRef) map[string]any {
	out := make(map[string]any, len(bindings))
	for key, ref := range bindings {
		src, ok := wc.PayloadOf(ref.StepID)
		if !ok {
			out[key] = nil
			continue
		}
		out[key] = Lookup(src, ref.Path)
	}
	return out
}

// Merge overlays resolved variables on a step's static payload. Variables
// win on key collisions. Neither input is modified.
func Merge(payload, vars map[string]any) map[string]any {
	out := make(map[string]any, len(payload)+len(vars))
	maps.Copy(out, payload)
	maps.Copy(out, vars)
	return out
}

// Bindings keeps the VariableRef entries of raw and drops everything else.
func Bindings(raw map[string]any) map[string]api.VariableRef {
	out := make(map[string]api.VariableRef, len(raw))
	for key, v := range raw {
		switch ref := v.(type) {
		case api.VariableRef:
			out[key] = ref
		case *api.VariableRef:
			if ref != nil {
				out[key] = *ref
			}
		}
	}
	return out
}
