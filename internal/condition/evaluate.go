// Package condition evaluates declarative step conditions against the
// state of a run.
package condition

import (
	"github.com/petrijr/stepflow/pkg/api"
)

// Outcome is the three-valued result of evaluating a Condition.
type Outcome int

const (
	False Outcome = iota
	True
	// Unknown means a referenced step has not produced a result yet but
	// still may. Callers should retry later.
	Unknown
)

func (o Outcome) String() string {
	switch o {
	case True:
		return "true"
	case Unknown:
		return "unknown"
	default:
		return "false"
	}
}

// Env is the data a condition is evaluated against.
type Env struct {
	Context api.WorkflowContext

	// Pending reports whether stepID may still record a result in this run.
	// A nil Pending treats every missing result as final.
	Pending func(stepID string) bool
}

// Evaluate evaluates c in env. The base clause, And and Or are combined with
// AND; an absent (nil) clause counts as true. A present but empty Or has no
// true member and is false. Unknown propagates through And and Or the usual
// three-valued way.
func Evaluate(c api.Condition, env Env) (Outcome, error) {
	out := True

	if c.Ref != nil {
		base, err := evalRef(*c.Ref, c.Query, env)
		if err != nil {
			return False, err
		}
		out = and(out, base)
	}

	if c.And != nil {
		sub := True
		for _, child := range c.And {
			o, err := Evaluate(child, env)
			if err != nil {
				return False, err
			}
			sub = and(sub, o)
			if sub == False {
				break
			}
		}
		out = and(out, sub)
	}

	if c.Or != nil {
		sub := False
		for _, child := range c.Or {
			o, err := Evaluate(child, env)
			if err != nil {
				return False, err
			}
			sub = or(sub, o)
			if sub == True {
				break
			}
		}
		out = and(out, sub)
	}

	return out, nil
}

func evalRef(ref api.VariableRef, q api.Query, env Env) (Outcome, error) {
	if ref.StepID != api.TriggerStepID {
		if _, recorded := env.Context.StepResults[ref.StepID]; !recorded {
			if env.Pending != nil && env.Pending(ref.StepID) {
				return Unknown, nil
			}
			return False, nil
		}
	}

	src, ok := env.Context.PayloadOf(ref.StepID)
	if !ok || src == nil {
		return False, nil
	}

	matched, err := MatchAt(src, ref.Path, q)
	if err != nil {
		return False, err
	}
	if matched {
		return True, nil
	}
	return False, nil
}

func and(a, b Outcome) Outcome {
	switch {
	case a == False || b == False:
		return False
	case a == Unknown || b == Unknown:
		return Unknown
	default:
		return True
	}
}

func or(a, b Outcome) Outcome {
	switch {
	case a == True || b == True:
		return True
	case a == Unknown || b == Unknown:
		return Unknown
	default:
		return False
	}
}
