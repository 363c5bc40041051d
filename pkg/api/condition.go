package api

import "context"

// VariableRef points at a value inside trigger data or a prior step's
// success payload. An empty Path or "." selects the whole document.
type VariableRef struct {
	StepID string `json:"step"`
	Path   string `json:"path"`
}

// FromStep references path inside step's success payload.
func FromStep(step *Step, path string) VariableRef {
	return VariableRef{StepID: step.ID, Path: path}
}

// FromTrigger references path inside the run's trigger data.
func FromTrigger(path string) VariableRef {
	return VariableRef{StepID: TriggerStepID, Path: path}
}

// Operator is one of the comparison operators accepted in a Query.
type Operator string

const (
	OpEq     Operator = "$eq"
	OpNe     Operator = "$ne"
	OpGt     Operator = "$gt"
	OpGte    Operator = "$gte"
	OpLt     Operator = "$lt"
	OpLte    Operator = "$lte"
	OpIn     Operator = "$in"
	OpNin    Operator = "$nin"
	// OpExists tests whether the referenced path is present. A key whose
	// value is null is present.
	OpExists Operator = "$exists"
)

// Query maps operators to operands. All operators present must hold.
type Query map[Operator]any

// Condition is a declarative predicate over the run's context.
//
// Ref and Query form the base clause. And and Or hold nested conditions.
// When more than one of base/And/Or is set on the same Condition, all of
// them must be true.
type Condition struct {
	Ref   *VariableRef `json:"ref,omitempty"`
	Query Query        `json:"query,omitempty"`
	And   []Condition  `json:"and,omitempty"`
	Or    []Condition  `json:"or,omitempty"`
}

// Ref builds a base condition on ref.
func Ref(ref VariableRef, q Query) Condition {
	return Condition{Ref: &ref, Query: q}
}

// And builds a condition that holds when every sub-condition holds.
func And(conds ...Condition) Condition {
	return Condition{And: conds}
}

// Or builds a condition that holds when at least one sub-condition holds.
// Or() with no sub-conditions never holds.
func Or(conds ...Condition) Condition {
	if conds == nil {
		conds = []Condition{}
	}
	return Condition{Or: conds}
}

// Eq is shorthand for Query{OpEq: v}.
func Eq(v any) Query { return Query{OpEq: v} }

// ConditionFunc is a functional alternative to Condition. A false result or
// a non-nil error fails the step's condition.
type ConditionFunc func(ctx context.Context, wc WorkflowContext) (bool, error)
