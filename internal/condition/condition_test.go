package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/stepflow/pkg/api"
)

func TestMatch_Operators(t *testing.T) {
	tests := []struct {
		name  string
		value any
		query api.Query
		want  bool
	}{
		{"eq string", "success", api.Query{api.OpEq: "success"}, true},
		{"eq mismatch", "failed", api.Query{api.OpEq: "success"}, false},
		{"eq int vs float", 3, api.Query{api.OpEq: 3.0}, true},
		{"eq bool", true, api.Query{api.OpEq: true}, true},
		{"eq array element", []any{"a", "b"}, api.Query{api.OpEq: "b"}, true},
		{"eq whole array", []string{"a", "b"}, api.Query{api.OpEq: []any{"a", "b"}}, true},
		{"ne", "x", api.Query{api.OpNe: "y"}, true},
		{"gt", 75, api.Query{api.OpGt: 70}, true},
		{"gte equal", 70, api.Query{api.OpGte: 70}, true},
		{"lt", 75, api.Query{api.OpLt: 70}, false},
		{"lte", 69.5, api.Query{api.OpLte: 70}, true},
		{"gt strings", "b", api.Query{api.OpGt: "a"}, true},
		{"gt mixed types", "80", api.Query{api.OpGt: 70}, false},
		{"gt nil", nil, api.Query{api.OpGt: 0}, false},
		{"gt any element", []any{1, 99}, api.Query{api.OpGt: 50}, true},
		{"in", "b", api.Query{api.OpIn: []string{"a", "b"}}, true},
		{"in miss", "c", api.Query{api.OpIn: []string{"a", "b"}}, false},
		{"nin", "c", api.Query{api.OpNin: []string{"a", "b"}}, true},
		{"exists true", 0, api.Query{api.OpExists: true}, true},
		{"exists false", nil, api.Query{api.OpExists: false}, true},
		{"range", 75, api.Query{api.OpGte: 70, api.OpLt: 80}, true},
		{"range miss", 85, api.Query{api.OpGte: 70, api.OpLt: 80}, false},
		{"empty query", "anything", api.Query{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Match(tt.value, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatch_Errors(t *testing.T) {
	_, err := Match("x", api.Query{"$regex": "x"})
	require.ErrorIs(t, err, ErrUnknownOperator)

	_, err = Match("x", api.Query{api.OpIn: "not-an-array"})
	require.Error(t, err)

	_, err = Match("x", api.Query{api.OpExists: "yes"})
	require.Error(t, err)
}

func step1Env() Env {
	return Env{Context: api.WorkflowContext{
		TriggerData: map[string]any{"tier": "gold"},
		StepResults: map[string]api.StepResult{
			"step1": api.Success(map[string]any{
				"status": "partial",
				"score":  75,
				"flags":  map[string]any{"isValid": true},
			}),
			"broken": api.Failure("boom"),
		},
	}}
}

func ref(path string, q api.Query) api.Condition {
	return api.Ref(api.VariableRef{StepID: "step1", Path: path}, q)
}

func TestEvaluate_NestedAndOr(t *testing.T) {
	env := step1Env()

	pass := api.And(
		api.Or(
			ref("status", api.Eq("success")),
			api.And(
				ref("status", api.Eq("partial")),
				ref("score", api.Query{api.OpGte: 70}),
			),
		),
		ref("flags.isValid", api.Eq(true)),
	)
	got, err := Evaluate(pass, env)
	require.NoError(t, err)
	assert.Equal(t, True, got)

	fail := api.Or(
		ref("status", api.Eq("failed")),
		ref("score", api.Query{api.OpLt: 70}),
	)
	got, err = Evaluate(fail, env)
	require.NoError(t, err)
	assert.Equal(t, False, got)
}

func TestEvaluate_AllClausesAreANDed(t *testing.T) {
	env := step1Env()

	c := ref("status", api.Eq("partial"))
	c.Or = []api.Condition{ref("score", api.Query{api.OpLt: 10})}
	got, err := Evaluate(c, env)
	require.NoError(t, err)
	assert.Equal(t, False, got, "base true AND or false")

	c.Or = []api.Condition{ref("score", api.Query{api.OpGt: 10})}
	c.And = []api.Condition{ref("flags.isValid", api.Eq(false))}
	got, err = Evaluate(c, env)
	require.NoError(t, err)
	assert.Equal(t, False, got, "base true AND or true AND and false")

	c.And = []api.Condition{ref("flags.isValid", api.Eq(true))}
	got, err = Evaluate(c, env)
	require.NoError(t, err)
	assert.Equal(t, True, got)
}

func TestEvaluate_EmptyConditionIsTrue(t *testing.T) {
	got, err := Evaluate(api.Condition{}, Env{})
	require.NoError(t, err)
	assert.Equal(t, True, got)
}

func TestEvaluate_EmptyOrIsFalse(t *testing.T) {
	env := step1Env()

	got, err := Evaluate(api.Condition{Or: []api.Condition{}}, env)
	require.NoError(t, err)
	assert.Equal(t, False, got)

	got, err = Evaluate(api.Or(), env)
	require.NoError(t, err)
	assert.Equal(t, False, got)

	got, err = Evaluate(api.Condition{And: []api.Condition{}}, env)
	require.NoError(t, err)
	assert.Equal(t, True, got, "empty and holds vacuously")
}

func TestEvaluate_ExistsSeesNullKeys(t *testing.T) {
	env := Env{Context: api.WorkflowContext{
		StepResults: map[string]api.StepResult{
			"lookup": api.Success(map[string]any{"customer": nil}),
		},
	}}
	at := func(path string, want bool) api.Condition {
		return api.Ref(api.VariableRef{StepID: "lookup", Path: path}, api.Query{api.OpExists: want})
	}

	got, err := Evaluate(at("customer", true), env)
	require.NoError(t, err)
	assert.Equal(t, True, got, "null key is present")

	got, err = Evaluate(at("customer", false), env)
	require.NoError(t, err)
	assert.Equal(t, False, got)

	got, err = Evaluate(at("address", false), env)
	require.NoError(t, err)
	assert.Equal(t, True, got)

	got, err = Evaluate(at("customer.name", true), env)
	require.NoError(t, err)
	assert.Equal(t, False, got, "cannot descend into null")
}

func TestEvaluate_MissingSources(t *testing.T) {
	env := step1Env()

	got, err := Evaluate(api.Ref(api.VariableRef{StepID: "broken", Path: "x"}, api.Query{api.OpExists: false}), env)
	require.NoError(t, err)
	assert.Equal(t, False, got, "failed step has no payload")

	got, err = Evaluate(api.Ref(api.VariableRef{StepID: "never", Path: "x"}, api.Query{}), env)
	require.NoError(t, err)
	assert.Equal(t, False, got)

	got, err = Evaluate(api.Ref(api.FromTrigger("tier"), api.Eq("gold")), env)
	require.NoError(t, err)
	assert.Equal(t, True, got)

	got, err = Evaluate(api.Ref(api.FromTrigger("tier"), api.Eq("gold")), Env{})
	require.NoError(t, err)
	assert.Equal(t, False, got, "no trigger data")
}

func TestEvaluate_PendingReferenceIsUnknown(t *testing.T) {
	env := step1Env()
	env.Pending = func(id string) bool { return id == "later" }

	pending := api.Ref(api.VariableRef{StepID: "later", Path: "ok"}, api.Eq(true))

	got, err := Evaluate(pending, env)
	require.NoError(t, err)
	assert.Equal(t, Unknown, got)

	got, err = Evaluate(api.Or(pending, ref("status", api.Eq("partial"))), env)
	require.NoError(t, err)
	assert.Equal(t, True, got, "or short-circuits on a known true")

	got, err = Evaluate(api.And(pending, ref("status", api.Eq("nope"))), env)
	require.NoError(t, err)
	assert.Equal(t, False, got, "and short-circuits on a known false")

	got, err = Evaluate(api.And(pending, ref("status", api.Eq("partial"))), env)
	require.NoError(t, err)
	assert.Equal(t, Unknown, got)
}

func TestEvaluate_PropagatesOperatorErrors(t *testing.T) {
	_, err := Evaluate(ref("status", api.Query{"$where": "x"}), step1Env())
	require.ErrorIs(t, err, ErrUnknownOperator)
}
