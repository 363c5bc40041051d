package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionContext_Decode(t *testing.T) {
	type input struct {
		Name  string
		Count int `mapstructure:"n"`
	}

	ac := ActionContext{Data: map[string]any{"name": "x", "n": "3"}}

	var in input
	require.NoError(t, ac.Decode(&in))
	assert.Equal(t, input{Name: "x", Count: 3}, in)

	v, ok := ac.Get("name")
	assert.True(t, ok)
	assert.Equal(t, "x", v)
}

func TestWorkflowContext_PayloadOf(t *testing.T) {
	wc := WorkflowContext{
		TriggerData: map[string]any{"k": 1},
		StepResults: map[string]StepResult{
			"ok":   Success("p"),
			"bad":  Failure("boom"),
			"wait": Suspension(),
		},
	}

	v, ok := wc.PayloadOf(TriggerStepID)
	assert.True(t, ok)
	assert.Equal(t, map[string]any{"k": 1}, v)

	v, ok = wc.PayloadOf("ok")
	assert.True(t, ok)
	assert.Equal(t, "p", v)

	for _, id := range []string{"bad", "wait", "missing"} {
		_, ok = wc.PayloadOf(id)
		assert.False(t, ok, id)
	}
}

func TestWorkflowContext_CloneIsIndependent(t *testing.T) {
	wc := WorkflowContext{
		StepResults: map[string]StepResult{"a": Success(1)},
		Attempts:    map[string]int{"a": 3},
	}
	cp := wc.Clone()
	cp.StepResults["b"] = Success(2)
	cp.Attempts["a"] = 0

	assert.Len(t, wc.StepResults, 1)
	assert.Equal(t, 3, wc.Attempts["a"])
}

func TestRunResult_FailedAndSuspended(t *testing.T) {
	rr := &RunResult{Results: map[string]StepResult{
		"a": Success(nil),
		"b": Failure("x"),
		"c": Suspension(),
	}}
	assert.Equal(t, []string{"b"}, rr.Failed())
	assert.Equal(t, []string{"c"}, rr.Suspended())
}
