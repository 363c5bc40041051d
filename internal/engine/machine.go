package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/petrijr/stepflow/pkg/api"
)

// Definition is everything needed to compile a workflow.
type Definition struct {
	Name  string
	Graph api.StepGraph

	// Steps is the id -> Step registry. It may hold steps that are not
	// placed in the graph.
	Steps map[string]*api.Step

	Retry         api.RetryConfig
	TriggerSchema *jsonschema.Schema
}

// Config holds the optional collaborators of a Machine.
type Config struct {
	Store     api.RecordStore
	Logger    api.Logger
	Telemetry api.Telemetry
	Observer  api.Observer
}

// Machine is a compiled, immutable workflow. It is safe for concurrent
// use; every Execute call is an independent run.
type Machine struct {
	name     string
	regions  []region
	regionOf map[string]int
	attempts map[string]int
	delays   map[string]time.Duration
	schema   *jsonschema.Resolved

	store     api.RecordStore
	logger    api.Logger
	telemetry api.Telemetry
	observer  api.Observer
}

// region is one root branch: a strictly sequential chain of nodes.
type region struct {
	id    string
	chain []*api.StepNode
}

// Compile validates def and turns it into a Machine.
func Compile(def Definition, cfg Config) (*Machine, error) {
	if len(def.Graph.Initial) == 0 {
		return nil, api.ErrEmptyWorkflow
	}

	m := &Machine{
		name:      def.Name,
		regionOf:  make(map[string]int),
		attempts:  make(map[string]int, len(def.Steps)),
		delays:    make(map[string]time.Duration, len(def.Steps)),
		store:     cfg.Store,
		logger:    cfg.Logger,
		telemetry: cfg.Telemetry,
		observer:  cfg.Observer,
	}
	if m.observer == nil {
		m.observer = api.NoopObserver{}
	}

	for i, root := range def.Graph.Initial {
		chain := def.Graph.Chain(root)
		for _, node := range chain {
			id := node.Step.ID
			if prev, dup := m.regionOf[id]; dup {
				return nil, fmt.Errorf("%w: %q (branches %q and %q)",
					api.ErrDuplicateStep, id, def.Graph.Initial[prev].Step.ID, root.Step.ID)
			}
			m.regionOf[id] = i
		}
		m.regions = append(m.regions, region{id: root.Step.ID, chain: chain})
	}

	for id, step := range def.Steps {
		m.attempts[id] = attemptsFor(step, def.Retry)
		m.delays[id] = delayFor(step, def.Retry)
	}
	// Graph nodes always win over the registry for their own position.
	for _, r := range m.regions {
		for _, node := range r.chain {
			m.attempts[node.Step.ID] = attemptsFor(node.Step, def.Retry)
			m.delays[node.Step.ID] = delayFor(node.Step, def.Retry)
		}
	}

	if def.TriggerSchema != nil {
		resolved, err := def.TriggerSchema.Resolve(nil)
		if err != nil {
			return nil, fmt.Errorf("resolve trigger schema: %w", err)
		}
		m.schema = resolved
	}

	return m, nil
}

// Name returns the workflow name.
func (m *Machine) Name() string { return m.name }

// Regions returns the root step ids in declaration order.
func (m *Machine) Regions() []string {
	ids := make([]string, len(m.regions))
	for i, r := range m.regions {
		ids[i] = r.id
	}
	return ids
}

func attemptsFor(step *api.Step, wf api.RetryConfig) int {
	if step.Retry != nil && step.Retry.Attempts > 0 {
		return step.Retry.Attempts
	}
	if wf.Attempts > 0 {
		return wf.Attempts
	}
	return api.DefaultAttempts
}

func delayFor(step *api.Step, wf api.RetryConfig) time.Duration {
	if step.Retry != nil && step.Retry.Delay > 0 {
		return step.Retry.Delay
	}
	if wf.Delay > 0 {
		return wf.Delay
	}
	return api.DefaultDelay
}

// statePath renders the nested state path of a region, e.g. "s1.s2.executing".
func statePath(r region, pos int, state api.NodeState) string {
	parts := make([]string, 0, pos+2)
	for _, n := range r.chain[:pos+1] {
		parts = append(parts, n.Step.ID)
	}
	parts = append(parts, string(state))
	return strings.Join(parts, ".")
}
