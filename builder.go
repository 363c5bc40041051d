package stepflow

import (
	"context"
	"maps"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/petrijr/stepflow/internal/engine"
	"github.com/petrijr/stepflow/internal/resolve"
	"github.com/petrijr/stepflow/pkg/api"
)

// Workflow is the fluent builder for a step graph and, once committed, the
// executable workflow itself:
//
//	wf := stepflow.New("onboarding", stepflow.WithRecordStore(store))
//	wf.Step(createAccount).Then(sendWelcome)
//	wf.Step(provisionQuota)
//	if _, err := wf.Commit(); err != nil {
//	    log.Fatal(err)
//	}
//	res, err := wf.Execute(ctx, stepflow.ExecuteOptions{TriggerData: input})
//
// Builder calls after Commit only take effect once Commit is called again.
// Execute may be called concurrently; each call is an independent run.
type Workflow struct {
	name          string
	retry         api.RetryConfig
	triggerSchema *jsonschema.Schema
	cfg           engine.Config

	mu     sync.Mutex
	graph  api.StepGraph
	steps  map[string]*api.Step
	cursor string

	machine *engine.Machine
}

// Option configures a Workflow at construction.
type Option func(*Workflow)

// WithTriggerSchema validates trigger data against schema before a run starts.
func WithTriggerSchema(schema *jsonschema.Schema) Option {
	return func(w *Workflow) { w.triggerSchema = schema }
}

// WithRetry sets the workflow-wide dependency check defaults. Steps with
// their own Retry override it.
func WithRetry(retry api.RetryConfig) Option {
	return func(w *Workflow) { w.retry = retry }
}

// WithRecordStore enables snapshot persistence and resume.
func WithRecordStore(store api.RecordStore) Option {
	return func(w *Workflow) { w.cfg.Store = store }
}

// WithLogger sends workflow and step log messages to logger.
func WithLogger(logger api.Logger) Option {
	return func(w *Workflow) { w.cfg.Logger = logger }
}

// WithTelemetry wraps every step action in a span from t.
func WithTelemetry(t api.Telemetry) Option {
	return func(w *Workflow) { w.cfg.Telemetry = t }
}

// WithObserver adds obs to the workflow's observers. It may be given more
// than once.
func WithObserver(obs api.Observer) Option {
	return func(w *Workflow) {
		w.cfg.Observer = api.NewCompositeObserver(w.cfg.Observer, obs)
	}
}

// New creates an empty workflow named name.
func New(name string, opts ...Option) *Workflow {
	w := &Workflow{
		name:  name,
		graph: api.StepGraph{Next: make(map[string][]*api.StepNode)},
		steps: make(map[string]*api.Step),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Name returns the workflow name.
func (w *Workflow) Name() string {
	return w.name
}

// StepOption configures the edge a step is added with.
type StepOption func(*api.StepConfig)

// Variables binds input keys to references. Values that are not
// VariableRefs are ignored.
func Variables(vars map[string]any) StepOption {
	return func(c *api.StepConfig) {
		if c.Variables == nil {
			c.Variables = make(map[string]any, len(vars))
		}
		maps.Copy(c.Variables, vars)
	}
}

// Variable binds a single input key.
func Variable(key string, ref api.VariableRef) StepOption {
	return func(c *api.StepConfig) {
		if c.Variables == nil {
			c.Variables = make(map[string]any)
		}
		c.Variables[key] = ref
	}
}

// When guards the step with a declarative condition.
func When(cond api.Condition) StepOption {
	return func(c *api.StepConfig) { c.When = &cond }
}

// WhenFunc guards the step with a predicate. It takes precedence over When.
func WhenFunc(fn api.ConditionFunc) StepOption {
	return func(c *api.StepConfig) { c.WhenFunc = fn }
}

// SnapshotOnTimeout suspends the step instead of failing it when its
// dependency check runs out of attempts.
func SnapshotOnTimeout() StepOption {
	return func(c *api.StepConfig) { c.SnapshotOnTimeout = true }
}

func newNode(step *api.Step, opts []StepOption) *api.StepNode {
	if step == nil {
		panic("stepflow: step must not be nil")
	}
	if step.ID == "" {
		panic("stepflow: step id must not be empty")
	}
	var cfg api.StepConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return &api.StepNode{
		Step:     step,
		Bindings: resolve.Bindings(cfg.Variables),
		Config:   cfg,
	}
}

// Step adds step as a new root branch. Root branches run in parallel.
// Subsequent Then calls chain after it.
func (w *Workflow) Step(step *api.Step, opts ...StepOption) *Workflow {
	node := newNode(step, opts)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.steps[step.ID] = step
	w.graph.Initial = append(w.graph.Initial, node)
	w.cursor = step.ID
	return w
}

// Then appends step to the chain of the most recent Step call. Without a
// preceding Step the step is only registered.
func (w *Workflow) Then(step *api.Step, opts ...StepOption) *Workflow {
	node := newNode(step, opts)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.steps[step.ID] = step
	if w.cursor != "" {
		w.graph.Next[w.cursor] = append(w.graph.Next[w.cursor], node)
	}
	return w
}

// Graph returns a copy of the current step graph.
func (w *Workflow) Graph() api.StepGraph {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.graph.Clone()
}

// Commit compiles the current graph. It can be called repeatedly; each
// call replaces the executable form with one built from the current graph.
func (w *Workflow) Commit() (*Workflow, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	m, err := engine.Compile(engine.Definition{
		Name:          w.name,
		Graph:         w.graph.Clone(),
		Steps:         maps.Clone(w.steps),
		Retry:         w.retry,
		TriggerSchema: w.triggerSchema,
	}, w.cfg)
	if err != nil {
		return nil, err
	}
	w.machine = m
	return w, nil
}

func (w *Workflow) compiled() (*engine.Machine, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.machine == nil {
		return nil, api.ErrNotCommitted
	}
	return w.machine, nil
}

// Execute runs the committed workflow until every branch has completed,
// failed or suspended. Step failures are reported in the result; the
// returned error covers trigger validation, snapshot loading and ctx
// cancellation.
func (w *Workflow) Execute(ctx context.Context, opts api.ExecuteOptions) (*api.RunResult, error) {
	m, err := w.compiled()
	if err != nil {
		return nil, err
	}
	return m.Execute(ctx, opts)
}

// Resume continues a suspended run of this workflow. A nil triggerData
// reuses the trigger data stored with the run.
func (w *Workflow) Resume(ctx context.Context, runID string, triggerData any) (*api.RunResult, error) {
	return w.Execute(ctx, api.ExecuteOptions{
		TriggerData:  triggerData,
		LoadSnapshot: &api.SnapshotRef{RunID: runID},
	})
}
