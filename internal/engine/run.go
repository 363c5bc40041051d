package engine

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/petrijr/stepflow/internal/resolve"
	"github.com/petrijr/stepflow/pkg/api"
)

type eventKind int

const (
	evChecked eventKind = iota
	evWaited
	evExecuted
)

// event is what an invocation reports back to the run loop. Every region
// has at most one invocation in flight.
type event struct {
	region int
	kind   eventKind

	check   checkOutcome
	message string

	result   api.StepResult
	duration time.Duration
}

// cursor is the position of one region: the chain index of its active node
// and that node's state. An empty state means the node has not been
// entered yet.
type cursor struct {
	pos   int
	state api.NodeState
}

// run is the single owner of a WorkflowContext. Only the goroutine running
// loop touches wc and cursors.
type run struct {
	m       *Machine
	info    api.RunInfo
	trigger any
	wc      api.WorkflowContext
	cursors []cursor
	events  chan event
}

// Execute runs the workflow until every region is terminal and returns the
// accumulated results. Step failures are reported in the result, not as an
// error.
func (m *Machine) Execute(ctx context.Context, opts api.ExecuteOptions) (*api.RunResult, error) {
	if opts.LoadSnapshot != nil && opts.LoadSnapshot.RunID != "" {
		snap, err := m.LoadSnapshot(ctx, opts.LoadSnapshot.RunID)
		if err != nil {
			return nil, err
		}
		return m.start(ctx, snap.RunID, opts.TriggerData, snap)
	}
	return m.start(ctx, uuid.NewString(), opts.TriggerData, nil)
}

func (m *Machine) start(ctx context.Context, runID string, trigger any, snap *Snapshot) (*api.RunResult, error) {
	if trigger == nil && snap != nil {
		trigger = snap.TriggerData
	}

	r := m.newRun(runID, trigger, snap)
	r.log(ctx, api.LevelInfo, api.LogTypeWorkflow, "", "Executing workflow", map[string]any{"triggerData": trigger})

	if err := m.validateTrigger(trigger); err != nil {
		r.log(ctx, api.LevelError, api.LogTypeWorkflow, "", "Trigger schema validation failed", map[string]any{"error": err.Error()})
		return nil, err
	}
	if m.schema != nil {
		r.log(ctx, api.LevelDebug, api.LogTypeWorkflow, "", "Trigger schema validation passed", nil)
	}

	return r.loop(ctx)
}

func (m *Machine) validateTrigger(trigger any) error {
	if m.schema == nil {
		return nil
	}
	instance, err := resolve.Normalize(trigger)
	if err != nil {
		return fmt.Errorf("%w: %v", api.ErrTriggerValidation, err)
	}
	if err := m.schema.Validate(instance); err != nil {
		return fmt.Errorf("%w: %v", api.ErrTriggerValidation, err)
	}
	return nil
}

func (m *Machine) newRun(runID string, trigger any, snap *Snapshot) *run {
	ctxTrigger := trigger
	if ctxTrigger == nil {
		ctxTrigger = map[string]any{}
	}

	r := &run{
		m:       m,
		info:    api.RunInfo{WorkflowName: m.name, RunID: runID, Resumed: snap != nil},
		trigger: trigger,
		wc: api.WorkflowContext{
			TriggerData: ctxTrigger,
			StepResults: make(map[string]api.StepResult),
			Attempts:    maps.Clone(m.attempts),
		},
		cursors: make([]cursor, len(m.regions)),
		events:  make(chan event, len(m.regions)),
	}
	if snap != nil {
		r.restore(snap)
	}
	return r
}

// restore seeds the run from a snapshot. Settled regions stay settled;
// suspended regions restart at their suspended node with a fresh attempt
// budget. Regions unknown to the snapshot start from scratch.
func (r *run) restore(snap *Snapshot) {
	maps.Copy(r.wc.StepResults, snap.StepResults)
	maps.Copy(r.wc.Attempts, snap.Attempts)

	for i, reg := range r.m.regions {
		rs, ok := snap.Regions[reg.id]
		if !ok || rs.Position < 0 || rs.Position >= len(reg.chain) {
			continue
		}
		id := reg.chain[rs.Position].Step.ID
		switch {
		case rs.State == api.StateSuspended:
			delete(r.wc.StepResults, id)
			r.wc.Attempts[id] = r.m.attempts[id]
			r.cursors[i] = cursor{pos: rs.Position}
		case rs.State.Terminal():
			r.cursors[i] = cursor{pos: rs.Position, state: rs.State}
		default:
			r.cursors[i] = cursor{pos: rs.Position}
		}
	}
}

func (r *run) loop(ctx context.Context) (*api.RunResult, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.m.observer.OnRunStart(ctx, r.info)

	for i, c := range r.cursors {
		if !c.state.Terminal() {
			r.enter(runCtx, i, c.pos, api.StatePending)
		}
	}

	for !r.settled() {
		select {
		case ev := <-r.events:
			r.handle(runCtx, ev)
		case <-ctx.Done():
			r.log(ctx, api.LevelWarn, api.LogTypeWorkflow, "", "Workflow cancelled", map[string]any{"error": ctx.Err().Error()})
			return nil, ctx.Err()
		}
	}

	result := &api.RunResult{
		RunID:       r.info.RunID,
		TriggerData: r.trigger,
		Results:     maps.Clone(r.wc.StepResults),
	}

	if len(result.Suspended()) > 0 {
		r.persist(ctx)
	}
	if len(result.Failed()) > 0 {
		r.log(ctx, api.LevelError, api.LogTypeWorkflow, "", "Workflow failed", map[string]any{"results": result.Results})
	} else {
		r.log(ctx, api.LevelInfo, api.LogTypeWorkflow, "", "Workflow completed", map[string]any{"results": result.Results})
	}

	r.m.observer.OnRunCompleted(ctx, r.info, result)
	return result, nil
}

func (r *run) settled() bool {
	for _, c := range r.cursors {
		if !c.state.Terminal() {
			return false
		}
	}
	return true
}

func (r *run) handle(ctx context.Context, ev event) {
	c := r.cursors[ev.region]
	chain := r.m.regions[ev.region].chain
	id := chain[c.pos].Step.ID

	switch ev.kind {
	case evChecked:
		switch ev.check {
		case checkSuspended:
			r.record(ctx, id, api.Suspension(), 0)
			r.enter(ctx, ev.region, c.pos, api.StateSuspended)
		case checkMet:
			r.enter(ctx, ev.region, c.pos, api.StateExecuting)
		case checkNotMet:
			r.wc.Attempts[id]--
			r.enter(ctx, ev.region, c.pos, api.StateWaiting)
		default:
			r.log(ctx, api.LevelError, api.LogTypeStep, id, ev.message, nil)
			r.record(ctx, id, api.Failure(ev.message), 0)
			r.enter(ctx, ev.region, c.pos, api.StateFailed)
		}

	case evWaited:
		r.log(ctx, api.LevelInfo, api.LogTypeStep, id, fmt.Sprintf("Step %s finished waiting", id), nil)
		r.enter(ctx, ev.region, c.pos, api.StatePending)

	case evExecuted:
		r.record(ctx, id, ev.result, ev.duration)
		switch {
		case !ev.result.Succeeded():
			r.enter(ctx, ev.region, c.pos, api.StateFailed)
		case c.pos+1 < len(chain):
			r.enter(ctx, ev.region, c.pos+1, api.StatePending)
		default:
			r.enter(ctx, ev.region, c.pos, api.StateCompleted)
		}
	}
}

func (r *run) record(ctx context.Context, stepID string, res api.StepResult, d time.Duration) {
	r.wc.StepResults[stepID] = res
	if res.Succeeded() {
		r.log(ctx, api.LevelInfo, api.LogTypeStep, stepID, fmt.Sprintf("Step %s completed", stepID), nil)
	}
	r.m.observer.OnStepCompleted(ctx, r.info, stepID, res, d)
}

// enter moves region i to the given node and state and starts whatever
// invocation that state owns.
func (r *run) enter(ctx context.Context, i, pos int, state api.NodeState) {
	reg := r.m.regions[i]
	from := r.cursors[i].state
	if pos != r.cursors[i].pos {
		from = api.StateExecuting
	}
	r.cursors[i] = cursor{pos: pos, state: state}

	node := reg.chain[pos]
	r.m.observer.OnTransition(ctx, r.info, api.Transition{
		Region: reg.id,
		StepID: node.Step.ID,
		Path:   statePath(reg, pos, state),
		From:   from,
		To:     state,
	})

	switch state {
	case api.StatePending:
		wc := r.wc.Clone()
		pending := r.pendingSteps(i)
		go func() {
			outcome, msg := r.check(ctx, node, wc, pending)
			r.events <- event{region: i, kind: evChecked, check: outcome, message: msg}
		}()

	case api.StateWaiting:
		delay := r.m.delays[node.Step.ID]
		r.log(ctx, api.LevelInfo, api.LogTypeStep, node.Step.ID, fmt.Sprintf("Step %s waiting", node.Step.ID), map[string]any{"delay": delay.String()})
		go func() {
			t := time.NewTimer(delay)
			defer t.Stop()
			select {
			case <-t.C:
				r.events <- event{region: i, kind: evWaited}
			case <-ctx.Done():
			}
		}()

	case api.StateExecuting:
		wc := r.wc.Clone()
		r.m.observer.OnStepStart(ctx, r.info, node.Step.ID)
		go func() {
			start := time.Now()
			res := r.execute(ctx, node, wc)
			r.events <- event{region: i, kind: evExecuted, result: res, duration: time.Since(start)}
		}()
	}
}

// pendingSteps returns the ids that have no result yet but whose region
// may still reach them. Region self is blocked on the node being checked,
// so nothing left in its own chain can finish first.
func (r *run) pendingSteps(self int) map[string]bool {
	out := make(map[string]bool)
	for i, c := range r.cursors {
		if i == self || c.state.Terminal() {
			continue
		}
		for _, node := range r.m.regions[i].chain[c.pos:] {
			if _, done := r.wc.StepResults[node.Step.ID]; !done {
				out[node.Step.ID] = true
			}
		}
	}
	return out
}

func (r *run) log(ctx context.Context, level api.LogLevel, typ, stepID, msg string, data any) {
	if r.m.logger == nil {
		return
	}
	r.m.logger.Log(ctx, level, api.LogMessage{
		Type:            typ,
		Message:         msg,
		WorkflowName:    r.m.name,
		DestinationPath: "workflows/" + r.m.name,
		StepID:          stepID,
		Data:            data,
		RunID:           r.info.RunID,
	})
}
