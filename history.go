package stepflow

import (
	"context"
	"time"

	"github.com/petrijr/stepflow/pkg/api"
)

// HistoryObserver appends a RunEvent to an EventStore for every run and
// step milestone. Append errors are reported to onError when set and are
// otherwise dropped; history never affects a run.
type HistoryObserver struct {
	store   EventStore
	now     func() time.Time
	onError func(error)
}

var _ api.Observer = (*HistoryObserver)(nil)

// NewHistoryObserver records run history into store.
func NewHistoryObserver(store EventStore) *HistoryObserver {
	return &HistoryObserver{store: store, now: time.Now}
}

// OnError sets a callback for failed appends.
func (h *HistoryObserver) OnError(fn func(error)) *HistoryObserver {
	h.onError = fn
	return h
}

func (h *HistoryObserver) append(ctx context.Context, run api.RunInfo, typ api.EventType, stepID, detail string) {
	err := h.store.AppendEvent(ctx, api.RunEvent{
		RunID:        run.RunID,
		At:           h.now(),
		Type:         typ,
		WorkflowName: run.WorkflowName,
		StepID:       stepID,
		Detail:       detail,
	})
	if err != nil && h.onError != nil {
		h.onError(err)
	}
}

func (h *HistoryObserver) OnRunStart(ctx context.Context, run api.RunInfo) {
	typ := api.EventRunStarted
	if run.Resumed {
		typ = api.EventRunResumed
	}
	h.append(ctx, run, typ, "", "")
}

func (h *HistoryObserver) OnRunCompleted(ctx context.Context, run api.RunInfo, result *api.RunResult) {
	if result != nil && len(result.Suspended()) > 0 {
		h.append(ctx, run, api.EventRunSuspended, "", "")
		return
	}
	h.append(ctx, run, api.EventRunCompleted, "", "")
}

func (h *HistoryObserver) OnStepStart(ctx context.Context, run api.RunInfo, stepID string) {
	h.append(ctx, run, api.EventStepStarted, stepID, "")
}

func (h *HistoryObserver) OnStepCompleted(ctx context.Context, run api.RunInfo, stepID string, res api.StepResult, _ time.Duration) {
	switch res.Status {
	case api.StatusSuccess:
		h.append(ctx, run, api.EventStepCompleted, stepID, "")
	case api.StatusFailed:
		h.append(ctx, run, api.EventStepFailed, stepID, res.Error)
	case api.StatusSuspended:
		h.append(ctx, run, api.EventStepSuspended, stepID, "")
	}
}

func (h *HistoryObserver) OnTransition(ctx context.Context, run api.RunInfo, t api.Transition) {
	if t.To == api.StateWaiting {
		h.append(ctx, run, api.EventStepWaiting, t.StepID, t.Path)
	}
}
