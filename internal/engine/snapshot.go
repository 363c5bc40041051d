package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	json "github.com/goccy/go-json"

	"github.com/petrijr/stepflow/pkg/api"
)

// Snapshot is the persisted state of a run that has suspended steps.
type Snapshot struct {
	RunID       string                    `json:"runId"`
	Workflow    string                    `json:"workflow"`
	TriggerData any                       `json:"triggerData,omitempty"`
	StepResults map[string]api.StepResult `json:"stepResults"`
	Attempts    map[string]int            `json:"attempts"`
	Regions     map[string]RegionState    `json:"regions"`
	SavedAt     time.Time                 `json:"savedAt"`
}

// RegionState is where a region stopped.
type RegionState struct {
	Position int           `json:"position"`
	State    api.NodeState `json:"state"`
}

// snapshotRetries bounds how often a failed snapshot write is retried.
const snapshotRetries = 3

func (r *run) snapshot() Snapshot {
	regions := make(map[string]RegionState, len(r.cursors))
	for i, c := range r.cursors {
		regions[r.m.regions[i].id] = RegionState{Position: c.pos, State: c.state}
	}
	wc := r.wc.Clone()
	return Snapshot{
		RunID:       r.info.RunID,
		Workflow:    r.m.name,
		TriggerData: r.trigger,
		StepResults: wc.StepResults,
		Attempts:    wc.Attempts,
		Regions:     regions,
		SavedAt:     time.Now().UTC(),
	}
}

// persist writes the run's snapshot to the record store. Failures are
// logged; they never fail the run.
func (r *run) persist(ctx context.Context) {
	if r.m.store == nil {
		r.log(ctx, api.LevelWarn, api.LogTypeSnapshot, "", "No record store configured, snapshot not persisted", nil)
		return
	}

	raw, err := json.Marshal(r.snapshot())
	if err != nil {
		r.log(ctx, api.LevelError, api.LogTypeSnapshot, "", "Failed to encode snapshot", map[string]any{"error": err.Error()})
		return
	}

	records := []api.Record{{
		ExternalID: r.info.RunID,
		Data:       map[string]any{api.SnapshotField: string(raw)},
	}}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 50 * time.Millisecond
	b := backoff.WithContext(backoff.WithMaxRetries(eb, snapshotRetries), ctx)

	err = backoff.Retry(func() error {
		return r.m.store.SyncRecords(ctx, api.SnapshotEntity, api.SnapshotConnectionID, records)
	}, b)
	if err != nil {
		r.log(ctx, api.LevelError, api.LogTypeSnapshot, "", "Failed to persist snapshot", map[string]any{"error": err.Error()})
		return
	}
	r.log(ctx, api.LevelInfo, api.LogTypeSnapshot, "", "Snapshot persisted", nil)
}

// LoadSnapshot fetches and decodes the snapshot of runID.
func (m *Machine) LoadSnapshot(ctx context.Context, runID string) (*Snapshot, error) {
	if m.store == nil {
		return nil, fmt.Errorf("load snapshot %s: %w", runID, api.ErrNoRecordStore)
	}
	return LoadSnapshot(ctx, m.store, runID)
}

// LoadSnapshot reads the snapshot of runID from store.
func LoadSnapshot(ctx context.Context, store api.RecordStore, runID string) (*Snapshot, error) {
	records, err := store.GetRecords(ctx, api.SnapshotEntity, api.SnapshotConnectionID, []api.RecordFilter{{
		Field:    "externalId",
		Value:    runID,
		Operator: api.FilterEqual,
	}})
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", runID, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("load snapshot %s: %w", runID, api.ErrSnapshotNotFound)
	}

	raw, ok := records[0].Data[api.SnapshotField].(string)
	if !ok {
		return nil, fmt.Errorf("load snapshot %s: record has no %q string field", runID, api.SnapshotField)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", runID, err)
	}
	if snap.RunID == "" {
		snap.RunID = runID
	}
	return &snap, nil
}
