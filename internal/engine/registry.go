package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/petrijr/stepflow/pkg/api"
)

// Registry indexes compiled workflows by name so that a persisted run can
// be resumed knowing only its run id.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Machine
	store  api.RecordStore
}

// NewRegistry creates a Registry reading snapshots from store.
func NewRegistry(store api.RecordStore) *Registry {
	return &Registry{
		byName: make(map[string]*Machine),
		store:  store,
	}
}

// Register adds m under its workflow name. Names must be unique.
func (r *Registry) Register(m *Machine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[m.name]; exists {
		return fmt.Errorf("workflow %q already registered", m.name)
	}
	r.byName[m.name] = m
	return nil
}

// Get returns the machine registered as name.
func (r *Registry) Get(name string) (*Machine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("workflow %q not found", name)
	}
	return m, nil
}

// Names returns the registered workflow names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Resume loads the snapshot of runID, finds the workflow it belongs to and
// continues the run.
func (r *Registry) Resume(ctx context.Context, runID string, triggerData any) (*api.RunResult, error) {
	if r.store == nil {
		return nil, fmt.Errorf("resume %s: %w", runID, api.ErrNoRecordStore)
	}
	snap, err := LoadSnapshot(ctx, r.store, runID)
	if err != nil {
		return nil, err
	}
	m, err := r.Get(snap.Workflow)
	if err != nil {
		return nil, fmt.Errorf("resume %s: %w", runID, err)
	}
	return m.start(ctx, snap.RunID, triggerData, snap)
}

// Execute starts a new run of the named workflow.
func (r *Registry) Execute(ctx context.Context, name string, opts api.ExecuteOptions) (*api.RunResult, error) {
	m, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return m.Execute(ctx, opts)
}
