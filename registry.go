package stepflow

import (
	"context"
	"fmt"

	"github.com/petrijr/stepflow/internal/engine"
	"github.com/petrijr/stepflow/pkg/api"
)

// Registry holds committed workflows by name so runs can be started by
// name and suspended runs resumed by run id alone. It is safe for
// concurrent use.
type Registry struct {
	inner *engine.Registry
}

// NewRegistry creates a Registry that resumes runs from store.
func NewRegistry(store api.RecordStore) *Registry {
	return &Registry{inner: engine.NewRegistry(store)}
}

// Register adds a committed workflow. Names must be unique.
func (r *Registry) Register(w *Workflow) error {
	m, err := w.compiled()
	if err != nil {
		return fmt.Errorf("register %q: %w", w.Name(), err)
	}
	return r.inner.Register(m)
}

// MustRegister is like Register but panics on error.
// Useful for initialization in main().
func (r *Registry) MustRegister(w *Workflow) {
	if err := r.Register(w); err != nil {
		panic(err)
	}
}

// Names returns the registered workflow names, sorted.
func (r *Registry) Names() []string {
	return r.inner.Names()
}

// Execute starts a new run of the named workflow.
func (r *Registry) Execute(ctx context.Context, name string, opts api.ExecuteOptions) (*api.RunResult, error) {
	return r.inner.Execute(ctx, name, opts)
}

// Resume continues the suspended run runID with whichever registered
// workflow it belongs to.
func (r *Registry) Resume(ctx context.Context, runID string, triggerData any) (*api.RunResult, error) {
	return r.inner.Resume(ctx, runID, triggerData)
}
