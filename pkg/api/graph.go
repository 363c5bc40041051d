package api

// StepNode places a Step at one position of the graph together with the
// edge configuration it was added with.
type StepNode struct {
	Step     *Step
	Bindings map[string]VariableRef
	Config   StepConfig
}

// StepGraph is the declared shape of a workflow: parallel root branches and
// the sequential continuation list of each root.
type StepGraph struct {
	Initial []*StepNode
	Next    map[string][]*StepNode
}

// Clone copies the graph's slices and map. Nodes themselves are shared
// since they are not mutated once created.
func (g StepGraph) Clone() StepGraph {
	out := StepGraph{
		Initial: append([]*StepNode(nil), g.Initial...),
		Next:    make(map[string][]*StepNode, len(g.Next)),
	}
	for id, nodes := range g.Next {
		out.Next[id] = append([]*StepNode(nil), nodes...)
	}
	return out
}

// Chain returns the sequential chain rooted at root: root followed by its
// continuation list.
func (g StepGraph) Chain(root *StepNode) []*StepNode {
	return append([]*StepNode{root}, g.Next[root.Step.ID]...)
}

// SnapshotRef selects a persisted run to resume.
type SnapshotRef struct {
	RunID string
}

// ExecuteOptions are the inputs of a single run.
type ExecuteOptions struct {
	TriggerData any

	// LoadSnapshot resumes the given run instead of starting a new one.
	// When TriggerData is nil the snapshot's trigger data is reused.
	LoadSnapshot *SnapshotRef
}
