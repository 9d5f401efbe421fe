// Package actree implements the AC Tree & Scheduler (C11, spec §4.11):
// the hierarchy of Action/Capability units a session decomposes into,
// and the dependency-aware scheduler that picks which leaf ACs are
// ready to execute.
//
// Grounded structurally on the teacher's
// orchestration/workflow_dag.go (WorkflowDAG/DAGNode: dependency/
// dependent bookkeeping, cycle detection, execution levels,
// statistics, clone), generalized from a flat workflow DAG into a
// parent/child AC tree where only leaf nodes (nodes never
// decomposed) are schedulable, and where sibling dependencies come
// from atomicity.Decomposition rather than a user-declared workflow.
package actree

import (
	"sync"

	"github.com/forgewell/acengine/atomicity"
	"github.com/forgewell/acengine/core"
)

// Status is an AC node's place in its execution lifecycle.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusSkipped
	StatusDecomposed // has children; itself never executes
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	case StatusDecomposed:
		return "decomposed"
	default:
		return "pending"
	}
}

// Node is one AC in the tree.
type Node struct {
	ID           string
	ParentID     string
	Content      string
	Depth        int
	Status       Status
	Children     []string
	Dependencies []string // sibling AC ids this node must wait on
	Dependents   []string
}

// Tree holds the full AC hierarchy for one session.
type Tree struct {
	mu     sync.RWMutex
	nodes  map[string]*Node
	rootID string
	logger core.Logger
}

func NewTree(logger core.Logger) *Tree {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("engine/actree")
	}
	return &Tree{nodes: make(map[string]*Node), logger: logger}
}

// SetRoot creates the tree's single root AC and returns its id.
func (t *Tree) SetRoot(content string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := core.NewID()
	t.nodes[id] = &Node{ID: id, Content: content, Depth: 0, Status: StatusPending}
	t.rootID = id
	return id
}

func (t *Tree) RootID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rootID
}

// Decompose attaches decomp's children to parentID, translating
// sibling-index dependencies into the children's freshly-minted ids,
// and marks parentID StatusDecomposed (it is no longer schedulable;
// its leaf descendants are). Returns the new children's ids in order.
func (t *Tree) Decompose(parentID string, decomp atomicity.Decomposition) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	parent, ok := t.nodes[parentID]
	if !ok {
		return nil, core.New("actree.Decompose", core.KindTool, core.ErrNotFound).WithID(parentID)
	}
	if err := atomicity.CheckDepth(parent.Depth); err != nil {
		return nil, err
	}

	ids := make([]string, len(decomp.Children))
	for i, child := range decomp.Children {
		id := core.NewID()
		ids[i] = id
		t.nodes[id] = &Node{
			ID:       id,
			ParentID: parentID,
			Content:  child.Content,
			Depth:    parent.Depth + 1,
			Status:   StatusPending,
		}
	}

	deps := atomicity.FilterDependencies(decomp.Dependencies, t.logger)
	for i, depIndices := range deps {
		node := t.nodes[ids[i]]
		for _, depIdx := range depIndices {
			depID := ids[depIdx]
			node.Dependencies = append(node.Dependencies, depID)
			t.nodes[depID].Dependents = append(t.nodes[depID].Dependents, ids[i])
		}
	}

	parent.Status = StatusDecomposed
	parent.Children = ids
	return ids, nil
}

// GetReadyNodes returns leaf AC ids (no children) that are pending and
// whose sibling dependencies have all reached a terminal, non-failed
// state (completed or skipped).
func (t *Tree) GetReadyNodes() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var ready []string
	for id, node := range t.nodes {
		if node.Status != StatusPending || len(node.Children) > 0 {
			continue
		}
		if t.dependenciesSatisfied(node) {
			ready = append(ready, id)
		}
	}
	return ready
}

func (t *Tree) dependenciesSatisfied(node *Node) bool {
	for _, dep := range node.Dependencies {
		depNode, ok := t.nodes[dep]
		if !ok {
			continue
		}
		if depNode.Status != StatusCompleted && depNode.Status != StatusSkipped {
			return false
		}
	}
	return true
}

func (t *Tree) GetNode(id string) (*Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[id]
	return n, ok
}

func (t *Tree) MarkRunning(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n, ok := t.nodes[id]; ok {
		n.Status = StatusRunning
	}
}

func (t *Tree) MarkCompleted(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n, ok := t.nodes[id]; ok {
		n.Status = StatusCompleted
		t.propagateCompletion(id)
	}
}

// propagateCompletion marks an ancestor chain StatusCompleted once
// every one of its children is completed or skipped, so the root's
// completion can be observed without walking the whole tree. A failed
// child leaves its parent in StatusDecomposed.
func (t *Tree) propagateCompletion(id string) {
	node := t.nodes[id]
	if node.ParentID == "" {
		return
	}
	parent, ok := t.nodes[node.ParentID]
	if !ok || parent.Status != StatusDecomposed {
		return
	}
	for _, childID := range parent.Children {
		child := t.nodes[childID]
		if child.Status != StatusCompleted && child.Status != StatusSkipped {
			return
		}
	}
	parent.Status = StatusCompleted
	t.propagateCompletion(node.ParentID)
}

func (t *Tree) MarkFailed(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n, ok := t.nodes[id]; ok {
		n.Status = StatusFailed
		t.skipDependents(id)
	}
}

func (t *Tree) skipDependents(id string) {
	node := t.nodes[id]
	for _, depID := range node.Dependents {
		if dep := t.nodes[depID]; dep != nil && dep.Status == StatusPending {
			dep.Status = StatusSkipped
			t.skipDependents(depID)
		}
	}
}

// IsComplete reports whether every node has reached a terminal state.
func (t *Tree) IsComplete() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, n := range t.nodes {
		if n.Status == StatusPending || n.Status == StatusRunning {
			return false
		}
	}
	return true
}

// Statistics summarizes the tree's current shape and progress.
type Statistics struct {
	TotalNodes     int
	LeafNodes      int
	PendingNodes   int
	RunningNodes   int
	CompletedNodes int
	FailedNodes    int
	SkippedNodes   int
	MaxDepth       int
}

func (t *Tree) GetStatistics() Statistics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var stats Statistics
	stats.TotalNodes = len(t.nodes)
	for _, n := range t.nodes {
		if len(n.Children) == 0 {
			stats.LeafNodes++
		}
		if n.Depth > stats.MaxDepth {
			stats.MaxDepth = n.Depth
		}
		switch n.Status {
		case StatusPending:
			stats.PendingNodes++
		case StatusRunning:
			stats.RunningNodes++
		case StatusCompleted:
			stats.CompletedNodes++
		case StatusFailed:
			stats.FailedNodes++
		case StatusSkipped:
			stats.SkippedNodes++
		}
	}
	return stats
}
