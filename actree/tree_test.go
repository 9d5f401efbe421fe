package actree

import (
	"testing"

	"github.com/forgewell/acengine/atomicity"
)

func TestTree_SetRootIsPendingLeaf(t *testing.T) {
	tree := NewTree(nil)
	rootID := tree.SetRoot("build a thing")

	node, ok := tree.GetNode(rootID)
	if !ok {
		t.Fatalf("expected root node to exist")
	}
	if node.Status != StatusPending {
		t.Errorf("expected root to be pending, got %v", node.Status)
	}
	ready := tree.GetReadyNodes()
	if len(ready) != 1 || ready[0] != rootID {
		t.Errorf("expected root to be the only ready node, got %v", ready)
	}
}

func TestTree_DecomposeMarksParentDecomposedAndOrdersDependencies(t *testing.T) {
	tree := NewTree(nil)
	rootID := tree.SetRoot("build a thing")

	decomp := atomicity.Decomposition{
		ParentACID: rootID,
		Children: []atomicity.ChildAC{
			{Content: "design schema"},
			{Content: "implement api"},
			{Content: "write docs"},
		},
		Dependencies: [][]int{{}, {0}, {0, 1}},
	}

	childIDs, err := tree.Decompose(rootID, decomp)
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if len(childIDs) != 3 {
		t.Fatalf("expected 3 children, got %d", len(childIDs))
	}

	parent, _ := tree.GetNode(rootID)
	if parent.Status != StatusDecomposed {
		t.Errorf("expected parent to be decomposed, got %v", parent.Status)
	}

	ready := tree.GetReadyNodes()
	if len(ready) != 1 || ready[0] != childIDs[0] {
		t.Errorf("expected only the dependency-free child ready, got %v", ready)
	}

	tree.MarkCompleted(childIDs[0])
	ready = tree.GetReadyNodes()
	if len(ready) != 1 || ready[0] != childIDs[1] {
		t.Errorf("expected second child ready after first completes, got %v", ready)
	}
}

func TestTree_MarkFailedSkipsDependents(t *testing.T) {
	tree := NewTree(nil)
	rootID := tree.SetRoot("build a thing")
	decomp := atomicity.Decomposition{
		Children:     []atomicity.ChildAC{{Content: "a"}, {Content: "b"}},
		Dependencies: [][]int{{}, {0}},
	}
	childIDs, err := tree.Decompose(rootID, decomp)
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}

	tree.MarkFailed(childIDs[0])

	dependent, _ := tree.GetNode(childIDs[1])
	if dependent.Status != StatusSkipped {
		t.Errorf("expected dependent to be skipped after dependency failure, got %v", dependent.Status)
	}
	if !tree.IsComplete() {
		t.Errorf("expected tree to be complete once every node is terminal")
	}
}

func TestTree_GetStatistics(t *testing.T) {
	tree := NewTree(nil)
	rootID := tree.SetRoot("build a thing")
	decomp := atomicity.Decomposition{
		Children:     []atomicity.ChildAC{{Content: "a"}, {Content: "b"}},
		Dependencies: [][]int{{}, {}},
	}
	childIDs, err := tree.Decompose(rootID, decomp)
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	tree.MarkCompleted(childIDs[0])
	tree.MarkFailed(childIDs[1])

	stats := tree.GetStatistics()
	if stats.TotalNodes != 3 {
		t.Errorf("expected 3 total nodes, got %d", stats.TotalNodes)
	}
	if stats.LeafNodes != 2 {
		t.Errorf("expected 2 leaf nodes, got %d", stats.LeafNodes)
	}
	if stats.CompletedNodes != 1 || stats.FailedNodes != 1 {
		t.Errorf("unexpected completed/failed counts: %+v", stats)
	}
	if stats.MaxDepth != 1 {
		t.Errorf("expected max depth 1, got %d", stats.MaxDepth)
	}
}
