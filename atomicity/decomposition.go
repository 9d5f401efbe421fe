package atomicity

import (
	"strings"

	"github.com/forgewell/acengine/core"
)

const (
	MinChildren      = 2
	MaxChildren      = 5
	MaxDepth         = 5
	CompressionDepth = 3
)

// ChildAC is one piece of a decomposed AC, before it has been assigned
// an id and persisted.
type ChildAC struct {
	Content string
	Context string
}

// Decomposition is the outcome of breaking a parent AC into children
// (spec §4.10), grounded on decomposition.py's DecompositionResult.
// Dependencies holds, per child index, the indices of sibling children
// it depends on.
type Decomposition struct {
	ParentACID   string
	Children     []ChildAC
	ChildACIDs   []string
	Reasoning    string
	Dependencies [][]int
}

// ValidateChildren enforces MIN/MAX child count, rejects an empty
// child, and rejects a decomposition in which any child restates the
// parent, compared case- and whitespace-insensitively (a cyclic
// decomposition that would never terminate).
// Grounded on decomposition.py's _validate_children.
func ValidateChildren(parentContent string, children []ChildAC) error {
	if len(children) < MinChildren {
		return core.Newf("atomicity.ValidateChildren", core.KindDecomposition,
			"decomposition produced %d children, need at least %d", len(children), MinChildren).
			WithSubKind(core.SubKindInsufficientChildren)
	}
	if len(children) > MaxChildren {
		return core.Newf("atomicity.ValidateChildren", core.KindDecomposition,
			"decomposition produced %d children, at most %d allowed", len(children), MaxChildren).
			WithSubKind(core.SubKindTooManyChildren)
	}

	normalizedParent := normalizeForComparison(parentContent)
	for i, child := range children {
		if strings.TrimSpace(child.Content) == "" {
			return core.Newf("atomicity.ValidateChildren", core.KindDecomposition,
				"child %d has empty content", i).WithSubKind(core.SubKindEmptyChild)
		}
		if normalizeForComparison(child.Content) == normalizedParent {
			return core.New("atomicity.ValidateChildren", core.KindDecomposition, core.ErrCyclicDecomposition).
				WithSubKind(core.SubKindCyclic)
		}
	}
	return nil
}

func normalizeForComparison(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// FilterDependencies keeps only sibling-dependency indices that are
// non-negative and strictly less than the depending child's own index
// i, dropping forward references and self-references with a logged
// warning rather than an error (grounded on decomposition.py's
// dependency-tuple validation, which treats malformed dependency
// entries as non-fatal).
func FilterDependencies(raw [][]int, logger core.Logger) [][]int {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	filtered := make([][]int, len(raw))
	for i, deps := range raw {
		kept := make([]int, 0, len(deps))
		for _, d := range deps {
			if d >= 0 && d < i {
				kept = append(kept, d)
			} else {
				logger.Warn("atomicity.dropped_invalid_dependency", map[string]interface{}{"child_index": i, "dependency": d})
			}
		}
		filtered[i] = kept
	}
	return filtered
}

// CompressContext truncates insight text fed back into a child's
// context once decomposition has reached CompressionDepth (depth >= 3),
// grounded on decomposition.py's _compress_context (first 500 chars
// plus a truncation marker).
func CompressContext(insights string, depth int) string {
	if depth < CompressionDepth || len(insights) <= 500 {
		return insights
	}
	return insights[:500] + "... [compressed for depth]"
}

// CheckDepth rejects decomposition past MaxDepth (spec §4.10).
func CheckDepth(depth int) error {
	if depth >= MaxDepth {
		return core.New("atomicity.CheckDepth", core.KindDecomposition, core.ErrMaxDepthReached).
			WithSubKind(core.SubKindMaxDepth)
	}
	return nil
}
