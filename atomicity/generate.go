package atomicity

import (
	"context"
	"fmt"

	"github.com/forgewell/acengine/core"
	"github.com/forgewell/acengine/llm"
)

const decompositionSystemPrompt = `You break a software-engineering task into smaller sub-tasks. Respond
with a single JSON object: {"children": [{"content": string, "context": string}, ...],
"dependencies": [[int, ...], ...], "reasoning": string}. "dependencies" has one entry per
child, listing the (0-based) indices of sibling children it depends on; use an empty
array for a child with no dependencies. Produce between 2 and 5 children. No text
outside the JSON object.`

// Generate asks provider to decompose content into children, validates
// the result against ValidateChildren, and filters out malformed
// sibling-dependency indices. Grounded on
// _examples/original_source/src/ouroboros/execution/decomposition.py's
// decompose() (LLM prompt, JSON extraction, then the same validation
// pass Check applies to atomicity verdicts).
func Generate(ctx context.Context, parentACID, content string, provider llm.Provider, logger core.Logger) (Decomposition, error) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if provider == nil {
		return Decomposition{}, core.New("atomicity.Generate", core.KindConfig, core.ErrMissingConfig)
	}

	completion, err := provider.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: decompositionSystemPrompt},
		{Role: llm.RoleUser, Content: content},
	}, llm.Config{Temperature: 0.3, MaxTokens: 2048})
	if err != nil {
		return Decomposition{}, err
	}

	parsed, ok := extractJSON(completion.Content)
	if !ok {
		return Decomposition{}, core.New("atomicity.Generate", core.KindDecomposition, fmt.Errorf("could not extract JSON from response")).
			WithSubKind(core.SubKindParseFailure)
	}

	children, dependencies, reasoning, err := parseDecompositionPayload(parsed)
	if err != nil {
		return Decomposition{}, err
	}
	if err := ValidateChildren(content, children); err != nil {
		return Decomposition{}, err
	}

	return Decomposition{
		ParentACID:   parentACID,
		Children:     children,
		Reasoning:    reasoning,
		Dependencies: FilterDependencies(dependencies, logger),
	}, nil
}

func parseDecompositionPayload(parsed map[string]interface{}) ([]ChildAC, [][]int, string, error) {
	rawChildren, ok := parsed["children"].([]interface{})
	if !ok {
		return nil, nil, "", core.New("atomicity.Generate", core.KindDecomposition, fmt.Errorf("response missing \"children\" array")).
			WithSubKind(core.SubKindProcessingError)
	}

	children := make([]ChildAC, 0, len(rawChildren))
	for _, rc := range rawChildren {
		m, ok := rc.(map[string]interface{})
		if !ok {
			continue
		}
		child := ChildAC{}
		if v, ok := m["content"].(string); ok {
			child.Content = v
		}
		if v, ok := m["context"].(string); ok {
			child.Context = v
		}
		children = append(children, child)
	}

	dependencies := make([][]int, len(children))
	if rawDeps, ok := parsed["dependencies"].([]interface{}); ok {
		for i := range children {
			if i >= len(rawDeps) {
				break
			}
			rawList, ok := rawDeps[i].([]interface{})
			if !ok {
				continue
			}
			deps := make([]int, 0, len(rawList))
			for _, d := range rawList {
				if f, ok := d.(float64); ok {
					deps = append(deps, int(f))
				}
			}
			dependencies[i] = deps
		}
	}

	reasoning, _ := parsed["reasoning"].(string)
	return children, dependencies, reasoning, nil
}
