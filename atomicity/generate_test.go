package atomicity

import (
	"context"
	"testing"

	"github.com/forgewell/acengine/llm"
)

// stubProvider returns a fixed completion regardless of input, the
// same minimal fake the teacher's orchestration tests use in place of
// a real AI client (see NewMockAIClient in orchestration/synthesizer_test.go).
type stubProvider struct {
	content string
	err     error
}

func (s stubProvider) Complete(ctx context.Context, messages []llm.Message, config llm.Config) (llm.Completion, error) {
	if s.err != nil {
		return llm.Completion{}, s.err
	}
	return llm.Completion{Content: s.content, FinishReason: llm.FinishStop}, nil
}

func TestGenerate_ParsesChildrenAndDependencies(t *testing.T) {
	provider := stubProvider{content: `{
		"children": [
			{"content": "design the schema", "context": "data model"},
			{"content": "implement the endpoint", "context": "api"},
			{"content": "write integration tests", "context": "qa"}
		],
		"dependencies": [[], [0], [0, 1]],
		"reasoning": "schema must exist before the endpoint, tests exercise both"
	}`}

	decomp, err := Generate(context.Background(), "parent-1", "build a user signup flow", provider, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(decomp.Children) != 3 {
		t.Fatalf("expected 3 children, got %d", len(decomp.Children))
	}
	if decomp.Children[1].Content != "implement the endpoint" {
		t.Errorf("unexpected second child: %+v", decomp.Children[1])
	}
	if len(decomp.Dependencies[2]) != 2 {
		t.Errorf("expected third child to depend on both siblings, got %v", decomp.Dependencies[2])
	}
}

func TestGenerate_RejectsForwardDependency(t *testing.T) {
	provider := stubProvider{content: `{
		"children": [
			{"content": "a"},
			{"content": "b"}
		],
		"dependencies": [[1], []]
	}`}

	decomp, err := Generate(context.Background(), "parent-1", "do a thing", provider, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(decomp.Dependencies[0]) != 0 {
		t.Errorf("expected forward reference to be filtered out, got %v", decomp.Dependencies[0])
	}
}

func TestGenerate_RejectsTooFewChildren(t *testing.T) {
	provider := stubProvider{content: `{"children": [{"content": "only one"}]}`}

	_, err := Generate(context.Background(), "parent-1", "do a thing", provider, nil)
	if err == nil {
		t.Fatalf("expected an error for a single-child decomposition")
	}
}

func TestGenerate_NilProviderIsConfigError(t *testing.T) {
	_, err := Generate(context.Background(), "parent-1", "do a thing", nil, nil)
	if err == nil {
		t.Fatalf("expected an error for a nil provider")
	}
}

func TestCheck_FallsBackToHeuristicOnLLMFailure(t *testing.T) {
	provider := stubProvider{err: context.DeadlineExceeded}

	result, err := Check(context.Background(), "fix the off-by-one in the paginator", provider, DefaultCriteria(), true, nil)
	if err != nil {
		t.Fatalf("Check should never surface an LLM error: %v", err)
	}
	if result.Method != MethodHeuristic {
		t.Errorf("expected heuristic fallback, got method %v", result.Method)
	}
}

func TestCheck_LLMVerdictClampedByCriteria(t *testing.T) {
	provider := stubProvider{content: `{"is_atomic": true, "complexity_score": 0.9, "tool_count": 1, "estimated_duration_seconds": 60}`}
	criteria := DefaultCriteria()
	criteria.MaxComplexity = 0.5

	result, err := Check(context.Background(), "rewrite the entire billing pipeline", provider, criteria, true, nil)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if result.IsAtomic {
		t.Errorf("expected a high-complexity LLM verdict to be overridden by criteria")
	}
}
