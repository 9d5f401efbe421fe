package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/forgewell/acengine/llm"
)

// stubProvider returns a fixed completion or error regardless of
// input, the same minimal fake the teacher's orchestration tests use
// in place of a real AI client.
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

func TestSynthesizer_SimpleStrategyJoinsSuccessfulResults(t *testing.T) {
	s := NewSynthesizer(nil, StrategySimple, nil)
	results := []LeafResult{
		{Content: "design schema", Success: true, Response: "schema done"},
		{Content: "implement api", Success: false, Error: "timeout"},
	}

	out, err := s.Synthesize(context.Background(), "build a signup flow", results)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !strings.Contains(out, "schema done") {
		t.Errorf("expected the successful result's content, got %q", out)
	}
	if strings.Contains(out, "timeout") {
		t.Errorf("expected the simple strategy to omit failed results, got %q", out)
	}
}

func TestSynthesizer_SimpleStrategyWithNoSuccessesSaysSo(t *testing.T) {
	s := NewSynthesizer(nil, StrategySimple, nil)
	out, err := s.Synthesize(context.Background(), "goal", []LeafResult{{Content: "a", Success: false, Error: "boom"}})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !strings.Contains(out, "No successful results") {
		t.Errorf("expected an explicit empty-result message, got %q", out)
	}
}

func TestSynthesizer_TemplateStrategySeparatesSucceededAndFailed(t *testing.T) {
	s := NewSynthesizer(nil, StrategyTemplate, nil)
	results := []LeafResult{
		{Content: "design schema", Success: true, Response: "schema done"},
		{Content: "implement api", Success: false, Error: "timeout"},
	}

	out, err := s.Synthesize(context.Background(), "build a signup flow", results)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !strings.Contains(out, "Completed 1 of 2 sub-tasks successfully") {
		t.Errorf("expected a completion tally, got %q", out)
	}
	if !strings.Contains(out, "some sub-tasks failed") {
		t.Errorf("expected a failure note, got %q", out)
	}
}

func TestSynthesizer_LLMStrategyUsesProviderCompletion(t *testing.T) {
	s := NewSynthesizer(stubProvider{content: "a synthesized answer"}, StrategyLLM, nil)
	out, err := s.Synthesize(context.Background(), "goal", []LeafResult{{Content: "a", Success: true, Response: "done"}})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if out != "a synthesized answer" {
		t.Errorf("expected the provider's completion verbatim, got %q", out)
	}
}

func TestSynthesizer_LLMStrategyFallsBackToTemplateOnProviderError(t *testing.T) {
	s := NewSynthesizer(stubProvider{err: errors.New("provider down")}, StrategyLLM, nil)
	out, err := s.Synthesize(context.Background(), "goal", []LeafResult{{Content: "a", Success: true, Response: "done"}})
	if err != nil {
		t.Fatalf("Synthesize should swallow provider errors via fallback: %v", err)
	}
	if !strings.Contains(out, "Response to: goal") {
		t.Errorf("expected the template fallback's shape, got %q", out)
	}
}

func TestSynthesizer_LLMStrategyWithNilProviderFallsBackToTemplate(t *testing.T) {
	s := NewSynthesizer(nil, StrategyLLM, nil)
	out, err := s.Synthesize(context.Background(), "goal", []LeafResult{{Content: "a", Success: true, Response: "done"}})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !strings.Contains(out, "Response to: goal") {
		t.Errorf("expected the template shape with a nil provider, got %q", out)
	}
}

func TestNewSynthesizer_EmptyStrategyDefaultsToSimple(t *testing.T) {
	s := NewSynthesizer(nil, "", nil)
	if s.strategy != StrategySimple {
		t.Errorf("expected an empty strategy to default to simple, got %v", s.strategy)
	}
}
