package llm

import (
	"context"
	"testing"
)

// stubProvider returns a queue of completions, one per call, so tests
// can script a "length" finish followed by a "stop" finish.
type stubProvider struct {
	responses []Completion
	calls     int
	lastCfg   []Config
}

func (s *stubProvider) Complete(ctx context.Context, messages []Message, config Config) (Completion, error) {
	s.lastCfg = append(s.lastCfg, config)
	resp := s.responses[s.calls]
	s.calls++
	return resp, nil
}

func TestWithAdaptiveTokenBudget_ReturnsFirstCompletionWhenNotTruncated(t *testing.T) {
	p := &stubProvider{responses: []Completion{{Content: "done", FinishReason: FinishStop}}}

	completion, err := WithAdaptiveTokenBudget(context.Background(), p, nil, Config{MaxTokens: 100}, 2)
	if err != nil {
		t.Fatalf("WithAdaptiveTokenBudget: %v", err)
	}
	if p.calls != 1 {
		t.Errorf("expected exactly one call when the first completion isn't truncated, got %d", p.calls)
	}
	if completion.Content != "done" {
		t.Errorf("unexpected content: %q", completion.Content)
	}
}

func TestWithAdaptiveTokenBudget_DoublesTokensOnTruncation(t *testing.T) {
	p := &stubProvider{responses: []Completion{
		{Content: "partial", FinishReason: FinishLength},
		{Content: "complete", FinishReason: FinishStop},
	}}

	completion, err := WithAdaptiveTokenBudget(context.Background(), p, nil, Config{MaxTokens: 100}, 2)
	if err != nil {
		t.Fatalf("WithAdaptiveTokenBudget: %v", err)
	}
	if p.calls != 2 {
		t.Fatalf("expected a retry after truncation, got %d calls", p.calls)
	}
	if p.lastCfg[1].MaxTokens != 200 {
		t.Errorf("expected MaxTokens to double to 200, got %d", p.lastCfg[1].MaxTokens)
	}
	if completion.Content != "complete" {
		t.Errorf("unexpected final content: %q", completion.Content)
	}
}

func TestWithAdaptiveTokenBudget_StopsAfterMaxDoublings(t *testing.T) {
	p := &stubProvider{responses: []Completion{
		{Content: "1", FinishReason: FinishLength},
		{Content: "2", FinishReason: FinishLength},
		{Content: "3", FinishReason: FinishLength},
	}}

	completion, err := WithAdaptiveTokenBudget(context.Background(), p, nil, Config{MaxTokens: 50}, 2)
	if err != nil {
		t.Fatalf("WithAdaptiveTokenBudget: %v", err)
	}
	if p.calls != 3 {
		t.Errorf("expected the initial call plus 2 doublings (3 total), got %d", p.calls)
	}
	if completion.FinishReason != FinishLength {
		t.Errorf("expected the last (still-truncated) completion to be returned as-is")
	}
}

func TestWithAdaptiveTokenBudget_PropagatesProviderError(t *testing.T) {
	p := &erroringProvider{err: context.DeadlineExceeded}
	_, err := WithAdaptiveTokenBudget(context.Background(), p, nil, Config{}, 2)
	if err == nil {
		t.Fatalf("expected the provider's error to propagate")
	}
}

type erroringProvider struct{ err error }

func (e *erroringProvider) Complete(ctx context.Context, messages []Message, config Config) (Completion, error) {
	return Completion{}, e.err
}
