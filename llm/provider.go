// Package llm provides the abstract LLM completion capability spec §6
// requires: a (messages, config) -> (content, finish_reason, usage)
// contract that every model-routing tier, the Atomicity Check, and the
// Orchestrator Runner call through, plus one concrete HTTP-backed
// provider (OpenAI-compatible chat completions, covering Anthropic's
// OpenAI-compatible endpoint and most self-hosted gateways).
//
// Grounded on the teacher's ai/client.go (OpenAIClient) and
// ai/provider.go (functional-options AIConfig), generalized from the
// teacher's single-provider client to the Provider interface this
// engine's Tier Catalog (routing.ModelCandidate) needs to route across.
package llm

import (
	"context"
)

// Role is a chat message's speaker.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one chat turn.
type Message struct {
	Role    Role
	Content string
}

// Config is a completion request's tunables (spec §6).
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// FinishReason is why the provider stopped generating.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishToolCalls     FinishReason = "tool_calls"
	FinishContentFilter FinishReason = "content_filter"
)

// Usage is token accounting for cost tracking (spec §4.9 metrics).
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Completion is a provider's response (spec §6).
type Completion struct {
	Content      string
	FinishReason FinishReason
	Usage        Usage
	Model        string
}

// Provider is the abstract LLM completion capability (spec §6).
// Implementations return a *core.Error on failure (KindConnection for
// transport failures and retriable HTTP statuses, KindProvider
// otherwise) so callers can apply core.IsRetriable uniformly.
type Provider interface {
	Complete(ctx context.Context, messages []Message, config Config) (Completion, error)
}

// WithAdaptiveTokenBudget retries a completion with a doubled
// MaxTokens when the first attempt's FinishReason is "length" (spec
// §6: adaptive token-budget doubling), up to maxDoublings times.
func WithAdaptiveTokenBudget(ctx context.Context, p Provider, messages []Message, config Config, maxDoublings int) (Completion, error) {
	completion, err := p.Complete(ctx, messages, config)
	if err != nil {
		return Completion{}, err
	}
	for i := 0; i < maxDoublings && completion.FinishReason == FinishLength; i++ {
		config.MaxTokens *= 2
		completion, err = p.Complete(ctx, messages, config)
		if err != nil {
			return Completion{}, err
		}
	}
	return completion, nil
}
