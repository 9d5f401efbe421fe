package atomicity

import (
	"context"
	"fmt"

	"github.com/forgewell/acengine/core"
	"github.com/forgewell/acengine/llm"
)

const systemPrompt = `You judge whether a software-engineering task is atomic: small
enough to execute directly without further breakdown. Respond with a single JSON
object: {"is_atomic": bool, "complexity_score": number between 0 and 1,
"tool_count": integer, "estimated_duration_seconds": integer, "reasoning": string}.
No text outside the JSON object.`

// Check determines whether content describes an atomic unit of work
// (spec §4.10). When useLLM is true and provider is non-nil it asks
// the model first, falling back to the keyword heuristic on any LLM
// or parse failure — never returning an LLM or parse error to the
// caller, since an atomicity determination (possibly a conservative
// one) must always be available to keep decomposition moving. The only
// error it returns is criteria.Validate's.
func Check(ctx context.Context, content string, provider llm.Provider, criteria Criteria, useLLM bool, logger core.Logger) (Result, error) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if err := criteria.Validate(); err != nil {
		return Result{}, err
	}

	if !useLLM || provider == nil {
		return heuristicCheck(content, criteria), nil
	}

	result, err := llmCheck(ctx, content, provider, criteria)
	if err != nil {
		logger.Debug("atomicity.llm_check_failed_falling_back", map[string]interface{}{"error": err.Error()})
		return heuristicCheck(content, criteria), nil
	}
	return result, nil
}

func llmCheck(ctx context.Context, content string, provider llm.Provider, criteria Criteria) (Result, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: content},
	}
	completion, err := provider.Complete(ctx, messages, llm.Config{Temperature: 0, MaxTokens: 512})
	if err != nil {
		return Result{}, err
	}

	parsed, ok := extractJSON(completion.Content)
	if !ok {
		return Result{}, core.New("atomicity.llmCheck", core.KindDecomposition, fmt.Errorf("could not extract JSON from response")).WithSubKind(core.SubKindParseFailure)
	}

	result := Result{Method: MethodLLM}
	if v, ok := parsed["is_atomic"].(bool); ok {
		result.IsAtomic = v
	}
	if v, ok := parsed["complexity_score"].(float64); ok {
		result.ComplexityScore = v
	}
	if v, ok := parsed["tool_count"].(float64); ok {
		result.ToolCount = int(v)
	}
	if v, ok := parsed["estimated_duration_seconds"].(float64); ok {
		result.EstimatedDuration = int(v)
	}
	if v, ok := parsed["reasoning"].(string); ok {
		result.Reasoning = v
	}

	// An LLM verdict is authoritative only if it also respects the
	// caller's criteria; otherwise recompute is_atomic from the
	// criteria directly so a permissive model can't bypass the gate.
	result.IsAtomic = result.IsAtomic &&
		result.ComplexityScore <= criteria.MaxComplexity &&
		result.ToolCount <= criteria.MaxToolCount &&
		result.EstimatedDuration <= criteria.MaxDurationSeconds

	return result, nil
}
