// Package orchestrator implements the Orchestrator Runner (C12, spec
// §4.12): the end-to-end driver that ingests a Seed, builds an AC
// Tree, decomposes and executes ACs through the Agent Pool, folds
// progress into the Event Log and Checkpoint Store, and synthesizes a
// final response from the completed tree.
//
// Grounded on the teacher's orchestration/synthesizer.go (AISynthesizer/
// SimpleSynthesizer strategy split) and orchestration/executor.go (the
// overall plan-execute-synthesize driver shape), generalized from the
// teacher's agent-call synthesis to folding together this engine's AC
// Tree leaf results instead of a flat agent-response list.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/forgewell/acengine/core"
	"github.com/forgewell/acengine/llm"
)

// Strategy selects how LeafResults are folded into a final response.
type Strategy string

const (
	StrategyLLM      Strategy = "llm"
	StrategyTemplate Strategy = "template"
	StrategySimple   Strategy = "simple"
)

// LeafResult is one completed (or failed) leaf AC's outcome, the unit
// a Synthesizer combines.
type LeafResult struct {
	NodeID   string
	Content  string
	Success  bool
	Response string
	Error    string
}

// Synthesizer combines a tree's leaf results into the session's final
// response (spec §4.12).
type Synthesizer struct {
	provider llm.Provider
	strategy Strategy
	logger   core.Logger
}

func NewSynthesizer(provider llm.Provider, strategy Strategy, logger core.Logger) *Synthesizer {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("engine/orchestrator")
	}
	if strategy == "" {
		strategy = StrategySimple
	}
	return &Synthesizer{provider: provider, strategy: strategy, logger: logger}
}

func (s *Synthesizer) Synthesize(ctx context.Context, goal string, results []LeafResult) (string, error) {
	switch s.strategy {
	case StrategyLLM:
		if s.provider == nil {
			return s.synthesizeTemplate(goal, results), nil
		}
		text, err := s.synthesizeLLM(ctx, goal, results)
		if err != nil {
			s.logger.Warn("llm synthesis failed, falling back to template", map[string]interface{}{"error": err.Error()})
			return s.synthesizeTemplate(goal, results), nil
		}
		return text, nil
	case StrategyTemplate:
		return s.synthesizeTemplate(goal, results), nil
	default:
		return s.synthesizeSimple(results), nil
	}
}

func (s *Synthesizer) synthesizeLLM(ctx context.Context, goal string, results []LeafResult) (string, error) {
	prompt := s.buildPrompt(goal, results)
	completion, err := s.provider.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: "You synthesize the outcomes of multiple completed sub-tasks into one coherent, helpful final answer."},
		{Role: llm.RoleUser, Content: prompt},
	}, llm.Config{Temperature: 0.5, MaxTokens: 1500})
	if err != nil {
		return "", err
	}
	return completion.Content, nil
}

func (s *Synthesizer) buildPrompt(goal string, results []LeafResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n\nSub-task outcomes:\n\n", goal)
	for _, r := range results {
		if r.Success {
			fmt.Fprintf(&b, "Task: %s\n", r.Content)
			var parsed interface{}
			if err := json.Unmarshal([]byte(r.Response), &parsed); err == nil {
				formatted, _ := json.MarshalIndent(parsed, "", "  ")
				fmt.Fprintf(&b, "Result:\n%s\n\n", formatted)
			} else {
				fmt.Fprintf(&b, "Result: %s\n\n", r.Response)
			}
		} else {
			fmt.Fprintf(&b, "Task: %s (FAILED)\nError: %s\n\n", r.Content, r.Error)
		}
	}
	b.WriteString("Synthesize these into a single response that addresses the goal directly.")
	return b.String()
}

func (s *Synthesizer) synthesizeTemplate(goal string, results []LeafResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Response to: %s\n\n", goal)

	var succeeded, failed []LeafResult
	for _, r := range results {
		if r.Success {
			succeeded = append(succeeded, r)
		} else {
			failed = append(failed, r)
		}
	}

	if len(succeeded) > 0 {
		b.WriteString("Results:\n")
		for _, r := range succeeded {
			fmt.Fprintf(&b, "\n%s:\n  %s\n", r.Content, r.Response)
		}
	}
	if len(failed) > 0 {
		b.WriteString("\nNote: some sub-tasks failed:\n")
		for _, r := range failed {
			fmt.Fprintf(&b, "- %s: %s\n", r.Content, r.Error)
		}
	}
	fmt.Fprintf(&b, "\nCompleted %d of %d sub-tasks successfully.\n", len(succeeded), len(results))
	return b.String()
}

func (s *Synthesizer) synthesizeSimple(results []LeafResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if r.Success {
			parts = append(parts, fmt.Sprintf("%s: %s", r.Content, r.Response))
		}
	}
	if len(parts) == 0 {
		return "No successful results to synthesize"
	}
	return strings.Join(parts, "\n\n")
}
