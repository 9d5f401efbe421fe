package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/forgewell/acengine/agentpool"
	"github.com/forgewell/acengine/core"
	"github.com/forgewell/acengine/llm"
	"github.com/forgewell/acengine/routing"
	"github.com/forgewell/acengine/tools"
)

// maxToolRounds bounds how many tool-call/response round trips a
// single task may take before its last completion is returned as-is,
// preventing a misbehaving model from looping forever on tool calls.
const maxToolRounds = 4

// ProviderResolver maps a routing.ModelCandidate to the Provider that
// actually serves it — the Tier Catalog (C4) names providers/models by
// string, this engine's llm.Provider implementations are concrete
// per-provider clients, so something has to bridge the two.
type ProviderResolver func(candidate routing.ModelCandidate) (llm.Provider, error)

// ContextLookup resolves the Complexity Estimator input (routing.Context)
// for a task given the AC Tree node it was submitted on behalf of.
// agentpool.Task carries only a prompt string, not routing metadata, so
// the Runner supplies this to bridge C11's tree shape into C6's router.
type ContextLookup func(nodeID string) routing.Context

// Handler builds the agentpool.Handler this engine registers for every
// AC task: draw a tier (C6), resolve a model (C4), call the LLM,
// fan out to tools (C7/C8) on request, and record the outcome back
// into the Routing Controller's history.
type Handler struct {
	controller *routing.Controller
	catalog    *routing.Catalog
	resolve    ProviderResolver
	registry   *tools.GuardedRegistry
	contextFor ContextLookup
	logger     core.Logger
	telemetry  core.Telemetry
}

func NewHandler(controller *routing.Controller, catalog *routing.Catalog, resolve ProviderResolver, registry *tools.GuardedRegistry, contextFor ContextLookup, logger core.Logger) *Handler {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("engine/orchestrator")
	}
	if contextFor == nil {
		contextFor = func(string) routing.Context { return routing.Context{} }
	}
	return &Handler{controller: controller, catalog: catalog, resolve: resolve, registry: registry, contextFor: contextFor, logger: logger, telemetry: &core.NoOpTelemetry{}}
}

// SetTelemetry attaches a Telemetry provider; Handle wraps each task's
// execution in a span and reports duration/token histograms to it.
func (h *Handler) SetTelemetry(t core.Telemetry) {
	if t == nil {
		t = &core.NoOpTelemetry{}
	}
	h.telemetry = t
}

// Handle implements agentpool.Handler.
func (h *Handler) Handle(ctx context.Context, task *agentpool.Task, reporter agentpool.ProgressReporter) (*agentpool.TaskResult, error) {
	ctx, span := h.telemetry.StartSpan(ctx, "orchestrator.handle")
	span.SetAttribute("agent_type", task.AgentType)
	span.SetAttribute("node_id", task.NodeID)
	defer span.End()

	routingCtx := h.contextFor(task.NodeID)
	decision, err := h.controller.Route(task.AgentType, task.Prompt, routingCtx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttribute("tier", string(decision.Tier))
	candidate, err := h.catalog.GetModelForTier(decision.Tier)
	if err != nil {
		return nil, err
	}
	provider, err := h.resolve(candidate)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: h.systemPrompt()},
		{Role: llm.RoleUser, Content: task.Prompt},
	}
	config := llm.Config{Model: candidate.Model, Temperature: 0.2, MaxTokens: 4096}

	var invocations []agentpool.ToolInvocation
	var totalTokens int
	var finalText string

	for round := 0; round < maxToolRounds; round++ {
		completion, err := llm.WithAdaptiveTokenBudget(ctx, provider, messages, config, 2)
		if err != nil {
			h.controller.RecordResult(decision.Fingerprint, task.Prompt, decision.Tier, false)
			span.RecordError(err)
			return nil, err
		}
		totalTokens += completion.Usage.PromptTokens + completion.Usage.CompletionTokens

		call, ok := parseToolCall(completion.Content)
		if !ok || h.registry == nil {
			finalText = completion.Content
			break
		}

		reporter.Report(round+1, maxToolRounds, fmt.Sprintf("invoking tool %s", call.Tool))
		result, toolErr := h.registry.InvokeGuarded(ctx, call.Tool, call.Args)
		inv := agentpool.ToolInvocation{Tool: call.Tool, Args: call.Args}
		var resultText string
		if toolErr != nil {
			inv.Err = toolErr.Error()
			resultText = fmt.Sprintf("error: %s", toolErr.Error())
		} else {
			encoded, _ := json.Marshal(result)
			resultText = string(encoded)
			inv.Result = resultText
		}
		invocations = append(invocations, inv)

		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: completion.Content},
			llm.Message{Role: llm.RoleTool, Content: resultText},
		)
		finalText = completion.Content
	}

	h.controller.RecordResult(decision.Fingerprint, task.Prompt, decision.Tier, true)

	duration := time.Since(start)
	h.telemetry.RecordMetric("task_duration_ms", float64(duration.Milliseconds()), map[string]string{"tier": string(decision.Tier)})
	h.telemetry.RecordMetric("task_tokens_used", float64(totalTokens), map[string]string{"tier": string(decision.Tier)})

	return &agentpool.TaskResult{
		Text:       finalText,
		ToolCalls:  invocations,
		TokensUsed: totalTokens,
		TierUsed:   string(decision.Tier),
		DurationMS: duration.Milliseconds(),
	}, nil
}

func (h *Handler) systemPrompt() string {
	return "You execute one atomic unit of software-engineering work. " +
		"If you need a tool, respond with ONLY a JSON object " +
		`{"tool": "<name>", "args": {...}} and nothing else. ` +
		"Otherwise respond with your final answer as plain text."
}

type toolCall struct {
	Tool string
	Args map[string]interface{}
}

// parseToolCall recognizes a single-tool-call response: the entire
// trimmed completion is a JSON object with a "tool" string field.
// Anything else — prose, partial JSON, a JSON object without "tool" —
// is treated as a final answer, not a tool request.
func parseToolCall(content string) (toolCall, bool) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "{") {
		return toolCall{}, false
	}
	var raw struct {
		Tool string                 `json:"tool"`
		Args map[string]interface{} `json:"args"`
	}
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil || raw.Tool == "" {
		return toolCall{}, false
	}
	return toolCall{Tool: raw.Tool, Args: raw.Args}, true
}
