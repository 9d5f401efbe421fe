package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/forgewell/acengine/core"
)

// OpenAICompatibleProvider implements Provider over any OpenAI-shaped
// chat completions endpoint (OpenAI itself, Anthropic's compatible
// endpoint, OpenRouter, self-hosted gateways), generalizing the
// teacher's ai/client.go OpenAIClient from a single fixed base URL to
// a configurable one, since this engine's Tier Catalog routes across
// multiple providers rather than hard-coding one.
type OpenAICompatibleProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     core.Logger
}

func NewOpenAICompatibleProvider(apiKey, baseURL string, logger core.Logger) *OpenAICompatibleProvider {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("engine/llm")
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAICompatibleProvider{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Model string `json:"model"`
}

func (p *OpenAICompatibleProvider) Complete(ctx context.Context, messages []Message, config Config) (Completion, error) {
	if p.apiKey == "" {
		return Completion{}, core.New("llm.Complete", core.KindProvider, core.ErrMissingConfig)
	}

	reqMessages := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		reqMessages = append(reqMessages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := json.Marshal(chatRequest{
		Model:       config.Model,
		Messages:    reqMessages,
		Temperature: config.Temperature,
		MaxTokens:   config.MaxTokens,
	})
	if err != nil {
		return Completion{}, core.New("llm.Complete", core.KindProvider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Completion{}, core.New("llm.Complete", core.KindProvider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Completion{}, core.New("llm.Complete", core.KindConnection, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Completion{}, core.New("llm.Complete", core.KindProvider, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return Completion{}, core.Newf("llm.Complete", core.KindConnection, "provider returned status %d: %s", resp.StatusCode, string(respBody))
	}
	if resp.StatusCode != http.StatusOK {
		return Completion{}, core.Newf("llm.Complete", core.KindProvider, "provider returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Completion{}, core.New("llm.Complete", core.KindProvider, err)
	}
	if len(parsed.Choices) == 0 {
		return Completion{}, core.Newf("llm.Complete", core.KindProvider, "empty choices from provider")
	}

	choice := parsed.Choices[0]
	return Completion{
		Content:      choice.Message.Content,
		FinishReason: FinishReason(choice.FinishReason),
		Usage:        Usage{PromptTokens: parsed.Usage.PromptTokens, CompletionTokens: parsed.Usage.CompletionTokens},
		Model:        parsed.Model,
	}, nil
}
