package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// OpenRouterProvider implements the Provider interface for OpenRouter.
// OpenRouter fronts many upstream models through one OpenAI-compatible API,
// which makes it a useful overflow path when the primary providers are
// exhausted.
type OpenRouterProvider struct {
	baseProvider
}

// NewOpenRouterProvider creates a new OpenRouter provider.
func NewOpenRouterProvider(cfg *ProviderConfig) *OpenRouterProvider {
	return &OpenRouterProvider{
		baseProvider: newBaseProvider(cfg, "openrouter"),
	}
}

// Chat sends a chat request to OpenRouter.
func (p *OpenRouterProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if p.config.APIKey == "" {
		return nil, fmt.Errorf("openrouter: %w", ErrNotConfigured)
	}

	start := time.Now()

	orReq := openRouterChatRequest{
		Model: req.Model,
	}
	if orReq.Model == "" {
		orReq.Model = p.config.Model
	}

	if req.SystemPrompt != "" {
		orReq.Messages = append(orReq.Messages, openRouterMessage{
			Role:    "system",
			Content: req.SystemPrompt,
		})
	}
	for _, msg := range req.Messages {
		orReq.Messages = append(orReq.Messages, openRouterMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	orReq.MaxTokens = req.MaxTokens
	if orReq.MaxTokens == 0 {
		orReq.MaxTokens = p.config.MaxTokens
	}
	orReq.Temperature = req.Temperature
	if orReq.Temperature == 0 {
		orReq.Temperature = p.config.Temperature
	}

	body, err := json.Marshal(orReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.config.Endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	httpReq.Header.Set("X-Title", "Relay") // Optional: helps OpenRouter track usage

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := readLimitedBody(resp.Body, MaxErrorBodySize)
		return nil, fmt.Errorf("openrouter error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var orResp openRouterChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&orResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(orResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := orResp.Choices[0]
	return &ChatResponse{
		Content:          choice.Message.Content,
		Model:            orResp.Model,
		PromptTokens:     orResp.Usage.PromptTokens,
		CompletionTokens: orResp.Usage.CompletionTokens,
		TokensUsed:       orResp.Usage.TotalTokens,
		Duration:         time.Since(start),
		FinishReason:     choice.FinishReason,
	}, nil
}

// OpenRouter API types (OpenAI-compatible)
type openRouterChatRequest struct {
	Model       string              `json:"model"`
	Messages    []openRouterMessage `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float64             `json:"temperature,omitempty"`
	Stream      bool                `json:"stream,omitempty"`
}

type openRouterMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterChatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int               `json:"index"`
		Message      openRouterMessage `json:"message"`
		FinishReason string            `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
