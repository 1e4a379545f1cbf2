package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	tests := []struct {
		name         string
		wantEndpoint string
		wantModel    string
	}{
		{"gemini", "https://generativelanguage.googleapis.com/v1beta", "gemini-2.0-flash-exp"},
		{"groq", "https://api.groq.com/openai/v1", "llama-3.1-8b-instant"},
		{"openrouter", "https://openrouter.ai/api/v1", "meta-llama/llama-3.1-70b-instruct"},
		{"ollama", "http://127.0.0.1:11434", "llama3.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(tt.name)
			if cfg.Endpoint != tt.wantEndpoint {
				t.Errorf("endpoint = %q, want %q", cfg.Endpoint, tt.wantEndpoint)
			}
			if cfg.Model != tt.wantModel {
				t.Errorf("model = %q, want %q", cfg.Model, tt.wantModel)
			}
			if cfg.Timeout == 0 {
				t.Error("timeout not set")
			}
		})
	}
}

func TestBaseProviderDefaultsMerge(t *testing.T) {
	// Partial config keeps the explicit fields, fills the rest.
	b := newBaseProvider(&ProviderConfig{APIKey: "k", Model: "custom"}, "groq")

	assert.Equal(t, "groq", b.Name())
	assert.True(t, b.Available())
	assert.Equal(t, "custom", b.config.Model)
	assert.Equal(t, "https://api.groq.com/openai/v1", b.config.Endpoint)
	assert.Equal(t, "llama-3.3-70b-versatile", b.ReasoningModel())
}

func TestGroqChatNotConfigured(t *testing.T) {
	p := NewGroqProvider(&ProviderConfig{})
	_, err := p.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestGroqChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req groqChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Messages)
		// System prompt is prepended as the first message.
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "be brief", req.Messages[0].Content)

		resp := groqChatResponse{Model: "llama-3.1-8b-instant"}
		resp.Choices = append(resp.Choices, struct {
			Index        int         `json:"index"`
			Message      groqMessage `json:"message"`
			FinishReason string      `json:"finish_reason"`
		}{
			Message:      groqMessage{Role: "assistant", Content: "hello"},
			FinishReason: "stop",
		})
		resp.Usage.PromptTokens = 10
		resp.Usage.CompletionTokens = 5
		resp.Usage.TotalTokens = 15
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := NewGroqProvider(&ProviderConfig{
		APIKey:   "test-key",
		Endpoint: server.URL,
	})

	resp, err := p.Chat(context.Background(), &ChatRequest{
		SystemPrompt: "be brief",
		Messages:     []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, 15, resp.TokensUsed)
	assert.Equal(t, "stop", resp.FinishReason)
}

func TestGeminiChatRoleMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var req geminiGenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 2)
		assert.Equal(t, "user", req.Contents[0].Role)
		// Gemini has no "assistant" role.
		assert.Equal(t, "model", req.Contents[1].Role)
		require.NotNil(t, req.SystemInstruction)

		var resp geminiGenerateResponse
		resp.Candidates = append(resp.Candidates, struct {
			Content struct {
				Parts []geminiPart `json:"parts"`
				Role  string       `json:"role"`
			} `json:"content"`
			FinishReason  string `json:"finishReason"`
			SafetyRatings []struct {
				Category    string `json:"category"`
				Probability string `json:"probability"`
			} `json:"safetyRatings"`
		}{FinishReason: "STOP"})
		resp.Candidates[0].Content.Parts = []geminiPart{{Text: "pong"}}
		resp.UsageMetadata.PromptTokenCount = 4
		resp.UsageMetadata.CandidatesTokenCount = 1
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := NewGeminiProvider(&ProviderConfig{
		APIKey:   "test-key",
		Endpoint: server.URL,
	})

	resp, err := p.Chat(context.Background(), &ChatRequest{
		SystemPrompt: "sys",
		Messages: []Message{
			{Role: "user", Content: "ping"},
			{Role: "assistant", Content: "earlier"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "pong", resp.Content)
	assert.Equal(t, 5, resp.TokensUsed)
}

func TestOllamaChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)

		json.NewEncoder(w).Encode(ollamaChatResponse{
			Model:           "llama3.2",
			Message:         ollamaMessage{Role: "assistant", Content: "local answer"},
			Done:            true,
			PromptEvalCount: 7,
			EvalCount:       3,
		})
	}))
	defer server.Close()

	p := NewOllamaProvider(&ProviderConfig{Endpoint: server.URL})

	resp, err := p.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "local answer", resp.Content)
	assert.Equal(t, 10, resp.TokensUsed)
	assert.Equal(t, "stop", resp.FinishReason)
}

func TestProviderErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer server.Close()

	p := NewGroqProvider(&ProviderConfig{APIKey: "k", Endpoint: server.URL})
	_, err := p.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestNewProviderByName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"gemini", false},
		{"groq", false},
		{"openrouter", false},
		{"ollama", false},
		{"anthropic", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProviderByName(tt.name, &ProviderConfig{APIKey: "k"})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error for unknown provider")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Name() != tt.name {
				t.Errorf("name = %q, want %q", p.Name(), tt.name)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewGroqProvider(&ProviderConfig{APIKey: "k"}), 2, CapFast)
	reg.Register(NewGeminiProvider(&ProviderConfig{APIKey: "k"}), 1, CapReasoning, CapVision, CapGeneral)
	reg.Register(NewOpenRouterProvider(&ProviderConfig{}), 3, CapReasoning)

	// Sorted by rank; openrouter has no key so it is not configured.
	assert.Equal(t, []string{"gemini", "groq"}, reg.Configured())

	d, ok := reg.Describe("gemini")
	require.True(t, ok)
	assert.True(t, d.Capabilities[CapVision])
	assert.True(t, d.Healthy)

	reg.MarkUnhealthy("gemini")
	d, _ = reg.Describe("gemini")
	assert.False(t, d.Healthy)
	// Health is advisory: the provider stays retrievable.
	assert.NotNil(t, reg.Get("gemini"))

	reg.MarkHealthy("gemini")
	d, _ = reg.Describe("gemini")
	assert.True(t, d.Healthy)

	assert.Nil(t, reg.Get("missing"))
}
