// Package llm provides Language Model provider adapters for Relay.
// Supports Gemini, Groq, OpenRouter, and Ollama (local) behind a uniform
// chat-completion interface.
package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

// Security limits to prevent unbounded memory usage
const (
	// MaxErrorBodySize limits how much error response body we read (1MB)
	MaxErrorBodySize = 1 * 1024 * 1024

	// MaxResponseSize limits total response size (50MB)
	MaxResponseSize = 50 * 1024 * 1024
)

// ErrNotConfigured is returned when a provider has no credentials.
// The router treats it like any other provider failure.
var ErrNotConfigured = errors.New("provider not configured")

// readLimitedBody reads up to maxBytes from r, returning the bytes read.
// This is used for error responses to prevent unbounded memory allocation.
func readLimitedBody(r io.Reader, maxBytes int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxBytes))
}

// Provider defines the interface for LLM providers.
type Provider interface {
	// Chat sends a message and returns the response.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Name returns the provider identifier.
	Name() string

	// Available returns true if the provider is configured.
	Available() bool
}

// ChatRequest represents a chat completion request.
type ChatRequest struct {
	// Model to use (provider-specific). Empty means the provider default.
	Model string `json:"model"`

	// SystemPrompt sets the AI's behavior.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Messages in the conversation.
	Messages []Message `json:"messages"`

	// MaxTokens limits response length.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0-1.0).
	Temperature float64 `json:"temperature,omitempty"`
}

// Message represents a conversation message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// ChatResponse contains the LLM's response.
type ChatResponse struct {
	Content          string        `json:"content"`
	Model            string        `json:"model"`
	TokensUsed       int           `json:"tokens_used,omitempty"`
	PromptTokens     int           `json:"prompt_tokens,omitempty"`
	CompletionTokens int           `json:"completion_tokens,omitempty"`
	Duration         time.Duration `json:"duration"`
	FinishReason     string        `json:"finish_reason,omitempty"`
}

// ProviderConfig contains configuration for an LLM provider.
type ProviderConfig struct {
	// Name identifies the provider (gemini, groq, openrouter, ollama).
	Name string

	// Endpoint is the API base URL.
	Endpoint string

	// APIKey for authentication.
	APIKey string

	// Model is the default model to use.
	Model string

	// ReasoningModel is the larger model used for reasoning-tier requests.
	ReasoningModel string

	// MaxTokens default for responses.
	MaxTokens int

	// Temperature default.
	Temperature float64

	// Timeout for API calls.
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults for a provider.
func DefaultConfig(name string) *ProviderConfig {
	switch name {
	case "gemini":
		return &ProviderConfig{
			Name:           "gemini",
			Endpoint:       "https://generativelanguage.googleapis.com/v1beta",
			Model:          "gemini-2.0-flash-exp",
			ReasoningModel: "gemini-2.0-flash-exp",
			MaxTokens:      4096,
			Temperature:    0.7,
			Timeout:        60 * time.Second,
		}
	case "groq":
		// Groq provides ultra-fast inference, ideal for the fast tier.
		return &ProviderConfig{
			Name:           "groq",
			Endpoint:       "https://api.groq.com/openai/v1",
			Model:          "llama-3.1-8b-instant",
			ReasoningModel: "llama-3.3-70b-versatile",
			MaxTokens:      2048,
			Temperature:    0.7,
			Timeout:        30 * time.Second,
		}
	case "openrouter":
		return &ProviderConfig{
			Name:           "openrouter",
			Endpoint:       "https://openrouter.ai/api/v1",
			Model:          "meta-llama/llama-3.1-70b-instruct",
			ReasoningModel: "deepseek/deepseek-r1",
			MaxTokens:      4096,
			Temperature:    0.7,
			Timeout:        90 * time.Second,
		}
	case "ollama":
		return &ProviderConfig{
			Name:           "ollama",
			Endpoint:       "http://127.0.0.1:11434",
			Model:          "llama3.2",
			ReasoningModel: "deepseek-r1:7b",
			MaxTokens:      4096,
			Temperature:    0.7,
			Timeout:        2 * time.Minute,
		}
	default:
		return &ProviderConfig{
			Name:        name,
			MaxTokens:   4096,
			Temperature: 0.7,
			Timeout:     60 * time.Second,
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// BASE PROVIDER (DRY helper for HTTP-based providers)
// ═══════════════════════════════════════════════════════════════════════════════

// baseProvider provides common functionality for HTTP-based LLM providers.
type baseProvider struct {
	config *ProviderConfig
	client *http.Client
}

// newBaseProvider creates a new base provider with defaults applied.
func newBaseProvider(cfg *ProviderConfig, providerName string) baseProvider {
	if cfg == nil {
		cfg = DefaultConfig(providerName)
	}

	defaults := DefaultConfig(providerName)
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaults.Endpoint
	}
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.ReasoningModel == "" {
		cfg.ReasoningModel = defaults.ReasoningModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaults.Temperature
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	cfg.Name = providerName

	return baseProvider{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the provider identifier.
func (b *baseProvider) Name() string {
	return b.config.Name
}

// Available checks if the API key is configured.
func (b *baseProvider) Available() bool {
	return b.config.APIKey != ""
}

// ReasoningModel returns the provider's reasoning-tier model.
func (b *baseProvider) ReasoningModel() string {
	return b.config.ReasoningModel
}
