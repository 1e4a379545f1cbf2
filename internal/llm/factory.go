package llm

import (
	"fmt"
	"os"
)

// NewProviderByName creates a provider by its identifier. A nil cfg uses
// the provider defaults. API keys missing from cfg fall back to the
// standard environment variables.
func NewProviderByName(name string, cfg *ProviderConfig) (Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig(name)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = APIKeyFromEnv(name)
	}

	switch name {
	case "gemini":
		return NewGeminiProvider(cfg), nil
	case "groq":
		return NewGroqProvider(cfg), nil
	case "openrouter":
		return NewOpenRouterProvider(cfg), nil
	case "ollama":
		return NewOllamaProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
}

// APIKeyFromEnv retrieves the API key from standard environment variables.
func APIKeyFromEnv(providerName string) string {
	envVars := map[string]string{
		"gemini":     "GEMINI_API_KEY",
		"groq":       "GROQ_API_KEY",
		"openrouter": "OPENROUTER_API_KEY",
	}
	if envVar, ok := envVars[providerName]; ok {
		return os.Getenv(envVar)
	}
	return ""
}
