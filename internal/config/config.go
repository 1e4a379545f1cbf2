package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration for the Relay assistant.
// It is loaded from ~/.relay/config.yaml and can be overridden by
// environment variables.
type Config struct {
	LLM     LLMConfig     `mapstructure:"llm" yaml:"llm"`
	Search  SearchConfig  `mapstructure:"search" yaml:"search"`
	Router  RouterConfig  `mapstructure:"router" yaml:"router"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// LLMConfig contains configuration for Language Model providers.
type LLMConfig struct {
	// DefaultProvider specifies which provider to prefer when no
	// capability rule selects one (e.g., "gemini", "groq")
	DefaultProvider string `mapstructure:"default_provider" yaml:"default_provider"`
	// Providers maps provider names to their specific configuration
	Providers map[string]ProviderConfig `mapstructure:"providers" yaml:"providers"`
}

// ProviderConfig contains configuration for a specific LLM provider.
type ProviderConfig struct {
	// Endpoint is the API endpoint URL (primarily used for local providers like Ollama)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	// APIKey is the authentication key for the provider
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	// Model is the default chat model for this provider
	Model string `mapstructure:"model" yaml:"model,omitempty"`
	// ReasoningModel is the model used for reasoning-tier requests
	ReasoningModel string `mapstructure:"reasoning_model" yaml:"reasoning_model,omitempty"`
}

// SearchConfig contains configuration for the web search tiers.
type SearchConfig struct {
	// BraveAPIKey authenticates against the Brave Search API
	BraveAPIKey string `mapstructure:"brave_api_key" yaml:"brave_api_key,omitempty"`
	// TavilyAPIKey authenticates against the Tavily API
	TavilyAPIKey string `mapstructure:"tavily_api_key" yaml:"tavily_api_key,omitempty"`
	// QuotaFile is the path to the monthly usage ledger
	QuotaFile string `mapstructure:"quota_file" yaml:"quota_file"`
	// BraveMonthlyLimit caps Brave calls per calendar month
	BraveMonthlyLimit int `mapstructure:"brave_monthly_limit" yaml:"brave_monthly_limit"`
	// TavilyMonthlyLimit caps Tavily calls per calendar month
	TavilyMonthlyLimit int `mapstructure:"tavily_monthly_limit" yaml:"tavily_monthly_limit"`
}

// RouterConfig contains configuration for the inference router.
type RouterConfig struct {
	// FallbackOrder is the provider order tried after the selected
	// provider fails
	FallbackOrder []string `mapstructure:"fallback_order" yaml:"fallback_order"`
	// CallTimeoutSec bounds a single provider call
	CallTimeoutSec int `mapstructure:"call_timeout_sec" yaml:"call_timeout_sec"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// Port is the listen port
	Port int `mapstructure:"port" yaml:"port"`
	// ShutdownTimeoutSec is the graceful shutdown timeout
	ShutdownTimeoutSec int `mapstructure:"shutdown_timeout_sec" yaml:"shutdown_timeout_sec"`
	// RequestTimeoutSec bounds one pipeline run end to end
	RequestTimeoutSec int `mapstructure:"request_timeout_sec" yaml:"request_timeout_sec"`
}

// StorageConfig contains configuration for the conversation store.
type StorageConfig struct {
	// DataDir holds the SQLite conversation database
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
	// MemoryWindow is how many past exchanges are retrieved per request
	MemoryWindow int `mapstructure:"memory_window" yaml:"memory_window"`
}

// LoggingConfig contains configuration for application logging.
type LoggingConfig struct {
	// Level is the log level ("debug", "info", "warn", "error")
	Level string `mapstructure:"level" yaml:"level"`
	// File is the path to the log file; empty logs to stderr
	File string `mapstructure:"file" yaml:"file,omitempty"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	relayDir := filepath.Join(homeDir, ".relay")

	return &Config{
		LLM: LLMConfig{
			DefaultProvider: "gemini",
			Providers: map[string]ProviderConfig{
				"gemini": {
					Model:          "gemini-2.0-flash",
					ReasoningModel: "gemini-2.0-flash-thinking-exp",
				},
				"groq": {
					Model:          "llama-3.3-70b-versatile",
					ReasoningModel: "deepseek-r1-distill-llama-70b",
				},
				"openrouter": {
					Model: "meta-llama/llama-3.3-70b-instruct:free",
				},
				"ollama": {
					Endpoint: "http://127.0.0.1:11434",
					Model:    "llama3.2",
				},
			},
		},
		Search: SearchConfig{
			QuotaFile:          filepath.Join(relayDir, "quota_usage.json"),
			BraveMonthlyLimit:  2000,
			TavilyMonthlyLimit: 100,
		},
		Router: RouterConfig{
			FallbackOrder:  []string{"gemini", "groq", "openrouter", "ollama"},
			CallTimeoutSec: 45,
		},
		Server: ServerConfig{
			Port:               8080,
			ShutdownTimeoutSec: 5,
			RequestTimeoutSec:  120,
		},
		Storage: StorageConfig{
			DataDir:      relayDir,
			MemoryWindow: 5,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(relayDir, "logs", "relay.log"),
		},
	}
}

// Load reads configuration from the default location (~/.relay/config.yaml)
// and merges with environment variables. If no config file exists, it
// creates one with default values.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".relay", "config.yaml")
	return LoadFromPath(configPath)
}

// LoadFromPath reads configuration from a specific file path and merges
// with environment variables. If the file doesn't exist, it creates one
// with default values.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := writeConfigFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Enable environment variable overrides
	// Example: RELAY_SEARCH_BRAVE_API_KEY
	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Search.QuotaFile = expandPath(cfg.Search.QuotaFile)
	cfg.Storage.DataDir = expandPath(cfg.Storage.DataDir)
	cfg.Logging.File = expandPath(cfg.Logging.File)

	return &cfg, nil
}

// Save writes the current configuration to the default config file location.
func (c *Config) Save() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".relay", "config.yaml")
	return c.SaveToPath(configPath)
}

// SaveToPath writes the current configuration to a specific file path.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return writeConfigFile(path, c)
}

// EnsureDirectories creates all directories Relay needs at runtime.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDir,
		filepath.Dir(c.Search.QuotaFile),
	}
	if c.Logging.File != "" {
		dirs = append(dirs, filepath.Dir(c.Logging.File))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// Validate checks the configuration for common errors and inconsistencies.
func (c *Config) Validate() error {
	if c.LLM.DefaultProvider == "" {
		return fmt.Errorf("llm.default_provider cannot be empty")
	}

	if _, exists := c.LLM.Providers[c.LLM.DefaultProvider]; !exists {
		return fmt.Errorf("default provider '%s' not found in providers map", c.LLM.DefaultProvider)
	}

	for _, name := range c.Router.FallbackOrder {
		if _, exists := c.LLM.Providers[name]; !exists {
			return fmt.Errorf("fallback provider '%s' not found in providers map", name)
		}
	}

	if c.Search.BraveMonthlyLimit < 0 || c.Search.TavilyMonthlyLimit < 0 {
		return fmt.Errorf("search quota limits cannot be negative")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if c.Storage.MemoryWindow < 0 {
		return fmt.Errorf("storage.memory_window cannot be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level '%s', must be one of: debug, info, warn, error", c.Logging.Level)
	}

	return nil
}

// CallTimeout returns the router call timeout as a duration.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Router.CallTimeoutSec) * time.Second
}

// writeConfigFile writes a Config struct to a YAML file.
// Uses gopkg.in/yaml.v3 directly to ensure proper tag-based serialization.
func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// expandPath expands ~ to the user's home directory in a path string.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
