// Package config provides configuration management for the Relay assistant.
//
// # Overview
//
// The config package uses Viper to load configuration from YAML files and
// environment variables. It provides a type-safe configuration structure with
// validation, default values, and automatic file creation.
//
// # Configuration File
//
// The configuration is stored at ~/.relay/config.yaml and is automatically
// created with sensible defaults on first use. The file structure mirrors
// the Go structs defined in this package.
//
// # Environment Variables
//
// All configuration values can be overridden using environment variables
// with the RELAY_ prefix. Nested fields are separated by underscores.
//
// Examples:
//   - RELAY_LLM_DEFAULT_PROVIDER=groq
//   - RELAY_SEARCH_BRAVE_API_KEY=BSA...
//   - RELAY_SERVER_PORT=9090
//   - RELAY_LOGGING_LEVEL=debug
//
// Provider API keys additionally fall back to their conventional
// environment variables (GEMINI_API_KEY, GROQ_API_KEY,
// OPENROUTER_API_KEY) so existing shell setups keep working.
//
// # Path Expansion
//
// The package automatically expands ~ to the user's home directory in
// all path configurations, making config files portable across systems.
//
// # Validation
//
// The Validate() method checks configuration for common errors:
//   - Provider existence and consistency
//   - Valid enum values (log level)
//   - Numeric range validation
//
// # Thread Safety
//
// Config instances are not thread-safe. If you need concurrent access,
// wrap the config in a sync.RWMutex or create separate instances.
package config
