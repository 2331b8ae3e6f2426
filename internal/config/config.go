// Package config loads and validates the optional per-project configuration
// file at .codedocent/config.json. Flags override config values, config
// values override defaults.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// CurrentVersion is the config schema version this build understands.
const CurrentVersion = 1

// Config is the complete codedocent configuration.
type Config struct {
	Version  int `json:"version" mapstructure:"version"`
	Workers  int `json:"workers" mapstructure:"workers"`
	MinLines int `json:"minLines" mapstructure:"minLines"`

	AI      AIConfig      `json:"ai" mapstructure:"ai"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// AIConfig selects and configures the summarization backend.
type AIConfig struct {
	// Backend is "local" (Ollama daemon) or "cloud" (OpenAI-compatible API).
	Backend string `json:"backend" mapstructure:"backend"`

	// Model is the model name passed to the backend.
	Model string `json:"model" mapstructure:"model"`

	// Endpoint overrides the backend's base URL. For local this is the
	// Ollama address; for cloud providers it defaults per provider.
	Endpoint string `json:"endpoint" mapstructure:"endpoint"`

	// Provider names the cloud provider: openai, openrouter, groq, custom.
	Provider string `json:"provider" mapstructure:"provider"`

	// APIKeyEnv is the environment variable holding the cloud API key.
	// Empty means the provider's default variable.
	APIKeyEnv string `json:"apiKeyEnv" mapstructure:"apiKeyEnv"`

	// TimeoutSeconds bounds a single model call.
	TimeoutSeconds int `json:"timeoutSeconds" mapstructure:"timeoutSeconds"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Version:  CurrentVersion,
		Workers:  1,
		MinLines: 5,
		AI: AIConfig{
			Backend:        "local",
			Model:          "qwen3:14b",
			TimeoutSeconds: 120,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads .codedocent/config.json under projectRoot. A missing file
// yields the defaults; a present file is merged over them.
func Load(projectRoot string) (*Config, error) {
	v := viper.New()

	def := DefaultConfig()
	v.SetDefault("version", def.Version)
	v.SetDefault("workers", def.Workers)
	v.SetDefault("minLines", def.MinLines)
	v.SetDefault("ai.backend", def.AI.Backend)
	v.SetDefault("ai.model", def.AI.Model)
	v.SetDefault("ai.timeoutSeconds", def.AI.TimeoutSeconds)
	v.SetDefault("logging.level", def.Logging.Level)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(projectRoot, ".codedocent"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return def, nil
		}
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the configuration to .codedocent/config.json under
// projectRoot, creating the directory if needed.
func (c *Config) Save(projectRoot string) error {
	dir := filepath.Join(projectRoot, ".codedocent")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0o644)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.Workers < 1 {
		return &ConfigError{Field: "workers", Message: "must be at least 1"}
	}
	if c.MinLines < 1 {
		return &ConfigError{Field: "minLines", Message: "must be at least 1"}
	}
	switch c.AI.Backend {
	case "local", "cloud":
	default:
		return &ConfigError{Field: "ai.backend", Message: "must be \"local\" or \"cloud\""}
	}
	if c.AI.TimeoutSeconds <= 0 {
		return &ConfigError{Field: "ai.timeoutSeconds", Message: "must be positive"}
	}
	return nil
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
