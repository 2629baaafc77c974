// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.phonewise/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: provider selection (Ollama default, Gemini via its OpenAI-compatible
//     endpoint), model name, request timeout
//   - Server: listen address, CORS origins, rate limiting, proxy trust
//   - Session: history depth, idle TTL, tool-round bound
//   - Log: level, format, optional rotating file
//
// Security: the Gemini API key is never logged; config directory uses 0750 permissions.
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidAddr indicates the listen address is invalid.
	ErrInvalidAddr = errors.New("invalid listen address")

	// ErrInvalidHistoryPairs indicates the history depth is out of range.
	ErrInvalidHistoryPairs = errors.New("invalid history pairs")

	// ErrInvalidMaxToolRounds indicates the tool-round bound is out of range.
	ErrInvalidMaxToolRounds = errors.New("invalid max tool rounds")

	// ErrInvalidTimeout indicates a duration value is out of range.
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrInvalidRateLimit indicates the rate-limit tuning is out of range.
	ErrInvalidRateLimit = errors.New("invalid rate limit")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

// GeminiBaseURL is Gemini's OpenAI-compatible endpoint.
const GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

// History depth bounds, in user/assistant pairs.
const (
	DefaultHistoryPairs = 10
	MaxHistoryPairs     = 100
)

// Config stores application configuration.
// SECURITY: the API key field is masked in MarshalJSON().
type Config struct {
	// AI provider and model configuration
	Provider     string `mapstructure:"provider" json:"provider"`         // "ollama" (default) or "gemini"
	ModelName    string `mapstructure:"model_name" json:"model_name"`     // e.g. "qwen2.5:7b", "gemini-2.0-flash"
	OllamaHost   string `mapstructure:"ollama_host" json:"ollama_host"`   // only used when provider is "ollama"
	GeminiAPIKey string `mapstructure:"gemini_api_key" json:"gemini_api_key"` // SENSITIVE: masked in MarshalJSON

	// Server configuration
	Addr        string   `mapstructure:"addr" json:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // Trust X-Real-IP/X-Forwarded-For headers (set true behind reverse proxy)
	RateRPS     float64  `mapstructure:"rate_rps" json:"rate_rps"`
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`

	// Conversation configuration
	HistoryPairs      int `mapstructure:"history_pairs" json:"history_pairs"`
	MaxToolRounds     int `mapstructure:"max_tool_rounds" json:"max_tool_rounds"`
	RequestTimeoutSec int `mapstructure:"request_timeout_sec" json:"request_timeout_sec"`
	SessionTTLMin     int `mapstructure:"session_ttl_min" json:"session_ttl_min"`

	// Logging configuration
	LogLevel  string `mapstructure:"log_level" json:"log_level"`   // debug, info, warn, error
	LogFormat string `mapstructure:"log_format" json:"log_format"` // text or json
	LogFile   string `mapstructure:"log_file" json:"log_file"`     // empty disables file logging

	// Telemetry configuration
	TelemetryEnabled bool   `mapstructure:"telemetry_enabled" json:"telemetry_enabled"`
	TelemetryDir     string `mapstructure:"telemetry_dir" json:"telemetry_dir"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	// Configuration directory: ~/.phonewise/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".phonewise")

	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".") // Also support current directory

	setDefaults(v)
	bindEnvVariables(v)

	// Read configuration file (if exists)
	if err := v.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// AI defaults
	v.SetDefault("provider", ProviderOllama)
	v.SetDefault("model_name", "qwen2.5:7b")
	v.SetDefault("ollama_host", "http://localhost:11434")

	// Server defaults
	v.SetDefault("addr", ":8000")
	v.SetDefault("cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_rps", 5.0)
	v.SetDefault("rate_burst", 10)

	// Conversation defaults
	v.SetDefault("history_pairs", DefaultHistoryPairs)
	v.SetDefault("max_tool_rounds", 5)
	v.SetDefault("request_timeout_sec", 120)
	v.SetDefault("session_ttl_min", 60)

	// Logging defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("log_file", "")

	// Telemetry defaults
	v.SetDefault("telemetry_enabled", false)
	v.SetDefault("telemetry_dir", filepath.Join(os.TempDir(), "phonewise-telemetry"))
}

// bindEnvVariables binds environment variable overrides explicitly.
func bindEnvVariables(v *viper.Viper) {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail)
	// If this panics, it's a BUG in our code, not a runtime error
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "PHONEWISE_PROVIDER")
	mustBind("model_name", "PHONEWISE_MODEL")
	mustBind("ollama_host", "OLLAMA_BASE_URL")
	mustBind("gemini_api_key", "GEMINI_API_KEY")

	mustBind("addr", "PHONEWISE_ADDR")
	mustBind("cors_origins", "PHONEWISE_CORS_ORIGINS")
	mustBind("trust_proxy", "PHONEWISE_TRUST_PROXY")

	mustBind("log_level", "PHONEWISE_LOG_LEVEL")
	mustBind("log_file", "PHONEWISE_LOG_FILE")
}

// BaseURL returns the OpenAI-compatible endpoint for the selected provider.
func (c *Config) BaseURL() string {
	if c.Provider == ProviderGemini {
		return GeminiBaseURL
	}
	return c.OllamaHost + "/v1"
}

// APIKey returns the credential to send to the selected provider. Ollama
// accepts any non-empty token.
func (c *Config) APIKey() string {
	if c.Provider == ProviderGemini {
		return c.GeminiAPIKey
	}
	return "ollama"
}

// RequestTimeout returns the per-request ceiling as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// SessionTTL returns the idle-session lifetime as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMin) * time.Minute
}

// maskedValue is the placeholder for masked sensitive data.
// Using ████████ (full-width blocks U+2588) to avoid substring matching.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Shows first 2 and last 2 characters, masks the rest.
// SECURITY: For secrets <=8 chars, fully masks to prevent substring attacks.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.GeminiAPIKey = maskSecret(a.GeminiAPIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
