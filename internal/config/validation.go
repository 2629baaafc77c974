package config

import (
	"fmt"
	"net/url"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. Provider validation
	if !slices.Contains([]string{ProviderOllama, ProviderGemini}, c.Provider) {
		return fmt.Errorf("%w: %q is not valid, must be one of: [%s %s]",
			ErrInvalidProvider, c.Provider, ProviderOllama, ProviderGemini)
	}

	if c.Provider == ProviderGemini && c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required when provider is %q\n"+
			"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
			ErrMissingAPIKey, ProviderGemini)
	}

	// 2. Model configuration validation
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	if c.Provider == ProviderOllama {
		u, err := url.Parse(c.OllamaHost)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %q must be an absolute URL like http://localhost:11434",
				ErrInvalidOllamaHost, c.OllamaHost)
		}
	}

	// 3. Server validation
	if c.Addr == "" {
		return fmt.Errorf("%w: addr cannot be empty", ErrInvalidAddr)
	}

	if c.RateRPS <= 0 {
		return fmt.Errorf("%w: rate_rps must be positive, got %g", ErrInvalidRateLimit, c.RateRPS)
	}
	if c.RateBurst < 1 {
		return fmt.Errorf("%w: rate_burst must be at least 1, got %d", ErrInvalidRateLimit, c.RateBurst)
	}

	// 4. Conversation validation
	if c.HistoryPairs < 1 || c.HistoryPairs > MaxHistoryPairs {
		return fmt.Errorf("%w: must be between 1 and %d, got %d",
			ErrInvalidHistoryPairs, MaxHistoryPairs, c.HistoryPairs)
	}

	if c.MaxToolRounds < 1 || c.MaxToolRounds > 20 {
		return fmt.Errorf("%w: must be between 1 and 20, got %d", ErrInvalidMaxToolRounds, c.MaxToolRounds)
	}

	if c.RequestTimeoutSec < 1 || c.RequestTimeoutSec > 600 {
		return fmt.Errorf("%w: request_timeout_sec must be between 1 and 600, got %d",
			ErrInvalidTimeout, c.RequestTimeoutSec)
	}

	if c.SessionTTLMin < 1 {
		return fmt.Errorf("%w: session_ttl_min must be at least 1, got %d", ErrInvalidTimeout, c.SessionTTLMin)
	}

	return nil
}
