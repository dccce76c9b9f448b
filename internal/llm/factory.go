package llm

import (
	"context"
	"errors"
	"fmt"
	"os"

	"replnerd/internal/config"
)

// ErrNoProvider is returned when neither config nor environment names a
// usable provider.
var ErrNoProvider = errors.New("no LLM provider configured; set llm.provider or one of: ANTHROPIC_API_KEY, OPENAI_API_KEY, GEMINI_API_KEY")

// DetectProvider resolves the active provider.
// Priority: config > env vars (ANTHROPIC > OPENAI > GEMINI/GOOGLE).
func DetectProvider(cfg *config.Config) (string, error) {
	if cfg != nil && cfg.LLM.Provider != "" {
		return cfg.LLM.Provider, nil
	}

	providers := []struct {
		envVar   string
		provider string
	}{
		{"ANTHROPIC_API_KEY", ProviderAnthropic},
		{"OPENAI_API_KEY", ProviderOpenAI},
		{"GEMINI_API_KEY", ProviderGemini},
		{"GOOGLE_API_KEY", ProviderGemini},
	}

	for _, p := range providers {
		if os.Getenv(p.envVar) != "" {
			return p.provider, nil
		}
	}

	return "", ErrNoProvider
}

// apiKeyFor returns the key for a provider, preferring the configured one.
func apiKeyFor(cfg *config.Config, provider string) string {
	if cfg != nil && cfg.LLM.APIKey != "" {
		return cfg.LLM.APIKey
	}
	switch provider {
	case ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case ProviderGemini:
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("GOOGLE_API_KEY")
	}
	return ""
}

// NewClientFromConfig creates a client for the detected provider. A
// non-empty model overrides the provider default.
func NewClientFromConfig(ctx context.Context, cfg *config.Config, model string) (Client, error) {
	provider, err := DetectProvider(cfg)
	if err != nil {
		return nil, err
	}

	apiKey := apiKeyFor(cfg, provider)
	if apiKey == "" {
		return nil, fmt.Errorf("no API key found for provider %s", provider)
	}

	switch provider {
	case ProviderOpenAI:
		oc := DefaultOpenAIConfig(apiKey)
		if model != "" {
			oc.Model = model
		}
		if cfg != nil {
			if cfg.LLM.BaseURL != "" {
				oc.BaseURL = cfg.LLM.BaseURL
			}
			oc.Timeout = cfg.GetLLMTimeout()
		}
		return NewOpenAIClientWithConfig(oc), nil

	case ProviderAnthropic:
		ac := DefaultAnthropicConfig(apiKey)
		if model != "" {
			ac.Model = model
		}
		if cfg != nil {
			ac.Timeout = cfg.GetLLMTimeout()
		}
		return NewAnthropicClientWithConfig(ac), nil

	case ProviderGemini:
		return NewGeminiClient(ctx, apiKey, model)

	default:
		return nil, fmt.Errorf("unknown provider: %s (valid: %v)", provider, config.ValidProviders)
	}
}
