package llm

import (
	"context"
	"errors"
	"testing"

	"replnerd/internal/config"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
}

func TestDetectProvider_ConfigWins(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "anthropic-key")

	cfg := config.DefaultConfig()
	cfg.LLM.Provider = "openai"

	provider, err := DetectProvider(cfg)
	if err != nil {
		t.Fatalf("DetectProvider failed: %v", err)
	}
	if provider != ProviderOpenAI {
		t.Errorf("provider = %s, want openai", provider)
	}
}

func TestDetectProvider_EnvPriority(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("OPENAI_API_KEY", "openai-key")
	t.Setenv("GEMINI_API_KEY", "gemini-key")

	provider, err := DetectProvider(nil)
	if err != nil {
		t.Fatalf("DetectProvider failed: %v", err)
	}
	if provider != ProviderOpenAI {
		t.Errorf("provider = %s, want openai", provider)
	}

	t.Setenv("ANTHROPIC_API_KEY", "anthropic-key")
	provider, err = DetectProvider(nil)
	if err != nil {
		t.Fatalf("DetectProvider failed: %v", err)
	}
	if provider != ProviderAnthropic {
		t.Errorf("provider = %s, want anthropic", provider)
	}
}

func TestDetectProvider_GoogleKeyMapsToGemini(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("GOOGLE_API_KEY", "google-key")

	provider, err := DetectProvider(nil)
	if err != nil {
		t.Fatalf("DetectProvider failed: %v", err)
	}
	if provider != ProviderGemini {
		t.Errorf("provider = %s, want gemini", provider)
	}
}

func TestDetectProvider_NoProvider(t *testing.T) {
	clearProviderEnv(t)

	if _, err := DetectProvider(nil); !errors.Is(err, ErrNoProvider) {
		t.Errorf("expected ErrNoProvider, got %v", err)
	}
}

func TestNewClientFromConfig_OpenAI(t *testing.T) {
	clearProviderEnv(t)

	cfg := config.DefaultConfig()
	cfg.LLM.Provider = "openai"
	cfg.LLM.APIKey = "sk-test"
	cfg.LLM.BaseURL = "http://localhost:9999/v1"

	client, err := NewClientFromConfig(context.Background(), cfg, "gpt-4.1")
	if err != nil {
		t.Fatalf("NewClientFromConfig failed: %v", err)
	}

	oc, ok := client.(*OpenAIClient)
	if !ok {
		t.Fatalf("expected *OpenAIClient, got %T", client)
	}
	if oc.Model() != "gpt-4.1" {
		t.Errorf("model = %s, want gpt-4.1", oc.Model())
	}
	if oc.baseURL != "http://localhost:9999/v1" {
		t.Errorf("baseURL = %s", oc.baseURL)
	}
}

func TestNewClientFromConfig_Anthropic(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "anthropic-key")

	client, err := NewClientFromConfig(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("NewClientFromConfig failed: %v", err)
	}
	ac, ok := client.(*AnthropicClient)
	if !ok {
		t.Fatalf("expected *AnthropicClient, got %T", client)
	}
	if ac.apiKey != "anthropic-key" {
		t.Errorf("apiKey = %s", ac.apiKey)
	}
	if ac.Model() == "" {
		t.Error("expected default model")
	}
}

func TestNewClientFromConfig_MissingKey(t *testing.T) {
	clearProviderEnv(t)

	cfg := config.DefaultConfig()
	cfg.LLM.Provider = "anthropic"

	if _, err := NewClientFromConfig(context.Background(), cfg, ""); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestNewClientFromConfig_UnknownProvider(t *testing.T) {
	clearProviderEnv(t)

	cfg := config.DefaultConfig()
	cfg.LLM.Provider = "mystery"
	cfg.LLM.APIKey = "key"

	if _, err := NewClientFromConfig(context.Background(), cfg, ""); err == nil {
		t.Error("expected error for unknown provider")
	}
}
