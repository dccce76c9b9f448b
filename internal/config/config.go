// Package config holds the replnerd configuration: YAML file, environment
// overrides, and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidProviders lists the accepted llm.provider values.
var ValidProviders = []string{"openai", "anthropic", "gemini"}

// Config holds all replnerd configuration.
type Config struct {
	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Loop behavior
	Loop LoopConfig `yaml:"loop"`

	// Directive execution settings
	Execution ExecutionConfig `yaml:"execution"`

	// Where the trace store and usage ledger live
	DataDir string `yaml:"data_dir"`
}

// LLMConfig configures the model clients.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai, anthropic, gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`     // root model; provider default when empty
	SubModel string `yaml:"sub_model"` // sub-query model; falls back to Model
	BaseURL  string `yaml:"base_url"`  // OpenAI-compatible endpoint override
	Timeout  string `yaml:"timeout"`
}

// LoopConfig configures the iteration loop.
type LoopConfig struct {
	MaxIterations        int    `yaml:"max_iterations"`
	MaxConcurrentQueries int    `yaml:"max_concurrent_queries"`
	MaxOutputChars       int    `yaml:"max_output_chars"`
	SystemPrompt         string `yaml:"system_prompt,omitempty"`
}

// ExecutionConfig configures the REPL sandbox.
type ExecutionConfig struct {
	Timeout string `yaml:"timeout"` // per-directive budget
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Timeout: "120s",
		},
		Loop: LoopConfig{
			MaxIterations:        10,
			MaxConcurrentQueries: 4,
			MaxOutputChars:       8192,
		},
		Execution: ExecutionConfig{
			Timeout: "60s",
		},
		DataDir: defaultDataDir(),
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".replnerd"
	}
	return filepath.Join(home, ".replnerd")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(defaultDataDir(), "config.yaml")
}

// Load reads the config at path, falling back to defaults when the file
// does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save writes the config as YAML, creating the directory if needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if provider := os.Getenv("REPLNERD_PROVIDER"); provider != "" {
		c.LLM.Provider = provider
	}
	if model := os.Getenv("REPLNERD_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if model := os.Getenv("REPLNERD_SUB_MODEL"); model != "" {
		c.LLM.SubModel = model
	}
	if url := os.Getenv("REPLNERD_BASE_URL"); url != "" {
		c.LLM.BaseURL = url
	}
	if dir := os.Getenv("REPLNERD_DATA_DIR"); dir != "" {
		c.DataDir = dir
	}

	// Pull the matching API key when the provider is already pinned.
	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case "anthropic":
			c.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case "gemini":
			if key := os.Getenv("GEMINI_API_KEY"); key != "" {
				c.LLM.APIKey = key
			} else {
				c.LLM.APIKey = os.Getenv("GOOGLE_API_KEY")
			}
		}
	}
}

// GetLLMTimeout returns the model client timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetExecutionTimeout returns the per-directive execution budget.
func (c *Config) GetExecutionTimeout() time.Duration {
	d, err := time.ParseDuration(c.Execution.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// RootModel returns the configured root model (may be empty for the
// provider default).
func (c *Config) RootModel() string {
	return c.LLM.Model
}

// SubQueryModel returns the model used for REPL sub-queries, falling back
// to the root model.
func (c *Config) SubQueryModel() string {
	if c.LLM.SubModel != "" {
		return c.LLM.SubModel
	}
	return c.LLM.Model
}

// TracePath returns the run history database location.
func (c *Config) TracePath() string {
	return filepath.Join(c.DataDir, "runs.db")
}

// UsagePath returns the usage ledger location.
func (c *Config) UsagePath() string {
	return filepath.Join(c.DataDir, "usage.json")
}

// Validate checks bounds and provider names.
func (c *Config) Validate() error {
	if c.Loop.MaxIterations <= 0 {
		return fmt.Errorf("loop.max_iterations must be positive, got %d", c.Loop.MaxIterations)
	}
	if c.Loop.MaxConcurrentQueries <= 0 {
		return fmt.Errorf("loop.max_concurrent_queries must be positive, got %d", c.Loop.MaxConcurrentQueries)
	}
	if c.Loop.MaxOutputChars <= 0 {
		return fmt.Errorf("loop.max_output_chars must be positive, got %d", c.Loop.MaxOutputChars)
	}

	if c.LLM.Provider == "" {
		return nil
	}
	for _, p := range ValidProviders {
		if c.LLM.Provider == p {
			return nil
		}
	}
	return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
}
