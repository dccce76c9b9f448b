package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"replnerd/internal/types"
	"replnerd/internal/usage"
)

// AnthropicClient implements Client against the Anthropic Messages API.
type AnthropicClient struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	retryBase  time.Duration
	httpClient *http.Client
}

// AnthropicConfig holds configuration for the Anthropic client.
type AnthropicConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// DefaultAnthropicConfig returns sensible defaults.
func DefaultAnthropicConfig(apiKey string) AnthropicConfig {
	return AnthropicConfig{
		APIKey:    apiKey,
		BaseURL:   "https://api.anthropic.com/v1",
		Model:     "claude-sonnet-4-20250514",
		MaxTokens: 4096,
		Timeout:   120 * time.Second,
	}
}

// NewAnthropicClient creates a client with default config.
func NewAnthropicClient(apiKey string) *AnthropicClient {
	return NewAnthropicClientWithConfig(DefaultAnthropicConfig(apiKey))
}

// NewAnthropicClientWithConfig creates a client with custom config.
func NewAnthropicClientWithConfig(config AnthropicConfig) *AnthropicClient {
	return &AnthropicClient{
		apiKey:    config.APIKey,
		baseURL:   strings.TrimRight(config.BaseURL, "/"),
		model:     config.Model,
		maxTokens: config.MaxTokens,
		retryBase: time.Second,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Chat sends the conversation and returns the completion. System messages
// are folded into the top-level system field; the remaining list is
// normalized to the alternation the API requires.
func (c *AnthropicClient) Chat(ctx context.Context, messages []types.Message) (*Response, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("API key not configured")
	}

	system, wire := splitSystem(messages)

	reqBody := anthropicRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		System:      system,
		Messages:    wire,
		Temperature: 0.1,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	maxRetries := 3
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			time.Sleep(time.Duration(1<<uint(i-1)) * c.retryBase)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/messages", bytes.NewReader(jsonData))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("failed to read response: %w", readErr)
			continue
		}

		if isRetryableStatus(resp.StatusCode) {
			lastErr = fmt.Errorf("retryable status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
		}

		var parsed anthropicResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		if parsed.Error != nil {
			return nil, fmt.Errorf("API error: %s", parsed.Error.Message)
		}
		if len(parsed.Content) == 0 {
			return nil, fmt.Errorf("no completion returned")
		}

		var sb strings.Builder
		for _, block := range parsed.Content {
			if block.Type == "text" {
				sb.WriteString(block.Text)
			}
		}
		content := strings.TrimSpace(sb.String())

		input, output := parsed.Usage.InputTokens, parsed.Usage.OutputTokens
		if input == 0 && output == 0 {
			input = estimateMessagesTokens(messages)
			output = usage.EstimateTokens(content)
		}
		return &Response{Content: content, InputTokens: input, OutputTokens: output}, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// Complete sends a single user prompt.
func (c *AnthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.Chat(ctx, []types.Message{types.UserMessage(prompt)})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Model returns the configured model name.
func (c *AnthropicClient) Model() string {
	return c.model
}

// splitSystem pulls system messages into one system string and normalizes
// the rest: consecutive same-role messages merge, and a leading assistant
// message (the seeded metadata turn) gets a user opener, since the API
// requires the first message to be user-role.
func splitSystem(messages []types.Message) (string, []anthropicMessage) {
	var system strings.Builder
	wire := make([]anthropicMessage, 0, len(messages))

	for _, m := range messages {
		if m.Role == types.RoleSystem {
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(m.Content)
			continue
		}
		role := string(m.Role)
		if n := len(wire); n > 0 && wire[n-1].Role == role {
			wire[n-1].Content += "\n\n" + m.Content
			continue
		}
		wire = append(wire, anthropicMessage{Role: role, Content: m.Content})
	}

	if len(wire) > 0 && wire[0].Role == string(types.RoleAssistant) {
		wire = append([]anthropicMessage{{Role: "user", Content: "The context has been loaded into your REPL environment."}}, wire...)
	}

	return system.String(), wire
}
