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

// OpenAIClient implements Client against the chat-completions API. A
// custom base URL covers OpenAI-compatible endpoints as well.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	retryBase  time.Duration
	httpClient *http.Client
}

// OpenAIConfig holds configuration for the OpenAI client.
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// DefaultOpenAIConfig returns sensible defaults.
func DefaultOpenAIConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		APIKey:    apiKey,
		BaseURL:   "https://api.openai.com/v1",
		Model:     "gpt-4o-mini",
		MaxTokens: 4096,
		Timeout:   120 * time.Second,
	}
}

// NewOpenAIClient creates a client with default config.
func NewOpenAIClient(apiKey string) *OpenAIClient {
	return NewOpenAIClientWithConfig(DefaultOpenAIConfig(apiKey))
}

// NewOpenAIClientWithConfig creates a client with custom config.
func NewOpenAIClientWithConfig(config OpenAIConfig) *OpenAIClient {
	return &OpenAIClient{
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

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Chat sends the conversation and returns the completion.
func (c *OpenAIClient) Chat(ctx context.Context, messages []types.Message) (*Response, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("API key not configured")
	}

	wire := make([]openAIMessage, len(messages))
	for i, m := range messages {
		wire[i] = openAIMessage{Role: string(m.Role), Content: m.Content}
	}

	reqBody := openAIRequest{
		Model:       c.model,
		Messages:    wire,
		MaxTokens:   c.maxTokens,
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
			// Exponential backoff: 1s, 2s, 4s
			time.Sleep(time.Duration(1<<uint(i-1)) * c.retryBase)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

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

		var parsed openAIResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		if parsed.Error != nil {
			return nil, fmt.Errorf("API error: %s", parsed.Error.Message)
		}
		if len(parsed.Choices) == 0 {
			return nil, fmt.Errorf("no completion returned")
		}

		content := strings.TrimSpace(parsed.Choices[0].Message.Content)
		input, output := parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens
		if input == 0 && output == 0 {
			input = estimateMessagesTokens(messages)
			output = usage.EstimateTokens(content)
		}
		return &Response{Content: content, InputTokens: input, OutputTokens: output}, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// Complete sends a single user prompt.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.Chat(ctx, []types.Message{types.UserMessage(prompt)})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string {
	return c.model
}

// isRetryableStatus reports whether a retry can help: rate limits and
// server-side failures.
func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func estimateMessagesTokens(messages []types.Message) int {
	contents := make([]string, len(messages))
	for i, m := range messages {
		contents[i] = m.Content
	}
	return usage.EstimateMessages(contents...)
}
