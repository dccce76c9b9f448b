package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"replnerd/internal/types"
	"replnerd/internal/usage"
)

// GeminiClient implements Client through the Google GenAI SDK.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini-backed client.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{client: client, model: model}, nil
}

// Chat sends the conversation and returns the completion. System messages
// map to the system instruction; assistant messages map to the model role.
func (c *GeminiClient) Chat(ctx context.Context, messages []types.Message) (*Response, error) {
	var system strings.Builder
	contents := make([]*genai.Content, 0, len(messages))

	for _, m := range messages {
		switch m.Role {
		case types.RoleSystem:
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(m.Content)
		case types.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	config := &genai.GenerateContentConfig{}
	if system.Len() > 0 {
		config.SystemInstruction = genai.NewContentFromText(system.String(), genai.RoleUser)
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("GenAI generate failed: %w", err)
	}

	content := strings.TrimSpace(result.Text())
	if content == "" {
		return nil, fmt.Errorf("no completion returned")
	}

	input, output := 0, 0
	if result.UsageMetadata != nil {
		input = int(result.UsageMetadata.PromptTokenCount)
		output = int(result.UsageMetadata.CandidatesTokenCount)
	}
	if input == 0 && output == 0 {
		input = estimateMessagesTokens(messages)
		output = usage.EstimateTokens(content)
	}

	return &Response{Content: content, InputTokens: input, OutputTokens: output}, nil
}

// Complete sends a single user prompt.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.Chat(ctx, []types.Message{types.UserMessage(prompt)})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Model returns the configured model name.
func (c *GeminiClient) Model() string {
	return c.model
}
