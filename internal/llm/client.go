// Package llm contains the model-query clients behind the loop: provider
// implementations, provider detection, and concurrent sub-query dispatch.
package llm

import (
	"context"

	"replnerd/internal/types"
)

// Provider names accepted by configuration and detection.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Response carries one completion and its token usage. Providers that
// return no usage block get estimated counts instead of zeros.
type Response struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// Client is the surface the loop and the REPL sub-query bridge consume.
// Chat sends a whole conversation; Complete is the single-prompt
// convenience used for sub-queries.
type Client interface {
	Chat(ctx context.Context, messages []types.Message) (*Response, error)
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}
