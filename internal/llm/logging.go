package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"replnerd/internal/types"
)

// LoggingClient wraps a Client and logs calls, latency, and token usage
// at debug level.
type LoggingClient struct {
	inner  Client
	logger *zap.Logger
}

// NewLoggingClient wraps client. A nil logger disables output.
func NewLoggingClient(client Client, logger *zap.Logger) *LoggingClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingClient{inner: client, logger: logger}
}

func (c *LoggingClient) Chat(ctx context.Context, messages []types.Message) (*Response, error) {
	start := time.Now()
	resp, err := c.inner.Chat(ctx, messages)
	if err != nil {
		c.logger.Warn("Chat call failed",
			zap.String("model", c.inner.Model()),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err))
		return nil, err
	}
	c.logger.Debug("Chat call completed",
		zap.String("model", c.inner.Model()),
		zap.Duration("latency", time.Since(start)),
		zap.Int("messages", len(messages)),
		zap.Int("input_tokens", resp.InputTokens),
		zap.Int("output_tokens", resp.OutputTokens))
	return resp, nil
}

func (c *LoggingClient) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	answer, err := c.inner.Complete(ctx, prompt)
	if err != nil {
		c.logger.Warn("Completion failed",
			zap.String("model", c.inner.Model()),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err))
		return "", err
	}
	c.logger.Debug("Completion finished",
		zap.String("model", c.inner.Model()),
		zap.Duration("latency", time.Since(start)),
		zap.Int("chars", len(answer)))
	return answer, nil
}

func (c *LoggingClient) Model() string {
	return c.inner.Model()
}
