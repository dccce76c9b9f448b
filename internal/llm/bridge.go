package llm

import (
	"context"

	"replnerd/internal/types"
	"replnerd/internal/usage"
)

// NewSubQueryBridge returns the Query and QueryBatched functions exposed
// inside the sandbox, backed by client. Failures are folded into the
// returned text so interpreted code never aborts on a flaky call. Usage
// is recorded on tracker when non-nil.
func NewSubQueryBridge(ctx context.Context, client Client, tracker *usage.Tracker, maxConcurrent int) (func(string) string, func([]string) []string) {
	ask := func(ctx context.Context, prompt string, operation string) string {
		resp, err := client.Chat(ctx, []types.Message{types.UserMessage(prompt)})
		if err != nil {
			return "sub-query failed: " + err.Error()
		}
		if tracker != nil {
			tracker.Record(client.Model(), operation, resp.InputTokens, resp.OutputTokens)
		}
		return resp.Content
	}

	query := func(prompt string) string {
		return ask(ctx, prompt, "query")
	}

	queryBatched := func(prompts []string) []string {
		// Failures are folded per prompt, so the only batch-level error
		// left is context cancellation.
		results, err := completeAll(ctx, prompts, maxConcurrent, func(ctx context.Context, prompt string) (string, error) {
			return ask(ctx, prompt, "query_batched"), nil
		})
		if err != nil {
			out := make([]string, len(prompts))
			for i := range out {
				out[i] = "sub-query failed: " + err.Error()
			}
			return out
		}
		return results
	}

	return query, queryBatched
}
