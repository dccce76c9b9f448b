package llm

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DefaultMaxConcurrent caps in-flight batch requests when the caller
// passes no limit.
const DefaultMaxConcurrent = 4

// CompleteBatch sends prompts concurrently and returns answers in prompt
// order. The first failing prompt aborts the batch.
func CompleteBatch(ctx context.Context, client Client, prompts []string, maxConcurrent int) ([]string, error) {
	return completeAll(ctx, prompts, maxConcurrent, client.Complete)
}

// completeAll runs do over the prompts with bounded concurrency,
// preserving prompt order in the results.
func completeAll(ctx context.Context, prompts []string, maxConcurrent int, do func(context.Context, string) (string, error)) ([]string, error) {
	if len(prompts) == 0 {
		return nil, nil
	}
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}

	results := make([]string, len(prompts))
	sem := make(chan struct{}, maxConcurrent)

	g, gctx := errgroup.WithContext(ctx)
	for i, prompt := range prompts {
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			answer, err := do(gctx, prompt)
			if err != nil {
				return fmt.Errorf("prompt %d: %w", i, err)
			}
			results[i] = answer
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
