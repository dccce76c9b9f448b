package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"replnerd/cmd/replnerd/ui"
	"replnerd/internal/config"
	"replnerd/internal/llm"
	"replnerd/internal/loop"
	"replnerd/internal/repl"
	"replnerd/internal/trace"
	"replnerd/internal/types"
	"replnerd/internal/usage"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Ask flags
	contextPaths  []string
	historyPaths  []string
	askProvider   string
	askModel      string
	askSubModel   string
	maxIterations int
	askTimeout    time.Duration
	renderAnswer  bool
)

// askCmd runs one query through the exploration loop
var askCmd = &cobra.Command{
	Use:   "ask [query]",
	Short: "Answer a query by exploring loaded context in a REPL",
	Long: `Loads the given context files into a sandboxed interpreter and asks the
model to answer the query by writing code against them.

Context files holding a JSON array or object are loaded as a list or map;
everything else is loaded as plain text. Pass "-" to read one context from
stdin.

Examples:
  replnerd ask "How many error lines does the log contain?" --context server.log
  cat report.txt | replnerd ask "Summarize the findings" --context -
  replnerd ask "Which entry has the highest score?" --context scores.json --render`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringArrayVarP(&contextPaths, "context", "c", nil, "Context file to load (repeatable; \"-\" reads stdin)")
	askCmd.Flags().StringArrayVar(&historyPaths, "history", nil, "Prior-exchange file to load (repeatable)")
	askCmd.Flags().StringVar(&askProvider, "provider", "", "LLM provider override (openai, anthropic, gemini)")
	askCmd.Flags().StringVar(&askModel, "model", "", "Root model override")
	askCmd.Flags().StringVar(&askSubModel, "sub-model", "", "Sub-query model override")
	askCmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Iteration budget override")
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 5*time.Minute, "Overall run timeout")
	askCmd.Flags().BoolVarP(&renderAnswer, "render", "r", false, "Render the answer as markdown")
}

// runAsk executes a single query through the full loop
func runAsk(cmd *cobra.Command, args []string) error {
	baseCtx := cmd.Context()
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	ctx, cancel := context.WithTimeout(baseCtx, askTimeout)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	query := strings.Join(args, " ")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if askProvider != "" {
		cfg.LLM.Provider = askProvider
	}
	if askModel != "" {
		cfg.LLM.Model = askModel
	}
	if askSubModel != "" {
		cfg.LLM.SubModel = askSubModel
	}
	if maxIterations > 0 {
		cfg.Loop.MaxIterations = maxIterations
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	contexts, err := readContexts(contextPaths)
	if err != nil {
		return err
	}
	histories, err := readHistories(historyPaths)
	if err != nil {
		return err
	}

	logger.Info("Processing query",
		zap.String("query", query),
		zap.Int("contexts", len(contexts)),
		zap.Int("histories", len(histories)))

	rootClient, err := llm.NewClientFromConfig(ctx, cfg, cfg.RootModel())
	if err != nil {
		return err
	}
	subClient := rootClient
	if cfg.SubQueryModel() != cfg.RootModel() {
		subClient, err = llm.NewClientFromConfig(ctx, cfg, cfg.SubQueryModel())
		if err != nil {
			return err
		}
	}

	tracker := usage.NewTracker()
	queryFn, batchFn := llm.NewSubQueryBridge(ctx, llm.NewLoggingClient(subClient, logger), tracker, cfg.Loop.MaxConcurrentQueries)

	env, err := repl.New(repl.Config{
		Timeout:      cfg.GetExecutionTimeout(),
		Query:        queryFn,
		QueryBatched: batchFn,
	})
	if err != nil {
		return fmt.Errorf("failed to start interpreter: %w", err)
	}

	runner := loop.New(loop.Config{
		Root:           llm.NewLoggingClient(rootClient, logger),
		Env:            env,
		MaxIterations:  cfg.Loop.MaxIterations,
		SystemPrompt:   cfg.Loop.SystemPrompt,
		MaxOutputChars: cfg.Loop.MaxOutputChars,
		Logger:         logger,
		Tracker:        tracker,
	})

	startedAt := time.Now()
	result, err := runner.Run(ctx, loop.Request{Query: query, Contexts: contexts, Histories: histories})
	if err != nil {
		return err
	}

	printResult(result)
	persistRun(cfg, result, startedAt)
	return nil
}

// readContexts loads each path as a context, sniffing JSON arrays and
// objects into list and map shapes.
func readContexts(paths []string) ([]types.Context, error) {
	var contexts []types.Context
	stdinUsed := false
	for _, path := range paths {
		var data []byte
		var err error
		if path == "-" {
			if stdinUsed {
				return nil, fmt.Errorf("stdin can only be read once")
			}
			stdinUsed = true
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(path)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read context %s: %w", path, err)
		}
		contexts = append(contexts, parseContext(data))
	}
	return contexts, nil
}

// readHistories loads each path as one prior-exchange text block.
func readHistories(paths []string) ([]string, error) {
	var histories []string
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read history %s: %w", path, err)
		}
		histories = append(histories, string(data))
	}
	return histories, nil
}

// parseContext sniffs the payload shape. A JSON array becomes an ordered
// list, a JSON object a keyed map with document key order preserved, and
// anything else scalar text.
func parseContext(data []byte) types.Context {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if c, ok := parseListContext(trimmed); ok {
			return c
		}
	}
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if c, ok := parseMapContext(trimmed); ok {
			return c
		}
	}
	return types.TextContext(string(data))
}

func parseListContext(data []byte) (types.Context, bool) {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return types.Context{}, false
	}
	elems := make([]types.Value, len(raw))
	for i, item := range raw {
		v, err := types.FromGo(item)
		if err != nil {
			return types.Context{}, false
		}
		elems[i] = v
	}
	return types.ListContext(elems...), true
}

// parseMapContext walks the token stream instead of unmarshalling into a
// Go map, so entry order follows the document.
func parseMapContext(data []byte) (types.Context, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return types.Context{}, false
	}

	var entries []types.MapEntry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return types.Context{}, false
		}
		key, ok := keyTok.(string)
		if !ok {
			return types.Context{}, false
		}
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return types.Context{}, false
		}
		v, err := types.FromGo(raw)
		if err != nil {
			return types.Context{}, false
		}
		entries = append(entries, types.MapEntry{Key: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return types.Context{}, false
	}
	return types.MapContext(entries...), true
}

// printResult writes the answer (and with --verbose the full iteration
// trace) to stdout.
func printResult(result *loop.Result) {
	styles := ui.DefaultStyles()

	if verbose {
		for _, iter := range result.Iterations {
			fmt.Println(styles.Badge.Render(fmt.Sprintf("iteration %d", iter.Index)))
			fmt.Println(styles.Muted.Render(strings.TrimSpace(iter.Response)))
			for _, exec := range iter.Executions {
				fmt.Println(styles.Subtitle.Render(fmt.Sprintf("executed in %s:", exec.Duration.Round(time.Millisecond))))
				fmt.Println(styles.CodeBlock.Render(exec.Output))
			}
			fmt.Println()
		}
	}

	if !result.Found {
		fmt.Println(styles.Warning.Render("No final answer marker; returning the model's last response."))
	}

	if renderAnswer {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(80),
		)
		if err == nil {
			if out, rerr := renderer.Render(result.Answer); rerr == nil {
				fmt.Print(out)
				fmt.Println(styles.Muted.Render(usageLine(result)))
				return
			}
		}
	}

	fmt.Println(styles.Answer.Render(result.Answer))
	fmt.Println(styles.Muted.Render(usageLine(result)))
}

func usageLine(result *loop.Result) string {
	return fmt.Sprintf("%s • %d calls • %d in / %d out • %s",
		result.Model,
		result.Usage.TotalCalls,
		result.Usage.Totals.Input,
		result.Usage.Totals.Output,
		result.Duration.Round(time.Millisecond))
}

// persistRun records the run in the trace store and folds its token usage
// into the ledger. Failures are logged, not fatal: the answer was already
// printed.
func persistRun(cfg *config.Config, result *loop.Result, startedAt time.Time) {
	store, err := trace.NewStore(cfg.TracePath())
	if err != nil {
		logger.Warn("Failed to open trace store", zap.Error(err))
	} else {
		defer store.Close()
		if err := store.Record(convertRun(result, startedAt)); err != nil {
			logger.Warn("Failed to record run", zap.Error(err))
		}
	}

	if err := usage.Merge(cfg.UsagePath(), result.Usage); err != nil {
		logger.Warn("Failed to update usage ledger", zap.Error(err))
	}
}

// convertRun flattens a loop result into its stored form.
func convertRun(result *loop.Result, startedAt time.Time) trace.Run {
	transcript := make([]trace.IterationRecord, len(result.Iterations))
	for i, iter := range result.Iterations {
		record := trace.IterationRecord{
			Index:    iter.Index,
			Response: iter.Response,
		}
		for _, exec := range iter.Executions {
			record.Executions = append(record.Executions, trace.ExecutionRecord{
				Code:       exec.Code,
				Output:     exec.Output,
				DurationMS: exec.Duration.Milliseconds(),
			})
		}
		transcript[i] = record
	}

	return trace.Run{
		ID:           result.RunID,
		StartedAt:    startedAt,
		Duration:     result.Duration,
		Model:        result.Model,
		Query:        result.Query,
		Answer:       result.Answer,
		Found:        result.Found,
		Iterations:   len(result.Iterations),
		InputTokens:  result.Usage.Totals.Input,
		OutputTokens: result.Usage.Totals.Output,
		Transcript:   transcript,
	}
}
