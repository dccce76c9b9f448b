// Package loop drives the iterative protocol between the root model and
// the sandbox: compose a turn, send it, execute the returned code blocks,
// report their output back, and stop when the model signals an answer.
package loop

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"replnerd/internal/llm"
	"replnerd/internal/prompt"
	"replnerd/internal/protocol"
	"replnerd/internal/repl"
	"replnerd/internal/types"
	"replnerd/internal/usage"
)

// Environment is the sandbox as the loop sees it: execute code, bind
// variables before the first turn, and look up variables for FINAL_VAR.
type Environment interface {
	protocol.Environment
	Execute(ctx context.Context, code string) repl.Result
	SetText(name, value string) error
	SetContext(name string, c types.Context) error
}

// Config assembles a Loop.
type Config struct {
	Root llm.Client
	Env  Environment

	// MaxIterations bounds the exploration turns before the forced
	// answer turn. Zero means 10.
	MaxIterations int

	// SystemPrompt overrides the default wire grammar prompt.
	SystemPrompt string

	// MaxOutputChars truncates each execution report. Zero means 8192.
	MaxOutputChars int

	Logger  *zap.Logger
	Tracker *usage.Tracker
}

// Loop runs the protocol for one query at a time.
type Loop struct {
	root           llm.Client
	env            Environment
	maxIterations  int
	systemPrompt   string
	maxOutputChars int
	logger         *zap.Logger
	tracker        *usage.Tracker
}

// Request is one task: the query plus the data it runs against.
type Request struct {
	Query     string
	Contexts  []types.Context
	Histories []string
}

// Execution records one code block and what it produced.
type Execution struct {
	Code     string
	Output   string
	Duration time.Duration
}

// Iteration records one exchange with the root model.
type Iteration struct {
	Index      int
	Response   string
	Executions []Execution
}

// Result is a finished run.
type Result struct {
	RunID      string
	Query      string
	Model      string
	Answer     string
	Found      bool
	Iterations []Iteration
	Usage      usage.Summary
	Duration   time.Duration
}

// New assembles a Loop, applying defaults for unset fields.
func New(cfg Config) *Loop {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 10
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = prompt.DefaultSystemPrompt
	}
	if cfg.MaxOutputChars <= 0 {
		cfg.MaxOutputChars = 8192
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Tracker == nil {
		cfg.Tracker = usage.NewTracker()
	}
	return &Loop{
		root:           cfg.Root,
		env:            cfg.Env,
		maxIterations:  cfg.MaxIterations,
		systemPrompt:   cfg.SystemPrompt,
		maxOutputChars: cfg.MaxOutputChars,
		logger:         cfg.Logger,
		tracker:        cfg.Tracker,
	}
}

// Run executes the protocol until the model answers or the iteration
// budget runs out. Execution output travels inside the next user message,
// so the conversation stays a strict user/assistant alternation after the
// seeded opening.
func (l *Loop) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	result := &Result{
		RunID: uuid.NewString(),
		Query: req.Query,
		Model: l.root.Model(),
	}

	meta, err := describeContexts(req.Contexts)
	if err != nil {
		return nil, fmt.Errorf("describe context: %w", err)
	}

	if err := l.bindVariables(req); err != nil {
		return nil, fmt.Errorf("load context: %w", err)
	}

	l.logger.Info("Run started",
		zap.String("run_id", result.RunID),
		zap.String("model", result.Model),
		zap.String("kind", meta.Kind.String()),
		zap.Int("total_length", meta.TotalLength))

	messages := prompt.BuildSystemTurn(l.systemPrompt, meta)

	report := ""
	for iter := 0; iter < l.maxIterations; iter++ {
		userTurn := prompt.BuildUserTurn(prompt.Options{
			RootPrompt:   req.Query,
			Iteration:    iter,
			ContextCount: len(req.Contexts),
			HistoryCount: len(req.Histories),
		})
		content := userTurn.Content
		if report != "" {
			content = report + "\n\n" + content
		}
		messages = append(messages, types.UserMessage(content))

		resp, err := l.root.Chat(ctx, messages)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", iter, err)
		}
		l.tracker.Record(result.Model, "chat", resp.InputTokens, resp.OutputTokens)
		messages = append(messages, types.AssistantMessage(resp.Content))

		iteration := Iteration{Index: iter, Response: resp.Content}

		directives := protocol.ExtractDirectives(resp.Content)
		var reports []string
		for bi, code := range directives {
			res := l.env.Execute(ctx, code)
			output := truncateOutput(res.Output(), l.maxOutputChars)
			iteration.Executions = append(iteration.Executions, Execution{
				Code:     code,
				Output:   output,
				Duration: res.Duration,
			})
			reports = append(reports, fmt.Sprintf("--- block %d of %d ---\n%s", bi+1, len(directives), output))
			l.logger.Debug("Executed code block",
				zap.Int("iteration", iter),
				zap.Int("block", bi),
				zap.Duration("duration", res.Duration),
				zap.Bool("failed", res.Err != nil))
		}
		result.Iterations = append(result.Iterations, iteration)

		if answer, ok := protocol.ResolveFinalAnswer(resp.Content, l.env); ok {
			result.Answer = answer
			result.Found = true
			l.finish(result, start, iter+1)
			return result, nil
		}

		if len(reports) > 0 {
			report = "Execution results from your previous code:\n\n" + strings.Join(reports, "\n\n")
		} else {
			report = "Your previous response contained no repl code block and no final answer marker. Write a repl block to explore, or finish with FINAL(\"answer\") or FINAL_VAR(variable)."
		}
	}

	// Budget exhausted: one forced answer turn, no more code execution.
	messages = append(messages, types.UserMessage(prompt.ForcedAnswerPrompt))
	resp, err := l.root.Chat(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("forced answer: %w", err)
	}
	l.tracker.Record(result.Model, "chat", resp.InputTokens, resp.OutputTokens)
	result.Iterations = append(result.Iterations, Iteration{
		Index:    len(result.Iterations),
		Response: resp.Content,
	})

	if answer, ok := protocol.ResolveFinalAnswer(resp.Content, l.env); ok {
		result.Answer = answer
		result.Found = true
	} else {
		result.Answer = strings.TrimSpace(resp.Content)
		result.Found = false
	}

	l.finish(result, start, len(result.Iterations))
	return result, nil
}

func (l *Loop) finish(result *Result, start time.Time, iterations int) {
	result.Usage = l.tracker.Snapshot()
	result.Duration = time.Since(start)
	l.logger.Info("Run finished",
		zap.String("run_id", result.RunID),
		zap.Bool("found", result.Found),
		zap.Int("iterations", iterations),
		zap.Duration("duration", result.Duration),
		zap.Int64("total_tokens", result.Usage.Totals.Total))
}

// bindVariables loads the request data into the sandbox under the names
// the prompts advertise: a single context binds as "context", several as
// "context_0" through "context_{n-1}", histories as "history_i".
func (l *Loop) bindVariables(req Request) error {
	switch len(req.Contexts) {
	case 0:
		if err := l.env.SetText("context", ""); err != nil {
			return err
		}
	case 1:
		if err := l.env.SetContext("context", req.Contexts[0]); err != nil {
			return err
		}
	default:
		for i, c := range req.Contexts {
			if err := l.env.SetContext(fmt.Sprintf("context_%d", i), c); err != nil {
				return err
			}
		}
	}

	for i, h := range req.Histories {
		if err := l.env.SetText(fmt.Sprintf("history_%d", i), h); err != nil {
			return err
		}
	}
	return nil
}

// describeContexts reduces the loaded contexts to one metadata snapshot.
// Several contexts describe as an ordered list of their serialized forms.
func describeContexts(contexts []types.Context) (prompt.ContextMetadata, error) {
	switch len(contexts) {
	case 0:
		return prompt.Describe(types.TextContext(""))
	case 1:
		return prompt.Describe(contexts[0])
	default:
		elems := make([]types.Value, len(contexts))
		for i, c := range contexts {
			if c.Kind() == types.ContextInvalid {
				return prompt.ContextMetadata{}, fmt.Errorf("context %d: %w", i, types.ErrInvalidContext)
			}
			elems[i] = types.Text(c.Serialize())
		}
		return prompt.Describe(types.ListContext(elems...))
	}
}

// truncateOutput caps a report at max runes.
func truncateOutput(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "\n... [output truncated]"
}
