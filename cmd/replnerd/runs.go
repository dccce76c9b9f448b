package main

import (
	"fmt"
	"time"

	"replnerd/cmd/replnerd/ui"
	"replnerd/internal/trace"
	"replnerd/internal/usage"

	"github.com/spf13/cobra"
)

var runsLimit int

// runsCmd lists recent runs
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent runs from the local trace store",
	Long: `Lists recent runs recorded in the local trace database, newest first.

Examples:
  replnerd runs
  replnerd runs --limit 25
  replnerd runs show 4c2d9a1e-...`,
	RunE: listRuns,
}

// runsShowCmd prints one run's full transcript
var runsShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show one run's answer and full transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  showRun,
}

// runsStatsCmd prints aggregate statistics
var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate statistics across all recorded runs",
	RunE:  showRunStats,
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 10, "Maximum number of runs to list")
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
}

// openStore opens the trace store at the configured path.
func openStore() (*trace.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return trace.NewStore(cfg.TracePath())
}

// listRuns prints recent runs, newest first
func listRuns(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Recent(runsLimit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	styles := ui.DefaultStyles()
	if len(runs) == 0 {
		fmt.Println(styles.Muted.Render("No runs recorded yet. Try: replnerd ask \"...\" --context file"))
		return nil
	}

	for _, run := range runs {
		marker := styles.Success.Render("✓")
		if !run.Found {
			marker = styles.Error.Render("✗")
		}
		fmt.Printf("%s %s  %s  %s  %s\n",
			marker,
			styles.Bold.Render(shortID(run.ID)),
			run.StartedAt.Format("2006-01-02 15:04"),
			styles.Muted.Render(fmt.Sprintf("%-24s %2d iters", run.Model, run.Iterations)),
			truncateText(run.Query, 48))
	}
	return nil
}

// showRun prints one run's transcript
func showRun(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.Find(args[0])
	if err != nil {
		return err
	}

	styles := ui.DefaultStyles()
	fmt.Println(styles.Title.Render(fmt.Sprintf("Run %s", run.ID)))
	fmt.Printf("Started:    %s\n", run.StartedAt.Format(time.RFC3339))
	fmt.Printf("Model:      %s\n", run.Model)
	fmt.Printf("Duration:   %s\n", run.Duration.Round(time.Millisecond))
	fmt.Printf("Iterations: %d\n", run.Iterations)
	fmt.Printf("Tokens:     %d in / %d out\n", run.InputTokens, run.OutputTokens)
	fmt.Printf("Query:      %s\n", run.Query)
	fmt.Println()

	for _, iter := range run.Transcript {
		fmt.Println(styles.Badge.Render(fmt.Sprintf("iteration %d", iter.Index)))
		fmt.Println(iter.Response)
		for _, exec := range iter.Executions {
			fmt.Println(styles.Subtitle.Render(fmt.Sprintf("executed in %dms:", exec.DurationMS)))
			fmt.Println(styles.CodeBlock.Render(exec.Output))
		}
		fmt.Println()
	}

	if !run.Found {
		fmt.Println(styles.Warning.Render("No final answer marker; answer below is the model's last response."))
	}
	fmt.Println(styles.Answer.Render(run.Answer))
	return nil
}

// showRunStats prints store aggregates plus the token ledger
func showRunStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := trace.NewStore(cfg.TracePath())
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats()
	if err != nil {
		return fmt.Errorf("failed to compute stats: %w", err)
	}

	styles := ui.DefaultStyles()
	fmt.Println(styles.Title.Render("Run statistics"))
	fmt.Printf("Total runs:  %v\n", stats["total_runs"])
	if rate, ok := stats["found_rate"].(float64); ok {
		fmt.Printf("Answered:    %.0f%%\n", rate*100)
	}
	if avg, ok := stats["avg_duration_ms"].(float64); ok {
		fmt.Printf("Avg time:    %s\n", (time.Duration(avg) * time.Millisecond).Round(time.Millisecond))
	}
	if avg, ok := stats["avg_iterations"].(float64); ok {
		fmt.Printf("Avg iters:   %.1f\n", avg)
	}
	fmt.Printf("Tokens:      %v in / %v out\n", stats["total_input_tokens"], stats["total_output_tokens"])
	if byModel, ok := stats["by_model"].(map[string]int64); ok && len(byModel) > 0 {
		fmt.Println("By model:")
		for model, count := range byModel {
			fmt.Printf("  %-32s %d\n", model, count)
		}
	}

	ledger, err := usage.Load(cfg.UsagePath())
	if err != nil || ledger.TotalCalls == 0 {
		return nil
	}
	fmt.Println()
	fmt.Println(styles.Title.Render("Token ledger"))
	fmt.Printf("Total calls: %d\n", ledger.TotalCalls)
	fmt.Printf("Tokens:      %d in / %d out\n", ledger.Totals.Input, ledger.Totals.Output)
	for op, counts := range ledger.ByOperation {
		fmt.Printf("  %-16s %d in / %d out\n", op, counts.Input, counts.Output)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncateText shortens s for one-line display.
func truncateText(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
