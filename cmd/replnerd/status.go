package main

import (
	"fmt"
	"os"

	"replnerd/internal/config"
	"replnerd/internal/llm"
	"replnerd/internal/trace"

	"github.com/spf13/cobra"
)

// statusCmd shows configuration and store health
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show replnerd configuration status",
	RunE:  showStatus,
}

// showStatus displays configuration and store health
func showStatus(cmd *cobra.Command, args []string) error {
	fmt.Println("replnerd status")
	fmt.Println("===============")
	fmt.Printf("Version: %s\n", version)
	fmt.Println()

	path := cfgPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(path); statErr == nil {
		fmt.Printf("✓ Config: %s\n", path)
	} else {
		fmt.Printf("✗ Config: %s (not found, using defaults)\n", path)
	}

	provider, err := llm.DetectProvider(cfg)
	if err != nil {
		fmt.Println("✗ No LLM provider configured")
		fmt.Println("  Set llm.provider in the config or export one of:")
		fmt.Println("  ANTHROPIC_API_KEY, OPENAI_API_KEY, GEMINI_API_KEY")
	} else {
		fmt.Printf("✓ Provider: %s\n", provider)
		fmt.Printf("  Root model: %s\n", modelOrDefault(cfg.RootModel()))
		fmt.Printf("  Sub-query model: %s\n", modelOrDefault(cfg.SubQueryModel()))
	}

	fmt.Printf("✓ Data dir: %s\n", cfg.DataDir)

	store, err := trace.NewStore(cfg.TracePath())
	if err != nil {
		fmt.Printf("✗ Trace store: %v\n", err)
		return nil
	}
	defer store.Close()
	if stats, err := store.Stats(); err == nil {
		fmt.Printf("✓ Trace store: %v runs recorded\n", stats["total_runs"])
	}

	return nil
}

func modelOrDefault(model string) string {
	if model == "" {
		return "(provider default)"
	}
	return model
}
