package main

import (
	"fmt"
	"os"

	"replnerd/internal/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const version = "0.1.0"

var (
	// Global flags
	verbose bool
	cfgPath string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "replnerd",
	Short: "replnerd - REPL-driven question answering over loaded context",
	Long: `replnerd answers questions about documents by letting a language model
explore them programmatically instead of reading them whole.

The context is loaded into a sandboxed Go interpreter as variables. The
model is told only the shape and size of what was loaded, then iterates:
it writes code, observes the output, and continues until it commits to a
final answer. Sub-queries let interpreted code call a smaller model for
fuzzy judgments mid-computation.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// versionCmd prints the build version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the replnerd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("replnerd %s\n", version)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file path (default: ~/.replnerd/config.yaml)")

	// Add commands to root
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads the config file named by --config, falling back to the
// default location.
func loadConfig() (*config.Config, error) {
	path := cfgPath
	if path == "" {
		path = config.DefaultPath()
	}
	return config.Load(path)
}
