package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/upb/llm-router/app"
	"github.com/upb/llm-router/config"
	"github.com/upb/llm-router/internal/observability"
	"go.uber.org/zap"
)

var version = "0.1.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "llm-router",
	Short: "Route chat requests across LLM providers by priority",
	Long: `llm-router sends each chat request to the first usable provider of a
routing profile. Providers without an API key are skipped, providers that
reported a rate limit are struck until their quota renews, and any other
failure falls through to the next candidate.

Examples:
  llm-router serve
  llm-router call free-only "Summarize this paragraph"
  llm-router list paid-first
  llm-router status
  llm-router clear groq-free
  llm-router token --subject ops --ttl 1h`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(tokenCmd)

	rootCmd.PersistentFlags().String("log-level", "", "Override LOG_LEVEL")
}

// loadDependencies builds the full dependency graph from the environment.
// Tests replace it to inject credentials.
var loadDependencies = func(ctx context.Context, cmd *cobra.Command) (*app.Dependencies, error) {
	cfg, err := config.New(ctx)
	if err != nil {
		return nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Observability.LogLevel = level
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return app.NewDependencies(ctx, cfg, logger)
}

// withDependencies runs fn with freshly built dependencies and releases them afterwards
func withDependencies(cmd *cobra.Command, fn func(ctx context.Context, deps *app.Dependencies) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	deps, err := loadDependencies(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			deps.Logger.Warn("failed to close dependencies", zap.Error(err))
		}
		_ = deps.Logger.Sync()
	}()

	return fn(ctx, deps)
}
