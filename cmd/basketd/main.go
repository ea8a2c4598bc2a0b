// Package main is the entry point for the basketd CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/helixml/marketbasket"
	"github.com/helixml/marketbasket/internal/config"
	"github.com/helixml/marketbasket/internal/log"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "basketd",
		Short: "Market basket projection service",
		Long: `basketd keeps "frequently bought together" summaries per product.

Each basket event names an anchor product and the products bought with it;
every combination of those products is counted in the anchor's summary.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")

	cmd.AddCommand(serveCmd(&envFile))
	cmd.AddCommand(applyCmd(&envFile))
	cmd.AddCommand(replayCmd(&envFile))
	cmd.AddCommand(summaryCmd(&envFile))
	cmd.AddCommand(versionCmd())

	return cmd
}

// loadConfig loads configuration from .env file and environment variables.
func loadConfig(envFile string) (config.AppConfig, error) {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// offlineClient opens a client for one-shot commands. The worker stays
// stopped and logs go to stderr so stdout carries only command output.
func offlineClient(cfg config.AppConfig) (*marketbasket.Client, *slog.Logger, error) {
	logger := log.NewLoggerWithWriter(os.Stderr, cfg.LogFormat(), cfg.LogLevel())
	client, err := marketbasket.New(
		marketbasket.WithAppConfig(cfg),
		marketbasket.WithLogger(logger),
		marketbasket.WithoutWorker(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create client: %w", err)
	}
	return client, logger, nil
}
