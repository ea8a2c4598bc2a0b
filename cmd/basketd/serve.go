package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/helixml/marketbasket"
	"github.com/helixml/marketbasket/infrastructure/api"
	"github.com/helixml/marketbasket/internal/config"
	"github.com/helixml/marketbasket/internal/log"
)

func serveCmd(envFile *string) *cobra.Command {
	var (
		host         string
		port         int
		drainTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server and projection worker",
		Long: `Start the HTTP API server and projection worker.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables
  4. Command line flags

Environment variables:
  HOST                   Server host to bind to (default: 0.0.0.0)
  PORT                   Server port to listen on (default: 8080)
  DATA_DIR               Data directory (default: ~/.marketbasket)
  DB_URL                 Database URL (default: sqlite:///{data_dir}/basket.db)
  LOG_LEVEL              Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  LOG_FORMAT             Log format: pretty, json (default: pretty)
  API_KEYS               Comma-separated keys required on write endpoints
  CORS_ALLOWED_ORIGINS   Comma-separated origins allowed to call the API
  WORKER_COUNT           Inbox partitions, one goroutine each (default: 4)
  POLL_INTERVAL_MS       Idle partition poll interval (default: 500)
  MAX_RELATED_PRODUCTS   Distinct related products per event, 0 for no limit (default: 12)
  SAVE_RETRY_ATTEMPTS    Merge attempts on version conflicts (default: 3)
  MAX_EVENT_ATTEMPTS     Failures before an event is dead-lettered (default: 5)

On SIGINT or SIGTERM the server stops accepting requests, then waits up to
--drain-timeout for queued events to be applied.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*envFile, host, port, drainTimeout)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Server host to bind to (default: 0.0.0.0)")
	cmd.Flags().IntVar(&port, "port", 0, "Server port to listen on (default: 8080)")
	cmd.Flags().DurationVar(&drainTimeout, "drain-timeout", 30*time.Second, "How long to wait for queued events on shutdown")

	return cmd
}

func runServe(envFile, host string, port int, drainTimeout time.Duration) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	cfg = applyServeOverrides(cfg, host, port)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return err
	}

	logger := log.Configure(cfg)
	attrs := append([]slog.Attr{slog.String("version", version)}, cfg.LogAttrs()...)
	logger.LogAttrs(context.Background(), slog.LevelInfo, "starting basketd", attrs...)

	client, err := marketbasket.New(
		marketbasket.WithAppConfig(cfg),
		marketbasket.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close client", slog.Any("error", err))
		}
	}()

	apiServer := api.NewAPIServer(client).WithCORSAllowedOrigins(cfg.CORSAllowedOrigins())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- apiServer.ListenAndServe(cfg.Addr())
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
	}
	if err := <-serveErr; err != nil {
		logger.Error("server error", slog.Any("error", err))
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), drainTimeout)
	defer cancelDrain()
	if err := client.Drain(drainCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			pending, _ := client.Events.Count(context.Background())
			logger.Warn("drain timed out, events stay queued for the next start", slog.Int64("pending", pending))
			return nil
		}
		return fmt.Errorf("drain inbox: %w", err)
	}
	logger.Info("inbox drained")
	return nil
}

// applyServeOverrides applies command line flag overrides to the config.
func applyServeOverrides(cfg config.AppConfig, host string, port int) config.AppConfig {
	var opts []config.AppConfigOption

	if host != "" {
		opts = append(opts, config.WithHost(host))
	}
	if port != 0 {
		opts = append(opts, config.WithPort(port))
	}

	return cfg.Apply(opts...)
}
