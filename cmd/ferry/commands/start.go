package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/ferry/internal/logger"
	"github.com/marmos91/ferry/internal/telemetry"
	"github.com/marmos91/ferry/pkg/config"
	"github.com/marmos91/ferry/pkg/worker"

	// Import prometheus metrics to register init() functions
	_ "github.com/marmos91/ferry/pkg/metrics/prometheus"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the transfer worker",
	Long: `Start consuming the upload and delete queues.

The worker runs in the foreground and exits non-zero when the broker
connection is lost, so a process supervisor should restart it.

Examples:
  # Start with the default config location
  ferry start

  # Start with a custom config file
  ferry start --config /etc/ferry/config.yaml

  # Configure from the environment only
  RABBITMQ_URI=amqp://rabbit FILE_MS_URI=file-ms:50051 SERVER_URI=http://server:3000 ferry start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Exporters must outlive the signal context to flush on the way out.
	flushCtx := context.WithoutCancel(ctx)

	telemetryShutdown, err := telemetry.Init(flushCtx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "ferry",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(flushCtx); err != nil {
			logger.Error("telemetry shutdown error", logger.KeyError, err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "ferry",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.KeyError, err)
		}
	}()

	logger.Info("Starting ferry", "version", Version, "commit", Commit)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}

	w, err := worker.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	if err := w.Serve(ctx); err != nil {
		return err
	}
	logger.Info("ferry stopped")
	return nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			return configFile
		}
		return "environment and defaults (file not found: " + configFile + ")"
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "environment and defaults"
}
