package config

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/ferry/internal/cli/output"
	"github.com/marmos91/ferry/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the ferry configuration with environment overrides applied.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  ferry config validate --config /etc/ferry/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	var warnings []string
	if cfg.Source.Auth.Token == "" && cfg.Source.Auth.SigningKey == "" {
		warnings = append(warnings, "no file-store credentials: requests are sent without Authorization")
	}
	if !cfg.Broker.DurableQueues() {
		warnings = append(warnings, "queues are declared non-durable")
	}
	if cfg.Journal.Enabled && cfg.Journal.Retention == 0 {
		warnings = append(warnings, "journal retention is unlimited")
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	_, _ = fmt.Fprintln(out, "\nConfiguration summary:")
	return output.SimpleTable(out, [][2]string{
		{"Upload queue", cfg.Broker.UploadQueue},
		{"Delete queue", cfg.Broker.DeleteQueue},
		{"File service", cfg.FileService.Address},
		{"Source", cfg.Source.BaseURL},
		{"Destination", cfg.Destination.Driver},
		{"Chunk size", cfg.Stream.ChunkSize.String()},
		{"Requeue open failures", strconv.FormatBool(cfg.Upload.RequeueOpenFailures)},
		{"Journal", strconv.FormatBool(cfg.Journal.Enabled)},
		{"HTTP port", strconv.Itoa(cfg.Metrics.Port)},
		{"Log level", cfg.Logging.Level},
	})
}
