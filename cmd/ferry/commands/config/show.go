package config

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/ferry/internal/cli/output"
	"github.com/marmos91/ferry/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long: `Display the configuration after file, environment and defaults are merged.

Secrets are printed as loaded; do not paste the output in public places.

Examples:
  # Show as YAML
  ferry config show

  # Show as JSON
  ferry config show --output json`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}
	if format == output.FormatTable {
		format = output.FormatYAML
	}

	return output.Print(cmd.OutOrStdout(), format, cfg)
}
