package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/ferry/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a configuration file populated with defaults.

Examples:
  # Write to $XDG_CONFIG_HOME/ferry/config.yaml
  ferry config init

  # Write to a custom path, replacing any existing file
  ferry config init --config /etc/ferry/config.yaml --force`,
	RunE: runConfigInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing configuration file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	var err error
	if configPath != "" {
		err = config.InitConfigToPath(configPath, initForce)
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Set broker.url, file_service.address and source.base_url")
	_, _ = fmt.Fprintf(out, "  2. Start the worker with: ferry start --config %s\n", configPath)
	return nil
}
