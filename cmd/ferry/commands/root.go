// Package commands implements the ferry command line.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/ferry/cmd/ferry/commands/config"
	"github.com/marmos91/ferry/cmd/ferry/commands/journal"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "ferry",
	Short: "ferry - file part transfer worker",
	Long: `ferry consumes file part tasks from AMQP queues. Upload tasks stream a
byte range from the file-store into account storage and record the part in
the file catalog. Delete tasks remove a recorded part.

Use "ferry [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once by main.main().
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/ferry/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(config.Cmd)
	rootCmd.AddCommand(journal.Cmd)
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}
