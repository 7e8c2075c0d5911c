// Package journal implements the transfer journal subcommands.
package journal

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/ferry/pkg/config"
	"github.com/marmos91/ferry/pkg/journal"
)

// Cmd is the journal subcommand.
var Cmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the transfer journal",
	Long: `Inspect and prune the local record of processed deliveries.

The journal records every attempt with its outcome and whether the capacity
it reserved was consumed or released, so reservation leaks can be found and
reconciled.

Subcommands:
  list   List recent attempts
  purge  Delete old attempts`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(purgeCmd)
}

// openStore opens the journal named by the loaded configuration. The
// enabled flag is ignored so a disabled journal can still be inspected.
func openStore(cmd *cobra.Command) (*journal.Store, error) {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	store, err := journal.Open(cfg.Journal)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return store, nil
}
