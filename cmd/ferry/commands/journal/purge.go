package journal

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/ferry/internal/cli/prompt"
)

var (
	purgeOlderThan time.Duration
	purgeYes       bool
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete old attempts",
	Long: `Delete journal entries older than the given age.

Examples:
  # Delete entries older than 30 days after confirmation
  ferry journal purge --older-than 720h

  # Same, without the prompt
  ferry journal purge --older-than 720h --yes`,
	RunE: runPurge,
}

func init() {
	purgeCmd.Flags().DurationVar(&purgeOlderThan, "older-than", 0, "Delete entries older than this age (required)")
	purgeCmd.Flags().BoolVarP(&purgeYes, "yes", "y", false, "Skip confirmation")
	_ = purgeCmd.MarkFlagRequired("older-than")
}

func runPurge(cmd *cobra.Command, args []string) error {
	if purgeOlderThan <= 0 {
		return errors.New("--older-than must be positive")
	}
	cutoff := time.Now().Add(-purgeOlderThan)

	ok, err := prompt.ConfirmWithForce(
		fmt.Sprintf("Delete journal entries older than %s", cutoff.Local().Format(time.DateTime)), purgeYes)
	if err != nil {
		return err
	}
	if !ok {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
		return nil
	}

	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	n, err := store.Purge(cmd.Context(), cutoff)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Purged %d entries\n", n)
	return nil
}
