package journal

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/ferry/internal/bytesize"
	"github.com/marmos91/ferry/internal/cli/output"
	"github.com/marmos91/ferry/pkg/journal"
)

var (
	listLimit    int
	listOutcome  string
	listPipeline string
	listTask     string
	listSince    time.Duration
	listLeaks    bool
	listOutput   string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent attempts",
	Long: `List journaled attempts, newest first.

Examples:
  # Last 20 requeued uploads
  ferry journal list --pipeline upload --outcome requeue --limit 20

  # Attempts whose reservation was neither consumed nor released
  ferry journal list --leaks

  # Everything for one task in the last day, as JSON
  ferry journal list --task 65f0c1 --since 24h -o json`,
	RunE: runList,
}

func init() {
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "Maximum number of entries")
	listCmd.Flags().StringVar(&listOutcome, "outcome", "", "Only this outcome (ack|drop|requeue)")
	listCmd.Flags().StringVar(&listPipeline, "pipeline", "", "Only this pipeline (upload|delete)")
	listCmd.Flags().StringVar(&listTask, "task", "", "Only this task id")
	listCmd.Flags().DurationVar(&listSince, "since", 0, "Only entries newer than this age")
	listCmd.Flags().BoolVar(&listLeaks, "leaks", false, "Only entries with a leaked reservation")
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

func runList(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(listOutput)
	if err != nil {
		return err
	}

	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	filter := journal.Filter{
		Pipeline:  listPipeline,
		Outcome:   listOutcome,
		TaskID:    listTask,
		LeaksOnly: listLeaks,
		Limit:     listLimit,
	}
	if listSince > 0 {
		filter.Since = time.Now().Add(-listSince)
	}

	entries, err := store.List(cmd.Context(), filter)
	if err != nil {
		return err
	}
	return output.Print(cmd.OutOrStdout(), format, entryTable(entries))
}

// entryTable renders journal entries as a table and marshals as the plain
// entry list.
type entryTable []journal.Entry

func (t entryTable) Headers() []string {
	return []string{"Time", "Pipeline", "Task", "Outcome", "Stage", "Account", "Part", "Bytes", "Released", "Duration", "Error"}
}

func (t entryTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, e := range t {
		released := strconv.FormatBool(e.Released)
		if e.Leaked() {
			released = "LEAKED"
		}
		rows = append(rows, []string{
			e.CreatedAt.Local().Format(time.DateTime),
			e.Pipeline,
			e.TaskID,
			e.Outcome,
			e.Stage,
			e.AccountID,
			e.PartID,
			bytesize.ByteSize(e.Bytes).String(),
			released,
			(time.Duration(e.DurationMs) * time.Millisecond).String(),
			truncate(e.Error, 60),
		})
	}
	return rows
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
