package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/ferry/internal/cli/output"
	"github.com/marmos91/ferry/pkg/api/handlers"
	"github.com/marmos91/ferry/pkg/apiclient"
	"github.com/marmos91/ferry/pkg/config"
)

var (
	statusURL     string
	statusTimeout time.Duration
	statusOutput  string
)

// errNotReady makes `ferry status` exit non-zero for scripts and probes.
var errNotReady = errors.New("worker is not ready")

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the readiness of a running worker",
	Long: `Query the health server of a running worker and print the state of
each queue consumer.

Without --url the address is derived from metrics.port in the config.

Examples:
  ferry status
  ferry status --url http://worker-0:9090 -o json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusURL, "url", "", "Health server base URL (default: http://localhost:<metrics.port>)")
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 5*time.Second, "Request timeout")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	url := statusURL
	if url == "" {
		cfg, err := config.Load(GetConfigFile())
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		url = fmt.Sprintf("http://localhost:%d", cfg.Metrics.Port)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), statusTimeout)
	defer cancel()

	ready, err := apiclient.New(url).WithTimeout(statusTimeout).Ready(ctx)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", url, err)
	}

	if err := output.Print(cmd.OutOrStdout(), format, consumerTable(ready.Consumers)); err != nil {
		return err
	}
	if !ready.Ready {
		if ready.Error != "" {
			return fmt.Errorf("%w: %s", errNotReady, ready.Error)
		}
		return errNotReady
	}
	return nil
}

type consumerTable []handlers.ConsumerHealth

func (t consumerTable) Headers() []string {
	return []string{"Queue", "Running", "Received", "Acked", "Dropped", "Requeued", "Last Error"}
}

func (t consumerTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, c := range t {
		lastErr := c.LastError
		if lastErr != "" && c.LastErrAt != "" {
			lastErr = c.LastErrAt + " " + lastErr
		}
		rows = append(rows, []string{
			c.Queue,
			strconv.FormatBool(c.Running),
			strconv.FormatUint(c.Received, 10),
			strconv.FormatUint(c.Acked, 10),
			strconv.FormatUint(c.Dropped, 10),
			strconv.FormatUint(c.Requeued, 10),
			lastErr,
		})
	}
	return rows
}
