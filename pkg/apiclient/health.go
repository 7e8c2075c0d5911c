package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/marmos91/ferry/pkg/api/handlers"
)

// Readiness is the decoded result of GET /health/ready.
type Readiness struct {
	Ready     bool
	Error     string
	Consumers []handlers.ConsumerHealth
}

// Live reports whether the worker answers its liveness probe.
func (c *Client) Live(ctx context.Context) error {
	resp, code, err := c.get(ctx, "/health")
	if err != nil {
		return err
	}
	if code != http.StatusOK || resp.Status != "healthy" {
		return fmt.Errorf("worker not live: %s", resp.Status)
	}
	return nil
}

// Ready fetches the per-consumer readiness report.
func (c *Client) Ready(ctx context.Context) (*Readiness, error) {
	resp, code, err := c.get(ctx, "/health/ready")
	if err != nil {
		return nil, err
	}

	out := &Readiness{
		Ready: code == http.StatusOK && resp.Status == "healthy",
		Error: resp.Error,
	}
	if resp.Data == nil {
		return out, nil
	}

	// Data arrives as generic JSON; round-trip it into the typed view.
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode consumers: %w", err)
	}
	if err := json.Unmarshal(raw, &out.Consumers); err != nil {
		return nil, fmt.Errorf("failed to decode consumers: %w", err)
	}
	return out, nil
}
