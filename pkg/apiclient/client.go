// Package apiclient queries the operational HTTP endpoints of a running
// ferry worker.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/marmos91/ferry/pkg/api/handlers"
)

// Client talks to a worker's health server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the worker at baseURL, e.g. http://localhost:9090.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// WithTimeout returns a copy of the client with a different request timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	return &Client{
		baseURL:    c.baseURL,
		httpClient: &http.Client{Timeout: d},
	}
}

// get performs a GET request and decodes the health envelope.
//
// 503 is not an error here: readiness reports unhealthy consumers with that
// status and a normal body.
func (c *Client) get(ctx context.Context, path string) (*handlers.Response, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	var out handlers.Response
	if err := json.Unmarshal(body, &out); err != nil || out.Status == "" {
		return nil, resp.StatusCode, &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}
	return &out, resp.StatusCode, nil
}
