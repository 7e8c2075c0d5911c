// Package source implements the HTTP client for the source file-store that
// holds uploaded files until their parts are moved to destination storage.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/marmos91/ferry/internal/logger"
	"github.com/marmos91/ferry/internal/telemetry"
	"github.com/marmos91/ferry/pkg/transfer"
)

// DefaultPrefix is the path under which the file-store serves uploads.
const DefaultPrefix = "upload/file"

// Config holds file-store connection settings.
type Config struct {
	// BaseURL is the file-store root, e.g. "http://server:3000".
	BaseURL string

	// Prefix is joined between BaseURL and the file name. Default: "upload/file"
	Prefix string

	// Timeout bounds the wait for response headers and the whole cleanup
	// request. It never cuts a body that is already streaming.
	Timeout time.Duration
}

// Client reads byte ranges from the file-store. It implements
// transfer.SourceFetcher.
type Client struct {
	base       *url.URL
	prefix     string
	timeout    time.Duration
	tokens     TokenSource
	httpClient *http.Client
}

var _ transfer.SourceFetcher = (*Client)(nil)

// New creates a Client. tokens may be nil for an unauthenticated store.
func New(cfg Config, tokens TokenSource) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("source base url is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid source base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported source url scheme %q", base.Scheme)
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.Timeout

	return &Client{
		base:       base,
		prefix:     cfg.Prefix,
		timeout:    cfg.Timeout,
		tokens:     tokens,
		httpClient: &http.Client{Transport: transport},
	}, nil
}

// Open requests [offset, offset+size) of fileName and returns the response
// body. A 404 is classified as transfer.ErrNotFound; 429, 5xx and network
// failures as transfer.ErrTransient.
func (c *Client) Open(ctx context.Context, fileName string, offset, size uint64) (io.ReadCloser, error) {
	ctx, span := telemetry.StartClientSpan(ctx, telemetry.SpanSourceFetch,
		telemetry.Filename(fileName), telemetry.Offset(offset), telemetry.Size(size))
	defer span.End()

	query := url.Values{}
	query.Set("start", strconv.FormatUint(offset, 10))
	query.Set("end", strconv.FormatUint(offset+size, 10))

	resp, err := c.do(ctx, http.MethodGet, c.resolve(fileName, query))
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}

	logger.DebugCtx(ctx, "Source stream opened",
		logger.KeyFilename, fileName,
		logger.KeyOffset, offset,
		logger.KeySize, size,
		logger.KeyStatus, resp.StatusCode)
	return resp.Body, nil
}

// Cleanup asks the file-store to drop the upload session of taskID.
func (c *Client) Cleanup(ctx context.Context, taskID string) error {
	ctx, span := telemetry.StartClientSpan(ctx, telemetry.SpanSourceDelete, telemetry.TaskID(taskID))
	defer span.End()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.do(ctx, http.MethodDelete, c.resolve(taskID, nil))
	if err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}
	drain(resp.Body)
	return nil
}

func (c *Client) resolve(name string, query url.Values) *url.URL {
	u := c.base.JoinPath(c.prefix, name)
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u
}

// do sends the request and returns the response only for 2xx statuses.
func (c *Client) do(ctx context.Context, method string, u *url.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return nil, err
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s %s: %w", method, u.Path, ctxErr)
		}
		return nil, fmt.Errorf("%s %s: %w: %w", method, u.Path, transfer.ErrTransient, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer drain(resp.Body)
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, classify(&StatusError{
			Method:     method,
			Path:       u.Path,
			StatusCode: resp.StatusCode,
			Message:    string(body),
		})
	}
	return resp, nil
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}
