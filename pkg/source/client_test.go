package source

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/ferry/pkg/transfer"
)

const testFile = "0123456789abcdefghijklmnopqrstuvwxyz"

// newStore serves testFile ranges under /upload/file/ and records the last
// request it saw.
func newStore(t *testing.T, last *atomic.Pointer[http.Request]) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /upload/file/{name}", func(w http.ResponseWriter, r *http.Request) {
		last.Store(r)
		switch r.PathValue("name") {
		case "gone.bin":
			http.Error(w, "no such file", http.StatusNotFound)
			return
		case "busy.bin":
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		case "denied.bin":
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		end, _ := strconv.Atoi(r.URL.Query().Get("end"))
		end = min(end, len(testFile))
		_, _ = io.WriteString(w, testFile[start:end])
	})
	mux.HandleFunc("DELETE /upload/file/{task}", func(w http.ResponseWriter, r *http.Request) {
		last.Store(r)
		if r.PathValue("task") == "missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenRange(t *testing.T) {
	var last atomic.Pointer[http.Request]
	srv := newStore(t, &last)

	c, err := New(Config{BaseURL: srv.URL, Timeout: time.Second}, StaticToken("secret"))
	require.NoError(t, err)

	body, err := c.Open(context.Background(), "a.bin", 4, 6)
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "456789", string(data))

	req := last.Load()
	require.NotNil(t, req)
	assert.Equal(t, "4", req.URL.Query().Get("start"))
	assert.Equal(t, "10", req.URL.Query().Get("end"), "end is offset+size")
	assert.Equal(t, "Bearer secret", req.Header.Get("Authorization"))
}

func TestOpenClassifiesStatus(t *testing.T) {
	var last atomic.Pointer[http.Request]
	srv := newStore(t, &last)

	c, err := New(Config{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	_, err = c.Open(context.Background(), "gone.bin", 0, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, transfer.ErrNotFound)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Contains(t, se.Error(), "no such file")

	_, err = c.Open(context.Background(), "busy.bin", 0, 1)
	assert.ErrorIs(t, err, transfer.ErrTransient)
	assert.NotErrorIs(t, err, transfer.ErrNotFound)

	_, err = c.Open(context.Background(), "denied.bin", 0, 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, transfer.ErrTransient)
	assert.NotErrorIs(t, err, transfer.ErrNotFound)

	assert.Empty(t, last.Load().Header.Get("Authorization"), "no token source, no header")
}

func TestOpenUnreachableIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: url}, nil)
	require.NoError(t, err)

	_, err = c.Open(context.Background(), "a.bin", 0, 1)
	assert.ErrorIs(t, err, transfer.ErrTransient)
}

func TestOpenCancelledContext(t *testing.T) {
	var last atomic.Pointer[http.Request]
	srv := newStore(t, &last)

	c, err := New(Config{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = c.Open(ctx, "a.bin", 0, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, transfer.ErrTransient)
}

func TestCleanup(t *testing.T) {
	var last atomic.Pointer[http.Request]
	srv := newStore(t, &last)

	c, err := New(Config{BaseURL: srv.URL, Prefix: "/upload/file/"}, StaticToken("tok"))
	require.NoError(t, err)

	require.NoError(t, c.Cleanup(context.Background(), "task-1"))
	req := last.Load()
	assert.Equal(t, http.MethodDelete, req.Method)
	assert.Equal(t, "/upload/file/task-1", req.URL.Path)

	err = c.Cleanup(context.Background(), "missing")
	assert.ErrorIs(t, err, transfer.ErrNotFound)
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.Error(t, err)

	_, err = New(Config{BaseURL: "ftp://example.com"}, nil)
	assert.Error(t, err)

	c, err := New(Config{BaseURL: "http://example.com/api"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/api/upload/file/x.bin", c.resolve("x.bin", nil).String())
}

type failingTokens struct{}

func (failingTokens) Token() (string, error) { return "", ErrSigningKeyTooShort }

func TestTokenFailureAbortsRequest(t *testing.T) {
	var last atomic.Pointer[http.Request]
	srv := newStore(t, &last)

	c, err := New(Config{BaseURL: srv.URL}, failingTokens{})
	require.NoError(t, err)

	_, err = c.Open(context.Background(), "a.bin", 0, 1)
	assert.ErrorIs(t, err, ErrSigningKeyTooShort)
	assert.Nil(t, last.Load())
}
