package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/ferry/pkg/api/handlers"
	"github.com/marmos91/ferry/pkg/queue"
)

type stubConsumer struct {
	queue   string
	running bool
	stats   queue.Stats
}

func (s stubConsumer) Queue() string      { return s.queue }
func (s stubConsumer) Running() bool      { return s.running }
func (s stubConsumer) Stats() queue.Stats { return s.stats }

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, handlers.Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var resp handlers.Response
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	}
	return rec, resp
}

func TestLiveness(t *testing.T) {
	rec, resp := get(t, NewRouter(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, map[string]any{"service": "ferry"}, resp.Data)
}

func TestReadiness(t *testing.T) {
	upload := stubConsumer{queue: "FILE_PART_UPLOAD", running: true, stats: queue.Stats{Received: 3, Acked: 2, Requeued: 1}}
	del := stubConsumer{queue: "FILE_PART_DELETE", running: true}

	rec, resp := get(t, NewRouter(upload, del), "/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", resp.Status)

	items, ok := resp.Data.([]any)
	require.True(t, ok)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, "FILE_PART_UPLOAD", first["queue"])
	assert.Equal(t, 2.0, first["acked"])

	del.running = false
	del.stats = queue.Stats{LastError: errors.New("channel closed"), LastErrorAt: time.Now()}
	rec, resp = get(t, NewRouter(upload, del), "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "1 of 2 consumers not running", resp.Error)
}

func TestReadinessWithoutConsumers(t *testing.T) {
	rec, resp := get(t, NewRouter(), "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "no consumers registered", resp.Error)
}

func TestRootRedirects(t *testing.T) {
	rec, _ := get(t, NewRouter(), "/")
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/health", rec.Header().Get("Location"))
}

func TestServerLifecycle(t *testing.T) {
	const port = 19391
	srv := NewServer(Config{Port: port}, stubConsumer{queue: "q", running: true})
	assert.Equal(t, port, srv.Port())

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() { errChan <- srv.Start(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-errChan)
	assert.NoError(t, srv.Stop(context.Background()), "second stop is a no-op")
}
