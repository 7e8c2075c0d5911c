package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/marmos91/ferry/pkg/queue"
)

// Consumer is the view of a queue consumer the health endpoints need.
type Consumer interface {
	Queue() string
	Running() bool
	Stats() queue.Stats
}

// HealthHandler handles health check endpoints.
//
// Health endpoints are unauthenticated and provide:
//   - Liveness probe: is the process serving HTTP?
//   - Readiness probe: is every consumer receiving deliveries?
type HealthHandler struct {
	consumers []Consumer
}

// NewHealthHandler creates a new health handler over consumers.
func NewHealthHandler(consumers ...Consumer) *HealthHandler {
	return &HealthHandler{consumers: consumers}
}

// Liveness handles GET /health. It always succeeds while the HTTP server
// is responsive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "ferry",
	}))
}

// ConsumerHealth is the readiness of one consumer.
type ConsumerHealth struct {
	Queue     string `json:"queue"`
	Running   bool   `json:"running"`
	Received  uint64 `json:"received"`
	Acked     uint64 `json:"acked"`
	Dropped   uint64 `json:"dropped"`
	Requeued  uint64 `json:"requeued"`
	LastError string `json:"last_error,omitempty"`
	LastErrAt string `json:"last_error_at,omitempty"`
}

// Readiness handles GET /health/ready. It returns 503 unless every
// consumer is running.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if len(h.consumers) == 0 {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("no consumers registered", nil))
		return
	}

	ready := true
	out := make([]ConsumerHealth, 0, len(h.consumers))
	for _, c := range h.consumers {
		st := c.Stats()
		ch := ConsumerHealth{
			Queue:    c.Queue(),
			Running:  c.Running(),
			Received: st.Received,
			Acked:    st.Acked,
			Dropped:  st.Dropped,
			Requeued: st.Requeued,
		}
		if st.LastError != nil {
			ch.LastError = st.LastError.Error()
			ch.LastErrAt = st.LastErrorAt.UTC().Format(time.RFC3339)
		}
		if !ch.Running {
			ready = false
		}
		out = append(out, ch)
	}

	if !ready {
		writeJSON(w, http.StatusServiceUnavailable,
			unhealthyResponse(fmt.Sprintf("%d of %d consumers not running", notRunning(out), len(out)), out))
		return
	}
	writeJSON(w, http.StatusOK, healthyResponse(out))
}

func notRunning(cs []ConsumerHealth) int {
	n := 0
	for _, c := range cs {
		if !c.Running {
			n++
		}
	}
	return n
}
