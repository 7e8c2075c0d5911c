// Package api serves the operational HTTP endpoints of the worker: health
// probes and Prometheus metrics.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/ferry/internal/logger"
	"github.com/marmos91/ferry/pkg/api/handlers"
	"github.com/marmos91/ferry/pkg/metrics"
)

// NewRouter creates the chi router.
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /health/ready - Readiness probe (all consumers running)
//   - GET /metrics - Prometheus exposition, when metrics are enabled
func NewRouter(consumers ...handlers.Consumer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	healthHandler := handlers.NewHealthHandler(consumers...)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	if metrics.IsEnabled() {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	return r
}

// requestLogger logs each request with the internal logger. Probe and
// scrape traffic is frequent, so completions are logged at DEBUG.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Debug("HTTP request completed",
			"request_id", middleware.GetReqID(r.Context()),
			logger.KeyMethod, r.Method,
			"path", r.URL.Path,
			logger.KeyStatus, ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.KeyDurationMs, logger.Duration(start),
		)
	})
}
