package metrics

import (
	"github.com/marmos91/ferry/pkg/queue"
)

// NewTransferMetrics returns the Prometheus-backed delivery metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called) or no
// implementation has been linked in. Consumers accept a nil Metrics and
// record nothing.
//
//	metrics.InitRegistry()
//	m := metrics.NewTransferMetrics()
//	c := queue.NewConsumer(ch, cfg, handler, queue.WithMetrics(m))
func NewTransferMetrics() queue.Metrics {
	if !IsEnabled() || newPrometheusTransferMetrics == nil {
		return nil
	}
	return newPrometheusTransferMetrics()
}

// newPrometheusTransferMetrics is set by pkg/metrics/prometheus.
var newPrometheusTransferMetrics func() queue.Metrics

// RegisterTransferMetricsConstructor registers the Prometheus implementation.
// Called by pkg/metrics/prometheus during package initialization.
func RegisterTransferMetricsConstructor(constructor func() queue.Metrics) {
	newPrometheusTransferMetrics = constructor
}
