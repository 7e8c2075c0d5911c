// Package prometheus implements the ferry metrics interfaces with the
// Prometheus client. Importing it links the implementation into
// pkg/metrics constructors.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/ferry/pkg/metrics"
	"github.com/marmos91/ferry/pkg/queue"
	"github.com/marmos91/ferry/pkg/transfer"
)

func init() {
	metrics.RegisterTransferMetricsConstructor(func() queue.Metrics {
		return NewTransferMetrics()
	})
}

// transferMetrics is the Prometheus implementation of queue.Metrics.
type transferMetrics struct {
	tasksTotal    *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
	bytes         prometheus.Counter
	releasesTotal *prometheus.CounterVec
	compensations *prometheus.CounterVec
	inFlight      *prometheus.GaugeVec
}

// NewTransferMetrics creates the delivery collectors on the global registry.
// It must be called at most once per registry.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewTransferMetrics() queue.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}
	return newTransferMetrics(metrics.GetRegistry())
}

func newTransferMetrics(reg prometheus.Registerer) *transferMetrics {
	return &transferMetrics{
		tasksTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ferry_tasks_total",
				Help: "Total number of settled deliveries by pipeline and outcome",
			},
			[]string{"pipeline", "outcome"},
		),
		taskDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "ferry_task_duration_seconds",
				Help: "Time from receiving a delivery to its outcome",
				Buckets: []float64{
					0.01, // catalog-only drops
					0.05,
					0.1,
					0.5,
					1,
					5,
					15,
					60,  // large parts
					300, // very large parts on slow links
				},
			},
			[]string{"pipeline", "outcome"},
		),
		bytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "ferry_bytes_transferred_total",
				Help: "Total bytes forwarded from the source to the destination",
			},
		),
		releasesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ferry_capacity_releases_total",
				Help: "Capacity releases by status; failures leave reserved capacity behind",
			},
			[]string{"status"}, // "ok", "error"
		),
		compensations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ferry_compensations_total",
				Help: "Orphan part deletions after a failed catalog record, by status",
			},
			[]string{"status"}, // "ok", "error"
		),
		inFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ferry_deliveries_in_flight",
				Help: "Deliveries currently being processed by queue",
			},
			[]string{"queue"},
		),
	}
}

func (m *transferMetrics) ObserveReport(r *transfer.Report) {
	outcome := r.Outcome.String()
	m.tasksTotal.WithLabelValues(r.Pipeline, outcome).Inc()
	m.taskDuration.WithLabelValues(r.Pipeline, outcome).Observe(r.Duration.Seconds())

	if r.Bytes > 0 {
		m.bytes.Add(float64(r.Bytes))
	}

	switch {
	case r.Released:
		m.releasesTotal.WithLabelValues("ok").Inc()
	case r.ReleaseErr != nil:
		m.releasesTotal.WithLabelValues("error").Inc()
	}

	switch {
	case r.Compensated:
		m.compensations.WithLabelValues("ok").Inc()
	case r.CompensationErr != nil:
		m.compensations.WithLabelValues("error").Inc()
	}
}

func (m *transferMetrics) DeliveryStarted(name string) {
	m.inFlight.WithLabelValues(name).Inc()
}

func (m *transferMetrics) DeliveryFinished(name string) {
	m.inFlight.WithLabelValues(name).Dec()
}
