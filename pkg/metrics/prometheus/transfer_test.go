package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/marmos91/ferry/pkg/transfer"
)

func TestObserveReport(t *testing.T) {
	m := newTransferMetrics(prometheus.NewRegistry())

	m.ObserveReport(&transfer.Report{
		Pipeline: transfer.PipelineUpload,
		Outcome:  transfer.Ack,
		Recorded: true,
		Bytes:    4096,
		Duration: 2 * time.Second,
	})
	m.ObserveReport(&transfer.Report{
		Pipeline:    transfer.PipelineUpload,
		Outcome:     transfer.Ack,
		Released:    true,
		Compensated: true,
		Bytes:       1024,
		Err:         transfer.ErrCatalogRejected,
	})
	m.ObserveReport(&transfer.Report{
		Pipeline:        transfer.PipelineUpload,
		Outcome:         transfer.Requeue,
		ReleaseErr:      errors.New("unavailable"),
		CompensationErr: errors.New("unavailable"),
	})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.tasksTotal.WithLabelValues("upload", "ack")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksTotal.WithLabelValues("upload", "requeue")))
	assert.Equal(t, 5120.0, testutil.ToFloat64(m.bytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.releasesTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.releasesTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.compensations.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.compensations.WithLabelValues("error")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.taskDuration), "one series per pipeline and outcome")
}

func TestInFlight(t *testing.T) {
	m := newTransferMetrics(prometheus.NewRegistry())

	m.DeliveryStarted("FILE_PART_UPLOAD")
	m.DeliveryStarted("FILE_PART_UPLOAD")
	m.DeliveryFinished("FILE_PART_UPLOAD")
	m.DeliveryStarted("FILE_PART_DELETE")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.inFlight.WithLabelValues("FILE_PART_UPLOAD")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inFlight.WithLabelValues("FILE_PART_DELETE")))
}
