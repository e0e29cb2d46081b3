package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Cells(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := New("test", reg)
	require.NoError(t, err)

	r.CellStarted(StageTrain)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.inflight.WithLabelValues(StageTrain)))

	r.CellFinished(StageTrain, "linear", StatusOK, 10*time.Millisecond)
	r.CellStarted(StageTrain)
	r.CellFinished(StageTrain, "linear", StatusFailed, time.Millisecond)
	r.CellSkipped(StageTrain, "linear")

	assert.Equal(t, 0.0, testutil.ToFloat64(r.inflight.WithLabelValues(StageTrain)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cells.WithLabelValues(StageTrain, "linear", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cells.WithLabelValues(StageTrain, "linear", StatusFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cells.WithLabelValues(StageTrain, "linear", StatusSkipped)))
	assert.Equal(t, 1, testutil.CollectAndCount(r.cellDuration))
}

func TestRecorder_ReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := New("test", reg)
	require.NoError(t, err)
	b, err := New("test", reg)
	require.NoError(t, err)

	a.RunFinished(StatusOK, time.Second)
	b.RunFinished(StatusOK, time.Second)
	assert.Equal(t, 2.0, testutil.ToFloat64(a.runs.WithLabelValues(StatusOK)))
}

func TestRecorder_Nil(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.CellStarted(StagePredict)
		r.CellFinished(StagePredict, "m", StatusOK, time.Millisecond)
		r.CellSkipped(StagePredict, "m")
		r.RunFinished(StatusFailed, time.Second)
	})
}
