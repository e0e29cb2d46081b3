package model

import (
	"context"
	"testing"

	"github.com/soltixdb/directcv/internal/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trendLags is y[i] = i with the horizon-2 lags of y
func trendLags() *series.Frame {
	n := 10
	y := make([]float64, n)
	lag2 := make([]float64, n)
	lag3 := make([]float64, n)
	for i := 0; i < n; i++ {
		t := float64(i + 3)
		y[i], lag3[i], lag2[i] = t, t-3, t-2
	}
	return series.MustFrame(
		series.NumericColumn("y", y),
		series.NumericColumn("y_lag_3", lag3),
		series.NumericColumn("y_lag_2", lag2),
	)
}

func TestMovingAverage(t *testing.T) {
	ctx := context.Background()
	data := trendLags()
	m := &MovingAverage{}
	assert.Equal(t, "sma", m.Name())

	fitted, err := m.Train(ctx, data, 0)
	require.NoError(t, err)
	out, err := m.Predict(ctx, fitted, data.Drop("y"))
	require.NoError(t, err)
	pred, err := PredictionValues(out, data.Len())
	require.NoError(t, err)
	assert.InDelta(t, 0.5, pred[0], 1e-12)

	hp, err := m.Hyperparameters(fitted)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"window_size": 2, "lag": 2}, hp)

	// a one-lag window is persistence
	fitted, err = (&MovingAverage{Window: 1}).Train(ctx, data, 0)
	require.NoError(t, err)
	out, err = m.Predict(ctx, fitted, data.Drop("y"))
	require.NoError(t, err)
	assert.Equal(t, 1.0, out.Float(0, 0))
}

func TestExponential(t *testing.T) {
	ctx := context.Background()
	data := trendLags()
	e := NewExponential(nil)
	assert.Equal(t, DefaultAlphas, e.Alphas)

	fitted, err := e.Train(ctx, data, 0)
	require.NoError(t, err)

	// on a trend the most recent lag is always best, so the largest alpha wins
	hp, err := e.Hyperparameters(fitted)
	require.NoError(t, err)
	assert.Equal(t, 0.9, hp["alpha"])
	assert.Equal(t, 2.0, hp["lags"])

	out, err := e.Predict(ctx, fitted, data.Drop("y"))
	require.NoError(t, err)
	w0 := 0.9 / (0.9 + 0.9*0.1)
	assert.InDelta(t, w0*1+(1-w0)*0, out.Float(0, 0), 1e-12)
}

func TestExponential_ZeroValue(t *testing.T) {
	ctx := context.Background()
	e := &Exponential{}

	fitted, err := e.Train(ctx, trendLags(), 0)
	require.NoError(t, err)
	require.NotNil(t, fitted)

	hp, err := e.Hyperparameters(fitted)
	require.NoError(t, err)
	assert.Equal(t, 0.9, hp["alpha"])

	out, err := e.Predict(ctx, fitted, trendLags().Drop("y"))
	require.NoError(t, err)
	assert.Equal(t, trendLags().Len(), out.Len())
}

func TestExponential_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewExponential([]float64{1.5}).Train(ctx, trendLags(), 0)
	assert.Error(t, err)

	_, err = NewExponential(nil).Train(ctx, trendLags().Drop("y_lag_2", "y_lag_3"), 0)
	assert.Error(t, err)

	_, err = NewExponential(nil).Predict(ctx, 42, trendLags())
	assert.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = NewExponential(nil).Train(cancelled, trendLags(), 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExpWeights(t *testing.T) {
	w := expWeights(0.5, 3)
	assert.InDeltaSlice(t, []float64{4.0 / 7, 2.0 / 7, 1.0 / 7}, w, 1e-12)
	assert.Equal(t, []float64{1}, expWeights(1, 1))
}
