package predict

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soltixdb/directcv/internal/cverr"
	"github.com/soltixdb/directcv/internal/grid"
	"github.com/soltixdb/directcv/internal/lagmatrix"
	"github.com/soltixdb/directcv/internal/logging"
	"github.com/soltixdb/directcv/internal/model"
	"github.com/soltixdb/directcv/internal/series"
	"github.com/soltixdb/directcv/internal/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trend is a 24-row series with y[i] = i
func trend() *series.Frame {
	y := make([]float64, 24)
	for i := range y {
		y[i] = float64(i)
	}
	return series.MustFrame(series.NumericColumn("y", y))
}

func buildTables(t *testing.T, mode lagmatrix.Mode) map[int]*lagmatrix.LaggedTable {
	t.Helper()
	tables, err := lagmatrix.Build(trend(), lagmatrix.Options{
		Outcome:  "y",
		Lookback: lagmatrix.LagSpec{"y": {1, 2, 3}},
		Horizons: []int{1, 2},
		Mode:     mode,
	})
	require.NoError(t, err)
	return tables
}

func trainSet(t *testing.T, windows []window.Window, v model.Variant) ModelSet {
	t.Helper()
	g, err := grid.Train(context.Background(), buildTables(t, lagmatrix.ModeTrain), windows, v,
		grid.Options{Logger: logging.NewNop()})
	require.NoError(t, err)
	return ModelSet{Grid: g, Variant: v}
}

func sixRowWindows(t *testing.T) []window.Window {
	t.Helper()
	ws, err := window.Partition(24, window.Options{Length: 6})
	require.NoError(t, err)
	return ws
}

func quiet() Options {
	return Options{Logger: logging.NewNop()}
}

func TestAssemble_TrainingPartition(t *testing.T) {
	windows := sixRowWindows(t)
	set := trainSet(t, windows, &model.Persistence{})

	pt, err := Assemble(context.Background(), []ModelSet{set}, quiet())
	require.NoError(t, err)
	assert.Equal(t, ModeTraining, pt.Mode)
	assert.Empty(t, pt.Failed)

	for _, h := range []int{1, 2} {
		table := set.Grid.Tables[h]
		var got []int
		for _, r := range pt.Records {
			if r.Horizon != h {
				continue
			}
			got = append(got, r.Index)

			w := windows[r.WindowID-1]
			assert.True(t, w.Contains(r.Index), "row %d outside %s", r.Index, w)
			assert.True(t, r.HasActual)
			assert.Equal(t, float64(r.Index), r.Actual)
			// persistence uses the smallest retained lag, which is h
			assert.Equal(t, float64(r.Index-h), r.Predicted)
		}
		sort.Ints(got)
		assert.Equal(t, table.RowIndex, got, "horizon %d rows must be covered exactly once", h)
	}
}

func TestAssemble_NullWindowInSample(t *testing.T) {
	set := trainSet(t, []window.Window{window.Null()}, &model.Mean{})

	pt, err := Assemble(context.Background(), []ModelSet{set}, quiet())
	require.NoError(t, err)

	count := map[int]int{}
	for _, r := range pt.Records {
		count[r.Horizon]++
		assert.Equal(t, window.NullID, r.WindowID)
		assert.Equal(t, 0, r.WindowLength)
	}
	assert.Equal(t, set.Grid.Tables[1].Len(), count[1])
	assert.Equal(t, set.Grid.Tables[2].Len(), count[2])
}

func TestAssemble_MultipleModels(t *testing.T) {
	windows := sixRowWindows(t)
	sets := []ModelSet{
		trainSet(t, windows, &model.Persistence{}),
		trainSet(t, windows, &model.Mean{}),
	}

	pt, err := Assemble(context.Background(), sets, quiet())
	require.NoError(t, err)
	assert.Equal(t, []string{"persistence", "mean"}, pt.Models())

	per := map[string]int{}
	for _, r := range pt.Records {
		per[r.Model]++
	}
	assert.Equal(t, per["persistence"], per["mean"])
	assert.Equal(t, len(pt.Records), per["persistence"]*2)

	// set order is preserved
	assert.Equal(t, "persistence", pt.Records[0].Model)
	assert.Equal(t, "mean", pt.Records[len(pt.Records)-1].Model)
}

func TestAssemble_CellFailureLeavesGap(t *testing.T) {
	windows := sixRowWindows(t)
	boom := errors.New("predict exploded")

	persistence := &model.Persistence{}
	var v model.Variant = model.Funcs{
		ModelName: "flaky",
		TrainFunc: persistence.Train,
		PredictFunc: func(ctx context.Context, fitted any, features *series.Frame) (*series.Frame, error) {
			// window 2 of horizon 2: features start at y_lag_2 = 6 - 2
			col, _ := features.Column("y_lag_2")
			if _, has1 := features.Index("y_lag_1"); !has1 && col.Num[0] == 4 {
				return nil, boom
			}
			return persistence.Predict(ctx, fitted, features)
		},
	}
	set := trainSet(t, windows, v)

	pt, err := Assemble(context.Background(), []ModelSet{set}, quiet())
	require.NoError(t, err)
	require.Len(t, pt.Failed, 1)
	assert.Equal(t, 2, pt.Failed[0].Horizon)
	assert.Equal(t, 2, pt.Failed[0].WindowID)
	assert.ErrorIs(t, pt.Failed[0], boom)

	for _, r := range pt.Records {
		assert.False(t, r.Horizon == 2 && r.WindowID == 2, "failed cell produced rows")
	}
	// the other cells are intact
	assert.NotEmpty(t, pt.Records)
}

func TestAssemble_BadPredictionShape(t *testing.T) {
	windows := sixRowWindows(t)
	v := model.Funcs{
		ModelName: "wide",
		TrainFunc: func(ctx context.Context, data *series.Frame, outcome int) (any, error) { return 1, nil },
		PredictFunc: func(ctx context.Context, fitted any, features *series.Frame) (*series.Frame, error) {
			return features, nil
		},
	}
	set := trainSet(t, windows, v)

	pt, err := Assemble(context.Background(), []ModelSet{set}, quiet())
	require.NoError(t, err)
	assert.Empty(t, pt.Records)
	assert.NotEmpty(t, pt.Failed)
	assert.Equal(t, cverr.CodePrediction, pt.Failed[0].Code())
}

func TestAssemble_ReleasedModel(t *testing.T) {
	set := trainSet(t, sixRowWindows(t), &model.Mean{})
	set.Grid.Release(grid.CellKey{Horizon: 1, WindowID: 1})

	pt, err := Assemble(context.Background(), []ModelSet{set}, quiet())
	require.NoError(t, err)
	require.Len(t, pt.Failed, 1)
	assert.Contains(t, pt.Failed[0].Error(), "released")
}

func TestAssemble_Forecast(t *testing.T) {
	set := trainSet(t, []window.Window{window.Null()}, &model.Persistence{})
	opts := quiet()
	opts.Forecast = buildTables(t, lagmatrix.ModeForecast)

	pt, err := Assemble(context.Background(), []ModelSet{set}, opts)
	require.NoError(t, err)
	assert.Equal(t, ModeForecast, pt.Mode)

	type key struct{ mfh, step int }
	got := map[key]Record{}
	for _, r := range pt.Records {
		assert.False(t, r.HasActual)
		assert.True(t, math.IsNaN(r.Actual))
		got[key{r.ModelForecastHorizon, r.Horizon}] = r
	}
	// horizon-1 model forecasts one step; horizon-2 model forecasts steps 1 and 2
	require.Len(t, got, 3)
	r := got[key{2, 2}]
	assert.Equal(t, 25, r.Index)
	// y_lag_2 at target 25 is y[23]
	assert.Equal(t, 23.0, r.Predicted)
	assert.Equal(t, 24, got[key{1, 1}].Index)
	assert.Equal(t, 24, got[key{2, 1}].Index)
}

func TestAssemble_Validation(t *testing.T) {
	set := trainSet(t, sixRowWindows(t), &model.Mean{})

	_, err := Assemble(context.Background(), nil, quiet())
	assert.ErrorIs(t, err, cverr.ErrConfiguration)

	_, err = Assemble(context.Background(), []ModelSet{set, set}, quiet())
	assert.ErrorIs(t, err, cverr.ErrConfiguration)

	opts := quiet()
	forecast := buildTables(t, lagmatrix.ModeForecast)
	delete(forecast, 2)
	opts.Forecast = forecast
	_, err = Assemble(context.Background(), []ModelSet{set}, opts)
	assert.ErrorIs(t, err, cverr.ErrConfiguration)

	opts.Forecast = buildTables(t, lagmatrix.ModeTrain)
	_, err = Assemble(context.Background(), []ModelSet{set}, opts)
	assert.ErrorIs(t, err, cverr.ErrConfiguration)
}

func TestAssemble_Cancelled(t *testing.T) {
	set := trainSet(t, sixRowWindows(t), &model.Mean{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pt, err := Assemble(ctx, []ModelSet{set}, quiet())
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, pt)
	assert.Empty(t, pt.Records)
}

func TestAssemble_CancelDuringFirstBatch(t *testing.T) {
	windows, err := window.Partition(24, window.Options{Length: 3, Start: 6})
	require.NoError(t, err)

	mean := &model.Mean{}
	for _, timeout := range []time.Duration{0, time.Hour} {
		t.Run(timeout.String(), func(t *testing.T) {
			var calls atomic.Int32
			v := model.Funcs{
				ModelName: "slow",
				TrainFunc: mean.Train,
				PredictFunc: func(ctx context.Context, fitted any, features *series.Frame) (*series.Frame, error) {
					calls.Add(1)
					time.Sleep(50 * time.Millisecond)
					return mean.Predict(ctx, fitted, features)
				},
			}
			set := trainSet(t, windows, v)
			require.Equal(t, 12, set.Grid.Len())

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			time.AfterFunc(10*time.Millisecond, cancel)

			opts := quiet()
			opts.Workers = 4
			opts.CellTimeout = timeout
			pt, err := Assemble(ctx, []ModelSet{set}, opts)
			assert.ErrorIs(t, err, context.Canceled)
			require.NotNil(t, pt)

			assert.LessOrEqual(t, calls.Load(), int32(4))
			assert.Empty(t, pt.Failed)
			assert.Equal(t, 12, pt.Cells)
			assert.GreaterOrEqual(t, pt.Skipped, 8)
		})
	}
}

func TestTable_Frame(t *testing.T) {
	set := trainSet(t, sixRowWindows(t), &model.Mean{})
	pt, err := Assemble(context.Background(), []ModelSet{set}, quiet())
	require.NoError(t, err)

	f := pt.Frame()
	assert.Equal(t, []string{"model", "horizon", "window_length", "window_id", "valid_indices", "y", "y_pred"}, f.Names())
	assert.Equal(t, len(pt.Records), f.Len())

	opts := quiet()
	opts.Forecast = buildTables(t, lagmatrix.ModeForecast)
	ft, err := Assemble(context.Background(), []ModelSet{set}, opts)
	require.NoError(t, err)
	assert.Contains(t, ft.Frame().Names(), "model_forecast_horizon")
}
