package lagmatrix

import (
	"errors"
	"strings"
	"testing"

	"github.com/soltixdb/directcv/internal/cverr"
	"github.com/soltixdb/directcv/internal/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// generateSeries creates an n-row frame with outcome y[i] = i and predictor x[i] = 100 + i
func generateSeries(n int) *series.Frame {
	y := make([]float64, n)
	x := make([]float64, n)
	for i := 0; i < n; i++ {
		y[i] = float64(i)
		x[i] = 100 + float64(i)
	}
	return series.MustFrame(series.NumericColumn("y", y), series.NumericColumn("x", x))
}

func TestBuild_PrunesLagsBelowHorizon(t *testing.T) {
	s := generateSeries(24)

	tables, err := Build(s, Options{
		Outcome:  "y",
		Lookback: LagSpec{"x": {1, 2, 3}},
		Horizons: []int{1, 2},
	})
	require.NoError(t, err)
	require.Len(t, tables, 2)

	h1 := tables[1]
	assert.Equal(t, []int{1, 2, 3}, h1.RetainedLags["x"])
	assert.Empty(t, h1.DroppedLags["x"])
	assert.Equal(t, []string{"y", "x_lag_1", "x_lag_2", "x_lag_3"}, h1.Data.Names())

	h2 := tables[2]
	assert.Equal(t, []int{2, 3}, h2.RetainedLags["x"])
	assert.Equal(t, []int{1}, h2.DroppedLags["x"])
	assert.Equal(t, []string{"y", "x_lag_2", "x_lag_3"}, h2.Data.Names())

	// rows whose lag-3 value precedes the series start are dropped
	assert.Equal(t, 21, h2.Len())
	assert.Equal(t, 3, h2.RowIndex[0])
	assert.NotContains(t, h2.RowIndex, 0)
	assert.NotContains(t, h2.RowIndex, 1)
}

func TestBuild_NoColumnBelowHorizon(t *testing.T) {
	s := generateSeries(40)
	horizons := []int{1, 3, 6, 12}

	tables, err := Build(s, Options{
		Outcome:  "y",
		Lookback: LagSpec{"x": {1, 2, 3, 6, 9, 12}, "y": {1, 6, 12}},
		Horizons: horizons,
	})
	require.NoError(t, err)

	for _, h := range horizons {
		tbl := tables[h]
		for _, lags := range tbl.RetainedLags {
			for _, l := range lags {
				assert.GreaterOrEqual(t, l, h, "horizon %d kept lag %d", h, l)
			}
		}
		for _, name := range tbl.Features().Names() {
			i := strings.LastIndex(name, "_lag_")
			require.Greater(t, i, 0)
		}
	}
	assert.Equal(t, []int{12}, tables[12].RetainedLags["y"])
}

func TestBuild_LaggedValuesAlign(t *testing.T) {
	s := generateSeries(10)

	tables, err := Build(s, Options{
		Outcome:  "y",
		Lookback: LagSpec{"x": {2}, "y": {3}},
		Horizons: []int{2},
	})
	require.NoError(t, err)

	tbl := tables[2]
	xi, _ := tbl.Data.Index("x_lag_2")
	yi, _ := tbl.Data.Index("y_lag_3")
	for row, orig := range tbl.RowIndex {
		assert.Equal(t, float64(orig), tbl.Actual(row))
		assert.Equal(t, 100+float64(orig-2), tbl.Data.Float(xi, row))
		assert.Equal(t, float64(orig-3), tbl.Data.Float(yi, row))
	}
	assert.Equal(t, 0, tbl.OutcomeIndex())
}

func TestBuild_ForecastMode(t *testing.T) {
	s := generateSeries(24)

	tables, err := Build(s, Options{
		Outcome:  "y",
		Lookback: LagSpec{"x": {1, 2, 3}},
		Horizons: []int{1, 3},
		Mode:     ModeForecast,
	})
	require.NoError(t, err)

	h3 := tables[3]
	assert.Equal(t, ModeForecast, h3.Mode)
	assert.Equal(t, -1, h3.OutcomeIndex())
	assert.Equal(t, []string{"x_lag_3"}, h3.Data.Names())
	assert.Equal(t, []int{24, 25, 26}, h3.RowIndex)
	assert.Equal(t, []int{1, 2, 3}, h3.Steps)

	// step k uses x[23+k-3]
	for row, step := range h3.Steps {
		assert.Equal(t, 100+float64(23+step-3), h3.Data.Float(0, row))
	}

	h1 := tables[1]
	assert.Equal(t, []int{24}, h1.RowIndex)
	assert.Equal(t, 3, h1.Data.Width())
}

func TestBuild_CategoricalPredictor(t *testing.T) {
	s := series.MustFrame(
		series.NumericColumn("y", []float64{1, 2, 3, 4, 5}),
		series.CategoricalColumn("day", []string{"a", "b", "c", "d", "e"}),
	)

	tables, err := Build(s, Options{Outcome: "y", Lookback: LagSpec{"day": {1}}, Horizons: []int{1}})
	require.NoError(t, err)

	col, ok := tables[1].Data.Column("day_lag_1")
	require.True(t, ok)
	assert.Equal(t, series.Categorical, col.Kind)
	assert.Equal(t, []string{"a", "b", "c", "d"}, col.Cat)
}

func TestBuild_ConfigurationErrors(t *testing.T) {
	s := generateSeries(10)

	tests := []struct {
		name string
		opts Options
	}{
		{"missing outcome", Options{Outcome: "z", Lookback: LagSpec{"x": {1}}, Horizons: []int{1}}},
		{"empty horizons", Options{Outcome: "y", Lookback: LagSpec{"x": {1}}}},
		{"zero horizon", Options{Outcome: "y", Lookback: LagSpec{"x": {1}}, Horizons: []int{0}}},
		{"empty lookback", Options{Outcome: "y", Horizons: []int{1}}},
		{"unknown predictor", Options{Outcome: "y", Lookback: LagSpec{"w": {1}}, Horizons: []int{1}}},
		{"non-positive lag", Options{Outcome: "y", Lookback: LagSpec{"x": {0, 1}}, Horizons: []int{1}}},
		{"no lag for horizon", Options{Outcome: "y", Lookback: LagSpec{"x": {1, 2}}, Horizons: []int{1, 3}}},
		{"lag exceeds series", Options{Outcome: "y", Lookback: LagSpec{"x": {10}}, Horizons: []int{1}}},
		{"bad mode", Options{Outcome: "y", Lookback: LagSpec{"x": {1}}, Horizons: []int{1}, Mode: "score"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(s, tt.opts)
			require.Error(t, err)
			assert.True(t, errors.Is(err, cverr.ErrConfiguration), "got %v", err)
		})
	}
}

func TestBuild_CategoricalOutcomeRejected(t *testing.T) {
	s := series.MustFrame(
		series.CategoricalColumn("y", []string{"a", "b"}),
		series.NumericColumn("x", []float64{1, 2}),
	)
	_, err := Build(s, Options{Outcome: "y", Lookback: LagSpec{"x": {1}}, Horizons: []int{1}})
	assert.True(t, errors.Is(err, cverr.ErrConfiguration))
}

func TestUniformAndSortedHorizons(t *testing.T) {
	spec := Uniform([]string{"a", "b"}, []int{3, 1, 3})
	assert.Equal(t, []int{3, 1, 3}, spec["a"])

	s := series.MustFrame(
		series.NumericColumn("a", []float64{1, 2, 3, 4, 5}),
		series.NumericColumn("b", []float64{1, 2, 3, 4, 5}),
	)
	tables, err := Build(s, Options{Outcome: "a", Lookback: spec, Horizons: []int{3, 1, 1}})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, SortedHorizons(tables))
	assert.Equal(t, []int{1, 3}, tables[1].RetainedLags["a"])
	assert.Contains(t, tables[1].String(), "h=1")
}

func TestLaggedTable_RowsWhere(t *testing.T) {
	s := generateSeries(12)
	tables, err := Build(s, Options{Outcome: "y", Lookback: LagSpec{"x": {2}}, Horizons: []int{1}})
	require.NoError(t, err)

	rows := tables[1].RowsWhere(func(orig int) bool { return orig >= 5 && orig < 8 })
	assert.Equal(t, []int{3, 4, 5}, rows)
}
