// Package evaluate turns a prediction table into error summaries at three
// granularities: per window, per horizon and per model.
//
// Per-horizon values are the mean of the per-window values, not a metric
// recomputed over pooled rows, so windows of unequal size weigh the same.
// Undefined pointwise values (a zero denominator, a missing actual) are left
// out of every mean.
package evaluate

import (
	"math"
	"sort"

	"github.com/soltixdb/directcv/internal/cverr"
	"github.com/soltixdb/directcv/internal/predict"
	"github.com/soltixdb/directcv/internal/series"
	"github.com/soltixdb/directcv/internal/utils"
	"gonum.org/v1/gonum/stat"
)

// ErrorRecord carries the requested metrics for one aggregation key. Fields
// outside the key are zero.
type ErrorRecord struct {
	Model string

	// Horizon is the model horizon in training mode and the forward step in
	// forecast mode
	Horizon int

	// ModelForecastHorizon keys forecast-mode records by the model's horizon
	ModelForecastHorizon int

	WindowID int

	// Values maps metric name to value; NaN when no row defined it
	Values map[string]float64

	// Rows is the number of prediction rows behind the record; Windows the
	// number of window-level records averaged into it
	Rows    int
	Windows int
}

// Report holds the three aggregation levels. ByWindow is only populated in
// training mode.
type Report struct {
	Mode    predict.Mode
	Outcome string
	Metrics []string

	ByWindow  []ErrorRecord
	ByHorizon []ErrorRecord
	Global    []ErrorRecord

	// Unmatched lists forecast rows with no ground truth in the test data
	Unmatched []int
}

type cellKey struct {
	model   string
	mfh     int
	horizon int
	window  int
}

// Aggregate computes error summaries for pt. In forecast mode test supplies
// the ground truth, joined to predictions by original row index.
func Aggregate(pt *predict.Table, metricNames []string, test *TestData) (*Report, error) {
	names, err := CheckMetrics(metricNames)
	if err != nil {
		return nil, err
	}
	if pt == nil {
		return nil, cverr.Configurationf("predictions", "prediction table is required")
	}

	records := pt.Records
	var unmatched []int
	if pt.Mode == predict.ModeForecast {
		if test == nil {
			return nil, cverr.Configurationf("data_test", "forecast-mode evaluation needs test data")
		}
		records, unmatched, err = test.join(records)
		if err != nil {
			return nil, err
		}
	}

	report := &Report{Mode: pt.Mode, Outcome: pt.Outcome, Metrics: names, Unmatched: unmatched}
	order := modelOrder(pt.Models())

	windowLevel := byCell(records, names, order)
	byHorizon := rollUp(windowLevel, names, order, func(k cellKey) cellKey {
		return cellKey{model: k.model, mfh: k.mfh, horizon: k.horizon}
	})

	var global []ErrorRecord
	if pt.Mode == predict.ModeForecast {
		global = rollUp(windowLevel, names, order, func(k cellKey) cellKey {
			return cellKey{model: k.model, mfh: k.mfh}
		})
	} else {
		report.ByWindow = windowLevel
		global = rollUp(windowLevel, names, order, func(k cellKey) cellKey {
			return cellKey{model: k.model}
		})
	}
	report.ByHorizon = byHorizon
	report.Global = global
	return report, nil
}

// CheckMetrics validates metric names and returns them without duplicates
func CheckMetrics(names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, cverr.Configurationf("metrics", "at least one metric is required")
	}
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := metrics[n]; !ok {
			return nil, cverr.Configurationf("metrics", "unsupported metric %q (supported: %v)", n, SupportedMetrics())
		}
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out, nil
}

func modelOrder(models []string) map[string]int {
	order := make(map[string]int, len(models))
	for i, m := range models {
		order[m] = i
	}
	return order
}

func keyOf(r ErrorRecord) cellKey {
	return cellKey{model: r.Model, mfh: r.ModelForecastHorizon, horizon: r.Horizon, window: r.WindowID}
}

func sortRecords(out []ErrorRecord, order map[string]int) {
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Model != b.Model {
			return order[a.Model] < order[b.Model]
		}
		if a.ModelForecastHorizon != b.ModelForecastHorizon {
			return a.ModelForecastHorizon < b.ModelForecastHorizon
		}
		if a.Horizon != b.Horizon {
			return a.Horizon < b.Horizon
		}
		return a.WindowID < b.WindowID
	})
}

// byCell computes each metric over the rows of one (model, horizon, window)
func byCell(records []predict.Record, names []string, order map[string]int) []ErrorRecord {
	type acc struct {
		rows   int
		points map[string][]float64
	}
	groups := make(map[cellKey]*acc)
	for _, r := range records {
		k := cellKey{model: r.Model, mfh: r.ModelForecastHorizon, horizon: r.Horizon, window: r.WindowID}
		g, ok := groups[k]
		if !ok {
			g = &acc{points: make(map[string][]float64, len(names))}
			groups[k] = g
		}
		g.rows++
		actual := r.Actual
		if !r.HasActual {
			actual = math.NaN()
		}
		for _, name := range names {
			v, _ := Pointwise(name, actual, r.Predicted)
			if utils.IsDefined(v) {
				g.points[name] = append(g.points[name], v)
			}
		}
	}

	out := make([]ErrorRecord, 0, len(groups))
	for k, g := range groups {
		rec := ErrorRecord{
			Model:                k.model,
			Horizon:              k.horizon,
			ModelForecastHorizon: k.mfh,
			WindowID:             k.window,
			Values:               make(map[string]float64, len(names)),
			Rows:                 g.rows,
			Windows:              1,
		}
		for _, name := range names {
			pts := g.points[name]
			if len(pts) == 0 {
				rec.Values[name] = math.NaN()
				continue
			}
			v := stat.Mean(pts, nil)
			if f := metrics[name].finish; f != nil {
				v = f(v)
			}
			rec.Values[name] = v
		}
		out = append(out, rec)
	}
	sortRecords(out, order)
	return out
}

// rollUp averages window-level records over the key returned by group.
// Undefined window values are skipped.
func rollUp(level []ErrorRecord, names []string, order map[string]int, group func(cellKey) cellKey) []ErrorRecord {
	type acc struct {
		rows, windows int
		values        map[string][]float64
	}
	groups := make(map[cellKey]*acc)
	for _, r := range level {
		k := group(keyOf(r))
		g, ok := groups[k]
		if !ok {
			g = &acc{values: make(map[string][]float64, len(names))}
			groups[k] = g
		}
		g.rows += r.Rows
		g.windows++
		for _, name := range names {
			g.values[name] = append(g.values[name], r.Values[name])
		}
	}

	out := make([]ErrorRecord, 0, len(groups))
	for k, g := range groups {
		rec := ErrorRecord{
			Model:                k.model,
			Horizon:              k.horizon,
			ModelForecastHorizon: k.mfh,
			WindowID:             k.window,
			Values:               make(map[string]float64, len(names)),
			Rows:                 g.rows,
			Windows:              g.windows,
		}
		for _, name := range names {
			rec.Values[name], _ = utils.MeanDefined(g.values[name])
		}
		out = append(out, rec)
	}
	sortRecords(out, order)
	return out
}

// ByWindowFrame renders error_by_window: model, horizon, window_id, metrics
func (r *Report) ByWindowFrame() *series.Frame {
	return r.frame(r.ByWindow, false, true, true)
}

// ByHorizonFrame renders error_by_horizon: model, [model_forecast_horizon,]
// horizon, metrics
func (r *Report) ByHorizonFrame() *series.Frame {
	return r.frame(r.ByHorizon, r.Mode == predict.ModeForecast, true, false)
}

// GlobalFrame renders error_global: model, [model_forecast_horizon,] metrics
func (r *Report) GlobalFrame() *series.Frame {
	return r.frame(r.Global, r.Mode == predict.ModeForecast, false, false)
}

func (r *Report) frame(recs []ErrorRecord, withMFH, withHorizon, withWindow bool) *series.Frame {
	n := len(recs)
	model := make([]string, n)
	mfh := make([]float64, n)
	horizon := make([]float64, n)
	win := make([]float64, n)
	values := make(map[string][]float64, len(r.Metrics))
	for _, m := range r.Metrics {
		values[m] = make([]float64, n)
	}
	for i, rec := range recs {
		model[i] = rec.Model
		mfh[i] = float64(rec.ModelForecastHorizon)
		horizon[i] = float64(rec.Horizon)
		win[i] = float64(rec.WindowID)
		for _, m := range r.Metrics {
			values[m][i] = rec.Values[m]
		}
	}

	cols := []series.Column{series.CategoricalColumn("model", model)}
	if withMFH {
		cols = append(cols, series.NumericColumn("model_forecast_horizon", mfh))
	}
	if withHorizon {
		cols = append(cols, series.NumericColumn("horizon", horizon))
	}
	if withWindow {
		cols = append(cols, series.NumericColumn("window_id", win))
	}
	for _, m := range r.Metrics {
		cols = append(cols, series.NumericColumn(m, values[m]))
	}
	return series.MustFrame(cols...)
}
