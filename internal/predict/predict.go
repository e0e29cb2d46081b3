// Package predict runs each trained grid cell's model over its held-out rows,
// or over forecast rows past the end of the series, and assembles one
// long-format prediction table across model variants.
package predict

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/soltixdb/directcv/internal/cverr"
	"github.com/soltixdb/directcv/internal/grid"
	"github.com/soltixdb/directcv/internal/lagmatrix"
	"github.com/soltixdb/directcv/internal/logging"
	"github.com/soltixdb/directcv/internal/metrics"
	"github.com/soltixdb/directcv/internal/model"
	"github.com/soltixdb/directcv/internal/series"
	"github.com/soltixdb/directcv/internal/utils"
	"golang.org/x/sync/errgroup"
)

// Mode tells whether a table holds held-out or forecast predictions
type Mode string

const (
	ModeTraining Mode = "training"
	ModeForecast Mode = "forecast"
)

// ModelSet pairs a trained grid with the variant that predicts from it
type ModelSet struct {
	Grid    *grid.Grid
	Variant model.Variant
}

// Options configures Assemble
type Options struct {
	// Forecast switches to forecast mode when set; it holds the forecast-mode
	// lagged table of every trained horizon
	Forecast map[int]*lagmatrix.LaggedTable

	Workers     int
	CellTimeout time.Duration
	Logger      *logging.Logger
	Metrics     *metrics.Recorder
}

// Record is one predicted row
type Record struct {
	Model string

	// Horizon is the model's horizon in training mode and the forward step
	// (1..ModelForecastHorizon) in forecast mode
	Horizon int

	// ModelForecastHorizon is the horizon the model was trained for
	ModelForecastHorizon int

	WindowID     int
	WindowLength int

	// Index is the original series row; past the end of the series in
	// forecast mode
	Index int

	Actual    float64
	HasActual bool
	Predicted float64
}

// Key identifies the grid cell a record came from
func (r Record) Key() grid.CellKey {
	return grid.CellKey{Horizon: r.ModelForecastHorizon, WindowID: r.WindowID}
}

// Table is the assembled prediction output of one run
type Table struct {
	Mode    Mode
	Outcome string
	Records []Record

	// Failed lists the cells whose prediction failed; they contribute no rows
	Failed []*cverr.PredictionError

	// Cells counts the trained cells asked to predict; Skipped those never
	// started because the run was cancelled
	Cells   int
	Skipped int
}

// Models returns the model names in first-seen order
func (t *Table) Models() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range t.Records {
		if !seen[r.Model] {
			seen[r.Model] = true
			out = append(out, r.Model)
		}
	}
	return out
}

// Frame renders the table with the columns model, horizon,
// [model_forecast_horizon,] window_length, window_id, valid_indices,
// <outcome>, <outcome>_pred
func (t *Table) Frame() *series.Frame {
	n := len(t.Records)
	names := make([]string, n)
	horizon := make([]float64, n)
	mfh := make([]float64, n)
	wlen := make([]float64, n)
	wid := make([]float64, n)
	idx := make([]float64, n)
	actual := make([]float64, n)
	pred := make([]float64, n)
	for i, r := range t.Records {
		names[i] = r.Model
		horizon[i] = float64(r.Horizon)
		mfh[i] = float64(r.ModelForecastHorizon)
		wlen[i] = float64(r.WindowLength)
		wid[i] = float64(r.WindowID)
		idx[i] = float64(r.Index)
		actual[i] = math.NaN()
		if r.HasActual {
			actual[i] = r.Actual
		}
		pred[i] = r.Predicted
	}

	cols := []series.Column{
		series.CategoricalColumn("model", names),
		series.NumericColumn("horizon", horizon),
	}
	if t.Mode == ModeForecast {
		cols = append(cols, series.NumericColumn("model_forecast_horizon", mfh))
	}
	cols = append(cols,
		series.NumericColumn("window_length", wlen),
		series.NumericColumn("window_id", wid),
		series.NumericColumn("valid_indices", idx),
		series.NumericColumn(t.Outcome, actual),
		series.NumericColumn(t.Outcome+utils.PredictionSuffix, pred),
	)
	return series.MustFrame(cols...)
}

type task struct {
	model   string
	variant model.Variant
	cell    *grid.Cell
	table   *lagmatrix.LaggedTable
	horizon int

	records []Record
	err     *cverr.PredictionError
	skipped bool
}

// Assemble predicts with every successfully trained cell of every set and
// concatenates the results in set order, then cell order.
//
// In training mode each cell predicts the rows of its horizon's table held
// out by its window; under the null window it predicts every row in sample.
// In forecast mode each cell predicts the forecast rows of its horizon.
// A failing cell is recorded in Table.Failed and leaves a gap.
func Assemble(ctx context.Context, sets []ModelSet, opts Options) (*Table, error) {
	outcome, err := validate(sets, opts)
	if err != nil {
		return nil, err
	}

	mode := ModeTraining
	if opts.Forecast != nil {
		mode = ModeForecast
	}
	logger := logging.OrGlobal(opts.Logger)

	var tasks []*task
	for _, set := range sets {
		for _, c := range set.Grid.Succeeded() {
			t := &task{
				model:   set.Grid.Model,
				variant: set.Variant,
				cell:    c,
				horizon: c.Key.Horizon,
				table:   set.Grid.Tables[c.Key.Horizon],
			}
			if mode == ModeForecast {
				t.table = opts.Forecast[c.Key.Horizon]
			}
			tasks = append(tasks, t)
		}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = utils.DefaultGridWorkers
	}
	var eg errgroup.Group
	eg.SetLimit(workers)
	for _, t := range tasks {
		if ctx.Err() != nil {
			t.skipped = true
			opts.Metrics.CellSkipped(metrics.StagePredict, t.model)
			continue
		}
		t := t
		eg.Go(func() error {
			if ctx.Err() != nil {
				t.skipped = true
				opts.Metrics.CellSkipped(metrics.StagePredict, t.model)
				return nil
			}
			runTask(ctx, t, mode, opts)
			if t.err != nil {
				logger.Warn("Cell prediction failed",
					"model", t.model,
					"horizon", t.horizon,
					"window_id", t.cell.Key.WindowID,
					"error", t.err.Cause)
			}
			return nil
		})
	}
	_ = eg.Wait()

	out := &Table{Mode: mode, Outcome: outcome, Cells: len(tasks)}
	for _, t := range tasks {
		switch {
		case t.skipped:
			out.Skipped++
		case t.err != nil:
			out.Failed = append(out.Failed, t.err)
		default:
			out.Records = append(out.Records, t.records...)
		}
	}

	logger.Info("Predictions assembled",
		"mode", string(mode),
		"cells", len(tasks),
		"failed", len(out.Failed),
		"skipped", out.Skipped,
		"rows", len(out.Records))

	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

func validate(sets []ModelSet, opts Options) (string, error) {
	if len(sets) == 0 {
		return "", cverr.Configurationf("models", "at least one model set is required")
	}
	outcome := ""
	names := make(map[string]bool, len(sets))
	for i, set := range sets {
		if set.Grid == nil || set.Variant == nil {
			return "", cverr.Configurationf("models", "model set %d needs a grid and a variant", i)
		}
		if names[set.Grid.Model] {
			return "", cverr.Configurationf("models", "duplicate model name %q", set.Grid.Model)
		}
		names[set.Grid.Model] = true

		for _, h := range set.Grid.Horizons {
			t := set.Grid.Tables[h]
			if outcome == "" {
				outcome = t.Outcome
			} else if t.Outcome != outcome {
				return "", cverr.Configurationf("outcome",
					"model %q predicts %q, expected %q", set.Grid.Model, t.Outcome, outcome)
			}
			if opts.Forecast == nil {
				continue
			}
			ft, ok := opts.Forecast[h]
			if !ok || ft == nil {
				return "", cverr.Configurationf("data_forecast", "no forecast table for horizon %d", h)
			}
			if ft.Mode != lagmatrix.ModeForecast {
				return "", cverr.Configurationf("data_forecast", "horizon %d: table is not in forecast mode", h)
			}
		}
	}
	return outcome, nil
}

func runTask(ctx context.Context, t *task, mode Mode, opts Options) {
	opts.Metrics.CellStarted(metrics.StagePredict)
	start := time.Now()

	err := predictCell(ctx, t, mode, opts.CellTimeout)
	status := metrics.StatusOK
	switch {
	case grid.Interrupted(ctx, err):
		status = metrics.StatusSkipped
		t.records = nil
		t.skipped = true
	case err != nil:
		status = metrics.StatusFailed
		t.records = nil
		t.err = &cverr.PredictionError{
			Model:    t.model,
			Horizon:  t.horizon,
			WindowID: t.cell.Key.WindowID,
			Cause:    err,
		}
	}
	opts.Metrics.CellFinished(metrics.StagePredict, t.model, status, time.Since(start))
}

func predictCell(ctx context.Context, t *task, mode Mode, timeout time.Duration) error {
	fitted := t.cell.Model
	if fitted == nil && t.cell.Released() {
		return fmt.Errorf("model for %s was released", t.cell.Key)
	}

	w := t.cell.Window
	var rows []int
	switch {
	case mode == ModeForecast || w.IsNull():
		rows = make([]int, t.table.Len())
		for i := range rows {
			rows[i] = i
		}
	default:
		rows = t.table.RowsWhere(w.Contains)
	}
	if len(rows) == 0 {
		return nil
	}

	features := t.table.Features().Take(rows)
	out, err := grid.Invoke(ctx, timeout, func(ctx context.Context) (*series.Frame, error) {
		return t.variant.Predict(ctx, fitted, features)
	})
	if err != nil {
		return err
	}
	values, err := model.PredictionValues(out, len(rows))
	if err != nil {
		return err
	}

	t.records = make([]Record, len(rows))
	for i, r := range rows {
		rec := Record{
			Model:                t.model,
			Horizon:              t.horizon,
			ModelForecastHorizon: t.horizon,
			WindowID:             w.ID,
			WindowLength:         w.Length,
			Index:                t.table.RowIndex[r],
			Actual:               math.NaN(),
			Predicted:            values[i],
		}
		if mode == ModeForecast {
			rec.Horizon = t.table.Steps[r]
		} else {
			rec.Actual = t.table.Actual(r)
			rec.HasActual = true
		}
		t.records[i] = rec
	}
	return nil
}
