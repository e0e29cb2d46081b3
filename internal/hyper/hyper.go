// Package hyper collects the hyperparameters of every trained grid cell into
// one table, so their stability across windows and horizons can be studied
// next to the per-window errors.
package hyper

import (
	"fmt"
	"math"
	"sort"

	"github.com/soltixdb/directcv/internal/cverr"
	"github.com/soltixdb/directcv/internal/evaluate"
	"github.com/soltixdb/directcv/internal/grid"
	"github.com/soltixdb/directcv/internal/logging"
	"github.com/soltixdb/directcv/internal/model"
	"github.com/soltixdb/directcv/internal/series"
)

// Record holds one cell's hyperparameters and, when joined, its window-level
// errors
type Record struct {
	Model    string
	Horizon  int
	WindowID int
	Values   map[string]float64
	Errors   map[string]float64
}

// Table is the hyperparameter table of one model variant
type Table struct {
	Model string

	// Names is the schema shared by every record, sorted
	Names   []string
	Records []Record

	// Mismatches lists the cells excluded for returning a different schema
	Mismatches []*cverr.SchemaMismatchError

	// Diagnostics holds one warning line per excluded cell
	Diagnostics []string

	metrics []string
}

// Options configures Collect
type Options struct {
	Logger *logging.Logger
}

// Collect calls ex once per trained cell of g, in cell order. The first cell
// that reports successfully fixes the schema; a later cell reporting another
// set of names is excluded with a SchemaMismatchError. Cells whose extraction
// fails are excluded with a diagnostic. When errs is given, each record is
// joined with the error_by_window row of the same model, horizon and window.
func Collect(g *grid.Grid, ex model.HyperparameterExtractor, errs []evaluate.ErrorRecord, opts Options) (*Table, error) {
	if g == nil {
		return nil, cverr.Configurationf("grid", "grid is required")
	}
	if ex == nil {
		return nil, cverr.Configurationf("hyperparameters", "model %q has no hyperparameter extractor", g.Model)
	}
	logger := logging.OrGlobal(opts.Logger).With("model", g.Model)

	joined := make(map[grid.CellKey]map[string]float64)
	metricSet := make(map[string]bool)
	for _, e := range errs {
		if e.Model != g.Model {
			continue
		}
		joined[grid.CellKey{Horizon: e.Horizon, WindowID: e.WindowID}] = e.Values
		for m := range e.Values {
			metricSet[m] = true
		}
	}

	t := &Table{Model: g.Model, metrics: sortedKeys(metricSet)}
	var schema map[string]bool

	for _, c := range g.Succeeded() {
		exclude := func(msg string) {
			diag := fmt.Sprintf("%s horizon %d window %d: %s", g.Model, c.Key.Horizon, c.Key.WindowID, msg)
			t.Diagnostics = append(t.Diagnostics, diag)
			logger.Warn("Hyperparameters excluded",
				"horizon", c.Key.Horizon,
				"window_id", c.Key.WindowID,
				"reason", msg)
		}

		if c.Model == nil && c.Released() {
			exclude("model was released")
			continue
		}
		values, err := extract(ex, c.Model)
		if err != nil {
			exclude(err.Error())
			continue
		}

		names := sortedKeys(values)
		if schema == nil {
			schema = make(map[string]bool, len(names))
			for _, n := range names {
				schema[n] = true
			}
			t.Names = names
		} else if !sameNames(schema, names) {
			mismatch := &cverr.SchemaMismatchError{
				Model:    g.Model,
				Horizon:  c.Key.Horizon,
				WindowID: c.Key.WindowID,
				Expected: t.Names,
				Got:      names,
			}
			t.Mismatches = append(t.Mismatches, mismatch)
			exclude(mismatch.Error())
			continue
		}

		t.Records = append(t.Records, Record{
			Model:    g.Model,
			Horizon:  c.Key.Horizon,
			WindowID: c.Key.WindowID,
			Values:   values,
			Errors:   joined[c.Key],
		})
	}
	return t, nil
}

func extract(ex model.HyperparameterExtractor, fitted any) (values map[string]float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	values, err = ex.Hyperparameters(fitted)
	if err == nil && values == nil {
		values = map[string]float64{}
	}
	return values, err
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sameNames(schema map[string]bool, names []string) bool {
	if len(schema) != len(names) {
		return false
	}
	for _, n := range names {
		if !schema[n] {
			return false
		}
	}
	return true
}

// Frame renders model, horizon, window_id, one column per hyperparameter and,
// when errors were joined, one column per metric. A metric whose name clashes
// with a hyperparameter is prefixed with "error_".
func (t *Table) Frame() *series.Frame {
	n := len(t.Records)
	models := make([]string, n)
	horizon := make([]float64, n)
	win := make([]float64, n)
	for i, r := range t.Records {
		models[i] = r.Model
		horizon[i] = float64(r.Horizon)
		win[i] = float64(r.WindowID)
	}
	cols := []series.Column{
		series.CategoricalColumn("model", models),
		series.NumericColumn("horizon", horizon),
		series.NumericColumn("window_id", win),
	}

	taken := map[string]bool{"model": true, "horizon": true, "window_id": true}
	for _, name := range t.Names {
		vals := make([]float64, n)
		for i, r := range t.Records {
			vals[i] = r.Values[name]
		}
		cols = append(cols, series.NumericColumn(name, vals))
		taken[name] = true
	}
	for _, m := range t.metrics {
		vals := make([]float64, n)
		for i, r := range t.Records {
			v, ok := r.Errors[m]
			if !ok {
				v = math.NaN()
			}
			vals[i] = v
		}
		col := m
		if taken[col] {
			col = "error_" + m
		}
		cols = append(cols, series.NumericColumn(col, vals))
	}
	return series.MustFrame(cols...)
}
