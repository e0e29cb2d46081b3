package model

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/soltixdb/directcv/internal/series"
)

// PredictionColumn is the column name used by built-in variants for predictions
const PredictionColumn = "prediction"

// Variant is one model family evaluated over the grid. Implementations are
// algorithm-agnostic ports: the engine never inspects the fitted value
// returned by Train, it only hands it back to Predict and to hyperparameter
// extraction.
type Variant interface {
	// Name returns the model name used to tag every result row
	Name() string
	// Train fits a model on data, where outcome is the column index of the label
	Train(ctx context.Context, data *series.Frame, outcome int) (any, error)
	// Predict returns a table with exactly one numeric prediction column and
	// one row per feature row
	Predict(ctx context.Context, fitted any, features *series.Frame) (*series.Frame, error)
}

// HyperparameterExtractor returns the hyperparameters of a fitted model. All
// fitted models of one variant must return the same set of names.
type HyperparameterExtractor interface {
	Hyperparameters(fitted any) (map[string]float64, error)
}

// TrainFunc fits a model
type TrainFunc func(ctx context.Context, data *series.Frame, outcome int) (any, error)

// PredictFunc predicts with a fitted model
type PredictFunc func(ctx context.Context, fitted any, features *series.Frame) (*series.Frame, error)

// HyperFunc extracts hyperparameters from a fitted model
type HyperFunc func(fitted any) (map[string]float64, error)

// Funcs adapts three plain functions to Variant and HyperparameterExtractor
type Funcs struct {
	ModelName   string
	TrainFunc   TrainFunc
	PredictFunc PredictFunc
	HyperFunc   HyperFunc
}

// Name returns the model name
func (f Funcs) Name() string { return f.ModelName }

// Train calls TrainFunc
func (f Funcs) Train(ctx context.Context, data *series.Frame, outcome int) (any, error) {
	if f.TrainFunc == nil {
		return nil, fmt.Errorf("model %q has no train function", f.ModelName)
	}
	return f.TrainFunc(ctx, data, outcome)
}

// Predict calls PredictFunc
func (f Funcs) Predict(ctx context.Context, fitted any, features *series.Frame) (*series.Frame, error) {
	if f.PredictFunc == nil {
		return nil, fmt.Errorf("model %q has no predict function", f.ModelName)
	}
	return f.PredictFunc(ctx, fitted, features)
}

// Hyperparameters calls HyperFunc; a nil HyperFunc yields an empty set
func (f Funcs) Hyperparameters(fitted any) (map[string]float64, error) {
	if f.HyperFunc == nil {
		return map[string]float64{}, nil
	}
	return f.HyperFunc(fitted)
}

// Predictions wraps values into a single-column prediction table
func Predictions(values []float64) *series.Frame {
	return series.MustFrame(series.NumericColumn(PredictionColumn, values))
}

// PredictionValues validates that out has exactly one numeric column with
// rows values and returns it
func PredictionValues(out *series.Frame, rows int) ([]float64, error) {
	if out == nil {
		return nil, fmt.Errorf("prediction table is nil")
	}
	if out.Width() != 1 {
		return nil, fmt.Errorf("prediction table has %d columns, expected exactly 1", out.Width())
	}
	col := out.ColumnAt(0)
	if col.Kind != series.Numeric {
		return nil, fmt.Errorf("prediction column %q is %s, expected numeric", col.Name, col.Kind)
	}
	if len(col.Num) != rows {
		return nil, fmt.Errorf("prediction table has %d rows, expected %d", len(col.Num), rows)
	}
	return col.Num, nil
}

// Factory creates a Variant with default settings
type Factory func() Variant

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a variant factory to the registry
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get returns a new variant by name
func Get(name string) (Variant, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if factory, ok := registry[name]; ok {
		return factory(), nil
	}
	return nil, fmt.Errorf("unknown model: %s", name)
}

// List returns the registered variant names, sorted
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
