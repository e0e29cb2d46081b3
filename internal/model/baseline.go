package model

import (
	"context"
	"fmt"

	"github.com/soltixdb/directcv/internal/series"
	"github.com/soltixdb/directcv/internal/utils"
	"gonum.org/v1/gonum/stat"
)

func init() {
	Register("mean", func() Variant { return &Mean{} })
	Register("persistence", func() Variant { return &Persistence{} })
}

// Mean predicts the training mean of the outcome for every row
type Mean struct{}

type meanFit struct {
	value float64
	rows  int
}

// Name returns the model name
func (m *Mean) Name() string { return "mean" }

// Train computes the mean of the defined outcome values
func (m *Mean) Train(_ context.Context, data *series.Frame, outcome int) (any, error) {
	if outcome < 0 || outcome >= data.Width() {
		return nil, fmt.Errorf("outcome index %d out of range", outcome)
	}
	y := data.ColumnAt(outcome)
	vals := make([]float64, 0, len(y.Num))
	for _, v := range y.Num {
		if utils.IsDefined(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("outcome %q has no defined values", y.Name)
	}
	return &meanFit{value: stat.Mean(vals, nil), rows: len(vals)}, nil
}

// Predict returns the fitted mean for every feature row
func (m *Mean) Predict(_ context.Context, fitted any, features *series.Frame) (*series.Frame, error) {
	fit, ok := fitted.(*meanFit)
	if !ok {
		return nil, fmt.Errorf("unexpected fitted type %T", fitted)
	}
	out := make([]float64, features.Len())
	for i := range out {
		out[i] = fit.value
	}
	return Predictions(out), nil
}

// Hyperparameters reports the fitted level
func (m *Mean) Hyperparameters(fitted any) (map[string]float64, error) {
	fit, ok := fitted.(*meanFit)
	if !ok {
		return nil, fmt.Errorf("unexpected fitted type %T", fitted)
	}
	return map[string]float64{"level": fit.value, "train_rows": float64(fit.rows)}, nil
}

// Persistence predicts the most recent observed outcome available at the
// horizon, which is the outcome's smallest retained lag column. It needs the
// outcome to be one of the lagged predictors.
type Persistence struct{}

type persistenceFit struct {
	column string
	lag    int
}

// Name returns the model name
func (p *Persistence) Name() string { return "persistence" }

// Train picks the outcome lag column with the smallest lag
func (p *Persistence) Train(_ context.Context, data *series.Frame, outcome int) (any, error) {
	lags, err := outcomeLags(data, outcome)
	if err != nil {
		return nil, err
	}
	return &persistenceFit{lag: lags[0].lag, column: lags[0].column}, nil
}

// Predict copies the chosen lag column
func (p *Persistence) Predict(_ context.Context, fitted any, features *series.Frame) (*series.Frame, error) {
	fit, ok := fitted.(*persistenceFit)
	if !ok {
		return nil, fmt.Errorf("unexpected fitted type %T", fitted)
	}
	col, ok := features.Column(fit.column)
	if !ok || col.Kind != series.Numeric {
		return nil, fmt.Errorf("feature column %q missing", fit.column)
	}
	return Predictions(append([]float64(nil), col.Num...)), nil
}

// Hyperparameters reports the lag used
func (p *Persistence) Hyperparameters(fitted any) (map[string]float64, error) {
	fit, ok := fitted.(*persistenceFit)
	if !ok {
		return nil, fmt.Errorf("unexpected fitted type %T", fitted)
	}
	return map[string]float64{"lag": float64(fit.lag)}, nil
}
