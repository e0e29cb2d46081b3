package model

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/soltixdb/directcv/internal/series"
	"github.com/soltixdb/directcv/internal/utils"
)

func init() {
	Register("sma", func() Variant { return &MovingAverage{} })
	Register("exponential", func() Variant { return NewExponential(nil) })
}

// outcomeLag is one lag column of the outcome
type outcomeLag struct {
	lag    int
	column string
}

// outcomeLags returns the lag columns of the outcome at index outcome, most
// recent first
func outcomeLags(data *series.Frame, outcome int) ([]outcomeLag, error) {
	if outcome < 0 || outcome >= data.Width() {
		return nil, fmt.Errorf("outcome index %d out of range", outcome)
	}
	name := data.ColumnAt(outcome).Name
	prefix := name + utils.LagColumnSeparator

	var lags []outcomeLag
	for _, col := range data.Names() {
		if !strings.HasPrefix(col, prefix) {
			continue
		}
		lag, err := strconv.Atoi(strings.TrimPrefix(col, prefix))
		if err != nil {
			continue
		}
		lags = append(lags, outcomeLag{lag: lag, column: col})
	}
	if len(lags) == 0 {
		return nil, fmt.Errorf("no lag of the outcome %q among the features", name)
	}
	sort.Slice(lags, func(i, j int) bool { return lags[i].lag < lags[j].lag })
	return lags, nil
}

// weightedLags evaluates sum(w[k] * column k) for every feature row
func weightedLags(features *series.Frame, columns []string, weights []float64) ([]float64, error) {
	cols := make([]series.Column, len(columns))
	for k, name := range columns {
		c, ok := features.Column(name)
		if !ok || c.Kind != series.Numeric {
			return nil, fmt.Errorf("feature column %q missing", name)
		}
		cols[k] = c
	}
	out := make([]float64, features.Len())
	for r := range out {
		for k, c := range cols {
			out[r] += weights[k] * c.Num[r]
		}
	}
	return out, nil
}

// MovingAverage predicts the mean of the outcome lags available at the
// horizon, optionally limited to the Window most recent ones
type MovingAverage struct {
	Window int
}

type smoothingFit struct {
	columns []string
	weights []float64
	lag     int
	alpha   float64
	sse     float64
}

// Name returns the model name
func (m *MovingAverage) Name() string { return "sma" }

// Train picks the lag columns to average
func (m *MovingAverage) Train(_ context.Context, data *series.Frame, outcome int) (any, error) {
	lags, err := outcomeLags(data, outcome)
	if err != nil {
		return nil, err
	}
	if m.Window > 0 && m.Window < len(lags) {
		lags = lags[:m.Window]
	}
	fit := &smoothingFit{lag: lags[0].lag}
	for _, l := range lags {
		fit.columns = append(fit.columns, l.column)
		fit.weights = append(fit.weights, 1/float64(len(lags)))
	}
	return fit, nil
}

// Predict averages the chosen lag columns
func (m *MovingAverage) Predict(_ context.Context, fitted any, features *series.Frame) (*series.Frame, error) {
	fit, ok := fitted.(*smoothingFit)
	if !ok {
		return nil, fmt.Errorf("unexpected fitted type %T", fitted)
	}
	out, err := weightedLags(features, fit.columns, fit.weights)
	if err != nil {
		return nil, err
	}
	return Predictions(out), nil
}

// Hyperparameters reports the window size and the most recent lag used
func (m *MovingAverage) Hyperparameters(fitted any) (map[string]float64, error) {
	fit, ok := fitted.(*smoothingFit)
	if !ok {
		return nil, fmt.Errorf("unexpected fitted type %T", fitted)
	}
	return map[string]float64{
		"window_size": float64(len(fit.columns)),
		"lag":         float64(fit.lag),
	}, nil
}

// DefaultAlphas is the smoothing factor grid searched by Exponential
var DefaultAlphas = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9}

// Exponential weights the outcome lags by alpha*(1-alpha)^k, k counting from
// the most recent available lag, normalized to sum to one. Train picks the
// alpha with the lowest squared error on the training rows.
type Exponential struct {
	Alphas []float64
}

// NewExponential creates an exponential smoothing variant searching alphas,
// or DefaultAlphas when nil
func NewExponential(alphas []float64) *Exponential {
	if len(alphas) == 0 {
		alphas = DefaultAlphas
	}
	return &Exponential{Alphas: alphas}
}

// Name returns the model name
func (e *Exponential) Name() string { return "exponential" }

// Train selects the smoothing factor, searching DefaultAlphas when Alphas is
// empty
func (e *Exponential) Train(ctx context.Context, data *series.Frame, outcome int) (any, error) {
	lags, err := outcomeLags(data, outcome)
	if err != nil {
		return nil, err
	}
	columns := make([]string, len(lags))
	for k, l := range lags {
		columns[k] = l.column
	}
	y := data.ColumnAt(outcome).Num

	alphas := e.Alphas
	if len(alphas) == 0 {
		alphas = DefaultAlphas
	}

	var best *smoothingFit
	for _, alpha := range alphas {
		if alpha <= 0 || alpha > 1 {
			return nil, fmt.Errorf("alpha %v outside (0, 1]", alpha)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		weights := expWeights(alpha, len(columns))
		pred, err := weightedLags(data, columns, weights)
		if err != nil {
			return nil, err
		}
		sse, n := 0.0, 0
		for i, p := range pred {
			if d := y[i] - p; utils.IsDefined(d) {
				sse += d * d
				n++
			}
		}
		if n == 0 {
			return nil, fmt.Errorf("no complete rows to fit")
		}
		if best == nil || sse < best.sse {
			best = &smoothingFit{columns: columns, weights: weights, lag: lags[0].lag, alpha: alpha, sse: sse}
		}
	}
	return best, nil
}

// Predict applies the fitted weights
func (e *Exponential) Predict(_ context.Context, fitted any, features *series.Frame) (*series.Frame, error) {
	fit, ok := fitted.(*smoothingFit)
	if !ok {
		return nil, fmt.Errorf("unexpected fitted type %T", fitted)
	}
	out, err := weightedLags(features, fit.columns, fit.weights)
	if err != nil {
		return nil, err
	}
	return Predictions(out), nil
}

// Hyperparameters reports the chosen alpha and its training error
func (e *Exponential) Hyperparameters(fitted any) (map[string]float64, error) {
	fit, ok := fitted.(*smoothingFit)
	if !ok {
		return nil, fmt.Errorf("unexpected fitted type %T", fitted)
	}
	return map[string]float64{
		"alpha":     fit.alpha,
		"train_sse": fit.sse,
		"lags":      float64(len(fit.columns)),
	}, nil
}

func expWeights(alpha float64, n int) []float64 {
	w := make([]float64, n)
	total := 0.0
	for k := range w {
		w[k] = alpha * math.Pow(1-alpha, float64(k))
		total += w[k]
	}
	for k := range w {
		w[k] /= total
	}
	return w
}
