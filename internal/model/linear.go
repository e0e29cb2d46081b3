package model

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/soltixdb/directcv/internal/series"
	"gonum.org/v1/gonum/mat"
)

// Linear fits ordinary least squares, or ridge regression when Lambda > 0,
// on the numeric feature columns. Categorical columns are ignored. Rows with
// an undefined feature or outcome are left out of the fit.
type Linear struct {
	Lambda float64
}

// LinearFit is the fitted value produced by Linear
type LinearFit struct {
	Columns   []string
	Coef      []float64
	Intercept float64
	Lambda    float64
	Rows      int
}

// NewLinear creates a linear variant
func NewLinear(lambda float64) *Linear {
	return &Linear{Lambda: lambda}
}

func init() {
	Register("linear", func() Variant { return NewLinear(0) })
}

// Name returns the model name
func (l *Linear) Name() string {
	if l.Lambda > 0 {
		return "ridge"
	}
	return "linear"
}

// Train solves (X'X + lambda*I) beta = X'y with an unpenalized intercept
func (l *Linear) Train(ctx context.Context, data *series.Frame, outcome int) (any, error) {
	if outcome < 0 || outcome >= data.Width() {
		return nil, fmt.Errorf("outcome index %d out of range", outcome)
	}
	y := data.ColumnAt(outcome)

	var cols []series.Column
	for i := 0; i < data.Width(); i++ {
		c := data.ColumnAt(i)
		if i != outcome && c.Kind == series.Numeric {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return nil, errors.New("no numeric feature columns")
	}

	p := len(cols) + 1
	xs := make([]float64, 0, data.Len()*p)
	ys := make([]float64, 0, data.Len())
	for r := 0; r < data.Len(); r++ {
		if math.IsNaN(y.Num[r]) || !rowDefined(cols, r) {
			continue
		}
		xs = append(xs, 1)
		for _, c := range cols {
			xs = append(xs, c.Num[r])
		}
		ys = append(ys, y.Num[r])
	}
	n := len(ys)
	if n < p && l.Lambda == 0 {
		return nil, fmt.Errorf("need at least %d complete rows for %d features, have %d", p, p-1, n)
	}
	if n == 0 {
		return nil, errors.New("no complete rows to fit")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	x := mat.NewDense(n, p, xs)
	yv := mat.NewVecDense(n, ys)

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	for j := 1; j < p; j++ {
		xtx.Set(j, j, xtx.At(j, j)+l.Lambda)
	}
	var xty mat.VecDense
	xty.MulVec(x.T(), yv)

	var beta mat.VecDense
	if err := beta.SolveVec(&xtx, &xty); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("solve normal equations: %w", err)
		}
		// Ill-conditioned systems still produce a solution; reject it only
		// when it is not finite.
		for j := 0; j < p; j++ {
			if v := beta.AtVec(j); math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("singular design matrix: %w", err)
			}
		}
	}

	fit := &LinearFit{
		Columns:   make([]string, len(cols)),
		Coef:      make([]float64, len(cols)),
		Intercept: beta.AtVec(0),
		Lambda:    l.Lambda,
		Rows:      n,
	}
	for j, c := range cols {
		fit.Columns[j] = c.Name
		fit.Coef[j] = beta.AtVec(j + 1)
	}
	return fit, nil
}

// Predict evaluates the fitted linear model on each feature row
func (l *Linear) Predict(ctx context.Context, fitted any, features *series.Frame) (*series.Frame, error) {
	fit, ok := fitted.(*LinearFit)
	if !ok {
		return nil, fmt.Errorf("unexpected fitted type %T", fitted)
	}

	cols := make([]series.Column, len(fit.Columns))
	for j, name := range fit.Columns {
		c, ok := features.Column(name)
		if !ok || c.Kind != series.Numeric {
			return nil, fmt.Errorf("feature column %q missing", name)
		}
		cols[j] = c
	}

	out := make([]float64, features.Len())
	for r := range out {
		v := fit.Intercept
		for j, c := range cols {
			v += fit.Coef[j] * c.Num[r]
		}
		out[r] = v
	}
	return Predictions(out), nil
}

// Hyperparameters reports the penalty and the size of the fit
func (l *Linear) Hyperparameters(fitted any) (map[string]float64, error) {
	fit, ok := fitted.(*LinearFit)
	if !ok {
		return nil, fmt.Errorf("unexpected fitted type %T", fitted)
	}
	return map[string]float64{
		"lambda":     fit.Lambda,
		"intercept":  fit.Intercept,
		"features":   float64(len(fit.Coef)),
		"train_rows": float64(fit.Rows),
	}, nil
}

func rowDefined(cols []series.Column, r int) bool {
	for _, c := range cols {
		if math.IsNaN(c.Num[r]) {
			return false
		}
	}
	return true
}
