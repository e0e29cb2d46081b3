package evaluate

import (
	"math"
	"sort"
)

// metric computes a pointwise value and finishes the mean of those values.
// A NaN pointwise value is undefined and excluded from the mean.
type metric struct {
	point  func(actual, predicted float64) float64
	finish func(mean float64) float64
}

var metrics = map[string]metric{
	"mae": {
		point: func(a, p float64) float64 { return math.Abs(a - p) },
	},
	"mape": {
		point: func(a, p float64) float64 {
			if a == 0 {
				return math.NaN()
			}
			return math.Abs(a-p) / math.Abs(a) * 100
		},
	},
	"smape": {
		point: func(a, p float64) float64 {
			den := math.Abs(a) + math.Abs(p)
			if den == 0 {
				return math.NaN()
			}
			return 2 * math.Abs(a-p) / den * 100
		},
	},
	"rmse": {
		point:  func(a, p float64) float64 { d := a - p; return d * d },
		finish: math.Sqrt,
	},
}

// SupportedMetrics returns the metric names Aggregate accepts
func SupportedMetrics() []string {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Pointwise returns the pointwise value of the named metric, NaN when it is
// undefined for this pair
func Pointwise(name string, actual, predicted float64) (float64, bool) {
	m, ok := metrics[name]
	if !ok {
		return math.NaN(), false
	}
	if math.IsNaN(actual) || math.IsNaN(predicted) {
		return math.NaN(), true
	}
	return m.point(actual, predicted), true
}
