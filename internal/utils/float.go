package utils

import (
	"encoding/json"
	"math"
	"strconv"
)

// ToFloat64 converts numeric values to float64.
// Returns the converted value and true if successful, or 0 and false if conversion fails.
// Supports all Go integer and float kinds, json.Number and numeric strings.
func ToFloat64(v interface{}) (float64, bool) {
	if v == nil {
		return 0, false
	}

	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// IsDefined reports whether v is a usable metric value (not NaN or ±Inf)
func IsDefined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// MeanDefined averages the defined values, skipping NaN and ±Inf.
// Returns NaN and 0 when no value is defined.
func MeanDefined(values []float64) (float64, int) {
	sum := 0.0
	n := 0
	for _, v := range values {
		if !IsDefined(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN(), 0
	}
	return sum / float64(n), n
}
