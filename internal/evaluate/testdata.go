package evaluate

import (
	"fmt"

	"github.com/soltixdb/directcv/internal/cverr"
	"github.com/soltixdb/directcv/internal/predict"
	"github.com/soltixdb/directcv/internal/series"
)

// TestData holds ground truth for forecast-mode evaluation, keyed by original
// row index
type TestData struct {
	Index  []int
	Actual []float64

	// Strict fails the join when any forecast row has no ground truth
	Strict bool
}

// TestFromFrame takes the outcome column of f as ground truth for the rows
// that follow the training series; row i of f has original index firstIndex+i
func TestFromFrame(f *series.Frame, outcome string, firstIndex int) (*TestData, error) {
	col, ok := f.Column(outcome)
	if !ok {
		return nil, &cverr.DataAlignmentError{Message: fmt.Sprintf("test data has no outcome column %q", outcome)}
	}
	if col.Kind != series.Numeric {
		return nil, &cverr.DataAlignmentError{Message: fmt.Sprintf("test outcome column %q is not numeric", outcome)}
	}
	td := &TestData{Index: make([]int, f.Len()), Actual: append([]float64(nil), col.Num...)}
	for i := range td.Index {
		td.Index[i] = firstIndex + i
	}
	return td, nil
}

// join attaches actuals to forecast records. Records without a matching index
// are returned as unmatched; it is an error when none match, or when any is
// unmatched and td is strict.
func (td *TestData) join(records []predict.Record) ([]predict.Record, []int, error) {
	if len(td.Index) != len(td.Actual) {
		return nil, nil, &cverr.DataAlignmentError{
			Message: fmt.Sprintf("test data has %d indices and %d actuals", len(td.Index), len(td.Actual)),
		}
	}
	actual := make(map[int]float64, len(td.Index))
	var dups []int
	for i, idx := range td.Index {
		if _, dup := actual[idx]; dup {
			dups = append(dups, idx)
			continue
		}
		actual[idx] = td.Actual[i]
	}
	if len(dups) > 0 {
		return nil, nil, &cverr.DataAlignmentError{Message: "duplicate index in test data", Indices: dups}
	}

	out := make([]predict.Record, 0, len(records))
	seen := make(map[int]bool)
	var unmatched []int
	for _, r := range records {
		a, ok := actual[r.Index]
		if !ok {
			if !seen[r.Index] {
				seen[r.Index] = true
				unmatched = append(unmatched, r.Index)
			}
			continue
		}
		r.Actual = a
		r.HasActual = true
		out = append(out, r)
	}
	if len(out) == 0 && len(records) > 0 {
		return nil, nil, &cverr.DataAlignmentError{Message: "no forecast row matches the test data", Indices: unmatched}
	}
	if td.Strict && len(unmatched) > 0 {
		return nil, nil, &cverr.DataAlignmentError{Message: "forecast rows missing from the test data", Indices: unmatched}
	}
	return out, unmatched, nil
}
