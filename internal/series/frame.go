// Package series provides the immutable columnar table used for raw series,
// lagged design matrices and the feature/prediction tables exchanged with
// model variants.
package series

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/soltixdb/directcv/internal/utils"
)

// Kind is the value type of a column
type Kind int

const (
	Numeric Kind = iota
	Categorical
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	default:
		return "unknown"
	}
}

// Column is a named, typed vector. Exactly one of Num or Cat is populated,
// according to Kind.
type Column struct {
	Name string
	Kind Kind
	Num  []float64
	Cat  []string
}

// NumericColumn creates a numeric column
func NumericColumn(name string, values []float64) Column {
	return Column{Name: name, Kind: Numeric, Num: values}
}

// CategoricalColumn creates a categorical column
func CategoricalColumn(name string, values []string) Column {
	return Column{Name: name, Kind: Categorical, Cat: values}
}

// Len returns the number of values in the column
func (c Column) Len() int {
	if c.Kind == Categorical {
		return len(c.Cat)
	}
	return len(c.Num)
}

// take copies the values at rows into a new column
func (c Column) take(rows []int) Column {
	out := Column{Name: c.Name, Kind: c.Kind}
	if c.Kind == Categorical {
		out.Cat = make([]string, len(rows))
		for i, r := range rows {
			out.Cat[i] = c.Cat[r]
		}
		return out
	}
	out.Num = make([]float64, len(rows))
	for i, r := range rows {
		out.Num[i] = c.Num[r]
	}
	return out
}

// Frame is an ordered set of equal-length columns. The row order is the time
// order and is never permuted. A Frame is not modified after construction;
// callers must treat slices returned by Column as read-only.
type Frame struct {
	cols  []Column
	index map[string]int
	rows  int
}

// NewFrame creates a frame from columns
func NewFrame(cols ...Column) (*Frame, error) {
	f := &Frame{
		cols:  make([]Column, 0, len(cols)),
		index: make(map[string]int, len(cols)),
	}
	for i, c := range cols {
		if c.Name == "" {
			return nil, fmt.Errorf("column %d has no name", i)
		}
		if _, dup := f.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		if i == 0 {
			f.rows = c.Len()
		} else if c.Len() != f.rows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", c.Name, c.Len(), f.rows)
		}
		f.index[c.Name] = len(f.cols)
		f.cols = append(f.cols, c)
	}
	return f, nil
}

// MustFrame is like NewFrame but panics on error
func MustFrame(cols ...Column) *Frame {
	f, err := NewFrame(cols...)
	if err != nil {
		panic(err)
	}
	return f
}

// Len returns the number of rows
func (f *Frame) Len() int { return f.rows }

// Width returns the number of columns
func (f *Frame) Width() int { return len(f.cols) }

// Names returns the column names in order
func (f *Frame) Names() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of the named column
func (f *Frame) Index(name string) (int, bool) {
	i, ok := f.index[name]
	return i, ok
}

// Column returns the named column
func (f *Frame) Column(name string) (Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return Column{}, false
	}
	return f.cols[i], true
}

// ColumnAt returns the column at position i
func (f *Frame) ColumnAt(i int) Column { return f.cols[i] }

// Float returns the numeric value at (col, row); NaN for categorical columns
func (f *Frame) Float(col, row int) float64 {
	c := f.cols[col]
	if c.Kind != Numeric {
		return math.NaN()
	}
	return c.Num[row]
}

// Take returns a new frame holding copies of the given rows, in the given order
func (f *Frame) Take(rows []int) *Frame {
	out := &Frame{
		cols:  make([]Column, len(f.cols)),
		index: f.index,
		rows:  len(rows),
	}
	for i, c := range f.cols {
		out.cols[i] = c.take(rows)
	}
	return out
}

// Drop returns a frame without the named columns. Unknown names are ignored.
func (f *Frame) Drop(names ...string) *Frame {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	kept := make([]Column, 0, len(f.cols))
	for _, c := range f.cols {
		if !skip[c.Name] {
			kept = append(kept, c)
		}
	}
	out, _ := NewFrame(kept...)
	if len(kept) == 0 {
		out.rows = f.rows
	}
	return out
}

// Select returns a frame with only the named columns, in the given order
func (f *Frame) Select(names ...string) (*Frame, error) {
	cols := make([]Column, 0, len(names))
	for _, n := range names {
		c, ok := f.Column(n)
		if !ok {
			return nil, fmt.Errorf("unknown column %q", n)
		}
		cols = append(cols, c)
	}
	return NewFrame(cols...)
}

// FromRecords builds a frame from string records, such as CSV rows. A column
// is numeric when every non-empty cell parses as a float; empty numeric cells
// become NaN. Otherwise the column is categorical.
func FromRecords(header []string, records [][]string) (*Frame, error) {
	cols := make([]Column, len(header))
	for j, name := range header {
		name = strings.TrimSpace(name)
		nums := make([]float64, len(records))
		numeric := true
		for i, rec := range records {
			if j >= len(rec) {
				return nil, fmt.Errorf("record %d has %d fields, expected %d", i, len(rec), len(header))
			}
			cell := strings.TrimSpace(rec[j])
			if cell == "" {
				nums[i] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				numeric = false
				break
			}
			nums[i] = v
		}
		if numeric {
			cols[j] = NumericColumn(name, nums)
			continue
		}
		cats := make([]string, len(records))
		for i, rec := range records {
			cats[i] = strings.TrimSpace(rec[j])
		}
		cols[j] = CategoricalColumn(name, cats)
	}
	return NewFrame(cols...)
}

// FromValues builds a frame from row-oriented values. A column is numeric when
// every non-nil value converts to float64; nil numeric values become NaN.
func FromValues(names []string, rows [][]interface{}) (*Frame, error) {
	cols := make([]Column, len(names))
	for j, name := range names {
		nums := make([]float64, len(rows))
		numeric := true
		for i, row := range rows {
			if j >= len(row) {
				return nil, fmt.Errorf("row %d has %d values, expected %d", i, len(row), len(names))
			}
			if row[j] == nil {
				nums[i] = math.NaN()
				continue
			}
			v, ok := utils.ToFloat64(row[j])
			if !ok {
				numeric = false
				break
			}
			nums[i] = v
		}
		if numeric {
			cols[j] = NumericColumn(name, nums)
			continue
		}
		cats := make([]string, len(rows))
		for i, row := range rows {
			if row[j] != nil {
				cats[i] = fmt.Sprint(row[j])
			}
		}
		cols[j] = CategoricalColumn(name, cats)
	}
	return NewFrame(cols...)
}
