// Package window partitions a series into the contiguous, chronologically
// ordered outer-loop validation windows of nested cross-validation.
package window

import (
	"fmt"

	"github.com/soltixdb/directcv/internal/cverr"
)

// NullID is the id of the null window
const NullID = 0

// Window is a half-open range [Start, Stop) of original row indices held out
// for validation. Length is the nominal window size; the last window may be
// shorter when partial windows are kept.
type Window struct {
	ID     int
	Start  int
	Stop   int
	Length int
}

// Null returns the sentinel window meaning "train on everything, no holdout"
func Null() Window {
	return Window{ID: NullID}
}

// IsNull reports whether w is the null window
func (w Window) IsNull() bool { return w.Length == 0 }

// Size returns the number of rows held out
func (w Window) Size() int { return w.Stop - w.Start }

// Partial reports whether the window is shorter than its nominal length
func (w Window) Partial() bool { return !w.IsNull() && w.Size() < w.Length }

// Contains reports whether the original row index i is held out by w.
// The null window holds out nothing.
func (w Window) Contains(i int) bool {
	if w.IsNull() {
		return false
	}
	return i >= w.Start && i < w.Stop
}

func (w Window) String() string {
	if w.IsNull() {
		return "window[null]"
	}
	return fmt.Sprintf("window[%d: %d-%d)", w.ID, w.Start, w.Stop)
}

// Options configures Partition. Start and Stop bound the walk as row indices;
// a zero Stop means the end of the series.
type Options struct {
	Length         int
	Skip           int
	Start          int
	Stop           int
	IncludePartial bool
}

// Partition walks forward from Start in strides of Length+Skip and emits one
// window per stride until Stop. Window ids start at 1. A zero Length returns
// the single null window.
func Partition(rowCount int, opts Options) ([]Window, error) {
	if opts.Length < 0 {
		return nil, cverr.Configurationf("window_length", "must be >= 0, got %d", opts.Length)
	}
	if opts.Skip < 0 {
		return nil, cverr.Configurationf("skip", "must be >= 0, got %d", opts.Skip)
	}
	if opts.Length == 0 {
		return []Window{Null()}, nil
	}

	stop := opts.Stop
	if stop == 0 {
		stop = rowCount
	}
	if opts.Start < 0 {
		return nil, cverr.Configurationf("window_start", "must be >= 0, got %d", opts.Start)
	}
	if stop > rowCount {
		return nil, cverr.Configurationf("window_stop", "%d exceeds row count %d", stop, rowCount)
	}
	if opts.Start >= stop {
		return nil, cverr.Configurationf("window_start", "start %d must be before stop %d", opts.Start, stop)
	}

	var windows []Window
	for start := opts.Start; start < stop; start += opts.Length + opts.Skip {
		end := start + opts.Length
		if end > stop {
			if opts.IncludePartial {
				windows = append(windows, Window{ID: len(windows) + 1, Start: start, Stop: stop, Length: opts.Length})
			}
			break
		}
		windows = append(windows, Window{ID: len(windows) + 1, Start: start, Stop: end, Length: opts.Length})
	}

	if len(windows) == 0 {
		return nil, cverr.Configurationf("window_length",
			"length %d does not fit in [%d, %d) and partial windows are disabled", opts.Length, opts.Start, stop)
	}
	return windows, nil
}
