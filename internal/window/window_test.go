package window

import (
	"errors"
	"testing"

	"github.com/soltixdb/directcv/internal/cverr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bounds(ws []Window) [][2]int {
	out := make([][2]int, len(ws))
	for i, w := range ws {
		out[i] = [2]int{w.Start, w.Stop}
	}
	return out
}

func TestPartition_FullWindows(t *testing.T) {
	ws, err := Partition(24, Options{Length: 6})
	require.NoError(t, err)

	assert.Equal(t, [][2]int{{0, 6}, {6, 12}, {12, 18}, {18, 24}}, bounds(ws))
	for i, w := range ws {
		assert.Equal(t, i+1, w.ID)
		assert.Equal(t, 6, w.Length)
		assert.False(t, w.Partial())
	}
}

func TestPartition_PartialWindow(t *testing.T) {
	ws, err := Partition(24, Options{Length: 5, IncludePartial: true})
	require.NoError(t, err)
	require.Len(t, ws, 5)

	last := ws[4]
	assert.Equal(t, 20, last.Start)
	assert.Equal(t, 24, last.Stop)
	assert.Equal(t, 4, last.Size())
	assert.Equal(t, 5, last.Length)
	assert.True(t, last.Partial())

	ws, err = Partition(24, Options{Length: 5})
	require.NoError(t, err)
	assert.Len(t, ws, 4)
}

func TestPartition_Skip(t *testing.T) {
	ws, err := Partition(20, Options{Length: 4, Skip: 2})
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{0, 4}, {6, 10}, {12, 16}}, bounds(ws))

	ws, err = Partition(20, Options{Length: 4, Skip: 2, IncludePartial: true})
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{0, 4}, {6, 10}, {12, 16}, {18, 20}}, bounds(ws))
}

func TestPartition_Bounds(t *testing.T) {
	ws, err := Partition(30, Options{Length: 5, Start: 10, Stop: 25})
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{10, 15}, {15, 20}, {20, 25}}, bounds(ws))
}

func TestPartition_Invariants(t *testing.T) {
	cases := []Options{
		{Length: 3, Skip: 0},
		{Length: 3, Skip: 1, IncludePartial: true},
		{Length: 7, Skip: 2},
		{Length: 5, Skip: 3, Start: 4, Stop: 37, IncludePartial: true},
		{Length: 1, Skip: 0},
	}
	for _, opts := range cases {
		ws, err := Partition(40, opts)
		require.NoError(t, err)

		stop := opts.Stop
		if stop == 0 {
			stop = 40
		}
		covered := 0
		for i, w := range ws {
			covered += w.Size()
			if i > 0 {
				prev := ws[i-1]
				assert.Greater(t, w.Start, prev.Start)
				assert.GreaterOrEqual(t, w.Start, prev.Stop, "windows overlap: %v %v", prev, w)
				covered += w.Start - prev.Stop
			}
		}
		span := ws[len(ws)-1].Stop - ws[0].Start
		assert.Equal(t, span, covered)

		// whatever is left after the last window is shorter than one stride
		assert.Less(t, stop-ws[len(ws)-1].Stop, opts.Length+opts.Skip+opts.Length)
		assert.Equal(t, opts.Start, ws[0].Start)
	}
}

func TestPartition_NullWindow(t *testing.T) {
	ws, err := Partition(24, Options{Length: 0, Skip: 3})
	require.NoError(t, err)
	require.Len(t, ws, 1)

	w := ws[0]
	assert.True(t, w.IsNull())
	assert.Equal(t, NullID, w.ID)
	assert.Equal(t, 0, w.Size())
	assert.False(t, w.Contains(0))
	assert.False(t, w.Partial())
	assert.Equal(t, "window[null]", w.String())
}

func TestPartition_Errors(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"negative length", Options{Length: -1}},
		{"negative skip", Options{Length: 2, Skip: -1}},
		{"start after stop", Options{Length: 2, Start: 10, Stop: 5}},
		{"start equals stop", Options{Length: 2, Start: 5, Stop: 5}},
		{"stop past end", Options{Length: 2, Stop: 30}},
		{"negative start", Options{Length: 2, Start: -1}},
		{"window larger than range", Options{Length: 30}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Partition(24, tt.opts)
			require.Error(t, err)
			assert.True(t, errors.Is(err, cverr.ErrConfiguration))
		})
	}
}

func TestWindow_Contains(t *testing.T) {
	w := Window{ID: 2, Start: 6, Stop: 12, Length: 6}
	assert.False(t, w.Contains(5))
	assert.True(t, w.Contains(6))
	assert.True(t, w.Contains(11))
	assert.False(t, w.Contains(12))
	assert.Equal(t, "window[2: 6-12)", w.String())
}
