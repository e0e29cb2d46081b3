// Package grid trains one model per (horizon, window) cell of the nested
// cross-validation outer loop.
//
// Cells are independent: each receives only its own row subset of the
// horizon's shared, read-only lagged table. A failing cell is recorded and
// the remaining cells still run.
package grid

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/soltixdb/directcv/internal/cverr"
	"github.com/soltixdb/directcv/internal/lagmatrix"
	"github.com/soltixdb/directcv/internal/logging"
	"github.com/soltixdb/directcv/internal/metrics"
	"github.com/soltixdb/directcv/internal/model"
	"github.com/soltixdb/directcv/internal/utils"
	"github.com/soltixdb/directcv/internal/window"
	"golang.org/x/sync/errgroup"
)

// Options configures Train
type Options struct {
	// Workers bounds the number of cells trained concurrently
	Workers int

	// CellTimeout bounds one training call; 0 disables it
	CellTimeout time.Duration

	Logger  *logging.Logger
	Metrics *metrics.Recorder
}

func (o Options) workers() int {
	switch {
	case o.Workers <= 0:
		return utils.DefaultGridWorkers
	case o.Workers > utils.MaxGridWorkers:
		return utils.MaxGridWorkers
	default:
		return o.Workers
	}
}

// CellKey identifies a cell within one model's grid
type CellKey struct {
	Horizon  int
	WindowID int
}

func (k CellKey) String() string {
	return fmt.Sprintf("h%d/w%d", k.Horizon, k.WindowID)
}

// Status is the state of a cell
type Status int

const (
	StatusPending Status = iota
	StatusOK
	StatusFailed
	// StatusSkipped marks cells never started because the run was cancelled
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "pending"
	}
}

// Cell is one (horizon, window) unit of training work
type Cell struct {
	Key    CellKey
	Window window.Window

	// Model is the opaque fitted value; nil unless Status is StatusOK and the
	// model has not been released
	Model any

	Status    Status
	Err       *cverr.ModelTrainingError
	TrainRows int
	Duration  time.Duration

	released bool
}

// Released reports whether the fitted model was discarded
func (c *Cell) Released() bool { return c.released }

// Grid holds every cell of one model variant. Cells live in a flat arena
// ordered by horizon, then by window.
type Grid struct {
	Model    string
	Tables   map[int]*lagmatrix.LaggedTable
	Windows  []window.Window
	Horizons []int

	cells   []*Cell
	windowX map[int]int
	mu      sync.Mutex
}

func newGrid(name string, tables map[int]*lagmatrix.LaggedTable, windows []window.Window) *Grid {
	g := &Grid{
		Model:    name,
		Tables:   tables,
		Windows:  windows,
		Horizons: lagmatrix.SortedHorizons(tables),
		windowX:  make(map[int]int, len(windows)),
	}
	for i, w := range windows {
		g.windowX[w.ID] = i
	}
	g.cells = make([]*Cell, 0, len(g.Horizons)*len(windows))
	for _, h := range g.Horizons {
		for _, w := range windows {
			g.cells = append(g.cells, &Cell{Key: CellKey{Horizon: h, WindowID: w.ID}, Window: w})
		}
	}
	return g
}

// Len returns the number of cells
func (g *Grid) Len() int { return len(g.cells) }

// Cells returns all cells ordered by horizon, then window
func (g *Grid) Cells() []*Cell { return g.cells }

// Cell returns the cell for (horizon, windowID)
func (g *Grid) Cell(horizon, windowID int) (*Cell, bool) {
	wi, ok := g.windowX[windowID]
	if !ok {
		return nil, false
	}
	hi := sort.SearchInts(g.Horizons, horizon)
	if hi >= len(g.Horizons) || g.Horizons[hi] != horizon {
		return nil, false
	}
	return g.cells[hi*len(g.Windows)+wi], true
}

// Succeeded returns the trained cells in key order
func (g *Grid) Succeeded() []*Cell {
	return g.filter(StatusOK)
}

// Failed returns the training error of every failed cell in key order
func (g *Grid) Failed() []*cverr.ModelTrainingError {
	var out []*cverr.ModelTrainingError
	for _, c := range g.filter(StatusFailed) {
		out = append(out, c.Err)
	}
	return out
}

// Skipped returns the keys of cells that never ran
func (g *Grid) Skipped() []CellKey {
	var out []CellKey
	for _, c := range g.filter(StatusSkipped) {
		out = append(out, c.Key)
	}
	return out
}

func (g *Grid) filter(s Status) []*Cell {
	var out []*Cell
	for _, c := range g.cells {
		if c.Status == s {
			out = append(out, c)
		}
	}
	return out
}

// Release drops the fitted model of one cell
func (g *Grid) Release(key CellKey) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.Cell(key.Horizon, key.WindowID); ok && c.Model != nil {
		c.Model = nil
		c.released = true
	}
}

// ReleaseAll drops every fitted model
func (g *Grid) ReleaseAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range g.cells {
		if c.Model != nil {
			c.Model = nil
			c.released = true
		}
	}
}

// Stats returns cell counts for summaries and logs
func (g *Grid) Stats() map[string]interface{} {
	counts := map[Status]int{}
	var total time.Duration
	for _, c := range g.cells {
		counts[c.Status]++
		total += c.Duration
	}
	return map[string]interface{}{
		"model":      g.Model,
		"horizons":   len(g.Horizons),
		"windows":    len(g.Windows),
		"cells":      len(g.cells),
		"succeeded":  counts[StatusOK],
		"failed":     counts[StatusFailed],
		"skipped":    counts[StatusSkipped],
		"train_time": total.String(),
	}
}

// Train fits variant once per (horizon, window) cell on the rows of the
// horizon's table that fall outside the window, or on all rows for the null
// window.
//
// Per-cell failures, including panics, are recorded on the cell. When the
// context is cancelled no new cells are scheduled; the partial grid is
// returned together with the context error. When every cell fails the grid
// is returned with an error wrapping cverr.ErrAllCellsFailed.
func Train(ctx context.Context, tables map[int]*lagmatrix.LaggedTable, windows []window.Window, variant model.Variant, opts Options) (*Grid, error) {
	if err := validate(tables, windows, variant); err != nil {
		return nil, err
	}
	logger := logging.OrGlobal(opts.Logger).With("model", variant.Name())
	g := newGrid(variant.Name(), tables, windows)

	start := time.Now()
	var eg errgroup.Group
	eg.SetLimit(opts.workers())

	for _, c := range g.cells {
		if ctx.Err() != nil {
			c.Status = StatusSkipped
			opts.Metrics.CellSkipped(metrics.StageTrain, g.Model)
			continue
		}
		c := c
		table := tables[c.Key.Horizon]
		eg.Go(func() error {
			// eg.Go blocks while the pool is full, so the context may have
			// been cancelled since the check above
			if ctx.Err() != nil {
				c.Status = StatusSkipped
				opts.Metrics.CellSkipped(metrics.StageTrain, g.Model)
				return nil
			}
			trainCell(ctx, c, table, variant, opts)
			if c.Status == StatusFailed {
				logger.Warn("Cell training failed",
					"horizon", c.Key.Horizon,
					"window_id", c.Key.WindowID,
					"error", c.Err.Cause)
			}
			return nil
		})
	}
	_ = eg.Wait()

	stats := g.Stats()
	logger.Info("Grid trained",
		"cells", stats["cells"],
		"succeeded", stats["succeeded"],
		"failed", stats["failed"],
		"skipped", stats["skipped"],
		"elapsed", time.Since(start).String())

	if err := ctx.Err(); err != nil {
		return g, err
	}
	if len(g.Succeeded()) == 0 {
		return g, fmt.Errorf("model %s: %w (%d cells)", g.Model, cverr.ErrAllCellsFailed, g.Len())
	}
	return g, nil
}

func validate(tables map[int]*lagmatrix.LaggedTable, windows []window.Window, variant model.Variant) error {
	if variant == nil {
		return cverr.Configurationf("variant", "model variant is required")
	}
	if len(tables) == 0 {
		return cverr.Configurationf("tables", "at least one lagged table is required")
	}
	for h, t := range tables {
		if t == nil || t.Mode != lagmatrix.ModeTrain {
			return cverr.Configurationf("tables", "horizon %d: training requires a train-mode table", h)
		}
	}
	if len(windows) == 0 {
		return cverr.Configurationf("windows", "at least one window is required")
	}
	seen := make(map[int]bool, len(windows))
	for _, w := range windows {
		if seen[w.ID] {
			return cverr.Configurationf("windows", "duplicate window id %d", w.ID)
		}
		seen[w.ID] = true
	}
	return nil
}

func trainCell(ctx context.Context, c *Cell, table *lagmatrix.LaggedTable, variant model.Variant, opts Options) {
	opts.Metrics.CellStarted(metrics.StageTrain)
	start := time.Now()

	fail := func(err error) {
		c.Status = StatusFailed
		c.Err = &cverr.ModelTrainingError{
			Model:    variant.Name(),
			Horizon:  c.Key.Horizon,
			WindowID: c.Key.WindowID,
			Cause:    err,
		}
	}

	rows := table.RowsWhere(func(orig int) bool { return !c.Window.Contains(orig) })
	c.TrainRows = len(rows)
	if len(rows) == 0 {
		fail(fmt.Errorf("no training rows outside %s", c.Window))
	} else {
		data := table.Data.Take(rows)
		m, err := Invoke(ctx, opts.CellTimeout, func(ctx context.Context) (any, error) {
			return variant.Train(ctx, data, table.OutcomeIndex())
		})
		switch {
		case Interrupted(ctx, err):
			c.Status = StatusSkipped
		case err != nil:
			fail(err)
		default:
			c.Status = StatusOK
			c.Model = m
		}
	}

	c.Duration = time.Since(start)
	status := metrics.StatusOK
	switch c.Status {
	case StatusFailed:
		status = metrics.StatusFailed
	case StatusSkipped:
		status = metrics.StatusSkipped
	}
	opts.Metrics.CellFinished(metrics.StageTrain, variant.Name(), status, c.Duration)
}
