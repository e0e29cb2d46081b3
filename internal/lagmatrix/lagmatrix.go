// Package lagmatrix builds the horizon-specific lagged design matrices used for
// direct multi-horizon forecasting.
//
// For a model trained to predict h steps ahead, a predictor lagged by L rows is
// only available at forecast time when L >= h. Lags below the horizon are pruned
// from that horizon's table, and rows whose lagged values would reach before the
// start of the series are dropped.
package lagmatrix

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/soltixdb/directcv/internal/cverr"
	"github.com/soltixdb/directcv/internal/series"
	"github.com/soltixdb/directcv/internal/utils"
)

// Mode selects what a lagged table is built for
type Mode string

const (
	// ModeTrain keeps the outcome column and every row with fully defined lags
	ModeTrain Mode = "train"
	// ModeForecast keeps only the rows needed to forecast past the end of the
	// series and omits the (unknown) outcome
	ModeForecast Mode = "forecast"
)

// LagSpec maps predictor names to the lag offsets, in rows, to materialize
type LagSpec map[string][]int

// Uniform returns a LagSpec applying the same lags to every predictor
func Uniform(predictors []string, lags []int) LagSpec {
	spec := make(LagSpec, len(predictors))
	for _, p := range predictors {
		spec[p] = append([]int(nil), lags...)
	}
	return spec
}

// Options configures Build
type Options struct {
	Outcome  string
	Lookback LagSpec
	Horizons []int
	Mode     Mode // defaults to ModeTrain
}

// LaggedTable is the design matrix for one forecast horizon
type LaggedTable struct {
	Horizon int
	Mode    Mode
	Outcome string

	// Data holds the outcome column (train mode only) followed by one column
	// per retained (predictor, lag) pair.
	Data *series.Frame

	// RowIndex maps each row of Data to its original series row. In forecast
	// mode the index points past the end of the series, at the forecast target.
	RowIndex []int

	// Steps holds, in forecast mode, the forward step (1..Horizon) of each row
	Steps []int

	// RetainedLags lists, per predictor, the requested lags that survived
	// pruning; DroppedLags lists the ones removed because L < Horizon.
	RetainedLags map[string][]int
	DroppedLags  map[string][]int
}

// Len returns the number of rows
func (t *LaggedTable) Len() int { return t.Data.Len() }

// OutcomeIndex returns the position of the outcome column in Data, or -1 when
// the table has no outcome (forecast mode)
func (t *LaggedTable) OutcomeIndex() int {
	if t.Mode == ModeForecast {
		return -1
	}
	i, ok := t.Data.Index(t.Outcome)
	if !ok {
		return -1
	}
	return i
}

// Features returns the predictor columns only
func (t *LaggedTable) Features() *series.Frame {
	if t.Mode == ModeForecast {
		return t.Data
	}
	return t.Data.Drop(t.Outcome)
}

// Actual returns the outcome value of row i; only valid in train mode
func (t *LaggedTable) Actual(i int) float64 {
	return t.Data.Float(t.OutcomeIndex(), i)
}

// RowsWhere returns the table rows whose original index satisfies keep
func (t *LaggedTable) RowsWhere(keep func(original int) bool) []int {
	rows := make([]int, 0, len(t.RowIndex))
	for i, orig := range t.RowIndex {
		if keep(orig) {
			rows = append(rows, i)
		}
	}
	return rows
}

// LagColumnName returns the column name used for predictor lagged by lag rows
func LagColumnName(predictor string, lag int) string {
	return predictor + utils.LagColumnSeparator + strconv.Itoa(lag)
}

// Build creates one LaggedTable per horizon
func Build(s *series.Frame, opts Options) (map[int]*LaggedTable, error) {
	if opts.Mode == "" {
		opts.Mode = ModeTrain
	}
	horizons, err := validate(s, &opts)
	if err != nil {
		return nil, err
	}

	predictors := orderedPredictors(s, opts.Lookback)
	tables := make(map[int]*LaggedTable, len(horizons))
	for _, h := range horizons {
		retained, dropped := pruneLags(predictors, opts.Lookback, h)
		if len(retained) == 0 {
			return nil, cverr.Configurationf("lookback",
				"no lag satisfies lag >= horizon for horizon %d", h)
		}

		var t *LaggedTable
		if opts.Mode == ModeForecast {
			t, err = buildForecast(s, predictors, retained, h)
		} else {
			t, err = buildTrain(s, opts.Outcome, predictors, retained, h)
		}
		if err != nil {
			return nil, err
		}
		t.Outcome = opts.Outcome
		t.RetainedLags = retained
		t.DroppedLags = dropped
		tables[h] = t
	}
	return tables, nil
}

// SortedHorizons returns the horizons of tables in ascending order
func SortedHorizons(tables map[int]*LaggedTable) []int {
	hs := make([]int, 0, len(tables))
	for h := range tables {
		hs = append(hs, h)
	}
	sort.Ints(hs)
	return hs
}

func validate(s *series.Frame, opts *Options) ([]int, error) {
	if s == nil || s.Len() == 0 {
		return nil, cverr.Configurationf("series", "series is empty")
	}
	if opts.Mode != ModeTrain && opts.Mode != ModeForecast {
		return nil, cverr.Configurationf("type", "unknown mode %q (want train or forecast)", opts.Mode)
	}

	outcome, ok := s.Column(opts.Outcome)
	if !ok {
		return nil, cverr.Configurationf("outcome", "outcome column %q not found", opts.Outcome)
	}
	if outcome.Kind != series.Numeric {
		return nil, cverr.Configurationf("outcome", "outcome column %q must be numeric", opts.Outcome)
	}

	if len(opts.Horizons) == 0 {
		return nil, cverr.Configurationf("horizons", "at least one horizon is required")
	}
	seen := make(map[int]bool, len(opts.Horizons))
	horizons := make([]int, 0, len(opts.Horizons))
	for _, h := range opts.Horizons {
		if h < 1 {
			return nil, cverr.Configurationf("horizons", "horizon must be >= 1, got %d", h)
		}
		if !seen[h] {
			seen[h] = true
			horizons = append(horizons, h)
		}
	}
	sort.Ints(horizons)

	if len(opts.Lookback) == 0 {
		return nil, cverr.Configurationf("lookback", "at least one predictor lag is required")
	}
	for name, lags := range opts.Lookback {
		if _, ok := s.Column(name); !ok {
			return nil, cverr.Configurationf("lookback", "predictor %q not found", name)
		}
		for _, l := range lags {
			if l < 1 {
				return nil, cverr.Configurationf("lookback", "lag for %q must be >= 1, got %d", name, l)
			}
		}
	}
	return horizons, nil
}

// orderedPredictors returns the lagged predictors in series column order
func orderedPredictors(s *series.Frame, spec LagSpec) []string {
	var out []string
	for _, name := range s.Names() {
		if _, ok := spec[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// pruneLags splits each predictor's lags into those usable at horizon h and the rest
func pruneLags(predictors []string, spec LagSpec, h int) (retained, dropped map[string][]int) {
	retained = make(map[string][]int)
	dropped = make(map[string][]int)
	for _, p := range predictors {
		lags := uniqueSorted(spec[p])
		for _, l := range lags {
			if l >= h {
				retained[p] = append(retained[p], l)
			} else {
				dropped[p] = append(dropped[p], l)
			}
		}
	}
	return retained, dropped
}

func uniqueSorted(lags []int) []int {
	out := append([]int(nil), lags...)
	sort.Ints(out)
	n := 0
	for i, l := range out {
		if i == 0 || l != out[n-1] {
			out[n] = l
			n++
		}
	}
	return out[:n]
}

func maxLag(retained map[string][]int) int {
	m := 0
	for _, lags := range retained {
		if last := lags[len(lags)-1]; last > m {
			m = last
		}
	}
	return m
}

func buildTrain(s *series.Frame, outcome string, predictors []string, retained map[string][]int, h int) (*LaggedTable, error) {
	first := maxLag(retained)
	if first >= s.Len() {
		return nil, cverr.Configurationf("lookback",
			"horizon %d: max lag %d leaves no rows in a series of %d", h, first, s.Len())
	}
	rows := make([]int, 0, s.Len())
	for t := first; t < s.Len(); t++ {
		rows = append(rows, t)
	}

	y, _ := s.Column(outcome)
	label := make([]float64, len(rows))
	for i, t := range rows {
		label[i] = y.Num[t]
	}

	cols := []series.Column{series.NumericColumn(outcome, label)}
	cols = append(cols, lagColumns(s, predictors, retained, rows)...)

	data, err := series.NewFrame(cols...)
	if err != nil {
		return nil, cverr.Configurationf("lookback", "horizon %d: %v", h, err)
	}
	return &LaggedTable{Horizon: h, Mode: ModeTrain, Data: data, RowIndex: rows}, nil
}

func buildForecast(s *series.Frame, predictors []string, retained map[string][]int, h int) (*LaggedTable, error) {
	first := maxLag(retained)
	last := s.Len() - 1

	var targets, steps []int
	for k := 1; k <= h; k++ {
		t := last + k
		if t-first < 0 {
			continue
		}
		targets = append(targets, t)
		steps = append(steps, k)
	}

	data, err := series.NewFrame(lagColumns(s, predictors, retained, targets)...)
	if err != nil {
		return nil, cverr.Configurationf("lookback", "horizon %d: %v", h, err)
	}
	return &LaggedTable{Horizon: h, Mode: ModeForecast, Data: data, RowIndex: targets, Steps: steps}, nil
}

// lagColumns materializes predictor[t-L] for every target row t. Callers
// guarantee 0 <= t-L < series length.
func lagColumns(s *series.Frame, predictors []string, retained map[string][]int, targets []int) []series.Column {
	var cols []series.Column
	for _, p := range predictors {
		src, _ := s.Column(p)
		for _, l := range retained[p] {
			name := LagColumnName(p, l)
			if src.Kind == series.Categorical {
				vals := make([]string, len(targets))
				for i, t := range targets {
					vals[i] = src.Cat[t-l]
				}
				cols = append(cols, series.CategoricalColumn(name, vals))
				continue
			}
			vals := make([]float64, len(targets))
			for i, t := range targets {
				vals[i] = src.Num[t-l]
			}
			cols = append(cols, series.NumericColumn(name, vals))
		}
	}
	return cols
}

// String summarizes the table for logs
func (t *LaggedTable) String() string {
	return fmt.Sprintf("lagged table h=%d mode=%s rows=%d cols=%d", t.Horizon, t.Mode, t.Len(), t.Data.Width())
}
