package pipeline

import (
	"time"

	"github.com/soltixdb/directcv/internal/evaluate"
	"github.com/soltixdb/directcv/internal/grid"
	"github.com/soltixdb/directcv/internal/predict"
)

// Run statuses
const (
	StatusCompleted = "completed"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Stage names used in summaries
const (
	StageTrain    = "train"
	StagePredict  = "predict"
	StageForecast = "forecast"
)

// StageCounts counts cell outcomes for one stage
type StageCounts struct {
	Cells     int `json:"cells"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// FailedCell identifies one failed cell
type FailedCell struct {
	Stage    string `json:"stage"`
	Model    string `json:"model"`
	Horizon  int    `json:"horizon"`
	WindowID int    `json:"window_id"`
	Error    string `json:"error"`
}

// ModelError is one row of error_global
type ModelError struct {
	Model                string             `json:"model"`
	ModelForecastHorizon int                `json:"model_forecast_horizon,omitempty"`
	Values               map[string]float64 `json:"values"`
	Windows              int                `json:"windows"`
}

// Summary describes a finished run. It is what gets published.
type Summary struct {
	RunID     string    `json:"run_id"`
	Status    string    `json:"status"`
	Outcome   string    `json:"outcome"`
	Models    []string  `json:"models"`
	Horizons  []int     `json:"horizons"`
	Windows   int       `json:"windows"`
	Rows      int       `json:"rows"`
	StartedAt time.Time `json:"started_at"`
	LatencyMs int64     `json:"latency_ms"`

	Stages      map[string]*StageCounts `json:"stages"`
	FailedCells []FailedCell            `json:"failed_cells,omitempty"`
	Diagnostics []string                `json:"diagnostics,omitempty"`

	Global         []ModelError `json:"error_global,omitempty"`
	ForecastGlobal []ModelError `json:"forecast_error_global,omitempty"`
	Error          string       `json:"error,omitempty"`
}

func newSummary(runID string, started time.Time) *Summary {
	return &Summary{
		RunID:     runID,
		Status:    StatusCompleted,
		StartedAt: started,
		Stages:    make(map[string]*StageCounts),
	}
}

func (s *Summary) stage(name string) *StageCounts {
	sc, ok := s.Stages[name]
	if !ok {
		sc = &StageCounts{}
		s.Stages[name] = sc
	}
	return sc
}

func (s *Summary) addGrid(g *grid.Grid) {
	sc := s.stage(StageTrain)
	for _, c := range g.Cells() {
		sc.Cells++
		switch c.Status {
		case grid.StatusOK:
			sc.Succeeded++
		case grid.StatusFailed:
			sc.Failed++
			s.FailedCells = append(s.FailedCells, FailedCell{
				Stage:    StageTrain,
				Model:    g.Model,
				Horizon:  c.Key.Horizon,
				WindowID: c.Key.WindowID,
				Error:    c.Err.Cause.Error(),
			})
		case grid.StatusSkipped:
			sc.Skipped++
		}
	}
}

func (s *Summary) addPredictions(stage string, pt *predict.Table) {
	sc := s.stage(stage)
	sc.Cells += pt.Cells
	sc.Skipped += pt.Skipped
	sc.Failed += len(pt.Failed)
	sc.Succeeded += pt.Cells - pt.Skipped - len(pt.Failed)
	for _, e := range pt.Failed {
		s.FailedCells = append(s.FailedCells, FailedCell{
			Stage:    stage,
			Model:    e.Model,
			Horizon:  e.Horizon,
			WindowID: e.WindowID,
			Error:    e.Cause.Error(),
		})
	}
}

func modelErrors(recs []evaluate.ErrorRecord) []ModelError {
	out := make([]ModelError, 0, len(recs))
	for _, r := range recs {
		out = append(out, ModelError{
			Model:                r.Model,
			ModelForecastHorizon: r.ModelForecastHorizon,
			Values:               r.Values,
			Windows:              r.Windows,
		})
	}
	return out
}
