package pipeline

import (
	"time"

	"github.com/soltixdb/directcv/internal/config"
	"github.com/soltixdb/directcv/internal/evaluate"
	"github.com/soltixdb/directcv/internal/lagmatrix"
	"github.com/soltixdb/directcv/internal/logging"
	"github.com/soltixdb/directcv/internal/metrics"
	"github.com/soltixdb/directcv/internal/publish"
	"github.com/soltixdb/directcv/internal/window"
)

// Config is the resolved configuration of one run
type Config struct {
	Lags    lagmatrix.Options
	Windows window.Options

	Workers      int
	CellTimeout  time.Duration
	RetainModels bool

	Metrics []string

	// Forecast enables the forecast pass over the trained grids. Test, when
	// set, is the ground truth the forecasts are evaluated against.
	Forecast bool
	Test     *evaluate.TestData

	Publish config.PublishConfig
	// Publisher overrides the publisher built from Publish
	Publisher publish.Publisher

	Logger   *logging.Logger
	Recorder *metrics.Recorder
}

// FromConfig maps the file/env configuration onto a run configuration
func FromConfig(cfg *config.Config) Config {
	return Config{
		Lags: lagmatrix.Options{
			Outcome:  cfg.Lags.Outcome,
			Lookback: lagmatrix.LagSpec(cfg.Lags.LagSpec()),
			Horizons: append([]int(nil), cfg.Lags.Horizons...),
		},
		Windows: window.Options{
			Length:         cfg.Windows.Length,
			Skip:           cfg.Windows.Skip,
			Start:          cfg.Windows.Start,
			Stop:           cfg.Windows.Stop,
			IncludePartial: cfg.Windows.IncludePartial,
		},
		Workers:      cfg.Grid.Workers,
		CellTimeout:  cfg.Grid.CellTimeout,
		RetainModels: cfg.Grid.RetainModels,
		Metrics:      append([]string(nil), cfg.Evaluation.Metrics...),
		Forecast:     cfg.Evaluation.Forecast,
		Publish:      cfg.Publish,
	}
}
