// Package pipeline runs one nested cross-validation: it builds the lagged
// tables and windows, trains a grid per model variant, assembles predictions,
// aggregates errors and hyperparameters, and optionally forecasts past the
// end of the series.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/soltixdb/directcv/internal/cverr"
	"github.com/soltixdb/directcv/internal/evaluate"
	"github.com/soltixdb/directcv/internal/grid"
	"github.com/soltixdb/directcv/internal/hyper"
	"github.com/soltixdb/directcv/internal/lagmatrix"
	"github.com/soltixdb/directcv/internal/logging"
	"github.com/soltixdb/directcv/internal/model"
	"github.com/soltixdb/directcv/internal/predict"
	"github.com/soltixdb/directcv/internal/publish"
	"github.com/soltixdb/directcv/internal/series"
	"github.com/soltixdb/directcv/internal/window"
)

// Result holds every table produced by a run
type Result struct {
	RunID   string
	Tables  map[int]*lagmatrix.LaggedTable
	Windows []window.Window
	Grids   []*grid.Grid

	Predictions *predict.Table
	Errors      *evaluate.Report
	Hyper       []*hyper.Table

	ForecastTables map[int]*lagmatrix.LaggedTable
	Forecast       *predict.Table
	ForecastErrors *evaluate.Report

	Summary *Summary
}

// Run executes the full pipeline for variants on s.
//
// Configuration errors abort before any cell runs. Per-cell failures are
// collected in the summary. A variant whose every training cell fails, or a
// cancelled context, ends the run with an error and the partial result.
func Run(ctx context.Context, s *series.Frame, cfg Config, variants ...model.Variant) (*Result, error) {
	started := time.Now()
	res := &Result{RunID: uuid.NewString()}
	res.Summary = newSummary(res.RunID, started)

	ctx = logging.WithLogger(logging.WithRunID(ctx, res.RunID), logging.OrGlobal(cfg.Logger))
	logger := logging.FromContext(ctx).WithContext(ctx)

	err := run(ctx, s, cfg, variants, res, logger)
	finish(ctx, cfg, res, err, logger)
	return res, err
}

func run(ctx context.Context, s *series.Frame, cfg Config, variants []model.Variant, res *Result, logger *logging.Logger) error {
	if s == nil {
		return cverr.Configurationf("series", "series is required")
	}
	if len(variants) == 0 {
		return cverr.Configurationf("variants", "at least one model variant is required")
	}
	sum := res.Summary
	sum.Outcome = cfg.Lags.Outcome
	sum.Rows = s.Len()

	lags := cfg.Lags
	lags.Mode = lagmatrix.ModeTrain
	tables, err := lagmatrix.Build(s, lags)
	if err != nil {
		return err
	}
	windows, err := window.Partition(s.Len(), cfg.Windows)
	if err != nil {
		return err
	}
	if _, err := evaluate.CheckMetrics(cfg.Metrics); err != nil {
		return err
	}
	res.Tables, res.Windows = tables, windows
	sum.Horizons = lagmatrix.SortedHorizons(tables)
	sum.Windows = len(windows)

	logging.InfoCtx(ctx, "Run started",
		"rows", s.Len(),
		"horizons", len(tables),
		"windows", len(windows),
		"variants", len(variants))

	gridOpts := grid.Options{
		Workers:     cfg.Workers,
		CellTimeout: cfg.CellTimeout,
		Logger:      logger,
		Metrics:     cfg.Recorder,
	}
	sets := make([]predict.ModelSet, 0, len(variants))
	for _, v := range variants {
		g, err := grid.Train(ctx, tables, windows, v, gridOpts)
		if g != nil {
			res.Grids = append(res.Grids, g)
			sum.Models = append(sum.Models, g.Model)
			sum.addGrid(g)
		}
		if err != nil {
			logging.WarnCtx(logging.WithModel(ctx, v.Name()), "Variant training aborted", "error", err)
			return err
		}
		sets = append(sets, predict.ModelSet{Grid: g, Variant: v})
	}

	predOpts := predict.Options{
		Workers:     cfg.Workers,
		CellTimeout: cfg.CellTimeout,
		Logger:      logger,
		Metrics:     cfg.Recorder,
	}
	pt, err := predict.Assemble(ctx, sets, predOpts)
	if pt != nil {
		res.Predictions = pt
		sum.addPredictions(StagePredict, pt)
	}
	if err != nil {
		return err
	}

	report, err := evaluate.Aggregate(pt, cfg.Metrics, nil)
	if err != nil {
		return err
	}
	res.Errors = report
	sum.Global = modelErrors(report.Global)

	for _, set := range sets {
		ex, ok := set.Variant.(model.HyperparameterExtractor)
		if !ok {
			continue
		}
		ht, err := hyper.Collect(set.Grid, ex, report.ByWindow, hyper.Options{Logger: logger})
		if err != nil {
			return err
		}
		res.Hyper = append(res.Hyper, ht)
		sum.Diagnostics = append(sum.Diagnostics, ht.Diagnostics...)
	}

	if cfg.Forecast {
		if err := forecast(ctx, s, cfg, sets, predOpts, res, logger); err != nil {
			return err
		}
	}

	if !cfg.RetainModels {
		for _, g := range res.Grids {
			g.ReleaseAll()
		}
	}
	return nil
}

// forecast predicts past the end of the series with every trained cell. An
// alignment failure against the test data only loses the forecast errors.
func forecast(ctx context.Context, s *series.Frame, cfg Config, sets []predict.ModelSet, opts predict.Options, res *Result, logger *logging.Logger) error {
	lags := cfg.Lags
	lags.Mode = lagmatrix.ModeForecast
	tables, err := lagmatrix.Build(s, lags)
	if err != nil {
		return err
	}
	res.ForecastTables = tables

	opts.Forecast = tables
	ft, err := predict.Assemble(ctx, sets, opts)
	if ft != nil {
		res.Forecast = ft
		res.Summary.addPredictions(StageForecast, ft)
	}
	if err != nil {
		return err
	}
	if cfg.Test == nil {
		return nil
	}

	report, err := evaluate.Aggregate(ft, cfg.Metrics, cfg.Test)
	if err != nil {
		if errors.Is(err, cverr.ErrDataAlignment) && !cfg.Test.Strict {
			logger.Warn("Forecast evaluation skipped", "error", err)
			res.Summary.Diagnostics = append(res.Summary.Diagnostics, "forecast evaluation: "+err.Error())
			return nil
		}
		return err
	}
	res.ForecastErrors = report
	res.Summary.ForecastGlobal = modelErrors(report.Global)
	if len(report.Unmatched) > 0 {
		res.Summary.Diagnostics = append(res.Summary.Diagnostics,
			fmt.Sprintf("forecast evaluation: %d forecast rows have no test value", len(report.Unmatched)))
	}
	return nil
}

func finish(ctx context.Context, cfg Config, res *Result, runErr error, logger *logging.Logger) {
	sum := res.Summary
	sum.LatencyMs = time.Since(sum.StartedAt).Milliseconds()

	switch {
	case runErr == nil && len(sum.FailedCells) > 0:
		sum.Status = StatusPartial
	case runErr == nil:
		sum.Status = StatusCompleted
	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		sum.Status = StatusCancelled
		sum.Error = runErr.Error()
	default:
		sum.Status = StatusFailed
		sum.Error = runErr.Error()
	}
	cfg.Recorder.RunFinished(sum.Status, time.Since(sum.StartedAt))

	fields := []interface{}{
		"status", sum.Status,
		"failed_cells", len(sum.FailedCells),
		"diagnostics", len(sum.Diagnostics),
		"latency_ms", sum.LatencyMs,
	}
	for _, name := range []string{StageTrain, StagePredict, StageForecast} {
		if sc, ok := sum.Stages[name]; ok {
			fields = append(fields, name+"_succeeded", sc.Succeeded, name+"_failed", sc.Failed)
		}
	}
	if runErr != nil {
		logger.Error("Run finished with error", append(fields, "error", runErr)...)
	} else {
		logger.Info("Run finished", fields...)
	}

	if cfg.Publish.Enabled || cfg.Publisher != nil {
		if err := publishSummary(context.WithoutCancel(ctx), cfg, sum); err != nil {
			logger.Warn("Run summary not published", "error", err)
		}
	}
}

func publishSummary(ctx context.Context, cfg Config, sum *Summary) error {
	p := cfg.Publisher
	if p == nil {
		var err error
		if p, err = publish.NewPublisher(cfg.Publish); err != nil {
			return err
		}
		defer func() { _ = p.Close() }()
	}
	if cfg.Publish.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Publish.Timeout)
		defer cancel()
	}
	return publish.PublishSummary(ctx, p, cfg.Publish.Subject, sum, cfg.Publish.Compress)
}
