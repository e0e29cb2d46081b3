package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/soltixdb/directcv/internal/evaluate"
	"github.com/soltixdb/directcv/internal/metrics"
	"github.com/soltixdb/directcv/internal/model"
	"github.com/soltixdb/directcv/internal/pipeline"
	"github.com/soltixdb/directcv/internal/series"
	"github.com/spf13/cobra"
)

type runOptions struct {
	input       string
	test        string
	strict      bool
	outputDir   string
	variants    []string
	metricsFile string
	forecast    bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run nested cross-validation on a CSV series",
		Example: `  directcv run --input sales.csv
  directcv run --input sales.csv --variants linear,persistence --output-dir out/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, root, opts)
		},
	}
	addRunFlags(cmd, opts)
	return cmd
}

func newForecastCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{forecast: true}
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Cross-validate, then forecast past the end of the series",
		Long: `forecast runs the same grid as run and then predicts the rows following the
series with every trained model. With --test the forecasts are scored against
the test CSV, whose first row is the row right after the series.`,
		Example: `  directcv forecast --input train.csv --test holdout.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, root, opts)
		},
	}
	addRunFlags(cmd, opts)
	cmd.Flags().StringVar(&opts.test, "test", "", "CSV with the actual outcome for the forecast rows")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Fail forecast evaluation when a forecast row is missing from --test")
	return cmd
}

func addRunFlags(cmd *cobra.Command, opts *runOptions) {
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "Input CSV series, one row per time step (required)")
	cmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", "", "Write every result table as CSV into this directory")
	cmd.Flags().StringSliceVar(&opts.variants, "variants", nil, "Model variants to evaluate (overrides grid.variants)")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics in text format to this file")
	_ = cmd.MarkFlagRequired("input")
}

func runPipeline(cmd *cobra.Command, root *rootOptions, opts *runOptions) error {
	cfg := root.cfg
	if len(opts.variants) > 0 {
		cfg.Grid.Variants = opts.variants
	}
	if opts.forecast {
		cfg.Evaluation.Forecast = true
	}

	s, err := readCSV(opts.input)
	if err != nil {
		return err
	}

	variants := make([]model.Variant, 0, len(cfg.Grid.Variants))
	for _, name := range cfg.Grid.Variants {
		v, err := model.Get(name)
		if err != nil {
			return fmt.Errorf("%w (available: %v)", err, model.List())
		}
		variants = append(variants, v)
	}

	pcfg := pipeline.FromConfig(cfg)
	pcfg.Logger = root.logger

	if opts.test != "" {
		tf, err := readCSV(opts.test)
		if err != nil {
			return err
		}
		if pcfg.Test, err = evaluate.TestFromFrame(tf, cfg.Lags.Outcome, s.Len()); err != nil {
			return err
		}
		pcfg.Test.Strict = opts.strict
	}

	var reg *prometheus.Registry
	if cfg.Metrics.Enabled || opts.metricsFile != "" {
		reg = prometheus.NewRegistry()
		if pcfg.Recorder, err = metrics.New(cfg.Metrics.Namespace, reg); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, runErr := pipeline.Run(ctx, s, pcfg, variants...)

	out := cmd.OutOrStdout()
	if res != nil {
		printSummary(out, res)
		if opts.outputDir != "" {
			if err := writeResults(opts.outputDir, res); err != nil {
				return err
			}
		}
	}
	if reg != nil && opts.metricsFile != "" {
		if err := prometheus.WriteToTextfile(opts.metricsFile, reg); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return runErr
}

func printSummary(w io.Writer, res *pipeline.Result) {
	sum := res.Summary
	fmt.Fprintf(w, "run %s: %s (%d ms)\n", sum.RunID, sum.Status, sum.LatencyMs)
	for _, stage := range []string{pipeline.StageTrain, pipeline.StagePredict, pipeline.StageForecast} {
		if sc, ok := sum.Stages[stage]; ok {
			fmt.Fprintf(w, "  %-8s cells=%d succeeded=%d failed=%d skipped=%d\n",
				stage, sc.Cells, sc.Succeeded, sc.Failed, sc.Skipped)
		}
	}
	for _, fc := range sum.FailedCells {
		fmt.Fprintf(w, "  failed: %s %s horizon=%d window=%d: %s\n", fc.Stage, fc.Model, fc.Horizon, fc.WindowID, fc.Error)
	}
	for _, d := range sum.Diagnostics {
		fmt.Fprintf(w, "  warning: %s\n", d)
	}

	if res.Errors != nil {
		fmt.Fprintln(w, "\nerror_global")
		_ = printFrame(w, res.Errors.GlobalFrame())
		fmt.Fprintln(w, "\nerror_by_horizon")
		_ = printFrame(w, res.Errors.ByHorizonFrame())
	}
	if res.Forecast != nil {
		fmt.Fprintln(w, "\nforecast")
		_ = printFrame(w, res.Forecast.Frame())
	}
	if res.ForecastErrors != nil {
		fmt.Fprintln(w, "\nforecast_error_global")
		_ = printFrame(w, res.ForecastErrors.GlobalFrame())
	}
}

func writeResults(dir string, res *pipeline.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	files := map[string]*series.Frame{}
	if res.Predictions != nil {
		files["predictions.csv"] = res.Predictions.Frame()
	}
	if res.Errors != nil {
		files["error_by_window.csv"] = res.Errors.ByWindowFrame()
		files["error_by_horizon.csv"] = res.Errors.ByHorizonFrame()
		files["error_global.csv"] = res.Errors.GlobalFrame()
	}
	for _, ht := range res.Hyper {
		files["hyperparameters_"+ht.Model+".csv"] = ht.Frame()
	}
	if res.Forecast != nil {
		files["forecast.csv"] = res.Forecast.Frame()
	}
	if res.ForecastErrors != nil {
		files["forecast_error_by_horizon.csv"] = res.ForecastErrors.ByHorizonFrame()
		files["forecast_error_global.csv"] = res.ForecastErrors.GlobalFrame()
	}

	for name, f := range files {
		if err := writeCSV(filepath.Join(dir, name), f); err != nil {
			return err
		}
	}
	return nil
}
