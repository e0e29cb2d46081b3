package main

import (
	"fmt"

	"github.com/soltixdb/directcv/internal/config"
	"github.com/soltixdb/directcv/internal/logging"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *logging.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "directcv",
		Short:         "Nested cross-validation for direct multi-horizon forecasting",
		Long:          `directcv trains one model per forecast horizon on lagged predictors and evaluates them over contiguous outer-loop validation windows.`,
		Version:       fmt.Sprintf("%s (%s)", Version, GitCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to configuration file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")

	root.AddCommand(
		newRunCmd(opts),
		newForecastCmd(opts),
		newWindowsCmd(opts),
		newVariantsCmd(),
	)
	return root
}

func (o *rootOptions) load() error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
		if err := cfg.Logging.Validate(); err != nil {
			return err
		}
	}

	logger, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logging.SetGlobal(logger)
	if cfg.IsDevelopment() {
		logger.Debug("Development mode", "config", o.configPath, "version", Version)
	}

	o.cfg = cfg
	o.logger = logger
	return nil
}
