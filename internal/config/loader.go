package config

import (
	"fmt"
	"strings"

	"github.com/soltixdb/directcv/internal/utils"
	"github.com/spf13/viper"
)

// Load loads configuration from file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default config locations
		v.SetConfigName("directcv")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")             // Current directory
		v.AddConfigPath("./configs")     // Project configs directory
		v.AddConfigPath("/etc/directcv") // System-wide config
	}

	// Set defaults
	setDefaults(v)

	// Enable environment variable overrides, e.g. DIRECTCV_GRID_WORKERS
	v.SetEnvPrefix("DIRECTCV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; use defaults
			return parseConfig(v)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return parseConfig(v)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	// Lag defaults
	v.SetDefault("lags.outcome", d.Lags.Outcome)
	v.SetDefault("lags.lookback", d.Lags.Lookback)
	v.SetDefault("lags.horizons", d.Lags.Horizons)

	// Window defaults
	v.SetDefault("windows.length", d.Windows.Length)
	v.SetDefault("windows.skip", d.Windows.Skip)
	v.SetDefault("windows.include_partial", d.Windows.IncludePartial)

	// Grid defaults
	v.SetDefault("grid.workers", d.Grid.Workers)
	v.SetDefault("grid.cell_timeout", d.Grid.CellTimeout)
	v.SetDefault("grid.retain_models", d.Grid.RetainModels)
	v.SetDefault("grid.variants", d.Grid.Variants)

	// Evaluation defaults
	v.SetDefault("evaluation.metrics", d.Evaluation.Metrics)

	// Publish defaults
	v.SetDefault("publish.type", d.Publish.Type)
	v.SetDefault("publish.subject", d.Publish.Subject)
	v.SetDefault("publish.timeout", d.Publish.Timeout)
	v.SetDefault("publish.redis_stream", d.Publish.RedisStream)

	// Metrics defaults
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)

	// Logging defaults
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output_path", d.Logging.OutputPath)
}

// parseConfig parses viper config into Config struct
func parseConfig(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Lags: LagsConfig{
			Outcome:  "y",
			Lookback: []int{1, 2, 3},
			Horizons: []int{1},
		},
		Windows: WindowsConfig{
			Length: 0,
		},
		Grid: GridConfig{
			Workers:      utils.DefaultGridWorkers,
			CellTimeout:  utils.DefaultCellTimeout,
			RetainModels: true,
			Variants:     []string{"linear"},
		},
		Evaluation: EvaluationConfig{
			Metrics: []string{"mae", "mape", "smape"},
		},
		Publish: PublishConfig{
			Type:        string(utils.QueueTypeMemory),
			Subject:     utils.DefaultPublishSubject,
			Timeout:     utils.DefaultPublishTimeout,
			RedisStream: "directcv",
		},
		Metrics: MetricsConfig{
			Namespace: "directcv",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stderr",
		},
	}
}
