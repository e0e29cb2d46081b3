package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Lags       LagsConfig       `mapstructure:"lags"`
	Windows    WindowsConfig    `mapstructure:"windows"`
	Grid       GridConfig       `mapstructure:"grid"`
	Evaluation EvaluationConfig `mapstructure:"evaluation"`
	Publish    PublishConfig    `mapstructure:"publish"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// LagsConfig configures the lagged design matrices
type LagsConfig struct {
	Outcome    string   `mapstructure:"outcome"`    // Name of the single outcome column
	Predictors []string `mapstructure:"predictors"` // Lagged predictors; defaults to the outcome alone
	Lookback   []int    `mapstructure:"lookback"`   // Lags applied to every predictor
	Horizons   []int    `mapstructure:"horizons"`   // Forecast horizons, one model per horizon

	// LookbackPerPredictor overrides Lookback for the named predictors
	LookbackPerPredictor map[string][]int `mapstructure:"lookback_per_predictor"`
}

// WindowsConfig configures the outer-loop validation windows
type WindowsConfig struct {
	Length         int  `mapstructure:"length"`          // Rows per window; 0 disables the outer loop
	Skip           int  `mapstructure:"skip"`            // Gap rows between windows
	Start          int  `mapstructure:"start"`           // First row of the walk
	Stop           int  `mapstructure:"stop"`            // End of the walk (exclusive); 0 = end of series
	IncludePartial bool `mapstructure:"include_partial"` // Keep a short trailing window
}

// GridConfig configures grid execution
type GridConfig struct {
	Workers      int           `mapstructure:"workers"`       // Cells run concurrently
	CellTimeout  time.Duration `mapstructure:"cell_timeout"`  // 0 = no per-cell timeout
	RetainModels bool          `mapstructure:"retain_models"` // Keep fitted models after prediction
	Variants     []string      `mapstructure:"variants"`      // Built-in model variants to evaluate
}

// EvaluationConfig configures error aggregation
type EvaluationConfig struct {
	Metrics  []string `mapstructure:"metrics"`  // mae, mape, smape, rmse
	Forecast bool     `mapstructure:"forecast"` // Also forecast past the end of the series
}

// PublishConfig configures where run summaries are published
type PublishConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Type     string        `mapstructure:"type"`     // memory (default), nats, redis, kafka
	URL      string        `mapstructure:"url"`      // Queue server URL (e.g., nats://localhost:4222, redis://localhost:6379)
	Username string        `mapstructure:"username"` // Optional authentication
	Password string        `mapstructure:"password"` // Optional authentication
	Subject  string        `mapstructure:"subject"`  // Subject, stream or topic name
	Compress bool          `mapstructure:"compress"` // Snappy-compress the encoded summary
	Timeout  time.Duration `mapstructure:"timeout"`

	// Redis-specific options
	RedisDB     int    `mapstructure:"redis_db"`     // Redis database number (default: 0)
	RedisStream string `mapstructure:"redis_stream"` // Redis stream prefix (default: "directcv")

	// Kafka-specific options
	KafkaBrokers []string `mapstructure:"kafka_brokers"` // Kafka broker addresses
}

// MetricsConfig configures Prometheus instrumentation
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, file path
	TimeFormat string `mapstructure:"time_format"` // RFC3339, Unix, Kitchen
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Lags.Validate(); err != nil {
		return fmt.Errorf("lags config: %w", err)
	}

	if err := c.Windows.Validate(); err != nil {
		return fmt.Errorf("windows config: %w", err)
	}

	if err := c.Grid.Validate(); err != nil {
		return fmt.Errorf("grid config: %w", err)
	}

	if err := c.Evaluation.Validate(); err != nil {
		return fmt.Errorf("evaluation config: %w", err)
	}

	if err := c.Publish.Validate(); err != nil {
		return fmt.Errorf("publish config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates lag configuration
func (c *LagsConfig) Validate() error {
	if c.Outcome == "" {
		return fmt.Errorf("lags.outcome is required")
	}

	if len(c.Horizons) == 0 {
		return fmt.Errorf("lags.horizons is required")
	}
	for _, h := range c.Horizons {
		if h < 1 {
			return fmt.Errorf("lags.horizons must be >= 1, got %d", h)
		}
	}

	if len(c.Lookback) == 0 && len(c.LookbackPerPredictor) == 0 {
		return fmt.Errorf("lags.lookback or lags.lookback_per_predictor is required")
	}
	for _, l := range c.Lookback {
		if l < 1 {
			return fmt.Errorf("lags.lookback must be >= 1, got %d", l)
		}
	}
	for name, lags := range c.LookbackPerPredictor {
		for _, l := range lags {
			if l < 1 {
				return fmt.Errorf("lags.lookback_per_predictor.%s must be >= 1, got %d", name, l)
			}
		}
	}

	return nil
}

// Validate validates window configuration
func (c *WindowsConfig) Validate() error {
	if c.Length < 0 {
		return fmt.Errorf("windows.length must be >= 0")
	}

	if c.Skip < 0 {
		return fmt.Errorf("windows.skip must be >= 0")
	}

	if c.Start < 0 || c.Stop < 0 {
		return fmt.Errorf("windows.start and windows.stop must be >= 0")
	}

	if c.Stop != 0 && c.Start >= c.Stop {
		return fmt.Errorf("windows.start must be before windows.stop")
	}

	return nil
}

// Validate validates grid configuration
func (c *GridConfig) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("grid.workers must be >= 0")
	}

	if c.CellTimeout < 0 {
		return fmt.Errorf("grid.cell_timeout must not be negative")
	}

	return nil
}

// Validate validates evaluation configuration
func (c *EvaluationConfig) Validate() error {
	if len(c.Metrics) == 0 {
		return fmt.Errorf("evaluation.metrics is required")
	}

	return nil
}

// Validate validates publish configuration
func (c *PublishConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	switch c.Type {
	case "", "memory":
	case "nats", "redis":
		if c.URL == "" {
			return fmt.Errorf("publish.url is required for %s", c.Type)
		}
	case "kafka":
		if len(c.KafkaBrokers) == 0 && c.URL == "" {
			return fmt.Errorf("publish.kafka_brokers is required for kafka")
		}
	default:
		return fmt.Errorf("publish.type must be one of: memory, nats, redis, kafka")
	}

	if c.Timeout < 0 {
		return fmt.Errorf("publish.timeout must not be negative")
	}

	return nil
}

// Validate validates logging configuration
func (c *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}

	if !validFormats[c.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console'")
	}

	return nil
}
