package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "default config should be valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing outcome",
			mutate:  func(c *Config) { c.Lags.Outcome = "" },
			wantErr: true,
		},
		{
			name:    "empty horizons",
			mutate:  func(c *Config) { c.Lags.Horizons = nil },
			wantErr: true,
		},
		{
			name:    "zero horizon",
			mutate:  func(c *Config) { c.Lags.Horizons = []int{0, 1} },
			wantErr: true,
		},
		{
			name: "no lookback at all",
			mutate: func(c *Config) {
				c.Lags.Lookback = nil
				c.Lags.LookbackPerPredictor = nil
			},
			wantErr: true,
		},
		{
			name: "per predictor lookback only",
			mutate: func(c *Config) {
				c.Lags.Lookback = nil
				c.Lags.LookbackPerPredictor = map[string][]int{"x": {2, 4}}
			},
			wantErr: false,
		},
		{
			name:    "negative lag",
			mutate:  func(c *Config) { c.Lags.LookbackPerPredictor = map[string][]int{"x": {-1}} },
			wantErr: true,
		},
		{
			name:    "negative window length",
			mutate:  func(c *Config) { c.Windows.Length = -1 },
			wantErr: true,
		},
		{
			name:    "negative skip",
			mutate:  func(c *Config) { c.Windows.Skip = -2 },
			wantErr: true,
		},
		{
			name: "start after stop",
			mutate: func(c *Config) {
				c.Windows.Start = 10
				c.Windows.Stop = 5
			},
			wantErr: true,
		},
		{
			name:    "negative cell timeout",
			mutate:  func(c *Config) { c.Grid.CellTimeout = -time.Second },
			wantErr: true,
		},
		{
			name:    "no metrics",
			mutate:  func(c *Config) { c.Evaluation.Metrics = nil },
			wantErr: true,
		},
		{
			name: "nats publisher without url",
			mutate: func(c *Config) {
				c.Publish.Enabled = true
				c.Publish.Type = "nats"
			},
			wantErr: true,
		},
		{
			name: "unknown publisher",
			mutate: func(c *Config) {
				c.Publish.Enabled = true
				c.Publish.Type = "carrier-pigeon"
			},
			wantErr: true,
		},
		{
			name: "disabled publisher is not checked",
			mutate: func(c *Config) {
				c.Publish.Type = "carrier-pigeon"
			},
			wantErr: false,
		},
		{
			name:    "invalid logging level",
			mutate:  func(c *Config) { c.Logging.Level = "invalid" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 4, cfg.Grid.Workers)
	assert.True(t, cfg.Grid.RetainModels)
	assert.Equal(t, []string{"mae", "mape", "smape"}, cfg.Evaluation.Metrics)
	assert.Equal(t, "directcv.runs", cfg.Publish.Subject)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "directcv.yaml")
	yaml := `
lags:
  outcome: sales
  predictors: [sales, price]
  lookback: [1, 2, 3]
  lookback_per_predictor:
    price: [2, 6]
  horizons: [1, 2, 3]
windows:
  length: 6
  skip: 1
  include_partial: true
grid:
  workers: 8
  cell_timeout: 2s
  variants: [linear, mean]
evaluation:
  metrics: [mae, rmse]
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("DIRECTCV_GRID_WORKERS", "2")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sales", cfg.Lags.Outcome)
	assert.Equal(t, []int{1, 2, 3}, cfg.Lags.Horizons)
	assert.Equal(t, 6, cfg.Windows.Length)
	assert.True(t, cfg.Windows.IncludePartial)
	assert.Equal(t, 2, cfg.Grid.Workers)
	assert.Equal(t, 2*time.Second, cfg.Grid.CellTimeout)
	assert.Equal(t, []string{"linear", "mean"}, cfg.Grid.Variants)
	assert.Equal(t, []string{"mae", "rmse"}, cfg.Evaluation.Metrics)

	// untouched sections keep their defaults
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "directcv.runs", cfg.Publish.Subject)

	assert.Equal(t, map[string][]int{
		"sales": {1, 2, 3},
		"price": {2, 6},
	}, cfg.Lags.LagSpec())
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("windows:\n  length: -3\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestPredictorNames(t *testing.T) {
	c := LagsConfig{Outcome: "y", Lookback: []int{1}}
	assert.Equal(t, []string{"y"}, c.PredictorNames())
	assert.Equal(t, map[string][]int{"y": {1}}, c.LagSpec())

	c.LookbackPerPredictor = map[string][]int{"b": {2}, "a": {3}}
	assert.Equal(t, []string{"a", "b"}, c.PredictorNames())

	c.Predictors = []string{"y", "b"}
	assert.Equal(t, []string{"y", "b", "a"}, c.PredictorNames())
	assert.Equal(t, map[string][]int{"y": {1}, "b": {2}, "a": {3}}, c.LagSpec())
}

func TestConfigHelpers(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.IsDevelopment())

	cfg.Logging.Level = "debug"
	assert.True(t, cfg.IsDevelopment())
}
