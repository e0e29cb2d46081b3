package config

import "sort"

// PredictorNames returns the lagged predictors: the configured list followed
// by any extra per-predictor overrides in name order, or the outcome alone
// when neither is set
func (c *LagsConfig) PredictorNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, p := range c.Predictors {
		if !seen[p] {
			seen[p] = true
			names = append(names, p)
		}
	}

	var extra []string
	for p := range c.LookbackPerPredictor {
		if !seen[p] {
			extra = append(extra, p)
		}
	}
	sort.Strings(extra)
	names = append(names, extra...)

	if len(names) == 0 {
		names = append(names, c.Outcome)
	}
	return names
}

// LagSpec resolves the predictor to lags mapping. Per-predictor entries take
// precedence over the uniform lookback.
func (c *LagsConfig) LagSpec() map[string][]int {
	spec := make(map[string][]int)
	for _, p := range c.PredictorNames() {
		if lags, ok := c.LookbackPerPredictor[p]; ok {
			spec[p] = append([]int(nil), lags...)
			continue
		}
		if len(c.Lookback) > 0 {
			spec[p] = append([]int(nil), c.Lookback...)
		}
	}
	return spec
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Logging.Level == "debug" && c.Logging.Format == "console"
}
