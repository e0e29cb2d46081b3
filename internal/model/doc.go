// Package model defines the ports through which user-supplied learning
// algorithms plug into the grid: a Variant trains and predicts, and an
// optional HyperparameterExtractor reports the fitted model's settings.
//
// The package also carries a small registry of built-in variants used by the
// command line tool:
//
//   - linear: least squares on the numeric lag columns, optionally ridge penalized
//   - mean: predicts the training mean of the outcome
//   - persistence: predicts the outcome's most recent lag available at the horizon
//   - sma: averages the outcome lags available at the horizon
//   - exponential: exponentially weighted outcome lags, alpha chosen on the training rows
package model
