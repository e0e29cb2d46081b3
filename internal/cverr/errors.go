// Package cverr defines the error taxonomy shared by the nested cross-validation
// engine. Configuration and alignment errors abort the operation that raised them;
// per-cell errors are collected and returned next to partial results.
package cverr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error codes
const (
	CodeConfiguration  = "CONFIGURATION_ERROR"
	CodeModelTraining  = "MODEL_TRAINING_ERROR"
	CodePrediction     = "PREDICTION_ERROR"
	CodeSchemaMismatch = "SCHEMA_MISMATCH"
	CodeDataAlignment  = "DATA_ALIGNMENT_ERROR"
)

var (
	// ErrConfiguration matches any *ConfigurationError via errors.Is
	ErrConfiguration = errors.New("configuration error")
	// ErrDataAlignment matches any *DataAlignmentError via errors.Is
	ErrDataAlignment = errors.New("data alignment error")
	// ErrAllCellsFailed is returned when no cell of a grid trained successfully
	ErrAllCellsFailed = errors.New("all grid cells failed")
)

// Coded is implemented by every error in this package
type Coded interface {
	error
	Code() string
}

// ConfigurationError reports invalid static arguments. It is raised before any
// grid work begins.
type ConfigurationError struct {
	Field   string
	Message string
}

// Configurationf creates a ConfigurationError for field
func Configurationf(field, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Message
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// Code returns the error code
func (e *ConfigurationError) Code() string { return CodeConfiguration }

// Is reports whether target is ErrConfiguration
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// ModelTrainingError is recorded when the training function fails for one cell
type ModelTrainingError struct {
	Model    string
	Horizon  int
	WindowID int
	Cause    error
}

func (e *ModelTrainingError) Error() string {
	return fmt.Sprintf("training failed for model %q horizon %d window %d: %v",
		e.Model, e.Horizon, e.WindowID, e.Cause)
}

// Code returns the error code
func (e *ModelTrainingError) Code() string { return CodeModelTraining }

func (e *ModelTrainingError) Unwrap() error { return e.Cause }

// PredictionError is recorded when the prediction function fails for one cell.
// The cell contributes no rows to the prediction table.
type PredictionError struct {
	Model    string
	Horizon  int
	WindowID int
	Cause    error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("prediction failed for model %q horizon %d window %d: %v",
		e.Model, e.Horizon, e.WindowID, e.Cause)
}

// Code returns the error code
func (e *PredictionError) Code() string { return CodePrediction }

func (e *PredictionError) Unwrap() error { return e.Cause }

// SchemaMismatchError is recorded when a cell's hyperparameter names differ from
// the names returned by the other cells of the same model
type SchemaMismatchError struct {
	Model    string
	Horizon  int
	WindowID int
	Expected []string
	Got      []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("hyperparameter schema mismatch for model %q horizon %d window %d: expected [%s], got [%s]",
		e.Model, e.Horizon, e.WindowID, strings.Join(e.Expected, ","), strings.Join(e.Got, ","))
}

// Code returns the error code
func (e *SchemaMismatchError) Code() string { return CodeSchemaMismatch }

// DataAlignmentError reports that predictions could not be joined to ground truth
type DataAlignmentError struct {
	Message string
	Indices []int
}

func (e *DataAlignmentError) Error() string {
	if len(e.Indices) == 0 {
		return "data alignment error: " + e.Message
	}
	idx := append([]int(nil), e.Indices...)
	sort.Ints(idx)
	if len(idx) > 10 {
		return fmt.Sprintf("data alignment error: %s (indices %v ... %d total)", e.Message, idx[:10], len(idx))
	}
	return fmt.Sprintf("data alignment error: %s (indices %v)", e.Message, idx)
}

// Code returns the error code
func (e *DataAlignmentError) Code() string { return CodeDataAlignment }

// Is reports whether target is ErrDataAlignment
func (e *DataAlignmentError) Is(target error) bool { return target == ErrDataAlignment }

// CodeOf returns the code of err, or an empty string when err carries none
func CodeOf(err error) string {
	var coded Coded
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return ""
}
