package utils

import "time"

// =============================================================================
// Grid Constants
// =============================================================================

const (
	// DefaultGridWorkers is the number of grid cells trained or predicted concurrently
	DefaultGridWorkers = 4

	// MaxGridWorkers caps the configured worker count
	MaxGridWorkers = 256

	// DefaultCellTimeout disables the per-cell timeout
	DefaultCellTimeout time.Duration = 0
)

// =============================================================================
// Lag Column Naming
// =============================================================================

const (
	// LagColumnSeparator joins a predictor name and its lag offset, e.g. "sales_lag_3"
	LagColumnSeparator = "_lag_"

	// PredictionSuffix is appended to the outcome name for the predicted value column
	PredictionSuffix = "_pred"
)

// =============================================================================
// Publish Constants
// =============================================================================

const (
	// DefaultPublishSubject is the subject run summaries are published to
	DefaultPublishSubject = "directcv.runs"

	// DefaultPublishTimeout bounds a single summary publish
	DefaultPublishTimeout = 5 * time.Second

	// DefaultMaxRetries is the default number of retry attempts
	DefaultMaxRetries = 3

	// DefaultRetryBackoff is the default backoff duration between retries
	DefaultRetryBackoff = 100 * time.Millisecond
)

// =============================================================================
// Queue Type Constants
// =============================================================================
// QueueType represents the type of message queue used for publishing
type QueueType string

const (
	// QueueTypeNATS represents NATS JetStream
	QueueTypeNATS QueueType = "nats"

	// QueueTypeRedis represents Redis Streams
	QueueTypeRedis QueueType = "redis"

	// QueueTypeKafka represents Apache Kafka
	QueueTypeKafka QueueType = "kafka"

	// QueueTypeMemory represents the in-process queue (default)
	QueueTypeMemory QueueType = "memory"
)
