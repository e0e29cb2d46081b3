// Package publish ships run summaries to a message queue so downstream
// consumers (dashboards, schedulers, archives) can react to finished runs.
package publish

import (
	"context"
	"fmt"
	"strings"

	"github.com/soltixdb/directcv/internal/config"
	"github.com/soltixdb/directcv/internal/utils"
)

// Publisher publishes messages to a subject, stream or topic
type Publisher interface {
	// Publish publishes one message and waits for the broker to accept it
	Publish(ctx context.Context, subject string, data []byte) error

	// Close closes the connection
	Close() error
}

// NewPublisher creates a Publisher based on configuration. The in-process
// memory publisher is the default.
func NewPublisher(cfg config.PublishConfig) (Publisher, error) {
	queueType := utils.QueueType(strings.ToLower(cfg.Type))
	if queueType == "" {
		queueType = utils.QueueTypeMemory
	}

	switch queueType {
	case utils.QueueTypeNATS:
		return newNATSPublisher(cfg.URL, cfg.Username, cfg.Password)

	case utils.QueueTypeRedis:
		return newRedisPublisher(RedisConfig{
			URL:      cfg.URL,
			Password: cfg.Password,
			DB:       cfg.RedisDB,
			Stream:   cfg.RedisStream,
		})

	case utils.QueueTypeKafka:
		brokers := cfg.KafkaBrokers
		if len(brokers) == 0 && cfg.URL != "" {
			brokers = strings.Split(cfg.URL, ",")
		}
		return newKafkaPublisher(KafkaConfig{Brokers: brokers})

	case utils.QueueTypeMemory:
		return NewMemoryPublisher(), nil

	default:
		return nil, fmt.Errorf("unsupported queue type: %s (supported: nats, redis, kafka, memory)", queueType)
	}
}
