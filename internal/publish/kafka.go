package publish

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig represents Apache Kafka producer configuration
type KafkaConfig struct {
	Brokers      []string      // Kafka broker addresses
	BatchTimeout time.Duration // Batch timeout for producer (default: 10ms)
	RequiredAcks int           // Required acks: 0=none, 1=leader, -1=all (default: 1)
	MaxRetries   int           // Max attempts per write (default: 3)
}

// KafkaPublisher writes messages to Kafka topics, one writer per topic
type KafkaPublisher struct {
	config  KafkaConfig
	writers map[string]*kafka.Writer
	mu      sync.Mutex
}

func newKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 10 * time.Millisecond
	}
	if cfg.RequiredAcks == 0 {
		cfg.RequiredAcks = int(kafka.RequireOne)
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	return &KafkaPublisher{config: cfg, writers: make(map[string]*kafka.Writer)}, nil
}

func (p *KafkaPublisher) writer(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.writers[topic]; ok {
		return w
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(p.config.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           p.config.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(p.config.RequiredAcks),
		MaxAttempts:            p.config.MaxRetries,
		AllowAutoTopicCreation: true,
	}
	p.writers[topic] = w
	return w
}

// Publish writes data to the topic named subject
func (p *KafkaPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	msg := kafka.Message{Value: data, Time: time.Now()}
	if err := p.writer(subject).WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish to kafka topic %s: %w", subject, err)
	}
	return nil
}

// Close closes every writer
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for topic, w := range p.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close kafka writer %s: %w", topic, err)
		}
		delete(p.writers, topic)
	}
	return firstErr
}
