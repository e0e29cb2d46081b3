package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig represents Redis Streams configuration
type RedisConfig struct {
	URL      string // Redis URL (e.g., redis://localhost:6379) or host:port
	Password string // Optional password
	DB       int    // Database number (default: 0)
	Stream   string // Stream prefix (default: "directcv")
	MaxLen   int64  // Approximate stream cap; 0 keeps everything
}

// RedisPublisher appends messages to Redis Streams named <prefix>:<subject>
type RedisPublisher struct {
	client *redis.Client
	config RedisConfig
}

func newRedisPublisher(cfg RedisConfig) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		// Fallback to simple options
		opts = &redis.Options{
			Addr:     cfg.URL,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if cfg.Stream == "" {
		cfg.Stream = "directcv"
	}
	return &RedisPublisher{client: client, config: cfg}, nil
}

// StreamKey returns the Redis stream a subject is written to
func (p *RedisPublisher) StreamKey(subject string) string {
	return fmt.Sprintf("%s:%s", p.config.Stream, subject)
}

// Publish appends data as the "data" field of a new stream entry
func (p *RedisPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	stream := p.StreamKey(subject)
	args := &redis.XAddArgs{
		Stream: stream,
		ID:     "*",
		Values: map[string]interface{}{"data": data},
	}
	if p.config.MaxLen > 0 {
		args.MaxLen = p.config.MaxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis stream %s: %w", stream, err)
	}
	return nil
}

// Close closes the client
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
