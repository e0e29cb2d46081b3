package publish

import (
	"context"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes to NATS JetStream. A file-backed stream is created
// for each subject on first use.
type NATSPublisher struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	streams map[string]bool
	mu      sync.Mutex
}

func newNATSPublisher(url, username, password string) (*NATSPublisher, error) {
	opts := []nats.Option{nats.Name("directcv")}
	if username != "" {
		opts = append(opts, nats.UserInfo(username, password))
	}
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	p, err := newNATSPublisherWithConn(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return p, nil
}

func newNATSPublisherWithConn(conn *nats.Conn) (*NATSPublisher, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	return &NATSPublisher{conn: conn, js: js, streams: make(map[string]bool)}, nil
}

func (p *NATSPublisher) ensureStream(subject string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.streams[subject] {
		return nil
	}

	name := StreamName(subject)
	if _, err := p.js.StreamInfo(name); err != nil {
		_, err = p.js.AddStream(&nats.StreamConfig{
			Name:     name,
			Subjects: []string{subject},
			Storage:  nats.FileStorage,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream for subject %s: %w", subject, err)
		}
	}
	p.streams[subject] = true
	return nil
}

// Publish publishes data and waits for the JetStream acknowledgement
func (p *NATSPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if err := p.ensureStream(subject); err != nil {
		return err
	}
	if _, err := p.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", subject, err)
	}
	return nil
}

// Close drains and closes the connection
func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
	return nil
}

// StreamName derives the JetStream stream name for subject. Stream names can
// only contain A-Z, a-z, 0-9, dash and underscore.
func StreamName(subject string) string {
	result := make([]byte, 0, len(subject)+9)
	result = append(result, "directcv-"...)
	for i := 0; i < len(subject); i++ {
		c := subject[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' || c == '_' {
			result = append(result, c)
		} else {
			result = append(result, '_')
		}
	}
	return string(result)
}
