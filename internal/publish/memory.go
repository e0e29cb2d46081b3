package publish

import (
	"context"
	"errors"
	"sync"
)

// MemoryPublisher keeps published messages in process, per subject. It backs
// runs without a broker and tests.
type MemoryPublisher struct {
	messages map[string][][]byte
	closed   bool
	mu       sync.RWMutex
}

// NewMemoryPublisher creates an empty in-memory publisher
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{messages: make(map[string][][]byte)}
}

// Publish stores a copy of data under subject
func (p *MemoryPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("publisher is closed")
	}
	p.messages[subject] = append(p.messages[subject], append([]byte(nil), data...))
	return nil
}

// Messages returns the messages published to subject, oldest first
func (p *MemoryPublisher) Messages(subject string) [][]byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([][]byte(nil), p.messages[subject]...)
}

// Close stops accepting messages; stored messages stay readable
func (p *MemoryPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
