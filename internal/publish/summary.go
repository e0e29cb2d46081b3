package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/golang/snappy"
	"github.com/soltixdb/directcv/internal/utils"
)

// snappy framing format stream identifier
var snappyMagic = []byte("\xff\x06\x00\x00sNaPpY")

// Encode marshals v to JSON, optionally wrapped in the snappy framing format
func Encode(v any, compress bool) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode summary: %w", err)
	}
	if !compress {
		return raw, nil
	}

	var buf bytes.Buffer
	w := snappy.NewBufferedWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("snappy compress failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("snappy compress failed: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reverses Encode, detecting compression from the payload
func Decode(data []byte, v any) error {
	if bytes.HasPrefix(data, snappyMagic) {
		raw, err := io.ReadAll(snappy.NewReader(bytes.NewReader(data)))
		if err != nil {
			return fmt.Errorf("snappy decompress failed: %w", err)
		}
		data = raw
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode summary: %w", err)
	}
	return nil
}

// PublishSummary encodes summary and publishes it to subject, retrying with
// a linear backoff. Each attempt is bounded by the default publish timeout.
func PublishSummary(ctx context.Context, p Publisher, subject string, summary any, compress bool) error {
	if subject == "" {
		subject = utils.DefaultPublishSubject
	}
	data, err := Encode(summary, compress)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < utils.DefaultMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * utils.DefaultRetryBackoff):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, utils.DefaultPublishTimeout)
		lastErr = p.Publish(attemptCtx, subject, data)
		cancel()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("publish to %s failed after %d attempts: %w", subject, utils.DefaultMaxRetries, lastErr)
}
