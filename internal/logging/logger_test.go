package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/soltixdb/directcv/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m))
	return m
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.DebugLevel).With("model", "linear")

	l.Warn("cell failed", "horizon", 2, "window_id", 3, "error", errors.New("boom"))

	m := decode(t, &buf)
	assert.Equal(t, "warn", m["level"])
	assert.Equal(t, "cell failed", m["message"])
	assert.Equal(t, "linear", m["model"])
	assert.Equal(t, float64(2), m["horizon"])
	assert.Equal(t, "boom", m["error"])
}

func TestLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.InfoLevel)
	l.Debug("hidden")
	assert.Zero(t, buf.Len())
	l.Info("shown")
	assert.NotZero(t, buf.Len())
}

func TestLogger_Context(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.InfoLevel)

	ctx := WithLogger(context.Background(), l)
	ctx = WithRunID(ctx, "run-1")
	ctx = WithModel(ctx, "mean")
	assert.Equal(t, "run-1", RunID(ctx))

	InfoCtx(ctx, "started")
	m := decode(t, &buf)
	assert.Equal(t, "run-1", m["run_id"])
	assert.Equal(t, "mean", m["model"])

	assert.Same(t, Global(), FromContext(context.Background()))
	assert.Same(t, Global(), OrGlobal(nil))
	assert.Same(t, l, OrGlobal(l))
}

func TestNewFromConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")
	l, err := NewFromConfig(config.LoggingConfig{Level: "info", Format: "json", OutputPath: path})
	require.NoError(t, err)

	l.Info("hello", "k", 1)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"hello"`))
}
