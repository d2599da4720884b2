package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: FormatJSON, Output: &buf})

	logger.Info("scan complete", "plugin", "tools", "entries", 3)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed), "output: %s", buf.String())
	assert.Equal(t, "scan complete", parsed["msg"])
	assert.Equal(t, "INFO", parsed["level"])
	assert.Equal(t, "tools", parsed["plugin"])
	assert.EqualValues(t, 3, parsed["entries"])
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: FormatText, Output: &buf})

	logger.Info("scan complete", "plugin", "tools")

	out := buf.String()
	assert.Contains(t, out, "scan complete")
	assert.Contains(t, out, "plugin=tools")
	assert.Contains(t, out, "INFO")
	assert.False(t, json.Valid(buf.Bytes()))
}

func TestNew_UnknownFormatFallsBackToText(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: "xml", Output: &buf})
	logger.Info("hello")
	assert.Contains(t, buf.String(), "INFO  hello")
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, Format: FormatText, Output: &buf})

	logger.Info("hidden")
	logger.Debug("hidden too")
	assert.Empty(t, buf.String())

	logger.Warn("remote check skipped", "reason", "no credentials")
	assert.Contains(t, buf.String(), "remote check skipped")
}

func TestLevelFromVerbosity(t *testing.T) {
	tests := []struct {
		v    int
		want slog.Level
	}{
		{-1, slog.LevelWarn},
		{0, slog.LevelWarn},
		{1, slog.LevelInfo},
		{2, slog.LevelDebug},
		{3, LevelTrace},
		{7, LevelTrace},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelFromVerbosity(tt.v), "verbosity %d", tt.v)
	}
	assert.Less(t, LevelTrace, slog.LevelDebug)
}

func TestContext(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))

	logger := NewDiscard()
	ctx := NewContext(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
}

func TestForTest(t *testing.T) {
	logger := ForTest(t)
	require.NotNil(t, logger)
	assert.True(t, logger.Enabled(t.Context(), LevelTrace))
	logger.Log(t.Context(), LevelTrace, "derived component", "path", "tools/commands/build.md")
}

func TestMultiHandler(t *testing.T) {
	var warnBuf, debugBuf bytes.Buffer
	h := NewMultiHandler(
		NewHandler(&warnBuf, &slog.HandlerOptions{Level: slog.LevelWarn}),
		nil,
		slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	logger := slog.New(h).With("component", "checker")

	assert.True(t, h.Enabled(t.Context(), slog.LevelDebug))
	assert.False(t, h.Enabled(t.Context(), LevelTrace))

	logger.Debug("comparing")
	logger.Warn("anomaly", "entry", "Skill(")

	assert.NotContains(t, warnBuf.String(), "comparing")
	assert.Contains(t, warnBuf.String(), "component=checker")
	assert.Contains(t, debugBuf.String(), `"msg":"comparing"`)
	assert.Contains(t, debugBuf.String(), `"msg":"anomaly"`)

	grouped := slog.New(h.WithGroup("remote"))
	grouped.Warn("skipped", "reason", "timeout")
	assert.Contains(t, warnBuf.String(), "remote.reason=timeout")
}
