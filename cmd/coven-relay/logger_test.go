// ABOUTME: Tests for logger construction and the color handler
// ABOUTME: Colors are disabled so assertions can match plain text

package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-relay/internal/config"
)

func plainColors(t *testing.T) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}

	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	logger.Debug("hidden")
	logger.With("component", "gateway").Info("turn finished", "user", "12345")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "turn finished", entry["msg"])
	assert.Equal(t, "gateway", entry["component"])
	assert.Equal(t, "12345", entry["user"])
}

func TestColorHandler_Line(t *testing.T) {
	plainColors(t)
	var buf bytes.Buffer
	logger := newLogger(config.LoggingConfig{Level: "debug", Format: "text"}, &buf)

	logger.With("component", "agent").Warn("agent run aborted", "error", "context canceled", "resume", true)

	line := buf.String()
	assert.Contains(t, line, "WRN agent run aborted")
	assert.Contains(t, line, " component=agent")
	assert.Contains(t, line, ` error="context canceled"`)
	assert.Contains(t, line, " resume=true")
	assert.True(t, strings.HasSuffix(line, "\n"))
	assert.Less(t, strings.Index(line, "component="), strings.Index(line, "error="),
		"handler attrs come before record attrs")
}

func TestColorHandler_LevelFilter(t *testing.T) {
	plainColors(t)
	var buf bytes.Buffer
	logger := newLogger(config.LoggingConfig{Level: "warn"}, &buf)

	logger.Info("quiet")
	logger.Error("loud")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "ERR loud")
}

func TestColorHandler_Groups(t *testing.T) {
	plainColors(t)
	var buf bytes.Buffer
	logger := newLogger(config.LoggingConfig{Level: "info"}, &buf)

	logger.WithGroup("req").With("id", 7).Info("grouped", "path", "/x", slog.Group("sub", "n", 1))

	line := buf.String()
	assert.Contains(t, line, " req.id=7")
	assert.Contains(t, line, " req.path=/x")
	assert.Contains(t, line, " req.sub.n=1")
}
