package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/docgraph/pkg/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, config.LogConfig{Level: "warn", Format: "json"})

	log.Info("hidden")
	log.Warn("Falling back to degree centrality", "nodes", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, float64(3), record["nodes"])
}

func TestColorHandler(t *testing.T) {
	prev := color.NoColor
	color.NoColor = false
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	log := slog.New(NewColorHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})).With("component", "engine")

	log.Info("Analyzed document relationships")
	log.Info("plain message")
	log.Error("failed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "\x1b[32m"), lines[0])
	assert.Contains(t, lines[0], "component=engine")
	assert.False(t, strings.HasPrefix(lines[1], "\x1b["), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "\x1b[31m"), lines[2])
}
