package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestPrettyHandler(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "pretty", "info")

	log.Debug("hidden")
	assert.Empty(t, buf.String())

	log.With("component", "bot").WithGroup("pin").Warn("quota reached", "account", "p1")
	out := buf.String()
	assert.Contains(t, out, "WRN")
	assert.Contains(t, out, "quota reached")
	assert.Contains(t, out, "component"+reset+"=bot")
	assert.Contains(t, out, "pin.account"+reset+"=p1")
}

func TestJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "json", "debug")
	log.Debug("scanning", "channel", "c1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "scanning", line["msg"])
	assert.Equal(t, "c1", line["channel"])
	assert.Equal(t, "DEBUG", line["level"])
}
