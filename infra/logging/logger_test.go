package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-service/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "realtime.log")

	l := New(config.LogConfig{Level: "info", Format: "json", File: path, MaxSizeMB: 1}, "test")
	l.Info("FILE_LOG_CHECK", "key", "value")
	require.NoError(t, l.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(raw), &rec))
	assert.Equal(t, "FILE_LOG_CHECK", rec["msg"])
	assert.Equal(t, "value", rec["key"])
}

func TestNew_LevelIsAdjustable(t *testing.T) {
	l := New(config.LogConfig{Level: "error", Format: "text"}, "test")
	defer l.Close()

	ctx := context.Background()
	assert.False(t, l.Enabled(ctx, slog.LevelInfo))

	l.Level.Set(slog.LevelDebug)
	assert.True(t, l.Enabled(ctx, slog.LevelDebug))
}

func TestNew_WithOTelBridge(t *testing.T) {
	l := New(config.LogConfig{Level: "info", Format: "json", OTel: true}, "test")
	defer l.Close()

	_, ok := l.Handler().(*TeeHandler)
	assert.True(t, ok)
	assert.False(t, l.Enabled(context.Background(), slog.LevelDebug))
}

func TestTeeHandler(t *testing.T) {
	var infoBuf, errBuf bytes.Buffer
	info := slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo})
	errs := slog.NewJSONHandler(&errBuf, &slog.HandlerOptions{Level: slog.LevelError})

	log := slog.New(NewTeeHandler(info, errs)).With("component", "tee").WithGroup("g")

	log.Info("ONLY_INFO", "k", 1)
	log.Error("BOTH", "k", 2)

	assert.Contains(t, infoBuf.String(), "ONLY_INFO")
	assert.Contains(t, infoBuf.String(), "BOTH")
	assert.NotContains(t, errBuf.String(), "ONLY_INFO")
	assert.Contains(t, errBuf.String(), `"component":"tee"`)
	assert.Contains(t, errBuf.String(), `"g":{"k":2}`)
}
