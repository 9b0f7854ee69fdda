package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mschirtzinger/fim/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for name, want := range tests {
		assert.Equal(t, want, ParseLevel(name), name)
	}
}

func TestNewWritesConsoleAndFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default().Logging
	cfg.File = filepath.Join(dir, "logs", "fim.log")

	var console bytes.Buffer
	logger, closer := New(cfg, &console)
	logger.Info("File at path: a.txt", "component", "detector")
	logger.Debug("hidden")
	require.NoError(t, closer.Close())

	assert.Contains(t, console.String(), "File at path: a.txt")
	assert.NotContains(t, console.String(), "hidden")

	data, err := os.ReadFile(cfg.File)
	require.NoError(t, err)
	assert.Contains(t, string(data), "component=detector")
}

func TestNewJSONWithoutFile(t *testing.T) {
	cfg := config.LoggingConfig{Level: "debug", Format: "json"}

	var console bytes.Buffer
	logger, closer := New(cfg, &console)
	logger.Debug("scan complete", "changes", 3)
	require.NoError(t, closer.Close())

	var rec map[string]any
	require.NoError(t, json.Unmarshal(console.Bytes(), &rec))
	assert.Equal(t, "scan complete", rec["msg"])
	assert.EqualValues(t, 3, rec["changes"])
}
