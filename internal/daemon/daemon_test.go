package daemon

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mschirtzinger/fim/internal/config"
	"github.com/Mschirtzinger/fim/internal/events"
)

// syncBuffer is a bytes.Buffer safe for concurrent log writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func setupConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	files := filepath.Join(dir, "files")
	require.NoError(t, os.MkdirAll(files, 0o755))

	cfg := config.Default()
	cfg.Targets = []string{files}
	cfg.Baseline.Path = filepath.Join(dir, "baseline.txt")
	cfg.Monitor.PollInterval = 20 * time.Millisecond
	cfg.Backup.Root = filepath.Join(dir, "Backup")
	cfg.Backup.Interval = time.Hour
	require.NoError(t, cfg.Validate())
	require.NoError(t, cfg.Prepare())
	return cfg
}

func hasEvent(rec *events.Recorder, kind events.Kind, path string) bool {
	for _, ev := range rec.Events() {
		if ev.Kind == kind && ev.Path == path {
			return true
		}
	}
	return false
}

func TestNewRequiresDetector(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)
}

func TestFromConfigWithoutBackups(t *testing.T) {
	cfg := setupConfig(t)
	cfg.Backup.Enabled = false

	d, err := FromConfig(cfg, &events.Recorder{}, nil)
	require.NoError(t, err)
	assert.Nil(t, d.scheduler)
	assert.NotNil(t, d.detector)
}

func TestFromConfigRejectsNil(t *testing.T) {
	_, err := FromConfig(nil, &events.Recorder{}, nil)
	assert.Error(t, err)
}

func TestStartDetectsAndBacksUpUntilCancelled(t *testing.T) {
	cfg := setupConfig(t)
	logs := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	existing := filepath.Join(cfg.Targets[0], "report.xlsx")
	require.NoError(t, os.WriteFile(existing, []byte("v1"), 0o644))

	rec := &events.Recorder{}
	d, err := FromConfig(cfg, rec, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	// No baseline on disk yet, so the existing file is reported as new.
	require.Eventually(t, func() bool {
		return hasEvent(rec, events.KindNew, existing)
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(existing, []byte("v2"), 0o644))
	require.Eventually(t, func() bool {
		return hasEvent(rec, events.KindModified, existing)
	}, 5*time.Second, 10*time.Millisecond)

	// Backup on start ran independently of the detector.
	require.Eventually(t, func() bool {
		entries, err := os.ReadDir(cfg.Backup.Root)
		return err == nil && len(entries) == 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}

	data, err := os.ReadFile(cfg.Baseline.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), existing)
	assert.True(t, strings.Contains(logs.String(), "daemon stopped"))
}

func TestStartWithCorruptBaselineContinues(t *testing.T) {
	cfg := setupConfig(t)
	cfg.Backup.Enabled = false
	require.NoError(t, os.WriteFile(cfg.Baseline.Path, []byte("a|b|c|d\n"), 0o644))

	path := filepath.Join(cfg.Targets[0], "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0o644))

	rec := &events.Recorder{}
	d, err := FromConfig(cfg, rec, slog.New(slog.NewTextHandler(&syncBuffer{}, nil)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	require.Eventually(t, func() bool {
		return hasEvent(rec, events.KindNew, path)
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, d.Stop())
	require.NoError(t, d.Stop())
	require.NoError(t, <-done)
}
