package daemon_test

import (
	"context"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Mschirtzinger/fim/internal/config"
	"github.com/Mschirtzinger/fim/internal/daemon"
	"github.com/Mschirtzinger/fim/internal/events"
)

func ExampleDaemon_Start() {
	dir, err := os.MkdirTemp("", "fim-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	cfg := config.Default()
	cfg.Targets = []string{filepath.Join(dir, "files")}
	cfg.Baseline.Path = filepath.Join(dir, "baseline.txt")
	cfg.Events.Database = ""
	cfg.Logging.File = ""
	cfg.Backup.Enabled = false
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	if err := os.MkdirAll(cfg.Targets[0], 0o755); err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	d, err := daemon.FromConfig(cfg, events.NewLogSink(logger), logger)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := d.Start(ctx); err != nil {
		log.Printf("daemon exited: %v", err)
	}
}
