package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Mschirtzinger/fim/internal/config"
	"github.com/Mschirtzinger/fim/internal/daemon"
	"github.com/Mschirtzinger/fim/internal/events"
	"github.com/Mschirtzinger/fim/internal/ui"
)

var monitorCmd = &cobra.Command{
	Use:     "monitor",
	GroupID: "monitor",
	Short:   "Begin monitoring with the saved baseline",
	Long: `Poll the configured targets for changes against the saved baseline and,
when backups are enabled, copy the targets into timestamped archives on a
fixed interval.

Every change is logged as "<code> File at path: <path>, Action: <text>"
with codes 101 (new), 103 (modified), 102 (deleted) and 104 (renamed).
Events are also stored in the SQLite event log unless events.database is
empty.

Press Ctrl+C to stop. The baseline is saved before exit.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := runMonitor(ctx, cfg, logger); err != nil {
			cancel()
			fail("%v", err)
		}
	},
}

// openSink returns the event sink for cfg: the log plus, when configured,
// the SQLite event log. The returned func releases the database.
func openSink(cfg *config.Config, logger *slog.Logger) (events.Sink, func() error, error) {
	logSink := events.NewLogSink(logger)
	if cfg.Events.Database == "" {
		return logSink, func() error { return nil }, nil
	}

	db, err := events.OpenSQLite(cfg.Events.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open event log: %w", err)
	}
	return events.Multi{logSink, db}, db.Close, nil
}

func runMonitor(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if err := cfg.Prepare(); err != nil {
		return err
	}

	sink, closeSink, err := openSink(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeSink(); err != nil {
			logger.Warn("failed to close event log", "error", err)
		}
	}()

	d, err := daemon.FromConfig(cfg, sink, logger)
	if err != nil {
		return err
	}

	fmt.Printf("%s Monitoring %d target(s) every %v\n", ui.RenderAccent("→"), len(cfg.Targets), cfg.Monitor.PollInterval)
	for _, t := range cfg.Targets {
		fmt.Printf("   %s\n", t)
	}
	if cfg.Backup.Enabled {
		fmt.Printf("   Backups: %s every %v, keeping %d\n", cfg.Backup.Root, cfg.Backup.Interval, cfg.Backup.Keep)
	}
	fmt.Printf("\nPress Ctrl+C to stop\n\n")

	if err := d.Start(ctx); err != nil {
		return err
	}
	fmt.Printf("%s Monitoring stopped, baseline saved to %s\n", ui.RenderPass("✓"), cfg.Baseline.Path)
	return nil
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}
