package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Mschirtzinger/fim/internal/backup"
	"github.com/Mschirtzinger/fim/internal/config"
	"github.com/Mschirtzinger/fim/internal/ui"
)

var backupCmd = &cobra.Command{
	Use:     "backup",
	GroupID: "maintenance",
	Short:   "Create one backup archive now",
	Long: `Copy every target into a new archive named after the current time under
backup.root, then delete the oldest archives beyond backup.keep.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runBackup(cmd.Context(), cfg, logger, os.Stdout); err != nil {
			fail("%v", err)
		}
	},
}

var pruneCmd = &cobra.Command{
	Use:     "prune",
	GroupID: "maintenance",
	Short:   "Delete old backup archives",
	Long: `Delete the oldest archives under backup.root until only the most recent
ones remain. The count defaults to backup.keep.`,
	Run: func(cmd *cobra.Command, args []string) {
		keep, _ := cmd.Flags().GetInt("keep")
		if err := runPrune(cfg, keep, logger, os.Stdout); err != nil {
			fail("%v", err)
		}
	},
}

func newScheduler(cfg *config.Config, logger *slog.Logger) (*backup.Scheduler, error) {
	if !cfg.Backup.Enabled {
		return nil, fmt.Errorf("backups are disabled (backup.enabled = false)")
	}
	if err := cfg.Prepare(); err != nil {
		return nil, err
	}

	bCfg := backup.DefaultConfig()
	bCfg.Targets = cfg.Targets
	bCfg.Root = cfg.Backup.Root
	bCfg.Interval = cfg.Backup.Interval
	bCfg.Keep = cfg.Backup.Keep
	bCfg.RollbackOnFailure = cfg.Backup.RollbackOnFailure
	bCfg.Logger = logger
	return backup.NewScheduler(bCfg)
}

func runBackup(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := newScheduler(cfg, logger)
	if err != nil {
		return err
	}

	res, err := s.RunOnce(ctx)
	if err != nil {
		return err
	}
	if res.Skipped {
		fmt.Fprintf(out, "%s Archive %s already exists, nothing to do\n", ui.RenderWarn("!"), res.Archive)
		return nil
	}

	fmt.Fprintf(out, "%s Backup created in %v\n", ui.RenderPass("✓"), res.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "   Archive: %s\n", res.Archive)
	fmt.Fprintf(out, "   Files: %d (%s)\n", res.Files, humanize.Bytes(uint64(res.Bytes)))
	for _, p := range res.Pruned {
		fmt.Fprintf(out, "   Deleted: %s\n", p)
	}
	return nil
}

func runPrune(cfg *config.Config, keep int, logger *slog.Logger, out io.Writer) error {
	if cfg.Backup.Root == "" {
		return fmt.Errorf("backup.root is not set")
	}
	if keep <= 0 {
		keep = cfg.Backup.Keep
	}

	removed, err := backup.Prune(cfg.Backup.Root, keep, logger)
	for _, p := range removed {
		fmt.Fprintf(out, "%s Deleted %s\n", ui.RenderPass("✓"), p)
	}
	if err != nil {
		return err
	}
	if len(removed) == 0 {
		fmt.Fprintf(out, "Nothing to delete, at most %d archive(s) present\n", keep)
	}
	return nil
}

func init() {
	pruneCmd.Flags().Int("keep", 0, "number of archives to keep (default: backup.keep)")

	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(pruneCmd)
}
