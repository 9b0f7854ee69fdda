package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mschirtzinger/fim/internal/baseline"
	"github.com/Mschirtzinger/fim/internal/config"
	"github.com/Mschirtzinger/fim/internal/ui"
)

var baselineCmd = &cobra.Command{
	Use:     "baseline",
	GroupID: "monitor",
	Short:   "Collect a new baseline",
	Long: `Discard the saved baseline and record a fresh fingerprint and event id
for every file currently under the configured targets.

Files in excluded directories and names starting with "$" or "~$" are
skipped. Locked files are skipped and will be reported as new once they
can be read.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runBaseline(cfg, logger, os.Stdout); err != nil {
			fail("%v", err)
		}
	},
}

func runBaseline(cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	store := baseline.NewStore(cfg.Baseline.Path, logger)

	fmt.Fprintf(out, "%s Collecting baseline for %d target(s)...\n", ui.RenderAccent("→"), len(cfg.Targets))
	start := time.Now()

	records, err := store.Rebuild(cfg.Targets, baseline.RebuildOptions{
		ExcludeDirs: cfg.Monitor.ExcludeDirs,
	})
	if err != nil {
		return fmt.Errorf("failed to collect baseline: %w", err)
	}

	fmt.Fprintf(out, "%s Baseline saved in %v\n", ui.RenderPass("✓"), time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(out, "   Files: %d\n", len(records))
	fmt.Fprintf(out, "   Ledger: %s\n", store.Path())
	return nil
}

func init() {
	rootCmd.AddCommand(baselineCmd)
}
