package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Mschirtzinger/fim/internal/backup"
	"github.com/Mschirtzinger/fim/internal/baseline"
	"github.com/Mschirtzinger/fim/internal/config"
	"github.com/Mschirtzinger/fim/internal/events"
	"github.com/Mschirtzinger/fim/internal/fingerprint"
	"github.com/Mschirtzinger/fim/internal/ui"
)

const statusWidth = 12

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "maintenance",
	Short:   "Show baseline, backup and event log status",
	Run: func(cmd *cobra.Command, args []string) {
		verify, _ := cmd.Flags().GetBool("verify")
		if err := runStatus(cfg, logger, os.Stdout, verify); err != nil {
			fail("%v", err)
		}
	},
}

func runStatus(cfg *config.Config, logger *slog.Logger, out io.Writer, verify bool) error {
	field := func(label, value string) {
		fmt.Fprintln(out, ui.Field(label, statusWidth, value))
	}

	fmt.Fprintf(out, "\n%s\n\n", ui.RenderHeader("Targets"))
	for _, t := range cfg.Targets {
		state := ui.RenderPass("ok")
		if info, err := os.Stat(t); err != nil || !info.IsDir() {
			state = ui.RenderFail("unavailable")
		}
		fmt.Fprintf(out, "  %s %s\n", t, state)
	}

	fmt.Fprintf(out, "\n%s\n\n", ui.RenderHeader("Baseline"))
	field("Ledger", cfg.Baseline.Path)
	if info, err := os.Stat(cfg.Baseline.Path); err != nil {
		field("State", ui.RenderWarn("not collected, run 'fim baseline'"))
	} else {
		records, err := baseline.NewStore(cfg.Baseline.Path, logger).Load()
		if err != nil {
			field("State", ui.RenderFail(err.Error()))
		} else {
			field("Files", strconv.Itoa(len(records)))
			if verify {
				v := verifyRecords(records)
				state := ui.RenderPass(fmt.Sprintf("%d match", v.match))
				if v.changed > 0 || v.missing > 0 {
					state = ui.RenderWarn(fmt.Sprintf("%d match, %d changed, %d missing", v.match, v.changed, v.missing))
				}
				field("Verified", state)
			}
		}
		field("Size", humanize.Bytes(uint64(info.Size())))
		field("Saved", humanize.Time(info.ModTime()))
	}

	fmt.Fprintf(out, "\n%s\n\n", ui.RenderHeader("Backups"))
	switch {
	case !cfg.Backup.Enabled:
		field("State", ui.RenderMuted("disabled"))
	default:
		field("Root", cfg.Backup.Root)
		field("Schedule", fmt.Sprintf("every %v, keep %d", cfg.Backup.Interval, cfg.Backup.Keep))
		archives, err := backup.ListArchives(cfg.Backup.Root)
		if err != nil {
			field("Archives", ui.RenderWarn("none yet"))
			break
		}
		field("Archives", strconv.Itoa(len(archives)))
		if n := len(archives); n > 0 {
			newest := archives[n-1]
			field("Newest", fmt.Sprintf("%s (%s)", newest.Name, humanize.Time(newest.Created)))
			field("Total size", humanize.Bytes(uint64(treeSize(cfg.Backup.Root))))
		}
	}

	fmt.Fprintf(out, "\n%s\n\n", ui.RenderHeader("Event log"))
	if cfg.Events.Database == "" {
		field("State", ui.RenderMuted("disabled"))
	} else if _, err := os.Stat(cfg.Events.Database); err != nil {
		field("Database", cfg.Events.Database)
		field("State", ui.RenderWarn("empty"))
	} else {
		db, err := events.OpenSQLite(cfg.Events.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		n, err := db.Count(context.Background())
		if err != nil {
			return err
		}
		field("Database", db.Path())
		field("Events", strconv.Itoa(n))
	}
	fmt.Fprintln(out)
	return nil
}

type verifyResult struct {
	match, changed, missing int
}

// verifyRecords rehashes every recorded file and compares it with the ledger.
func verifyRecords(records map[string]baseline.Record) verifyResult {
	var v verifyResult
	for path, rec := range records {
		digest, err := fingerprint.File(path)
		switch {
		case err != nil:
			v.missing++
		case digest == rec.Fingerprint:
			v.match++
		default:
			v.changed++
		}
	}
	return v
}

// treeSize sums regular file sizes under root, ignoring unreadable entries.
func treeSize(root string) int64 {
	var total int64
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}

func init() {
	statusCmd.Flags().Bool("verify", false, "rehash recorded files and compare them with the baseline")
	rootCmd.AddCommand(statusCmd)
}
