// Command fim watches directory trees for file changes and keeps rolling
// backups of them.
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Mschirtzinger/fim/internal/config"
	"github.com/Mschirtzinger/fim/internal/logging"
	"github.com/Mschirtzinger/fim/internal/ui"
)

// skipConfig marks commands that run without a loaded configuration.
const skipConfig = "fim/skip-config"

var (
	cfgFile string

	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "fim",
	Short: "Polling file integrity monitor with scheduled backups",
	Long: `fim keeps a baseline of SHA-512 fingerprints for every file under the
configured target directories and polls them for changes. New, modified,
renamed and deleted files are reported with a numeric event code. In
parallel, the targets are copied into timestamped archives and only the
most recent archives are kept.

Run without a subcommand on a terminal to choose an action interactively.`,
	Annotations:  map[string]string{skipConfig: "true"},
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipConfig] == "true" {
			return nil
		}
		return setup()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		teardown()
	},
	Run: func(cmd *cobra.Command, args []string) {
		if !ui.IsInteractive() {
			_ = cmd.Help()
			return
		}
		if err := setup(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		runMenu(cmd)
	},
}

// setup loads .env, configuration and logging once per process.
func setup() error {
	if cfg != nil {
		return nil
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	c, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	cfg = c
	logger, logCloser = logging.New(cfg.Logging, os.Stderr)
	return nil
}

func teardown() {
	if logCloser != nil {
		_ = logCloser.Close()
		logCloser = nil
	}
}

// fail reports err and exits. Deferred cleanup in the caller does not run.
func fail(format string, args ...any) {
	teardown()
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: fim.yaml in ., ~/.config/fim or /etc/fim)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "monitor", Title: "Monitoring:"},
		&cobra.Group{ID: "maintenance", Title: "Maintenance:"},
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
