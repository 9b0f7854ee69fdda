package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Template formats accepted by WriteTemplate.
const (
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

// templateConfig mirrors Config with durations rendered as strings so both
// encoders produce values viper can parse back.
type templateConfig struct {
	Targets  []string        `yaml:"targets"  toml:"targets"`
	Baseline BaselineConfig  `yaml:"baseline" toml:"baseline"`
	Monitor  templateMonitor `yaml:"monitor"  toml:"monitor"`
	Backup   templateBackup  `yaml:"backup"   toml:"backup"`
	Events   EventsConfig    `yaml:"events"   toml:"events"`
	Logging  LoggingConfig   `yaml:"logging"  toml:"logging"`
}

type templateMonitor struct {
	PollInterval  string   `yaml:"poll_interval"  toml:"poll_interval"`
	ExcludeDirs   []string `yaml:"exclude_dirs"   toml:"exclude_dirs"`
	SaveEvery     int      `yaml:"save_every"     toml:"save_every"`
	DetectRenames bool     `yaml:"detect_renames" toml:"detect_renames"`
	LogUnchanged  bool     `yaml:"log_unchanged"  toml:"log_unchanged"`
}

type templateBackup struct {
	Enabled           bool   `yaml:"enabled"             toml:"enabled"`
	Root              string `yaml:"root"                toml:"root"`
	Interval          string `yaml:"interval"            toml:"interval"`
	Keep              int    `yaml:"keep"                toml:"keep"`
	OnStart           bool   `yaml:"on_start"            toml:"on_start"`
	RollbackOnFailure bool   `yaml:"rollback_on_failure" toml:"rollback_on_failure"`
}

// WriteTemplate writes cfg to w in the given format (yaml or toml).
// A nil cfg writes the defaults with placeholder targets and backup root.
func WriteTemplate(w io.Writer, format string, cfg *Config) error {
	if cfg == nil {
		cfg = Default()
		cfg.Targets = []string{"/path/to/files"}
		cfg.Backup.Root = "/path/to/Backup"
	}

	tc := templateConfig{
		Targets:  cfg.Targets,
		Baseline: cfg.Baseline,
		Monitor: templateMonitor{
			PollInterval:  cfg.Monitor.PollInterval.String(),
			ExcludeDirs:   cfg.Monitor.ExcludeDirs,
			SaveEvery:     cfg.Monitor.SaveEvery,
			DetectRenames: cfg.Monitor.DetectRenames,
			LogUnchanged:  cfg.Monitor.LogUnchanged,
		},
		Backup: templateBackup{
			Enabled:           cfg.Backup.Enabled,
			Root:              cfg.Backup.Root,
			Interval:          cfg.Backup.Interval.String(),
			Keep:              cfg.Backup.Keep,
			OnStart:           cfg.Backup.OnStart,
			RollbackOnFailure: cfg.Backup.RollbackOnFailure,
		},
		Events:  cfg.Events,
		Logging: cfg.Logging,
	}

	switch strings.ToLower(format) {
	case FormatYAML, "yml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(tc); err != nil {
			return fmt.Errorf("failed to encode yaml template: %w", err)
		}
		return enc.Close()

	case FormatTOML:
		if err := toml.NewEncoder(w).Encode(tc); err != nil {
			return fmt.Errorf("failed to encode toml template: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unsupported template format %q (want yaml or toml)", format)
	}
}
