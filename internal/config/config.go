// Package config provides configuration loading and validation for fim.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Mschirtzinger/fim/internal/walk"
)

// Sentinel validation errors.
var (
	ErrNoTargets             = errors.New("at least one target directory is required")
	ErrInvalidPollInterval   = errors.New("poll interval must be positive")
	ErrInvalidSaveEvery      = errors.New("save_every must be positive")
	ErrInvalidBackupInterval = errors.New("backup interval must be positive")
	ErrInvalidKeep           = errors.New("backup keep count must be at least 1")
	ErrMissingBackupRoot     = errors.New("backup root is required when backups are enabled")
	ErrBackupInsideTarget    = errors.New("backup root must not be inside a target")
	ErrStateInsideTarget     = errors.New("baseline, event database and log file must not be inside a target")
	ErrDuplicateTargetName   = errors.New("target base names must be unique")
	ErrBackupRootNotWritable = errors.New("backup root is not writable")
	ErrInvalidLogLevel       = errors.New("invalid logging level")
	ErrInvalidLogFormat      = errors.New("invalid logging format")
)

// Default configuration values.
const (
	DefaultBaselinePath   = "baseline.txt"
	DefaultPollInterval   = 5 * time.Second
	DefaultSaveEvery      = 1
	DefaultBackupInterval = time.Minute
	DefaultBackupKeep     = 2
	DefaultEventsDB       = "events.db"
	DefaultLogFile        = "folder_logs.log"
	DefaultLogMaxSizeMB   = 10
	DefaultLogMaxBackups  = 3
	DefaultLogMaxAgeDays  = 28
)

// DefaultExcludeDirs are directory names skipped while walking targets.
var DefaultExcludeDirs = []string{"image files"}

// Config holds all configuration for fim.
type Config struct {
	Targets  []string       `mapstructure:"targets"`
	Baseline BaselineConfig `mapstructure:"baseline"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Backup   BackupConfig   `mapstructure:"backup"`
	Events   EventsConfig   `mapstructure:"events"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// BaselineConfig holds ledger configuration.
type BaselineConfig struct {
	Path string `mapstructure:"path" yaml:"path" toml:"path"`
}

// MonitorConfig holds change detection configuration.
type MonitorConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	ExcludeDirs   []string      `mapstructure:"exclude_dirs"`
	SaveEvery     int           `mapstructure:"save_every"`
	DetectRenames bool          `mapstructure:"detect_renames"`
	LogUnchanged  bool          `mapstructure:"log_unchanged"`
}

// BackupConfig holds backup scheduling and retention configuration.
type BackupConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Root              string        `mapstructure:"root"`
	Interval          time.Duration `mapstructure:"interval"`
	Keep              int           `mapstructure:"keep"`
	OnStart           bool          `mapstructure:"on_start"`
	RollbackOnFailure bool          `mapstructure:"rollback_on_failure"`
}

// EventsConfig holds durable event storage configuration.
// An empty Database disables the SQLite event log.
type EventsConfig struct {
	Database string `mapstructure:"database" yaml:"database" toml:"database"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"        yaml:"level"        toml:"level"`
	Format     string `mapstructure:"format"       yaml:"format"       toml:"format"`
	File       string `mapstructure:"file"         yaml:"file"         toml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"  yaml:"max_size_mb"  toml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"  yaml:"max_backups"  toml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days" toml:"max_age_days"`
	Compress   bool   `mapstructure:"compress"     yaml:"compress"     toml:"compress"`
}

// Load reads configuration from file and environment variables and
// validates it. It does not touch the filesystem beyond reading the file;
// call Prepare before starting components that write.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("fim")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "fim"))
		}
		v.AddConfigPath("/etc/fim")
	}

	v.SetEnvPrefix("FIM")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// FIM_TARGETS arrives as one string; split it like a path list.
	if len(cfg.Targets) == 1 && strings.ContainsRune(cfg.Targets[0], os.PathListSeparator) {
		cfg.Targets = filepath.SplitList(cfg.Targets[0])
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration used when no file or environment
// overrides are present. Targets and Backup.Root are left empty.
func Default() *Config {
	return &Config{
		Baseline: BaselineConfig{Path: DefaultBaselinePath},
		Monitor: MonitorConfig{
			PollInterval:  DefaultPollInterval,
			ExcludeDirs:   append([]string(nil), DefaultExcludeDirs...),
			SaveEvery:     DefaultSaveEvery,
			DetectRenames: true,
		},
		Backup: BackupConfig{
			Enabled:           true,
			Interval:          DefaultBackupInterval,
			Keep:              DefaultBackupKeep,
			OnStart:           true,
			RollbackOnFailure: true,
		},
		Events: EventsConfig{Database: DefaultEventsDB},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			File:       DefaultLogFile,
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("targets", []string{})
	v.SetDefault("baseline.path", d.Baseline.Path)

	v.SetDefault("monitor.poll_interval", d.Monitor.PollInterval.String())
	v.SetDefault("monitor.exclude_dirs", d.Monitor.ExcludeDirs)
	v.SetDefault("monitor.save_every", d.Monitor.SaveEvery)
	v.SetDefault("monitor.detect_renames", d.Monitor.DetectRenames)
	v.SetDefault("monitor.log_unchanged", d.Monitor.LogUnchanged)

	v.SetDefault("backup.enabled", d.Backup.Enabled)
	v.SetDefault("backup.root", "")
	v.SetDefault("backup.interval", d.Backup.Interval.String())
	v.SetDefault("backup.keep", d.Backup.Keep)
	v.SetDefault("backup.on_start", d.Backup.OnStart)
	v.SetDefault("backup.rollback_on_failure", d.Backup.RollbackOnFailure)

	v.SetDefault("events.database", d.Events.Database)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", d.Logging.Compress)
}

// Validate checks the configuration and normalizes target and backup paths
// to absolute form.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTargets
	}

	names := make(map[string]string, len(c.Targets))
	resolved := make([]string, 0, len(c.Targets))
	for i, t := range c.Targets {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("%w: empty target at position %d", ErrNoTargets, i)
		}
		abs, err := filepath.Abs(t)
		if err != nil {
			return fmt.Errorf("failed to resolve target %s: %w", t, err)
		}
		name := filepath.Base(abs)
		if prev, dup := names[name]; dup {
			return fmt.Errorf("%w: %s and %s are both named %q", ErrDuplicateTargetName, prev, abs, name)
		}
		names[name] = abs
		c.Targets[i] = abs

		r, err := walk.Resolve(abs)
		if err != nil {
			return fmt.Errorf("failed to resolve target %s: %w", t, err)
		}
		resolved = append(resolved, r)
	}

	if c.Monitor.PollInterval <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidPollInterval, c.Monitor.PollInterval)
	}
	if c.Monitor.SaveEvery <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSaveEvery, c.Monitor.SaveEvery)
	}

	// Files the monitor writes itself would otherwise show up as changes
	// on every poll.
	for _, state := range []string{c.Baseline.Path, c.Events.Database, c.Logging.File} {
		if state == "" {
			continue
		}
		if t, inside := insideAny(state, resolved); inside {
			return fmt.Errorf("%w: %s is inside %s", ErrStateInsideTarget, state, t)
		}
	}

	if c.Backup.Enabled {
		if c.Backup.Root == "" {
			return ErrMissingBackupRoot
		}
		root, err := filepath.Abs(c.Backup.Root)
		if err != nil {
			return fmt.Errorf("failed to resolve backup root %s: %w", c.Backup.Root, err)
		}
		c.Backup.Root = root
		if t, inside := insideAny(root, resolved); inside {
			return fmt.Errorf("%w: %s is inside %s", ErrBackupInsideTarget, root, t)
		}
		if c.Backup.Interval <= 0 {
			return fmt.Errorf("%w: %v", ErrInvalidBackupInterval, c.Backup.Interval)
		}
		if c.Backup.Keep < 1 {
			return fmt.Errorf("%w: %d", ErrInvalidKeep, c.Backup.Keep)
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}

	return nil
}

// insideAny reports the first of targets that contains path once symlinks
// are resolved. targets must already be resolved.
func insideAny(path string, targets []string) (string, bool) {
	r, err := walk.Resolve(path)
	if err != nil {
		return "", false
	}
	for _, t := range targets {
		if walk.Under(r, t) {
			return t, true
		}
	}
	return "", false
}

// Prepare creates the backup root when backups are enabled and verifies
// that it accepts new entries.
func (c *Config) Prepare() error {
	if !c.Backup.Enabled {
		return nil
	}
	if err := os.MkdirAll(c.Backup.Root, 0o755); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBackupRootNotWritable, c.Backup.Root, err)
	}
	probe, err := os.CreateTemp(c.Backup.Root, ".fim-probe-*")
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBackupRootNotWritable, c.Backup.Root, err)
	}
	name := probe.Name()
	_ = probe.Close()
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("%w: failed to remove probe %s: %w", ErrBackupRootNotWritable, name, err)
	}
	return nil
}
