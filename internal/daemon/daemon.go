package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Mschirtzinger/fim/internal/backup"
	"github.com/Mschirtzinger/fim/internal/baseline"
	"github.com/Mschirtzinger/fim/internal/config"
	"github.com/Mschirtzinger/fim/internal/detector"
	"github.com/Mschirtzinger/fim/internal/events"
)

// Config holds configuration for the daemon.
type Config struct {
	// Logger for daemon activity.
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Logger: slog.Default(),
	}
}

// Daemon orchestrates change detection and scheduled backups.
type Daemon struct {
	detector  *detector.Detector
	scheduler *backup.Scheduler
	config    *Config
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stopOnce sync.Once
	errMu    sync.Mutex
	errs     []error
}

// New creates a daemon. scheduler may be nil when backups are disabled.
func New(det *detector.Detector, scheduler *backup.Scheduler) (*Daemon, error) {
	return NewWithConfig(det, scheduler, DefaultConfig())
}

// NewWithConfig creates a daemon with custom configuration.
func NewWithConfig(det *detector.Detector, scheduler *backup.Scheduler, cfg *Config) (*Daemon, error) {
	if det == nil {
		return nil, fmt.Errorf("detector cannot be nil")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		detector:  det,
		scheduler: scheduler,
		config:    cfg,
		logger:    cfg.Logger.With("component", "daemon"),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// FromConfig wires a daemon from loaded configuration. Change events go to
// sink.
func FromConfig(cfg *config.Config, sink events.Sink, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	store := baseline.NewStore(cfg.Baseline.Path, logger)

	detCfg := detector.DefaultConfig()
	detCfg.Targets = cfg.Targets
	detCfg.PollInterval = cfg.Monitor.PollInterval
	detCfg.ExcludeDirs = cfg.Monitor.ExcludeDirs
	detCfg.SaveEvery = cfg.Monitor.SaveEvery
	detCfg.DetectRenames = cfg.Monitor.DetectRenames
	detCfg.LogUnchanged = cfg.Monitor.LogUnchanged
	detCfg.Logger = logger

	det, err := detector.New(store, sink, detCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create detector: %w", err)
	}

	var scheduler *backup.Scheduler
	if cfg.Backup.Enabled {
		bCfg := backup.DefaultConfig()
		bCfg.Targets = cfg.Targets
		bCfg.Root = cfg.Backup.Root
		bCfg.Interval = cfg.Backup.Interval
		bCfg.Keep = cfg.Backup.Keep
		bCfg.OnStart = cfg.Backup.OnStart
		bCfg.RollbackOnFailure = cfg.Backup.RollbackOnFailure
		bCfg.Logger = logger

		scheduler, err = backup.NewScheduler(bCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create backup scheduler: %w", err)
		}
	}

	return NewWithConfig(det, scheduler, &Config{Logger: logger})
}

// Start loads the baseline and runs the detector and the backup scheduler
// until ctx is cancelled or Stop is called.
//
// An unusable baseline is not fatal: monitoring continues from an empty
// baseline.
//
// Example:
//
//	d, err := daemon.New(det, scheduler)
//	if err != nil {
//	    return err
//	}
//	go func() {
//	    <-time.After(time.Hour)
//	    d.Stop()
//	}()
//	if err := d.Start(ctx); err != nil {
//	    log.Printf("daemon exited: %v", err)
//	}
func (d *Daemon) Start(ctx context.Context) error {
	d.logger.Info("starting daemon", "backups", d.scheduler != nil)

	// Load the baseline before the first poll
	if err := d.detector.Load(); err != nil {
		d.logger.Warn("continuing with empty baseline", "error", err)
	}

	// Start the polling loop
	d.wg.Add(1)
	go d.run("detector", d.detector.Run)

	// Start the backup loop when backups are enabled
	if d.scheduler != nil {
		d.wg.Add(1)
		go d.run("backup", d.scheduler.Run)
	}

	// Wait for the caller's shutdown signal or for Stop
	select {
	case <-ctx.Done():
		d.logger.Info("shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		d.wg.Wait()
		return d.err()
	}
}

func (d *Daemon) run(name string, loop func(context.Context) error) {
	defer d.wg.Done()

	if err := loop(d.ctx); err != nil {
		d.errMu.Lock()
		d.errs = append(d.errs, fmt.Errorf("%s: %w", name, err))
		d.errMu.Unlock()
	}
}

// Stop cancels both loops and waits for them to finish. The detector saves
// the baseline on its way out. Stop is safe to call more than once.
func (d *Daemon) Stop() error {
	d.stopOnce.Do(func() {
		d.logger.Info("stopping daemon")
		d.cancel()
		d.wg.Wait()
		d.logger.Info("daemon stopped")
	})
	return d.err()
}

func (d *Daemon) err() error {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	return errors.Join(d.errs...)
}
