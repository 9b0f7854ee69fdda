// Package backup snapshots the watched trees into timestamped archive
// directories on a fixed interval and prunes old archives.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Mschirtzinger/fim/internal/walk"
)

// ArchiveLayout is the time layout used to name archive directories.
const ArchiveLayout = "2006-01-02_15-04-05"

var (
	// ErrCopyFailure wraps any error that aborted a backup cycle.
	ErrCopyFailure = errors.New("backup copy failed")
	// ErrDeleteFailure wraps any error that prevented pruning an archive.
	ErrDeleteFailure = errors.New("archive deletion failed")
)

// Config holds configuration for the scheduler.
type Config struct {
	// Targets are the directory trees to copy. Each is copied into a
	// subfolder named after its base name.
	Targets []string

	// Root is the directory that holds the archives.
	Root string

	// Interval is the time between backup cycles.
	Interval time.Duration

	// Keep is the number of most recent archives retained after each backup.
	Keep int

	// OnStart runs one cycle immediately when Run starts.
	OnStart bool

	// RollbackOnFailure removes a partially written archive when a copy fails.
	RollbackOnFailure bool

	// Now is the clock used to name archives.
	Now func() time.Time

	// Logger for backup activity.
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults. Targets and Root must be set.
func DefaultConfig() *Config {
	return &Config{
		Interval:          time.Minute,
		Keep:              2,
		OnStart:           true,
		RollbackOnFailure: true,
		Now:               time.Now,
		Logger:            slog.Default(),
	}
}

// Result describes one backup cycle.
type Result struct {
	Archive  string
	Skipped  bool
	Files    int
	Bytes    int64
	Pruned   []string
	Duration time.Duration
}

// Scheduler runs backup cycles. It is the only writer of archives.
type Scheduler struct {
	cfg     *Config
	logger  *slog.Logger
	root    string
	targets []string
}

// NewScheduler validates cfg and creates a scheduler.
func NewScheduler(cfg *Config) (*Scheduler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("at least one target directory is required")
	}
	if cfg.Root == "" {
		return nil, fmt.Errorf("backup root cannot be empty")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("backup interval must be positive (got %v)", cfg.Interval)
	}
	if cfg.Keep < 1 {
		return nil, fmt.Errorf("keep count must be at least 1 (got %d)", cfg.Keep)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve backup root %s: %w", cfg.Root, err)
	}
	realRoot, err := walk.Resolve(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve backup root %s: %w", cfg.Root, err)
	}

	targets := make([]string, 0, len(cfg.Targets))
	seen := make(map[string]string)
	for _, t := range cfg.Targets {
		abs, err := filepath.Abs(t)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve target %s: %w", t, err)
		}
		realTarget, err := walk.Resolve(abs)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve target %s: %w", t, err)
		}
		if walk.Under(root, abs) || walk.Under(realRoot, realTarget) {
			return nil, fmt.Errorf("backup root %s is inside target %s", root, abs)
		}
		name := filepath.Base(abs)
		if prev, dup := seen[name]; dup {
			return nil, fmt.Errorf("targets %s and %s would share archive folder %q", prev, abs, name)
		}
		seen[name] = abs
		targets = append(targets, abs)
	}

	return &Scheduler{
		cfg:     cfg,
		logger:  cfg.Logger.With("component", "backup"),
		root:    root,
		targets: targets,
	}, nil
}

// Run performs a backup cycle every Interval until ctx is cancelled.
// Failed cycles are logged; the loop always continues.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("backup scheduler started", "root", s.root, "interval", s.cfg.Interval, "keep", s.cfg.Keep)

	if s.cfg.OnStart {
		s.tick(ctx)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("backup scheduler stopped")
			return nil

		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("backup cycle abandoned", "error", err)
	}
}

// Root returns the absolute backup root.
func (s *Scheduler) Root() string {
	return s.root
}

// RunOnce performs one backup cycle: create a new archive named after the
// current time, copy every target into it, then prune old archives.
//
// If an archive with the same name already exists the cycle is skipped.
func (s *Scheduler) RunOnce(ctx context.Context) (Result, error) {
	start := time.Now()
	name := s.cfg.Now().Format(ArchiveLayout)
	archive := filepath.Join(s.root, name)
	res := Result{Archive: archive}

	if err := os.Mkdir(archive, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			s.logger.Debug("archive already exists for this tick, skipping", "archive", archive)
			res.Skipped = true
			return res, nil
		}
		return res, fmt.Errorf("%w: failed to create archive %s: %w", ErrCopyFailure, archive, err)
	}

	for _, target := range s.targets {
		// The archive folder keeps the configured name; the tree is read
		// through any symlink so its contents are copied, not the link.
		dest := filepath.Join(archive, filepath.Base(target))
		src, err := walk.Resolve(target)
		if err != nil {
			src = target
		}
		files, n, err := copyTree(ctx, src, dest)
		res.Files += files
		res.Bytes += n
		if err != nil {
			err = fmt.Errorf("%w: copying %s to %s: %w", ErrCopyFailure, target, dest, err)
			s.abandon(archive, err)
			return res, err
		}
	}

	res.Duration = time.Since(start)
	s.logger.Info("backup created",
		"archive", archive,
		"files", res.Files,
		"size", humanize.Bytes(uint64(res.Bytes)),
		"duration", res.Duration.Round(time.Millisecond))

	pruned, err := Prune(s.root, s.cfg.Keep, s.logger)
	res.Pruned = pruned
	if err != nil {
		s.logger.Warn("retention incomplete, will retry after the next backup", "error", err)
	}
	return res, nil
}

func (s *Scheduler) abandon(archive string, cause error) {
	if !s.cfg.RollbackOnFailure {
		s.logger.Warn("leaving partial archive in place", "archive", archive, "cause", cause)
		return
	}
	if err := os.RemoveAll(archive); err != nil {
		s.logger.Error("failed to roll back partial archive", "archive", archive, "error", err)
		return
	}
	s.logger.Info("rolled back partial archive", "archive", archive)
}
