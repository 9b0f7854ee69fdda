// Package detector implements polling-based change detection over a set of
// directory trees.
//
// Every poll interval the detector walks each target, fingerprints every
// regular file and compares it with the baseline:
//
//  1. Paths missing from the baseline are reported as new.
//  2. Paths whose fingerprint differs are reported as modified.
//  3. Baseline paths not seen during the walk are reported as deleted.
//  4. When a deleted path and a new path in the same cycle share a
//     fingerprint that no other deleted or new path has, the pair is
//     reported as a single rename. This is a best-effort heuristic.
//
// Poll-based detection cannot see a file that is deleted and recreated with
// identical content between two polls.
package detector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Mschirtzinger/fim/internal/baseline"
	"github.com/Mschirtzinger/fim/internal/classify"
	"github.com/Mschirtzinger/fim/internal/events"
	"github.com/Mschirtzinger/fim/internal/fingerprint"
	"github.com/Mschirtzinger/fim/internal/reader"
	"github.com/Mschirtzinger/fim/internal/walk"
)

// Config holds configuration for the detector.
type Config struct {
	// Targets are the directory trees to watch. Symlinked targets are
	// resolved once, in New.
	Targets []string

	// PollInterval is the time between scan cycles.
	PollInterval time.Duration

	// ExcludeDirs are directory names pruned from every walk.
	ExcludeDirs []string

	// SaveEvery persists the baseline after every N cycles that changed it.
	// The baseline is always saved on shutdown.
	SaveEvery int

	// DetectRenames enables same-cycle rename correlation.
	DetectRenames bool

	// LogUnchanged emits informational unchanged events (code 100).
	LogUnchanged bool

	// Reader supplies file content. Defaults to reader.OS.
	Reader reader.Reader

	// NewID generates event ids. Defaults to random UUIDs.
	NewID func() string

	// Now is the clock used to stamp events.
	Now func() time.Time

	// Logger for detector activity.
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults. Targets must still be set.
func DefaultConfig() *Config {
	return &Config{
		PollInterval:  5 * time.Second,
		ExcludeDirs:   []string{"image files"},
		SaveEvery:     1,
		DetectRenames: true,
		Reader:        reader.OS{},
		NewID:         uuid.NewString,
		Now:           time.Now,
		Logger:        slog.Default(),
	}
}

// Detector owns the in-memory baseline and is its only writer.
type Detector struct {
	cfg     *Config
	store   *baseline.Store
	sink    events.Sink
	logger  *slog.Logger
	targets []string

	records map[string]baseline.Record
	dirty   bool
	cycles  int
}

// New creates a detector. Call Load before the first Scan.
func New(store *baseline.Store, sink events.Sink, cfg *Config) (*Detector, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink cannot be nil")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("at least one target directory is required")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive (got %v)", cfg.PollInterval)
	}

	defaults := DefaultConfig()
	if cfg.SaveEvery <= 0 {
		cfg.SaveEvery = defaults.SaveEvery
	}
	if cfg.Reader == nil {
		cfg.Reader = defaults.Reader
	}
	if cfg.NewID == nil {
		cfg.NewID = defaults.NewID
	}
	if cfg.Now == nil {
		cfg.Now = defaults.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = defaults.Logger
	}

	targets := make([]string, 0, len(cfg.Targets))
	for _, t := range cfg.Targets {
		abs, err := walk.Resolve(t)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve target %s: %w", t, err)
		}
		targets = append(targets, abs)
	}

	return &Detector{
		cfg:     cfg,
		store:   store,
		sink:    sink,
		logger:  cfg.Logger.With("component", "detector"),
		targets: targets,
		records: make(map[string]baseline.Record),
	}, nil
}

// Load reads the persisted baseline. If the ledger is unusable the detector
// falls back to an empty baseline, logs loudly, and returns the error.
func (d *Detector) Load() error {
	records, err := d.store.Load()
	if err != nil {
		d.logger.Error("baseline unusable, starting from an empty baseline; every file will be reported as new",
			"path", d.store.Path(), "error", err)
		d.records = make(map[string]baseline.Record)
		return err
	}
	d.records = records
	d.logger.Info("baseline loaded", "records", len(records))
	return nil
}

// Records returns a copy of the current baseline.
func (d *Detector) Records() map[string]baseline.Record {
	out := make(map[string]baseline.Record, len(d.records))
	for k, v := range d.records {
		out[k] = v
	}
	return out
}

// Save persists the baseline.
func (d *Detector) Save() error {
	if err := d.store.Save(d.records); err != nil {
		return fmt.Errorf("failed to save baseline: %w", err)
	}
	d.dirty = false
	return nil
}

// Run scans every PollInterval until ctx is cancelled, then saves the
// baseline once more before returning.
func (d *Detector) Run(ctx context.Context) error {
	d.logger.Info("monitoring started", "targets", d.targets, "interval", d.cfg.PollInterval)

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("monitoring stopping, saving baseline")
			if err := d.Save(); err != nil {
				d.logger.Error("final baseline save failed", "error", err)
				return err
			}
			return nil

		case <-ticker.C:
			d.cycle(ctx)
		}
	}
}

func (d *Detector) cycle(ctx context.Context) {
	if _, err := d.Scan(ctx); err != nil {
		d.logger.Warn("scan cycle failed", "error", err)
		return
	}
	d.cycles++
	if d.dirty && d.cycles%d.cfg.SaveEvery == 0 {
		if err := d.Save(); err != nil {
			d.logger.Error("baseline save failed, will retry next cycle", "error", err)
		}
	}
}

// scanState collects one cycle's observations.
type scanState struct {
	seen        map[string]struct{}
	unavailable []string
	discovered  []events.ChangeEvent
}

// Scan runs one detection cycle, records the resulting events to the sink
// and returns them in emission order: new, modified and renamed events in
// walk order, then deletions.
func (d *Detector) Scan(ctx context.Context) ([]events.ChangeEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := d.cfg.Now()
	st := &scanState{seen: make(map[string]struct{})}

	for _, target := range d.targets {
		opts := walk.Options{
			ExcludeDirs: d.cfg.ExcludeDirs,
			OnError: func(path string, err error) {
				d.logger.Warn("unreadable entry, keeping its baseline records", "path", path, "error", err)
				st.unavailable = append(st.unavailable, path)
			},
		}
		err := walk.Walk(target, opts, func(path string) error {
			d.observe(st, path, now)
			return nil
		})
		if err != nil {
			d.logger.Warn("target unavailable this cycle, keeping its baseline records", "target", target, "error", err)
			st.unavailable = append(st.unavailable, target)
		}
	}

	deleted := d.deletionPass(st, now)

	changes := st.discovered
	if d.cfg.DetectRenames {
		changes, deleted = pairRenames(changes, deleted)
	}
	changes = append(changes, deleted...)

	for _, ev := range changes {
		if ev.Kind != events.KindUnchanged {
			d.dirty = true
		}
		if err := d.sink.Record(ctx, ev); err != nil {
			d.logger.Warn("failed to record event", "path", ev.Path, "kind", ev.Kind.String(), "error", err)
		}
	}
	return changes, nil
}

// observe fingerprints one discovered file and updates the baseline.
func (d *Detector) observe(st *scanState, path string, now time.Time) {
	st.seen[path] = struct{}{}

	data, err := d.cfg.Reader.Read(path)
	switch {
	case err == nil:
	case errors.Is(err, reader.ErrNotFound):
		// Deleted between listing and reading: treat as never discovered.
		delete(st.seen, path)
		return
	case reader.Skippable(err):
		d.logger.Debug("file busy, skipping this cycle", "path", path, "error", err)
		return
	default:
		d.logger.Warn("failed to read file, skipping this cycle", "path", path, "error", err)
		return
	}

	digest := fingerprint.Sum(data)
	ev := events.ChangeEvent{
		Path:        path,
		Category:    classify.Classify(path),
		Fingerprint: digest,
		DetectedAt:  now,
	}

	rec, tracked := d.records[path]
	switch {
	case !tracked:
		ev.Kind = events.KindNew
		ev.EventID = d.cfg.NewID()
	case rec.Fingerprint != digest:
		ev.Kind = events.KindModified
		ev.EventID = d.cfg.NewID()
	default:
		if d.cfg.LogUnchanged {
			ev.Kind = events.KindUnchanged
			st.discovered = append(st.discovered, ev)
		}
		return
	}

	d.records[path] = baseline.Record{Path: path, Fingerprint: digest, EventID: ev.EventID}
	st.discovered = append(st.discovered, ev)
}

// deletionPass removes baseline records that were not seen this cycle,
// except those under a directory that could not be read.
func (d *Detector) deletionPass(st *scanState, now time.Time) []events.ChangeEvent {
	var missing []string
	for path := range d.records {
		if _, ok := st.seen[path]; ok {
			continue
		}
		if !d.watched(path) || underAny(path, st.unavailable) {
			continue
		}
		missing = append(missing, path)
	}
	sort.Strings(missing)

	deleted := make([]events.ChangeEvent, 0, len(missing))
	for _, path := range missing {
		rec := d.records[path]
		deleted = append(deleted, events.ChangeEvent{
			Path:        path,
			Category:    classify.Classify(path),
			Kind:        events.KindDeleted,
			EventID:     d.cfg.NewID(),
			Fingerprint: rec.Fingerprint,
			DetectedAt:  now,
		})
		delete(d.records, path)
	}
	return deleted
}

// watched reports whether path belongs to a current target and is not
// inside an excluded directory. Records outside that scope are left alone so
// a configuration change cannot mass-delete them.
func (d *Detector) watched(path string) bool {
	for _, t := range d.targets {
		if !walk.Under(path, t) {
			continue
		}
		for dir := filepath.Dir(path); dir != t && walk.Under(dir, t); dir = filepath.Dir(dir) {
			for _, ex := range d.cfg.ExcludeDirs {
				if filepath.Base(dir) == ex {
					return false
				}
			}
		}
		return !walk.IsExcludedName(filepath.Base(path))
	}
	return false
}

func underAny(path string, dirs []string) bool {
	for _, dir := range dirs {
		if walk.Under(path, dir) {
			return true
		}
	}
	return false
}

// pairRenames folds a deleted event and a new event into one renamed event
// when their fingerprint is unique among this cycle's new and deleted paths.
func pairRenames(changes, deleted []events.ChangeEvent) ([]events.ChangeEvent, []events.ChangeEvent) {
	newByDigest := make(map[fingerprint.Digest][]int)
	for i, ev := range changes {
		if ev.Kind == events.KindNew {
			newByDigest[ev.Fingerprint] = append(newByDigest[ev.Fingerprint], i)
		}
	}
	delByDigest := make(map[fingerprint.Digest][]int)
	for i, ev := range deleted {
		delByDigest[ev.Fingerprint] = append(delByDigest[ev.Fingerprint], i)
	}

	paired := make(map[int]bool)
	for digest, dels := range delByDigest {
		news := newByDigest[digest]
		if len(dels) != 1 || len(news) != 1 {
			continue
		}
		ev := &changes[news[0]]
		ev.Kind = events.KindRenamed
		ev.PreviousPath = deleted[dels[0]].Path
		paired[dels[0]] = true
	}

	if len(paired) == 0 {
		return changes, deleted
	}
	remaining := make([]events.ChangeEvent, 0, len(deleted)-len(paired))
	for i, ev := range deleted {
		if !paired[i] {
			remaining = append(remaining, ev)
		}
	}
	return changes, remaining
}
