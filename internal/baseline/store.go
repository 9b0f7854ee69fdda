// Package baseline owns the persisted ledger of file fingerprints that the
// change detector compares each scan against.
//
// Ledger format (UTF-8, one record per line):
//
//	# fim-ledger v2
//	<path>|<fingerprint hex>|<event id>
//
// Paths are escaped so that "|", "%", CR and LF cannot break a line. Ledgers
// written by the legacy tool carry no header and no escaping; they are read
// as-is.
package baseline

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/Mschirtzinger/fim/internal/fingerprint"
	"github.com/Mschirtzinger/fim/internal/reader"
	"github.com/Mschirtzinger/fim/internal/walk"
)

// ErrCorruptLedger is returned by Load when a line cannot be parsed.
var ErrCorruptLedger = errors.New("corrupt baseline ledger")

const (
	header    = "# fim-ledger v2"
	delimiter = "|"
	numFields = 3
)

var (
	escaper   = strings.NewReplacer("%", "%25", "|", "%7C", "\n", "%0A", "\r", "%0D")
	unescaper = strings.NewReplacer("%25", "%", "%7C", "|", "%0A", "\n", "%0D", "\r")
)

// Record is the last observed state of one tracked path.
type Record struct {
	Path        string
	Fingerprint fingerprint.Digest
	EventID     string
}

// Store loads and saves the ledger file.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore creates a store backed by the ledger at path.
// If logger is nil, slog.Default() is used.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger.With("component", "baseline")}
}

// Path returns the ledger location.
func (s *Store) Path() string {
	return s.path
}

// Load parses the ledger. A missing ledger yields an empty map.
//
// Lines with fewer than three fields are skipped with a warning (a crash
// mid-save can leave a truncated last line). Lines with more fields fail the
// whole load with ErrCorruptLedger.
func (s *Store) Load() (map[string]Record, error) {
	// #nosec G304 - ledger path comes from configuration
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Info("no baseline ledger found, starting empty", "path", s.path)
			return make(map[string]Record), nil
		}
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	records, err := s.parse(f)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("baseline loaded", "path", s.path, "records", len(records))
	return records, nil
}

func (s *Store) parse(r io.Reader) (map[string]Record, error) {
	records := make(map[string]Record)
	escaped := false

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if lineNo == 1 && line == header {
			escaped = true
			continue
		}

		parts := strings.Split(line, delimiter)
		if len(parts) > numFields {
			return nil, fmt.Errorf("%w: line %d has %d fields", ErrCorruptLedger, lineNo, len(parts))
		}
		if len(parts) < numFields || parts[0] == "" {
			s.logger.Warn("skipping incomplete ledger line", "line", lineNo, "fields", len(parts))
			continue
		}

		path := parts[0]
		if escaped {
			path = unescaper.Replace(path)
		}
		digest, err := fingerprint.Parse(parts[1])
		if err != nil {
			// Kept as-is so the file reports as modified on the next scan.
			s.logger.Warn("ledger line has malformed fingerprint", "line", lineNo, "path", path, "error", err)
			digest = fingerprint.Digest(parts[1])
		}
		records[path] = Record{
			Path:        path,
			Fingerprint: digest,
			EventID:     parts[2],
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan ledger: %w", err)
	}
	return records, nil
}

// Save atomically replaces the ledger with records. Concurrent readers see
// either the previous complete file or the new one.
func (s *Store) Save(records map[string]Record) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary ledger: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmpPath != "" {
			_ = os.Remove(tmpPath)
		}
	}()

	w := bufio.NewWriter(tmp)
	if err := encode(w, records); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to flush ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary ledger: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace ledger: %w", err)
	}
	tmpPath = ""

	s.logger.Debug("baseline saved", "path", s.path, "records", len(records))
	return nil
}

func encode(w io.Writer, records map[string]Record) error {
	paths := make([]string, 0, len(records))
	for p := range records {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	if _, err := fmt.Fprintln(w, header); err != nil {
		return err
	}
	for _, p := range paths {
		rec := records[p]
		if _, err := fmt.Fprintf(w, "%s|%s|%s\n", escaper.Replace(p), rec.Fingerprint, rec.EventID); err != nil {
			return err
		}
	}
	return nil
}

// RebuildOptions controls a full rebuild.
type RebuildOptions struct {
	ExcludeDirs []string
	Reader      reader.Reader
	// NewID generates event ids. Defaults to random UUIDs.
	NewID func() string
}

// Rebuild discards the existing ledger and replaces it with a fresh record,
// carrying a new event id, for every file currently under targets.
//
// Event ids are regenerated even for unchanged content, so an id does not
// mark when a path was first seen.
func (s *Store) Rebuild(targets []string, opts RebuildOptions) (map[string]Record, error) {
	if opts.Reader == nil {
		opts.Reader = reader.OS{}
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	records := make(map[string]Record)
	walkOpts := walk.Options{
		ExcludeDirs: opts.ExcludeDirs,
		OnError: func(path string, err error) {
			s.logger.Warn("skipping unreadable entry", "path", path, "error", err)
		},
	}

	for _, target := range targets {
		err := walk.Walk(target, walkOpts, func(path string) error {
			data, err := opts.Reader.Read(path)
			if err != nil {
				if errors.Is(err, reader.ErrNotFound) {
					return nil
				}
				s.logger.Warn("skipping file during rebuild", "path", path, "error", err)
				return nil
			}
			records[path] = Record{
				Path:        path,
				Fingerprint: fingerprint.Sum(data),
				EventID:     opts.NewID(),
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", target, err)
		}
	}

	if err := s.Save(records); err != nil {
		return nil, err
	}
	s.logger.Info("baseline rebuilt", "path", s.path, "records", len(records), "targets", len(targets))
	return records, nil
}
