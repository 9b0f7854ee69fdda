package backup

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Archive is one backup directory under the backup root.
type Archive struct {
	Name    string
	Path    string
	Created time.Time
}

// ListArchives returns the directories directly under root, oldest first.
//
// An archive's creation time is the timestamp encoded in its name. Entries
// whose name does not parse fall back to their modification time.
func ListArchives(root string) ([]Archive, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to list backup root %s: %w", root, err)
	}

	var archives []Archive
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		created, err := time.ParseInLocation(ArchiveLayout, e.Name(), time.Local)
		if err != nil {
			info, err := e.Info()
			if err != nil {
				continue
			}
			created = info.ModTime()
		}
		archives = append(archives, Archive{
			Name:    e.Name(),
			Path:    filepath.Join(root, e.Name()),
			Created: created,
		})
	}

	sort.Slice(archives, func(i, j int) bool {
		if archives[i].Created.Equal(archives[j].Created) {
			return archives[i].Name < archives[j].Name
		}
		return archives[i].Created.Before(archives[j].Created)
	})
	return archives, nil
}

// Prune deletes the oldest archives under root until at most keep remain.
// Deletion failures are logged and reported; the archive stays in place and
// is retried on the next call. It returns the paths actually removed.
func Prune(root string, keep int, logger *slog.Logger) ([]string, error) {
	if keep < 1 {
		return nil, fmt.Errorf("keep count must be at least 1 (got %d)", keep)
	}
	if logger == nil {
		logger = slog.Default()
	}

	archives, err := ListArchives(root)
	if err != nil {
		return nil, err
	}
	if len(archives) <= keep {
		return nil, nil
	}

	var (
		removed []string
		errs    []error
	)
	for _, a := range archives[:len(archives)-keep] {
		if err := os.RemoveAll(a.Path); err != nil {
			logger.Error("failed to delete old backup", "archive", a.Path, "error", err)
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrDeleteFailure, a.Path, err))
			continue
		}
		logger.Info("deleted old backup", "archive", a.Path)
		removed = append(removed, a.Path)
	}
	return removed, errors.Join(errs...)
}
