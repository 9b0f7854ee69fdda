// Package reader provides the content-reader collaborator used by the
// baseline and the change detector.
//
// A Read either returns the full byte content of a file or one of the
// sentinel errors below. Callers treat ErrLocked and ErrUnstable as "skip the
// file for this cycle", ErrNotFound as a race with a concurrent delete, and
// every other error as loggable-and-skip.
package reader

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

var (
	// ErrLocked is returned when another process holds the file exclusively.
	ErrLocked = errors.New("file is locked by another process")
	// ErrNotFound is returned when the file vanished before it could be read.
	ErrNotFound = errors.New("file not found")
	// ErrUnstable is returned when the file changed size or mtime while it was
	// being read, so the content may be a partial write.
	ErrUnstable = errors.New("file changed while being read")
)

// Reader returns the full content of a file.
type Reader interface {
	Read(path string) ([]byte, error)
}

// Skippable reports whether err means "try again next cycle" rather than a
// real I/O failure.
func Skippable(err error) bool {
	return errors.Is(err, ErrLocked) || errors.Is(err, ErrUnstable)
}

// OS reads files from the local filesystem.
type OS struct{}

// Read implements Reader.
func (OS) Read(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, classifyOpenErr(path, err)
	}
	defer f.Close()

	unlock, err := probeLock(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	defer unlock()

	before, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	after, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if before.Size() != after.Size() || !before.ModTime().Equal(after.ModTime()) || int64(len(data)) != after.Size() {
		return nil, fmt.Errorf("%s: %w", path, ErrUnstable)
	}

	return data, nil
}

func classifyOpenErr(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	case isLockErr(err):
		return fmt.Errorf("%s: %w", path, ErrLocked)
	default:
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
}
