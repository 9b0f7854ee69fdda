// Package walk provides the recursive, filterable directory walker shared by
// baseline rebuilds and change-detection scans.
package walk

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Options configures a walk.
type Options struct {
	// ExcludeDirs holds directory base names that are pruned, with their
	// whole subtree, wherever they appear below the root.
	ExcludeDirs []string

	// OnError is called for entries that could not be read. Unreadable
	// directories are skipped; the walk continues.
	OnError func(path string, err error)
}

// IsExcludedName reports whether a file name is an editor lock or temporary
// file (names beginning with "$" or "~$").
func IsExcludedName(name string) bool {
	return strings.HasPrefix(name, "$") || strings.HasPrefix(name, "~$")
}

type walkState struct {
	root    string
	exclude map[string]struct{}
	onError func(string, error)
	fn      func(path string) error
}

// Walk visits every regular file below root that is not excluded, calling
// fn with its absolute path. A symlinked root is resolved first and paths
// are reported under the resolved directory; symlinks below the root are
// not followed.
//
// An error is returned only if root itself cannot be walked or fn fails.
func Walk(root string, opts Options, fn func(path string) error) error {
	abs, err := Resolve(root)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("failed to stat target %s: %w", abs, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("target %s is not a directory", abs)
	}

	ws := &walkState{
		root:    abs,
		exclude: make(map[string]struct{}, len(opts.ExcludeDirs)),
		onError: opts.OnError,
		fn:      fn,
	}
	for _, d := range opts.ExcludeDirs {
		ws.exclude[d] = struct{}{}
	}
	if ws.onError == nil {
		ws.onError = func(string, error) {}
	}

	return filepath.WalkDir(abs, ws.visit)
}

func (ws *walkState) visit(path string, d fs.DirEntry, err error) error {
	if err != nil {
		if path == ws.root {
			return err
		}
		ws.onError(path, err)
		if d != nil && d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	}
	if d.IsDir() {
		if path == ws.root {
			return nil
		}
		if _, skip := ws.exclude[d.Name()]; skip {
			return filepath.SkipDir
		}
		return nil
	}
	if !d.Type().IsRegular() || IsExcludedName(d.Name()) {
		return nil
	}
	return ws.fn(path)
}

// Resolve returns path made absolute with every symlink in its existing
// prefix evaluated. Components that do not exist yet are appended
// unchanged, so paths of files about to be created resolve too.
func Resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	dir, rest := abs, ""
	for {
		evaluated, err := filepath.EvalSymlinks(dir)
		if err == nil {
			return filepath.Join(evaluated, rest), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return abs, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
	}
}

// Under reports whether path lies inside dir (or is dir itself).
func Under(path, dir string) bool {
	if path == dir {
		return true
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
