package baseline

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mschirtzinger/fim/internal/fingerprint"
	"github.com/Mschirtzinger/fim/internal/reader"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "baseline.txt"), quietLogger())
}

func sampleRecords() map[string]Record {
	recs := map[string]Record{}
	for i, p := range []string{
		"/data/files/a.txt",
		"/data/files/sub/b.xlsx",
		"/data/files/weird|name.txt",
		"/data/files/100%done.txt",
		"/data/files/line\nbreak.txt",
	} {
		recs[p] = Record{
			Path:        p,
			Fingerprint: fingerprint.Sum([]byte(p)),
			EventID:     fmt.Sprintf("id-%d", i),
		}
	}
	return recs
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	want := sampleRecords()

	require.NoError(t, store.Save(want))
	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// save(load(save(R))) reproduces R byte for byte.
	first, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	require.NoError(t, store.Save(got))
	second, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSaveEmpty(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(map[string]Record{}))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(sampleRecords()))
	require.NoError(t, store.Save(sampleRecords()))

	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "baseline.txt", entries[0].Name())
}

func TestLoadMissingLedger(t *testing.T) {
	got, err := newTestStore(t).Load()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadLegacyLedger(t *testing.T) {
	store := newTestStore(t)
	legacy := strings.Join([]string{
		`C:\Users\vmadmin\Desktop\files\a.txt|` + strings.Repeat("ab", 64) + `|11111111-1111-1111-1111-111111111111`,
		`C:\Users\vmadmin\Desktop\files\100%.txt|` + strings.Repeat("cd", 32) + `|22222222-2222-2222-2222-222222222222`,
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(store.Path(), []byte(legacy), 0o644))

	got, err := store.Load()
	require.NoError(t, err)
	require.Len(t, got, 2)
	rec := got[`C:\Users\vmadmin\Desktop\files\100%.txt`]
	assert.Equal(t, "22222222-2222-2222-2222-222222222222", rec.EventID)
	assert.Equal(t, fingerprint.Digest(strings.Repeat("cd", 32)), rec.Fingerprint)
}

func TestLoadSkipsShortLines(t *testing.T) {
	var logs bytes.Buffer
	store := NewStore(filepath.Join(t.TempDir(), "baseline.txt"), slog.New(slog.NewTextHandler(&logs, nil)))
	content := header + "\n/a.txt|abc|id1\n/b.txt|abc\n/c.txt|def|id3\n"
	require.NoError(t, os.WriteFile(store.Path(), []byte(content), 0o644))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Contains(t, got, "/a.txt")
	assert.Contains(t, got, "/c.txt")
	assert.Contains(t, logs.String(), "skipping incomplete ledger line")
}

func TestLoadKeepsMalformedFingerprint(t *testing.T) {
	var logs bytes.Buffer
	store := NewStore(filepath.Join(t.TempDir(), "baseline.txt"), slog.New(slog.NewTextHandler(&logs, nil)))
	good := fingerprint.Sum([]byte("hello"))
	content := header + "\n/a.txt|" + good.String() + "|id1\n/b.txt|not-hex|id2\n"
	require.NoError(t, os.WriteFile(store.Path(), []byte(content), 0o644))

	got, err := store.Load()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, good, got["/a.txt"].Fingerprint)
	assert.Equal(t, fingerprint.Digest("not-hex"), got["/b.txt"].Fingerprint)
	assert.NotEqual(t, fingerprint.Sum([]byte("anything")), got["/b.txt"].Fingerprint)

	assert.Contains(t, logs.String(), "malformed fingerprint")
	assert.Contains(t, logs.String(), "/b.txt")
	assert.NotContains(t, logs.String(), "/a.txt")
}

func TestLoadRejectsExtraFields(t *testing.T) {
	store := newTestStore(t)
	content := header + "\n/a.txt|abc|id1\n/b|c.txt|abc|id2\n"
	require.NoError(t, os.WriteFile(store.Path(), []byte(content), 0o644))

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrCorruptLedger)
}

func TestLoadDuplicatePathKeepsLast(t *testing.T) {
	store := newTestStore(t)
	content := header + "\n/a.txt|abc|id1\n/a.txt|def|id2\n"
	require.NoError(t, os.WriteFile(store.Path(), []byte(content), 0o644))

	got, err := store.Load()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "id2", got["/a.txt"].EventID)
}

type lockedReader struct {
	locked map[string]bool
}

func (r lockedReader) Read(path string) ([]byte, error) {
	if r.locked[filepath.Base(path)] {
		return nil, fmt.Errorf("%s: %w", path, reader.ErrLocked)
	}
	return reader.OS{}.Read(path)
}

func TestRebuild(t *testing.T) {
	target := t.TempDir()
	files := map[string]string{
		"a.txt":             "hello",
		"sub/b.docx":        "doc",
		"sub/~$b.docx":      "owner lock",
		"$tmp":              "tmp",
		"image files/c.png": "png",
		"busy.xlsx":         "cells",
	}
	for rel, content := range files {
		p := filepath.Join(target, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}

	store := newTestStore(t)
	require.NoError(t, store.Save(map[string]Record{"/stale": {Path: "/stale", Fingerprint: "x", EventID: "y"}}))

	n := 0
	got, err := store.Rebuild([]string{target}, RebuildOptions{
		ExcludeDirs: []string{"image files"},
		Reader:      lockedReader{locked: map[string]bool{"busy.xlsx": true}},
		NewID: func() string {
			n++
			return fmt.Sprintf("ev-%d", n)
		},
	})
	require.NoError(t, err)

	assert.Len(t, got, 2)
	a := got[filepath.Join(target, "a.txt")]
	assert.Equal(t, fingerprint.Sum([]byte("hello")), a.Fingerprint)
	assert.NotEmpty(t, a.EventID)
	assert.Contains(t, got, filepath.Join(target, "sub", "b.docx"))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, got, loaded)
	assert.NotContains(t, loaded, "/stale")
}

func TestRebuildAssignsFreshIDs(t *testing.T) {
	target := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(target, "a.txt"), []byte("same"), 0o644))
	store := newTestStore(t)

	first, err := store.Rebuild([]string{target}, RebuildOptions{})
	require.NoError(t, err)
	second, err := store.Rebuild([]string{target}, RebuildOptions{})
	require.NoError(t, err)

	p := filepath.Join(target, "a.txt")
	assert.Equal(t, first[p].Fingerprint, second[p].Fingerprint)
	assert.NotEqual(t, first[p].EventID, second[p].EventID)
}

func TestRebuildMissingTarget(t *testing.T) {
	_, err := newTestStore(t).Rebuild([]string{filepath.Join(t.TempDir(), "nope")}, RebuildOptions{})
	assert.Error(t, err)
}
