package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mschirtzinger/fim/internal/classify"
)

func TestKindCodes(t *testing.T) {
	tests := []struct {
		kind Kind
		name string
		code int
	}{
		{KindUnchanged, "unchanged", 100},
		{KindNew, "new", 101},
		{KindDeleted, "deleted", 102},
		{KindModified, "modified", 103},
		{KindRenamed, "renamed", 104},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.kind.String())
			assert.Equal(t, tt.code, tt.kind.Code())
			parsed, err := ParseKind(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, parsed)
		})
	}
	_, err := ParseKind("exploded")
	assert.Error(t, err)
}

func TestAction(t *testing.T) {
	tests := []struct {
		name string
		ev   ChangeEvent
		want string
	}{
		{"new spreadsheet", ChangeEvent{Kind: KindNew, Category: classify.Spreadsheet}, "New Excel file detected."},
		{"modified image", ChangeEvent{Kind: KindModified, Category: classify.Image}, "Image changed."},
		{"deleted other", ChangeEvent{Kind: KindDeleted, Category: classify.Other}, "File has been deleted."},
		{"renamed doc", ChangeEvent{Kind: KindRenamed, Category: classify.Document, PreviousPath: "/a/old.docx"}, "Word document has been renamed from /a/old.docx."},
		{"unchanged pdf", ChangeEvent{Kind: KindUnchanged, Category: classify.PDF}, "No change in PDF document."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ev.Action())
		})
	}
}

func TestString(t *testing.T) {
	ev := ChangeEvent{Kind: KindNew, Category: classify.Text, Path: "/data/a.txt"}
	assert.Equal(t, "101 File at path: /data/a.txt, Action: New text file detected.", ev.String())
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := sink.Record(context.Background(), ChangeEvent{
		Kind:     KindModified,
		Category: classify.PDF,
		Path:     "/data/r.pdf",
		EventID:  "abc",
	})
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, float64(103), rec["code"])
	assert.Equal(t, "modified", rec["kind"])
	assert.Equal(t, "pdf", rec["category"])
	assert.Equal(t, "/data/r.pdf", rec["path"])
	assert.Equal(t, "abc", rec["event_id"])
	assert.Equal(t, "103 File at path: /data/r.pdf, Action: PDF document changed.", rec["msg"])
	assert.NotContains(t, rec, "previous_path")
}

type failingSink struct{ err error }

func (f failingSink) Record(context.Context, ChangeEvent) error { return f.err }

func TestMultiRecordsEverywhere(t *testing.T) {
	var a, b Recorder
	boom := errors.New("boom")
	m := Multi{&a, failingSink{boom}, &b}

	err := m.Record(context.Background(), ChangeEvent{Kind: KindNew, Path: "/x"})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)

	a.Reset()
	assert.Empty(t, a.Events())
}
