// Package events defines change events and the sinks that record them.
package events

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/Mschirtzinger/fim/internal/classify"
	"github.com/Mschirtzinger/fim/internal/fingerprint"
)

// Kind is the classification of an observed change.
type Kind int

const (
	// KindUnchanged is informational: content matched the baseline.
	KindUnchanged Kind = iota
	// KindNew indicates a path not present in the baseline.
	KindNew
	// KindModified indicates the fingerprint differs from the baseline.
	KindModified
	// KindDeleted indicates a baseline path that was not seen during a scan.
	KindDeleted
	// KindRenamed indicates a deleted path and a new path with identical
	// content observed in the same scan.
	KindRenamed
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindUnchanged:
		return "unchanged"
	case KindNew:
		return "new"
	case KindModified:
		return "modified"
	case KindDeleted:
		return "deleted"
	case KindRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Code returns the numeric log code for the kind.
func (k Kind) Code() int {
	switch k {
	case KindNew:
		return 101
	case KindDeleted:
		return 102
	case KindModified:
		return 103
	case KindRenamed:
		return 104
	default:
		return 100
	}
}

// ParseKind converts a kind name back into a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{KindUnchanged, KindNew, KindModified, KindDeleted, KindRenamed} {
		if strings.EqualFold(k.String(), s) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event kind %q", s)
}

// ChangeEvent describes one change observed during a scan cycle.
type ChangeEvent struct {
	Path string
	// PreviousPath is set only for KindRenamed.
	PreviousPath string
	Category     classify.Category
	Kind         Kind
	// EventID is empty for KindUnchanged.
	EventID     string
	Fingerprint fingerprint.Digest
	DetectedAt  time.Time
}

// Action returns the human-readable action description, worded for the
// event's file category.
func (e ChangeEvent) Action() string {
	label := classify.Label(e.Category)
	switch e.Kind {
	case KindNew:
		return fmt.Sprintf("New %s detected.", label)
	case KindModified:
		return fmt.Sprintf("%s changed.", capitalize(label))
	case KindDeleted:
		return fmt.Sprintf("%s has been deleted.", capitalize(label))
	case KindRenamed:
		return fmt.Sprintf("%s has been renamed from %s.", capitalize(label), e.PreviousPath)
	default:
		return fmt.Sprintf("No change in %s.", label)
	}
}

// String formats the event the way the legacy log lines read.
func (e ChangeEvent) String() string {
	return fmt.Sprintf("%d File at path: %s, Action: %s", e.Kind.Code(), e.Path, e.Action())
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
