package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/Mschirtzinger/fim/internal/events"
	"github.com/Mschirtzinger/fim/internal/ui"
)

var eventsCmd = &cobra.Command{
	Use:     "events",
	GroupID: "monitor",
	Short:   "List recorded change events",
	Long: `List change events from the SQLite event log, oldest first.

--since accepts an RFC 3339 timestamp, a duration such as 90m, or a
phrase such as "2 hours ago" or "yesterday".

Examples:
  fim events --since "2 hours ago"
  fim events --kind deleted,renamed --path /srv/files/reports
  fim events --limit 20 --json`,
	Run: func(cmd *cobra.Command, args []string) {
		since, _ := cmd.Flags().GetString("since")
		kinds, _ := cmd.Flags().GetStringSlice("kind")
		prefix, _ := cmd.Flags().GetString("path")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		q, err := buildQuery(since, kinds, prefix, limit, time.Now())
		if err != nil {
			fail("%v", err)
		}
		if cfg.Events.Database == "" {
			fail("event log is disabled (events.database is empty)")
		}
		if _, err := os.Stat(cfg.Events.Database); os.IsNotExist(err) {
			fmt.Printf("\n%s No event log at %s\n", ui.RenderWarn("!"), cfg.Events.Database)
			fmt.Printf("   Run 'fim monitor' to start recording events\n\n")
			return
		}

		db, err := events.OpenSQLite(cfg.Events.Database)
		if err != nil {
			fail("%v", err)
		}
		defer db.Close()

		list, err := db.List(context.Background(), q)
		if err != nil {
			db.Close()
			fail("%v", err)
		}
		if err := printEvents(os.Stdout, list, asJSON); err != nil {
			db.Close()
			fail("%v", err)
		}
	},
}

// parseSince resolves a --since value relative to now.
func parseSince(text string, now time.Time) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, text); err == nil {
		return t, nil
	}
	if d, err := time.ParseDuration(text); err == nil {
		if d < 0 {
			d = -d
		}
		return now.Add(-d), nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(text, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse --since %q: %w", text, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("failed to parse --since %q: not a time, duration or date phrase", text)
	}
	return r.Time, nil
}

func buildQuery(since string, kinds []string, prefix string, limit int, now time.Time) (events.Query, error) {
	q := events.Query{PathPrefix: prefix, Limit: limit}

	t, err := parseSince(since, now)
	if err != nil {
		return q, err
	}
	q.Since = t

	for _, k := range kinds {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		kind, err := events.ParseKind(k)
		if err != nil {
			return q, err
		}
		q.Kinds = append(q.Kinds, kind)
	}
	return q, nil
}

type eventJSON struct {
	Code         int       `json:"code"`
	Kind         string    `json:"kind"`
	Category     string    `json:"category"`
	Path         string    `json:"path"`
	PreviousPath string    `json:"previous_path,omitempty"`
	EventID      string    `json:"event_id"`
	Fingerprint  string    `json:"fingerprint,omitempty"`
	DetectedAt   time.Time `json:"detected_at"`
	Message      string    `json:"message"`
}

func printEvents(out io.Writer, list []events.ChangeEvent, asJSON bool) error {
	if asJSON {
		items := make([]eventJSON, 0, len(list))
		for _, ev := range list {
			items = append(items, eventJSON{
				Code:         ev.Kind.Code(),
				Kind:         ev.Kind.String(),
				Category:     ev.Category.String(),
				Path:         ev.Path,
				PreviousPath: ev.PreviousPath,
				EventID:      ev.EventID,
				Fingerprint:  ev.Fingerprint.String(),
				DetectedAt:   ev.DetectedAt,
				Message:      ev.String(),
			})
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	if len(list) == 0 {
		_, err := fmt.Fprintln(out, "No events found")
		return err
	}

	rows := make([][]string, 0, len(list))
	for _, ev := range list {
		rows = append(rows, []string{
			ev.DetectedAt.Local().Format("2006-01-02 15:04:05"),
			strconv.Itoa(ev.Kind.Code()),
			ev.Kind.String(),
			ev.Path,
			ev.Action(),
		})
	}
	table := ui.Table([]string{"Time", "Code", "Kind", "Path", "Action"}, rows, func(row, col int) lipgloss.Style {
		if col != 2 {
			return lipgloss.NewStyle()
		}
		return kindStyle(list[row].Kind)
	})
	_, err := fmt.Fprintln(out, table)
	return err
}

func kindStyle(k events.Kind) lipgloss.Style {
	switch k {
	case events.KindNew:
		return ui.PassStyle
	case events.KindModified, events.KindRenamed:
		return ui.WarnStyle
	case events.KindDeleted:
		return ui.FailStyle
	default:
		return ui.MutedStyle
	}
}

func init() {
	eventsCmd.Flags().String("since", "", `only events at or after this time ("2 hours ago", 90m, RFC 3339)`)
	eventsCmd.Flags().StringSlice("kind", nil, "only these kinds (new, modified, deleted, renamed)")
	eventsCmd.Flags().String("path", "", "only paths starting with this prefix")
	eventsCmd.Flags().Int("limit", 100, "show at most this many of the most recent events (0 for all)")
	eventsCmd.Flags().Bool("json", false, "output JSON")

	rootCmd.AddCommand(eventsCmd)
}
