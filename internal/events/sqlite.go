package events

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/Mschirtzinger/fim/internal/classify"
	"github.com/Mschirtzinger/fim/internal/fingerprint"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id TEXT NOT NULL,
	code INTEGER NOT NULL,
	kind TEXT NOT NULL,
	category TEXT NOT NULL,
	path TEXT NOT NULL,
	previous_path TEXT,
	fingerprint TEXT,
	detected_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_path ON events(path);
CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
CREATE INDEX IF NOT EXISTS idx_events_detected ON events(detected_at);
`

// timeLayout is fixed-width so detected_at sorts and compares as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteSink stores events in an embedded SQLite database (WAL mode) so
// that `fim events` can query them while the monitor is running.
type SQLiteSink struct {
	conn *sql.DB
	path string
}

// OpenSQLite opens or creates the event database at path and ensures the
// schema exists. The caller must Close it.
func OpenSQLite(path string) (*SQLiteSink, error) {
	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Pragmas are part of the DSN so they apply to every pooled connection
	dsn, err := dataSourceName(path)
	if err != nil {
		return nil, err
	}

	// Open database connection
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &SQLiteSink{conn: conn, path: path}

	// Initialize schema
	if _, err := conn.Exec(schema); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// dataSourceName builds a file: URI for path. The path is escaped, so names
// containing '?', '#' or '%' open the file they name.
func dataSourceName(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve database path %s: %w", path, err)
	}
	slashed := filepath.ToSlash(abs)
	if !strings.HasPrefix(slashed, "/") {
		slashed = "/" + slashed
	}

	query := url.Values{}
	query.Add("_pragma", "busy_timeout(5000)")
	query.Add("_pragma", "journal_mode(wal)")

	u := url.URL{Scheme: "file", Path: slashed, RawQuery: query.Encode()}
	return u.String(), nil
}

// Path returns the database file location.
func (s *SQLiteSink) Path() string {
	return s.path
}

// Close checkpoints the WAL and closes the connection.
func (s *SQLiteSink) Close() error {
	if s.conn == nil {
		return nil
	}
	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.conn = nil
	return nil
}

// Record implements Sink. Informational "unchanged" events are not stored.
func (s *SQLiteSink) Record(ctx context.Context, ev ChangeEvent) error {
	if ev.Kind == KindUnchanged {
		return nil
	}
	detected := ev.DetectedAt
	if detected.IsZero() {
		detected = time.Now()
	}

	_, err := s.conn.ExecContext(ctx, `
	INSERT INTO events (event_id, code, kind, category, path, previous_path, fingerprint, detected_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.EventID,
		ev.Kind.Code(),
		ev.Kind.String(),
		ev.Category.String(),
		ev.Path,
		nullIfEmpty(ev.PreviousPath),
		nullDigest(ev.Fingerprint),
		detected.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to record event for %s: %w", ev.Path, err)
	}
	return nil
}

// Query filters List results. Zero values mean "no filter".
type Query struct {
	Since      time.Time
	Kinds      []Kind
	PathPrefix string
	// Limit keeps the most recent N matches. Zero means unlimited.
	Limit int
}

// List returns matching events, oldest first.
func (s *SQLiteSink) List(ctx context.Context, q Query) ([]ChangeEvent, error) {
	var (
		where []string
		args  []any
	)
	if !q.Since.IsZero() {
		where = append(where, "detected_at >= ?")
		args = append(args, q.Since.UTC().Format(timeLayout))
	}
	if len(q.Kinds) > 0 {
		placeholders := make([]string, len(q.Kinds))
		for i, k := range q.Kinds {
			placeholders[i] = "?"
			args = append(args, k.String())
		}
		where = append(where, "kind IN ("+strings.Join(placeholders, ", ")+")")
	}
	if q.PathPrefix != "" {
		where = append(where, "instr(path, ?) = 1")
		args = append(args, q.PathPrefix)
	}

	query := "SELECT event_id, kind, category, path, previous_path, fingerprint, detected_at FROM events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []ChangeEvent
	for rows.Next() {
		var (
			ev                     ChangeEvent
			kind, category, detect string
			prev, fp               sql.NullString
		)
		if err := rows.Scan(&ev.EventID, &kind, &category, &ev.Path, &prev, &fp, &detect); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if ev.Kind, err = ParseKind(kind); err != nil {
			return nil, err
		}
		ev.Category = classify.Parse(category)
		ev.PreviousPath = prev.String
		ev.Fingerprint = fingerprint.Digest(fp.String)
		if ev.DetectedAt, err = time.Parse(timeLayout, detect); err != nil {
			return nil, fmt.Errorf("failed to parse detected_at %q: %w", detect, err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Count returns the number of stored events.
func (s *SQLiteSink) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

func nullDigest(d fingerprint.Digest) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
