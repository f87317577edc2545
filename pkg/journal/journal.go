// Package journal keeps a small on-disk log of backend recovery activity
// so restarts can be reviewed after a power cycle.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure Go driver
)

// Entry is one recorded recovery event.
type Entry struct {
	ID       int64         `json:"id"`
	Time     time.Time     `json:"time"`
	Source   string        `json:"source"`
	Kind     string        `json:"kind"`
	OK       bool          `json:"ok"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration_ns,omitempty"`
}

// DefaultMaxRows bounds the table size.
const DefaultMaxRows = 2000

const schema = `
CREATE TABLE IF NOT EXISTS recoveries (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	time        INTEGER NOT NULL,
	source      TEXT    NOT NULL,
	kind        TEXT    NOT NULL,
	ok          INTEGER NOT NULL,
	detail      TEXT    NOT NULL DEFAULT '',
	duration_ns INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS recoveries_time ON recoveries(time);
`

// Journal stores entries in SQLite.
type Journal struct {
	db      *sql.DB
	maxRows int
	logger  *slog.Logger
}

// Open opens or creates the journal at path.
func Open(path string, maxRows int, logger *slog.Logger) (*Journal, error) {
	if path == "" {
		return nil, errors.New("journal: path required")
	}
	if maxRows < 1 {
		maxRows = DefaultMaxRows
	}
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("journal: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}

	logger = logger.With("component", "journal")
	logger.Info("journal ready", "path", path)
	return &Journal{db: db, maxRows: maxRows, logger: logger}, nil
}

// Record appends an entry and trims the oldest rows past the limit.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO recoveries (time, source, kind, ok, detail, duration_ns) VALUES (?, ?, ?, ?, ?, ?)`,
		e.Time.UnixNano(), e.Source, e.Kind, e.OK, e.Detail, int64(e.Duration))
	if err != nil {
		return fmt.Errorf("journal: record: %w", err)
	}

	_, err = j.db.ExecContext(ctx,
		`DELETE FROM recoveries WHERE id <= (SELECT id FROM recoveries ORDER BY id DESC LIMIT 1 OFFSET ?)`,
		j.maxRows)
	if err != nil {
		return fmt.Errorf("journal: trim: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, time, source, kind, ok, detail, duration_ns FROM recoveries ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			ts, dur int64
		)
		if err := rows.Scan(&e.ID, &ts, &e.Source, &e.Kind, &e.OK, &e.Detail, &dur); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.Time = time.Unix(0, ts)
		e.Duration = time.Duration(dur)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns how many entries of kind were recorded since t.
// An empty kind counts every entry.
func (j *Journal) Count(ctx context.Context, kind string, since time.Time) (int, error) {
	var n int
	err := j.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recoveries WHERE (? = '' OR kind = ?) AND time >= ?`,
		kind, kind, since.UnixNano()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("journal: count: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
