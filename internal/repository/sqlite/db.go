package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE COLLATE NOCASE,
	display_name  TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS reframing_sessions (
	id                     TEXT PRIMARY KEY,
	user_id                TEXT NOT NULL,
	analysis_id            TEXT,
	selected_thought       TEXT NOT NULL,
	distortion_type        TEXT NOT NULL DEFAULT '',
	method                 TEXT NOT NULL,
	background             TEXT NOT NULL DEFAULT '',
	history                BLOB NOT NULL,
	turn_count             INTEGER NOT NULL DEFAULT 0 CHECK (turn_count >= 0),
	max_turns              INTEGER NOT NULL,
	pacing_interval_turns  INTEGER NOT NULL,
	status                 TEXT NOT NULL CHECK (status IN ('active', 'awaiting_pacing_choice', 'completed')),
	candidate_reframe      TEXT NOT NULL DEFAULT '',
	offered_pacing         TEXT NOT NULL DEFAULT '',
	final_reframed_thought TEXT NOT NULL DEFAULT '',
	completed_at           TEXT,
	created_at             TEXT NOT NULL,
	updated_at             TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reframing_sessions_user_updated
	ON reframing_sessions (user_id, updated_at DESC);

CREATE TABLE IF NOT EXISTS completion_summaries (
	id                     TEXT PRIMARY KEY,
	session_id             TEXT NOT NULL UNIQUE,
	user_id                TEXT NOT NULL,
	original_thought       TEXT NOT NULL,
	distortion_type        TEXT NOT NULL DEFAULT '',
	method                 TEXT NOT NULL,
	final_reframed_thought TEXT NOT NULL,
	affirmation            TEXT NOT NULL,
	completed_at           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_completion_summaries_user_completed
	ON completion_summaries (user_id, completed_at DESC);
`

// DB wraps the embedded SQLite database
type DB struct {
	Conn *sql.DB
}

// Open opens (or creates) the database file and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// SQLite only supports one writer, and an in-memory database lives on a
	// single connection.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if _, err := conn.ExecContext(ctx, schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}

	return &DB{Conn: conn}, nil
}

// Close closes the database
func (db *DB) Close() error {
	return db.Conn.Close()
}

// Ping verifies database connectivity
func (db *DB) Ping(ctx context.Context) error {
	return db.Conn.PingContext(ctx)
}

// timeLayout is fixed width so stored timestamps sort as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
	return t, nil
}
