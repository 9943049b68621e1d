// Package store persists traffic aggregates, excluded IPs, and webhook state
// in sqlite. Every operation opens its own statement scope on a shared
// connection pool; WAL journal mode lets the reader-facing CLI and the daemon
// work the same database without exclusive locking.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// timeFormat is the sqlite DATETIME text layout. All timestamps are UTC.
const timeFormat = "2006-01-02 15:04:05"

const schema = `
CREATE TABLE IF NOT EXISTS traffic (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
	app_name TEXT,
	remote_ip TEXT,
	bytes_sent INTEGER,
	bytes_recv INTEGER
);

CREATE TABLE IF NOT EXISTS excluded_ips (
	ip TEXT PRIMARY KEY,
	description TEXT,
	added_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS webhook_config (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	endpoint_url TEXT,
	interval_minutes INTEGER DEFAULT 60,
	enabled INTEGER DEFAULT 0,
	last_sent DATETIME,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS webhook_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
	status TEXT,
	response_code INTEGER,
	message TEXT
);

CREATE INDEX IF NOT EXISTS idx_timestamp ON traffic(timestamp);
CREATE INDEX IF NOT EXISTS idx_app ON traffic(app_name);
CREATE INDEX IF NOT EXISTS idx_remote_ip ON traffic(remote_ip);
`

// Store wraps the sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and initializes the
// schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	// sqlite may hand back either the bare layout or RFC3339 depending on
	// how the value was written.
	if t, err := time.ParseInLocation(timeFormat, s, time.UTC); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
