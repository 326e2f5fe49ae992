// Package journal persists scenes, their baselines and undo history in SQLite.
package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS scenes (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	path       TEXT NOT NULL DEFAULT '',
	checksum   TEXT NOT NULL DEFAULT '',
	app_state  TEXT NOT NULL DEFAULT '{}',
	live_count INTEGER NOT NULL DEFAULT 0,
	body       TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_scenes_path ON scenes(path) WHERE path != '';

CREATE TABLE IF NOT EXISTS elements (
	scene_id   TEXT NOT NULL REFERENCES scenes(id) ON DELETE CASCADE,
	element_id TEXT NOT NULL,
	position   INTEGER NOT NULL,
	data       TEXT NOT NULL,
	PRIMARY KEY (scene_id, element_id)
);

CREATE TABLE IF NOT EXISTS baseline (
	scene_id   TEXT NOT NULL REFERENCES scenes(id) ON DELETE CASCADE,
	element_id TEXT NOT NULL,
	version    INTEGER NOT NULL,
	data       TEXT NOT NULL,
	PRIMARY KEY (scene_id, element_id)
);

CREATE TABLE IF NOT EXISTS history (
	scene_id TEXT NOT NULL REFERENCES scenes(id) ON DELETE CASCADE,
	stack    TEXT NOT NULL CHECK (stack IN ('undo', 'redo')),
	position INTEGER NOT NULL,
	entry    TEXT NOT NULL,
	PRIMARY KEY (scene_id, stack, position)
);
`

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// DB wraps a sql.DB with journal operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("journal: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: apply schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
