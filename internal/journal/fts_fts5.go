//go:build sqlite_fts5

package journal

import (
	"database/sql"
	"fmt"

	"go.uber.org/multierr"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS scenes_fts USING fts5(
			id UNINDEXED,
			name,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(ex execer, id, name, body string) error {
	if err := ftsDelete(ex, id); err != nil {
		return err
	}
	if _, err := ex.Exec(`INSERT INTO scenes_fts (id, name, body) VALUES (?, ?, ?)`, id, name, body); err != nil {
		return fmt.Errorf("journal: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(ex execer, id string) error {
	if _, err := ex.Exec(`DELETE FROM scenes_fts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("journal: delete fts: %w", err)
	}
	return nil
}

// Search performs an FTS5 full-text search and returns matching scenes with snippets.
func (db *DB) Search(query string, limit int) (out []SearchResult, err error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	rows, err := db.conn.Query(`
		SELECT id,
		       name,
		       snippet(scenes_fts, 2, '<b>', '</b>', '...', 64)
		FROM scenes_fts
		WHERE scenes_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: search: %w", err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(rows))

	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Name, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
