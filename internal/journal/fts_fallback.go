//go:build !sqlite_fts5

package journal

import (
	"database/sql"
	"fmt"

	"go.uber.org/multierr"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses a LIKE fallback on the scenes.body column.
	return nil
}

func ftsUpsert(_ execer, _, _, _ string) error {
	// Body is already stored in the scenes table; nothing extra to do.
	return nil
}

func ftsDelete(_ execer, _ string) error { return nil }

// Search performs a LIKE-based search (fallback when FTS5 is not compiled in).
func (db *DB) Search(query string, limit int) (out []SearchResult, err error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT id, name, substr(body, 1, 200)
		FROM scenes
		WHERE name LIKE ? OR body LIKE ?
		ORDER BY updated_at DESC, id
		LIMIT ?
	`, like, like, limit)
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
