package journal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/change"
	"github.com/starford/vellum/internal/models"
)

// Stack names in the history table.
const (
	stackUndo = "undo"
	stackRedo = "redo"
)

// SceneRow represents a row in the scenes table.
type SceneRow struct {
	ID        string
	Name      string
	Path      string
	Checksum  string
	LiveCount int
	UpdatedAt time.Time
}

// Record is everything persisted for one scene.
type Record struct {
	SceneRow
	AppState models.AppState
	// Elements is the current scene in order.
	Elements []*models.Element
	// Baseline holds the last known record of every element ever seen.
	Baseline []*models.Element
	Undo     []change.Change
	Redo     []change.Change
}

// SaveScene replaces the stored state of a scene within a transaction.
// Baseline rows are upserted and never deleted.
func (db *DB) SaveScene(rec *Record) (err error) {
	state, err := json.Marshal(rec.AppState)
	if err != nil {
		return fmt.Errorf("journal: encode app state: %w", err)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("journal: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	body := searchBody(rec.Elements)
	_, err = tx.Exec(`
		INSERT INTO scenes (id, name, path, checksum, app_state, live_count, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name       = excluded.name,
			path       = excluded.path,
			checksum   = excluded.checksum,
			app_state  = excluded.app_state,
			live_count = excluded.live_count,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, rec.ID, rec.Name, rec.Path, rec.Checksum, string(state), rec.LiveCount, body, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("journal: upsert scene: %w", err)
	}
	if err := ftsUpsert(tx, rec.ID, rec.Name, body); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM elements WHERE scene_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("journal: clear elements: %w", err)
	}
	if err := insertEach(tx, `INSERT INTO elements (scene_id, element_id, position, data) VALUES (?, ?, ?, ?)`,
		rec.Elements, func(i int, el *models.Element, data []byte) []any {
			return []any{rec.ID, el.ID, i, string(data)}
		}); err != nil {
		return err
	}

	if err := insertEach(tx, `
		INSERT INTO baseline (scene_id, element_id, version, data) VALUES (?, ?, ?, ?)
		ON CONFLICT(scene_id, element_id) DO UPDATE SET
			version = excluded.version,
			data    = excluded.data
	`, rec.Baseline, func(_ int, el *models.Element, data []byte) []any {
		return []any{rec.ID, el.ID, el.Version, string(data)}
	}); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM history WHERE scene_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("journal: clear history: %w", err)
	}
	for stack, entries := range map[string][]change.Change{stackUndo: rec.Undo, stackRedo: rec.Redo} {
		if err := insertEach(tx, `INSERT INTO history (scene_id, stack, position, entry) VALUES (?, ?, ?, ?)`,
			entries, func(i int, _ change.Change, data []byte) []any {
				return []any{rec.ID, stack, i, string(data)}
			}); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// insertEach encodes every item and executes query with the arguments built by args.
func insertEach[T any](tx *sql.Tx, query string, items []T, args func(int, T, []byte) []any) (err error) {
	if len(items) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("journal: prepare insert: %w", err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(stmt))
	for i, item := range items {
		data, err := encode(item)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(args(i, item, data)...); err != nil {
			return fmt.Errorf("journal: insert: %w", err)
		}
	}
	return nil
}

func encode(v any) ([]byte, error) {
	if c, ok := v.(change.Change); ok {
		data, err := change.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("journal: encode change: %w", err)
		}
		return data, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("journal: encode: %w", err)
	}
	return data, nil
}

const sceneColumns = `id, name, path, checksum, live_count, updated_at`

func scanScene(row interface{ Scan(...any) error }, out *SceneRow) error {
	return row.Scan(&out.ID, &out.Name, &out.Path, &out.Checksum, &out.LiveCount, &out.UpdatedAt)
}

// LoadScene returns the stored state of a scene, or apperr.ErrNotFound.
func (db *DB) LoadScene(id string) (*Record, error) {
	rec := &Record{}
	var state string
	err := db.conn.QueryRow(`SELECT `+sceneColumns+`, app_state FROM scenes WHERE id = ?`, id).
		Scan(&rec.ID, &rec.Name, &rec.Path, &rec.Checksum, &rec.LiveCount, &rec.UpdatedAt, &state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("journal: scene %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("journal: load scene: %w", err)
	}
	if err := json.Unmarshal([]byte(state), &rec.AppState); err != nil {
		return nil, fmt.Errorf("journal: decode app state: %w", err)
	}
	rec.AppState.Normalize()

	if rec.Elements, err = db.loadElements(`SELECT data FROM elements WHERE scene_id = ? ORDER BY position`, id); err != nil {
		return nil, err
	}
	if rec.Baseline, err = db.loadElements(`SELECT data FROM baseline WHERE scene_id = ? ORDER BY rowid`, id); err != nil {
		return nil, err
	}
	if rec.Undo, err = db.loadStack(id, stackUndo); err != nil {
		return nil, err
	}
	if rec.Redo, err = db.loadStack(id, stackRedo); err != nil {
		return nil, err
	}
	return rec, nil
}

func (db *DB) loadElements(query, id string) ([]*models.Element, error) {
	return queryAll(db.conn, query, []any{id}, func(data string) (*models.Element, error) {
		var el models.Element
		if err := json.Unmarshal([]byte(data), &el); err != nil {
			return nil, fmt.Errorf("journal: decode element: %w", err)
		}
		return &el, nil
	})
}

func (db *DB) loadStack(id, stack string) ([]change.Change, error) {
	return queryAll(db.conn, `SELECT entry FROM history WHERE scene_id = ? AND stack = ? ORDER BY position`,
		[]any{id, stack}, func(data string) (change.Change, error) {
			c, err := change.Unmarshal([]byte(data))
			if err != nil {
				return c, fmt.Errorf("journal: decode %s entry: %w", stack, err)
			}
			return c, nil
		})
}

func queryAll[T any](conn *sql.DB, query string, args []any, decode func(string) (T, error)) (out []T, err error) {
	rows, err := conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(rows))
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		v, err := decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListScenes returns every scene, most recently updated first.
func (db *DB) ListScenes() (out []SceneRow, err error) {
	rows, err := db.conn.Query(`SELECT ` + sceneColumns + ` FROM scenes ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("journal: list scenes: %w", err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(rows))
	for rows.Next() {
		var r SceneRow
		if err := scanScene(rows, &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SceneByPath returns the scene imported from path, or apperr.ErrNotFound.
func (db *DB) SceneByPath(path string) (*SceneRow, error) {
	var r SceneRow
	err := scanScene(db.conn.QueryRow(`SELECT `+sceneColumns+` FROM scenes WHERE path = ? AND path != ''`, path), &r)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("journal: path %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("journal: scene by path: %w", err)
	}
	return &r, nil
}

// DeleteScene removes a scene with its elements, baseline and history.
func (db *DB) DeleteScene(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("journal: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.Exec(`DELETE FROM scenes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("journal: delete scene: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("journal: scene %s: %w", id, apperr.ErrNotFound)
	}
	if err := ftsDelete(tx, id); err != nil {
		return err
	}
	return tx.Commit()
}
