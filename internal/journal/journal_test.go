package journal

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/change"
	"github.com/starford/vellum/internal/delta"
	"github.com/starford/vellum/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "vellum-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func rect(id, index string) *models.Element {
	e := models.NewElement(models.TypeRectangle)
	e.ID, e.Index = id, index
	return e
}

func sampleRecord() *Record {
	a, b := rect("A", "a0"), rect("B", "a1")
	gone := rect("GONE", "Zz")
	moved := change.Change{Elements: change.NewElementsChange(nil, nil, map[string]change.ElementDelta{
		"A": delta.New(delta.Partial[models.Field]{models.FieldX: 0.0}, delta.Partial[models.Field]{models.FieldX: 5.0}),
	})}
	state := models.DefaultAppState()
	state.SelectedElementIDs["A"] = true
	return &Record{
		SceneRow: SceneRow{
			ID:        "s1",
			Name:      "board",
			Path:      "board.scene.json",
			Checksum:  "abc123",
			LiveCount: 2,
			UpdatedAt: time.Now().UTC().Truncate(time.Second),
		},
		AppState: state,
		Elements: []*models.Element{b, a},
		Baseline: []*models.Element{a, b, gone},
		Undo:     []change.Change{moved},
		Redo:     []change.Change{moved.Inverse()},
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"scenes", "elements", "baseline", "history"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestSaveAndLoadScene(t *testing.T) {
	db := testDB(t)
	rec := sampleRecord()
	if err := db.SaveScene(rec); err != nil {
		t.Fatalf("SaveScene: %v", err)
	}
	got, err := db.LoadScene("s1")
	if err != nil {
		t.Fatalf("LoadScene: %v", err)
	}
	if got.Name != "board" || got.Checksum != "abc123" || got.LiveCount != 2 {
		t.Errorf("row = %+v", got.SceneRow)
	}
	if len(got.Elements) != 2 || got.Elements[0].ID != "B" || got.Elements[1].ID != "A" {
		t.Errorf("elements out of order: %v", got.Elements)
	}
	if len(got.Baseline) != 3 {
		t.Errorf("baseline len = %d, want 3", len(got.Baseline))
	}
	if !got.AppState.SelectedElementIDs["A"] {
		t.Errorf("app state = %+v", got.AppState)
	}
	if len(got.Undo) != 1 || len(got.Redo) != 1 {
		t.Fatalf("stacks = %d/%d, want 1/1", len(got.Undo), len(got.Redo))
	}
	kind, d, ok := got.Undo[0].Elements.Get("A")
	if !ok || kind != change.Updated || d.Inserted[models.FieldX] != 5.0 {
		t.Errorf("undo entry = %v %+v", kind, d)
	}
}

func TestSaveScene_BaselineIsKept(t *testing.T) {
	db := testDB(t)
	rec := sampleRecord()
	_ = db.SaveScene(rec)

	rec.Elements = rec.Elements[:1]
	rec.Baseline = nil
	rec.Undo, rec.Redo = nil, nil
	if err := db.SaveScene(rec); err != nil {
		t.Fatalf("SaveScene: %v", err)
	}
	got, err := db.LoadScene("s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Elements) != 1 {
		t.Errorf("elements len = %d, want 1", len(got.Elements))
	}
	if len(got.Baseline) != 3 {
		t.Errorf("baseline len = %d, want 3 (append-only)", len(got.Baseline))
	}
	if len(got.Undo) != 0 {
		t.Errorf("undo len = %d, want 0", len(got.Undo))
	}
}

func TestListAndByPath(t *testing.T) {
	db := testDB(t)
	_ = db.SaveScene(sampleRecord())
	other := sampleRecord()
	other.ID, other.Path = "s2", ""
	_ = db.SaveScene(other)

	rows, err := db.ListScenes()
	if err != nil {
		t.Fatalf("ListScenes: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("len = %d, want 2", len(rows))
	}

	row, err := db.SceneByPath("board.scene.json")
	if err != nil {
		t.Fatalf("SceneByPath: %v", err)
	}
	if row.ID != "s1" {
		t.Errorf("id = %q, want s1", row.ID)
	}
	if _, err := db.SceneByPath(""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("empty path err = %v, want ErrNotFound", err)
	}
}

func TestPathIsUnique(t *testing.T) {
	db := testDB(t)
	_ = db.SaveScene(sampleRecord())
	dup := sampleRecord()
	dup.ID = "s2"
	if err := db.SaveScene(dup); err == nil {
		t.Error("expected unique path violation")
	}
}

func TestDeleteScene(t *testing.T) {
	db := testDB(t)
	_ = db.SaveScene(sampleRecord())
	if err := db.DeleteScene("s1"); err != nil {
		t.Fatalf("DeleteScene: %v", err)
	}
	if _, err := db.LoadScene("s1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("LoadScene err = %v, want ErrNotFound", err)
	}
	var n int
	_ = db.conn.QueryRow(`SELECT count(*) FROM baseline WHERE scene_id = 's1'`).Scan(&n)
	if n != 0 {
		t.Errorf("baseline rows left = %d", n)
	}
	if err := db.DeleteScene("s1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}
