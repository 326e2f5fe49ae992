package sceneservice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/change"
	"github.com/starford/vellum/internal/journal"
	"github.com/starford/vellum/internal/models"
	"github.com/starford/vellum/internal/parser"
	"github.com/starford/vellum/internal/storage"
	"github.com/starford/vellum/internal/testutil"
)

type recorder struct {
	mu     sync.Mutex
	events []string
	last   map[string]Event
}

func (r *recorder) record(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev.Kind)
	if r.last == nil {
		r.last = make(map[string]Event)
	}
	r.last[ev.Kind] = ev
	r.mu.Unlock()
}

func (r *recorder) lastOf(kind string) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.last[kind]
	return ev, ok
}

func (r *recorder) has(kind string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Contains(r.events, kind)
}

type env struct {
	svc   *Service
	db    *journal.DB
	store *storage.FS
	dir   string
	rec   *recorder
}

func newService(db journal.Journal, store storage.Provider, rec *recorder) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, db,
		WithLogger(logger),
		WithChangeOptions(change.Options{Strict: true}),
		WithMaxEntries(20),
		WithEvents(rec.record),
	)
}

func testEnv(t *testing.T) *env {
	t.Helper()
	dir, store := testutil.TestSceneDir(t)
	db := testutil.TestDB(t)
	rec := &recorder{}
	return &env{svc: newService(db, store, rec), db: db, store: store, dir: dir, rec: rec}
}

func find(t *testing.T, d *SceneDetail, id string) *models.Element {
	t.Helper()
	for _, el := range d.Elements {
		if el.ID == id {
			return el
		}
	}
	t.Fatalf("element %q missing from scene", id)
	return nil
}

func TestCreateAndGetScene(t *testing.T) {
	e := testEnv(t)
	ctx := context.Background()

	created, err := e.svc.CreateScene(ctx, "board", []*models.Element{
		testutil.Rect("box", 0, 0, 100, 40),
		testutil.Text("lbl", "hi", 20, 10),
	}, nil)
	if err != nil {
		t.Fatalf("CreateScene: %v", err)
	}
	if !e.rec.has(EventCreated) {
		t.Error("created event not emitted")
	}

	got, err := e.svc.GetScene(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetScene: %v", err)
	}
	if got.Name != "board" || len(got.Elements) != 2 {
		t.Fatalf("scene = %+v", got)
	}
	if got.Elements[0].Index == "" || got.Elements[0].Index >= got.Elements[1].Index {
		t.Errorf("keys = %q %q, want increasing", got.Elements[0].Index, got.Elements[1].Index)
	}
	if got.CanUndo {
		t.Error("fresh scene can undo")
	}

	list, err := e.svc.ListScenes(ctx)
	if err != nil || len(list) != 1 || list[0].Elements != 2 {
		t.Errorf("ListScenes = %+v, %v", list, err)
	}
}

func TestCommitUndoRedo(t *testing.T) {
	e := testEnv(t)
	ctx := context.Background()
	d, _ := e.svc.CreateScene(ctx, "", []*models.Element{testutil.Rect("box", 0, 0, 100, 40)}, nil)

	moved := d.Elements[0].Clone()
	moved.X = 50
	res, err := e.svc.Commit(ctx, d.ID, []*models.Element{moved}, nil)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !res.Recorded || !res.Scene.CanUndo {
		t.Fatalf("commit not recorded: %+v", res)
	}
	if find(t, res.Scene, "box").Version <= d.Elements[0].Version {
		t.Error("edited element was not bumped")
	}

	again, err := e.svc.Commit(ctx, d.ID, res.Scene.Elements, nil)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if again.Recorded {
		t.Error("unchanged commit recorded")
	}

	undone, err := e.svc.Undo(ctx, d.ID)
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if x := find(t, undone, "box").X; x != 0 {
		t.Errorf("after undo x = %v, want 0", x)
	}
	redone, err := e.svc.Redo(ctx, d.ID)
	if err != nil {
		t.Fatalf("Redo: %v", err)
	}
	if x := find(t, redone, "box").X; x != 50 {
		t.Errorf("after redo x = %v, want 50", x)
	}
	if !e.rec.has(EventHistory) || !e.rec.has(EventUpdated) {
		t.Errorf("events = %v", e.rec.events)
	}
	ev, _ := e.rec.lastOf(EventHistory)
	if ev.SceneID != d.ID || ev.History == nil || ev.History.Undo != 1 || ev.History.Redo != 0 {
		t.Errorf("history event = %+v", ev)
	}
	if ev, _ := e.rec.lastOf(EventUpdated); ev.Live != 1 {
		t.Errorf("updated event live = %d, want 1", ev.Live)
	}

	info, _ := e.svc.History(ctx, d.ID)
	if info.Undo != 1 || info.Redo != 0 {
		t.Errorf("history = %+v, want 1/0", info)
	}
	if _, err := e.svc.Redo(ctx, d.ID); !errors.Is(err, apperr.ErrNothingToRedo) {
		t.Errorf("Redo err = %v, want ErrNothingToRedo", err)
	}
}

func TestHistorySurvivesRestart(t *testing.T) {
	e := testEnv(t)
	ctx := context.Background()
	d, _ := e.svc.CreateScene(ctx, "", []*models.Element{testutil.Rect("box", 0, 0, 100, 40)}, nil)
	if _, err := e.svc.DeleteElement(ctx, d.ID, "box"); err != nil {
		t.Fatalf("DeleteElement: %v", err)
	}

	restarted := newService(e.db, e.store, &recorder{})
	got, err := restarted.Undo(ctx, d.ID)
	if err != nil {
		t.Fatalf("Undo after restart: %v", err)
	}
	if find(t, got, "box").IsDeleted {
		t.Error("box still deleted after undo")
	}
}

func TestLabelEditing(t *testing.T) {
	e := testEnv(t)
	ctx := context.Background()
	d, _ := e.svc.CreateScene(ctx, "", nil, nil)

	if _, err := e.svc.AddElement(ctx, d.ID, testutil.Rect("box", 0, 0, 100, 40)); err != nil {
		t.Fatalf("AddElement box: %v", err)
	}
	if _, err := e.svc.AddElement(ctx, d.ID, testutil.Text("lbl", "hi", 20, 10)); err != nil {
		t.Fatalf("AddElement lbl: %v", err)
	}
	if _, err := e.svc.AddElement(ctx, d.ID, testutil.Rect("box", 0, 0, 1, 1)); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate add err = %v, want ErrAlreadyExists", err)
	}

	bound, err := e.svc.BindLabel(ctx, d.ID, "lbl", "box")
	if err != nil {
		t.Fatalf("BindLabel: %v", err)
	}
	lbl := find(t, bound, "lbl")
	if lbl.X != 40 || lbl.Y != 15 {
		t.Errorf("label at (%v,%v), want (40,15)", lbl.X, lbl.Y)
	}
	if !find(t, bound, "box").HasBoundElement("lbl") {
		t.Error("box does not list its label")
	}

	moved, err := e.svc.MoveElement(ctx, d.ID, "box", 10, 0)
	if err != nil {
		t.Fatalf("MoveElement: %v", err)
	}
	if x := find(t, moved, "lbl").X; x != 50 {
		t.Errorf("label x = %v after move, want 50", x)
	}

	deleted, err := e.svc.DeleteElement(ctx, d.ID, "box")
	if err != nil {
		t.Fatalf("DeleteElement: %v", err)
	}
	if !find(t, deleted, "lbl").IsDeleted {
		t.Error("label survived its container")
	}
	report, _ := e.svc.Validate(ctx, d.ID)
	if !report.Valid {
		t.Errorf("violations after delete: %v", report.Violations)
	}

	restored, err := e.svc.Undo(ctx, d.ID)
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	box, lbl := find(t, restored, "box"), find(t, restored, "lbl")
	if box.IsDeleted || lbl.IsDeleted {
		t.Fatal("undo did not restore box and label")
	}
	if models.Deref(lbl.ContainerID) != "box" || !box.HasBoundElement("lbl") {
		t.Error("binding not restored by undo")
	}
}

func TestBindArrow(t *testing.T) {
	e := testEnv(t)
	ctx := context.Background()
	d, _ := e.svc.CreateScene(ctx, "", []*models.Element{
		testutil.Rect("a", 0, 0, 50, 50),
		testutil.Rect("b", 200, 0, 50, 50),
		testutil.Arrow("arr", 50, 25, 150, 0),
	}, nil)

	if _, err := e.svc.BindArrow(ctx, d.ID, "arr", "a", "start"); err != nil {
		t.Fatalf("bind start: %v", err)
	}
	got, err := e.svc.BindArrow(ctx, d.ID, "arr", "b", "end")
	if err != nil {
		t.Fatalf("bind end: %v", err)
	}
	if !find(t, got, "a").HasBoundElement("arr") || !find(t, got, "b").HasBoundElement("arr") {
		t.Error("targets do not list the arrow")
	}
	if _, err := e.svc.BindArrow(ctx, d.ID, "arr", "a", "end"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("same target err = %v, want ErrInvalidInput", err)
	}
	if _, err := e.svc.BindArrow(ctx, d.ID, "arr", "a", "middle"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("bad end err = %v, want ErrInvalidInput", err)
	}
	if _, err := e.svc.BindArrow(ctx, d.ID, "arr", "ghost", "end"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing target err = %v, want ErrNotFound", err)
	}

	unbound, err := e.svc.UnbindArrow(ctx, d.ID, "arr", "end")
	if err != nil {
		t.Fatalf("UnbindArrow: %v", err)
	}
	if find(t, unbound, "b").HasBoundElement("arr") {
		t.Error("b still lists the arrow")
	}
	report, _ := e.svc.Validate(ctx, d.ID)
	if !report.Valid {
		t.Errorf("violations: %v", report.Violations)
	}
}

func TestSyncIndices(t *testing.T) {
	e := testEnv(t)
	ctx := context.Background()
	a, b := testutil.Rect("A", 0, 0, 1, 1), testutil.Rect("B", 0, 0, 1, 1)
	a.Index, b.Index = "a1", "a1"
	err := e.db.SaveScene(&journal.Record{
		SceneRow: journal.SceneRow{ID: "s1", Name: "dup"},
		AppState: models.DefaultAppState(),
		Elements: []*models.Element{a, b},
		Baseline: []*models.Element{a, b},
	})
	if err != nil {
		t.Fatal(err)
	}

	report, _ := e.svc.Validate(ctx, "s1")
	if report.Valid {
		t.Error("duplicate keys not reported")
	}
	ids, err := e.svc.SyncIndices(ctx, "s1")
	if err != nil {
		t.Fatalf("SyncIndices: %v", err)
	}
	if !slices.Equal(ids, []string{"B"}) {
		t.Errorf("re-keyed = %v, want [B]", ids)
	}
	report, _ = e.svc.Validate(ctx, "s1")
	if !report.Valid {
		t.Errorf("violations after sync: %v", report.Violations)
	}
}

const sceneDoc = `{"type":"vellum","name":"disk","elements":[{"id":"r","type":"rectangle","opacity":100,"x":1}]}`

func TestSyncImportsAndDetaches(t *testing.T) {
	e := testEnv(t)
	ctx := context.Background()
	path := filepath.Join(e.dir, "disk.scene.json")
	_ = os.WriteFile(path, []byte(sceneDoc), 0o644)

	if err := e.svc.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	list, _ := e.svc.ListScenes(ctx)
	if len(list) != 1 || list[0].Path != "disk.scene.json" || list[0].Name != "disk" {
		t.Fatalf("scenes = %+v", list)
	}
	id := list[0].ID

	if err := e.svc.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	if list, _ := e.svc.ListScenes(ctx); len(list) != 1 {
		t.Errorf("second sync created scenes: %+v", list)
	}

	_ = os.WriteFile(path, []byte(`{"type":"vellum","elements":[{"id":"r","type":"rectangle","opacity":100,"x":9}]}`), 0o644)
	if got, err := e.svc.ImportFile(ctx, "disk.scene.json"); err != nil || got != id {
		t.Fatalf("ImportFile = %q, %v", got, err)
	}
	d, _ := e.svc.GetScene(ctx, id)
	if find(t, d, "r").X != 9 || !d.CanUndo {
		t.Errorf("import not committed: x=%v canUndo=%v", find(t, d, "r").X, d.CanUndo)
	}

	_ = os.Remove(path)
	if err := e.svc.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	d, err := e.svc.GetScene(ctx, id)
	if err != nil {
		t.Fatalf("detached scene lost: %v", err)
	}
	if d.Path != "" {
		t.Errorf("path = %q after file removal, want empty", d.Path)
	}
}

func TestExport(t *testing.T) {
	e := testEnv(t)
	ctx := context.Background()
	d, _ := e.svc.CreateScene(ctx, "My Board!", []*models.Element{testutil.Rect("box", 0, 0, 10, 10)}, nil)

	res, err := e.svc.Export(ctx, d.ID, parser.FormatYAML)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if res.Path != "my-board.scene.yaml" {
		t.Errorf("path = %q", res.Path)
	}
	data, err := e.store.Read(res.Path)
	if err != nil {
		t.Fatalf("exported file missing: %v", err)
	}
	parsed, err := parser.Parse(data, parser.FormatYAML)
	if err != nil || len(parsed.Elements) != 1 {
		t.Fatalf("exported document = %+v, %v", parsed, err)
	}

	if got, err := e.svc.Import(ctx, res.Path, data); err != nil || got != d.ID {
		t.Errorf("re-import = %q, %v, want %q", got, err, d.ID)
	}
	if info, _ := e.svc.History(ctx, d.ID); info.Undo != 0 {
		t.Errorf("unchanged re-import recorded history: %+v", info)
	}

	moved, err := e.svc.Export(ctx, d.ID, parser.FormatJSON)
	if err != nil {
		t.Fatalf("Export json: %v", err)
	}
	if moved.Path != "my-board.scene.json" {
		t.Errorf("path = %q", moved.Path)
	}
	if _, err := e.store.Read(res.Path); err == nil {
		t.Error("old yaml document still present")
	}
}

func TestMissingScene(t *testing.T) {
	e := testEnv(t)
	ctx := context.Background()
	if _, err := e.svc.GetScene(ctx, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetScene err = %v, want ErrNotFound", err)
	}
	d, _ := e.svc.CreateScene(ctx, "", nil, nil)
	if _, err := e.svc.Undo(ctx, d.ID); !errors.Is(err, apperr.ErrNothingToUndo) {
		t.Errorf("Undo err = %v, want ErrNothingToUndo", err)
	}
	if _, err := e.svc.Commit(ctx, d.ID, []*models.Element{{ID: "x", Type: "blob"}}, nil); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("Commit err = %v, want ErrInvalidInput", err)
	}
}

func TestDeleteScene(t *testing.T) {
	e := testEnv(t)
	ctx := context.Background()
	d, _ := e.svc.CreateScene(ctx, "gone", nil, nil)
	res, _ := e.svc.Export(ctx, d.ID, parser.FormatJSON)

	if err := e.svc.DeleteScene(ctx, d.ID); err != nil {
		t.Fatalf("DeleteScene: %v", err)
	}
	if _, err := e.svc.GetScene(ctx, d.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetScene err = %v, want ErrNotFound", err)
	}
	if _, err := e.store.Read(res.Path); err == nil {
		t.Error("document not removed")
	}
	if !e.rec.has(EventDeleted) {
		t.Error("deleted event not emitted")
	}
}
