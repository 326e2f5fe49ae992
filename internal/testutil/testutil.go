// Package testutil provides shared test helpers for scene directories,
// journals and element fixtures.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/vellum/internal/journal"
	"github.com/starford/vellum/internal/models"
	"github.com/starford/vellum/internal/storage"
)

// TestDB creates a temporary SQLite journal that is automatically cleaned up.
func TestDB(t *testing.T) *journal.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "vellum-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := journal.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestSceneDir creates a temporary scene directory with a storage.Provider.
func TestSceneDir(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// Rect returns a live rectangle.
func Rect(id string, x, y, w, h float64) *models.Element {
	e := models.NewElement(models.TypeRectangle)
	e.ID = id
	e.X, e.Y, e.Width, e.Height = x, y, w, h
	return e
}

// Text returns a live text element of the given size.
func Text(id, text string, w, h float64) *models.Element {
	e := models.NewElement(models.TypeText)
	e.ID, e.Text = id, text
	e.Width, e.Height = w, h
	e.FontSize = 20
	return e
}

// Arrow returns a live two-point arrow from (x, y) to (x+dx, y+dy).
func Arrow(id string, x, y, dx, dy float64) *models.Element {
	e := models.NewElement(models.TypeArrow)
	e.ID = id
	e.X, e.Y = x, y
	e.Points = []models.Point{{0, 0}, {dx, dy}}
	return e
}
