package sceneservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/checksum"
	"github.com/starford/vellum/internal/journal"
	"github.com/starford/vellum/internal/models"
	"github.com/starford/vellum/internal/parser"
	"github.com/starford/vellum/internal/storage"
)

// ExportResult describes a written scene document.
type ExportResult struct {
	Path     string        `json:"path"`
	Format   parser.Format `json:"format"`
	Checksum string        `json:"checksum"`
}

// ImportFile reads a scene document from storage and imports it.
func (s *Service) ImportFile(ctx context.Context, path string) (string, error) {
	data, err := s.store.Read(path)
	if err != nil {
		return "", err
	}
	return s.Import(ctx, path, data)
}

// Import creates or updates the scene bound to path from a document. A
// document whose checksum matches the last import is skipped. Updates are
// recorded in the scene history like any other commit.
func (s *Service) Import(_ context.Context, path string, data []byte) (string, error) {
	sum := checksum.Sum(data)
	row, err := s.db.SceneByPath(path)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		row = nil
	case err != nil:
		return "", err
	case row.Checksum == sum:
		return row.ID, nil
	}

	res, err := parser.Parse(data, parser.FormatOf(path))
	if err != nil {
		return "", fmt.Errorf("import %s: %w", path, err)
	}
	name := res.Name
	if name == "" {
		name = storage.SceneName(path)
	}

	if row == nil {
		d, err := s.create(journal.SceneRow{ID: models.NewID(), Name: name, Path: path, Checksum: sum}, res.Elements, &res.AppState)
		if err != nil {
			return "", err
		}
		return d.ID, nil
	}

	sess, err := s.open(row.ID)
	if err != nil {
		return "", err
	}
	defer sess.mu.Unlock()
	sess.row.Name, sess.row.Checksum = name, sum
	if _, err := s.commit(sess, res.Elements, &res.AppState); err != nil {
		return "", err
	}
	return row.ID, nil
}

// DetachFile unbinds the scene imported from path. The scene and its history
// are kept.
func (s *Service) DetachFile(_ context.Context, path string) error {
	row, err := s.db.SceneByPath(path)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	sess, err := s.open(row.ID)
	if err != nil {
		return err
	}
	defer sess.mu.Unlock()
	sess.row.Path, sess.row.Checksum = "", ""
	if err := s.persist(sess); err != nil {
		return err
	}
	s.emit(EventUpdated, sess)
	return nil
}

// Sync walks the scene directory and brings the journal up to date:
//   - new/changed documents are imported
//   - scenes whose document disappeared are detached
func (s *Service) Sync(ctx context.Context) error {
	metas, err := s.store.List("")
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}
		if row, err := s.db.SceneByPath(m.Path); err == nil && row.Checksum == m.Checksum {
			continue
		}
		id, err := s.ImportFile(ctx, m.Path)
		if err != nil {
			s.logger.Warn("sync: import failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		s.logger.Debug("sync: imported", slog.String("path", m.Path), slog.String("id", id))
	}

	rows, err := s.db.ListScenes()
	if err != nil {
		return err
	}
	for _, r := range rows {
		if r.Path == "" {
			continue
		}
		if _, ok := disk[r.Path]; ok {
			continue
		}
		if err := s.DetachFile(ctx, r.Path); err != nil {
			s.logger.Warn("sync: detach failed", slog.String("path", r.Path), slog.String("error", err.Error()))
		} else {
			s.logger.Debug("sync: detached", slog.String("path", r.Path))
		}
	}
	return nil
}

// Export writes the live elements of a scene as a document. The scene keeps
// its bound path when the format matches; otherwise the document moves to a
// new path derived from the scene name. An empty format keeps the format of
// the bound document, or JSON for an unbound scene.
func (s *Service) Export(_ context.Context, id string, format parser.Format) (*ExportResult, error) {
	sess, err := s.open(id)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	if format == "" {
		format = parser.FormatJSON
		if sess.row.Path != "" {
			format = parser.FormatOf(sess.row.Path)
		}
	}
	elements, state := sess.capture.Snapshot()
	data, err := parser.Encode(sess.row.Name, elements.Live(), state, format)
	if err != nil {
		return nil, err
	}

	old := sess.row.Path
	path := old
	if path == "" || parser.FormatOf(path) != format {
		path = s.exportPath(sess.row, format)
	}
	if err := s.store.Write(path, data); err != nil {
		return nil, err
	}
	sess.row.Path, sess.row.Checksum = path, checksum.Sum(data)
	if err := s.persist(sess); err != nil {
		return nil, err
	}
	if old != "" && old != path {
		if err := s.store.Delete(old); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("export: old document not removed", slog.String("path", old), slog.String("error", err.Error()))
		}
	}
	return &ExportResult{Path: path, Format: format, Checksum: sess.row.Checksum}, nil
}

func (s *Service) exportPath(row journal.SceneRow, format parser.Format) string {
	suffix := storage.SuffixJSON
	if format == parser.FormatYAML {
		suffix = storage.SuffixYAML
	}
	base := slug(row.Name)
	if base != "" {
		path := base + suffix
		if other, err := s.db.SceneByPath(path); err != nil || other.ID == row.ID {
			return path
		}
	}
	return row.ID + suffix
}

func slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
