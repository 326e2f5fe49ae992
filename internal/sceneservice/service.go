// Package sceneservice coordinates scene state, undo history, scene files
// and the journal. Every operation on a scene runs under that scene's lock.
package sceneservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/binding"
	"github.com/starford/vellum/internal/capture"
	"github.com/starford/vellum/internal/change"
	"github.com/starford/vellum/internal/fractional"
	"github.com/starford/vellum/internal/history"
	"github.com/starford/vellum/internal/journal"
	"github.com/starford/vellum/internal/layout"
	"github.com/starford/vellum/internal/models"
	"github.com/starford/vellum/internal/parser"
	"github.com/starford/vellum/internal/storage"
)

// Event kinds passed to EventFunc.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
	EventHistory = "history"
)

// Event describes a persisted scene mutation.
type Event struct {
	Kind    string
	SceneID string
	Name    string
	// Live is the number of live elements after the mutation.
	Live int
	// History is set for EventHistory.
	History *HistoryInfo
}

// EventFunc is called after a scene mutation has been persisted.
type EventFunc func(Event)

// SceneSummary is a lightweight item in a list response.
type SceneSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path,omitempty"`
	Elements  int       `json:"elements"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SceneDetail is the full representation of a scene.
type SceneDetail struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Path      string            `json:"path,omitempty"`
	Elements  []*models.Element `json:"elements"`
	AppState  models.AppState   `json:"appState"`
	CanUndo   bool              `json:"canUndo"`
	CanRedo   bool              `json:"canRedo"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithChangeOptions sets how history entries are applied.
func WithChangeOptions(o change.Options) Option {
	return func(s *Service) { s.opts = o }
}

// WithMaxEntries bounds each history stack.
func WithMaxEntries(n int) Option {
	return func(s *Service) { s.maxEntries = n }
}

// WithEvents registers a mutation callback.
func WithEvents(fn EventFunc) Option {
	return func(s *Service) { s.events = fn }
}

// Service coordinates storage, journal and in-memory scene sessions.
type Service struct {
	store      storage.Provider
	db         journal.Journal
	opts       change.Options
	maxEntries int
	logger     *slog.Logger
	events     EventFunc

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu      sync.Mutex
	deleted bool
	row     journal.SceneRow
	capture *capture.Store
	history *history.History
}

// NewService creates a new scene service.
func NewService(store storage.Provider, db journal.Journal, opts ...Option) *Service {
	s := &Service{
		store:    store,
		db:       db,
		logger:   slog.Default(),
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.opts.LabelPolicy == "" {
		s.opts.LabelPolicy = binding.LabelLatest
	}
	if s.opts.Layout == nil {
		s.opts.Layout = layout.Centered{}
	}
	if s.opts.Logger == nil {
		s.opts.Logger = s.logger
	}
	return s
}

// emit reports a mutation of sess. Callers hold the session lock.
func (s *Service) emit(kind string, sess *session) {
	if s.events == nil {
		return
	}
	ev := Event{Kind: kind, SceneID: sess.row.ID, Name: sess.row.Name, Live: sess.row.LiveCount}
	if kind == EventHistory {
		ev.History = historyInfo(sess.history)
	}
	s.events(ev)
}

// open returns the locked session for id, loading it from the journal on first
// use. Callers must unlock it.
func (s *Service) open(id string) (*session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		rec, err := s.db.LoadScene(id)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		sess = &session{
			row: rec.SceneRow,
			capture: capture.Restore(
				models.NewElementsMap(rec.Elements...),
				rec.AppState,
				models.NewElementsMap(rec.Baseline...),
			),
			history: history.New(s.maxEntries, s.opts),
		}
		sess.history.Restore(rec.Undo, rec.Redo)
		s.sessions[id] = sess
	}
	s.mu.Unlock()
	sess.mu.Lock()
	if sess.deleted {
		sess.mu.Unlock()
		return nil, fmt.Errorf("scene %s: %w", id, apperr.ErrNotFound)
	}
	return sess, nil
}

// persist writes the session to the journal.
func (s *Service) persist(sess *session) error {
	elements, state := sess.capture.Snapshot()
	undo, redo := sess.history.Stacks()
	sess.row.LiveCount = len(elements.Live())
	sess.row.UpdatedAt = time.Now().UTC()
	return s.db.SaveScene(&journal.Record{
		SceneRow: sess.row,
		AppState: state,
		Elements: elements.Slice(),
		Baseline: sess.capture.Baseline().Slice(),
		Undo:     undo,
		Redo:     redo,
	})
}

func detail(sess *session) *SceneDetail {
	elements, state := sess.capture.Snapshot()
	return &SceneDetail{
		ID:        sess.row.ID,
		Name:      sess.row.Name,
		Path:      sess.row.Path,
		Elements:  elements.Slice(),
		AppState:  state,
		CanUndo:   sess.history.CanUndo(),
		CanRedo:   sess.history.CanRedo(),
		UpdatedAt: sess.row.UpdatedAt,
	}
}

// ListScenes returns every stored scene.
func (s *Service) ListScenes(_ context.Context) ([]SceneSummary, error) {
	rows, err := s.db.ListScenes()
	if err != nil {
		return nil, err
	}
	out := make([]SceneSummary, len(rows))
	for i, r := range rows {
		out[i] = SceneSummary{
			ID:        r.ID,
			Name:      r.Name,
			Path:      r.Path,
			Elements:  r.LiveCount,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return out, nil
}

// SearchScenes finds scenes whose name or live text matches query.
func (s *Service) SearchScenes(_ context.Context, query string, limit int) ([]journal.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty search query", apperr.ErrInvalidInput)
	}
	hits, err := s.db.Search(query, limit)
	if err != nil {
		return nil, err
	}
	if hits == nil {
		hits = []journal.SearchResult{}
	}
	return hits, nil
}

// GetScene returns the current state of a scene.
func (s *Service) GetScene(_ context.Context, id string) (*SceneDetail, error) {
	sess, err := s.open(id)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()
	return detail(sess), nil
}

// CreateScene stores a new scene. Missing order keys are assigned and the
// history starts empty. A nil state selects the default app state.
func (s *Service) CreateScene(_ context.Context, name string, elements []*models.Element, state *models.AppState) (*SceneDetail, error) {
	return s.create(journal.SceneRow{ID: models.NewID(), Name: name}, elements, state)
}

func (s *Service) create(row journal.SceneRow, elements []*models.Element, state *models.AppState) (*SceneDetail, error) {
	if err := parser.ValidateElements(elements); err != nil {
		return nil, err
	}
	if row.Name == "" {
		row.Name = "Untitled"
	}
	elements, _ = fractional.SyncInvalidIndices(adoptVersions(nil, elements))
	sess := &session{
		row:     row,
		capture: capture.NewStore(models.NewElementsMap(elements...), appStateOr(state, models.DefaultAppState())),
		history: history.New(s.maxEntries, s.opts),
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	s.mu.Lock()
	if _, exists := s.sessions[row.ID]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("scene %s: %w", row.ID, apperr.ErrAlreadyExists)
	}
	if err := s.persist(sess); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.sessions[row.ID] = sess
	s.mu.Unlock()

	s.logger.Debug("scene created", slog.String("id", row.ID), slog.Int("elements", len(elements)))
	s.emit(EventCreated, sess)
	return detail(sess), nil
}

// DeleteScene removes a scene, its history and its document file.
func (s *Service) DeleteScene(_ context.Context, id string) error {
	sess, err := s.open(id)
	if err != nil {
		return err
	}
	defer sess.mu.Unlock()

	if err := s.db.DeleteScene(id); err != nil {
		return err
	}
	sess.deleted = true
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	if sess.row.Path != "" {
		if err := s.store.Delete(sess.row.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("scene file delete failed", slog.String("path", sess.row.Path), slog.String("error", err.Error()))
		}
	}
	s.emit(EventDeleted, sess)
	return nil
}

func appStateOr(state *models.AppState, fallback models.AppState) models.AppState {
	if state == nil {
		return fallback
	}
	out := state.Clone()
	out.Normalize()
	return out
}

// adoptVersions reconciles client supplied elements with the stored records.
// Unchanged content keeps the stored record; changed content with untouched
// version bookkeeping is bumped so the change is detected.
func adoptVersions(prev *models.ElementsMap, next []*models.Element) []*models.Element {
	out := make([]*models.Element, len(next))
	for i, el := range next {
		old, ok := prev.Get(el.ID)
		switch {
		case ok && models.SameContent(old, el):
			out[i] = old
		case ok && (el.Version <= old.Version || el.VersionNonce == old.VersionNonce):
			c := el.Clone()
			c.Version = max(c.Version, old.Version)
			models.Bump(c)
			out[i] = c
		case !ok && (el.VersionNonce == 0 || el.Version <= 0):
			c := el.Clone()
			c.Version = max(c.Version, 1)
			if c.VersionNonce == 0 {
				c.VersionNonce = models.NewNonce()
			}
			if c.Updated == 0 {
				c.Updated = models.Now()
			}
			out[i] = c
		default:
			out[i] = el
		}
	}
	return out
}
