package sceneservice

import (
	"context"
	"log/slog"

	"github.com/starford/vellum/internal/binding"
	"github.com/starford/vellum/internal/change"
	"github.com/starford/vellum/internal/fractional"
	"github.com/starford/vellum/internal/history"
	"github.com/starford/vellum/internal/models"
	"github.com/starford/vellum/internal/parser"
)

// CommitResult is returned by Commit.
type CommitResult struct {
	Scene *SceneDetail `json:"scene"`
	// Recorded reports whether the commit produced a history entry.
	Recorded bool `json:"recorded"`
}

// HistoryInfo describes the undo and redo stacks of a scene.
type HistoryInfo struct {
	Undo    int  `json:"undo"`
	Redo    int  `json:"redo"`
	CanUndo bool `json:"canUndo"`
	CanRedo bool `json:"canRedo"`
}

// ValidationReport lists the invariant violations found in a scene.
type ValidationReport struct {
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations"`
}

// Commit replaces the scene with elements and records the difference as one
// history entry. A nil state keeps the current app state.
func (s *Service) Commit(_ context.Context, id string, elements []*models.Element, state *models.AppState) (*CommitResult, error) {
	if err := parser.ValidateElements(elements); err != nil {
		return nil, err
	}
	sess, err := s.open(id)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	recorded, err := s.commit(sess, elements, state)
	if err != nil {
		return nil, err
	}
	return &CommitResult{Scene: detail(sess), Recorded: recorded}, nil
}

// commit runs with sess locked.
func (s *Service) commit(sess *session, elements []*models.Element, state *models.AppState) (bool, error) {
	current, currentState := sess.capture.Snapshot()
	elements, _ = fractional.SyncInvalidIndices(adoptVersions(current, elements))
	return s.record(sess, models.NewElementsMap(elements...), appStateOr(state, currentState))
}

// record captures next as the new snapshot, pushes the change and persists.
func (s *Service) record(sess *session, next *models.ElementsMap, state models.AppState) (bool, error) {
	c := sess.capture.Commit(next, state)
	recorded := sess.history.Record(c)
	if err := s.persist(sess); err != nil {
		return recorded, err
	}
	if c.IsEmpty() {
		return false, nil
	}
	s.logger.Debug("scene committed",
		slog.String("id", sess.row.ID),
		slog.Int("elements_changed", c.Elements.Len()),
		slog.Bool("recorded", recorded))
	s.emit(EventUpdated, sess)
	if recorded {
		s.emit(EventHistory, sess)
	}
	return recorded, nil
}

// Undo reverts the latest visible history entry.
func (s *Service) Undo(_ context.Context, id string) (*SceneDetail, error) {
	return s.travel(id, true)
}

// Redo reapplies the latest undone entry.
func (s *Service) Redo(_ context.Context, id string) (*SceneDetail, error) {
	return s.travel(id, false)
}

func (s *Service) travel(id string, undo bool) (*SceneDetail, error) {
	sess, err := s.open(id)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	elements, state := sess.capture.Snapshot()
	var res change.Result
	if undo {
		res, err = sess.history.Undo(elements, sess.capture.Baseline(), state)
	} else {
		res, err = sess.history.Redo(elements, sess.capture.Baseline(), state)
	}
	if err != nil {
		return nil, err
	}
	sess.capture.Update(res.Elements, res.AppState)
	if err := s.persist(sess); err != nil {
		return nil, err
	}
	s.logger.Debug("history applied",
		slog.String("id", id),
		slog.Bool("undo", undo),
		slog.Bool("visible", res.Visible))
	s.emit(EventUpdated, sess)
	s.emit(EventHistory, sess)
	return detail(sess), nil
}

// History returns the stack sizes of a scene.
func (s *Service) History(_ context.Context, id string) (*HistoryInfo, error) {
	sess, err := s.open(id)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()
	return historyInfo(sess.history), nil
}

func historyInfo(h *history.History) *HistoryInfo {
	undo, redo := h.Len()
	return &HistoryInfo{Undo: undo, Redo: redo, CanUndo: undo > 0, CanRedo: redo > 0}
}

// SyncIndices repairs missing, malformed and out of order keys while keeping
// the current element order. It returns the re-keyed ids.
func (s *Service) SyncIndices(_ context.Context, id string) ([]string, error) {
	sess, err := s.open(id)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	elements, state := sess.capture.Snapshot()
	fixed, ids := fractional.SyncInvalidIndices(elements.Slice())
	if len(ids) == 0 {
		return []string{}, nil
	}
	if _, err := s.record(sess, models.NewElementsMap(fixed...), state); err != nil {
		return nil, err
	}
	return ids, nil
}

// Validate checks binding symmetry and order keys of a scene.
func (s *Service) Validate(_ context.Context, id string) (*ValidationReport, error) {
	sess, err := s.open(id)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	elements, _ := sess.capture.Snapshot()
	report := &ValidationReport{Valid: true, Violations: []string{}}
	for _, v := range binding.Violations(binding.Check(elements)) {
		report.Violations = append(report.Violations, v.Error())
	}
	if err := fractional.ValidateElements(elements.Slice()); err != nil {
		report.Violations = append(report.Violations, err.Error())
	}
	report.Valid = len(report.Violations) == 0
	return report, nil
}
