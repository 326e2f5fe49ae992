// Package capture keeps the last observed scene snapshot and the baseline of
// every element ever seen, and turns new observations into changes.
package capture

import (
	"github.com/starford/vellum/internal/change"
	"github.com/starford/vellum/internal/models"
)

// Store is not safe for concurrent use; callers serialize access per scene.
type Store struct {
	snapshot *models.ElementsMap
	appState models.AppState
	baseline *models.ElementsMap
}

// NewStore starts from the given scene. The baseline begins with the same elements.
func NewStore(elements *models.ElementsMap, state models.AppState) *Store {
	return Restore(elements, state, nil)
}

// Restore rebuilds a store from a persisted baseline. Elements missing from
// baseline are added to it.
func Restore(elements *models.ElementsMap, state models.AppState, baseline *models.ElementsMap) *Store {
	if elements == nil {
		elements = models.NewElementsMap()
	}
	s := &Store{
		snapshot: elements,
		appState: state.Clone(),
		baseline: baseline.Clone(),
	}
	s.remember(elements)
	return s
}

// Snapshot returns the last observed scene.
func (s *Store) Snapshot() (*models.ElementsMap, models.AppState) {
	return s.snapshot, s.appState.Clone()
}

// Baseline returns the archive of last known records. Callers must not modify it.
func (s *Store) Baseline() *models.ElementsMap {
	return s.baseline
}

// Commit records a new observation and returns the change from the previous
// snapshot. The change may be empty.
func (s *Store) Commit(elements *models.ElementsMap, state models.AppState) change.Change {
	c := change.Calculate(s.snapshot, elements, s.appState, state)
	s.Update(elements, state)
	return c
}

// Update moves the snapshot without producing a change, e.g. after undo.
func (s *Store) Update(elements *models.ElementsMap, state models.AppState) {
	s.snapshot = elements
	s.appState = state.Clone()
	s.remember(elements)
}

// remember copies newer records into the baseline. Records are never removed.
func (s *Store) remember(elements *models.ElementsMap) {
	for el := range elements.All {
		if known, ok := s.baseline.Get(el.ID); ok && known == el {
			continue
		}
		s.baseline.Set(el)
	}
}
