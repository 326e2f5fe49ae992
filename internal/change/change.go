package change

import (
	"github.com/starford/vellum/internal/models"
)

// Change pairs the document and app state changes produced by one edit.
type Change struct {
	Elements *ElementsChange
	AppState *AppStateChange
}

// Calculate diffs two document snapshots together with their app states.
func Calculate(prevElements, nextElements *models.ElementsMap, prevState, nextState models.AppState) Change {
	return Change{
		Elements: CalculateElementsChange(prevElements, nextElements),
		AppState: CalculateAppStateChange(prevState, nextState),
	}
}

// Empty returns a change with nothing in it.
func Empty() Change {
	return Change{Elements: EmptyElementsChange(), AppState: EmptyAppStateChange()}
}

// IsEmpty reports whether neither part carries a delta.
func (c Change) IsEmpty() bool {
	return c.elements().IsEmpty() && c.appState().IsEmpty()
}

// Inverse returns the change that undoes c.
func (c Change) Inverse() Change {
	return Change{Elements: c.elements().Inverse(), AppState: c.appState().Inverse()}
}

func (c Change) elements() *ElementsChange {
	if c.Elements == nil {
		return EmptyElementsChange()
	}
	return c.Elements
}

func (c Change) appState() *AppStateChange {
	if c.AppState == nil {
		return EmptyAppStateChange()
	}
	return c.AppState
}

// Result is the outcome of applying a Change.
type Result struct {
	Elements *models.ElementsMap
	AppState models.AppState
	Visible  bool
}

// ApplyTo replays both parts. The app state is filtered against the elements
// the document part produced.
func (c Change) ApplyTo(elements, baseline *models.ElementsMap, state models.AppState, opts Options) (Result, error) {
	nextElements, elementsVisible, err := c.elements().ApplyTo(elements, baseline, opts)
	if err != nil {
		return Result{Elements: elements, AppState: state}, err
	}
	nextState, stateVisible, err := c.appState().ApplyTo(state, nextElements)
	if err != nil {
		return Result{Elements: elements, AppState: state}, err
	}
	return Result{
		Elements: nextElements,
		AppState: nextState,
		Visible:  elementsVisible || stateVisible,
	}, nil
}
