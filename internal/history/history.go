// Package history keeps bounded undo and redo stacks of scene changes.
package history

import (
	"slices"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/change"
	"github.com/starford/vellum/internal/models"
)

// DefaultMaxEntries bounds each stack when no limit is configured.
const DefaultMaxEntries = 100

// History is not safe for concurrent use.
type History struct {
	undo []change.Change
	redo []change.Change
	max  int
	opts change.Options
}

// New returns an empty history. A non-positive max selects DefaultMaxEntries.
func New(max int, opts change.Options) *History {
	if max <= 0 {
		max = DefaultMaxEntries
	}
	return &History{max: max, opts: opts}
}

// Record pushes c onto the undo stack and clears the redo stack. Empty changes
// are ignored.
func (h *History) Record(c change.Change) bool {
	if c.IsEmpty() {
		return false
	}
	h.undo = h.push(h.undo, c)
	h.redo = nil
	return true
}

func (h *History) push(stack []change.Change, c change.Change) []change.Change {
	stack = append(stack, c)
	if over := len(stack) - h.max; over > 0 {
		stack = append(stack[:0:0], stack[over:]...)
	}
	return stack
}

// CanUndo reports whether an undo entry exists.
func (h *History) CanUndo() bool { return len(h.undo) > 0 }

// CanRedo reports whether a redo entry exists.
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// Len returns the sizes of both stacks.
func (h *History) Len() (undo, redo int) { return len(h.undo), len(h.redo) }

// Undo reverts the latest entry. Entries without a visible effect are applied
// as well and the walk continues until one is visible or the stack is empty.
func (h *History) Undo(elements, baseline *models.ElementsMap, state models.AppState) (change.Result, error) {
	if !h.CanUndo() {
		return change.Result{Elements: elements, AppState: state}, apperr.ErrNothingToUndo
	}
	return h.walk(&h.undo, &h.redo, true, elements, baseline, state)
}

// Redo reapplies the latest undone entry, skipping invisible ones like Undo.
func (h *History) Redo(elements, baseline *models.ElementsMap, state models.AppState) (change.Result, error) {
	if !h.CanRedo() {
		return change.Result{Elements: elements, AppState: state}, apperr.ErrNothingToRedo
	}
	return h.walk(&h.redo, &h.undo, false, elements, baseline, state)
}

// walk moves entries between copies of the stacks and commits them only when
// every apply succeeded, so a failed walk leaves both stacks as they were.
func (h *History) walk(from, to *[]change.Change, inverse bool, elements, baseline *models.ElementsMap, state models.AppState) (change.Result, error) {
	src := slices.Clone(*from)
	dst := slices.Clone(*to)
	res := change.Result{Elements: elements, AppState: state}
	for len(src) > 0 {
		entry := src[len(src)-1]
		apply := entry
		if inverse {
			apply = entry.Inverse()
		}
		next, err := apply.ApplyTo(res.Elements, baseline, res.AppState, h.opts)
		if err != nil {
			return change.Result{Elements: elements, AppState: state}, err
		}
		src = src[:len(src)-1]
		dst = h.push(dst, entry)
		visible := next.Visible
		next.Visible = res.Visible || visible
		res = next
		if visible {
			break
		}
	}
	*from, *to = src, dst
	return res, nil
}

// Stacks returns copies of the undo and redo stacks, oldest first.
func (h *History) Stacks() (undo, redo []change.Change) {
	return append([]change.Change(nil), h.undo...), append([]change.Change(nil), h.redo...)
}

// Restore replaces both stacks, e.g. after loading them from disk.
func (h *History) Restore(undo, redo []change.Change) {
	h.undo = nil
	for _, c := range undo {
		h.undo = h.push(h.undo, c)
	}
	h.redo = nil
	for _, c := range redo {
		h.redo = h.push(h.redo, c)
	}
}
