package models

// UpdateFunc applies fn to the element with the given id and stores the result.
// It reports whether the element exists and actually changed.
type UpdateFunc func(id string, fn func(*Element)) bool

// Editor performs copy-on-write updates on a map it owns. The first update of an
// element replaces it with a bumped copy; later updates within the same editor
// mutate that copy in place.
type Editor struct {
	elements *ElementsMap
	owned    map[string]struct{}
	touched  []string
	seen     map[string]struct{}
}

// NewEditor returns an editor over elements. The map itself is modified, so
// callers pass a map they own (usually a Clone).
func NewEditor(elements *ElementsMap) *Editor {
	return &Editor{
		elements: elements,
		owned:    make(map[string]struct{}),
		seen:     make(map[string]struct{}),
	}
}

// Elements returns the edited map.
func (e *Editor) Elements() *ElementsMap {
	return e.elements
}

// Own marks id as already copied, so updates mutate it in place.
func (e *Editor) Own(id string) {
	e.owned[id] = struct{}{}
}

// Owns reports whether the editor holds its own copy of id.
func (e *Editor) Owns(id string) bool {
	_, ok := e.owned[id]
	return ok
}

// Put stores el as an owned element.
func (e *Editor) Put(el *Element) {
	e.elements.Set(el)
	e.Own(el.ID)
}

// Update implements UpdateFunc. No-op updates leave the element untouched and
// do not bump its version.
func (e *Editor) Update(id string, fn func(*Element)) bool {
	cur, ok := e.elements.Get(id)
	if !ok {
		return false
	}
	next := cur.Clone()
	fn(next)
	if SameContent(cur, next) {
		return false
	}
	Bump(next)
	if e.Owns(id) {
		*cur = *next
	} else {
		e.elements.Set(next)
		e.Own(id)
	}
	if _, ok := e.seen[id]; !ok {
		e.seen[id] = struct{}{}
		e.touched = append(e.touched, id)
	}
	return true
}

// Touched returns ids changed through Update, in first-touch order.
func (e *Editor) Touched() []string {
	return e.touched
}

// Bump advances the mutation bookkeeping of el.
func Bump(el *Element) {
	el.Version++
	el.VersionNonce = NewNonce()
	el.Updated = Now()
}

// With returns a bumped copy of el with fn applied, or el itself when fn changes
// nothing.
func With(el *Element, fn func(*Element)) *Element {
	next := el.Clone()
	fn(next)
	if SameContent(el, next) {
		return el
	}
	Bump(next)
	return next
}
