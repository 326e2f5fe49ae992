package models

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ElementsMap is an id-indexed arena of elements that remembers insertion order.
// Insertion order is the stacking order before any index repair. Maps are logically
// immutable between operations: use Clone before editing a map you do not own.
type ElementsMap struct {
	om *orderedmap.OrderedMap[string, *Element]
}

// NewElementsMap returns a map holding elements in the given order. Later
// duplicates replace earlier ones in place.
func NewElementsMap(elements ...*Element) *ElementsMap {
	m := &ElementsMap{om: orderedmap.New[string, *Element](orderedmap.WithCapacity[string, *Element](len(elements)))}
	for _, el := range elements {
		m.om.Set(el.ID, el)
	}
	return m
}

// Get returns the element with the given id.
func (m *ElementsMap) Get(id string) (*Element, bool) {
	if m == nil {
		return nil, false
	}
	return m.om.Get(id)
}

// Has reports whether id is present.
func (m *ElementsMap) Has(id string) bool {
	_, ok := m.Get(id)
	return ok
}

// Set stores el. Existing ids keep their position.
func (m *ElementsMap) Set(el *Element) {
	m.om.Set(el.ID, el)
}

// Delete removes id from the map.
func (m *ElementsMap) Delete(id string) {
	m.om.Delete(id)
}

// Len returns the number of elements.
func (m *ElementsMap) Len() int {
	if m == nil {
		return 0
	}
	return m.om.Len()
}

// All iterates over elements in order.
func (m *ElementsMap) All(yield func(*Element) bool) {
	if m == nil {
		return
	}
	for p := m.om.Oldest(); p != nil; p = p.Next() {
		if !yield(p.Value) {
			return
		}
	}
}

// Slice returns the elements in order.
func (m *ElementsMap) Slice() []*Element {
	out := make([]*Element, 0, m.Len())
	for el := range m.All {
		out = append(out, el)
	}
	return out
}

// IDs returns the ids in order.
func (m *ElementsMap) IDs() []string {
	out := make([]string, 0, m.Len())
	for el := range m.All {
		out = append(out, el.ID)
	}
	return out
}

// Clone returns a new map with the same element instances in the same order.
func (m *ElementsMap) Clone() *ElementsMap {
	if m == nil {
		return NewElementsMap()
	}
	return NewElementsMap(m.Slice()...)
}

// Live returns the non-deleted elements in order.
func (m *ElementsMap) Live() []*Element {
	var out []*Element
	for el := range m.All {
		if !el.IsDeleted {
			out = append(out, el)
		}
	}
	return out
}

// Replace resets the map to hold elements in the given order.
func (m *ElementsMap) Replace(elements []*Element) {
	m.om = orderedmap.New[string, *Element](orderedmap.WithCapacity[string, *Element](len(elements)))
	for _, el := range elements {
		m.om.Set(el.ID, el)
	}
}
