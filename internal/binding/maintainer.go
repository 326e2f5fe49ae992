package binding

import (
	"slices"

	"github.com/starford/vellum/internal/models"
)

// Maintainer repairs bindings through an editor. Every write goes through the
// editor, so counterparts touched by a repair show up in Editor.Touched. All
// operations check membership before writing and are idempotent.
type Maintainer struct {
	ed     *models.Editor
	policy LabelPolicy
}

// NewMaintainer returns a maintainer writing through ed.
func NewMaintainer(ed *models.Editor, policy LabelPolicy) *Maintainer {
	if policy == "" {
		policy = LabelLatest
	}
	return &Maintainer{ed: ed, policy: policy}
}

func (m *Maintainer) get(id string) (*models.Element, bool) {
	return m.ed.Elements().Get(id)
}

func (m *Maintainer) live(id string) (*models.Element, bool) {
	el, ok := m.get(id)
	if !ok || el.IsDeleted {
		return nil, false
	}
	return el, true
}

// Unbind runs the unbind pass for both roles of id.
func (m *Maintainer) Unbind(id string) {
	m.UnbindBound(id)
	m.UnbindBindable(id)
}

// Rebind runs the rebind pass for both roles of id.
func (m *Maintainer) Rebind(id string) {
	m.RebindBound(id)
	m.RebindBindable(id)
}

// UnbindBound removes id from the bound list of every live counterpart it
// references. Missing and deleted counterparts are left alone.
func (m *Maintainer) UnbindBound(id string) {
	el, ok := m.get(id)
	if !ok {
		return
	}
	for _, p := range Properties {
		if p == FrameID {
			continue
		}
		target := Target(el, p)
		if target == "" {
			continue
		}
		counterpart, ok := m.live(target)
		if !ok || !counterpart.HasBoundElement(id) {
			continue
		}
		m.removeEntry(target, id)
	}
}

// RebindBound adds id to the bound list of every live counterpart it
// references. References into deleted, missing or incompatible counterparts
// are cleared. Frame references are only validated.
func (m *Maintainer) RebindBound(id string) {
	el, ok := m.live(id)
	if !ok {
		return
	}
	m.dropSameTargetEnd(el)

	for _, p := range Properties {
		el, _ = m.get(id)
		target := Target(el, p)
		if target == "" {
			continue
		}
		counterpart, ok := m.live(target)
		if !ok || !accepts(p, counterpart) || !roleMatches(p, el) {
			m.ed.Update(id, func(e *models.Element) { Clear(e, p) })
			continue
		}
		switch p {
		case FrameID:
		case ContainerID:
			if counterpart.HasBoundElement(id) {
				continue
			}
			if m.otherLiveLabel(counterpart, id) != "" {
				m.ed.Update(id, func(e *models.Element) { Clear(e, ContainerID) })
				continue
			}
			m.addEntry(target, models.BoundElement{ID: id, Type: models.BoundText})
		case StartBinding, EndBinding:
			if !counterpart.HasBoundElement(id) {
				m.addEntry(target, models.BoundElement{ID: id, Type: models.BoundArrow})
			}
		}
	}
}

// UnbindBindable clears every live bound element's reference to id.
func (m *Maintainer) UnbindBindable(id string) {
	el, ok := m.get(id)
	if !ok {
		return
	}
	for _, entry := range slices.Clone(el.BoundElements) {
		bound, ok := m.live(entry.ID)
		if !ok {
			continue
		}
		for _, p := range Properties {
			if Target(bound, p) == id {
				m.ed.Update(entry.ID, func(e *models.Element) { Clear(e, p) })
			}
		}
	}
}

// RebindBindable walks the bound list of id. Entries naming missing or deleted
// elements are dropped, as are connectors that no longer point at id. Among the
// labels, the one picked by the policy keeps its entry and gets its container
// set; the others are dropped and lose their reference to id. Labels owned by
// another live container are dropped without touching their reference.
func (m *Maintainer) RebindBindable(id string) {
	el, ok := m.live(id)
	if !ok {
		return
	}

	var drop []string
	var labels []string
	for _, entry := range el.BoundElements {
		bound, ok := m.live(entry.ID)
		if !ok {
			drop = append(drop, entry.ID)
			continue
		}
		switch bound.Type {
		case models.TypeText:
			if owner := models.Deref(bound.ContainerID); owner != "" && owner != id {
				if _, live := m.live(owner); live {
					drop = append(drop, entry.ID)
					continue
				}
			}
			labels = append(labels, entry.ID)
		default:
			if !References(bound, id) {
				drop = append(drop, entry.ID)
			}
		}
	}

	if len(labels) > 0 {
		keep := labels[len(labels)-1]
		if m.policy == LabelEarliest {
			keep = labels[0]
		}
		for _, lid := range labels {
			if lid == keep {
				m.ed.Update(lid, func(e *models.Element) {
					if models.Deref(e.ContainerID) != id {
						e.ContainerID = models.StringPtr(id)
					}
				})
				continue
			}
			m.ed.Update(lid, func(e *models.Element) {
				if models.Deref(e.ContainerID) == id {
					e.ContainerID = nil
				}
			})
			drop = append(drop, lid)
		}
	}

	for _, bid := range drop {
		m.removeEntry(id, bid)
	}
}

// otherLiveLabel returns a live label other than exclude that container lists
// and that points back at it.
func (m *Maintainer) otherLiveLabel(container *models.Element, exclude string) string {
	for _, entry := range container.BoundElements {
		if entry.Type != models.BoundText || entry.ID == exclude {
			continue
		}
		label, ok := m.live(entry.ID)
		if ok && models.Deref(label.ContainerID) == container.ID {
			return entry.ID
		}
	}
	return ""
}

// dropSameTargetEnd enforces that a two-point connector is not bound to the
// same element at both ends.
func (m *Maintainer) dropSameTargetEnd(el *models.Element) {
	if !sameTargetEnds(el) {
		return
	}
	m.ed.Update(el.ID, func(e *models.Element) { e.EndBinding = nil })
}

func sameTargetEnds(el *models.Element) bool {
	return el.Type.IsLinear() && len(el.Points) == 2 &&
		el.StartBinding != nil && el.EndBinding != nil &&
		el.StartBinding.ElementID == el.EndBinding.ElementID
}

// roleMatches reports whether el can hold p at all.
func roleMatches(p Property, el *models.Element) bool {
	switch p {
	case FrameID:
		return true
	case ContainerID:
		return el.Type == models.TypeText
	case StartBinding, EndBinding:
		return el.Type == models.TypeArrow
	}
	return false
}

func (m *Maintainer) addEntry(target string, entry models.BoundElement) {
	m.ed.Update(target, func(e *models.Element) {
		if !e.HasBoundElement(entry.ID) {
			e.BoundElements = append(e.BoundElements, entry)
		}
	})
}

func (m *Maintainer) removeEntry(target, id string) {
	m.ed.Update(target, func(e *models.Element) {
		e.BoundElements = slices.DeleteFunc(e.BoundElements, func(b models.BoundElement) bool { return b.ID == id })
	})
}
