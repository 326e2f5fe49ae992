package binding

import (
	"errors"
	"fmt"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/models"
)

// ErrIncompatible indicates elements that cannot be bound to each other.
var ErrIncompatible = errors.New("incompatible binding")

func (m *Maintainer) mustLive(id string) (*models.Element, error) {
	el, ok := m.live(id)
	if !ok {
		return nil, fmt.Errorf("binding: element %q: %w", id, apperr.ErrNotFound)
	}
	return el, nil
}

// BindArrow attaches one end of an arrow to target and records the arrow in
// target's bound list. A previous target loses its entry unless the other end
// still points at it.
func (m *Maintainer) BindArrow(arrowID, targetID string, end Property) error {
	if end != StartBinding && end != EndBinding {
		return fmt.Errorf("binding: %v is not an arrow end: %w", end, ErrIncompatible)
	}
	arrow, err := m.mustLive(arrowID)
	if err != nil {
		return err
	}
	target, err := m.mustLive(targetID)
	if err != nil {
		return err
	}
	if arrow.Type != models.TypeArrow || !target.Type.IsBindable() || arrowID == targetID {
		return fmt.Errorf("binding: %s %q to %s %q: %w", arrow.Type, arrowID, target.Type, targetID, ErrIncompatible)
	}

	other := StartBinding
	if end == StartBinding {
		other = EndBinding
	}
	if len(arrow.Points) == 2 && Target(arrow, other) == targetID {
		return fmt.Errorf("binding: %q: %w", arrowID, ErrSameTarget)
	}

	old := Target(arrow, end)
	m.ed.Update(arrowID, func(e *models.Element) { Set(e, end, targetID) })
	if old != "" && old != targetID {
		m.releaseArrow(arrowID, old)
	}
	m.RebindBound(arrowID)
	return nil
}

// UnbindArrow detaches one end of an arrow.
func (m *Maintainer) UnbindArrow(arrowID string, end Property) error {
	if end != StartBinding && end != EndBinding {
		return fmt.Errorf("binding: %v is not an arrow end: %w", end, ErrIncompatible)
	}
	arrow, err := m.mustLive(arrowID)
	if err != nil {
		return err
	}
	old := Target(arrow, end)
	if old == "" {
		return nil
	}
	m.ed.Update(arrowID, func(e *models.Element) { Clear(e, end) })
	m.releaseArrow(arrowID, old)
	return nil
}

// releaseArrow drops the arrow from target's list unless the arrow still
// references target through its other end.
func (m *Maintainer) releaseArrow(arrowID, target string) {
	m.Release(arrowID, target)
}

// Release drops id from the bound list of each former target that id no
// longer references. Targets id still points at are left alone.
func (m *Maintainer) Release(id string, former ...string) {
	el, ok := m.get(id)
	for _, target := range former {
		if target == "" || target == id || (ok && References(el, target)) {
			continue
		}
		if counterpart, live := m.live(target); live && counterpart.HasBoundElement(id) {
			m.removeEntry(target, id)
		}
	}
}

// BindLabel makes labelID the label of containerID. Labels the container held
// before are released, as is the label's previous container.
func (m *Maintainer) BindLabel(labelID, containerID string) error {
	label, err := m.mustLive(labelID)
	if err != nil {
		return err
	}
	container, err := m.mustLive(containerID)
	if err != nil {
		return err
	}
	if label.Type != models.TypeText || !container.Type.IsTextContainer() {
		return fmt.Errorf("binding: %s %q into %s %q: %w", label.Type, labelID, container.Type, containerID, ErrIncompatible)
	}

	if prev := models.Deref(label.ContainerID); prev != "" && prev != containerID {
		if _, ok := m.live(prev); ok {
			m.removeEntry(prev, labelID)
		}
	}
	for _, entry := range container.BoundElements {
		if entry.Type != models.BoundText || entry.ID == labelID {
			continue
		}
		m.ed.Update(entry.ID, func(e *models.Element) {
			if models.Deref(e.ContainerID) == containerID {
				e.ContainerID = nil
			}
		})
		m.removeEntry(containerID, entry.ID)
	}
	m.ed.Update(labelID, func(e *models.Element) { e.ContainerID = models.StringPtr(containerID) })
	m.addEntry(containerID, models.BoundElement{ID: labelID, Type: models.BoundText})
	return nil
}

// UnbindLabel detaches a label from its container.
func (m *Maintainer) UnbindLabel(labelID string) error {
	label, err := m.mustLive(labelID)
	if err != nil {
		return err
	}
	container := models.Deref(label.ContainerID)
	if container == "" {
		return nil
	}
	m.ed.Update(labelID, func(e *models.Element) { e.ContainerID = nil })
	if _, ok := m.live(container); ok {
		m.removeEntry(container, labelID)
	}
	return nil
}
