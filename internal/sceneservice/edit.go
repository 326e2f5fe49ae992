package sceneservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/binding"
	"github.com/starford/vellum/internal/fractional"
	"github.com/starford/vellum/internal/models"
	"github.com/starford/vellum/internal/parser"
)

// editFunc mutates a private copy of the scene through ed; m writes through the same editor.
type editFunc func(ed *models.Editor, m *binding.Maintainer) error

// edit runs fn against a copy of the scene and commits the result as one
// history entry.
func (s *Service) edit(id string, fn editFunc) (*SceneDetail, error) {
	sess, err := s.open(id)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	elements, state := sess.capture.Snapshot()
	ed := models.NewEditor(elements.Clone())
	if err := fn(ed, binding.NewMaintainer(ed, s.opts.LabelPolicy)); err != nil {
		return nil, bindingError(err)
	}
	if _, err := s.record(sess, ed.Elements(), state); err != nil {
		return nil, err
	}
	return detail(sess), nil
}

func bindingError(err error) error {
	if errors.Is(err, binding.ErrIncompatible) || errors.Is(err, binding.ErrSameTarget) {
		return fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err)
	}
	return err
}

func mustLive(ed *models.Editor, id string) (*models.Element, error) {
	el, ok := ed.Elements().Get(id)
	if !ok || el.IsDeleted {
		return nil, fmt.Errorf("element %q: %w", id, apperr.ErrNotFound)
	}
	return el, nil
}

// AddElement appends el on top of the scene. An empty id is generated; the
// order key is always assigned. References el carries are mirrored on its
// counterparts.
func (s *Service) AddElement(_ context.Context, id string, el *models.Element) (*SceneDetail, error) {
	el = el.Clone()
	if el.ID == "" {
		el.ID = models.NewID()
	}
	if err := parser.ValidateElements([]*models.Element{el}); err != nil {
		return nil, err
	}
	el.Index = ""
	el.IsDeleted = false
	el = adoptVersions(nil, []*models.Element{el})[0]

	return s.edit(id, func(ed *models.Editor, m *binding.Maintainer) error {
		if ed.Elements().Has(el.ID) {
			return fmt.Errorf("element %q: %w", el.ID, apperr.ErrAlreadyExists)
		}
		ed.Put(el)
		fixed, _ := fractional.SyncInvalidIndices(ed.Elements().Slice())
		ed.Elements().Replace(fixed)
		m.Rebind(el.ID)
		s.redrawAround(ed, el.ID)
		return nil
	})
}

// BindArrow attaches the "start" or "end" of an arrow to target.
func (s *Service) BindArrow(_ context.Context, id, arrowID, targetID, end string) (*SceneDetail, error) {
	p, err := parseEnd(end)
	if err != nil {
		return nil, err
	}
	return s.edit(id, func(_ *models.Editor, m *binding.Maintainer) error {
		return m.BindArrow(arrowID, targetID, p)
	})
}

// UnbindArrow detaches one end of an arrow.
func (s *Service) UnbindArrow(_ context.Context, id, arrowID, end string) (*SceneDetail, error) {
	p, err := parseEnd(end)
	if err != nil {
		return nil, err
	}
	return s.edit(id, func(_ *models.Editor, m *binding.Maintainer) error {
		return m.UnbindArrow(arrowID, p)
	})
}

func parseEnd(end string) (binding.Property, error) {
	switch end {
	case "start":
		return binding.StartBinding, nil
	case "end":
		return binding.EndBinding, nil
	}
	return 0, fmt.Errorf("%w: arrow end must be start or end, got %q", apperr.ErrInvalidInput, end)
}

// BindLabel makes a text element the label of a container and centers it.
func (s *Service) BindLabel(_ context.Context, id, labelID, containerID string) (*SceneDetail, error) {
	return s.edit(id, func(ed *models.Editor, m *binding.Maintainer) error {
		if err := m.BindLabel(labelID, containerID); err != nil {
			return err
		}
		s.redrawAround(ed, labelID)
		return nil
	})
}

// DeleteElement marks an element deleted together with its labels and
// releases every binding it takes part in.
func (s *Service) DeleteElement(_ context.Context, id, elementID string) (*SceneDetail, error) {
	return s.edit(id, func(ed *models.Editor, m *binding.Maintainer) error {
		el, err := mustLive(ed, elementID)
		if err != nil {
			return err
		}
		doomed := []string{elementID}
		for _, entry := range el.BoundElements {
			if entry.Type == models.BoundText {
				doomed = append(doomed, entry.ID)
			}
		}
		for _, d := range doomed {
			ed.Update(d, func(e *models.Element) { e.IsDeleted = true })
		}
		for _, d := range doomed {
			m.Unbind(d)
		}
		return nil
	})
}

// MoveElement translates an element; its labels follow.
func (s *Service) MoveElement(_ context.Context, id, elementID string, dx, dy float64) (*SceneDetail, error) {
	return s.edit(id, func(ed *models.Editor, _ *binding.Maintainer) error {
		if _, err := mustLive(ed, elementID); err != nil {
			return err
		}
		ed.Update(elementID, func(e *models.Element) {
			e.X += dx
			e.Y += dy
		})
		s.redrawAround(ed, elementID)
		return nil
	})
}

// redrawAround lays out the labels attached to id, or id itself when it is a
// label.
func (s *Service) redrawAround(ed *models.Editor, id string) {
	elements := ed.Elements()
	el, ok := elements.Get(id)
	if !ok {
		return
	}
	if container := models.Deref(el.ContainerID); el.Type == models.TypeText && container != "" {
		if c, ok := elements.Get(container); ok {
			s.opts.Layout.RedrawBoundingBox(el, c, elements, ed.Update)
		}
		return
	}
	for _, entry := range el.BoundElements {
		if entry.Type != models.BoundText {
			continue
		}
		if label, ok := elements.Get(entry.ID); ok {
			s.opts.Layout.RedrawBoundingBox(label, el, elements, ed.Update)
		}
	}
}
