// Package binding keeps the two-way references between bindable elements
// (shapes, frames) and bound elements (connectors, labels) consistent.
//
// A bound element points at its counterparts through a closed set of
// properties; a bindable element lists the elements bound to it. Maintainer
// repairs one side from the other, and Check reports pairs that disagree.
package binding

import (
	"fmt"

	"github.com/starford/vellum/internal/models"
)

// Property is an outgoing reference held by a bound element.
type Property uint8

const (
	FrameID Property = iota
	ContainerID
	StartBinding
	EndBinding

	propertyCount
)

// Properties lists every binding property.
var Properties = [propertyCount]Property{FrameID, ContainerID, StartBinding, EndBinding}

func (p Property) String() string {
	switch p {
	case FrameID:
		return "frameId"
	case ContainerID:
		return "containerId"
	case StartBinding:
		return "startBinding"
	case EndBinding:
		return "endBinding"
	}
	return fmt.Sprintf("Property(%d)", uint8(p))
}

// Field returns the element field that stores p.
func (p Property) Field() models.Field {
	switch p {
	case FrameID:
		return models.FieldFrameID
	case ContainerID:
		return models.FieldContainerID
	case StartBinding:
		return models.FieldStartBinding
	case EndBinding:
		return models.FieldEndBinding
	}
	panic(fmt.Sprintf("binding: unhandled property %v", p))
}

// Target returns the id that el references through p, or "".
func Target(el *models.Element, p Property) string {
	switch p {
	case FrameID:
		return models.Deref(el.FrameID)
	case ContainerID:
		return models.Deref(el.ContainerID)
	case StartBinding:
		if el.StartBinding != nil {
			return el.StartBinding.ElementID
		}
		return ""
	case EndBinding:
		if el.EndBinding != nil {
			return el.EndBinding.ElementID
		}
		return ""
	}
	panic(fmt.Sprintf("binding: unhandled property %v", p))
}

// Clear removes the reference held through p.
func Clear(el *models.Element, p Property) {
	switch p {
	case FrameID:
		el.FrameID = nil
	case ContainerID:
		el.ContainerID = nil
	case StartBinding:
		el.StartBinding = nil
	case EndBinding:
		el.EndBinding = nil
	default:
		panic(fmt.Sprintf("binding: unhandled property %v", p))
	}
}

// Set points p at id. Point bindings keep their focus and gap when only the
// target changes.
func Set(el *models.Element, p Property, id string) {
	switch p {
	case FrameID:
		el.FrameID = models.StringPtr(id)
	case ContainerID:
		el.ContainerID = models.StringPtr(id)
	case StartBinding:
		el.StartBinding = retarget(el.StartBinding, id)
	case EndBinding:
		el.EndBinding = retarget(el.EndBinding, id)
	default:
		panic(fmt.Sprintf("binding: unhandled property %v", p))
	}
}

func retarget(b *models.PointBinding, id string) *models.PointBinding {
	if b == nil {
		return &models.PointBinding{ElementID: id}
	}
	c := *b
	c.ElementID = id
	return &c
}

// References reports whether el points at id through any property other than
// FrameID.
func References(el *models.Element, id string) bool {
	for _, p := range Properties {
		if p != FrameID && Target(el, p) == id {
			return true
		}
	}
	return false
}

// accepts reports whether counterpart can be the target of p.
func accepts(p Property, counterpart *models.Element) bool {
	switch p {
	case FrameID:
		return counterpart.Type.IsFrame()
	case ContainerID:
		return counterpart.Type.IsTextContainer()
	case StartBinding, EndBinding:
		return counterpart.Type.IsBindable()
	}
	return false
}

// LabelPolicy decides which label survives when a container lists several.
type LabelPolicy string

const (
	// LabelLatest keeps the most recently added label.
	LabelLatest LabelPolicy = "latest"
	// LabelEarliest keeps the first label.
	LabelEarliest LabelPolicy = "earliest"
)

// ParseLabelPolicy maps a configuration value to a policy. Empty means latest.
func ParseLabelPolicy(s string) (LabelPolicy, error) {
	switch LabelPolicy(s) {
	case "", LabelLatest:
		return LabelLatest, nil
	case LabelEarliest:
		return LabelEarliest, nil
	}
	return "", fmt.Errorf("binding: unknown label policy %q", s)
}
