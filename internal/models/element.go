// Package models defines the domain types for vellum scenes.
package models

import (
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"
)

// ElementType names the kind of a drawable element.
type ElementType string

// Element types.
const (
	TypeRectangle  ElementType = "rectangle"
	TypeDiamond    ElementType = "diamond"
	TypeEllipse    ElementType = "ellipse"
	TypeArrow      ElementType = "arrow"
	TypeLine       ElementType = "line"
	TypeText       ElementType = "text"
	TypeFrame      ElementType = "frame"
	TypeMagicFrame ElementType = "magicframe"
	TypeImage      ElementType = "image"
	TypeEmbeddable ElementType = "embeddable"
	TypeFreedraw   ElementType = "freedraw"
)

// ElementTypes lists every known element type.
var ElementTypes = []ElementType{
	TypeRectangle, TypeDiamond, TypeEllipse, TypeArrow, TypeLine, TypeText,
	TypeFrame, TypeMagicFrame, TypeImage, TypeEmbeddable, TypeFreedraw,
}

// IsBindable reports whether connectors can attach to elements of this type.
func (t ElementType) IsBindable() bool {
	switch t {
	case TypeRectangle, TypeDiamond, TypeEllipse, TypeImage, TypeEmbeddable, TypeFrame, TypeMagicFrame, TypeText:
		return true
	}
	return false
}

// IsTextContainer reports whether elements of this type can hold a label.
func (t ElementType) IsTextContainer() bool {
	switch t {
	case TypeRectangle, TypeDiamond, TypeEllipse, TypeArrow:
		return true
	}
	return false
}

// IsLinear reports whether elements of this type are point based connectors.
func (t ElementType) IsLinear() bool {
	return t == TypeArrow || t == TypeLine
}

// IsFrame reports whether the type is a frame.
func (t ElementType) IsFrame() bool {
	return t == TypeFrame || t == TypeMagicFrame
}

// BoundType is the role recorded in a bindable element's bound list.
type BoundType string

// Bound element types.
const (
	BoundArrow BoundType = "arrow"
	BoundText  BoundType = "text"
)

// BoundElement is an entry in a bindable element's bound list.
type BoundElement struct {
	ID   string    `json:"id" yaml:"id"`
	Type BoundType `json:"type" yaml:"type"`
}

// PointBinding attaches a connector endpoint to a bindable element.
type PointBinding struct {
	ElementID string  `json:"elementId" yaml:"elementId"`
	Focus     float64 `json:"focus" yaml:"focus"`
	Gap       float64 `json:"gap" yaml:"gap"`
}

// Point is a connector vertex relative to the element origin.
type Point [2]float64

// Element is a versioned drawable record. Elements are treated as immutable once
// they are stored in an ElementsMap; edits go through Editor.
type Element struct {
	ID              string      `json:"id" yaml:"id"`
	Type            ElementType `json:"type" yaml:"type"`
	X               float64     `json:"x" yaml:"x"`
	Y               float64     `json:"y" yaml:"y"`
	Width           float64     `json:"width" yaml:"width"`
	Height          float64     `json:"height" yaml:"height"`
	Angle           float64     `json:"angle" yaml:"angle"`
	StrokeColor     string      `json:"strokeColor" yaml:"strokeColor"`
	BackgroundColor string      `json:"backgroundColor" yaml:"backgroundColor"`
	Opacity         int         `json:"opacity" yaml:"opacity"`
	Locked          bool        `json:"locked" yaml:"locked"`
	Link            string      `json:"link,omitempty" yaml:"link,omitempty"`
	GroupIDs        []string    `json:"groupIds" yaml:"groupIds"`
	FrameID         *string     `json:"frameId" yaml:"frameId"`
	// Index is the order key; empty means the element has none yet.
	Index         string         `json:"index" yaml:"index"`
	BoundElements []BoundElement `json:"boundElements" yaml:"boundElements"`
	Version       int            `json:"version" yaml:"version"`
	VersionNonce  int64          `json:"versionNonce" yaml:"versionNonce"`
	IsDeleted     bool           `json:"isDeleted" yaml:"isDeleted"`
	Updated       int64          `json:"updated" yaml:"updated"`

	Points       []Point       `json:"points,omitempty" yaml:"points,omitempty"`
	StartBinding *PointBinding `json:"startBinding,omitempty" yaml:"startBinding,omitempty"`
	EndBinding   *PointBinding `json:"endBinding,omitempty" yaml:"endBinding,omitempty"`

	Text        string  `json:"text,omitempty" yaml:"text,omitempty"`
	FontSize    float64 `json:"fontSize,omitempty" yaml:"fontSize,omitempty"`
	ContainerID *string `json:"containerId,omitempty" yaml:"containerId,omitempty"`
}

// NewID returns a fresh, time ordered element id.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// NewNonce returns a random version nonce.
func NewNonce() int64 {
	return rand.Int64()
}

// Now returns the update timestamp in milliseconds.
func Now() int64 {
	return time.Now().UnixMilli()
}

// NewElement returns a live element of the given type with a fresh id and nonce.
func NewElement(typ ElementType) *Element {
	return &Element{
		ID:           NewID(),
		Type:         typ,
		Opacity:      100,
		StrokeColor:  "#1e1e1e",
		Version:      1,
		VersionNonce: NewNonce(),
		Updated:      Now(),
	}
}

// Clone returns a copy that shares no mutable state with e.
func (e *Element) Clone() *Element {
	c := *e
	c.GroupIDs = slices.Clone(e.GroupIDs)
	c.BoundElements = slices.Clone(e.BoundElements)
	c.Points = slices.Clone(e.Points)
	c.FrameID = cloneString(e.FrameID)
	c.ContainerID = cloneString(e.ContainerID)
	if e.StartBinding != nil {
		b := *e.StartBinding
		c.StartBinding = &b
	}
	if e.EndBinding != nil {
		b := *e.EndBinding
		c.EndBinding = &b
	}
	return &c
}

// HasBoundElement reports whether id is in e's bound list.
func (e *Element) HasBoundElement(id string) bool {
	return slices.ContainsFunc(e.BoundElements, func(b BoundElement) bool { return b.ID == id })
}

// BoundTypeOf returns the bound list role of e, if it has one.
func BoundTypeOf(e *Element) (BoundType, bool) {
	switch {
	case e.Type == TypeArrow:
		return BoundArrow, true
	case e.Type == TypeText:
		return BoundText, true
	}
	return "", false
}

// StringPtr returns a pointer to a copy of s.
func StringPtr(s string) *string {
	return &s
}

// Deref returns the pointed string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
