package models

import (
	"encoding/json"
	"fmt"

	"github.com/starford/vellum/internal/delta"
)

// Field names an element property addressable by deltas.
type Field uint8

// Element fields. Bookkeeping fields come last and are never part of a delta.
const (
	FieldType Field = iota
	FieldX
	FieldY
	FieldWidth
	FieldHeight
	FieldAngle
	FieldStrokeColor
	FieldBackgroundColor
	FieldOpacity
	FieldLocked
	FieldLink
	FieldGroupIDs
	FieldFrameID
	FieldIndex
	FieldBoundElements
	FieldIsDeleted
	FieldPoints
	FieldStartBinding
	FieldEndBinding
	FieldText
	FieldFontSize
	FieldContainerID

	FieldVersion
	FieldVersionNonce
	FieldUpdated

	fieldCount
)

var fieldNames = [fieldCount]string{
	FieldType:            "type",
	FieldX:               "x",
	FieldY:               "y",
	FieldWidth:           "width",
	FieldHeight:          "height",
	FieldAngle:           "angle",
	FieldStrokeColor:     "strokeColor",
	FieldBackgroundColor: "backgroundColor",
	FieldOpacity:         "opacity",
	FieldLocked:          "locked",
	FieldLink:            "link",
	FieldGroupIDs:        "groupIds",
	FieldFrameID:         "frameId",
	FieldIndex:           "index",
	FieldBoundElements:   "boundElements",
	FieldIsDeleted:       "isDeleted",
	FieldPoints:          "points",
	FieldStartBinding:    "startBinding",
	FieldEndBinding:      "endBinding",
	FieldText:            "text",
	FieldFontSize:        "fontSize",
	FieldContainerID:     "containerId",
	FieldVersion:         "version",
	FieldVersionNonce:    "versionNonce",
	FieldUpdated:         "updated",
}

// Fields lists every element field in declaration order.
func Fields() []Field {
	out := make([]Field, 0, fieldCount)
	for f := range fieldCount {
		out = append(out, f)
	}
	return out
}

func (f Field) String() string {
	if f < fieldCount {
		return fieldNames[f]
	}
	return fmt.Sprintf("Field(%d)", uint8(f))
}

// IsBookkeeping reports whether f only tracks mutation history.
func (f Field) IsBookkeeping() bool {
	return f == FieldVersion || f == FieldVersionNonce || f == FieldUpdated
}

// ParseField returns the field with the given JSON name.
func ParseField(name string) (Field, error) {
	for f, n := range fieldNames {
		if n == name {
			return Field(f), nil
		}
	}
	return 0, fmt.Errorf("models: unknown element field %q", name)
}

// Value returns the current value of f. Slices and pointers are shared with e;
// callers must not modify them.
func (e *Element) Value(f Field) any {
	switch f {
	case FieldType:
		return e.Type
	case FieldX:
		return e.X
	case FieldY:
		return e.Y
	case FieldWidth:
		return e.Width
	case FieldHeight:
		return e.Height
	case FieldAngle:
		return e.Angle
	case FieldStrokeColor:
		return e.StrokeColor
	case FieldBackgroundColor:
		return e.BackgroundColor
	case FieldOpacity:
		return e.Opacity
	case FieldLocked:
		return e.Locked
	case FieldLink:
		return e.Link
	case FieldGroupIDs:
		return e.GroupIDs
	case FieldFrameID:
		return e.FrameID
	case FieldIndex:
		return e.Index
	case FieldBoundElements:
		return e.BoundElements
	case FieldIsDeleted:
		return e.IsDeleted
	case FieldPoints:
		return e.Points
	case FieldStartBinding:
		return e.StartBinding
	case FieldEndBinding:
		return e.EndBinding
	case FieldText:
		return e.Text
	case FieldFontSize:
		return e.FontSize
	case FieldContainerID:
		return e.ContainerID
	case FieldVersion:
		return e.Version
	case FieldVersionNonce:
		return e.VersionNonce
	case FieldUpdated:
		return e.Updated
	}
	panic(fmt.Sprintf("models: unhandled field %v", f))
}

// SetValue assigns v to f. A nil v resets the field to its zero value. Values of
// the wrong type are rejected with an error.
func (e *Element) SetValue(f Field, v any) error {
	var ok bool
	switch f {
	case FieldType:
		e.Type, ok = as[ElementType](v)
	case FieldX:
		e.X, ok = as[float64](v)
	case FieldY:
		e.Y, ok = as[float64](v)
	case FieldWidth:
		e.Width, ok = as[float64](v)
	case FieldHeight:
		e.Height, ok = as[float64](v)
	case FieldAngle:
		e.Angle, ok = as[float64](v)
	case FieldStrokeColor:
		e.StrokeColor, ok = as[string](v)
	case FieldBackgroundColor:
		e.BackgroundColor, ok = as[string](v)
	case FieldOpacity:
		e.Opacity, ok = as[int](v)
	case FieldLocked:
		e.Locked, ok = as[bool](v)
	case FieldLink:
		e.Link, ok = as[string](v)
	case FieldGroupIDs:
		e.GroupIDs, ok = as[[]string](v)
	case FieldFrameID:
		e.FrameID, ok = as[*string](v)
	case FieldIndex:
		e.Index, ok = as[string](v)
	case FieldBoundElements:
		e.BoundElements, ok = as[[]BoundElement](v)
	case FieldIsDeleted:
		e.IsDeleted, ok = as[bool](v)
	case FieldPoints:
		e.Points, ok = as[[]Point](v)
	case FieldStartBinding:
		e.StartBinding, ok = as[*PointBinding](v)
	case FieldEndBinding:
		e.EndBinding, ok = as[*PointBinding](v)
	case FieldText:
		e.Text, ok = as[string](v)
	case FieldFontSize:
		e.FontSize, ok = as[float64](v)
	case FieldContainerID:
		e.ContainerID, ok = as[*string](v)
	case FieldVersion:
		e.Version, ok = as[int](v)
	case FieldVersionNonce:
		e.VersionNonce, ok = as[int64](v)
	case FieldUpdated:
		e.Updated, ok = as[int64](v)
	default:
		panic(fmt.Sprintf("models: unhandled field %v", f))
	}
	if !ok {
		return fmt.Errorf("models: field %v: unexpected value type %T", f, v)
	}
	return nil
}

// DecodeValue decodes a JSON value for f into the type SetValue expects.
func DecodeValue(f Field, raw json.RawMessage) (any, error) {
	switch f {
	case FieldType:
		return decode[ElementType](raw)
	case FieldX, FieldY, FieldWidth, FieldHeight, FieldAngle, FieldFontSize:
		return decode[float64](raw)
	case FieldStrokeColor, FieldBackgroundColor, FieldLink, FieldIndex, FieldText:
		return decode[string](raw)
	case FieldOpacity, FieldVersion:
		return decode[int](raw)
	case FieldLocked, FieldIsDeleted:
		return decode[bool](raw)
	case FieldGroupIDs:
		return decode[[]string](raw)
	case FieldFrameID, FieldContainerID:
		return decode[*string](raw)
	case FieldBoundElements:
		return decode[[]BoundElement](raw)
	case FieldPoints:
		return decode[[]Point](raw)
	case FieldStartBinding, FieldEndBinding:
		return decode[*PointBinding](raw)
	case FieldVersionNonce, FieldUpdated:
		return decode[int64](raw)
	}
	return nil, fmt.Errorf("models: cannot decode field %v", f)
}

func decode[T any](raw json.RawMessage) (any, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// as converts v to T; nil yields the zero value.
func as[T any](v any) (T, bool) {
	if v == nil {
		var zero T
		return zero, true
	}
	t, ok := v.(T)
	return t, ok
}

// SameContent reports whether a and b agree on every non-bookkeeping field.
func SameContent(a, b *Element) bool {
	if a.ID != b.ID {
		return false
	}
	for f := range fieldCount {
		if f.IsBookkeeping() {
			continue
		}
		if !delta.ShallowEqual(a.Value(f), b.Value(f)) {
			return false
		}
	}
	return true
}

// Partial returns every non-bookkeeping field of e.
func (e *Element) Partial() delta.Partial[Field] {
	p := make(delta.Partial[Field], fieldCount)
	for f := range fieldCount {
		if !f.IsBookkeeping() {
			p[f] = e.Value(f)
		}
	}
	return p
}

// Apply writes every field of p into e.
func (e *Element) Apply(p delta.Partial[Field]) error {
	for f, v := range p {
		if err := e.SetValue(f, v); err != nil {
			return err
		}
	}
	return nil
}
