package models

import (
	"encoding/json"
	"fmt"
	"maps"
)

// AppState is the observed selection and view state that history tracks.
type AppState struct {
	SelectedElementIDs      map[string]bool `json:"selectedElementIds" yaml:"selectedElementIds"`
	SelectedGroupIDs        map[string]bool `json:"selectedGroupIds" yaml:"selectedGroupIds"`
	EditingGroupID          *string         `json:"editingGroupId" yaml:"editingGroupId"`
	SelectedLinearElementID *string         `json:"selectedLinearElementId" yaml:"selectedLinearElementId"`
	EditingLinearElementID  *string         `json:"editingLinearElementId" yaml:"editingLinearElementId"`
	Name                    string          `json:"name" yaml:"name"`
	ViewBackgroundColor     string          `json:"viewBackgroundColor" yaml:"viewBackgroundColor"`
}

// DefaultAppState returns an empty selection with a white background.
func DefaultAppState() AppState {
	return AppState{
		SelectedElementIDs:  map[string]bool{},
		SelectedGroupIDs:    map[string]bool{},
		ViewBackgroundColor: "#ffffff",
	}
}

// Clone returns a copy sharing no maps or pointers with s.
func (s AppState) Clone() AppState {
	c := s
	c.SelectedElementIDs = maps.Clone(s.SelectedElementIDs)
	c.SelectedGroupIDs = maps.Clone(s.SelectedGroupIDs)
	c.EditingGroupID = cloneString(s.EditingGroupID)
	c.SelectedLinearElementID = cloneString(s.SelectedLinearElementID)
	c.EditingLinearElementID = cloneString(s.EditingLinearElementID)
	return c
}

// AppStateField names an app state property addressable by deltas.
type AppStateField uint8

// App state fields.
const (
	AppSelectedElementIDs AppStateField = iota
	AppSelectedGroupIDs
	AppEditingGroupID
	AppSelectedLinearElementID
	AppEditingLinearElementID
	AppName
	AppViewBackgroundColor

	appStateFieldCount
)

var appStateFieldNames = [appStateFieldCount]string{
	AppSelectedElementIDs:      "selectedElementIds",
	AppSelectedGroupIDs:        "selectedGroupIds",
	AppEditingGroupID:          "editingGroupId",
	AppSelectedLinearElementID: "selectedLinearElementId",
	AppEditingLinearElementID:  "editingLinearElementId",
	AppName:                    "name",
	AppViewBackgroundColor:     "viewBackgroundColor",
}

// AppStateFields lists every app state field.
func AppStateFields() []AppStateField {
	out := make([]AppStateField, 0, appStateFieldCount)
	for f := range appStateFieldCount {
		out = append(out, f)
	}
	return out
}

func (f AppStateField) String() string {
	if f < appStateFieldCount {
		return appStateFieldNames[f]
	}
	return fmt.Sprintf("AppStateField(%d)", uint8(f))
}

// ParseAppStateField returns the field with the given JSON name.
func ParseAppStateField(name string) (AppStateField, error) {
	for f, n := range appStateFieldNames {
		if n == name {
			return AppStateField(f), nil
		}
	}
	return 0, fmt.Errorf("models: unknown app state field %q", name)
}

// Value returns the current value of f.
func (s *AppState) Value(f AppStateField) any {
	switch f {
	case AppSelectedElementIDs:
		return s.SelectedElementIDs
	case AppSelectedGroupIDs:
		return s.SelectedGroupIDs
	case AppEditingGroupID:
		return s.EditingGroupID
	case AppSelectedLinearElementID:
		return s.SelectedLinearElementID
	case AppEditingLinearElementID:
		return s.EditingLinearElementID
	case AppName:
		return s.Name
	case AppViewBackgroundColor:
		return s.ViewBackgroundColor
	}
	panic(fmt.Sprintf("models: unhandled app state field %v", f))
}

// SetValue assigns v to f; nil resets the field.
func (s *AppState) SetValue(f AppStateField, v any) error {
	var ok bool
	switch f {
	case AppSelectedElementIDs:
		s.SelectedElementIDs, ok = as[map[string]bool](v)
	case AppSelectedGroupIDs:
		s.SelectedGroupIDs, ok = as[map[string]bool](v)
	case AppEditingGroupID:
		s.EditingGroupID, ok = as[*string](v)
	case AppSelectedLinearElementID:
		s.SelectedLinearElementID, ok = as[*string](v)
	case AppEditingLinearElementID:
		s.EditingLinearElementID, ok = as[*string](v)
	case AppName:
		s.Name, ok = as[string](v)
	case AppViewBackgroundColor:
		s.ViewBackgroundColor, ok = as[string](v)
	default:
		panic(fmt.Sprintf("models: unhandled app state field %v", f))
	}
	if !ok {
		return fmt.Errorf("models: app state field %v: unexpected value type %T", f, v)
	}
	return nil
}

// DecodeAppStateValue decodes a JSON value for f into the type SetValue expects.
func DecodeAppStateValue(f AppStateField, raw json.RawMessage) (any, error) {
	switch f {
	case AppSelectedElementIDs, AppSelectedGroupIDs:
		return decode[map[string]bool](raw)
	case AppEditingGroupID, AppSelectedLinearElementID, AppEditingLinearElementID:
		return decode[*string](raw)
	case AppName, AppViewBackgroundColor:
		return decode[string](raw)
	}
	return nil, fmt.Errorf("models: cannot decode app state field %v", f)
}
