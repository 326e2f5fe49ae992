// Package parser decodes and encodes scene documents in JSON or YAML.
package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/fractional"
	"github.com/starford/vellum/internal/models"
)

// Document header values.
const (
	DocumentType    = "vellum"
	DocumentVersion = 1
)

// Format is the serialization of a scene document.
type Format string

// Formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf picks the format from a file name. Anything that is not YAML is JSON.
func FormatOf(path string) Format {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		return FormatYAML
	}
	return FormatJSON
}

// ParseFormat validates a user supplied format name. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", apperr.ErrInvalidInput, s)
}

// Document is the on-disk shape of a scene.
type Document struct {
	Type     string            `json:"type" yaml:"type"`
	Version  int               `json:"version" yaml:"version"`
	Name     string            `json:"name,omitempty" yaml:"name,omitempty"`
	Elements []*models.Element `json:"elements" yaml:"elements"`
	AppState *models.AppState  `json:"appState,omitempty" yaml:"appState,omitempty"`
}

// Validate checks the header. Elements are checked by Parse.
func (d *Document) Validate() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.Type, validation.In(DocumentType)),
		validation.Field(&d.Version, validation.Min(0), validation.Max(DocumentVersion)),
	)
}

// Result holds a decoded scene.
type Result struct {
	Name     string
	Elements []*models.Element
	AppState models.AppState
	// Reindexed lists elements whose order key was missing or invalid and got
	// a new one.
	Reindexed []string
}

var elementTypes = func() []any {
	out := make([]any, len(models.ElementTypes))
	for i, t := range models.ElementTypes {
		out[i] = t
	}
	return out
}()

// Parse decodes data, validates every element and assigns order keys where
// they are missing or out of order. Element order in the document is the
// z-order.
func Parse(data []byte, format Format) (*Result, error) {
	var doc Document
	if err := decode(data, format, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err)
	}
	if err := ValidateElements(doc.Elements); err != nil {
		return nil, err
	}

	state := models.DefaultAppState()
	if doc.AppState != nil {
		state = doc.AppState.Clone()
		state.Normalize()
	}
	name := doc.Name
	if name == "" {
		name = state.Name
	}

	elements, reindexed := fractional.SyncInvalidIndices(doc.Elements)
	return &Result{
		Name:      name,
		Elements:  elements,
		AppState:  state,
		Reindexed: reindexed,
	}, nil
}

// ValidateElements checks ids, types and value ranges of every element and
// rejects duplicate ids. All problems are reported together.
func ValidateElements(elements []*models.Element) error {
	var errs error
	seen := make(map[string]struct{}, len(elements))
	for i, el := range elements {
		if el == nil {
			errs = multierr.Append(errs, fmt.Errorf("elements[%d]: null element", i))
			continue
		}
		if err := validateElement(el); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("elements[%d]: %w", i, err))
			continue
		}
		if _, dup := seen[el.ID]; dup {
			errs = multierr.Append(errs, fmt.Errorf("elements[%d]: duplicate id %q", i, el.ID))
			continue
		}
		seen[el.ID] = struct{}{}
	}
	if errs != nil {
		return fmt.Errorf("%w: %w", apperr.ErrInvalidInput, errs)
	}
	return nil
}

func validateElement(el *models.Element) error {
	return validation.ValidateStruct(el,
		validation.Field(&el.ID, validation.Required, validation.Length(1, 128)),
		validation.Field(&el.Type, validation.Required, validation.In(elementTypes...)),
		validation.Field(&el.Opacity, validation.Min(0), validation.Max(100)),
		validation.Field(&el.Version, validation.Min(0)),
	)
}

// Encode serializes a scene as a document in the given format.
func Encode(name string, elements []*models.Element, state models.AppState, format Format) ([]byte, error) {
	doc := Document{
		Type:     DocumentType,
		Version:  DocumentVersion,
		Name:     name,
		Elements: elements,
		AppState: &state,
	}
	if doc.Elements == nil {
		doc.Elements = []*models.Element{}
	}
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(&doc); err != nil {
			return nil, fmt.Errorf("parser: encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("parser: encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	default:
		out, err := json.MarshalIndent(&doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("parser: encode json: %w", err)
		}
		return append(out, '\n'), nil
	}
}

func decode(data []byte, format Format, doc *Document) error {
	if format == FormatYAML {
		return yaml.Unmarshal(data, doc)
	}
	return json.Unmarshal(data, doc)
}
