package change

import (
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/starford/vellum/internal/delta"
	"github.com/starford/vellum/internal/models"
)

// Wire format: partials are objects keyed by field name, element deltas are
// grouped by kind and keep their insertion order.

type wireDelta struct {
	Deleted  map[string]json.RawMessage `json:"deleted"`
	Inserted map[string]json.RawMessage `json:"inserted"`
}

type wireSet = orderedmap.OrderedMap[string, wireDelta]

type wireElements struct {
	Added   *wireSet `json:"added"`
	Removed *wireSet `json:"removed"`
	Updated *wireSet `json:"updated"`
}

type wireChange struct {
	Elements *ElementsChange `json:"elements"`
	AppState *AppStateChange `json:"appState"`
}

type field interface {
	comparable
	fmt.Stringer
}

func encodePartial[F field](p delta.Partial[F]) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(p))
	for f, v := range p {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("change: encode %v: %w", f, err)
		}
		out[f.String()] = raw
	}
	return out, nil
}

func decodePartial[F comparable](raw map[string]json.RawMessage, parse func(string) (F, error), decode func(F, json.RawMessage) (any, error)) (delta.Partial[F], error) {
	out := make(delta.Partial[F], len(raw))
	for name, r := range raw {
		f, err := parse(name)
		if err != nil {
			return nil, err
		}
		v, err := decode(f, r)
		if err != nil {
			return nil, fmt.Errorf("change: decode %s: %w", name, err)
		}
		out[f] = v
	}
	return out, nil
}

func encodeDelta[F field](d delta.Delta[F]) (wireDelta, error) {
	del, err := encodePartial(d.Deleted)
	if err != nil {
		return wireDelta{}, err
	}
	ins, err := encodePartial(d.Inserted)
	if err != nil {
		return wireDelta{}, err
	}
	return wireDelta{Deleted: del, Inserted: ins}, nil
}

func decodeElementDelta(w wireDelta) (ElementDelta, error) {
	del, err := decodePartial(w.Deleted, models.ParseField, models.DecodeValue)
	if err != nil {
		return ElementDelta{}, err
	}
	ins, err := decodePartial(w.Inserted, models.ParseField, models.DecodeValue)
	if err != nil {
		return ElementDelta{}, err
	}
	return delta.New(del, ins), nil
}

// MarshalJSON implements json.Marshaler.
func (c *ElementsChange) MarshalJSON() ([]byte, error) {
	var sets [len(Kinds)]*wireSet
	for _, k := range Kinds {
		sets[k] = orderedmap.New[string, wireDelta]()
		var err error
		c.Each(k, func(id string, d ElementDelta) bool {
			var w wireDelta
			w, err = encodeDelta(d)
			if err != nil {
				return false
			}
			sets[k].Set(id, w)
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(wireElements{Added: sets[Added], Removed: sets[Removed], Updated: sets[Updated]})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *ElementsChange) UnmarshalJSON(data []byte) error {
	w := wireElements{
		Added:   orderedmap.New[string, wireDelta](),
		Removed: orderedmap.New[string, wireDelta](),
		Updated: orderedmap.New[string, wireDelta](),
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("change: %w", err)
	}
	decoded := newElementsChange()
	for k, set := range map[Kind]*wireSet{Added: w.Added, Removed: w.Removed, Updated: w.Updated} {
		if set == nil {
			continue
		}
		for p := set.Oldest(); p != nil; p = p.Next() {
			d, err := decodeElementDelta(p.Value)
			if err != nil {
				return fmt.Errorf("change: %v %q: %w", k, p.Key, err)
			}
			decoded.put(k, p.Key, d)
		}
	}
	*c = *decoded
	return nil
}

// MarshalJSON implements json.Marshaler.
func (c *AppStateChange) MarshalJSON() ([]byte, error) {
	w, err := encodeDelta(c.d)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *AppStateChange) UnmarshalJSON(data []byte) error {
	var w wireDelta
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("change: %w", err)
	}
	del, err := decodePartial(w.Deleted, models.ParseAppStateField, models.DecodeAppStateValue)
	if err != nil {
		return err
	}
	ins, err := decodePartial(w.Inserted, models.ParseAppStateField, models.DecodeAppStateValue)
	if err != nil {
		return err
	}
	c.d = delta.New(del, ins)
	return nil
}

// Marshal encodes a Change.
func Marshal(c Change) ([]byte, error) {
	return json.Marshal(wireChange{Elements: c.elements(), AppState: c.appState()})
}

// Unmarshal decodes a Change written by Marshal.
func Unmarshal(data []byte) (Change, error) {
	w := wireChange{Elements: EmptyElementsChange(), AppState: EmptyAppStateChange()}
	if err := json.Unmarshal(data, &w); err != nil {
		return Change{}, err
	}
	return Change{Elements: w.Elements, AppState: w.AppState}, nil
}
