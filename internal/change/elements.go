// Package change captures document edits as invertible changes and replays
// them against the current document and the baseline snapshot.
package change

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/multierr"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/delta"
	"github.com/starford/vellum/internal/models"
)

// ElementDelta is the field difference of one element.
type ElementDelta = delta.Delta[models.Field]

// Kind classifies an element delta by its deleted flag transition.
type Kind uint8

const (
	// Added elements go from deleted (or absent) to live.
	Added Kind = iota
	// Removed elements go from live to deleted (or absent).
	Removed
	// Updated elements keep their deleted flag.
	Updated
)

// Kinds lists the kinds in application order.
var Kinds = [...]Kind{Added, Removed, Updated}

func (k Kind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Updated:
		return "updated"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

type deltas = orderedmap.OrderedMap[string, ElementDelta]

// ElementsChange is the document level change. It is built once and never
// mutated afterwards.
type ElementsChange struct {
	sets [len(Kinds)]*deltas
}

func newElementsChange() *ElementsChange {
	c := &ElementsChange{}
	for _, k := range Kinds {
		c.sets[k] = orderedmap.New[string, ElementDelta]()
	}
	return c
}

// NewElementsChange builds a change from explicit per-kind deltas. Empty
// deltas are dropped.
func NewElementsChange(added, removed, updated map[string]ElementDelta) *ElementsChange {
	c := newElementsChange()
	for k, m := range map[Kind]map[string]ElementDelta{Added: added, Removed: removed, Updated: updated} {
		for _, id := range sortedKeys(m) {
			c.put(k, id, m[id])
		}
	}
	return c
}

// EmptyElementsChange returns a change with no deltas.
func EmptyElementsChange() *ElementsChange {
	return newElementsChange()
}

func (c *ElementsChange) put(k Kind, id string, d ElementDelta) {
	if d.IsEmpty() {
		return
	}
	c.sets[k].Set(id, d)
}

// Each calls fn for every delta of kind k in insertion order until fn returns false.
func (c *ElementsChange) Each(k Kind, fn func(id string, d ElementDelta) bool) {
	for p := c.sets[k].Oldest(); p != nil; p = p.Next() {
		if !fn(p.Key, p.Value) {
			return
		}
	}
}

// IDs returns the ids of kind k in insertion order.
func (c *ElementsChange) IDs(k Kind) []string {
	out := make([]string, 0, c.sets[k].Len())
	c.Each(k, func(id string, _ ElementDelta) bool {
		out = append(out, id)
		return true
	})
	return out
}

// Get returns the delta recorded for id and its kind.
func (c *ElementsChange) Get(id string) (Kind, ElementDelta, bool) {
	for _, k := range Kinds {
		if d, ok := c.sets[k].Get(id); ok {
			return k, d, true
		}
	}
	return 0, ElementDelta{}, false
}

// Len returns the number of element deltas.
func (c *ElementsChange) Len() int {
	n := 0
	for _, k := range Kinds {
		n += c.sets[k].Len()
	}
	return n
}

// IsEmpty reports whether the change carries no deltas.
func (c *ElementsChange) IsEmpty() bool {
	return c.Len() == 0
}

// Inverse returns the change that undoes c: added and removed swap places and
// every delta is inverted.
func (c *ElementsChange) Inverse() *ElementsChange {
	inv := newElementsChange()
	swap := [len(Kinds)]Kind{Added: Removed, Removed: Added, Updated: Updated}
	for _, k := range Kinds {
		c.Each(k, func(id string, d ElementDelta) bool {
			inv.put(swap[k], id, d.Inverse())
			return true
		})
	}
	return inv
}

// Validate checks that every delta agrees with its kind and that no id appears
// in more than one kind. Violations wrap apperr.ErrInvariantViolation.
func (c *ElementsChange) Validate() error {
	var err error
	seen := make(map[string]Kind)
	for _, k := range Kinds {
		c.Each(k, func(id string, d ElementDelta) bool {
			if prev, dup := seen[id]; dup {
				err = multierr.Append(err, fmt.Errorf("%w: %q is both %v and %v", apperr.ErrInvariantViolation, id, prev, k))
			}
			seen[id] = k
			if e := checkKind(k, d); e != nil {
				err = multierr.Append(err, fmt.Errorf("%w: %v %q: %s", apperr.ErrInvariantViolation, k, id, e))
			}
			return true
		})
	}
	return err
}

type violation string

func (v violation) Error() string { return string(v) }

func checkKind(k Kind, d ElementDelta) error {
	before, hasBefore := d.Deleted[models.FieldIsDeleted].(bool)
	after, hasAfter := d.Inserted[models.FieldIsDeleted].(bool)
	switch k {
	case Added:
		if !hasBefore || !hasAfter || !before || after {
			return violation("expected isDeleted true -> false")
		}
	case Removed:
		if !hasBefore || !hasAfter || before || !after {
			return violation("expected isDeleted false -> true")
		}
	case Updated:
		if d.Touches(models.FieldIsDeleted) {
			return violation("updated delta touches isDeleted")
		}
	}
	return nil
}

// CalculateElementsChange diffs two snapshots. Ids only in prev become synthetic
// removals; live ids only in next become additions; ids whose nonce changed are
// diffed field by field and classified by their deleted flag transition.
// Bookkeeping fields are never recorded.
func CalculateElementsChange(prev, next *models.ElementsMap) *ElementsChange {
	c := newElementsChange()

	for p := range prev.All {
		if next.Has(p.ID) {
			continue
		}
		deleted := p.Partial()
		deleted[models.FieldIsDeleted] = false
		inserted := delta.Partial[models.Field]{models.FieldIsDeleted: true}
		c.put(Removed, p.ID, delta.Create(deleted, inserted, stripBookkeeping))
	}

	for n := range next.All {
		p, ok := prev.Get(n.ID)
		if !ok {
			if n.IsDeleted {
				continue
			}
			deleted := delta.Partial[models.Field]{models.FieldIsDeleted: true}
			inserted := n.Partial()
			inserted[models.FieldIsDeleted] = false
			c.put(Added, n.ID, delta.Create(deleted, inserted, stripBookkeeping))
			continue
		}
		if p == n || p.VersionNonce == n.VersionNonce {
			continue
		}
		d := delta.Calculate(p.Partial(), n.Partial(), stripBookkeeping, delta.WithPostProcess(listDifference))
		switch {
		case !p.IsDeleted && n.IsDeleted:
			c.put(Removed, n.ID, d)
		case p.IsDeleted && !n.IsDeleted:
			c.put(Added, n.ID, d)
		default:
			c.put(Updated, n.ID, d)
		}
	}
	return c
}

var stripBookkeeping = delta.WithSkip(models.Field.IsBookkeeping)

// listDifference stores reference lists as the symmetric difference of their
// old and new values.
func listDifference(deleted, inserted delta.Partial[models.Field]) (delta.Partial[models.Field], delta.Partial[models.Field]) {
	if deleted.Has(models.FieldBoundElements) && inserted.Has(models.FieldBoundElements) {
		prev, _ := deleted[models.FieldBoundElements].([]models.BoundElement)
		next, _ := inserted[models.FieldBoundElements].([]models.BoundElement)
		removed, added := delta.SymmetricDifference(prev, next, boundKey)
		setOrDrop(deleted, inserted, models.FieldBoundElements, removed, added)
	}
	if deleted.Has(models.FieldGroupIDs) && inserted.Has(models.FieldGroupIDs) {
		prev, _ := deleted[models.FieldGroupIDs].([]string)
		next, _ := inserted[models.FieldGroupIDs].([]string)
		removed, added := delta.SymmetricDifference(prev, next, stringKey)
		setOrDrop(deleted, inserted, models.FieldGroupIDs, removed, added)
	}
	return deleted, inserted
}

func setOrDrop[T any](deleted, inserted delta.Partial[models.Field], f models.Field, removed, added []T) {
	if len(removed) == 0 && len(added) == 0 {
		delete(deleted, f)
		delete(inserted, f)
		return
	}
	deleted[f] = removed
	inserted[f] = added
}

func boundKey(b models.BoundElement) string { return b.ID }

func stringKey(s string) string { return s }
