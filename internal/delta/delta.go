// Package delta computes, merges and inverts structural differences between two
// versions of a record. A record is seen as a Partial keyed by a closed field enum;
// the difference is an immutable (Deleted, Inserted) pair of partials.
package delta

import (
	"maps"
	"slices"
)

// Partial holds a subset of a record's fields.
type Partial[F comparable] map[F]any

// Clone returns a shallow copy of p.
func (p Partial[F]) Clone() Partial[F] {
	if p == nil {
		return Partial[F]{}
	}
	return maps.Clone(p)
}

// Has reports whether f is present in p.
func (p Partial[F]) Has(f F) bool {
	_, ok := p[f]
	return ok
}

// Delta is the symmetric removed/added field-value record between two versions.
type Delta[F comparable] struct {
	Deleted  Partial[F]
	Inserted Partial[F]
}

// New returns a delta over the given partials. Nil partials are replaced by empty ones.
func New[F comparable](deleted, inserted Partial[F]) Delta[F] {
	if deleted == nil {
		deleted = Partial[F]{}
	}
	if inserted == nil {
		inserted = Partial[F]{}
	}
	return Delta[F]{Deleted: deleted, Inserted: inserted}
}

// Empty returns a delta with no fields.
func Empty[F comparable]() Delta[F] {
	return New[F](nil, nil)
}

// PostProcess rewrites the computed partials, e.g. into symmetric differences.
type PostProcess[F comparable] func(deleted, inserted Partial[F]) (Partial[F], Partial[F])

type options[F comparable] struct {
	skip        func(F) bool
	postProcess PostProcess[F]
}

// Option configures Calculate.
type Option[F comparable] func(*options[F])

// WithSkip excludes fields for which skip returns true.
func WithSkip[F comparable](skip func(F) bool) Option[F] {
	return func(o *options[F]) { o.skip = skip }
}

// WithPostProcess runs fn over the computed partials.
func WithPostProcess[F comparable](fn PostProcess[F]) Option[F] {
	return func(o *options[F]) { o.postProcess = fn }
}

// Create builds a delta from two explicit partials, applying the same options as
// Calculate without diffing.
func Create[F comparable](deleted, inserted Partial[F], opts ...Option[F]) Delta[F] {
	o := collect(opts)
	deleted, inserted = deleted.Clone(), inserted.Clone()
	if o.skip != nil {
		maps.DeleteFunc(deleted, func(f F, _ any) bool { return o.skip(f) })
		maps.DeleteFunc(inserted, func(f F, _ any) bool { return o.skip(f) })
	}
	if o.postProcess != nil {
		deleted, inserted = o.postProcess(deleted, inserted)
	}
	return New(deleted, inserted)
}

// Calculate returns the fields whose values differ between prev and next. Values are
// compared by identity first, then one level deep with ShallowEqual.
func Calculate[F comparable](prev, next Partial[F], opts ...Option[F]) Delta[F] {
	o := collect(opts)
	deleted, inserted := Partial[F]{}, Partial[F]{}

	visit := func(f F) {
		if o.skip != nil && o.skip(f) {
			return
		}
		pv, pok := prev[f]
		nv, nok := next[f]
		if pok && nok && ShallowEqual(pv, nv) {
			return
		}
		if pok {
			deleted[f] = pv
		}
		if nok {
			inserted[f] = nv
		}
	}
	for f := range prev {
		visit(f)
	}
	for f := range next {
		if _, seen := prev[f]; !seen {
			visit(f)
		}
	}

	if o.postProcess != nil {
		deleted, inserted = o.postProcess(deleted, inserted)
	}
	return New(deleted, inserted)
}

func collect[F comparable](opts []Option[F]) options[F] {
	var o options[F]
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Inverse swaps the deleted and inserted partials.
func (d Delta[F]) Inverse() Delta[F] {
	return New(d.Inserted, d.Deleted)
}

// IsEmpty reports whether the delta carries no fields.
func (d Delta[F]) IsEmpty() bool {
	return len(d.Deleted) == 0 && len(d.Inserted) == 0
}

// Fields returns the union of fields touched by the delta.
func (d Delta[F]) Fields() []F {
	seen := make(map[F]struct{}, len(d.Deleted)+len(d.Inserted))
	var out []F
	for _, p := range []Partial[F]{d.Deleted, d.Inserted} {
		for f := range p {
			if _, ok := seen[f]; !ok {
				seen[f] = struct{}{}
				out = append(out, f)
			}
		}
	}
	return out
}

// Touches reports whether f appears on either side.
func (d Delta[F]) Touches(f F) bool {
	return d.Deleted.Has(f) || d.Inserted.Has(f)
}

// Equal reports whether both deltas hold the same fields with equal values.
func (d Delta[F]) Equal(other Delta[F]) bool {
	return partialEqual(d.Deleted, other.Deleted) && partialEqual(d.Inserted, other.Inserted)
}

func partialEqual[F comparable](a, b Partial[F]) bool {
	if len(a) != len(b) {
		return false
	}
	for f, av := range a {
		bv, ok := b[f]
		if !ok || !ShallowEqual(av, bv) {
			return false
		}
	}
	return true
}

// MergeObjects reconstructs a record: keys in removed are dropped from base, then
// added is overlaid. The result is a new partial.
func MergeObjects[F comparable](base, added, removed Partial[F]) Partial[F] {
	out := base.Clone()
	for f := range removed {
		delete(out, f)
	}
	maps.Copy(out, added)
	return out
}

// MergeByKey removes from base every item whose key is in removed, then appends
// the items of added that are not yet present. Order of base is kept.
func MergeByKey[T any, K comparable](base, added, removed []T, key func(T) K) []T {
	drop := make(map[K]struct{}, len(removed))
	for _, r := range removed {
		drop[key(r)] = struct{}{}
	}
	out := make([]T, 0, len(base)+len(added))
	present := make(map[K]struct{}, len(base)+len(added))
	for _, b := range base {
		k := key(b)
		if _, ok := drop[k]; ok {
			continue
		}
		present[k] = struct{}{}
		out = append(out, b)
	}
	for _, a := range added {
		k := key(a)
		if _, ok := present[k]; ok {
			continue
		}
		present[k] = struct{}{}
		out = append(out, a)
	}
	return out
}

// SymmetricDifference returns the items of prev missing from next (removed) and the
// items of next missing from prev (added), compared by key.
func SymmetricDifference[T any, K comparable](prev, next []T, key func(T) K) (removed, added []T) {
	inPrev := make(map[K]struct{}, len(prev))
	for _, p := range prev {
		inPrev[key(p)] = struct{}{}
	}
	inNext := make(map[K]struct{}, len(next))
	for _, n := range next {
		inNext[key(n)] = struct{}{}
	}
	removed, added = []T{}, []T{}
	for _, p := range prev {
		if _, ok := inNext[key(p)]; !ok {
			removed = append(removed, p)
		}
	}
	for _, n := range next {
		if _, ok := inPrev[key(n)]; !ok {
			added = append(added, n)
		}
	}
	return removed, added
}

// SortedFields returns the fields of p ordered by less.
func SortedFields[F comparable](p Partial[F], cmp func(a, b F) int) []F {
	fields := slices.Collect(maps.Keys(p))
	slices.SortFunc(fields, cmp)
	return fields
}
