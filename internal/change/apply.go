package change

import (
	"log/slog"
	"maps"
	"slices"

	"github.com/starford/vellum/internal/binding"
	"github.com/starford/vellum/internal/delta"
	"github.com/starford/vellum/internal/fractional"
	"github.com/starford/vellum/internal/layout"
	"github.com/starford/vellum/internal/models"
)

// Options configures ApplyTo.
type Options struct {
	// Strict returns invariant violations instead of logging them.
	Strict      bool
	LabelPolicy binding.LabelPolicy
	// Layout defaults to layout.Centered.
	Layout layout.Redrawer
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.LabelPolicy == "" {
		o.LabelPolicy = binding.LabelLatest
	}
	if o.Layout == nil {
		o.Layout = layout.Centered{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

type applyFlags struct {
	visible bool
	zindex  bool
}

// ApplyTo replays c on top of current. Elements missing from current are
// resurrected from baseline; ids found in neither are skipped. It returns the
// next map and whether the result differs visibly from current. Neither input
// map nor c is modified.
//
// The passes run in a fixed order: deltas, binding repair, order repair, then
// label layout.
func (c *ElementsChange) ApplyTo(current, baseline *models.ElementsMap, opts Options) (*models.ElementsMap, bool, error) {
	opts = opts.withDefaults()
	if err := c.Validate(); err != nil {
		if opts.Strict {
			return current, false, err
		}
		opts.Logger.Warn("applying inconsistent change", slog.String("error", err.Error()))
	}

	ed := models.NewEditor(current.Clone())
	var flags applyFlags
	changed := make(map[string]Kind, c.Len())
	former := make(map[string][]string)
	var order []string

	for _, k := range Kinds {
		c.Each(k, func(id string, d ElementDelta) bool {
			if c.applyDelta(ed, baseline, id, d, &flags, opts) {
				if _, dup := changed[id]; !dup {
					order = append(order, id)
				}
				changed[id] = k
				if k != Removed {
					former[id] = append(former[id], formerTargets(d)...)
				}
			}
			return true
		})
	}

	repairBindings(ed, changed, former, order, opts.LabelPolicy)

	if flags.zindex {
		reorder(ed, &flags)
	}

	redrawLabels(ed, order, opts.Layout)

	return ed.Elements(), flags.visible, nil
}

// applyDelta writes the inserted side of d into a private copy of the target.
func (c *ElementsChange) applyDelta(ed *models.Editor, baseline *models.ElementsMap, id string, d ElementDelta, flags *applyFlags, opts Options) bool {
	el, ok := ed.Elements().Get(id)
	resurrected := false
	if !ok {
		el, ok = baseline.Get(id)
		if !ok {
			return false
		}
		resurrected = true
		flags.zindex = true
	}

	next := el.Clone()
	if err := mergeInto(next, d); err != nil {
		opts.Logger.Warn("skipping undecodable delta", slog.String("id", id), slog.String("error", err.Error()))
		return false
	}
	if resurrected || !models.SameContent(el, next) {
		models.Bump(next)
		ed.Put(next)
	}

	if resurrected && !next.IsDeleted {
		flags.visible = true
	}
	if !flags.visible {
		flags.visible = visibleDifference(el, d.Inserted)
	}
	if !flags.zindex {
		flags.zindex = d.Touches(models.FieldIndex) && !delta.ShallowEqual(d.Deleted[models.FieldIndex], d.Inserted[models.FieldIndex])
	}
	return true
}

// mergeInto applies inserted fields to el. Reference lists are merged with the
// deleted side removed; other fields are overwritten.
func mergeInto(el *models.Element, d ElementDelta) error {
	for f, v := range d.Inserted {
		switch f {
		case models.FieldBoundElements:
			added, _ := v.([]models.BoundElement)
			removed, _ := d.Deleted[f].([]models.BoundElement)
			el.BoundElements = delta.MergeByKey(el.BoundElements, added, removed, boundKey)
		case models.FieldGroupIDs:
			added, _ := v.([]string)
			removed, _ := d.Deleted[f].([]string)
			el.GroupIDs = delta.MergeByKey(el.GroupIDs, added, removed, stringKey)
		default:
			if err := el.SetValue(f, v); err != nil {
				return err
			}
		}
	}
	// list entries only present on the deleted side still need removing
	for f, v := range d.Deleted {
		if d.Inserted.Has(f) {
			continue
		}
		switch f {
		case models.FieldBoundElements:
			removed, _ := v.([]models.BoundElement)
			el.BoundElements = delta.MergeByKey(el.BoundElements, nil, removed, boundKey)
		case models.FieldGroupIDs:
			removed, _ := v.([]string)
			el.GroupIDs = delta.MergeByKey(el.GroupIDs, nil, removed, stringKey)
		}
	}
	return nil
}

// visibleDifference reports whether applying inserted to el can be seen. The
// order key and reference lists are judged elsewhere.
func visibleDifference(el *models.Element, inserted delta.Partial[models.Field]) bool {
	toDeleted, setsDeleted := inserted[models.FieldIsDeleted].(bool)
	switch {
	case el.IsDeleted && (!setsDeleted || toDeleted):
		return false
	case el.IsDeleted && setsDeleted && !toDeleted:
		return true
	case !el.IsDeleted && setsDeleted && toDeleted:
		return true
	}
	for f, v := range inserted {
		switch f {
		case models.FieldIndex, models.FieldBoundElements, models.FieldGroupIDs:
			continue
		}
		if !delta.ShallowEqual(el.Value(f), v) {
			return true
		}
	}
	return false
}

// formerTargets lists the elements the deleted side of d pointed at through a
// container or an arrow end.
func formerTargets(d ElementDelta) []string {
	var out []string
	for _, f := range []models.Field{models.FieldContainerID, models.FieldStartBinding, models.FieldEndBinding} {
		switch v := d.Deleted[f].(type) {
		case *string:
			if v != nil && *v != "" {
				out = append(out, *v)
			}
		case *models.PointBinding:
			if v != nil && v.ElementID != "" {
				out = append(out, v.ElementID)
			}
		}
	}
	return out
}

// repairBindings unbinds removed elements and rebinds added and updated ones.
// Former targets an element was moved away from lose their entry for it.
// Counterparts outside the changed set are written through the same editor.
func repairBindings(ed *models.Editor, changed map[string]Kind, former map[string][]string, order []string, policy binding.LabelPolicy) {
	m := binding.NewMaintainer(ed, policy)
	for _, id := range order {
		if changed[id] == Removed {
			m.UnbindBound(id)
			m.UnbindBindable(id)
		}
	}
	for _, id := range order {
		if changed[id] == Removed {
			continue
		}
		m.Release(id, former[id]...)
		el, ok := ed.Elements().Get(id)
		if !ok || el.IsDeleted {
			continue
		}
		m.RebindBound(id)
		m.RebindBindable(id)
	}
}

// reorder sorts the map by order key. Any element whose position changes makes
// the result visible and is handed to the re-keying pass, changed or not.
func reorder(ed *models.Editor, flags *applyFlags) {
	unordered := ed.Elements().Slice()
	ordered := fractional.OrderByIndex(unordered)

	moved := make(map[string]bool)
	for i := range unordered {
		if unordered[i].ID == ordered[i].ID {
			continue
		}
		moved[unordered[i].ID] = true
		moved[ordered[i].ID] = true
	}
	if len(moved) > 0 {
		flags.visible = true
	}
	synced, _ := fractional.SyncMovedIndices(ordered, moved)
	ed.Elements().Replace(synced)
}

// redrawLabels lays out every changed live label together with its container.
func redrawLabels(ed *models.Editor, order []string, r layout.Redrawer) {
	elements := ed.Elements()
	pairs := make(map[[2]string]struct{})
	visit := func(labelID, containerID string) {
		key := [2]string{labelID, containerID}
		if _, done := pairs[key]; done {
			return
		}
		pairs[key] = struct{}{}
		label, ok := elements.Get(labelID)
		if !ok || label.IsDeleted || models.Deref(label.ContainerID) != containerID {
			return
		}
		container, ok := elements.Get(containerID)
		if !ok || container.IsDeleted {
			return
		}
		r.RedrawBoundingBox(label, container, elements, ed.Update)
	}

	for _, id := range order {
		el, ok := elements.Get(id)
		if !ok || el.IsDeleted {
			continue
		}
		if el.Type == models.TypeText && el.ContainerID != nil {
			visit(el.ID, *el.ContainerID)
			continue
		}
		if el.Type.IsTextContainer() {
			for _, b := range el.BoundElements {
				if b.Type == models.BoundText {
					visit(b.ID, el.ID)
				}
			}
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
