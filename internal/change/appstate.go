package change

import (
	"maps"

	"github.com/starford/vellum/internal/delta"
	"github.com/starford/vellum/internal/models"
)

// AppStateDelta is the field difference of the observed app state.
type AppStateDelta = delta.Delta[models.AppStateField]

// AppStateChange is the selection and view level change.
type AppStateChange struct {
	d AppStateDelta
}

// NewAppStateChange wraps an explicit delta.
func NewAppStateChange(d AppStateDelta) *AppStateChange {
	return &AppStateChange{d: delta.New(d.Deleted, d.Inserted)}
}

// EmptyAppStateChange returns a change with no fields.
func EmptyAppStateChange() *AppStateChange {
	return &AppStateChange{d: delta.Empty[models.AppStateField]()}
}

// CalculateAppStateChange diffs two app states. Selection sets are stored as
// the ids that left and joined the selection.
func CalculateAppStateChange(prev, next models.AppState) *AppStateChange {
	d := delta.Calculate(appStatePartial(prev), appStatePartial(next), delta.WithPostProcess(selectionDifference))
	return &AppStateChange{d: d}
}

func appStatePartial(s models.AppState) delta.Partial[models.AppStateField] {
	p := make(delta.Partial[models.AppStateField])
	for _, f := range models.AppStateFields() {
		p[f] = s.Value(f)
	}
	return p
}

func selectionDifference(deleted, inserted delta.Partial[models.AppStateField]) (delta.Partial[models.AppStateField], delta.Partial[models.AppStateField]) {
	for _, f := range []models.AppStateField{models.AppSelectedElementIDs, models.AppSelectedGroupIDs} {
		if !deleted.Has(f) || !inserted.Has(f) {
			continue
		}
		prev, _ := deleted[f].(map[string]bool)
		next, _ := inserted[f].(map[string]bool)
		left, joined := setDifference(prev, next), setDifference(next, prev)
		if len(left) == 0 && len(joined) == 0 {
			delete(deleted, f)
			delete(inserted, f)
			continue
		}
		deleted[f], inserted[f] = left, joined
	}
	return deleted, inserted
}

// setDifference returns the selected keys of a missing from b.
func setDifference(a, b map[string]bool) map[string]bool {
	out := map[string]bool{}
	for k, v := range a {
		if v && !b[k] {
			out[k] = true
		}
	}
	return out
}

// Delta returns the underlying delta.
func (c *AppStateChange) Delta() AppStateDelta {
	return c.d
}

// IsEmpty reports whether the change carries no fields.
func (c *AppStateChange) IsEmpty() bool {
	return c.d.IsEmpty()
}

// Inverse returns the change that undoes c.
func (c *AppStateChange) Inverse() *AppStateChange {
	return &AppStateChange{d: c.d.Inverse()}
}

// ApplyTo replays c on s. References to deleted or missing elements are
// filtered out of the result; the returned flag reports whether anything that
// survived the filter differs from s.
func (c *AppStateChange) ApplyTo(s models.AppState, elements *models.ElementsMap) (models.AppState, bool, error) {
	next := s.Clone()
	for f, v := range c.d.Inserted {
		switch f {
		case models.AppSelectedElementIDs, models.AppSelectedGroupIDs:
			joined, _ := v.(map[string]bool)
			left, _ := c.d.Deleted[f].(map[string]bool)
			merged := maps.Clone(s.Value(f).(map[string]bool))
			if merged == nil {
				merged = map[string]bool{}
			}
			for k := range left {
				delete(merged, k)
			}
			for k, sel := range joined {
				if sel {
					merged[k] = true
				}
			}
			if err := next.SetValue(f, merged); err != nil {
				return s, false, err
			}
		default:
			if err := next.SetValue(f, v); err != nil {
				return s, false, err
			}
		}
	}
	for f, v := range c.d.Deleted {
		if c.d.Inserted.Has(f) {
			continue
		}
		if f == models.AppSelectedElementIDs || f == models.AppSelectedGroupIDs {
			left, _ := v.(map[string]bool)
			merged := maps.Clone(next.Value(f).(map[string]bool))
			for k := range left {
				delete(merged, k)
			}
			if err := next.SetValue(f, merged); err != nil {
				return s, false, err
			}
		}
	}

	filterInvisible(&next, elements)
	base := s.Clone()
	filterInvisible(&base, elements)
	return next, visibleAppStateDifference(base, next, c.d.Fields()), nil
}

// filterInvisible drops references that cannot be shown: selected or edited
// elements that are not live, and groups without a live member.
func filterInvisible(s *models.AppState, elements *models.ElementsMap) {
	liveGroups := make(map[string]bool)
	for el := range elements.All {
		if el.IsDeleted {
			continue
		}
		for _, g := range el.GroupIDs {
			liveGroups[g] = true
		}
	}
	isLive := func(id string) bool {
		el, ok := elements.Get(id)
		return ok && !el.IsDeleted
	}

	maps.DeleteFunc(s.SelectedElementIDs, func(id string, _ bool) bool { return !isLive(id) })
	maps.DeleteFunc(s.SelectedGroupIDs, func(g string, _ bool) bool { return !liveGroups[g] })
	if s.EditingGroupID != nil && !liveGroups[*s.EditingGroupID] {
		s.EditingGroupID = nil
	}
	if s.SelectedLinearElementID != nil && !isLive(*s.SelectedLinearElementID) {
		s.SelectedLinearElementID = nil
	}
	if s.EditingLinearElementID != nil && !isLive(*s.EditingLinearElementID) {
		s.EditingLinearElementID = nil
	}
}

// visibleAppStateDifference compares the filtered states over the touched fields.
func visibleAppStateDifference(prev, next models.AppState, fields []models.AppStateField) bool {
	for _, f := range fields {
		if !delta.ShallowEqual(prev.Value(f), next.Value(f)) {
			return true
		}
	}
	return false
}
