package fractional

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/starford/vellum/internal/models"
)

// ErrInvalidOrder indicates a key sequence that is not strictly increasing.
var ErrInvalidOrder = errors.New("invalid element order")

// ValidateIndices checks that every key is well formed and strictly above its
// predecessor. Missing and duplicate keys fail.
func ValidateIndices(keys []string) error {
	for i, k := range keys {
		if err := Validate(k); err != nil {
			return fmt.Errorf("%w: position %d: %v", ErrInvalidOrder, i, err)
		}
		if i > 0 && keys[i-1] >= k {
			return fmt.Errorf("%w: position %d: %q is not above %q", ErrInvalidOrder, i, k, keys[i-1])
		}
	}
	return nil
}

// ValidateElements runs ValidateIndices over the element keys.
func ValidateElements(elements []*models.Element) error {
	return ValidateIndices(keysOf(elements))
}

// OrderByIndex returns elements in canonical order: by key, then id. Elements
// without a valid key stay right behind their nearest keyed predecessor.
func OrderByIndex(elements []*models.Element) []*models.Element {
	type sortKey struct {
		key     string
		keyless bool
		id      string
		pos     int
	}
	keys := make([]sortKey, len(elements))
	prev := ""
	for i, el := range elements {
		if IsValid(el.Index) {
			prev = el.Index
			keys[i] = sortKey{key: el.Index, id: el.ID, pos: i}
			continue
		}
		keys[i] = sortKey{key: prev, keyless: true, pos: i}
	}
	order := make([]int, len(elements))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		ka, kb := keys[a], keys[b]
		if c := cmp.Compare(ka.key, kb.key); c != 0 {
			return c
		}
		if ka.keyless != kb.keyless {
			if ka.keyless {
				return 1
			}
			return -1
		}
		if c := cmp.Compare(ka.id, kb.id); c != 0 {
			return c
		}
		return cmp.Compare(ka.pos, kb.pos)
	})
	out := make([]*models.Element, len(elements))
	for i, j := range order {
		out[i] = elements[j]
	}
	return out
}

// SyncInvalidIndices re-keys every element whose key is missing, malformed,
// duplicated or out of order. The longest increasing run of valid keys is kept
// untouched. It returns the repaired sequence (re-keyed elements are bumped
// copies) and the ids that received a new key.
func SyncInvalidIndices(elements []*models.Element) ([]*models.Element, []string) {
	plan, err := planInvalid(keysOf(elements))
	if err != nil {
		plan = planAll(len(elements))
	}
	return applyPlan(elements, plan)
}

// SyncMovedIndices re-keys only the moved elements, treating every other key as
// fixed. Any failure falls back to SyncInvalidIndices over the whole sequence.
func SyncMovedIndices(elements []*models.Element, moved map[string]bool) ([]*models.Element, []string) {
	if len(moved) == 0 {
		if ValidateElements(elements) == nil {
			return elements, nil
		}
		return SyncInvalidIndices(elements)
	}
	keys := keysOf(elements)
	isMoved := make([]bool, len(elements))
	for i, el := range elements {
		isMoved[i] = moved[el.ID]
	}
	plan, err := planMoved(keys, isMoved)
	if err != nil {
		return SyncInvalidIndices(elements)
	}
	if err := ValidateIndices(withPlan(keys, plan)); err != nil {
		return SyncInvalidIndices(elements)
	}
	return applyPlan(elements, plan)
}

func keysOf(elements []*models.Element) []string {
	keys := make([]string, len(elements))
	for i, el := range elements {
		keys[i] = el.Index
	}
	return keys
}

func withPlan(keys []string, plan map[int]string) []string {
	out := slices.Clone(keys)
	for i, k := range plan {
		out[i] = k
	}
	return out
}

func applyPlan(elements []*models.Element, plan map[int]string) ([]*models.Element, []string) {
	if len(plan) == 0 {
		return elements, nil
	}
	out := slices.Clone(elements)
	changed := make([]string, 0, len(plan))
	for i, el := range elements {
		k, ok := plan[i]
		if !ok || k == el.Index {
			continue
		}
		c := el.Clone()
		c.Index = k
		models.Bump(c)
		out[i] = c
		changed = append(changed, el.ID)
	}
	return out, changed
}

// planAll assigns fresh keys to the whole sequence.
func planAll(n int) map[int]string {
	keys, err := NKeysBetween("", "", n)
	if err != nil {
		// unreachable for open bounds within the key space
		panic(fmt.Sprintf("fractional: cannot generate %d keys: %v", n, err))
	}
	plan := make(map[int]string, n)
	for i, k := range keys {
		plan[i] = k
	}
	return plan
}

// planInvalid keeps the longest strictly increasing subsequence of valid keys
// and fills every gap between kept keys.
func planInvalid(keys []string) (map[int]string, error) {
	keep := longestIncreasing(keys)
	plan := make(map[int]string)
	lower := ""
	for i := 0; i < len(keys); {
		if keep[i] {
			lower = keys[i]
			i++
			continue
		}
		j := i
		for j < len(keys) && !keep[j] {
			j++
		}
		upper := ""
		if j < len(keys) {
			upper = keys[j]
		}
		fresh, err := NKeysBetween(lower, upper, j-i)
		if err != nil {
			return nil, err
		}
		for n, k := range fresh {
			plan[i+n] = k
		}
		i = j
	}
	return plan, nil
}

// planMoved fills runs of moved elements between fixed neighbours. A run whose
// keys already fit between its neighbours is left alone.
func planMoved(keys []string, moved []bool) (map[int]string, error) {
	prevFixed := ""
	for i, k := range keys {
		if moved[i] {
			continue
		}
		if err := Validate(k); err != nil {
			return nil, err
		}
		if prevFixed != "" && prevFixed >= k {
			return nil, fmt.Errorf("%w: fixed %q is not above %q", ErrInvalidOrder, k, prevFixed)
		}
		prevFixed = k
	}

	plan := make(map[int]string)
	lower := ""
	for i := 0; i < len(keys); {
		if !moved[i] {
			lower = keys[i]
			i++
			continue
		}
		j := i
		for j < len(keys) && moved[j] {
			j++
		}
		upper := ""
		if j < len(keys) {
			upper = keys[j]
		}
		if !runFits(keys[i:j], lower, upper) {
			fresh, err := NKeysBetween(lower, upper, j-i)
			if err != nil {
				return nil, err
			}
			for n, k := range fresh {
				plan[i+n] = k
			}
		}
		i = j
	}
	return plan, nil
}

func runFits(run []string, lower, upper string) bool {
	prev := lower
	for _, k := range run {
		if !IsValid(k) || (prev != "" && prev >= k) {
			return false
		}
		prev = k
	}
	return upper == "" || prev == "" || prev < upper
}

// longestIncreasing marks a longest strictly increasing subsequence of valid
// keys. Ties prefer earlier positions.
func longestIncreasing(keys []string) []bool {
	var tails []int
	prev := make([]int, len(keys))
	for i, k := range keys {
		prev[i] = -1
		if !IsValid(k) {
			continue
		}
		pos := sort.Search(len(tails), func(n int) bool { return keys[tails[n]] >= k })
		if pos < len(tails) && keys[tails[pos]] == k {
			continue
		}
		if pos > 0 {
			prev[i] = tails[pos-1]
		}
		if pos == len(tails) {
			tails = append(tails, i)
		} else {
			tails[pos] = i
		}
	}
	keep := make([]bool, len(keys))
	if len(tails) == 0 {
		return keep
	}
	for i := tails[len(tails)-1]; i >= 0; i = prev[i] {
		keep[i] = true
	}
	return keep
}
