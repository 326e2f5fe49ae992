package fractional

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/starford/vellum/internal/models"
)

func el(id, index string) *models.Element {
	return &models.Element{ID: id, Type: models.TypeRectangle, Index: index, Version: 1}
}

func assertIncreasing(t *testing.T, elements []*models.Element) {
	t.Helper()
	if err := ValidateElements(elements); err != nil {
		t.Fatalf("sequence not increasing: %v", err)
	}
}

func TestValidateIndices(t *testing.T) {
	if err := ValidateIndices([]string{"a0", "a1", "a1V"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, keys := range [][]string{{"a0", "a0"}, {"a1", "a0"}, {"a0", ""}, {"a0", "a00"}} {
		if err := ValidateIndices(keys); !errors.Is(err, ErrInvalidOrder) {
			t.Errorf("ValidateIndices(%v) = %v, want ErrInvalidOrder", keys, err)
		}
	}
}

func TestSyncInvalidIndices_DuplicateKeys(t *testing.T) {
	a, b := el("A", "a1"), el("B", "a1")
	out, changed := SyncInvalidIndices([]*models.Element{a, b})
	if out[0] != a {
		t.Errorf("A was replaced")
	}
	if a.Index != "a1" || a.Version != 1 {
		t.Errorf("A = %q v%d, want a1 v1", a.Index, a.Version)
	}
	if out[1].Index <= out[0].Index {
		t.Errorf("B.index %q not above A.index %q", out[1].Index, out[0].Index)
	}
	if out[1].Version != 2 {
		t.Errorf("B version = %d, want 2", out[1].Version)
	}
	if !slices.Equal(changed, []string{"B"}) {
		t.Errorf("changed = %v, want [B]", changed)
	}
	if b.Index != "a1" {
		t.Errorf("input B mutated: %q", b.Index)
	}
}

func TestSyncInvalidIndices_KeepsLongestRun(t *testing.T) {
	in := []*models.Element{el("A", "a0"), el("B", "a5"), el("C", "a1"), el("D", "a2"), el("E", "a3")}
	out, changed := SyncInvalidIndices(in)
	assertIncreasing(t, out)
	if !slices.Equal(changed, []string{"B"}) {
		t.Errorf("changed = %v, want [B]", changed)
	}
	for i, id := range []string{"A", "B", "C", "D", "E"} {
		if out[i].ID != id {
			t.Errorf("position %d = %s, want %s", i, out[i].ID, id)
		}
	}
}

func TestSyncInvalidIndices_Stable(t *testing.T) {
	in := []*models.Element{el("A", "a0"), el("B", "a1"), el("C", "a2")}
	out, changed := SyncInvalidIndices(in)
	if len(changed) != 0 {
		t.Errorf("changed = %v, want none", changed)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("element %d replaced", i)
		}
	}
}

func TestSyncInvalidIndices_Totality(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	pool := []string{"", "a0", "a1", "a2", "a3", "Zz", "b00", "a0V", "bad", "a00"}
	for round := range 200 {
		n := 1 + r.IntN(30)
		in := make([]*models.Element, n)
		for i := range in {
			in[i] = el(fmt.Sprintf("e%d", i), pool[r.IntN(len(pool))])
		}
		out, _ := SyncInvalidIndices(in)
		if err := ValidateElements(out); err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
		for i := range in {
			if out[i].ID != in[i].ID {
				t.Fatalf("round %d: relative order changed at %d", round, i)
			}
		}
	}
}

func TestSyncMovedIndices_OnlyMoved(t *testing.T) {
	in := []*models.Element{el("A", "a0"), el("M", "a5"), el("B", "a1")}
	out, changed := SyncMovedIndices(in, map[string]bool{"M": true})
	assertIncreasing(t, out)
	if !slices.Equal(changed, []string{"M"}) {
		t.Errorf("changed = %v, want [M]", changed)
	}
	if out[0] != in[0] || out[2] != in[2] {
		t.Errorf("fixed elements replaced")
	}
}

func TestSyncMovedIndices_MovedAlreadyFits(t *testing.T) {
	in := []*models.Element{el("A", "a0"), el("M", "a0V"), el("B", "a1")}
	out, changed := SyncMovedIndices(in, map[string]bool{"M": true})
	if len(changed) != 0 {
		t.Errorf("changed = %v, want none", changed)
	}
	if out[1] != in[1] {
		t.Errorf("M replaced")
	}
}

func TestSyncMovedIndices_FallbackOnInvalidNeighbours(t *testing.T) {
	// fixed neighbours are out of order, so moved-only repair cannot succeed
	in := []*models.Element{el("A", "a2"), el("M", ""), el("B", "a1")}
	out, changed := SyncMovedIndices(in, map[string]bool{"M": true})
	assertIncreasing(t, out)
	if !slices.Contains(changed, "M") {
		t.Errorf("changed = %v, want M included", changed)
	}
	if len(changed) < 2 {
		t.Errorf("changed = %v, want fallback to touch a fixed element", changed)
	}
}

func TestSyncMovedIndices_TwentyThousandKeyless(t *testing.T) {
	const n = 20000
	in := make([]*models.Element, n)
	moved := make(map[string]bool, n)
	for i := range in {
		id := fmt.Sprintf("e%05d", i)
		in[i] = el(id, "")
		moved[id] = true
	}
	out, changed := SyncMovedIndices(in, moved)
	if len(changed) != n {
		t.Fatalf("changed = %d, want %d", len(changed), n)
	}
	seen := make(map[string]bool, n)
	for i, e := range out {
		if e.Index == "" {
			t.Fatalf("element %d has no key", i)
		}
		if seen[e.Index] {
			t.Fatalf("duplicate key %q", e.Index)
		}
		seen[e.Index] = true
	}
	assertIncreasing(t, out)
}

func TestOrderByIndex(t *testing.T) {
	in := []*models.Element{
		el("W", ""),
		el("C", "a2"),
		el("X", ""),
		el("B", "a1"),
		el("A", "a1"),
		el("Y", "a1V"),
	}
	got := OrderByIndex(in)
	var ids []string
	for _, e := range got {
		ids = append(ids, e.ID)
	}
	want := []string{"W", "A", "B", "Y", "C", "X"}
	if !slices.Equal(ids, want) {
		t.Errorf("order = %v, want %v", ids, want)
	}
}
