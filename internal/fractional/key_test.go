package fractional

import (
	"errors"
	"testing"
)

func TestKeyBetween_Cases(t *testing.T) {
	cases := []struct {
		lower, upper, want string
	}{
		{"", "", "a0"},
		{"", "a0", "Zz"},
		{"", "Zz", "Zy"},
		{"a0", "", "a1"},
		{"a1", "", "a2"},
		{"a0", "a1", "a0V"},
		{"a1", "a2", "a1V"},
		{"a0V", "a1", "a0l"},
		{"Zz", "a0", "ZzV"},
		{"Zz", "a1", "a0"},
		{"", "Y00", "Xzzz"},
		{"bzz", "", "c000"},
		{"a0", "a0V", "a0G"},
		{"a0", "a0G", "a08"},
		{"b125", "b129", "b127"},
		{"a0", "a1V", "a1"},
		{"Zz", "a01", "a0"},
		{"", "a0V", "a0"},
		{"", "b999", "b99"},
	}
	for _, c := range cases {
		got, err := KeyBetween(c.lower, c.upper)
		if err != nil {
			t.Errorf("KeyBetween(%q, %q): unexpected error: %v", c.lower, c.upper, err)
			continue
		}
		if got != c.want {
			t.Errorf("KeyBetween(%q, %q) = %q, want %q", c.lower, c.upper, got, c.want)
		}
	}
}

func TestKeyBetween_Errors(t *testing.T) {
	if _, err := KeyBetween("a0", "a0"); !errors.Is(err, ErrKeyOrder) {
		t.Errorf("equal bounds: err = %v, want ErrKeyOrder", err)
	}
	if _, err := KeyBetween("a1", "a0"); !errors.Is(err, ErrKeyOrder) {
		t.Errorf("reversed bounds: err = %v, want ErrKeyOrder", err)
	}
	if _, err := KeyBetween("", "A00000000000000000000000000"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("smallest integer: err = %v, want ErrInvalidKey", err)
	}
	if _, err := KeyBetween("a00", ""); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("trailing zero: err = %v, want ErrInvalidKey", err)
	}
	if _, err := KeyBetween("", "!x"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("bad head: err = %v, want ErrInvalidKey", err)
	}
}

func TestValidate(t *testing.T) {
	for _, k := range []string{"a0", "a0V", "Zz", "b125", "zzzzzzzzzzzzzzzzzzzzzzzzzzz"} {
		if err := Validate(k); err != nil {
			t.Errorf("Validate(%q) = %v, want nil", k, err)
		}
	}
	for _, k := range []string{"", "a", "a0 ", "b1", "a00", "A00000000000000000000000000"} {
		if IsValid(k) {
			t.Errorf("IsValid(%q) = true, want false", k)
		}
	}
}

func TestNKeysBetween_Increasing(t *testing.T) {
	bounds := [][2]string{{"", ""}, {"a0", ""}, {"", "a0"}, {"a0", "a1"}, {"a0V", "a0W"}}
	for _, b := range bounds {
		keys, err := NKeysBetween(b[0], b[1], 25)
		if err != nil {
			t.Fatalf("NKeysBetween(%q, %q): %v", b[0], b[1], err)
		}
		if len(keys) != 25 {
			t.Fatalf("len = %d, want 25", len(keys))
		}
		prev := b[0]
		for i, k := range keys {
			if !IsValid(k) {
				t.Errorf("key %d %q invalid", i, k)
			}
			if prev != "" && k <= prev {
				t.Errorf("key %d %q not above %q", i, k, prev)
			}
			prev = k
		}
		if b[1] != "" && prev >= b[1] {
			t.Errorf("last key %q not below %q", prev, b[1])
		}
	}
}

func TestNKeysBetween_Small(t *testing.T) {
	keys, err := NKeysBetween("", "", 0)
	if err != nil || keys != nil {
		t.Errorf("n=0: got %v, %v", keys, err)
	}
	keys, err = NKeysBetween("a0", "a1", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 1 || keys[0] != "a0V" {
		t.Errorf("keys = %v, want [a0V]", keys)
	}
}

func TestKeyBetween_RepeatedInsertAtFront(t *testing.T) {
	upper := "a0"
	for i := range 500 {
		k, err := KeyBetween("", upper)
		if err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
		if k >= upper {
			t.Fatalf("iteration %d: %q not below %q", i, k, upper)
		}
		upper = k
	}
}

func TestKeyBetween_RepeatedInsertBetween(t *testing.T) {
	lower, upper := "a0", "a1"
	for i := range 200 {
		k, err := KeyBetween(lower, upper)
		if err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
		if k <= lower || k >= upper {
			t.Fatalf("iteration %d: %q outside (%q, %q)", i, k, lower, upper)
		}
		upper = k
	}
}
