// Package fractional generates and repairs order keys: short base-62 strings whose
// lexicographic order encodes element stacking order without renumbering siblings.
//
// A key is an integer part followed by an optional fraction. The first character of
// the integer part encodes its length ('a'..'z' for positive lengths 2..27, 'Z'..'A'
// for negative ones), so keys stay comparable with plain string comparison.
package fractional

import (
	"errors"
	"fmt"
	"strings"
)

const digits = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const zero = '0'

// smallestInteger can never be decremented; keys using it only grow fractions.
var smallestInteger = "A" + strings.Repeat(string(zero), 26)

var (
	// ErrInvalidKey indicates a malformed order key.
	ErrInvalidKey = errors.New("invalid order key")

	// ErrKeyOrder indicates that the lower bound is not strictly below the upper bound.
	ErrKeyOrder = errors.New("lower bound must be below upper bound")

	// ErrKeySpace indicates that no further key can be generated in that direction.
	ErrKeySpace = errors.New("order key space exhausted")
)

func digitValue(c byte) int {
	return strings.IndexByte(digits, c)
}

func integerLength(head byte) (int, error) {
	switch {
	case head >= 'a' && head <= 'z':
		return int(head-'a') + 2, nil
	case head >= 'A' && head <= 'Z':
		return int('Z'-head) + 2, nil
	}
	return 0, fmt.Errorf("%w: head %q", ErrInvalidKey, head)
}

func integerPart(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	n, err := integerLength(key[0])
	if err != nil {
		return "", err
	}
	if n > len(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return key[:n], nil
}

// Validate reports whether key is a well-formed order key.
func Validate(key string) error {
	if key == smallestInteger {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	i, err := integerPart(key)
	if err != nil {
		return err
	}
	for k := 0; k < len(key); k++ {
		if k > 0 && digitValue(key[k]) < 0 {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	if f := key[len(i):]; f != "" && f[len(f)-1] == zero {
		return fmt.Errorf("%w: trailing zero in %q", ErrInvalidKey, key)
	}
	return nil
}

// IsValid reports whether key is well formed.
func IsValid(key string) bool {
	return Validate(key) == nil
}

// midpoint returns a fraction strictly between a and b, where an empty b means
// no upper bound. Neither argument may carry a trailing zero.
func midpoint(a, b string) (string, error) {
	if b != "" && a >= b {
		return "", fmt.Errorf("%w: %q >= %q", ErrKeyOrder, a, b)
	}
	if (a != "" && a[len(a)-1] == zero) || (b != "" && b[len(b)-1] == zero) {
		return "", fmt.Errorf("%w: trailing zero", ErrInvalidKey)
	}
	if b != "" {
		// common prefix, treating a as zero padded
		n := 0
		for n < len(b) {
			ca := byte(zero)
			if n < len(a) {
				ca = a[n]
			}
			if ca != b[n] {
				break
			}
			n++
		}
		if n > 0 {
			rest := ""
			if n < len(a) {
				rest = a[n:]
			}
			mid, err := midpoint(rest, b[n:])
			if err != nil {
				return "", err
			}
			return b[:n] + mid, nil
		}
	}

	digitA := 0
	if a != "" {
		digitA = digitValue(a[0])
	}
	digitB := len(digits)
	if b != "" {
		digitB = digitValue(b[0])
	}
	if digitB-digitA > 1 {
		return string(digits[(digitA+digitB+1)/2]), nil
	}
	if len(b) > 1 {
		return b[:1], nil
	}
	rest := ""
	if len(a) > 1 {
		rest = a[1:]
	}
	mid, err := midpoint(rest, "")
	if err != nil {
		return "", err
	}
	return string(digits[digitA]) + mid, nil
}

func incrementInteger(x string) (string, bool) {
	head, digs := x[0], []byte(x[1:])
	carry := true
	for i := len(digs) - 1; carry && i >= 0; i-- {
		d := digitValue(digs[i]) + 1
		if d == len(digits) {
			digs[i] = zero
		} else {
			digs[i] = digits[d]
			carry = false
		}
	}
	if !carry {
		return string(head) + string(digs), true
	}
	switch head {
	case 'Z':
		return "a" + string(zero), true
	case 'z':
		return "", false
	}
	h := head + 1
	if h > 'a' {
		digs = append(digs, zero)
	} else {
		digs = digs[:len(digs)-1]
	}
	return string(h) + string(digs), true
}

func decrementInteger(x string) (string, bool) {
	head, digs := x[0], []byte(x[1:])
	borrow := true
	for i := len(digs) - 1; borrow && i >= 0; i-- {
		d := digitValue(digs[i]) - 1
		if d == -1 {
			digs[i] = digits[len(digits)-1]
		} else {
			digs[i] = digits[d]
			borrow = false
		}
	}
	if !borrow {
		return string(head) + string(digs), true
	}
	switch head {
	case 'a':
		return "Z" + string(digits[len(digits)-1]), true
	case 'A':
		return "", false
	}
	h := head - 1
	if h < 'Z' {
		digs = append(digs, digits[len(digits)-1])
	} else {
		digs = digs[:len(digs)-1]
	}
	return string(h) + string(digs), true
}

// KeyBetween returns a key strictly between lower and upper. An empty bound means
// the sequence is open on that side.
func KeyBetween(lower, upper string) (string, error) {
	if lower != "" {
		if err := Validate(lower); err != nil {
			return "", err
		}
	}
	if upper != "" {
		if err := Validate(upper); err != nil {
			return "", err
		}
	}
	if lower != "" && upper != "" && lower >= upper {
		return "", fmt.Errorf("%w: %q >= %q", ErrKeyOrder, lower, upper)
	}

	if lower == "" {
		if upper == "" {
			return "a" + string(zero), nil
		}
		ib, _ := integerPart(upper)
		fb := upper[len(ib):]
		if ib == smallestInteger {
			mid, err := midpoint("", fb)
			if err != nil {
				return "", err
			}
			return ib + mid, nil
		}
		if ib < upper {
			return ib, nil
		}
		res, ok := decrementInteger(ib)
		if !ok {
			return "", fmt.Errorf("%w: cannot decrement %q", ErrKeySpace, ib)
		}
		return res, nil
	}

	ia, _ := integerPart(lower)
	fa := lower[len(ia):]
	if upper == "" {
		if i, ok := incrementInteger(ia); ok {
			return i, nil
		}
		mid, err := midpoint(fa, "")
		if err != nil {
			return "", err
		}
		return ia + mid, nil
	}

	ib, _ := integerPart(upper)
	fb := upper[len(ib):]
	if ia == ib {
		mid, err := midpoint(fa, fb)
		if err != nil {
			return "", err
		}
		return ia + mid, nil
	}
	i, ok := incrementInteger(ia)
	if !ok {
		return "", fmt.Errorf("%w: cannot increment %q", ErrKeySpace, ia)
	}
	if i < upper {
		return i, nil
	}
	mid, err := midpoint(fa, "")
	if err != nil {
		return "", err
	}
	return ia + mid, nil
}

// NKeysBetween returns n increasing keys strictly between lower and upper.
func NKeysBetween(lower, upper string, n int) ([]string, error) {
	switch {
	case n <= 0:
		return nil, nil
	case n == 1:
		k, err := KeyBetween(lower, upper)
		if err != nil {
			return nil, err
		}
		return []string{k}, nil
	}

	if upper == "" {
		out := make([]string, 0, n)
		c := lower
		for range n {
			next, err := KeyBetween(c, upper)
			if err != nil {
				return nil, err
			}
			out = append(out, next)
			c = next
		}
		return out, nil
	}
	if lower == "" {
		out := make([]string, n)
		c := upper
		for i := n - 1; i >= 0; i-- {
			next, err := KeyBetween(lower, c)
			if err != nil {
				return nil, err
			}
			out[i] = next
			c = next
		}
		return out, nil
	}

	mid := n / 2
	c, err := KeyBetween(lower, upper)
	if err != nil {
		return nil, err
	}
	left, err := NKeysBetween(lower, c, mid)
	if err != nil {
		return nil, err
	}
	right, err := NKeysBetween(c, upper, n-mid-1)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	out = append(out, left...)
	out = append(out, c)
	return append(out, right...), nil
}
