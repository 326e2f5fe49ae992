package delta

import "reflect"

// ShallowEqual compares two field values. Comparable values use ==; pointers
// compare their pointees with ==; slices, arrays and maps compare their elements
// with ==. Nested containers are not descended into, since they are always
// replaced wholesale on mutation. Typed nils equal untyped nil.
func ShallowEqual(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case int:
		bv, ok := b.(int)
		return ok && av == bv
	case []string:
		bv, ok := b.([]string)
		if !ok {
			return isNil(b) && len(av) == 0
		}
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	}

	if isNil(a) || isNil(b) {
		return isNil(a) && isNil(b) || emptyContainer(a) && emptyContainer(b)
	}

	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Type() != rb.Type() {
		return false
	}
	switch ra.Kind() {
	case reflect.Pointer:
		if ra.Pointer() == rb.Pointer() {
			return true
		}
		return elemEqual(ra.Elem(), rb.Elem())
	case reflect.Slice, reflect.Array:
		if ra.Len() != rb.Len() {
			return false
		}
		for i := range ra.Len() {
			if !elemEqual(ra.Index(i), rb.Index(i)) {
				return false
			}
		}
		return true
	case reflect.Map:
		if ra.Len() != rb.Len() {
			return false
		}
		iter := ra.MapRange()
		for iter.Next() {
			bv := rb.MapIndex(iter.Key())
			if !bv.IsValid() || !elemEqual(iter.Value(), bv) {
				return false
			}
		}
		return true
	}
	if ra.Comparable() {
		return ra.Equal(rb)
	}
	return false
}

func elemEqual(a, b reflect.Value) bool {
	if !a.Comparable() || !b.Comparable() {
		return false
	}
	return a.Equal(b)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// emptyContainer treats nil and empty slices or maps alike.
func emptyContainer(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	}
	return false
}
