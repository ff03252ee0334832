package docstore

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Field reads a dotted field path ("budget.monthly") from data.
func Field(data map[string]any, field string) (any, bool) {
	var cur any = data
	for _, part := range strings.Split(field, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// setField writes value at a dotted field path, creating intermediate maps.
func setField(data map[string]any, field string, value any) {
	parts := strings.Split(field, ".")
	m := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := asMap(m[part])
		if !ok {
			next = map[string]any{}
		}
		m[part] = next
		m = next
	}
	m[parts[len(parts)-1]] = value
}

func deleteField(data map[string]any, field string) {
	parts := strings.Split(field, ".")
	m := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := asMap(m[part])
		if !ok {
			return
		}
		m = next
	}
	delete(m, parts[len(parts)-1])
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}

// CloneData deep copies maps and slices so callers never share mutable
// state with a store.
func CloneData(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneData(t)
	case map[any]any:
		m, _ := asMap(t)
		return CloneData(m)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}

// compareValues orders two field values. Numbers of any Go numeric type
// compare numerically, strings lexically, bools false<true, times
// chronologically. ok is false when the values are not comparable.
func compareValues(a, b any) (cmp int, ok bool) {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		if !bok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	}
	return 0, false
}

func valuesEqual(a, b any) bool {
	if c, ok := compareValues(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case inexactFloat:
		return n.InexactFloat64(), true
	}
	return 0, false
}

// inexactFloat is implemented by exact decimal types used as filter values.
type inexactFloat interface {
	InexactFloat64() float64
}

// typeRank gives values of different kinds a stable order so sorting never
// depends on map iteration: missing < null < bool < number < string < time < other.
func typeRank(v any, present bool) int {
	if !present {
		return 0
	}
	if v == nil {
		return 1
	}
	if _, ok := toFloat(v); ok {
		return 3
	}
	switch v.(type) {
	case bool:
		return 2
	case string:
		return 4
	case time.Time:
		return 5
	}
	return 6
}
