package diff

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Kind discriminates the variants of Value.
type Kind int

const (
	// KindAbsent marks a value that does not exist on one side of a
	// comparison (missing map key, out-of-range list index, no snapshot).
	KindAbsent Kind = iota
	KindNull
	KindBool
	KindNumber
	KindText
	KindTimestamp
	KindList
	KindMap
)

// Value is a tagged variant over the universe of snapshot values: scalars,
// ordered lists and string-keyed maps. Snapshots arrive as untyped nested
// structures (decoded JSON, database rows); converting them into Value up
// front lets the change detector pattern-match on kinds instead of doing
// reflection at every node.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	t    time.Time
	list []Value
	m    map[string]Value
}

var absent = Value{kind: KindAbsent}

// Absent returns the marker for a missing value.
func Absent() Value { return absent }

// Null returns the explicit null scalar.
func Null() Value { return Value{kind: KindNull} }

// Boolean wraps a bool scalar.
func Boolean(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a numeric scalar.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// Text wraps a string scalar.
func Text(s string) Value { return Value{kind: KindText, s: s} }

// Timestamp wraps a point-in-time scalar.
func Timestamp(t time.Time) Value { return Value{kind: KindTimestamp, t: t} }

// ListOf wraps an ordered list.
func ListOf(items ...Value) Value { return Value{kind: KindList, list: items} }

// MapOf wraps a string-keyed map.
func MapOf(entries map[string]Value) Value { return Value{kind: KindMap, m: entries} }

// FromAny converts an untyped snapshot value into a Value. It accepts the
// types produced by encoding/json and by database row scans; anything it
// does not recognise is stringified rather than rejected, keeping the
// detector total over arbitrary input.
func FromAny(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case bool:
		return Boolean(x)
	case float64:
		return Number(x)
	case float32:
		return Number(float64(x))
	case int:
		return Number(float64(x))
	case int32:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case uint:
		return Number(float64(x))
	case uint64:
		return Number(float64(x))
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return Number(f)
		}
		return Text(x.String())
	case string:
		return Text(x)
	case []byte:
		return Text(string(x))
	case time.Time:
		return Timestamp(x)
	case *time.Time:
		if x == nil {
			return Null()
		}
		return Timestamp(*x)
	case []any:
		items := make([]Value, len(x))
		for i, item := range x {
			items[i] = FromAny(item)
		}
		return Value{kind: KindList, list: items}
	case map[string]any:
		m := make(map[string]Value, len(x))
		for k, item := range x {
			m[k] = FromAny(item)
		}
		return Value{kind: KindMap, m: m}
	default:
		return Text(fmt.Sprint(x))
	}
}

// FromMap converts a snapshot map; a nil map converts to the absent marker
// so callers can pass loader results straight through.
func FromMap(m map[string]any) Value {
	if m == nil {
		return Absent()
	}
	return FromAny(m)
}

// Kind reports which variant this value holds.
func (v Value) Kind() Kind { return v.kind }

// IsAbsent reports whether the value is the missing-value marker.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

func (v Value) isComposite() bool { return v.kind == KindList || v.kind == KindMap }

func (v Value) isScalar() bool {
	switch v.kind {
	case KindNull, KindBool, KindNumber, KindText, KindTimestamp:
		return true
	}
	return false
}

// keys returns the map keys in sorted order so traversal output is stable.
func (v Value) keys() []string {
	ks := make([]string, 0, len(v.m))
	for k := range v.m {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}

// Equal reports deep equality. Kinds never coerce: Number(1) and Text("1")
// are unequal, Null and Absent are unequal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindAbsent, KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.n == o.n
	case KindText:
		return v.s == o.s
	case KindTimestamp:
		return v.t.Equal(o.t)
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, val := range v.m {
			other, ok := o.m[k]
			if !ok || !val.Equal(other) {
				return false
			}
		}
		return true
	}
	return false
}

// Interface converts the value back to plain Go types for serialization.
// Absent converts to nil; the change type on the surrounding record is what
// distinguishes a missing value from an explicit null.
func (v Value) Interface() any {
	switch v.kind {
	case KindAbsent, KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindText:
		return v.s
	case KindTimestamp:
		return v.t
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, item := range v.m {
			out[k] = item.Interface()
		}
		return out
	}
	return nil
}
