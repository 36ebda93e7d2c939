// Package value defines the universe of values exchanged between the
// HTTP core / signal runtime and script handlers: nil, bool, int, float,
// string, and table. A table carries both an ordered integer-indexed
// element list and a string-keyed map, mirroring how the host scripting
// language represents arrays and objects with a single type.
package value

import "fmt"

// Kind tags the variant a Value currently holds.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindTable
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindTable:
		return "table"
	default:
		return "unknown"
	}
}

// Value is a tagged union over the script value universe. Zero value is Nil.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	t    *Table
}

// Nil is the canonical nil value.
var Nil = Value{kind: KindNil}

func Bool(b bool) Value     { return Value{kind: KindBool, b: b} }
func Int(i int64) Value     { return Value{kind: KindInt, i: i} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func String(s string) Value { return Value{kind: KindString, s: s} }
func TableValue(t *Table) Value {
	if t == nil {
		return Nil
	}
	return Value{kind: KindTable, t: t}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNil() bool { return v.kind == KindNil }

func (v Value) Bool() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNil:
		return false
	default:
		return true // every non-nil, non-false value is truthy
	}
}

func (v Value) Int() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindFloat:
		return int64(v.f), true
	}
	return 0, false
}

func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	}
	return 0, false
}

func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return v.s
	case KindTable:
		return "table"
	}
	return ""
}

// Table returns the underlying table and whether v held one.
func (v Value) Table() (*Table, bool) {
	if v.kind == KindTable {
		return v.t, true
	}
	return nil, false
}

// Equal implements the bitwise-equality check set_signal relies on: two
// values are equal only if they share a kind and their payloads match.
// Tables compare by identity, not deep structure — a fresh table built
// from the same data is a different value for this purpose.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNil:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f
	case KindString:
		return a.s == b.s
	case KindTable:
		return a.t == b.t
	}
	return false
}
