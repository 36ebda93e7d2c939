package value

// Table is the single aggregate type scripts see for both arrays and
// objects. It keeps an ordered, integer-indexed element list (1-based,
// as in the host scripting language) separate from an ordered
// string-keyed field list, so lookups on either side stay O(1)/O(n)
// without ever needing to guess at a key's "shape".
type Table struct {
	arr    []Value // arr[i] holds key i+1
	fkeys  []string
	fields map[string]Value
}

// NewTable returns an empty table ready for use.
func NewTable() *Table {
	return &Table{fields: make(map[string]Value)}
}

// Len reports the length of the contiguous integer-indexed run starting
// at 1. A nil stored at index i breaks contiguity at i.
func (t *Table) Len() int {
	for i, v := range t.arr {
		if v.IsNil() {
			return i
		}
	}
	return len(t.arr)
}

// SetIndex stores v at the 1-based integer index i, growing the
// backing slice with Nil holes as needed.
func (t *Table) SetIndex(i int, v Value) {
	if i < 1 {
		return
	}
	for len(t.arr) < i {
		t.arr = append(t.arr, Nil)
	}
	t.arr[i-1] = v
}

// Index returns the value stored at 1-based index i, or Nil if unset.
func (t *Table) Index(i int) Value {
	if i < 1 || i > len(t.arr) {
		return Nil
	}
	return t.arr[i-1]
}

// Append adds v at the next integer index (len(arr)+1).
func (t *Table) Append(v Value) {
	t.arr = append(t.arr, v)
}

// SetField stores v under the string key k, preserving first-insertion
// order for re-emission (headers and query parameters rely on this).
func (t *Table) SetField(k string, v Value) {
	if t.fields == nil {
		t.fields = make(map[string]Value)
	}
	if _, exists := t.fields[k]; !exists {
		t.fkeys = append(t.fkeys, k)
	}
	t.fields[k] = v
}

// Field returns the value stored under k, or Nil if absent.
func (t *Table) Field(k string) Value {
	if t.fields == nil {
		return Nil
	}
	return t.fields[k]
}

// HasArrayOnly reports whether the table has no string-keyed fields and
// its integer-indexed run has no gaps — the condition for JSON array
// serialization (spec §4.3 JSON serialization rules).
func (t *Table) HasArrayOnly() bool {
	return len(t.fkeys) == 0 && t.Len() == len(t.arr)
}

// FieldKeys returns the string keys in insertion order.
func (t *Table) FieldKeys() []string { return t.fkeys }

// ArrayValues returns the full backing slice, including any trailing
// Nil holes past the contiguous run.
func (t *Table) ArrayValues() []Value { return t.arr }
