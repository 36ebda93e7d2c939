package value

import (
	"math"
	"testing"
)

func TestEncodeArray(t *testing.T) {
	tbl := NewTable()
	tbl.Append(Int(1))
	tbl.Append(Int(2))
	tbl.Append(Int(3))

	buf, err := NewEncoder().Encode(nil, TableValue(tbl))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if got := string(buf); got != "[1,2,3]" {
		t.Errorf("Encode() = %q, want %q", got, "[1,2,3]")
	}
}

func TestEncodeObject(t *testing.T) {
	tbl := NewTable()
	tbl.SetField("message", String("Hello"))

	buf, err := NewEncoder().Encode(nil, TableValue(tbl))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if got := string(buf); got != `{"message":"Hello"}` {
		t.Errorf("Encode() = %q, want %q", got, `{"message":"Hello"}`)
	}
}

func TestEncodeOmitsNilFields(t *testing.T) {
	tbl := NewTable()
	tbl.SetField("a", Int(1))
	tbl.SetField("b", Nil)
	tbl.SetField("c", Int(3))

	buf, err := NewEncoder().Encode(nil, TableValue(tbl))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if got := string(buf); got != `{"a":1,"c":3}` {
		t.Errorf("Encode() = %q, want %q", got, `{"a":1,"c":3}`)
	}
}

func TestEncodeNonFiniteFloatErrors(t *testing.T) {
	_, err := NewEncoder().Encode(nil, Float(math.NaN()))
	if err == nil {
		t.Fatal("Encode() expected error for NaN, got nil")
	}
}

func TestEncodeDepthCap(t *testing.T) {
	inner := NewTable()
	inner.SetField("x", Int(1))
	outer := inner
	for i := 0; i < DefaultMaxDepth+5; i++ {
		next := NewTable()
		next.SetField("child", TableValue(outer))
		outer = next
	}
	_, err := (&Encoder{MaxDepth: DefaultMaxDepth}).Encode(nil, TableValue(outer))
	if err == nil {
		t.Fatal("Encode() expected depth-cap error, got nil")
	}
}

func TestDecodeObject(t *testing.T) {
	src := `{"name":"Ada Lovelace","age":36,"tags":["math","computing"],"active":true,"note":null}`
	v, err := NewDecoder([]byte(src)).Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	tbl, ok := v.Table()
	if !ok {
		t.Fatalf("Parse() did not produce a table")
	}
	if got := tbl.Field("name").String(); got != "Ada Lovelace" {
		t.Errorf("name = %q", got)
	}
	tags, ok := tbl.Field("tags").Table()
	if !ok || tags.Len() != 2 {
		t.Errorf("tags = %#v", tags)
	}
}

func TestEncodeInvalidUTF8Rejected(t *testing.T) {
	bad := Value{kind: KindString, s: string([]byte{0xff, 0xfe})}
	_, err := NewEncoder().Encode(nil, bad)
	if err == nil {
		t.Fatal("Encode() expected error for invalid UTF-8, got nil")
	}
}
