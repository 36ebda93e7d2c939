package value

import (
	"fmt"
	"strconv"
)

// Decoder parses JSON bytes directly into Values/Tables. It builds no
// intermediate tree of generic interface{} nodes — a JSON array becomes
// a Table with an integer-indexed run, a JSON object becomes a Table
// with string-keyed fields, appended to directly as the scan proceeds.
type Decoder struct {
	data     []byte
	pos      int
	MaxDepth int
}

// NewDecoder returns a Decoder over data with the spec's default depth cap.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data, MaxDepth: DefaultMaxDepth}
}

// Parse decodes exactly one JSON value, erroring on trailing non-whitespace.
func (d *Decoder) Parse() (Value, error) {
	d.skipSpace()
	v, err := d.parseValue(0)
	if err != nil {
		return Nil, err
	}
	d.skipSpace()
	if d.pos != len(d.data) {
		return Nil, fmt.Errorf("value: trailing data at offset %d", d.pos)
	}
	return v, nil
}

func (d *Decoder) skipSpace() {
	for d.pos < len(d.data) {
		switch d.data[d.pos] {
		case ' ', '\t', '\n', '\r':
			d.pos++
		default:
			return
		}
	}
}

func (d *Decoder) parseValue(depth int) (Value, error) {
	if depth > d.maxDepth() {
		return Nil, &ErrDepthExceeded{Max: d.maxDepth()}
	}
	d.skipSpace()
	if d.pos >= len(d.data) {
		return Nil, fmt.Errorf("value: unexpected end of JSON input")
	}
	switch c := d.data[d.pos]; {
	case c == '{':
		return d.parseObject(depth)
	case c == '[':
		return d.parseArray(depth)
	case c == '"':
		s, err := d.parseString()
		if err != nil {
			return Nil, err
		}
		return String(s), nil
	case c == 't':
		return d.parseLiteral("true", Bool(true))
	case c == 'f':
		return d.parseLiteral("false", Bool(false))
	case c == 'n':
		return d.parseLiteral("null", Nil)
	case c == '-' || (c >= '0' && c <= '9'):
		return d.parseNumber()
	default:
		return Nil, fmt.Errorf("value: unexpected character %q at offset %d", c, d.pos)
	}
}

func (d *Decoder) maxDepth() int {
	if d.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return d.MaxDepth
}

func (d *Decoder) parseLiteral(lit string, v Value) (Value, error) {
	if d.pos+len(lit) > len(d.data) || string(d.data[d.pos:d.pos+len(lit)]) != lit {
		return Nil, fmt.Errorf("value: invalid literal at offset %d", d.pos)
	}
	d.pos += len(lit)
	return v, nil
}

func (d *Decoder) parseNumber() (Value, error) {
	start := d.pos
	isFloat := false
	if d.pos < len(d.data) && d.data[d.pos] == '-' {
		d.pos++
	}
	for d.pos < len(d.data) && d.data[d.pos] >= '0' && d.data[d.pos] <= '9' {
		d.pos++
	}
	if d.pos < len(d.data) && d.data[d.pos] == '.' {
		isFloat = true
		d.pos++
		for d.pos < len(d.data) && d.data[d.pos] >= '0' && d.data[d.pos] <= '9' {
			d.pos++
		}
	}
	if d.pos < len(d.data) && (d.data[d.pos] == 'e' || d.data[d.pos] == 'E') {
		isFloat = true
		d.pos++
		if d.pos < len(d.data) && (d.data[d.pos] == '+' || d.data[d.pos] == '-') {
			d.pos++
		}
		for d.pos < len(d.data) && d.data[d.pos] >= '0' && d.data[d.pos] <= '9' {
			d.pos++
		}
	}
	text := string(d.data[start:d.pos])
	if text == "" || text == "-" {
		return Nil, fmt.Errorf("value: invalid number at offset %d", start)
	}
	if !isFloat {
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return Int(i), nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Nil, fmt.Errorf("value: invalid number %q: %w", text, err)
	}
	return Float(f), nil
}

func (d *Decoder) parseString() (string, error) {
	if d.data[d.pos] != '"' {
		return "", fmt.Errorf("value: expected string at offset %d", d.pos)
	}
	d.pos++
	var out []byte
	for {
		if d.pos >= len(d.data) {
			return "", fmt.Errorf("value: unterminated string")
		}
		c := d.data[d.pos]
		if c == '"' {
			d.pos++
			return string(out), nil
		}
		if c == '\\' {
			d.pos++
			if d.pos >= len(d.data) {
				return "", fmt.Errorf("value: unterminated escape")
			}
			switch esc := d.data[d.pos]; esc {
			case '"', '\\', '/':
				out = append(out, esc)
				d.pos++
			case 'n':
				out = append(out, '\n')
				d.pos++
			case 't':
				out = append(out, '\t')
				d.pos++
			case 'r':
				out = append(out, '\r')
				d.pos++
			case 'b':
				out = append(out, '\b')
				d.pos++
			case 'f':
				out = append(out, '\f')
				d.pos++
			case 'u':
				if d.pos+5 > len(d.data) {
					return "", fmt.Errorf("value: truncated unicode escape")
				}
				r, err := strconv.ParseUint(string(d.data[d.pos+1:d.pos+5]), 16, 32)
				if err != nil {
					return "", fmt.Errorf("value: invalid unicode escape: %w", err)
				}
				out = appendRune(out, rune(r))
				d.pos += 5
			default:
				return "", fmt.Errorf("value: invalid escape %q", esc)
			}
			continue
		}
		out = append(out, c)
		d.pos++
	}
}

func appendRune(buf []byte, r rune) []byte {
	var tmp [4]byte
	n := encodeRune(tmp[:], r)
	return append(buf, tmp[:n]...)
}

// encodeRune is utf8.EncodeRune without importing unicode/utf8 twice in
// this file's hot path; kept local for clarity.
func encodeRune(buf []byte, r rune) int {
	switch {
	case r < 0x80:
		buf[0] = byte(r)
		return 1
	case r < 0x800:
		buf[0] = 0xC0 | byte(r>>6)
		buf[1] = 0x80 | byte(r)&0x3F
		return 2
	case r < 0x10000:
		buf[0] = 0xE0 | byte(r>>12)
		buf[1] = 0x80 | byte(r>>6)&0x3F
		buf[2] = 0x80 | byte(r)&0x3F
		return 3
	default:
		buf[0] = 0xF0 | byte(r>>18)
		buf[1] = 0x80 | byte(r>>12)&0x3F
		buf[2] = 0x80 | byte(r>>6)&0x3F
		buf[3] = 0x80 | byte(r)&0x3F
		return 4
	}
}

func (d *Decoder) parseArray(depth int) (Value, error) {
	d.pos++ // consume '['
	t := NewTable()
	d.skipSpace()
	if d.pos < len(d.data) && d.data[d.pos] == ']' {
		d.pos++
		return TableValue(t), nil
	}
	for {
		v, err := d.parseValue(depth + 1)
		if err != nil {
			return Nil, err
		}
		t.Append(v)
		d.skipSpace()
		if d.pos >= len(d.data) {
			return Nil, fmt.Errorf("value: unterminated array")
		}
		switch d.data[d.pos] {
		case ',':
			d.pos++
		case ']':
			d.pos++
			return TableValue(t), nil
		default:
			return Nil, fmt.Errorf("value: expected ',' or ']' at offset %d", d.pos)
		}
	}
}

func (d *Decoder) parseObject(depth int) (Value, error) {
	d.pos++ // consume '{'
	t := NewTable()
	d.skipSpace()
	if d.pos < len(d.data) && d.data[d.pos] == '}' {
		d.pos++
		return TableValue(t), nil
	}
	for {
		d.skipSpace()
		key, err := d.parseString()
		if err != nil {
			return Nil, err
		}
		d.skipSpace()
		if d.pos >= len(d.data) || d.data[d.pos] != ':' {
			return Nil, fmt.Errorf("value: expected ':' at offset %d", d.pos)
		}
		d.pos++
		v, err := d.parseValue(depth + 1)
		if err != nil {
			return Nil, err
		}
		t.SetField(key, v)
		d.skipSpace()
		if d.pos >= len(d.data) {
			return Nil, fmt.Errorf("value: unterminated object")
		}
		switch d.data[d.pos] {
		case ',':
			d.pos++
		case '}':
			d.pos++
			return TableValue(t), nil
		default:
			return Nil, fmt.Errorf("value: expected ',' or '}' at offset %d", d.pos)
		}
	}
}
