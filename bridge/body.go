package bridge

import (
	"github.com/roverlang/rover/httpcore"
	"github.com/roverlang/rover/value"
)

// Body wraps the request's raw byte buffer with the three accessors
// spec.md §4.3 calls for: .json(), .text(), .bytes(). The JSON decode
// runs at most once per request; its result is cached.
type Body struct {
	raw *httpcore.Body

	decoded    value.Value
	hasDecoded bool
	decodeErr  error
}

// Bytes returns the raw body bytes, or nil if the request carried none.
func (b *Body) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.raw.Bytes()
}

// Text returns the body decoded as UTF-8 text (no validation —
// malformed sequences pass through byte-for-byte, matching how the
// runtime treats script strings as byte-addressable rather than
// Unicode-validated).
func (b *Body) Text() string {
	return string(b.Bytes())
}

// JSON parses the body directly into a value.Value via the streaming
// decoder, with no intermediate tree beyond the Value/Table structures
// themselves.
func (b *Body) JSON() (value.Value, error) {
	if b.hasDecoded {
		return b.decoded, b.decodeErr
	}
	dec := value.NewDecoder(b.Bytes())
	v, err := dec.Parse()
	b.decoded, b.decodeErr, b.hasDecoded = v, err, true
	return v, err
}
