// Package httpcore parses HTTP requests directly out of a
// connection's read buffer, matches them against a compiled route
// table, and assembles responses for vectored write.
package httpcore

// KV is one header or query entry. Both Key and Value are byte-slice
// views into the connection's frozen read buffer — nothing here is
// copied during parsing.
type KV struct {
	Key   []byte
	Value []byte
}

// kvList is the small ordered list headers and query parameters are
// stored in. Inline capacity is 4: the vast majority of requests carry
// no more than that, so the common case never allocates.
type kvList struct {
	inline [4]KV
	n      int
	extra  []KV
}

func (l *kvList) append(k, v []byte) {
	if l.n < len(l.inline) {
		l.inline[l.n] = KV{Key: k, Value: v}
		l.n++
		return
	}
	l.extra = append(l.extra, KV{Key: k, Value: v})
}

func (l *kvList) len() int {
	return l.n + len(l.extra)
}

func (l *kvList) at(i int) KV {
	if i < l.n {
		return l.inline[i]
	}
	return l.extra[i-l.n]
}

// Len and At give other packages (the Script Bridge) read-only
// iteration over a KV list without exposing its inline/overflow split.
func (l *kvList) Len() int   { return l.len() }
func (l *kvList) At(i int) KV { return l.at(i) }

// Get returns the first value for a case-sensitive key match, or nil
// if absent. Header lookups use GetFold for case-insensitive matching.
func (l *kvList) Get(key string) ([]byte, bool) {
	for i := 0; i < l.len(); i++ {
		kv := l.at(i)
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return nil, false
}

func (l *kvList) GetFold(key string) ([]byte, bool) {
	for i := 0; i < l.len(); i++ {
		kv := l.at(i)
		if asciiEqualFold(kv.Key, key) {
			return kv.Value, true
		}
	}
	return nil, false
}

func asciiEqualFold(b []byte, s string) bool {
	if len(b) != len(s) {
		return false
	}
	for i := 0; i < len(b); i++ {
		c1, c2 := b[i], s[i]
		if 'A' <= c1 && c1 <= 'Z' {
			c1 += 'a' - 'A'
		}
		if 'A' <= c2 && c2 <= 'Z' {
			c2 += 'a' - 'A'
		}
		if c1 != c2 {
			return false
		}
	}
	return true
}

// Body is a reference-counted view into the read buffer (or a
// separately allocated buffer, for chunked bodies where framing must
// be stripped). Refcounting lets the pipeline recycle the underlying
// read buffer only once every holder — including a suspended handler
// task — has released it.
type Body struct {
	data    []byte
	refs    *int
	pooled  bool
	release func([]byte)
}

func newBody(data []byte) *Body {
	refs := 1
	return &Body{data: data, refs: &refs}
}

func (b *Body) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.data
}

// Retain increments the reference count; call before handing the body
// to a suspended task that outlives the current dispatch.
func (b *Body) Retain() {
	if b == nil {
		return
	}
	*b.refs++
}

// Release decrements the reference count, returning the backing
// buffer to its pool once it reaches zero.
func (b *Body) Release() {
	if b == nil {
		return
	}
	*b.refs--
	if *b.refs == 0 && b.pooled && b.release != nil {
		b.release(b.data)
	}
}

// RequestParts holds immutable slices of the connection's read buffer
// describing one fully-parsed request. None of these fields are
// copies; they are only valid until the connection's read buffer is
// next mutated (i.e. for the duration of one dispatch).
type RequestParts struct {
	Method      []byte
	Path        []byte
	Query       kvList
	Version     []byte
	Headers     kvList
	Body        *Body
	KeepAlive   bool
	ContentType []byte
}

// HeaderFold looks up a header by case-insensitive name.
func (r *RequestParts) HeaderFold(name string) ([]byte, bool) {
	return r.Headers.GetFold(name)
}
