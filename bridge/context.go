// Package bridge runs script handlers against a matched route,
// marshals request data into the lazily-populated accessors scripts
// see, and serializes handler return values back into an httpcore
// response.
package bridge

import (
	"github.com/roverlang/rover/httpcore"
	"github.com/roverlang/rover/value"
)

// RequestContext is the per-request facade handed to a handler. Every
// accessor is built lazily on first call and cached for the rest of
// the request.
type RequestContext struct {
	Method []byte
	Path   []byte

	parts *httpcore.RequestParts

	headers value.Value
	hasHdr  bool
	query   value.Value
	hasQry  bool
	params  value.Value
	hasParm bool
	routeParams []httpcore.Param

	bodyWrap *Body

	statusOverride   int
	hasStatusOverride bool

	extraHeaders []httpcore.KV

	scratch map[string]any
}

// Set stores a value in the per-request scratch map, the channel
// spec.md §6 gives middleware for passing data down to the handler
// (an authenticated user, a rate-limit decision, a request id).
func (c *RequestContext) Set(key string, v any) {
	if c.scratch == nil {
		c.scratch = make(map[string]any)
	}
	c.scratch[key] = v
}

// Get retrieves a value previously stored with Set. ok is false if no
// value was ever stored under key.
func (c *RequestContext) Get(key string) (v any, ok bool) {
	if c.scratch == nil {
		return nil, false
	}
	v, ok = c.scratch[key]
	return v, ok
}

// NewRequestContext wraps an already-parsed RequestParts plus the
// route parameters captured by the router's match. No copy of parts
// is taken; the context is only valid for the duration of the current
// dispatch.
func NewRequestContext(parts *httpcore.RequestParts, routeParams []httpcore.Param) *RequestContext {
	return &RequestContext{
		Method:      parts.Method,
		Path:        parts.Path,
		parts:       parts,
		routeParams: routeParams,
	}
}

// Headers builds (once) a table of header name→value pairs in
// declaration order, duplicates preserved as repeated entries in the
// table's array part alongside their key — scripts read headers via
// .get(name) conceptually, but the in-process representation here is
// a Table honoring spec.md's "ordered list of (name,value) byte
// pairs, duplicates allowed".
func (c *RequestContext) Headers() value.Value {
	if c.hasHdr {
		return c.headers
	}
	t := value.NewTable()
	for i := 0; i < c.parts.Headers.Len(); i++ {
		kv := c.parts.Headers.At(i)
		entry := value.NewTable()
		entry.SetField("name", value.String(string(kv.Key)))
		entry.SetField("value", value.String(string(kv.Value)))
		t.Append(value.TableValue(entry))
	}
	c.headers = value.TableValue(t)
	c.hasHdr = true
	return c.headers
}

// Query builds (once) a table of decoded query parameters.
func (c *RequestContext) Query() value.Value {
	if c.hasQry {
		return c.query
	}
	t := value.NewTable()
	for i := 0; i < c.parts.Query.Len(); i++ {
		kv := c.parts.Query.At(i)
		t.SetField(urlDecode(string(kv.Key)), value.String(urlDecode(string(kv.Value))))
	}
	c.query = value.TableValue(t)
	c.hasQry = true
	return c.query
}

// Params builds (once) a table of route parameters, URL-decoding each
// value lazily as spec.md §4.2 requires ("the match returns raw byte
// ranges; decoding happens lazily when the handler reads params()").
func (c *RequestContext) Params() value.Value {
	if c.hasParm {
		return c.params
	}
	t := value.NewTable()
	for _, p := range c.routeParams {
		t.SetField(p.Name, value.String(urlDecode(string(p.Value))))
	}
	c.params = value.TableValue(t)
	c.hasParm = true
	return c.params
}

// Body returns the lazily-wrapped body accessor exposing
// .json()/.text()/.bytes().
func (c *RequestContext) Body() *Body {
	if c.bodyWrap == nil {
		c.bodyWrap = &Body{raw: c.parts.Body}
	}
	return c.bodyWrap
}

// Status overrides the default status code a response builder would
// otherwise choose, mirroring the script-facing `status(code[, body])`
// builder form described in spec.md §4.3/§6.
func (c *RequestContext) Status(code int) {
	c.statusOverride = code
	c.hasStatusOverride = true
}

func (c *RequestContext) statusOr(def int) int {
	if c.hasStatusOverride {
		return c.statusOverride
	}
	return def
}

// SetHeader queues an extra response header to be emitted regardless
// of which return-value shape the handler ultimately produces. This is
// the hook Middleware implementations (security headers, rate-limit
// Retry-After) use, since they run before the handler's return value
// is known.
func (c *RequestContext) SetHeader(name, value string) {
	c.extraHeaders = append(c.extraHeaders, httpcore.KV{Key: []byte(name), Value: []byte(value)})
}

// urlDecode performs percent-decoding and "+"-as-space decoding for
// query/param values. Malformed escapes pass through unmodified rather
// than erroring, matching how most script-facing web layers behave.
func urlDecode(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '+':
			out = append(out, ' ')
		case '%':
			if i+2 < len(s) {
				if hi, ok := hexVal(s[i+1]); ok {
					if lo, ok := hexVal(s[i+2]); ok {
						out = append(out, hi<<4|lo)
						i += 2
						continue
					}
				}
			}
			out = append(out, s[i])
		default:
			out = append(out, s[i])
		}
	}
	return string(out)
}

func hexVal(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}
