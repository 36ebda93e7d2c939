package bridge

import (
	"github.com/roverlang/rover/httpcore"
	"github.com/roverlang/rover/value"
)

// Response is the typed response-builder object spec.md §4.3 allows a
// handler to return instead of a bare table, covering the builder
// kinds spec.md §6 lists: JSON, Text, HTML, Redirect, Error, NoContent.
type Response struct {
	status      int
	contentType string
	body        []byte
	jsonBody    value.Value
	isJSON      bool
	headers     []httpcore.KV
}

// Header attaches an extra response header (security headers, custom
// API headers) and returns r for chaining.
func (r *Response) Header(name, value string) *Response {
	r.headers = append(r.headers, httpcore.KV{Key: []byte(name), Value: []byte(value)})
	return r
}

// ContentType reports the builder's content type, so middleware that
// post-processes a handler's return value (e.g. import-map injection,
// which only applies to HTML) can inspect the shape without knowing
// which builder produced it.
func (r *Response) ContentType() string {
	return r.contentType
}

// Body returns the builder's raw (non-JSON) body bytes, for
// middleware that rewrites HTML responses after the handler runs.
// Returns false for a JSON-shaped builder, whose body is only
// materialized at assemble time.
func (r *Response) Body() ([]byte, bool) {
	if r.isJSON {
		return nil, false
	}
	return r.body, true
}

// WithBody returns a copy of r with its body replaced, used by
// middleware that rewrites an HTML body in place (e.g. injecting a
// script tag before the closing </head>).
func (r *Response) WithBody(body []byte) *Response {
	cp := *r
	cp.body = body
	return &cp
}

// JSON builds a response whose body is v serialized as JSON.
func JSON(status int, v value.Value) *Response {
	return &Response{status: status, contentType: "application/json; charset=utf-8", jsonBody: v, isJSON: true}
}

// Text builds a plain-text response.
func Text(status int, body string) *Response {
	return &Response{status: status, contentType: "text/plain; charset=utf-8", body: []byte(body)}
}

// HTML builds an HTML response.
func HTML(status int, body string) *Response {
	return &Response{status: status, contentType: "text/html; charset=utf-8", body: []byte(body)}
}

// Redirect builds a 3xx response carrying a Location header.
func Redirect(status int, location string) *Response {
	return (&Response{status: status}).Header("Location", location)
}

// Error builds a JSON error-shaped response: {"error": message}.
func Error(status int, message string) *Response {
	t := value.NewTable()
	t.SetField("error", value.String(message))
	return JSON(status, value.TableValue(t))
}

// NoContent builds a 204 with no body.
func NoContent() *Response {
	return &Response{status: 204}
}

func (r *Response) assemble(respBuf []byte) httpcore.Response {
	if !r.isJSON {
		return httpcore.Response{Status: r.status, ContentType: r.contentType, Body: r.body, ExtraHeaders: r.headers}
	}
	body, err := value.NewEncoder().Encode(respBuf[:0], r.jsonBody)
	if err != nil {
		return httpcore.Response{Status: 500, ContentType: "application/json; charset=utf-8",
			Body: []byte(`{"error":"serialization failed"}`)}
	}
	return httpcore.Response{Status: r.status, ContentType: r.contentType, Body: body, ExtraHeaders: r.headers}
}
