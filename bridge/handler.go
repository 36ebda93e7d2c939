package bridge

import (
	"log"
	"runtime/debug"

	"github.com/roverlang/rover/httpcore"
	"github.com/roverlang/rover/value"
)

// HandlerFunc is a script-backed route handler. It returns the kind of
// value spec.md §4.3 enumerates: a table (default JSON 200), a
// *Response builder (typed status/content-type), a string, or nil
// (204). A non-nil error is treated as an uncaught handler exception.
type HandlerFunc func(ctx *RequestContext) (any, error)

// Middleware wraps a HandlerFunc with cross-cutting behavior (rate
// limiting, security headers, session checks). External collaborators
// that used to take a buffalo.MiddlewareFunc are adapted to this
// shape instead.
type Middleware func(HandlerFunc) HandlerFunc

// HandlerTable maps a compiled route's HandlerID to the callable that
// serves it; httpcore only ever deals in HandlerIDs, never callables.
type HandlerTable struct {
	handlers []HandlerFunc
}

func NewHandlerTable() *HandlerTable {
	return &HandlerTable{}
}

// Register appends fn to the table and returns its HandlerID.
func (t *HandlerTable) Register(fn HandlerFunc) httpcore.HandlerID {
	t.handlers = append(t.handlers, fn)
	return httpcore.HandlerID(len(t.handlers) - 1)
}

// Debug controls whether Dispatch's 500 conversion includes the full
// Go error text (development) or a redacted message (production), per
// spec.md §4.3's error handling rule.
var Debug = false

// Dispatch invokes the handler for a matched route and converts its
// return value (or panic/error) into an httpcore.Response, using
// respBuf as the scratch buffer JSON serialization appends into.
func (t *HandlerTable) Dispatch(id httpcore.HandlerID, ctx *RequestContext, respBuf []byte) httpcore.Response {
	if int(id) < 0 || int(id) >= len(t.handlers) {
		return httpcore.Response{Status: 404, ContentType: "text/plain; charset=utf-8", Body: []byte("not found")}
	}

	result, err := t.invoke(t.handlers[id], ctx)
	var resp httpcore.Response
	if err != nil {
		resp = errorResponse(err, respBuf)
	} else {
		resp = serializeResult(result, ctx, respBuf)
	}
	if len(ctx.extraHeaders) > 0 {
		resp.ExtraHeaders = append(resp.ExtraHeaders, ctx.extraHeaders...)
	}
	return resp
}

// invoke recovers a panicking handler into an error, mirroring
// spec.md §4.3's "uncaught handler error is caught by the bridge".
func (t *HandlerTable) invoke(fn HandlerFunc, ctx *RequestContext) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			if Debug {
				log.Printf("Bridge: handler panic: %v\n%s", r, debug.Stack())
			} else {
				log.Printf("Bridge: handler panic: %v", r)
			}
			err = &HandlerError{Cause: r}
		}
	}()
	return fn(ctx)
}

// HandlerError wraps a recovered panic value.
type HandlerError struct{ Cause any }

func (e *HandlerError) Error() string {
	return "bridge: handler panicked"
}

func errorResponse(err error, respBuf []byte) httpcore.Response {
	if ve, ok := AsValidationError(err); ok {
		return validationErrorResponse(ve, respBuf)
	}

	log.Printf("Bridge: handler error: %v", err)
	msg := "internal server error"
	if Debug {
		msg = err.Error()
	}
	body := append(respBuf[:0], []byte(`{"error":`)...)
	body, encErr := value.NewEncoder().Encode(body, value.String(msg))
	if encErr != nil {
		body = append(respBuf[:0], []byte(`{"error":"internal server error"}`)...)
		return httpcore.Response{Status: 500, ContentType: "application/json; charset=utf-8", Body: body}
	}
	body = append(body, '}')
	return httpcore.Response{Status: 500, ContentType: "application/json; charset=utf-8", Body: body}
}

// serializeResult converts a handler's return value into a response
// per the dispatch table in spec.md §4.3 step 3-5.
func serializeResult(result any, ctx *RequestContext, respBuf []byte) httpcore.Response {
	switch v := result.(type) {
	case nil:
		return httpcore.Response{Status: ctx.statusOr(204)}
	case *Response:
		return v.assemble(respBuf)
	case string:
		return httpcore.Response{
			Status: ctx.statusOr(200), ContentType: "text/plain; charset=utf-8",
			Body: append(respBuf[:0], v...),
		}
	case value.Value:
		return jsonResponse(v, ctx.statusOr(200), respBuf)
	default:
		return jsonResponse(value.Nil, ctx.statusOr(200), respBuf)
	}
}

func jsonResponse(v value.Value, status int, respBuf []byte) httpcore.Response {
	body, err := value.NewEncoder().Encode(respBuf[:0], v)
	if err != nil {
		log.Printf("Bridge: JSON serialization error: %v", err)
		return httpcore.Response{Status: 500, ContentType: "application/json; charset=utf-8",
			Body: []byte(`{"error":"serialization failed"}`)}
	}
	return httpcore.Response{Status: status, ContentType: "application/json; charset=utf-8", Body: body}
}
