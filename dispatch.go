// Package rover ties the Event Engine, HTTP Pipeline, and Script
// Bridge into the single request-serving core described in spec.md
// §2, and exposes the Signal Runtime / Node Tree pair a script uses to
// build reactive UI on the same thread.
package rover

import (
	"fmt"
	"log"

	"github.com/dustin/go-humanize"

	"github.com/roverlang/rover/bridge"
	"github.com/roverlang/rover/engine"
	"github.com/roverlang/rover/httpcore"
)

// dispatcher adapts httpcore's Router and bridge's HandlerTable into
// engine.RequestHandler: it is the concrete glue the reactor calls on
// every readable connection.
type dispatcher struct {
	router       *httpcore.Router
	handlers     *bridge.HandlerTable
	maxBodySize  int
	pools        *engine.Pools
}

func newDispatcher(router *httpcore.Router, handlers *bridge.HandlerTable, maxBodySize int, pools *engine.Pools) *dispatcher {
	return &dispatcher{router: router, handlers: handlers, maxBodySize: maxBodySize, pools: pools}
}

// Handle implements engine.RequestHandler. It parses one request out
// of buf, matches it against the router, dispatches it through the
// bridge, and assembles the response bytes to hand back to the
// reactor for a vectored write.
func (d *dispatcher) Handle(conn *engine.Connection, buf []byte) (consumed int, response []byte, keepAlive bool, ok bool) {
	result := httpcore.Parse(buf, d.maxBodySize)
	switch result.Status {
	case httpcore.Incomplete:
		return 0, nil, false, true
	case httpcore.ParseError:
		body := d.parseErrorBody(result.Kind, d.pools.Header.Get())
		// Consume the whole buffer: a malformed request leaves nothing
		// recoverable to frame a follow-up request from, and keepAlive
		// false tells the reactor to close once this response flushes
		//.
		return len(buf), body, false, true
	}

	parts := result.Request
	match, found := d.router.Match(string(parts.Method), string(parts.Path))
	if !found {
		headerBuf := d.pools.Header.Get()
		body := httpcore.Assemble(httpcore.Response{
			Status: 404, ContentType: "application/json; charset=utf-8",
			Body: []byte(`{"error":"not found"}`),
		}, parts.KeepAlive, headerBuf)
		return result.Consumed, body, parts.KeepAlive, true
	}

	ctx := bridge.NewRequestContext(&parts, match.Params)
	respBuf := d.pools.Response.Get()
	resp := d.handlers.Dispatch(match.Handler, ctx, respBuf)

	headerBuf := d.pools.Header.Get()
	assembled := httpcore.Assemble(resp, parts.KeepAlive, headerBuf)
	return result.Consumed, assembled, parts.KeepAlive, true
}

func (d *dispatcher) parseErrorBody(kind httpcore.ErrorKind, headerBuf []byte) []byte {
	status := 400
	msg := fmt.Sprintf("parse error: %d", kind)
	if kind == httpcore.ErrBodyTooLarge {
		status = 413
		msg = fmt.Sprintf("request body exceeds the %s limit", humanize.Bytes(uint64(d.maxBodySize)))
	}
	log.Printf("Bridge: rejecting malformed request (kind=%d, limit=%s)", kind, humanize.Bytes(uint64(d.maxBodySize)))
	return httpcore.Assemble(httpcore.Response{
		Status: status, ContentType: "application/json; charset=utf-8",
		Body: []byte(fmt.Sprintf(`{"error":%q}`, msg)),
	}, false, headerBuf)
}
