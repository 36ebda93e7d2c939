package bridge

import (
	"strings"
	"testing"

	"github.com/roverlang/rover/guard"
	"github.com/roverlang/rover/httpcore"
	"github.com/roverlang/rover/value"
)

func parseCtx(t *testing.T, raw string) *RequestContext {
	t.Helper()
	res := httpcore.Parse([]byte(raw), httpcore.MaxBodySize)
	if res.Status != httpcore.Done {
		t.Fatalf("expected request to parse, got status=%v kind=%v", res.Status, res.Kind)
	}
	return NewRequestContext(&res.Request, nil)
}

func TestDispatchTableReturnIsJSON200(t *testing.T) {
	table := NewHandlerTable()
	id := table.Register(func(ctx *RequestContext) (any, error) {
		tbl := value.NewTable()
		tbl.SetField("ok", value.Bool(true))
		return value.TableValue(tbl), nil
	})

	ctx := parseCtx(t, "GET / HTTP/1.1\r\n\r\n")
	resp := table.Dispatch(id, ctx, nil)
	if resp.Status != 200 {
		t.Errorf("expected 200, got %d", resp.Status)
	}
	if !strings.Contains(string(resp.Body), `"ok":true`) {
		t.Errorf("expected serialized table in body, got %q", resp.Body)
	}
}

func TestDispatchNilIsNoContent(t *testing.T) {
	table := NewHandlerTable()
	id := table.Register(func(ctx *RequestContext) (any, error) { return nil, nil })

	ctx := parseCtx(t, "GET / HTTP/1.1\r\n\r\n")
	resp := table.Dispatch(id, ctx, nil)
	if resp.Status != 204 {
		t.Errorf("expected 204, got %d", resp.Status)
	}
}

func TestDispatchPanicBecomes500(t *testing.T) {
	table := NewHandlerTable()
	id := table.Register(func(ctx *RequestContext) (any, error) {
		panic("boom")
	})

	ctx := parseCtx(t, "GET / HTTP/1.1\r\n\r\n")
	resp := table.Dispatch(id, ctx, nil)
	if resp.Status != 500 {
		t.Errorf("expected 500, got %d", resp.Status)
	}
}

func TestDispatchValidationErrorBecomes422(t *testing.T) {
	table := NewHandlerTable()
	id := table.Register(func(ctx *RequestContext) (any, error) {
		return nil, guard.New(guard.FieldError{Field: "email", Message: "required"})
	})

	ctx := parseCtx(t, "POST /signup HTTP/1.1\r\n\r\n")
	resp := table.Dispatch(id, ctx, nil)
	if resp.Status != 422 {
		t.Errorf("expected 422, got %d", resp.Status)
	}
	if !strings.Contains(string(resp.Body), "email") {
		t.Errorf("expected field name in body, got %q", resp.Body)
	}
}

func TestDispatchUnknownHandlerID(t *testing.T) {
	table := NewHandlerTable()
	ctx := parseCtx(t, "GET / HTTP/1.1\r\n\r\n")
	resp := table.Dispatch(99, ctx, nil)
	if resp.Status != 404 {
		t.Errorf("expected 404 for unregistered handler id, got %d", resp.Status)
	}
}

func TestDispatchResponseBuilder(t *testing.T) {
	table := NewHandlerTable()
	id := table.Register(func(ctx *RequestContext) (any, error) {
		return HTML(201, "<p>hi</p>"), nil
	})
	ctx := parseCtx(t, "GET / HTTP/1.1\r\n\r\n")
	resp := table.Dispatch(id, ctx, nil)
	if resp.Status != 201 || resp.ContentType != "text/html; charset=utf-8" {
		t.Errorf("unexpected response: %+v", resp)
	}
}
