package bridge

import (
	"testing"

	"github.com/roverlang/rover/httpcore"
)

func TestRequestContextQueryDecoding(t *testing.T) {
	res := httpcore.Parse([]byte("GET /search?q=hello+world&tag=a%2Fb HTTP/1.1\r\n\r\n"), httpcore.MaxBodySize)
	if res.Status != httpcore.Done {
		t.Fatalf("expected parse to succeed, got %v", res.Status)
	}
	ctx := NewRequestContext(&res.Request, nil)

	q := ctx.Query()
	tbl, ok := q.Table()
	if !ok {
		t.Fatal("expected query() to return a table")
	}
	v := tbl.Field("q")
	if v.IsNil() || v.String() != "hello world" {
		t.Errorf("expected q='hello world', got %q", v.String())
	}
	v = tbl.Field("tag")
	if v.IsNil() || v.String() != "a/b" {
		t.Errorf("expected tag='a/b', got %q", v.String())
	}
}

func TestRequestContextParamsDecodedLazily(t *testing.T) {
	res := httpcore.Parse([]byte("GET /users/john%20doe HTTP/1.1\r\n\r\n"), httpcore.MaxBodySize)
	ctx := NewRequestContext(&res.Request, []httpcore.Param{{Name: "name", Value: []byte("john%20doe")}})

	params := ctx.Params()
	tbl, _ := params.Table()
	v := tbl.Field("name")
	if v.IsNil() || v.String() != "john doe" {
		t.Errorf("expected decoded param 'john doe', got %q", v.String())
	}
}

func TestRequestContextCachesAccessors(t *testing.T) {
	res := httpcore.Parse([]byte("GET /?a=1 HTTP/1.1\r\n\r\n"), httpcore.MaxBodySize)
	ctx := NewRequestContext(&res.Request, nil)

	first := ctx.Query()
	second := ctx.Query()
	ft, _ := first.Table()
	st, _ := second.Table()
	if ft != st {
		t.Error("expected repeated Query() calls to return the cached table")
	}
}

func TestRequestContextStatusOverride(t *testing.T) {
	res := httpcore.Parse([]byte("GET / HTTP/1.1\r\n\r\n"), httpcore.MaxBodySize)
	ctx := NewRequestContext(&res.Request, nil)
	ctx.Status(201)
	if ctx.statusOr(200) != 201 {
		t.Errorf("expected status override to take effect")
	}
}
