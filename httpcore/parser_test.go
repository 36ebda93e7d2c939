package httpcore

import "testing"

func TestParseGetNoBody(t *testing.T) {
	raw := []byte("GET /users?active=true HTTP/1.1\r\nHost: example.com\r\n\r\n")
	res := Parse(raw, MaxBodySize)
	if res.Status != Done {
		t.Fatalf("expected Done, got %v (kind=%v)", res.Status, res.Kind)
	}
	if string(res.Request.Method) != "GET" {
		t.Errorf("expected method GET, got %q", res.Request.Method)
	}
	if string(res.Request.Path) != "/users" {
		t.Errorf("expected path /users, got %q", res.Request.Path)
	}
	v, ok := res.Request.Query.Get("active")
	if !ok || string(v) != "true" {
		t.Errorf("expected query active=true, got %q ok=%v", v, ok)
	}
	if res.Consumed != len(raw) {
		t.Errorf("expected to consume entire buffer, consumed %d of %d", res.Consumed, len(raw))
	}
}

func TestParseIncompleteAwaitsMoreHeaderBytes(t *testing.T) {
	res := Parse([]byte("GET / HTTP/1.1\r\nHost: example"), MaxBodySize)
	if res.Status != Incomplete {
		t.Fatalf("expected Incomplete, got %v", res.Status)
	}
}

func TestParseIncompleteAwaitsBody(t *testing.T) {
	raw := []byte("POST /items HTTP/1.1\r\nContent-Length: 11\r\n\r\nhello")
	res := Parse(raw, MaxBodySize)
	if res.Status != Incomplete {
		t.Fatalf("expected Incomplete while body is short, got %v", res.Status)
	}
}

func TestParsePostWithBody(t *testing.T) {
	raw := []byte("POST /items HTTP/1.1\r\nContent-Length: 5\r\nContent-Type: text/plain\r\n\r\nhello")
	res := Parse(raw, MaxBodySize)
	if res.Status != Done {
		t.Fatalf("expected Done, got %v (kind=%v)", res.Status, res.Kind)
	}
	if string(res.Request.Body.Bytes()) != "hello" {
		t.Errorf("expected body 'hello', got %q", res.Request.Body.Bytes())
	}
}

func TestParseBodyTooLarge(t *testing.T) {
	raw := []byte("POST /items HTTP/1.1\r\nContent-Length: 999999999\r\n\r\n")
	res := Parse(raw, 1024)
	if res.Status != ParseError || res.Kind != ErrBodyTooLarge {
		t.Fatalf("expected ErrBodyTooLarge, got status=%v kind=%v", res.Status, res.Kind)
	}
}

func TestParseMalformedRequestLine(t *testing.T) {
	res := Parse([]byte("GET /no-version\r\n\r\n"), MaxBodySize)
	if res.Status != ParseError || res.Kind != ErrMalformedRequestLine {
		t.Fatalf("expected ErrMalformedRequestLine, got status=%v kind=%v", res.Status, res.Kind)
	}
}

func TestParseChunkedBody(t *testing.T) {
	raw := []byte("POST /items HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n0\r\n\r\n")
	res := Parse(raw, MaxBodySize)
	if res.Status != Done {
		t.Fatalf("expected Done, got %v (kind=%v)", res.Status, res.Kind)
	}
	if string(res.Request.Body.Bytes()) != "hello" {
		t.Errorf("expected decoded chunked body 'hello', got %q", res.Request.Body.Bytes())
	}
}

func TestKeepAliveDefaultsByVersion(t *testing.T) {
	res := Parse([]byte("GET / HTTP/1.0\r\n\r\n"), MaxBodySize)
	if res.Request.KeepAlive {
		t.Error("expected HTTP/1.0 with no Connection header to default to close")
	}
	res = Parse([]byte("GET / HTTP/1.1\r\n\r\n"), MaxBodySize)
	if !res.Request.KeepAlive {
		t.Error("expected HTTP/1.1 with no Connection header to default to keep-alive")
	}
}

func TestHeaderFoldCaseInsensitive(t *testing.T) {
	res := Parse([]byte("GET / HTTP/1.1\r\nX-Request-Id: abc123\r\n\r\n"), MaxBodySize)
	v, ok := res.Request.HeaderFold("x-request-id")
	if !ok || string(v) != "abc123" {
		t.Errorf("expected case-insensitive header match, got %q ok=%v", v, ok)
	}
}
