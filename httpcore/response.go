package httpcore

import "strconv"

// Response is what the Script Bridge hands back to the pipeline for
// assembly: a status code, optional content-type, and a body buffer
//.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
	// ExtraHeaders carries additional response headers (security
	// headers, Location on redirects) beyond Content-Type/Length/
	// Connection, which Assemble always writes itself.
	ExtraHeaders []KV
}

var statusText = map[int]string{
	200: "OK", 201: "Created", 204: "No Content",
	301: "Moved Permanently", 302: "Found",
	400: "Bad Request", 401: "Unauthorized", 403: "Forbidden", 404: "Not Found",
	405: "Method Not Allowed", 413: "Payload Too Large", 422: "Unprocessable Entity",
	500: "Internal Server Error", 504: "Gateway Timeout",
}

func reasonPhrase(status int) string {
	if t, ok := statusText[status]; ok {
		return t
	}
	return "Unknown"
}

// Assemble writes the status line, headers, and body into a single
// buffer drawn from headerBuf, appending the body without copying it
// a second time. Content-Length is always derived from len(Body);
// Content-Type is omitted when empty (e.g. 204 responses).
func Assemble(resp Response, keepAlive bool, headerBuf []byte) []byte {
	buf := headerBuf[:0]
	buf = append(buf, "HTTP/1.1 "...)
	buf = strconv.AppendInt(buf, int64(resp.Status), 10)
	buf = append(buf, ' ')
	buf = append(buf, reasonPhrase(resp.Status)...)
	buf = append(buf, "\r\n"...)

	if resp.ContentType != "" {
		buf = append(buf, "Content-Type: "...)
		buf = append(buf, resp.ContentType...)
		buf = append(buf, "\r\n"...)
	}
	buf = append(buf, "Content-Length: "...)
	buf = strconv.AppendInt(buf, int64(len(resp.Body)), 10)
	buf = append(buf, "\r\n"...)

	for _, h := range resp.ExtraHeaders {
		buf = append(buf, h.Key...)
		buf = append(buf, ": "...)
		buf = append(buf, h.Value...)
		buf = append(buf, "\r\n"...)
	}

	if keepAlive {
		buf = append(buf, "Connection: keep-alive\r\n"...)
	} else {
		buf = append(buf, "Connection: close\r\n"...)
	}
	buf = append(buf, "\r\n"...)
	buf = append(buf, resp.Body...)
	return buf
}
