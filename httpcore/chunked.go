package httpcore

import (
	"bytes"
	"strconv"
)

// parseChunkedBody decodes HTTP/1.1 chunked transfer-encoding framing.
// Unlike the Content-Length path, chunked bodies cannot be exposed as
// a single contiguous slice of the read buffer without copying,
// because the chunk-size lines interrupt the payload; the decoded
// body is therefore assembled into a freshly allocated buffer.
func parseChunkedBody(buf []byte, maxBodySize int) (body []byte, consumed int, status ParseStatus, kind ErrorKind) {
	var out []byte
	pos := 0
	for {
		lineEnd := bytes.Index(buf[pos:], crlf)
		if lineEnd < 0 {
			return nil, 0, Incomplete, ErrNone
		}
		sizeLine := buf[pos : pos+lineEnd]
		if semi := bytes.IndexByte(sizeLine, ';'); semi >= 0 {
			sizeLine = sizeLine[:semi]
		}
		size, err := strconv.ParseInt(string(bytes.TrimSpace(sizeLine)), 16, 64)
		if err != nil || size < 0 {
			return nil, 0, ParseError, ErrChunkedMalformed
		}
		pos += lineEnd + 2

		if size == 0 {
			trailerEnd := bytes.Index(buf[pos:], crlf)
			if trailerEnd < 0 {
				return nil, 0, Incomplete, ErrNone
			}
			pos += trailerEnd + 2
			return out, pos, Done, ErrNone
		}

		if len(out)+int(size) > maxBodySize {
			return nil, 0, ParseError, ErrBodyTooLarge
		}
		if len(buf)-pos < int(size)+2 {
			return nil, 0, Incomplete, ErrNone
		}
		out = append(out, buf[pos:pos+int(size)]...)
		pos += int(size)
		if !bytes.HasPrefix(buf[pos:], crlf) {
			return nil, 0, ParseError, ErrChunkedMalformed
		}
		pos += 2
	}
}
