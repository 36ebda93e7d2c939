package httpcore

import (
	"bytes"
	"strconv"
)

// ParseStatus is the outcome of one parse attempt.
type ParseStatus int

const (
	Incomplete ParseStatus = iota
	Done
	ParseError
)

// ErrorKind classifies a ParseError result so the engine can choose
// the right failure response.
type ErrorKind int

const (
	ErrNone ErrorKind = iota
	ErrMalformedRequestLine
	ErrMalformedHeader
	ErrUnsupportedVersion
	ErrBodyTooLarge
	ErrChunkedMalformed
)

// ParseResult is the parser's output for one call.
type ParseResult struct {
	Status  ParseStatus
	Request RequestParts
	Kind    ErrorKind
	// Consumed is how many bytes of the input buffer this request
	// occupied, valid only when Status == Done.
	Consumed int
}

// MaxBodySize is the default body-size limit").
const MaxBodySize = 1 << 20

// Parse attempts to parse exactly one HTTP/1.x request from the front
// of buf. buf is never copied; every slice in the returned
// RequestParts aliases buf directly, so the caller must not mutate or
// recycle buf until it is done with the result (i.e. until the
// request has been fully handled).
func Parse(buf []byte, maxBodySize int) ParseResult {
	if maxBodySize <= 0 {
		maxBodySize = MaxBodySize
	}

	lineEnd := bytes.Index(buf, crlf)
	if lineEnd < 0 {
		if len(buf) > 8192 {
			return ParseResult{Status: ParseError, Kind: ErrMalformedRequestLine}
		}
		return ParseResult{Status: Incomplete}
	}
	method, path, queryRaw, version, ok := parseRequestLine(buf[:lineEnd])
	if !ok {
		return ParseResult{Status: ParseError, Kind: ErrMalformedRequestLine}
	}
	var query kvList
	parseQueryInto(queryRaw, &query)

	// The blank-line search starts at the request line's own CRLF so a
	// request with no header lines ("GET / HTTP/1.1\r\n\r\n") completes.
	headersStart := lineEnd + 2
	headerEnd := bytes.Index(buf[lineEnd:], crlfcrlf)
	if headerEnd < 0 {
		return ParseResult{Status: Incomplete}
	}
	headerEnd += lineEnd

	var headers kvList
	if headerEnd > headersStart {
		ok = parseHeaders(buf[headersStart:headerEnd], &headers)
		if !ok {
			return ParseResult{Status: ParseError, Kind: ErrMalformedHeader}
		}
	}

	bodyStart := headerEnd + 4
	contentType, _ := headers.GetFold("Content-Type")

	hasBody := !bytes.Equal(method, []byte("GET")) && !bytes.Equal(method, []byte("HEAD"))

	if !hasBody {
		return ParseResult{
			Status: Done,
			Request: RequestParts{
				Method: method, Path: path, Query: query, Version: version,
				Headers: headers, ContentType: contentType,
				KeepAlive: keepAlive(version, &headers),
			},
			Consumed: bodyStart,
		}
	}

	if te, ok := headers.GetFold("Transfer-Encoding"); ok && bytes.Contains(bytes.ToLower(te), []byte("chunked")) {
		body, consumedBody, status, kind := parseChunkedBody(buf[bodyStart:], maxBodySize)
		if status != Done {
			return ParseResult{Status: status, Kind: kind}
		}
		return ParseResult{
			Status: Done,
			Request: RequestParts{
				Method: method, Path: path, Query: query, Version: version,
				Headers: headers, ContentType: contentType, Body: newBody(body),
				KeepAlive: keepAlive(version, &headers),
			},
			Consumed: bodyStart + consumedBody,
		}
	}

	clBytes, hasCL := headers.GetFold("Content-Length")
	if !hasCL {
		return ParseResult{
			Status: Done,
			Request: RequestParts{
				Method: method, Path: path, Query: query, Version: version,
				Headers: headers, ContentType: contentType,
				KeepAlive: keepAlive(version, &headers),
			},
			Consumed: bodyStart,
		}
	}
	contentLength, err := strconv.Atoi(string(clBytes))
	if err != nil || contentLength < 0 {
		return ParseResult{Status: ParseError, Kind: ErrMalformedHeader}
	}
	if contentLength > maxBodySize {
		return ParseResult{Status: ParseError, Kind: ErrBodyTooLarge}
	}
	if len(buf)-bodyStart < contentLength {
		return ParseResult{Status: Incomplete}
	}

	body := buf[bodyStart : bodyStart+contentLength]
	return ParseResult{
		Status: Done,
		Request: RequestParts{
			Method: method, Path: path, Query: query, Version: version,
			Headers: headers, ContentType: contentType, Body: newBody(body),
			KeepAlive: keepAlive(version, &headers),
		},
		Consumed: bodyStart + contentLength,
	}
}

var (
	crlf     = []byte("\r\n")
	crlfcrlf = []byte("\r\n\r\n")
	space    = byte(' ')
)

func parseRequestLine(line []byte) (method, path, queryRaw []byte, version []byte, ok bool) {
	sp1 := bytes.IndexByte(line, space)
	if sp1 < 0 {
		return nil, nil, nil, nil, false
	}
	rest := line[sp1+1:]
	sp2 := bytes.IndexByte(rest, space)
	if sp2 < 0 {
		return nil, nil, nil, nil, false
	}
	method = line[:sp1]
	target := rest[:sp2]
	version = rest[sp2+1:]
	if !bytes.HasPrefix(version, []byte("HTTP/1.")) {
		return nil, nil, nil, nil, false
	}
	if q := bytes.IndexByte(target, '?'); q >= 0 {
		path = target[:q]
		queryRaw = target[q+1:]
	} else {
		path = target
	}
	if len(path) == 0 || path[0] != '/' {
		return nil, nil, nil, nil, false
	}
	return method, path, queryRaw, version, true
}

func parseQueryInto(raw []byte, dst *kvList) {
	if len(raw) == 0 {
		return
	}
	for _, pair := range bytes.Split(raw, []byte("&")) {
		if len(pair) == 0 {
			continue
		}
		if eq := bytes.IndexByte(pair, '='); eq >= 0 {
			dst.append(pair[:eq], pair[eq+1:])
		} else {
			dst.append(pair, nil)
		}
	}
}

func parseHeaders(buf []byte, dst *kvList) bool {
	for len(buf) > 0 {
		nl := bytes.Index(buf, crlf)
		var line []byte
		if nl < 0 {
			line = buf
			buf = nil
		} else {
			line = buf[:nl]
			buf = buf[nl+2:]
		}
		if len(line) == 0 {
			continue
		}
		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			return false
		}
		key := bytes.TrimSpace(line[:colon])
		val := bytes.TrimSpace(line[colon+1:])
		dst.append(key, val)
	}
	return true
}

func keepAlive(version []byte, headers *kvList) bool {
	conn, has := headers.GetFold("Connection")
	if has {
		return asciiEqualFold(conn, "keep-alive")
	}
	return bytes.Equal(version, []byte("HTTP/1.1"))
}
