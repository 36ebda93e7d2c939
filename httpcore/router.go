package httpcore

import (
	"fmt"
	"strings"

	iradix "github.com/hashicorp/go-immutable-radix"
)

// HandlerID identifies a compiled route's handler in the Script
// Bridge's handler table; httpcore never calls into script code
// directly.
type HandlerID int

// Param is one captured path parameter. Value is a raw, still
// URL-encoded byte range into the request's path — decoding is
// deferred to the bridge's params() accessor").
type Param struct {
	Name  string
	Value []byte
}

// Match is the result of a successful route lookup.
type Match struct {
	Handler HandlerID
	Params  []Param
}

type staticKey struct {
	method string
	path   string
}

// parametricRoute is one compiled (method, pattern, handler) entry
// with its pattern pre-split into segments, literal or named.
type parametricRoute struct {
	method      string
	segments    []patternSegment
	handler     HandlerID
	literalCnt  int
	declareOrd  int
}

type patternSegment struct {
	literal string
	isParam bool
}

// Router is compiled once at startup and never mutated
// afterward, so lookups need no locking even though the reactor may in
// principle be extended to shard across engines later.
type Router struct {
	static map[staticKey]HandlerID
	// radixByMethod indexes parametric routes by method, keyed on the
	// literal prefix (segments up to the first param) so candidates can
	// be narrowed with a single radix lookup before the segment-by-
	// segment match below runs.
	radixByMethod map[string]*iradix.Tree
	declareSeq    int
}

// NewRouter returns an empty router. Routes are added with AddRoute;
// there is no separate compile step, and Match reads the same tables
// AddRoute writes.
func NewRouter() *Router {
	return &Router{
		static:        make(map[staticKey]HandlerID),
		radixByMethod: make(map[string]*iradix.Tree),
	}
}

// AddRoute registers one (method, pattern, handler) triple. Patterns
// use `:name` for a named parameter segment, e.g. "/users/:id/posts".
func (r *Router) AddRoute(method, pattern string, handler HandlerID) error {
	segments, hasParam := splitPattern(pattern)
	if !hasParam {
		key := staticKey{method: method, path: pattern}
		if _, exists := r.static[key]; exists {
			return fmt.Errorf("httpcore: duplicate static route %s %s", method, pattern)
		}
		r.static[key] = handler
		return nil
	}

	route := &parametricRoute{method: method, segments: segments, handler: handler, declareOrd: r.declareSeq}
	r.declareSeq++
	for _, s := range segments {
		if !s.isParam {
			route.literalCnt++
		}
	}

	tree, ok := r.radixByMethod[method]
	if !ok {
		tree = iradix.New()
	}
	key := []byte(literalPrefixKey(segments))
	var bucket []*parametricRoute
	if existing, found := tree.Get(key); found {
		bucket = existing.([]*parametricRoute)
	}
	bucket = append(bucket, route)
	tree, _, _ = tree.Insert(key, bucket)
	r.radixByMethod[method] = tree
	return nil
}

// Match looks up (method, path) against the compiled route table.
// Static matches always win over parametric ones; among parametric
// matches the one with more literal segments wins, ties broken by
// declaration order.
func (r *Router) Match(method, path string) (Match, bool) {
	if h, ok := r.static[staticKey{method: method, path: path}]; ok {
		return Match{Handler: h}, true
	}

	pathSegs := strings.Split(strings.Trim(path, "/"), "/")
	tree, ok := r.radixByMethod[method]
	if !ok {
		return Match{}, false
	}

	var best *parametricRoute
	var bestParams []Param
	pathKey := []byte(strings.Join(pathSegs, "/") + "/")
	tree.Root().WalkPath(pathKey, func(k []byte, v interface{}) bool {
		for _, route := range v.([]*parametricRoute) {
			params, ok := matchSegments(route.segments, pathSegs)
			if !ok {
				continue
			}
			if best == nil ||
				route.literalCnt > best.literalCnt ||
				(route.literalCnt == best.literalCnt && route.declareOrd < best.declareOrd) {
				best = route
				bestParams = params
			}
		}
		return false
	})

	if best == nil {
		return Match{}, false
	}
	return Match{Handler: best.handler, Params: bestParams}, true
}

func splitPattern(pattern string) ([]patternSegment, bool) {
	parts := strings.Split(strings.Trim(pattern, "/"), "/")
	segments := make([]patternSegment, len(parts))
	hasParam := false
	for i, p := range parts {
		if strings.HasPrefix(p, ":") {
			segments[i] = patternSegment{literal: p[1:], isParam: true}
			hasParam = true
		} else {
			segments[i] = patternSegment{literal: p}
		}
	}
	return segments, hasParam
}

// literalPrefixKey produces the radix key: the literal segments up to
// (not including) the first parameter, joined by "/". Routes sharing
// a literal prefix land in the same bucket and are disambiguated by
// matchSegments/the specificity tiebreak above.
func literalPrefixKey(segments []patternSegment) string {
	var b strings.Builder
	for _, s := range segments {
		if s.isParam {
			break
		}
		b.WriteString(s.literal)
		b.WriteByte('/')
	}
	return b.String()
}

func matchSegments(pattern []patternSegment, path []string) ([]Param, bool) {
	if len(pattern) != len(path) {
		return nil, false
	}
	var params []Param
	for i, seg := range pattern {
		if seg.isParam {
			params = append(params, Param{Name: seg.literal, Value: []byte(path[i])})
			continue
		}
		if seg.literal != path[i] {
			return nil, false
		}
	}
	return params, true
}
