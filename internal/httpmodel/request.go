package httpmodel

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"strings"
)

// Request is a single recorded HTTP request.
type Request struct {
	Method      string
	URL         string
	ParsedURL   *url.URL
	HTTPVersion string
	HTTPS       bool
	Headers     Headers
	Content     []byte
}

// NewRequest parses rawURL and builds a Request. HTTPS is derived from the
// URL scheme.
func NewRequest(method, rawURL, httpVersion string, headers Headers, content []byte) (*Request, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse request url %q: %w", rawURL, err)
	}
	return &Request{
		Method:      method,
		URL:         rawURL,
		ParsedURL:   parsed,
		HTTPVersion: httpVersion,
		HTTPS:       parsed.Scheme == "https",
		Headers:     headers,
		Content:     content,
	}, nil
}

// PathSegments returns the ordered non-empty path segments of the URL.
func (r *Request) PathSegments() []string {
	return pathSegments(r.ParsedURL.Path)
}

func pathSegments(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// QueryParams returns the URL query parameters as an insertion-ordered map.
func (r *Request) QueryParams() *OrderedMap {
	return parseQueryParams(r.ParsedURL.RawQuery)
}

func parseQueryParams(rawQuery string) *OrderedMap {
	m := NewOrderedMap()
	if rawQuery == "" {
		return m
	}
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) == 1 {
			m.Set(kv[0], "")
		} else {
			m.Set(kv[0], kv[1])
		}
	}
	return m
}

// Fragment returns the URL fragment.
func (r *Request) Fragment() string {
	return r.ParsedURL.Fragment
}

// Cookies returns the cookies carried in the "cookie" header as an
// insertion-ordered map, parsed on "; " then first "=".
func (r *Request) Cookies() *OrderedMap {
	m := NewOrderedMap()
	raw, ok := r.Headers.Get("cookie")
	if !ok {
		return m
	}
	for _, cookie := range strings.Split(raw, "; ") {
		if cookie == "" {
			continue
		}
		idx := strings.Index(cookie, "=")
		if idx < 0 {
			m.Set(cookie, "")
			continue
		}
		m.Set(cookie[:idx], cookie[idx+1:])
	}
	return m
}

// HeadersForReplay returns a copy of the headers with "host" and
// ":authority" removed — the HTTP client synthesizes those from the URL.
func (r *Request) HeadersForReplay() Headers {
	h := r.Headers.Clone()
	h.Del("host")
	h.Del(":authority")
	return h
}

// Identity returns a structural hash over method, url, version, headers and
// content, used to give a Pair's request a stable identity.
func (r *Request) Identity() string {
	sum := sha256.New()
	fmt.Fprintf(sum, "%s\x00%s\x00%s\x00", r.Method, r.URL, r.HTTPVersion)
	writeHeaders(sum, r.Headers, nil)
	sum.Write(r.Content)
	return fmt.Sprintf("%x", sum.Sum(nil))
}
