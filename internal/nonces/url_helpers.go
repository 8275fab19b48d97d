package nonces

import (
	"net/url"
	"strings"
)

// fragmentOf, queryOf and pathOf parse a URL string (which may be a full
// absolute URL or a bare Location/redirect target) the same way for every
// url-diffing call site, independent of httpmodel.Request.

func fragmentOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Fragment
}

func queryOf(raw string) *orderedQuery {
	u, err := url.Parse(raw)
	if err != nil {
		return newOrderedQuery()
	}
	return parseOrderedQuery(u.RawQuery)
}

func pathOf(raw string) []string {
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	var segs []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// orderedQuery is a minimal insertion-ordered query-param view, local to
// this package because httpmodel's query parser is unexported and works on
// a parsed Request, while Location headers and meta-refresh targets here
// are raw URL strings.
type orderedQuery struct {
	keys   []string
	values map[string]string
}

func newOrderedQuery() *orderedQuery {
	return &orderedQuery{values: make(map[string]string)}
}

func parseOrderedQuery(rawQuery string) *orderedQuery {
	q := newOrderedQuery()
	if rawQuery == "" {
		return q
	}
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) == 1 {
			q.set(kv[0], "")
		} else {
			q.set(kv[0], kv[1])
		}
	}
	return q
}

func (q *orderedQuery) set(key, value string) {
	if _, ok := q.values[key]; !ok {
		q.keys = append(q.keys, key)
	}
	q.values[key] = value
}

func (q *orderedQuery) Get(key string) (string, bool) {
	v, ok := q.values[key]
	return v, ok
}

func (q *orderedQuery) Keys() []string {
	return q.keys
}
