// Package nonces classifies the per-pair differences between two aligned
// traces into request-side nonces (client-minted, unrecoverable during
// replay) and response-side nonces (server-minted, recoverable by parsing
// fresh responses), per the kinds listed in the data model.
package nonces

import (
	"strconv"
	"strings"

	"reducetrace/internal/httpmodel"
	"reducetrace/internal/logger"
	"reducetrace/internal/matching"
)

// Kind enumerates the nonce classification a difference falls under.
type Kind string

// Request-side kinds.
const (
	KindPath          Kind = "path"
	KindQuery         Kind = "query"
	KindFragment      Kind = "fragment"
	KindAuthorization Kind = "authorization"
	KindCookie        Kind = "cookie"
)

// Response-side kinds.
const (
	KindJSON           Kind = "json"
	KindFormURLEncoded Kind = "form-urlencoded"
	KindSetCookie      Kind = "set-cookie"
	KindHiddenInput    Kind = "html-hidden-input"
)

// metaRedirectKind and locationKind build the parameterized
// "meta-redirect-{part}" / "location-{part}" kinds for a URL component.
func metaRedirectKind(part string) Kind { return Kind("meta-redirect-" + part) }
func locationKind(part string) Kind     { return Kind("location-" + part) }

// Nonce is a single observed difference: the origin message that exhibited
// it, the original-trace value to substitute, its kind, and a locator key
// within that kind. HasKey is false for kinds whose key is the spec's
// "None" (fragment, authorization).
type Nonce struct {
	Origin any // *httpmodel.Request for request-side, *httpmodel.Response for response-side
	Value  string
	Kind   Kind
	Key    string
	HasKey bool
}

// Finder accumulates request- and response-side nonces across every matched
// pair of an alignment, deduplicating response-side values against a global
// set carried across every pair this Finder processes.
type Finder struct {
	log          *logger.Logger
	foundNonces  map[string]bool
	RequestNonces  []Nonce
	ResponseNonces []Nonce
}

// New returns a Finder with an empty global dedup set, ready to process one
// alignment's matched pairs.
func New(log *logger.Logger) *Finder {
	return &Finder{log: log, foundNonces: make(map[string]bool)}
}

// Process walks every matched pair of an alignment and appends to
// RequestNonces/ResponseNonces.
func (f *Finder) Process(pairs []matching.AlignedPair) {
	for _, mp := range pairs {
		f.findInRequests(mp.A.Request, mp.B.Request)
		f.findInResponses(mp.A.Response, mp.B.Response)
	}
}

func (f *Finder) findInRequests(req1, req2 *httpmodel.Request) {
	var fresh []Nonce

	switch {
	case req1.URL != req2.URL:
		for _, d := range diffURLs(req1.URL, req2.URL) {
			fresh = append(fresh, Nonce{Origin: req1, Value: d.Value, Kind: Kind(d.Part), Key: d.Key, HasKey: d.HasKey})
		}
	case hasAuth(req1) || hasAuth(req2):
		a1, ok1 := req1.Headers.Get("authorization")
		a2, _ := req2.Headers.Get("authorization")
		if a1 != a2 {
			val := a1
			if !ok1 {
				val = a2
			}
			parts := strings.SplitN(val, " ", 2)
			if len(parts) == 2 {
				val = parts[1]
			}
			fresh = append(fresh, Nonce{Origin: req1, Value: val, Kind: KindAuthorization})
		}
	default:
		if _, ok := req1.Headers.Get("cookie"); ok {
			c1, c2 := req1.Cookies(), req2.Cookies()
			for _, key := range c1.Keys() {
				v1, _ := c1.Get(key)
				v2, ok2 := c2.Get(key)
				if ok2 && v1 != v2 {
					fresh = append(fresh, Nonce{Origin: req1, Value: v1, Kind: KindCookie, Key: key, HasKey: true})
				}
			}
		} else if f.log != nil {
			f.log.Debugf("find-nonces", "request to %s matches", req1.URL)
		}
	}

	for _, n := range fresh {
		if !f.foundNonces[n.Value] {
			f.RequestNonces = append(f.RequestNonces, n)
		}
	}
}

func hasAuth(r *httpmodel.Request) bool {
	_, ok := r.Headers.Get("authorization")
	return ok
}

func (f *Finder) findInResponses(res1, res2 *httpmodel.Response) {
	var fresh []Nonce

	if _, ok := res1.Headers.Get("content-type"); ok && string(res1.Content) != string(res2.Content) {
		switch {
		case res1.IsJSON():
			j1, j2 := res1.FlattenJSON(), res2.FlattenJSON()
			fresh = append(fresh, diffMaps(res1, j1, j2, KindJSON)...)
		case res1.IsFormURLEncoded():
			p1, p2 := res1.FormParams(), res2.FormParams()
			fresh = append(fresh, diffOrderedMaps(res1, p1, p2, KindFormURLEncoded)...)
		case res1.IsHTML():
			fresh = append(fresh, f.diffHTML(res1, res2)...)
		}
	}

	if _, ok := res1.Headers.Get("set-cookie"); ok || len(res1.SetCookie) > 0 {
		sc1, sc2 := res1.SetCookies(), res2.SetCookies()
		fresh = append(fresh, diffOrderedMaps(res1, sc1, sc2, KindSetCookie)...)
	}

	if is3xx(res1.StatusCode) && is3xx(res2.StatusCode) {
		loc1, ok1 := res1.Headers.Get("location")
		loc2, ok2 := res2.Headers.Get("location")
		if ok1 && ok2 && loc1 != loc2 {
			for _, d := range diffURLs(loc1, loc2) {
				fresh = append(fresh, Nonce{Origin: res1, Value: d.Value, Kind: locationKind(d.Part), Key: d.Key, HasKey: d.HasKey})
			}
		}
	}

	// 200<->302 pair: compare the 200 side's meta-refresh target against
	// the 302 side's location header. Both branches of this check must
	// compare the two distinct sides against each other, not one side
	// against itself.
	switch {
	case res1.StatusCode == 200 && res2.StatusCode == 302:
		fresh = append(fresh, f.redirectCheck(res1, res2)...)
	case res1.StatusCode == 302 && res2.StatusCode == 200:
		fresh = append(fresh, f.redirectCheck(res2, res1)...)
	}

	for _, n := range fresh {
		if !f.foundNonces[n.Value] {
			if f.log != nil {
				f.log.Debugf("find-nonces", "found new nonce: kind=%s key=%s value=%q", n.Kind, n.Key, n.Value)
			}
			f.foundNonces[n.Value] = true
			f.ResponseNonces = append(f.ResponseNonces, n)
		}
	}
}

func is3xx(status int) bool {
	return status >= 300 && status < 400
}

// redirectCheck compares the meta-refresh response's redirect target
// against the HTTP-redirect response's Location header.
func (f *Finder) redirectCheck(metaRedirectRes, httpRedirectRes *httpmodel.Response) []Nonce {
	metaURL, found, err := metaRedirectRes.MetaRefreshURL()
	if err != nil || !found {
		return nil
	}
	redirectURL, ok := httpRedirectRes.Headers.Get("location")
	if !ok {
		return nil
	}
	var out []Nonce
	for _, d := range diffURLs(metaURL, redirectURL) {
		out = append(out, Nonce{Origin: metaRedirectRes, Value: d.Value, Kind: locationKind(d.Part), Key: d.Key, HasKey: d.HasKey})
	}
	return out
}

func (f *Finder) diffHTML(res1, res2 *httpmodel.Response) []Nonce {
	var out []Nonce

	url1, found1, err1 := res1.MetaRefreshURL()
	url2, found2, err2 := res2.MetaRefreshURL()
	if err1 == nil && err2 == nil && found1 && found2 {
		url1 = strings.ReplaceAll(url1, "&amp;", "&")
		url2 = strings.ReplaceAll(url2, "&amp;", "&")
		if url1 != url2 {
			for _, d := range diffURLs(url1, url2) {
				out = append(out, Nonce{Origin: res1, Value: d.Value, Kind: metaRedirectKind(d.Part), Key: d.Key, HasKey: d.HasKey})
			}
		}
	}

	hidden1, err1 := res1.HiddenInputs()
	hidden2, err2 := res2.HiddenInputs()
	if err1 == nil && err2 == nil {
		for _, key := range hidden1.Keys() {
			v1, _ := hidden1.Get(key)
			v2, ok2 := hidden2.Get(key)
			if ok2 && v1 != v2 {
				out = append(out, Nonce{Origin: res1, Value: v1, Kind: KindHiddenInput, Key: key, HasKey: true})
			}
		}
	}

	return out
}

// diffMaps compares two flattened-JSON maps, emitting a Nonce per differing
// key present in both sides.
func diffMaps(origin *httpmodel.Response, m1, m2 map[string]string, kind Kind) []Nonce {
	var out []Nonce
	for key, v1 := range m1 {
		if v2, ok := m2[key]; ok && v1 != v2 {
			out = append(out, Nonce{Origin: origin, Value: v1, Kind: kind, Key: key, HasKey: true})
		}
	}
	return out
}

func diffOrderedMaps(origin *httpmodel.Response, m1, m2 *httpmodel.OrderedMap, kind Kind) []Nonce {
	var out []Nonce
	for _, key := range m1.Keys() {
		v1, _ := m1.Get(key)
		v2, ok2 := m2.Get(key)
		if ok2 && v1 != v2 {
			out = append(out, Nonce{Origin: origin, Value: v1, Kind: kind, Key: key, HasKey: true})
		}
	}
	return out
}

// urlDiff is one component-wise URL difference.
type urlDiff struct {
	Value  string
	Part   string // "fragment", "query", or "path"
	Key    string
	HasKey bool
}

// diffURLs compares two URLs component-wise: fragment, then every key in
// url1's query (skipping keys missing from url2), then positional path
// segments up to the shorter path.
func diffURLs(url1, url2 string) []urlDiff {
	var out []urlDiff

	f1, f2 := fragmentOf(url1), fragmentOf(url2)
	if f1 != f2 {
		out = append(out, urlDiff{Value: f1, Part: "fragment"})
	}

	q1, q2 := queryOf(url1), queryOf(url2)
	for _, key := range q1.Keys() {
		v1, _ := q1.Get(key)
		v2, ok := q2.Get(key)
		if !ok {
			continue
		}
		if v1 != v2 {
			out = append(out, urlDiff{Value: v1, Part: "query", Key: key, HasKey: true})
		}
	}

	p1, p2 := pathOf(url1), pathOf(url2)
	for i := range p1 {
		if i >= len(p2) {
			break
		}
		if p1[i] != p2[i] {
			out = append(out, urlDiff{Value: p1[i], Part: "path", Key: strconv.Itoa(i), HasKey: true})
		}
	}

	return out
}
