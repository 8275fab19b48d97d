package replay

import (
	"net/url"
	"strconv"
	"strings"

	"reducetrace/internal/errs"
	"reducetrace/internal/httpmodel"
	"reducetrace/internal/nonces"
)

// retrieveNonces mirrors the original's retrieve_nonces: for every
// response-side nonce registered against the recorded response now being
// mirrored, extract the corresponding value from the live response and
// register the (old, new) pair under every encoding.
func (r *Replayer) retrieveNonces(
	recorded *httpmodel.Response,
	liveStatus int,
	liveHeaders httpmodel.Headers,
	liveBody []byte,
	nonceSet ResponseNonceSet,
	realNonces map[string]string,
) {
	entries, ok := nonceSet[recorded]
	if !ok {
		return
	}
	for _, n := range entries {
		newNonce, ok, err := r.extractNonce(n, liveStatus, liveHeaders, liveBody)
		if err != nil {
			if r.log != nil {
				r.log.Debugf("retrieve-nonces", "kind=%s key=%s: %v", n.Kind, n.Key, err)
			}
			continue
		}
		if !ok || newNonce == "" {
			if r.log != nil {
				r.log.Debugf("retrieve-nonces", "couldn't retrieve nonce kind=%s key=%s", n.Kind, n.Key)
			}
			continue
		}
		if r.log != nil {
			r.log.Debugf("retrieve-nonces", "retrieved %s(%s): %s -> %s", n.Kind, n.Key, n.Value, newNonce)
		}
		old := bestEffortDecode(n.Value)
		fresh := bestEffortDecode(newNonce)
		registerEncodings(realNonces, old, fresh)
	}
}

func (r *Replayer) extractNonce(n nonces.Nonce, liveStatus int, liveHeaders httpmodel.Headers, liveBody []byte) (string, bool, error) {
	switch {
	case n.Kind == nonces.KindJSON:
		v, ok := extractJSON(liveHeaders, liveBody, n.Key)
		return v, ok, nil
	case n.Kind == nonces.KindFormURLEncoded:
		v, ok := extractFormParam(liveBody, n.Key)
		return v, ok, nil
	case n.Kind == nonces.KindSetCookie:
		v, ok := extractSetCookie(liveHeaders, n.Key)
		return v, ok, nil
	case strings.HasPrefix(string(n.Kind), "meta-redirect-"):
		part := strings.TrimPrefix(string(n.Kind), "meta-redirect-")
		return extractMetaRedirect(liveStatus, liveHeaders, liveBody, part, n.Key)
	case strings.HasPrefix(string(n.Kind), "location-"):
		part := strings.TrimPrefix(string(n.Kind), "location-")
		return extractLocation(liveStatus, liveHeaders, liveBody, part, n.Key)
	case n.Kind == nonces.KindHiddenInput:
		return extractHiddenInput(liveHeaders, liveBody, n.Key)
	default:
		return "", false, nil
	}
}

func extractJSON(headers httpmodel.Headers, body []byte, key string) (string, bool) {
	ct, ok := headers.Get("content-type")
	if !ok || !strings.HasPrefix(ct, "application/json") {
		return "", false
	}
	resp := &httpmodel.Response{Headers: headers, Content: body}
	flattened := resp.FlattenJSON()
	v, ok := flattened[key]
	return v, ok
}

func extractFormParam(body []byte, key string) (string, bool) {
	resp := &httpmodel.Response{Content: body}
	params := resp.FormParams()
	return params.Get(key)
}

func extractSetCookie(headers httpmodel.Headers, key string) (string, bool) {
	raw, ok := headers.Get("set-cookie")
	if !ok {
		return "", false
	}
	resp := &httpmodel.Response{Headers: headers, SetCookie: strings.Split(raw, "\n")}
	cookies := resp.SetCookies()
	return cookies.Get(key)
}

// extractMetaRedirect mirrors id.startswith("meta-redirect-"): some sites
// randomly choose location header vs meta-refresh for the same live status.
func extractMetaRedirect(liveStatus int, headers httpmodel.Headers, body []byte, part, key string) (string, bool, error) {
	var target string
	if liveStatus == 302 {
		loc, ok := headers.Get("location")
		if !ok {
			return "", false, nil
		}
		target = loc
	} else {
		resp := &httpmodel.Response{Content: body}
		url, found, err := resp.MetaRefreshURL()
		if err != nil {
			return "", false, errs.NewParseError("meta-refresh", err)
		}
		if !found {
			return "", false, nil
		}
		target = url
	}
	v, ok := getURLPart(target, part, key)
	return v, ok, nil
}

// extractLocation mirrors id.startswith("location-"): symmetric to
// extractMetaRedirect.
func extractLocation(liveStatus int, headers httpmodel.Headers, body []byte, part, key string) (string, bool, error) {
	var target string
	if liveStatus == 200 {
		resp := &httpmodel.Response{Content: body}
		url, found, err := resp.MetaRefreshURL()
		if err != nil {
			return "", false, errs.NewParseError("meta-refresh", err)
		}
		if !found {
			return "", false, nil
		}
		target = url
	} else {
		loc, ok := headers.Get("location")
		if !ok {
			return "", false, nil
		}
		target = loc
	}
	v, ok := getURLPart(target, part, key)
	return v, ok, nil
}

func extractHiddenInput(headers httpmodel.Headers, body []byte, key string) (string, bool, error) {
	resp := &httpmodel.Response{Headers: headers, Content: body}
	inputs, err := resp.HiddenInputs()
	if err != nil {
		return "", false, errs.NewParseError("hidden-input", err)
	}
	v, ok := inputs.Get(key)
	return v, ok, nil
}

// getURLPart extracts the fragment, a named query parameter, or a
// positional path segment from a URL, per part ("fragment", "query",
// "path") and key (query name, or a decimal path index).
func getURLPart(rawURL, part, key string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	switch part {
	case "fragment":
		return u.Fragment, true
	case "query":
		q := parseQueryString(u.RawQuery)
		return q.Get(key)
	case "path":
		idx, err := strconv.Atoi(key)
		if err != nil {
			return "", false
		}
		segs := pathSegmentsOf(u.Path)
		if idx < 0 || idx >= len(segs) {
			return "", false
		}
		return segs[idx], true
	default:
		return "", false
	}
}

func pathSegmentsOf(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// queryParams is a minimal get-only view over a parsed query string, local
// to this file to avoid depending on httpmodel's OrderedMap for a one-off
// lookup.
type queryParams map[string]string

func parseQueryString(raw string) queryParams {
	q := make(queryParams)
	if raw == "" {
		return q
	}
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) == 1 {
			q[kv[0]] = ""
		} else {
			q[kv[0]] = kv[1]
		}
	}
	return q
}

func (q queryParams) Get(key string) (string, bool) {
	v, ok := q[key]
	return v, ok
}
