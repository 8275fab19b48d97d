package httpmodel

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
)

// Response is a single recorded HTTP response.
type Response struct {
	StatusCode int
	Headers    Headers
	SetCookie  []string
	Content    []byte
}

// SetCookies returns the response's Set-Cookie values as an insertion-ordered
// map of cookie name to value. Cookie attributes (Path, Domain, Expires, ...)
// are discarded; only name=value matters for nonce discovery.
func (r *Response) SetCookies() *OrderedMap {
	m := NewOrderedMap()
	for _, line := range r.SetCookie {
		first := line
		if idx := strings.Index(line, ";"); idx >= 0 {
			first = line[:idx]
		}
		idx := strings.Index(first, "=")
		if idx < 0 {
			continue
		}
		m.Set(strings.TrimSpace(first[:idx]), first[idx+1:])
	}
	return m
}

// ContentType returns the media type portion of the Content-Type header,
// lowercased, with any parameters stripped.
func (r *Response) ContentType() string {
	ct, ok := r.Headers.Get("content-type")
	if !ok {
		return ""
	}
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = ct[:idx]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// IsJSON reports whether the response's content-type indicates JSON.
func (r *Response) IsJSON() bool {
	ct := r.ContentType()
	return ct == "application/json" || strings.HasSuffix(ct, "+json")
}

// IsFormURLEncoded reports whether the response's content-type indicates
// form-urlencoded data.
func (r *Response) IsFormURLEncoded() bool {
	return r.ContentType() == "application/x-www-form-urlencoded"
}

// IsHTML reports whether the response's content-type indicates HTML.
func (r *Response) IsHTML() bool {
	return r.ContentType() == "text/html"
}

// FlattenJSON walks the response body as JSON and returns a flat map from
// "|"-joined path (e.g. "|user|tokens|0|value") to the scalar value found
// there, mirroring the original's recursive JSON flattener. Non-JSON bodies
// or parse failures yield an empty map.
func (r *Response) FlattenJSON() map[string]string {
	out := make(map[string]string)
	body := StripXSSIPrefix(r.Content)
	if !gjson.ValidBytes(body) {
		return out
	}
	flattenValue("", gjson.ParseBytes(body), out)
	return out
}

// StripXSSIPrefix removes a 4-byte XSSI-protection prefix line (such as
// `)]}'`) from a JSON body if the first line is exactly 4 bytes long,
// mirroring the original's `len(content.split("\n")[0]) == 4` check.
func StripXSSIPrefix(content []byte) []byte {
	idx := -1
	for i, b := range content {
		if b == '\n' {
			idx = i
			break
		}
	}
	firstLine := content
	if idx >= 0 {
		firstLine = content[:idx]
	}
	firstLine = []byte(strings.TrimSuffix(string(firstLine), "\r"))
	if len(firstLine) == 4 && idx >= 0 {
		return content[idx+1:]
	}
	return content
}

func flattenValue(prefix string, v gjson.Result, out map[string]string) {
	switch {
	case v.IsObject():
		v.ForEach(func(key, val gjson.Result) bool {
			flattenValue(prefix+"|"+key.String(), val, out)
			return true
		})
	case v.IsArray():
		i := 0
		v.ForEach(func(_, val gjson.Result) bool {
			flattenValue(fmt.Sprintf("%s|%d", prefix, i), val, out)
			i++
			return true
		})
	default:
		out[prefix] = v.String()
	}
}

// FormParams parses the response body as form-urlencoded data ("&" then
// "="), returning an insertion-ordered map. Used when a response declares
// application/x-www-form-urlencoded.
func (r *Response) FormParams() *OrderedMap {
	return parseQueryParams(string(r.Content))
}

// document lazily parses the response body as HTML. Callers must check
// IsHTML (or tolerate an empty-document result on non-HTML content) before
// relying on the result.
func (r *Response) document() (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(string(r.Content)))
}

// HiddenInputs returns every <input type="hidden"> element's locator/value
// pair. The locator is `//input[@id='ID']` when the element carries an id
// attribute, else a canonical tag-index path from the document root (e.g.
// "html[1]/body[1]/form[1]/input[3]"), mirroring the original's XPath-based
// hidden-input lookup (getpath fallback) without depending on an XPath
// engine.
func (r *Response) HiddenInputs() (*OrderedMap, error) {
	m := NewOrderedMap()
	doc, err := r.document()
	if err != nil {
		return m, fmt.Errorf("parse html for hidden inputs: %w", err)
	}
	doc.Find(`input[type="hidden"]`).Each(func(_ int, s *goquery.Selection) {
		value, _ := s.Attr("value")
		m.Set(hiddenInputLocator(s), value)
	})
	return m, nil
}

// hiddenInputLocator builds the XPath-shaped key for a hidden input element:
// its id if present, else the ancestor chain of tag-name + same-tag sibling
// index, root first.
func hiddenInputLocator(s *goquery.Selection) string {
	if id, ok := s.Attr("id"); ok && id != "" {
		return fmt.Sprintf("//input[@id='%s']", id)
	}
	var segments []string
	for cur := s; cur.Length() > 0; {
		node := cur.Get(0)
		if node.Parent == nil {
			break
		}
		tag := node.Data
		if tag == "" {
			break
		}
		idx := 1
		for sib := node.Parent.FirstChild; sib != nil && sib != node; sib = sib.NextSibling {
			if sib.Data == tag {
				idx++
			}
		}
		segments = append([]string{fmt.Sprintf("%s[%d]", tag, idx)}, segments...)
		cur = cur.Parent()
	}
	return strings.Join(segments, "/")
}

// MetaRefreshURL returns the target URL of a
// <meta http-equiv="refresh" content="N;url=TARGET"> tag, if present. This
// parses the tag's "content" attribute, not the tag itself — the original
// implementation's standalone parser operated on the element and crashed;
// the in-line nonce-discovery path already parsed the attribute correctly,
// and this mirrors that correct path.
func (r *Response) MetaRefreshURL() (string, bool, error) {
	doc, err := r.document()
	if err != nil {
		return "", false, fmt.Errorf("parse html for meta refresh: %w", err)
	}
	var target string
	var found bool
	doc.Find(`meta[http-equiv="refresh" i]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		content, ok := s.Attr("content")
		if !ok {
			return true
		}
		parts := strings.SplitN(content, ";", 2)
		if len(parts) != 2 {
			return true
		}
		rest := strings.TrimSpace(parts[1])
		const prefix = "url="
		if !strings.HasPrefix(strings.ToLower(rest), prefix) {
			return true
		}
		target = strings.TrimSpace(rest[len(prefix):])
		target = strings.Trim(target, `"'`)
		found = true
		return false
	})
	return target, found, nil
}

// Identity returns a structural hash over status, headers, set-cookie and
// content, used to give a Pair's response a stable identity.
func (r *Response) Identity() string {
	sum := sha256.New()
	fmt.Fprintf(sum, "%d\x00", r.StatusCode)
	writeHeaders(sum, r.Headers, r.SetCookie)
	sum.Write(r.Content)
	return fmt.Sprintf("%x", sum.Sum(nil))
}
