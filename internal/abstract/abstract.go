// Package abstract renders a pruned trace to its external JSON form,
// optionally replacing every discovered nonce value and user-declared known
// string with a stable placeholder token so the output can be shared without
// leaking live secrets. Substitution is done by a single batched
// strings.Replacer built once per render.
package abstract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"reducetrace/internal/httpmodel"
	"reducetrace/internal/nonces"
	"reducetrace/internal/oracle"
)

// Abstractor classifies nonce values and renders traces with placeholders
// substituted for live values.
type Abstractor struct {
	types        []compiledType
	knownStrings map[string]string
}

type compiledType struct {
	name string
	re   *regexp.Regexp
}

// New compiles the ordered type-classification table and retains the
// known-string labels from the host application's oracle.Capabilities.
// Patterns that fail to compile are skipped; classification falls back to
// "unknown" for any value no pattern fully matches.
func New(types []oracle.TypeRule, knownStrings map[string]string) *Abstractor {
	a := &Abstractor{knownStrings: knownStrings}
	for _, t := range types {
		re, err := regexp.Compile("^(?:" + t.Pattern + ")$")
		if err != nil {
			continue
		}
		a.types = append(a.types, compiledType{name: t.Name, re: re})
	}
	return a
}

// TypeOf classifies a nonce value against the ordered type table, returning
// the first full match's name or "unknown".
func (a *Abstractor) TypeOf(value string) string {
	for _, t := range a.types {
		if t.re.MatchString(value) {
			return t.name
		}
	}
	return "unknown"
}

// Replacement is one literal-value -> placeholder substitution.
type Replacement struct {
	Old string
	New string
}

// BuildReplacements assigns a stable placeholder to every distinct nonce
// value, request-side nonces first, then response-side, each numbered from
// zero within its own group, followed by the host application's
// known-string labels. A value already assigned a placeholder (seen as both
// a request and a response nonce) keeps its first assignment, and a nonce
// value that is also a known string gets only its known-string label.
func (a *Abstractor) BuildReplacements(requestNonces, responseNonces []nonces.Nonce) []Replacement {
	seen := make(map[string]bool)
	for k := range a.knownStrings {
		seen[k] = true
	}
	var out []Replacement

	i := 0
	for _, n := range requestNonces {
		if seen[n.Value] {
			continue
		}
		seen[n.Value] = true
		out = append(out, Replacement{Old: n.Value, New: placeholder("request_nonce", i, a.TypeOf(n.Value))})
		i++
	}

	i = 0
	for _, n := range responseNonces {
		if seen[n.Value] {
			continue
		}
		seen[n.Value] = true
		out = append(out, Replacement{Old: n.Value, New: placeholder("response_nonce", i, a.TypeOf(n.Value))})
		i++
	}

	knownKeys := make([]string, 0, len(a.knownStrings))
	for k := range a.knownStrings {
		knownKeys = append(knownKeys, k)
	}
	sort.Strings(knownKeys)
	for _, k := range knownKeys {
		out = append(out, Replacement{Old: k, New: "<user-defined:" + a.knownStrings[k] + ">"})
	}

	return out
}

func placeholder(kind string, index int, typeName string) string {
	return "<" + kind + "_" + strconv.Itoa(index) + "::" + typeName + ">"
}

// Pair is one request/response pair in the rendered output.
type Pair struct {
	Request  Message `json:"request"`
	Response Message `json:"response"`
}

// Message is the JSON rendering of one side of a pair. StatusCode is unset
// (zero) for a request.
type Message struct {
	URL        string         `json:"url,omitempty"`
	Method     string         `json:"method,omitempty"`
	StatusCode int            `json:"status_code,omitempty"`
	Headers    map[string]any `json:"headers"`
	Content    string         `json:"content"`
}

// Render converts a pruned trace to its output form. When replacements is
// empty, content and headers are copied verbatim (SHOULD_ABSTRACT_OUTPUT
// true, per the external configuration contract); otherwise every value is
// passed through the replacer first. Pairs whose request or response body
// cannot be decoded as UTF-8 are silently dropped, matching the external
// output contract. When onlyNonceValues is true, a pair's content is
// replaced with just the nonce key/value substitutions observed for that
// pair instead of the full body.
func (a *Abstractor) Render(trace []*httpmodel.Pair, replacements []Replacement, onlyNonceValues bool) []Pair {
	replacer := buildReplacer(replacements)

	out := make([]Pair, 0, len(trace))
	for _, pair := range trace {
		reqMsg, ok := renderMessage(pair.Request.Headers, pair.Request.Content, replacer)
		if !ok {
			continue
		}
		reqMsg.URL = applyReplacer(replacer, pair.Request.URL)
		reqMsg.Method = pair.Request.Method

		resMsg, ok := renderMessage(pair.Response.Headers, pair.Response.Content, replacer)
		if !ok {
			continue
		}
		resMsg.StatusCode = pair.Response.StatusCode

		if onlyNonceValues {
			reqMsg.Content = nonceSummary(replacements, string(pair.Request.Content))
			resMsg.Content = nonceSummary(replacements, string(pair.Response.Content))
		}

		out = append(out, Pair{Request: reqMsg, Response: resMsg})
	}
	return out
}

func renderMessage(headers httpmodel.Headers, content []byte, replacer *strings.Replacer) (Message, bool) {
	if !isValidUTF8(content) {
		return Message{}, false
	}

	rendered := make(map[string]any, len(headers))
	for k, v := range headers {
		if k == "set-cookie" {
			parts := strings.Split(v, "\n")
			cookies := make([]string, len(parts))
			for i, p := range parts {
				cookies[i] = applyReplacer(replacer, p)
			}
			rendered[k] = cookies
			continue
		}
		rendered[k] = applyReplacer(replacer, v)
	}

	return Message{Headers: rendered, Content: applyReplacer(replacer, string(content))}, true
}

func applyReplacer(replacer *strings.Replacer, s string) string {
	if replacer == nil {
		return s
	}
	return replacer.Replace(s)
}

func buildReplacer(replacements []Replacement) *strings.Replacer {
	if len(replacements) == 0 {
		return nil
	}
	pairs := make([]string, 0, len(replacements)*2)
	for _, r := range replacements {
		pairs = append(pairs, r.Old, r.New)
	}
	return strings.NewReplacer(pairs...)
}

func nonceSummary(replacements []Replacement, content string) string {
	var b strings.Builder
	for _, r := range replacements {
		if strings.Contains(content, r.Old) {
			if b.Len() > 0 {
				b.WriteString(";")
			}
			b.WriteString(r.New)
			b.WriteString("=")
			b.WriteString(r.Old)
		}
	}
	return b.String()
}

func isValidUTF8(b []byte) bool {
	return utf8.Valid(b)
}
