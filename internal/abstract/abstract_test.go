package abstract

import (
	"strings"
	"testing"

	"reducetrace/internal/httpmodel"
	"reducetrace/internal/nonces"
	"reducetrace/internal/oracle"
)

func mustReq(t *testing.T, url string, headers map[string]string, content string) *httpmodel.Request {
	t.Helper()
	req, err := httpmodel.NewRequest("GET", url, "HTTP/1.1", httpmodel.NewHeaders(headers), []byte(content))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	return req
}

func TestTypeOfClassifiesFirstFullMatch(t *testing.T) {
	a := New([]oracle.TypeRule{
		{Name: "digits", Pattern: `[0-9]+`},
		{Name: "any", Pattern: `.*`},
	}, nil)

	if got := a.TypeOf("12345"); got != "digits" {
		t.Errorf("got %q, want digits", got)
	}
	if got := a.TypeOf("abc123"); got != "any" {
		t.Errorf("got %q, want any", got)
	}
}

func TestTypeOfUnknownWhenNoMatch(t *testing.T) {
	a := New([]oracle.TypeRule{{Name: "digits", Pattern: `[0-9]+`}}, nil)
	if got := a.TypeOf("abc"); got != "unknown" {
		t.Errorf("got %q, want unknown", got)
	}
}

func TestBuildReplacementsNumbersPerGroup(t *testing.T) {
	a := New(nil, map[string]string{"acme-corp": "org"})

	reqNonces := []nonces.Nonce{
		{Value: "tok1", Kind: nonces.KindPath},
		{Value: "tok2", Kind: nonces.KindQuery},
	}
	resNonces := []nonces.Nonce{
		{Value: "tok3", Kind: nonces.KindJSON},
	}

	reps := a.BuildReplacements(reqNonces, resNonces)
	if len(reps) != 4 {
		t.Fatalf("expected 4 replacements, got %d: %+v", len(reps), reps)
	}
	if reps[0].Old != "tok1" || !strings.HasPrefix(reps[0].New, "<request_nonce_0::") {
		t.Errorf("unexpected first replacement: %+v", reps[0])
	}
	if reps[1].Old != "tok2" || !strings.HasPrefix(reps[1].New, "<request_nonce_1::") {
		t.Errorf("unexpected second replacement: %+v", reps[1])
	}
	if reps[2].Old != "tok3" || !strings.HasPrefix(reps[2].New, "<response_nonce_0::") {
		t.Errorf("unexpected third replacement: %+v", reps[2])
	}
	if reps[3].Old != "acme-corp" || reps[3].New != "<user-defined:org>" {
		t.Errorf("unexpected known-string replacement: %+v", reps[3])
	}
}

func TestBuildReplacementsDedupesRepeatedValue(t *testing.T) {
	a := New(nil, nil)
	reqNonces := []nonces.Nonce{{Value: "dup"}, {Value: "dup"}}
	reps := a.BuildReplacements(reqNonces, nil)
	if len(reps) != 1 {
		t.Fatalf("expected 1 replacement after dedup, got %d", len(reps))
	}
}

func TestRenderVerbatimWhenNoReplacements(t *testing.T) {
	a := New(nil, nil)
	req := mustReq(t, "http://a.com/x", map[string]string{"content-type": "text/plain"}, "hello")
	res := &httpmodel.Response{StatusCode: 200, Headers: httpmodel.NewHeaders(map[string]string{"content-type": "text/plain"}), Content: []byte("world")}
	pair := &httpmodel.Pair{Request: req, Response: res}

	out := a.Render([]*httpmodel.Pair{pair}, nil, false)
	if len(out) != 1 {
		t.Fatalf("expected 1 rendered pair, got %d", len(out))
	}
	if out[0].Request.Content != "hello" || out[0].Response.Content != "world" {
		t.Errorf("expected verbatim content, got %+v", out[0])
	}
	if out[0].Response.StatusCode != 200 {
		t.Errorf("expected status 200, got %d", out[0].Response.StatusCode)
	}
}

func TestRenderSubstitutesNonceValue(t *testing.T) {
	a := New(nil, nil)
	req := mustReq(t, "http://a.com/use/SECRET", nil, "token=SECRET")
	res := &httpmodel.Response{StatusCode: 200, Headers: httpmodel.NewHeaders(nil), Content: []byte("ok")}
	pair := &httpmodel.Pair{Request: req, Response: res}

	reps := []Replacement{{Old: "SECRET", New: "<request_nonce_0::unknown>"}}
	out := a.Render([]*httpmodel.Pair{pair}, reps, false)

	if strings.Contains(out[0].Request.URL, "SECRET") {
		t.Errorf("SECRET leaked into rendered URL: %s", out[0].Request.URL)
	}
	if !strings.Contains(out[0].Request.Content, "<request_nonce_0::unknown>") {
		t.Errorf("expected placeholder in content, got %q", out[0].Request.Content)
	}
}

func TestRenderDropsInvalidUTF8Pair(t *testing.T) {
	a := New(nil, nil)
	req := mustReq(t, "http://a.com/x", nil, "")
	res := &httpmodel.Response{StatusCode: 200, Headers: httpmodel.NewHeaders(nil), Content: []byte{0xff, 0xfe, 0xfd}}
	pair := &httpmodel.Pair{Request: req, Response: res}

	out := a.Render([]*httpmodel.Pair{pair}, nil, false)
	if len(out) != 0 {
		t.Fatalf("expected pair with invalid UTF-8 body to be dropped, got %d", len(out))
	}
}

func TestRenderSetCookieAsArray(t *testing.T) {
	a := New(nil, nil)
	req := mustReq(t, "http://a.com/x", nil, "")
	res := &httpmodel.Response{
		StatusCode: 200,
		Headers:    httpmodel.NewHeaders(map[string]string{"set-cookie": "a=1\nb=2"}),
		Content:    []byte(""),
	}
	pair := &httpmodel.Pair{Request: req, Response: res}

	out := a.Render([]*httpmodel.Pair{pair}, nil, false)
	cookies, ok := out[0].Response.Headers["set-cookie"].([]string)
	if !ok {
		t.Fatalf("expected set-cookie to render as []string, got %T", out[0].Response.Headers["set-cookie"])
	}
	if len(cookies) != 2 || cookies[0] != "a=1" || cookies[1] != "b=2" {
		t.Errorf("unexpected set-cookie split: %+v", cookies)
	}
}
