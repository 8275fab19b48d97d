package replay

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"reducetrace/internal/errs"
	"reducetrace/internal/httpmodel"
	"reducetrace/internal/nonces"
)

func TestRunSubstitutesJSONNonce(t *testing.T) {
	var sawPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/start":
			w.Header().Set("content-type", "application/json")
			w.Write([]byte(`{"tok":"NEW"}`))
		default:
			sawPath = req.URL.Path
			w.WriteHeader(200)
		}
	}))
	defer server.Close()

	req1, err := httpmodel.NewRequest("GET", server.URL+"/start", "HTTP/1.1", httpmodel.NewHeaders(nil), nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	recordedRes1 := &httpmodel.Response{
		StatusCode: 200,
		Headers:    httpmodel.NewHeaders(map[string]string{"content-type": "application/json"}),
		Content:    []byte(`{"tok":"OLD"}`),
	}
	pair1 := &httpmodel.Pair{Request: req1, Response: recordedRes1, Index: 0}

	req2, err := httpmodel.NewRequest("GET", server.URL+"/use/OLD", "HTTP/1.1", httpmodel.NewHeaders(nil), nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	recordedRes2 := &httpmodel.Response{StatusCode: 200, Headers: httpmodel.NewHeaders(nil)}
	pair2 := &httpmodel.Pair{Request: req2, Response: recordedRes2, Index: 1}

	nonceSet := BuildResponseNonceSet([]nonces.Nonce{
		{Origin: recordedRes1, Value: "OLD", Kind: nonces.KindJSON, Key: "|tok", HasKey: true},
	})

	r := New(nil)
	ok, n, err := r.Run([]*httpmodel.Pair{pair1, pair2}, nonceSet, pair2, func(status int, headers httpmodel.Headers, body []byte) bool {
		return status == 200
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !ok {
		t.Fatalf("expected oracle verdict true")
	}
	if n != 2 {
		t.Fatalf("expected 2 pairs replayed, got %d", n)
	}
	if sawPath != "/use/NEW" {
		t.Fatalf("expected rewritten path /use/NEW, got %q", sawPath)
	}
	if strings.Contains(sawPath, "OLD") {
		t.Fatalf("old nonce value leaked into replayed request: %q", sawPath)
	}
}

func TestRunOracleNotUsedError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(200)
	}))
	defer server.Close()

	req1, _ := httpmodel.NewRequest("GET", server.URL+"/a", "HTTP/1.1", httpmodel.NewHeaders(nil), nil)
	pair1 := &httpmodel.Pair{Request: req1, Response: &httpmodel.Response{StatusCode: 200, Headers: httpmodel.NewHeaders(nil)}}

	notInTrace := &httpmodel.Pair{Request: req1, Response: &httpmodel.Response{StatusCode: 200, Headers: httpmodel.NewHeaders(nil)}}

	r := New(nil)
	_, _, err := r.Run([]*httpmodel.Pair{pair1}, nil, notInTrace, func(int, httpmodel.Headers, []byte) bool { return true })
	if err == nil {
		t.Fatalf("expected OracleNotUsedError")
	}
}

func TestRunReplayMismatchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(404)
	}))
	defer server.Close()

	req1, _ := httpmodel.NewRequest("GET", server.URL+"/a", "HTTP/1.1", httpmodel.NewHeaders(nil), nil)
	pair1 := &httpmodel.Pair{Request: req1, Response: &httpmodel.Response{StatusCode: 200, Headers: httpmodel.NewHeaders(nil)}, Index: 0}

	r := New(nil)
	_, _, err := r.Run([]*httpmodel.Pair{pair1}, nil, pair1, func(int, httpmodel.Headers, []byte) bool { return true })
	if err == nil {
		t.Fatalf("expected a ReplayMismatch error")
	}
	var mismatch *errs.ReplayMismatch
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected *errs.ReplayMismatch, got %T: %v", err, err)
	}
	if mismatch.RecordedStatus != 200 || mismatch.LiveStatus != 404 {
		t.Fatalf("unexpected mismatch: %+v", mismatch)
	}
}
