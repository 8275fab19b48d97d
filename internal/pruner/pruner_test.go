package pruner

import (
	"testing"

	"reducetrace/internal/httpmodel"
)

func mustPair(t *testing.T, url string) *httpmodel.Pair {
	t.Helper()
	req, err := httpmodel.NewRequest("GET", url, "HTTP/1.1", httpmodel.NewHeaders(nil), nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	return &httpmodel.Pair{Request: req, Response: &httpmodel.Response{StatusCode: 200, Headers: httpmodel.NewHeaders(nil)}}
}

// TestPruneDeltaDebugReduction mirrors scenario S6: a three-pair trace
// [p1, pOracle, p2] where p2's removal preserves the oracle but p1's does
// not. The pruner must return [p1, pOracle].
func TestPruneDeltaDebugReduction(t *testing.T) {
	p1 := mustPair(t, "http://a.com/1")
	pOracle := mustPair(t, "http://a.com/oracle")
	p2 := mustPair(t, "http://a.com/2")
	trace := []*httpmodel.Pair{p1, pOracle, p2}

	replay := func(candidate []*httpmodel.Pair) bool {
		hasP1 := false
		for _, p := range candidate {
			if p == p1 {
				hasP1 = true
			}
		}
		return hasP1
	}

	pr := New(nil, NewMemoryStore(), "test-run", 0)
	result := pr.Prune(trace, pOracle, replay)

	if len(result) != 2 || result[0] != p1 || result[1] != pOracle {
		t.Fatalf("expected [p1, pOracle], got %+v", result)
	}
}

func TestPruneNeverRemovesOraclePair(t *testing.T) {
	p1 := mustPair(t, "http://a.com/1")
	pOracle := mustPair(t, "http://a.com/oracle")
	trace := []*httpmodel.Pair{p1, pOracle}

	replay := func(candidate []*httpmodel.Pair) bool { return true }

	pr := New(nil, NewMemoryStore(), "test-run-2", 0)
	result := pr.Prune(trace, pOracle, replay)

	found := false
	for _, p := range result {
		if p == pOracle {
			found = true
		}
	}
	if !found {
		t.Fatalf("oracle pair must always survive pruning, got %+v", result)
	}
}
