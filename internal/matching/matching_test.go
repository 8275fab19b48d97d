package matching

import (
	"testing"

	"reducetrace/internal/httpmodel"
)

func mustPair(t *testing.T, method, url string, idx int) *httpmodel.Pair {
	t.Helper()
	req, err := httpmodel.NewRequest(method, url, "HTTP/1.1", httpmodel.NewHeaders(nil), nil)
	if err != nil {
		t.Fatalf("NewRequest(%q): %v", url, err)
	}
	resp := &httpmodel.Response{StatusCode: 200, Headers: httpmodel.NewHeaders(nil)}
	return &httpmodel.Pair{Request: req, Response: resp, Index: idx}
}

func countAlignments(a, b []*httpmodel.Pair) (total int, byLength map[int]int) {
	byLength = make(map[int]int)
	Align(a, b, func(al Alignment) bool {
		total++
		byLength[al.Len()]++
		return true
	})
	return total, byLength
}

func TestAlignTrivial(t *testing.T) {
	a := []*httpmodel.Pair{mustPair(t, "GET", "http://a.com/", 0)}
	b := []*httpmodel.Pair{mustPair(t, "GET", "http://a.com/", 0)}

	var got []Alignment
	Align(a, b, func(al Alignment) bool {
		got = append(got, al)
		return true
	})
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 alignment, got %d", len(got))
	}
	if got[0].Len() != 1 || got[0].Left[0] != 0 || got[0].Right[0] != 0 {
		t.Fatalf("expected [(0,0)], got %+v", got[0])
	}
}

func TestAlignSimpleCount(t *testing.T) {
	a := []*httpmodel.Pair{
		mustPair(t, "GET", "http://a.com/", 0),
		mustPair(t, "GET", "http://b.com/", 1),
	}
	b := []*httpmodel.Pair{
		mustPair(t, "GET", "http://a.com/", 0),
		mustPair(t, "GET", "http://b.com/", 1),
	}
	total, byLen := countAlignments(a, b)
	if total != 3 {
		t.Fatalf("expected 3 alignments, got %d", total)
	}
	if byLen[2] != 1 || byLen[1] != 2 {
		t.Fatalf("expected 1 length-2 and 2 length-1, got %+v", byLen)
	}
}

func TestAlignSwapInfeasible(t *testing.T) {
	a := []*httpmodel.Pair{
		mustPair(t, "GET", "http://b.com/", 0),
		mustPair(t, "GET", "http://a.com/", 1),
	}
	b := []*httpmodel.Pair{
		mustPair(t, "GET", "http://a.com/", 0),
		mustPair(t, "GET", "http://b.com/", 1),
	}
	total, byLen := countAlignments(a, b)
	if total != 2 {
		t.Fatalf("expected 2 alignments, got %d", total)
	}
	if byLen[2] != 0 || byLen[1] != 2 {
		t.Fatalf("expected no length-2 solution and 2 length-1, got %+v", byLen)
	}
}

func TestAlignMultiPath(t *testing.T) {
	a := []*httpmodel.Pair{
		mustPair(t, "GET", "http://a.com/1", 0),
		mustPair(t, "GET", "http://a.com/2", 1),
		mustPair(t, "GET", "http://b.com/1", 2),
		mustPair(t, "GET", "http://b.com/2", 3),
	}
	b := []*httpmodel.Pair{
		mustPair(t, "GET", "http://a.com/a", 0),
		mustPair(t, "GET", "http://a.com/b", 1),
		mustPair(t, "GET", "http://b.com/a", 2),
		mustPair(t, "GET", "http://b.com/b", 3),
	}
	total, _ := countAlignments(a, b)
	if total != 35 {
		t.Fatalf("expected 35 alignments, got %d", total)
	}
}

func TestSimilarIgnoresPathAndQueryContent(t *testing.T) {
	p := mustPair(t, "GET", "http://a.com/x?y=1", 0)
	q := mustPair(t, "GET", "http://a.com/z?w=2", 1)
	if !Similar(p, q) {
		t.Fatalf("expected p and q to be similar (shape-only comparison)")
	}
}

func TestSimilarRejectsMethodMismatch(t *testing.T) {
	p := mustPair(t, "GET", "http://a.com/", 0)
	q := mustPair(t, "POST", "http://a.com/", 1)
	if Similar(p, q) {
		t.Fatalf("expected method mismatch to break similarity")
	}
}
