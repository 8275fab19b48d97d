// Package matching implements the alignment between two recorded traces: the
// order-preserving, strictly-monotonic, injective index mapping under which
// paired request/response pairs are "similar" in shape.
package matching

import "reducetrace/internal/httpmodel"

// Alignment is an order-preserving pairing between trace A and trace B: for
// every k, A[Left[k]] is similar to B[Right[k]], with Left and Right both
// strictly increasing.
type Alignment struct {
	Left  []int
	Right []int
}

// Len returns the number of paired positions in the alignment.
func (a Alignment) Len() int { return len(a.Left) }

// AlignedPair is one paired position, zipped from an Alignment.
type AlignedPair struct {
	A, B *httpmodel.Pair
}

// Pairs zips the alignment's indices against the two traces.
func (a Alignment) Pairs(left, right []*httpmodel.Pair) []AlignedPair {
	out := make([]AlignedPair, a.Len())
	for k := range a.Left {
		out[k] = AlignedPair{A: left[a.Left[k]], B: right[a.Right[k]]}
	}
	return out
}

// Matcher enumerates alignments between two traces, longest-first, all
// solutions within a length before the next shorter length.
type Matcher struct{}

// New returns a Matcher. It holds no state; similar() is a pure function of
// two pairs.
func New() *Matcher {
	return &Matcher{}
}

// Similar reports whether p and q are similar in shape: equal methods, equal
// scheme/host/port, equal non-empty-path-segment counts, equal query
// parameter counts. Path content, query values and fragments are ignored —
// only shape matters.
func Similar(p, q *httpmodel.Pair) bool {
	pr, qr := p.Request, q.Request
	if pr.Method != qr.Method {
		return false
	}
	if pr.Origin() != qr.Origin() {
		return false
	}
	if len(pr.PathSegments()) != len(qr.PathSegments()) {
		return false
	}
	if pr.QueryParams().Len() != qr.QueryParams().Len() {
		return false
	}
	return true
}

// candidates returns, for every index in a, the sorted list of indices in b
// that are similar to it. Memoized once per Align call since similar() only
// depends on the two traces, not on the search state.
func candidates(a, b []*httpmodel.Pair) [][]int {
	out := make([][]int, len(a))
	for i, pa := range a {
		var cs []int
		for j, pb := range b {
			if Similar(pa, pb) {
				cs = append(cs, j)
			}
		}
		out[i] = cs
	}
	return out
}

// Align enumerates every alignment between a and b, longest length first;
// within a length, all solutions are produced before the matcher moves to
// the next (shorter) length. emit is called once per alignment found; it
// returns false to stop enumeration early (e.g. once the Replayer accepts
// one).
func Align(a, b []*httpmodel.Pair, emit func(Alignment) (keepGoing bool)) {
	if len(a) == 0 || len(b) == 0 {
		return
	}
	cands := candidates(a, b)
	maxLen := len(a)
	if len(b) < maxLen {
		maxLen = len(b)
	}
	for l := maxLen; l >= 1; l-- {
		if !solveLength(a, b, cands, l, emit) {
			return
		}
	}
}

// solveLength enumerates every alignment of exactly length l, returning
// false if emit asked to stop.
func solveLength(a, b []*httpmodel.Pair, cands [][]int, l int, emit func(Alignment) bool) bool {
	left := make([]int, 0, l)
	right := make([]int, 0, l)
	keepGoing := true

	var backtrack func(startA, startB int)
	backtrack = func(startA, startB int) {
		if !keepGoing {
			return
		}
		if len(left) == l {
			lCopy := append([]int(nil), left...)
			rCopy := append([]int(nil), right...)
			keepGoing = emit(Alignment{Left: lCopy, Right: rCopy})
			return
		}
		remaining := l - len(left)
		for ai := startA; ai <= len(a)-remaining; ai++ {
			for _, bj := range cands[ai] {
				if bj < startB {
					continue
				}
				if len(b)-bj < remaining {
					break
				}
				left = append(left, ai)
				right = append(right, bj)
				backtrack(ai+1, bj+1)
				left = left[:len(left)-1]
				right = right[:len(right)-1]
				if !keepGoing {
					return
				}
			}
		}
	}
	backtrack(0, 0)
	return keepGoing
}
