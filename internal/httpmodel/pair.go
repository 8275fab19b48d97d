package httpmodel

import (
	"crypto/sha256"
	"fmt"
	"hash"
	"sort"
)

// Pair is a single recorded request/response exchange, the atomic unit the
// matcher aligns, the nonce finder diffs, and the pruners remove or keep.
type Pair struct {
	Request  *Request
	Response *Response
	// Index is the pair's position in its originating trace, kept for
	// stable ordering and diagnostics after pruning reorders slices.
	Index int
}

// Hash returns a structural identity for the pair, combining request and
// response identities. Two pairs with the same Hash are interchangeable for
// alignment and pruning purposes.
func (p *Pair) Hash() string {
	sum := sha256.New()
	fmt.Fprintf(sum, "%s\x00%s", p.Request.Identity(), p.Response.Identity())
	return fmt.Sprintf("%x", sum.Sum(nil))
}

// writeHeaders hashes a Headers map (and, for responses, the ordered
// Set-Cookie lines) into h in a key-sorted, order-independent way so that
// two functionally identical header sets always produce the same bytes.
func writeHeaders(h hash.Hash, headers Headers, setCookie []string) {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%s\x00", k, headers[k])
	}
	for _, sc := range setCookie {
		fmt.Fprintf(h, "set-cookie:%s\x00", sc)
	}
}
