// Package replay drives a trace against a live endpoint, rewriting each
// outgoing request with freshly observed nonce values, tolerating 200<->302
// ambiguity between the recorded and live response, and evaluating the
// caller's oracle predicate on the designated oracle pair.
package replay

import (
	"io"
	"net/http"
	"sort"
	"strings"

	"reducetrace/internal/errs"
	"reducetrace/internal/httpmodel"
	"reducetrace/internal/logger"
	"reducetrace/internal/nonces"
)

// ResponseNonceSet maps a recorded response (by pointer identity, the
// alignment's A-side response) to the response-side nonces that response
// originated, the shape Nonce Retrieval consults while mirroring that
// response live.
type ResponseNonceSet map[*httpmodel.Response][]nonces.Nonce

// BuildResponseNonceSet groups response nonces by their origin response.
func BuildResponseNonceSet(responseNonces []nonces.Nonce) ResponseNonceSet {
	set := make(ResponseNonceSet)
	for _, n := range responseNonces {
		res, ok := n.Origin.(*httpmodel.Response)
		if !ok {
			continue
		}
		set[res] = append(set[res], n)
	}
	return set
}

// Replayer drives a trace of pairs against a live server.
type Replayer struct {
	log    *logger.Logger
	client *http.Client
}

// New builds a Replayer.
func New(log *logger.Logger) *Replayer {
	return &Replayer{log: log, client: newClient()}
}

// Run replays trace in order, substituting nonces as they're discovered,
// and returns the oracle's verdict once the designated oraclePair has been
// observed live. oraclePair must be a pointer-identical element of trace.
// oracle is invoked with the live status, headers and body of the oracle
// pair's mirrored response. The returned count is the number of pairs
// actually issued live before Run returned, which is less than len(trace)
// when a transport error or status mismatch aborts the replay early.
func (r *Replayer) Run(
	trace []*httpmodel.Pair,
	nonceSet ResponseNonceSet,
	oraclePair *httpmodel.Pair,
	oracle func(status int, headers httpmodel.Headers, body []byte) bool,
) (bool, int, error) {
	realNonces := make(map[string]string)
	var verdict *bool

	for i, pair := range trace {
		liveStatus, liveHeaders, liveBody, err := r.replayOne(pair, realNonces)
		if err != nil {
			return false, i + 1, errs.NewTransportError("replay request", err)
		}

		recordedStatus := pair.Response.StatusCode
		statusOK := liveStatus == recordedStatus || (is200or302(liveStatus) && is200or302(recordedStatus))
		if !statusOK {
			if r.log != nil {
				r.log.Warnf("replay", "pair %d: recorded status %d, live status %d", pair.Index, recordedStatus, liveStatus)
			}
			return false, i + 1, errs.NewReplayMismatch(pair.Index, recordedStatus, liveStatus)
		}

		r.retrieveNonces(pair.Response, liveStatus, liveHeaders, liveBody, nonceSet, realNonces)

		if pair == oraclePair {
			ok := oracle(liveStatus, liveHeaders, liveBody)
			verdict = &ok
		}
	}

	if verdict == nil {
		return false, len(trace), errs.NewOracleNotUsedError(len(trace))
	}
	return *verdict, len(trace), nil
}

func is200or302(status int) bool {
	return status == 200 || status == 302
}

// replayOne issues one request, applying the 200<->302 recovery retry when
// the live status diverges from the recorded one but both sides are in
// {200, 302}.
func (r *Replayer) replayOne(pair *httpmodel.Pair, realNonces map[string]string) (int, httpmodel.Headers, []byte, error) {
	url, headers, body := prepareForReplay(pair.Request, realNonces)

	status, respHeaders, respBody, err := r.doRequest(r.client, pair.Request.Method, url, headers, body)
	if err != nil {
		return 0, nil, nil, err
	}

	recorded := pair.Response.StatusCode
	if status != recorded && is200or302(status) && is200or302(recorded) {
		retryClient := newRedirectFollowingClient(r.client)
		if s, h, b, err := r.doRequest(retryClient, pair.Request.Method, url, headers, body); err == nil {
			status, respHeaders, respBody = s, h, b
		}
	}

	return status, respHeaders, respBody, nil
}

func (r *Replayer) doRequest(client *http.Client, method, url string, headers httpmodel.Headers, body []byte) (int, httpmodel.Headers, []byte, error) {
	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = strings.NewReader(string(body))
	}
	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return 0, nil, nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, err
	}

	respHeaders := httpmodel.NewHeaders(nil)
	for k := range resp.Header {
		respHeaders.Set(k, resp.Header.Get(k))
	}
	if len(resp.Header.Values("set-cookie")) > 0 {
		respHeaders.Set("set-cookie", strings.Join(resp.Header.Values("set-cookie"), "\n"))
	}

	return resp.StatusCode, respHeaders, respBody, nil
}

// prepareForReplay builds the outgoing URL, headers and body for a request,
// substituting every known nonce (longest old-value first, so a shorter key
// cannot cannibalize a longer one that contains it), then dropping the
// content-length/date headers (stale after substitution) and the
// host/:authority headers (synthesized by the HTTP client from the URL).
func prepareForReplay(req *httpmodel.Request, realNonces map[string]string) (string, httpmodel.Headers, []byte) {
	headers := req.HeadersForReplay()
	content := string(req.Content)
	outURL := req.URL

	oldNonces := make([]string, 0, len(realNonces))
	for old := range realNonces {
		oldNonces = append(oldNonces, old)
	}
	sort.Slice(oldNonces, func(i, j int) bool { return len(oldNonces[i]) > len(oldNonces[j]) })

	for _, old := range oldNonces {
		new := realNonces[old]
		for k, v := range headers {
			headers[k] = strings.ReplaceAll(v, old, new)
		}
		content = strings.ReplaceAll(content, old, new)
		outURL = strings.ReplaceAll(outURL, old, new)
	}
	headers.Del("content-length")
	headers.Del("date")

	return outURL, headers, []byte(content)
}
