package replay

import (
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/publicsuffix"
)

// newTransport builds the *http.Transport used to replay a trace, adapted
// from the proxy's forwarding transport: a dial timeout, idle-connection
// pooling, and H2 negotiation for servers that require it.
func newTransport() *http.Transport {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          200,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	// Best-effort: wire explicit H2 support onto the transport so replay
	// can negotiate HTTP/2 against servers that require it even when ALPN
	// configuration alone wouldn't trigger it.
	_ = http2.ConfigureTransport(t)
	return t
}

// newClient builds the http.Client the Replayer drives requests through.
// Redirects are disabled by default per the replay state machine; the
// one-shot 200<->302 recovery path constructs its own client with redirects
// enabled instead of mutating this one, since Go's CheckRedirect is sticky
// per-client, not per-request. A public-suffix-aware cookie jar is used so
// that the recovery path (which does let the client follow a redirect hop)
// carries any Set-Cookie responses from the intermediate hop onward, the
// way a browser would.
func newClient() *http.Client {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &http.Client{
		Transport: newTransport(),
		Jar:       jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// newRedirectFollowingClient builds a client sharing the same transport and
// jar but with redirects enabled, used for the one-shot 200<->302 recovery
// retry.
func newRedirectFollowingClient(base *http.Client) *http.Client {
	return &http.Client{
		Transport: base.Transport,
		Jar:       base.Jar,
	}
}
