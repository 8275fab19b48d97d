package httpmodel

import "fmt"

// SchemeHostPort returns the scheme, host and effective port of the
// request's URL, with the port defaulted from the scheme when absent
// (443 for https, 80 otherwise). Two requests with equal SchemeHostPort
// target the same origin for the purposes of the matcher's similar()
// relation.
func (r *Request) SchemeHostPort() (scheme, host string, port string) {
	u := r.ParsedURL
	port = u.Port()
	if port == "" {
		if u.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}
	return u.Scheme, u.Hostname(), port
}

// Origin returns a canonical "scheme://host:port" string for the request's
// URL, suitable for equality comparison in similar().
func (r *Request) Origin() string {
	scheme, host, port := r.SchemeHostPort()
	return fmt.Sprintf("%s://%s:%s", scheme, host, port)
}
