package replay

import (
	"encoding/base64"
	"net/url"
)

// bestEffortDecode mirrors the original's best_effort_decode: try a
// percent-decode, then a base64-decode, keeping whatever succeeds (or the
// input unchanged if a step fails). This lets a nonce that arrives wrapped
// in the recorded trace — URL-encoded or base64-encoded — still be
// recognized in its bare form.
func bestEffortDecode(value string) string {
	if decoded, err := url.QueryUnescape(value); err == nil {
		value = decoded
	}
	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil {
		value = string(decoded)
	}
	return value
}

// encodingFuncs is the fixed set of encodings applied when registering a
// retrieved (old, new) nonce value pair, matching the original's
// [quote_with_slash, unquote, base64encode, base64decode, identity] list.
// Each function may fail (return an error), in which case that encoding is
// silently skipped — this is what makes substitution robust to a nonce
// embedded url-encoded in one place and base64-encoded in another.
var encodingFuncs = []func(string) (string, error){
	percentEncode,
	percentDecode,
	base64Encode,
	base64Decode,
	identity,
}

func percentEncode(v string) (string, error) {
	return url.QueryEscape(v), nil
}

func percentDecode(v string) (string, error) {
	return url.QueryUnescape(v)
}

func base64Encode(v string) (string, error) {
	return base64.StdEncoding.EncodeToString([]byte(v)), nil
}

func base64Decode(v string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func identity(v string) (string, error) {
	return v, nil
}

// registerEncodings applies every encoding function to both old and new,
// adding each successful (encoded-old, encoded-new) pair to table. An
// encoding that fails for either side is skipped for that entry.
func registerEncodings(table map[string]string, old, new string) {
	for _, enc := range encodingFuncs {
		encodedOld, err := enc(old)
		if err != nil {
			continue
		}
		encodedNew, err := enc(new)
		if err != nil {
			continue
		}
		table[encodedOld] = encodedNew
	}
}
