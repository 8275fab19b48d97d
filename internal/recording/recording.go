// Package recording loads a recorded trace from disk into the Pair slice
// the rest of the engine operates on. Traces are stored as a JSON array
// using the same shape the engine itself writes as final output (see
// internal/abstract), so a prior reduction's output is itself a valid input
// trace and no second wire format needs to exist.
package recording

import (
	"encoding/json"
	"fmt"
	"os"

	"reducetrace/internal/httpmodel"
)

type wireMessage struct {
	URL        string          `json:"url"`
	Method     string          `json:"method"`
	StatusCode int             `json:"status_code"`
	Headers    json.RawMessage `json:"headers"`
	Content    string          `json:"content"`
}

type wirePair struct {
	Request  wireMessage `json:"request"`
	Response wireMessage `json:"response"`
}

// LoadFile parses a recorded trace file into an ordered slice of Pairs,
// stamping each Pair's Index with its position in the file.
func LoadFile(path string) ([]*httpmodel.Pair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trace file %s: %w", path, err)
	}

	var wire []wirePair
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("parse trace file %s: %w", path, err)
	}

	pairs := make([]*httpmodel.Pair, len(wire))
	for i, wp := range wire {
		pair, err := toPair(wp, i)
		if err != nil {
			return nil, fmt.Errorf("trace file %s, pair %d: %w", path, i, err)
		}
		pairs[i] = pair
	}
	return pairs, nil
}

func toPair(wp wirePair, index int) (*httpmodel.Pair, error) {
	reqHeaders, _, err := parseHeaders(wp.Request.Headers)
	if err != nil {
		return nil, fmt.Errorf("request headers: %w", err)
	}
	req, err := httpmodel.NewRequest(wp.Request.Method, wp.Request.URL, "HTTP/1.1", reqHeaders, []byte(wp.Request.Content))
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}

	resHeaders, setCookie, err := parseHeaders(wp.Response.Headers)
	if err != nil {
		return nil, fmt.Errorf("response headers: %w", err)
	}
	res := &httpmodel.Response{
		StatusCode: wp.Response.StatusCode,
		Headers:    resHeaders,
		SetCookie:  setCookie,
		Content:    []byte(wp.Response.Content),
	}

	return &httpmodel.Pair{Request: req, Response: res, Index: index}, nil
}

// parseHeaders decodes a header object where every value is either a plain
// string or (for "set-cookie") an array of strings, matching the engine's
// own output shape.
func parseHeaders(raw json.RawMessage) (httpmodel.Headers, []string, error) {
	if len(raw) == 0 {
		return httpmodel.NewHeaders(nil), nil, nil
	}

	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, nil, err
	}

	headers := httpmodel.NewHeaders(nil)
	var setCookie []string
	for k, v := range generic {
		switch val := v.(type) {
		case string:
			headers.Set(k, val)
		case []any:
			for _, item := range val {
				if s, ok := item.(string); ok {
					setCookie = append(setCookie, s)
				}
			}
		}
	}
	if len(setCookie) > 0 {
		headers.Set("set-cookie", joinLines(setCookie))
	}
	return headers, setCookie, nil
}

func joinLines(lines []string) string {
	out := lines[0]
	for _, l := range lines[1:] {
		out += "\n" + l
	}
	return out
}
