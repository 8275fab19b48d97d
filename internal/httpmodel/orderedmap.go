// Package httpmodel holds the HTTP request/response/pair data model and the
// derived views (path segments, query params, cookies, flattened JSON, form
// params, set-cookie map, hidden inputs, meta-refresh target) that the rest
// of the engine reasons about instead of raw bytes.
package httpmodel

// OrderedMap is an insertion-ordered string→string mapping. The data model
// uses it for query parameters, cookies, and set-cookie pairs, where
// iteration order must be stable and reproducible but plain Go maps don't
// provide one.
type OrderedMap struct {
	keys   []string
	values map[string]string
}

// NewOrderedMap returns an empty OrderedMap.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{values: make(map[string]string)}
}

// Set inserts or overwrites key. Overwriting an existing key does not move
// its position in iteration order.
func (m *OrderedMap) Set(key, value string) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value for key and whether it was present.
func (m *OrderedMap) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *OrderedMap) Keys() []string {
	return m.keys
}

// Len returns the number of entries.
func (m *OrderedMap) Len() int {
	return len(m.keys)
}
