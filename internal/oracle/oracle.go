// Package oracle defines the pluggable predicates and tables a host
// application supplies at construction time: which pair is eligible to carry
// the oracle, how to recognize the oracle outcome once replayed, an optional
// custom static filter, known non-nonce strings, and the nonce-value type
// classifier used by output abstraction.
package oracle

import "reducetrace/internal/httpmodel"

// Capabilities bundles every predicate and table the engine needs from its
// host application. None of these are config-file data: they are Go
// predicates over a Pair or a string, supplied by the code embedding this
// module.
type Capabilities struct {
	// UseOracle reports whether a pair is eligible to carry the oracle
	// outcome (used both for the static oracle pre-prune and to identify
	// the oracle pair during replay).
	UseOracle func(*httpmodel.Pair) bool

	// Oracle reports whether a live response for the oracle pair
	// constitutes the reproduced outcome.
	Oracle func(*httpmodel.Response) bool

	// CustomFilter, if non-nil, is applied after type-based static
	// pruning: a pair for which it returns true is dropped.
	CustomFilter func(*httpmodel.Pair) bool

	// KnownStrings maps literal values to a human-readable name; during
	// output abstraction, a nonce value matching one of these renders as
	// <user-defined:NAME> instead of a classified <kind::TYPE> token.
	KnownStrings map[string]string

	// Types is an ordered list of (name, pattern) used to classify a
	// nonce's value for output abstraction. The first full match wins;
	// no match yields "unknown".
	Types []TypeRule
}

// TypeRule is one entry in the ordered nonce-value classifier.
type TypeRule struct {
	Name    string
	Pattern string
}
