// Package errs defines the typed errors the engine surfaces to its caller:
// configuration failures, a replay that never observed the oracle pair, a
// live response that no longer matches its recorded shape, and the two
// external-collaborator failure classes (parsing, transport).
package errs

import "fmt"

// ConfigError reports a fatal, user-fixable configuration problem — an empty
// trace after oracle pre-prune, a missing required field, or similar. The
// engine logs it and exits; it is never retried.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s", e.Reason)
}

// NewConfigError builds a ConfigError with the given reason.
func NewConfigError(reason string) error {
	return &ConfigError{Reason: reason}
}

// OracleNotUsedError reports that a replay run completed without ever
// observing the designated oracle pair, meaning the oracle predicate cannot
// be evaluated for that run.
type OracleNotUsedError struct {
	AlignmentLength int
}

func (e *OracleNotUsedError) Error() string {
	return fmt.Sprintf("oracle pair was never replayed (alignment length %d)", e.AlignmentLength)
}

// NewOracleNotUsedError builds an OracleNotUsedError for an alignment of the
// given length.
func NewOracleNotUsedError(alignmentLength int) error {
	return &OracleNotUsedError{AlignmentLength: alignmentLength}
}

// ReplayMismatch reports that a live response's status diverged from its
// recorded counterpart in a way the 200↔302 reconciliation couldn't settle,
// signaling a broken alignment.
type ReplayMismatch struct {
	PairIndex      int
	RecordedStatus int
	LiveStatus     int
}

func (e *ReplayMismatch) Error() string {
	return fmt.Sprintf("pair %d: recorded status %d, live status %d", e.PairIndex, e.RecordedStatus, e.LiveStatus)
}

// NewReplayMismatch builds a ReplayMismatch for the given pair index and
// statuses.
func NewReplayMismatch(pairIndex, recordedStatus, liveStatus int) error {
	return &ReplayMismatch{PairIndex: pairIndex, RecordedStatus: recordedStatus, LiveStatus: liveStatus}
}

// ParseError wraps a failure from the external parsing collaborator (wire
// HTTP parsing, HTML/JSON parsing of a recorded or live body).
type ParseError struct {
	Context string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error (%s): %v", e.Context, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NewParseError wraps err with a description of what was being parsed.
func NewParseError(context string, err error) error {
	return &ParseError{Context: context, Err: err}
}

// TransportError wraps a failure from the external transport collaborator
// (dialing, TLS handshake, a request that never got a response).
type TransportError struct {
	Context string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error (%s): %v", e.Context, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError wraps err with a description of the transport operation
// that failed.
func NewTransportError(context string, err error) error {
	return &TransportError{Context: context, Err: err}
}
