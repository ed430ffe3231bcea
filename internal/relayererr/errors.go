// Package relayererr defines the closed error taxonomy the Submitter and
// its collaborators use to classify every reachable failure into exactly
// one discriminant.
package relayererr

import "fmt"

// Code is a closed set of error discriminants. Every internal helper
// returns one of these, never a bare error, so the outer Submitter can
// map exhaustively.
type Code int

const (
	// CodeValidation covers shape/format issues: missing field, bad hex,
	// length mismatch. Never retried.
	CodeValidation Code = iota + 1
	// CodeFieldRange is a numeric value >= the BN254 scalar field modulus.
	CodeFieldRange
	// CodePointAtInfinity is a zero-encoded proof component.
	CodePointAtInfinity
	// CodeConfig is missing/invalid configuration. Fatal at startup.
	CodeConfig
	// CodeChainTransient is an RPC timeout, connection error, or a
	// simulate failure surviving retries. Callers may retry.
	CodeChainTransient
	// CodeChainRejected is a contract-level failure (invalid proof,
	// double-vote, closed proposal). Carries Reason verbatim. Not retried.
	CodeChainRejected
	// CodeTimeout means wait_tx exhausted its attempts; Hash may be set.
	CodeTimeout
	// CodeConflict is a store uniqueness violation, surfaced as
	// idempotent success by callers.
	CodeConflict
	// CodeAborted means the request was cancelled before send completed.
	CodeAborted
	// CodeInternal is any unclassified failure.
	CodeInternal
)

func (c Code) String() string {
	switch c {
	case CodeValidation:
		return "ValidationError"
	case CodeFieldRange:
		return "FieldRange"
	case CodePointAtInfinity:
		return "PointAtInfinity"
	case CodeConfig:
		return "ConfigError"
	case CodeChainTransient:
		return "ChainTransient"
	case CodeChainRejected:
		return "ChainRejected"
	case CodeTimeout:
		return "Timeout"
	case CodeConflict:
		return "Conflict"
	case CodeAborted:
		return "Aborted"
	case CodeInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error is the typed error every component returns. Reason is populated
// only for CodeChainRejected, carrying the ledger's failure string
// verbatim. Hash is populated only by Timeout, carrying the hash of the
// transaction whose confirmation was not observed.
type Error struct {
	Code   Code
	Msg    string
	Reason string
	Hash   string
	Err    error
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s (reason=%s)", e.Code, e.Msg, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a *Error with the same Code, so callers
// can use errors.Is(err, relayererr.Validation("")) style checks, or more
// commonly errors.As plus a Code comparison.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func New(code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

func Wrap(code Code, msg string, err error) *Error {
	return &Error{Code: code, Msg: msg, Err: err}
}

func Validation(msg string) *Error      { return New(CodeValidation, msg) }
func FieldRange(msg string) *Error      { return New(CodeFieldRange, msg) }
func PointAtInfinity(msg string) *Error { return New(CodePointAtInfinity, msg) }
func Config(msg string) *Error          { return New(CodeConfig, msg) }
func Internal(msg string, err error) *Error {
	return &Error{Code: CodeInternal, Msg: msg, Err: err}
}

func ChainTransient(msg string, err error) *Error {
	return &Error{Code: CodeChainTransient, Msg: msg, Err: err}
}

func ChainRejected(reason string) *Error {
	return &Error{Code: CodeChainRejected, Msg: "contract rejected transaction", Reason: reason}
}

func Timeout(hash string) *Error {
	return &Error{Code: CodeTimeout, Msg: "wait_tx exhausted retries", Hash: hash}
}

func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Msg: msg}
}

func Aborted(msg string) *Error {
	return &Error{Code: CodeAborted, Msg: msg}
}

// CodeOf extracts the Code from err if it is (or wraps) a *Error,
// otherwise returns CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Code
	}
	return CodeInternal
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
