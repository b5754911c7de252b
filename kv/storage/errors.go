package storage

import (
	"fmt"

	"github.com/pingcap/errors"
)

// Error codes surfaced by store implementations. The numbering follows the
// convention of the target store so that logs line up with its documentation.
const (
	// CodeTxnTooOld: the transaction outlived the store's duration ceiling;
	// reads and commits against it are rejected.
	CodeTxnTooOld = 1007
	// CodeNotCommitted: the commit lost an optimistic-concurrency race.
	CodeNotCommitted = 1020
	// CodeCommitUnknown: the commit outcome is ambiguous; the mutations may
	// or may not have been applied.
	CodeCommitUnknown = 1021
	// CodeTimedOut: an operation exceeded its deadline.
	CodeTimedOut = 1031
	// CodeClientInvalidOp: the caller misused the API, e.g. mutated through
	// a read-only transaction.
	CodeClientInvalidOp = 2000
	// CodeUsedAfterCommit: the transaction was used after Commit or Discard.
	CodeUsedAfterCommit = 2017
	// CodeTxnTooLarge: the buffered mutations exceed the store's size ceiling.
	CodeTxnTooLarge = 2101
)

var codeMessages = map[int]string{
	CodeTxnTooOld:       "transaction is too old to perform reads or be committed",
	CodeNotCommitted:    "transaction not committed due to conflict with another transaction",
	CodeCommitUnknown:   "transaction may or may not have committed",
	CodeTimedOut:        "operation timed out",
	CodeClientInvalidOp: "invalid API call on this transaction",
	CodeUsedAfterCommit: "operation issued while a commit was outstanding or after it completed",
	CodeTxnTooLarge:     "transaction exceeds byte limit",
}

// Error is a failure reported by the store itself, as opposed to an error
// produced by caller code running inside a transaction.
type Error struct {
	Code int
}

func (e *Error) Error() string {
	if msg, ok := codeMessages[e.Code]; ok {
		return fmt.Sprintf("storage error %d: %s", e.Code, msg)
	}
	return fmt.Sprintf("storage error %d", e.Code)
}

// NewError returns a store error carrying code.
func NewError(code int) *Error {
	return &Error{Code: code}
}

// ErrorClass determines how the retry machinery treats a failure.
type ErrorClass int

const (
	// ClassFatal errors are never retried and propagate to the caller.
	ClassFatal ErrorClass = iota
	// ClassRetryable errors are safe to retry with the same logical work.
	ClassRetryable
	// ClassMaybeCommitted errors may have already applied their effects;
	// retrying is only safe when the work is idempotent.
	ClassMaybeCommitted
)

func (c ErrorClass) String() string {
	switch c {
	case ClassRetryable:
		return "retryable"
	case ClassMaybeCommitted:
		return "maybe-committed"
	default:
		return "fatal"
	}
}

// Classify reports how err should be handled. It unwraps annotation layers
// first, so a wrapped store error classifies the same as a bare one. Anything
// that is not a store *Error is fatal: errors raised by caller code are not
// this package's to retry.
func Classify(err error) ErrorClass {
	e, ok := errors.Cause(err).(*Error)
	if !ok {
		return ClassFatal
	}
	switch e.Code {
	case CodeNotCommitted, CodeTxnTooOld, CodeTimedOut, CodeTxnTooLarge:
		return ClassRetryable
	case CodeCommitUnknown:
		return ClassMaybeCommitted
	default:
		return ClassFatal
	}
}

// IsOverload reports whether err is the store pushing back on transaction
// size or duration. Retrying the same work at the same size is unlikely to
// succeed; callers should shrink the work first.
func IsOverload(err error) bool {
	e, ok := errors.Cause(err).(*Error)
	if !ok {
		return false
	}
	switch e.Code {
	case CodeTxnTooOld, CodeTimedOut, CodeTxnTooLarge:
		return true
	}
	return false
}
