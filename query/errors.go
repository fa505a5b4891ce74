package query

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Client operations.
var (
	// ErrClientClosed is returned by every operation once Close has run.
	ErrClientClosed = errors.New("query: client is closed")

	// ErrNilFetchFunc is returned by Resolve when no fetch function is given.
	ErrNilFetchFunc = errors.New("query: fetch function is nil")

	// ErrNilListener is returned by Subscribe when no listener is given.
	ErrNilListener = errors.New("query: listener is nil")

	// ErrInvalidResultType is returned by the generic Resolve helper when the
	// value produced for a key does not match the requested type.
	ErrInvalidResultType = errors.New("query: cached value has unexpected type")
)

// KeyError reports a key segment the codec cannot encode. It is returned
// synchronously and never retried.
type KeyError struct {
	// Index is the position of the offending segment within the key.
	Index int
	// Reason describes why the segment cannot be encoded.
	Reason string
}

// Error implements the error interface.
func (e *KeyError) Error() string {
	return fmt.Sprintf("query: invalid key segment %d: %s", e.Index, e.Reason)
}

// RetryExhaustedError wraps the last fetch error once a chain's attempt
// budget is spent. It is returned to the awaiting caller and stored on the
// entry, so later readers observe the failure without re-triggering a fetch.
type RetryExhaustedError struct {
	// Attempts is the number of fetch attempts made.
	Attempts int
	// Err is the error from the final attempt.
	Err error
}

// Error implements the error interface.
func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("query: retries exhausted after %d attempt(s): %v", e.Attempts, e.Err)
}

// Unwrap exposes the final attempt's error to errors.Is and errors.As.
func (e *RetryExhaustedError) Unwrap() error { return e.Err }

// nonRetryableError marks a fetch failure that must not be retried.
type nonRetryableError struct {
	err error
}

func (e *nonRetryableError) Error() string { return e.err.Error() }

func (e *nonRetryableError) Unwrap() error { return e.err }

// Retryable reports false so the retry policy stops after a single attempt.
func (e *nonRetryableError) Retryable() bool { return false }

// NonRetryable marks err so a failed fetch is surfaced immediately instead of
// consuming the remaining retry budget. Fetch functions use it for failures
// that cannot succeed on retry, such as 4xx-class responses.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &nonRetryableError{err: err}
}
