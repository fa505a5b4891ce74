// Package backoff implements the retry policy used by fetch chains:
// a fixed attempt budget with exponentially growing, jittered delays.
package backoff

import (
	"errors"
	"math/rand"
	"time"
)

// Policy controls how failed fetch attempts are retried. All fields must be
// populated by the caller; Default returns the standard values.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first call.
	MaxAttempts int

	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the exponential growth of the wait.
	MaxDelay time.Duration

	// MaxJitter bounds the random slack added on top of each wait.
	MaxJitter time.Duration
}

// Default returns the standard policy: 3 attempts, 1s base delay doubling up
// to 30s, with up to 1s of jitter.
func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		MaxJitter:   time.Second,
	}
}

// ShouldRetry reports whether the attempt that just failed with err should be
// retried. attempt is zero-based, so attempt 0 is the first call. Errors are
// retried while budget remains unless the error is marked non-retryable.
func (p Policy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt+1 >= p.MaxAttempts {
		return false
	}
	return Retryable(err)
}

// NextDelay returns the wait before the retry that follows the given
// zero-based failed attempt: min(BaseDelay << attempt, MaxDelay) plus random
// jitter drawn uniformly from [0, MaxJitter].
func (p Policy) NextDelay(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay || delay <= 0 {
			delay = p.MaxDelay
			break
		}
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.MaxJitter > 0 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int63n(int64(p.MaxJitter) + 1))
	}
	return delay
}

// Retryable reports whether err may be retried. Every error is retryable
// unless something in its unwrap chain implements `Retryable() bool` and
// returns false.
func Retryable(err error) bool {
	for err != nil {
		if r, ok := err.(interface{ Retryable() bool }); ok {
			return r.Retryable()
		}
		err = errors.Unwrap(err)
	}
	return true
}
