package query

import "time"

// ResolveConfig is the per-call configuration a resolve runs with, assembled
// from the client defaults plus any ResolveOption overrides.
type ResolveConfig struct {
	// StaleTime is the age under which a success entry is fresh for this
	// call.
	StaleTime time.Duration

	// MaxRetries is the total number of fetch attempts for this chain.
	MaxRetries int

	// RetryBaseDelay is the backoff base for this chain.
	RetryBaseDelay time.Duration

	// RetryMaxDelay caps the backoff for this chain.
	RetryMaxDelay time.Duration

	// Refresh forces a new fetch chain, skipping the freshness check and
	// superseding any in-flight chain for the key.
	Refresh bool
}

// ResolveOption overrides one setting for a single Resolve call.
type ResolveOption func(*ResolveConfig)

// WithStaleTime overrides the client's StaleTime for one call.
func WithStaleTime(d time.Duration) ResolveOption {
	return func(rc *ResolveConfig) { rc.StaleTime = d }
}

// WithMaxRetries overrides the attempt budget for one call.
func WithMaxRetries(n int) ResolveOption {
	return func(rc *ResolveConfig) { rc.MaxRetries = n }
}

// WithRetryBaseDelay overrides the backoff base for one call.
func WithRetryBaseDelay(d time.Duration) ResolveOption {
	return func(rc *ResolveConfig) { rc.RetryBaseDelay = d }
}

// WithRetryMaxDelay overrides the backoff cap for one call.
func WithRetryMaxDelay(d time.Duration) ResolveOption {
	return func(rc *ResolveConfig) { rc.RetryMaxDelay = d }
}

// WithRefresh forces a fresh fetch chain. Cached data remains visible while
// the new chain runs; a superseded in-flight chain still answers its own
// callers, but its late store write is discarded.
func WithRefresh() ResolveOption {
	return func(rc *ResolveConfig) { rc.Refresh = true }
}
