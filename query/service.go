package query

import (
	"context"
	"fmt"
)

// FetchFunc loads the value for a key from the source of truth. It is
// supplied per Resolve call. The cache treats every error it returns the
// same way, except for the non-retryable marker (see NonRetryable).
type FetchFunc func(ctx context.Context) (any, error)

// Listener observes entry writes for a subscribed key, in write order.
type Listener func(Entry)

// Client is the cache-client handle consumers pass around explicitly; there
// is no package-level instance. Implementations are safe for concurrent use.
type Client interface {
	// Resolve returns the cached value for key when it is fresh, otherwise
	// runs fetch, joining an already in-flight fetch for the same key
	// instead of issuing a duplicate.
	Resolve(ctx context.Context, key Key, fetch FetchFunc, opts ...ResolveOption) (any, error)

	// Invalidate marks every entry under prefix stale and refetches the ones
	// with active subscribers in the background. It never waits on fetches.
	Invalidate(ctx context.Context, prefix Key) error

	// Subscribe registers fn to observe entry writes for key and returns an
	// idempotent unsubscribe function.
	Subscribe(key Key, fn Listener) (func(), error)

	// Snapshot returns the entry state for key, or nil when the key was
	// never referenced. It performs no I/O.
	Snapshot(key Key) (*Entry, error)

	// Evict removes the entry for key entirely.
	Evict(ctx context.Context, key Key) error

	// Clear removes every entry.
	Clear(ctx context.Context) error

	// Close stops background work and empties the cache. The client is
	// unusable afterwards; calling Close again is harmless.
	Close() error
}

// Resolve is a type-safe wrapper around Client.Resolve.
func Resolve[T any](ctx context.Context, c Client, key Key, fetch func(ctx context.Context) (T, error), opts ...ResolveOption) (T, error) {
	var zero T
	if fetch == nil {
		return zero, ErrNilFetchFunc
	}

	result, err := c.Resolve(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	}, opts...)
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}

	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("%w: have %T", ErrInvalidResultType, result)
	}
	return typed, nil
}
