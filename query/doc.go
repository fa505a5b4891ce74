// Package query provides an in-process cache for server state keyed by
// structured keys, with request deduplication, staleness tracking, retries,
// and subscriptions.
//
// # Overview
//
// The package centers on the Client interface. A Client owns a table of
// entries, one per canonical key, and resolves reads through a caller
// supplied fetch function:
//
//   - Resolve: return cached data when fresh, otherwise fetch (deduplicated
//     per key) and cache the outcome
//   - Invalidate: mark entries under a key prefix stale and refetch the ones
//     with active subscribers
//   - Subscribe: observe every state change for a key, in write order
//   - Snapshot: inspect an entry without triggering I/O
//
// Entries move through idle -> loading -> success | error. A refetch of an
// entry that already has data keeps the data visible while the fetch runs
// (stale-while-revalidate); a failed refetch keeps the previous value next
// to the error unless DropDataOnError is set.
//
// # Basic Usage
//
// Construct a client, resolve through it, and close it when done:
//
//	client, err := query.NewClient(query.DefaultOptions())
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	user, err := query.Resolve(ctx, client, query.Key{"users", "42"},
//		func(ctx context.Context) (User, error) {
//			return api.FetchUser(ctx, "42")
//		},
//		query.WithStaleTime(30*time.Second),
//	)
//
// Concurrent resolves for the same key share one fetch. Within the stale
// window, resolves return the cached value without calling the fetch
// function at all.
//
// # Keys
//
// A Key is an ordered slice of segments, encoded to a canonical string by a
// KeyCodec. The default codec joins segments with "::" after deterministic
// stringification, sorting map keys so that semantically equal segments
// encode identically. Segments that are or contain functions, channels, or
// reference cycles fail with *KeyError.
//
// Prefix operations use segment boundaries: Key{"users"} covers
// Key{"users", "1"} but not a key whose first segment merely begins with
// "users".
//
// # Staleness and Invalidation
//
// Each success entry records UpdatedAt. A resolve finding an entry younger
// than its StaleTime returns it with no I/O; anything older fetches again.
// Invalidate marks matching entries stale without touching their data, so
// readers keep seeing the old value until a refetch lands. Entries with
// subscribers are refetched in the background immediately; the rest wait
// for their next resolve.
//
// # Retries
//
// A failing fetch is retried up to MaxRetries total attempts with
// exponential backoff (RetryBaseDelay doubling up to RetryMaxDelay, plus
// random jitter up to RetryJitterMax). Wrap an error with
// query.NonRetryable to fail fast:
//
//	return User{}, query.NonRetryable(fmt.Errorf("no such user %q", id))
//
// When the budget is spent the caller receives *RetryExhaustedError wrapping
// the last attempt's error.
//
// # Subscriptions
//
// Subscribe registers a listener for one key and returns an idempotent
// unsubscribe function. Listeners receive an Entry snapshot for every
// applied write, in commit order. Delivery is synchronous with respect to
// the write but holds no internal locks, so listeners may call back into
// the client.
//
// Subscriber counts also drive lifecycle: entries with at least one
// subscriber are exempt from GC, and invalidation only refetches subscribed
// entries.
//
// # Garbage Collection
//
// A background sweeper evicts entries that have had no subscribers for
// longer than CacheTime. Close stops the sweeper and any background
// refetches, then empties the table.
//
// # See Also
//
// For a typed, per-resource wrapper over this API, see the resourcecache
// package. For container wiring, see pkg/di.
package query
