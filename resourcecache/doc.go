// Package resourcecache provides typed, identifier-addressed resources on
// top of the query cache client.
//
// # Overview
//
// This package implements a thin decorator over query.Client for the common
// case where a service caches one kind of value addressed by a string id.
// The resource owns a key namespace and a fetch function, so call sites deal
// in typed values and plain identifiers while the client underneath handles
// deduplication, staleness, retries, and subscriptions.
//
// # Key Features
//
//   - **Type-safe access**: Go generics carry the value type through Get,
//     Refresh, and the Fetcher signature.
//   - **Namespace per resource**: every entry lives under a {name, id} key,
//     so InvalidateAll touches this resource and nothing else.
//   - **Derived names**: an empty name falls back to the snake_case form of
//     the value type's name.
//   - **Context-driven refresh**: WithRefresh marks a context so a Get deep
//     inside a call chain runs as a forced refresh.
//
// # Basic Usage
//
// Create a resource by binding a namespace and a fetcher to a client:
//
//	client, err := query.NewClient(query.Options{StaleTime: time.Minute})
//	if err != nil {
//		return err
//	}
//
//	users := resourcecache.New(client, "users", func(ctx context.Context, id string) (User, error) {
//		return store.LoadUser(ctx, id)
//	})
//
//	// Hits the fetcher once, then serves from cache while fresh.
//	user, err := users.Get(ctx, "user-123")
//
//	// Force a round-trip to the source of truth.
//	user, err = users.Refresh(ctx, "user-123")
//
// # Key Layout
//
// Every operation addresses the key {name, id}. The namespace comes from the
// name argument to New, or from the value type when the name is empty:
//
//	resourcecache.New[OrderLine](client, "", fetch) // namespace "order_line"
//
// Because the namespace is the first key segment, InvalidateAll is a plain
// prefix invalidation on {name} and cannot leak into other resources that
// share the client.
//
// # Refresh and Invalidation
//
// Refresh fetches immediately and blocks for the fresh value. Invalidate and
// InvalidateAll only mark entries stale and return; subscribed entries
// refetch in the background, unsubscribed ones fetch on their next Get. Use
// WithRefresh when the refresh decision is made far from the Get call:
//
//	ctx := resourcecache.WithRefresh(ctx)
//	user, err := users.Get(ctx, "user-123") // fetches even when fresh
//
// # Integration with Dependency Injection
//
// The pkg/di container wires resources against its shared client:
//
//	container, err := di.NewContainer(query.DefaultOptions())
//	if err != nil {
//		return err
//	}
//	users := di.NewResource(container, "users", fetchUser)
//
// # See Also
//
// For key encoding, staleness, retries, and subscription semantics, see the
// query package. For container setup, see pkg/di.
package resourcecache
