package resourcecache

import (
	"context"
	"reflect"

	"github.com/goliatone/go-query-cache/query"
)

// Fetcher loads one resource by its identifier from the source of truth.
type Fetcher[T any] func(ctx context.Context, id string) (T, error)

// Resource binds a key namespace and a Fetcher to a cache client so callers
// work with typed values and plain identifiers instead of raw keys. Every
// entry the resource touches lives under the key prefix {name}, which keeps
// InvalidateAll scoped to this resource alone.
type Resource[T any] struct {
	client  query.Client
	name    string
	fetcher Fetcher[T]
	opts    []query.ResolveOption
}

// New builds a typed resource on top of client. name becomes the first key
// segment for every entry the resource reads or writes; when empty it is
// derived from T's type name in snake_case. opts apply to every Get and
// Refresh, with per-call options layered on top.
func New[T any](client query.Client, name string, fetcher Fetcher[T], opts ...query.ResolveOption) *Resource[T] {
	if name == "" {
		name = defaultName[T]()
	}
	return &Resource[T]{
		client:  client,
		name:    name,
		fetcher: fetcher,
		opts:    opts,
	}
}

// Name returns the key namespace the resource operates under.
func (r *Resource[T]) Name() string {
	return r.name
}

// Key returns the cache key the resource uses for id.
func (r *Resource[T]) Key(id string) query.Key {
	return query.Key{r.name, id}
}

// Get returns the value for id, fetching through the configured Fetcher on a
// miss or once the cached entry has gone stale. Concurrent calls for the
// same id share a single fetch. A context marked with WithRefresh upgrades
// the call to a forced refresh.
func (r *Resource[T]) Get(ctx context.Context, id string, opts ...query.ResolveOption) (T, error) {
	if r.fetcher == nil {
		var zero T
		return zero, query.ErrNilFetchFunc
	}
	return query.Resolve(ctx, r.client, r.Key(id), func(ctx context.Context) (T, error) {
		return r.fetcher(ctx, id)
	}, r.callOptions(ctx, opts)...)
}

// Refresh fetches id unconditionally and returns the fresh value. The cached
// value stays visible to snapshots and subscribers while the fetch runs.
func (r *Resource[T]) Refresh(ctx context.Context, id string) (T, error) {
	return r.Get(ctx, id, query.WithRefresh())
}

// Invalidate marks the entry for id stale. When the entry has subscribers it
// refetches in the background; otherwise the next Get fetches.
func (r *Resource[T]) Invalidate(ctx context.Context, id string) error {
	return r.client.Invalidate(ctx, r.Key(id))
}

// InvalidateAll marks every entry in the resource's namespace stale.
func (r *Resource[T]) InvalidateAll(ctx context.Context) error {
	return r.client.Invalidate(ctx, query.Key{r.name})
}

// Snapshot reports the entry state for id without fetching. It returns nil
// when the resource never referenced id.
func (r *Resource[T]) Snapshot(id string) (*query.Entry, error) {
	return r.client.Snapshot(r.Key(id))
}

// Subscribe registers fn to observe entry writes for id, in write order, and
// returns an idempotent unsubscribe function.
func (r *Resource[T]) Subscribe(id string, fn query.Listener) (func(), error) {
	return r.client.Subscribe(r.Key(id), fn)
}

// Evict drops the entry for id entirely, subscribers included.
func (r *Resource[T]) Evict(ctx context.Context, id string) error {
	return r.client.Evict(ctx, r.Key(id))
}

// callOptions layers the resource defaults, the per-call options, and the
// context refresh marker, in that order, so later options win.
func (r *Resource[T]) callOptions(ctx context.Context, extra []query.ResolveOption) []query.ResolveOption {
	merged := make([]query.ResolveOption, 0, len(r.opts)+len(extra)+1)
	merged = append(merged, r.opts...)
	merged = append(merged, extra...)
	if RefreshRequested(ctx) {
		merged = append(merged, query.WithRefresh())
	}
	return merged
}

// defaultName derives the key namespace from T's type name. Pointer, slice,
// and array wrappers are unwrapped first so *User, []User, and User all land
// in the same namespace.
func defaultName[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		t = t.Elem()
	}
	name := t.Name()
	if name == "" {
		name = t.String()
	}
	if snake := toSnake(name); snake != "" {
		return snake
	}
	return "resource"
}
