package di

import (
	"github.com/goliatone/go-query-cache/query"
	"github.com/goliatone/go-query-cache/resourcecache"
)

// Container provides dependency injection for cache related components.
// It manages the shared client and key codec instances and provides a
// factory for creating typed resources bound to the same client.
type Container struct {
	client query.Client
	codec  query.KeyCodec
	opts   query.Options
}

// NewContainer creates a new DI container with the provided cache options.
// It fills in the default key codec when none is set, then builds the
// client, which validates the options after applying its defaults.
func NewContainer(opts query.Options) (*Container, error) {
	if opts.KeyCodec == nil {
		opts.KeyCodec = query.NewKeyCodec()
	}

	client, err := query.NewClient(opts)
	if err != nil {
		return nil, err
	}

	return &Container{
		client: client,
		codec:  opts.KeyCodec,
		opts:   opts,
	}, nil
}

// NewContainerWithDefaults creates a new DI container using default options.
// This is a convenience constructor for typical use cases where custom
// configuration is not required.
func NewContainerWithDefaults() (*Container, error) {
	return NewContainer(query.DefaultOptions())
}

// Client returns the singleton cache client instance. This allows direct
// access to raw keys and fetch functions for advanced use cases.
func (c *Container) Client() query.Client {
	return c.client
}

// KeyCodec returns the singleton key codec instance. This allows encoding
// keys outside the client, for example to log or compare them.
func (c *Container) KeyCodec() query.KeyCodec {
	return c.codec
}

// Options returns a copy of the options this container was built from.
// This is useful for debugging and monitoring purposes.
func (c *Container) Options() query.Options {
	return c.opts
}

// Close shuts down the shared client, stopping background refetches and
// garbage collection. Resources created from this container stop working
// once it is closed.
func (c *Container) Close() error {
	return c.client.Close()
}

// NewResource creates a typed resource backed by the container's client.
// name is the key namespace; when empty it derives from T's type name.
//
// Since Go methods cannot have type parameters, this is provided as a
// package-level function. Example: NewResource[User](container, "users", fetchUser)
func NewResource[T any](container *Container, name string, fetcher resourcecache.Fetcher[T], opts ...query.ResolveOption) *resourcecache.Resource[T] {
	return resourcecache.New(container.client, name, fetcher, opts...)
}
