package query

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apex/log"
	"github.com/goliatone/go-query-cache/internal/backoff"
	"github.com/goliatone/go-query-cache/internal/entrystore"
	"github.com/goliatone/go-query-cache/internal/watch"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// client is the default Client: a sharded entry store for state, a
// singleflight group for in-flight dedup, the watch hub for ordered listener
// delivery, and a sweeper goroutine for GC.
type client struct {
	opts    Options
	codec   KeyCodec
	store   *entrystore.Store
	hub     *watch.Hub
	flights singleflight.Group
	refetch *semaphore.Weighted
	logger  log.Interface

	// baseCtx scopes background work (sweeper, invalidation refetches);
	// Close cancels it.
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	closed    atomic.Bool
	closeOnce sync.Once
}

var _ Client = (*client)(nil)

func newClient(opts Options) *client {
	hub := watch.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	c := &client{
		opts:    opts,
		codec:   opts.KeyCodec,
		store:   entrystore.New(opts.NumShards, hub),
		hub:     hub,
		refetch: semaphore.NewWeighted(int64(opts.RefetchConcurrency)),
		logger:  opts.Logger,
		baseCtx: ctx,
		cancel:  cancel,
	}
	c.wg.Add(1)
	go c.sweepLoop()
	return c
}

func (c *client) Resolve(ctx context.Context, key Key, fetch FetchFunc, opts ...ResolveOption) (any, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	if fetch == nil {
		return nil, ErrNilFetchFunc
	}
	canonical, err := c.codec.Encode(key)
	if err != nil {
		return nil, err
	}
	return c.resolveCanonical(ctx, canonical, fetch, c.resolveConfig(opts...))
}

// resolveCanonical runs the freshness check and, on a miss, joins or starts
// the fetch chain for the key. The chain executes on the initiating caller's
// context; concurrent callers absorbed by the singleflight group share its
// outcome.
func (c *client) resolveCanonical(ctx context.Context, canonical string, fetch FetchFunc, rc ResolveConfig) (any, error) {
	if !rc.Refresh {
		if snap, ok := c.store.Get(canonical); ok && fresh(snap, rc.StaleTime) {
			return snap.Data, nil
		}
	}

	c.store.Ensure(canonical)
	c.store.SetRefetch(canonical, c.refetcher(canonical, fetch, rc))

	if rc.Refresh {
		// Soft cancellation: the in-flight chain keeps running but loses the
		// singleflight slot, and its commit is discarded by the sequence
		// guard once the new chain takes a higher number.
		c.flights.Forget(canonical)
	}
	v, err, _ := c.flights.Do(canonical, func() (any, error) {
		return c.runFetch(ctx, canonical, fetch, rc)
	})
	return v, err
}

// runFetch drives one fetch chain: it takes the entry's next sequence
// number, calls fetch with retry/backoff, and commits the outcome. Commits
// that lost the sequence race are discarded by the store.
func (c *client) runFetch(ctx context.Context, canonical string, fetch FetchFunc, rc ResolveConfig) (any, error) {
	seq, _ := c.store.StartFetch(canonical)
	policy := c.policyFor(rc)

	var lastErr error
retry:
	for attempt := 0; ; attempt++ {
		data, err := fetch(ctx)
		if err == nil {
			if _, applied := c.store.CompleteFetch(canonical, seq, data); !applied {
				c.logger.WithField("key", canonical).Debug("discarding superseded fetch result")
			}
			return data, nil
		}

		lastErr = err
		c.logger.WithError(err).WithFields(log.Fields{
			"key":     canonical,
			"attempt": attempt + 1,
		}).Debug("fetch attempt failed")

		if !policy.ShouldRetry(err, attempt) {
			if attempt+1 >= policy.MaxAttempts && backoff.Retryable(err) {
				lastErr = &RetryExhaustedError{Attempts: attempt + 1, Err: err}
			}
			break
		}
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			break retry
		case <-time.After(policy.NextDelay(attempt)):
		}
	}

	c.store.FailFetch(canonical, seq, lastErr, c.opts.DropDataOnError)
	return nil, lastErr
}

// refetcher builds the closure Invalidate launches for subscribed entries: a
// forced refresh of the same key with the same fetch function and options,
// bounded by the refetch semaphore and scoped to the client context.
func (c *client) refetcher(canonical string, fetch FetchFunc, rc ResolveConfig) func() {
	rc.Refresh = true
	return func() {
		if err := c.refetch.Acquire(c.baseCtx, 1); err != nil {
			return
		}
		defer c.refetch.Release(1)
		if _, err := c.resolveCanonical(c.baseCtx, canonical, fetch, rc); err != nil {
			c.logger.WithError(err).WithField("key", canonical).Warn("background refetch failed")
		}
	}
}

func (c *client) Invalidate(ctx context.Context, prefix Key) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	canonical, err := c.codec.Encode(prefix)
	if err != nil {
		return err
	}

	marked := c.store.MarkStale(func(key string) bool {
		return c.codec.MatchesPrefix(key, canonical)
	})

	refetched := 0
	for _, snap := range marked {
		if snap.Subscribers == 0 {
			continue
		}
		if fn, ok := c.store.Refetch(snap.Key); ok {
			go fn()
			refetched++
		}
	}
	c.logger.WithFields(log.Fields{
		"prefix":    canonical,
		"marked":    len(marked),
		"refetched": refetched,
	}).Debug("invalidated entries")
	return nil
}

func (c *client) Subscribe(key Key, fn Listener) (func(), error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	if fn == nil {
		return nil, ErrNilListener
	}
	canonical, err := c.codec.Encode(key)
	if err != nil {
		return nil, err
	}

	c.store.Ensure(canonical)
	c.store.AddSubscriber(canonical)
	sub := c.hub.Subscribe(canonical, func(snap entrystore.Snapshot) {
		fn(entryFromSnapshot(snap))
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.Cancel()
			c.store.RemoveSubscriber(canonical)
		})
	}, nil
}

func (c *client) Snapshot(key Key) (*Entry, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	canonical, err := c.codec.Encode(key)
	if err != nil {
		return nil, err
	}
	snap, ok := c.store.Get(canonical)
	if !ok {
		return nil, nil
	}
	e := entryFromSnapshot(snap)
	return &e, nil
}

func (c *client) Evict(ctx context.Context, key Key) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	canonical, err := c.codec.Encode(key)
	if err != nil {
		return err
	}
	c.flights.Forget(canonical)
	c.store.Evict(canonical)
	return nil
}

func (c *client) Clear(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	n := c.store.Clear()
	c.logger.WithField("entries", n).Debug("cache cleared")
	return nil
}

// Close stops the sweeper and background refetches, then empties the store.
// It is idempotent. In-flight fetch chains are not interrupted; their late
// commits land on an empty table and are discarded.
func (c *client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.cancel()
		c.wg.Wait()
		c.hub.Reset()
		c.store.Clear()
	})
	return nil
}

func (c *client) sweepLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.baseCtx.Done():
			return
		case <-ticker.C:
			if c.opts.CacheTime < 0 {
				continue
			}
			if evicted := c.store.Sweep(c.opts.CacheTime); len(evicted) > 0 {
				c.logger.WithField("evicted", len(evicted)).Debug("gc sweep")
			}
		}
	}
}

// resolveConfig merges per-call options over the client defaults.
func (c *client) resolveConfig(opts ...ResolveOption) ResolveConfig {
	rc := ResolveConfig{
		StaleTime:      c.opts.StaleTime,
		MaxRetries:     c.opts.MaxRetries,
		RetryBaseDelay: c.opts.RetryBaseDelay,
		RetryMaxDelay:  c.opts.RetryMaxDelay,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&rc)
		}
	}
	return rc
}

func (c *client) policyFor(rc ResolveConfig) backoff.Policy {
	p := backoff.Policy{
		MaxAttempts: rc.MaxRetries,
		BaseDelay:   rc.RetryBaseDelay,
		MaxDelay:    rc.RetryMaxDelay,
		MaxJitter:   c.opts.RetryJitterMax,
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.MaxJitter < 0 {
		p.MaxJitter = 0
	}
	return p
}

// fresh reports whether a snapshot can be served without I/O: a non-stale
// success entry younger than staleTime. A zero staleTime never qualifies.
func fresh(snap entrystore.Snapshot, staleTime time.Duration) bool {
	if snap.Status != entrystore.StatusSuccess || snap.Stale {
		return false
	}
	if staleTime <= 0 {
		return false
	}
	return time.Since(snap.UpdatedAt) < staleTime
}
