package testsupport

import (
	"context"
	"sync"
)

// CountingFetcher is a scripted fetch function that records how many times
// it ran. Pass its Fetch method wherever a fetch function is expected.
type CountingFetcher struct {
	mu    sync.Mutex
	value any
	err   error
	calls int
}

// NewCountingFetcher creates a fetcher that returns value on every call.
func NewCountingFetcher(value any) *CountingFetcher {
	return &CountingFetcher{value: value}
}

// Fetch returns the scripted value or error and bumps the call counter.
func (f *CountingFetcher) Fetch(ctx context.Context) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.value, nil
}

// Calls reports how many times Fetch ran.
func (f *CountingFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// SetValue changes what subsequent fetches return.
func (f *CountingFetcher) SetValue(value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = value
}

// SetError makes subsequent fetches fail with err; pass nil to succeed again.
func (f *CountingFetcher) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// FlakyFetcher fails a fixed number of times before succeeding, which is the
// shape retry tests need.
type FlakyFetcher struct {
	mu       sync.Mutex
	failures int
	value    any
	err      error
	calls    int
}

// NewFlakyFetcher creates a fetcher that returns err for the first failures
// calls and value afterwards.
func NewFlakyFetcher(failures int, value any, err error) *FlakyFetcher {
	return &FlakyFetcher{failures: failures, value: value, err: err}
}

// Fetch fails while the failure budget lasts, then succeeds.
func (f *FlakyFetcher) Fetch(ctx context.Context) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return f.value, nil
}

// Calls reports how many times Fetch ran.
func (f *FlakyFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// BlockingFetcher parks every fetch until the test releases it, so tests can
// hold a fetch in flight deliberately. Wait on Started to know a fetch has
// begun, then call Release to let exactly one waiter finish.
type BlockingFetcher struct {
	mu      sync.Mutex
	value   any
	err     error
	calls   int
	started chan struct{}
	release chan struct{}
}

// NewBlockingFetcher creates a fetcher that blocks until released and then
// returns value.
func NewBlockingFetcher(value any) *BlockingFetcher {
	return &BlockingFetcher{
		value:   value,
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

// Fetch signals Started, then blocks until Release is called or the context
// is cancelled.
func (f *BlockingFetcher) Fetch(ctx context.Context) (any, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	f.started <- struct{}{}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.release:
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.value, nil
}

// Started yields one signal per fetch that has begun executing.
func (f *BlockingFetcher) Started() <-chan struct{} {
	return f.started
}

// Release unblocks exactly one in-flight fetch, waiting for it to be there.
func (f *BlockingFetcher) Release() {
	f.release <- struct{}{}
}

// Calls reports how many times Fetch ran.
func (f *BlockingFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// SetError makes released fetches fail with err.
func (f *BlockingFetcher) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}
