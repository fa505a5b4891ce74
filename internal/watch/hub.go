// Package watch delivers applied entry writes to registered listeners while
// preserving per-key commit order. It implements the store's Notifier: the
// store enqueues under its shard lock and the writing goroutine drains after
// releasing it, so listeners observe writes exactly as they were applied.
package watch

import (
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/goliatone/go-query-cache/internal/entrystore"
)

// Listener receives entry snapshots in the order their writes were applied.
type Listener func(entrystore.Snapshot)

type subscriber struct {
	id uuid.UUID
	fn Listener
}

// keyWatchers holds the listeners and pending deliveries for one canonical
// key. The draining flag admits a single drainer at a time, which is what
// keeps delivery order equal to enqueue order. dead marks a registration
// scheduled for removal from the hub map.
type keyWatchers struct {
	mu       sync.Mutex
	subs     []subscriber
	queue    []entrystore.Snapshot
	draining bool
	dead     bool
}

// Hub is the per-key listener registry.
type Hub struct {
	keys *xsync.MapOf[string, *keyWatchers]
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{keys: xsync.NewMapOf[string, *keyWatchers]()}
}

// Subscribe registers fn for key and returns the handle used to cancel it.
func (h *Hub) Subscribe(key string, fn Listener) *Subscription {
	for {
		kw, _ := h.keys.LoadOrCompute(key, func() *keyWatchers { return &keyWatchers{} })
		kw.mu.Lock()
		if kw.dead {
			// A concurrent Cancel is unlinking this registration; wait for
			// the map slot to clear and start over.
			kw.mu.Unlock()
			runtime.Gosched()
			continue
		}
		sub := subscriber{id: uuid.New(), fn: fn}
		kw.subs = append(kw.subs, sub)
		kw.mu.Unlock()
		return &Subscription{hub: h, key: key, id: sub.id}
	}
}

// Watchers reports how many listeners key currently has.
func (h *Hub) Watchers(key string) int {
	kw, ok := h.keys.Load(key)
	if !ok {
		return 0
	}
	kw.mu.Lock()
	defer kw.mu.Unlock()
	return len(kw.subs)
}

// Enqueue implements entrystore.Notifier. It appends the snapshot to the
// key's delivery queue and reports whether the caller must drain once it
// releases the store lock. Writes for keys nobody watches are dropped.
func (h *Hub) Enqueue(key string, snap entrystore.Snapshot) bool {
	kw, ok := h.keys.Load(key)
	if !ok {
		return false
	}
	kw.mu.Lock()
	defer kw.mu.Unlock()
	if len(kw.subs) == 0 && !kw.draining {
		return false
	}
	kw.queue = append(kw.queue, snap)
	if kw.draining {
		return false
	}
	kw.draining = true
	return true
}

// Drain delivers queued snapshots for key until the queue is empty. No lock
// is held while a listener runs, so listeners may call back into the cache.
func (h *Hub) Drain(key string) {
	kw, ok := h.keys.Load(key)
	if !ok {
		return
	}
	for {
		kw.mu.Lock()
		if len(kw.queue) == 0 {
			kw.draining = false
			kw.mu.Unlock()
			return
		}
		snap := kw.queue[0]
		kw.queue = kw.queue[1:]
		subs := append([]subscriber(nil), kw.subs...)
		kw.mu.Unlock()

		for _, sub := range subs {
			sub.fn(snap)
		}
	}
}

// Reset drops every registration and queued delivery.
func (h *Hub) Reset() {
	h.keys.Range(func(key string, kw *keyWatchers) bool {
		kw.mu.Lock()
		kw.subs = nil
		kw.queue = nil
		kw.dead = true
		kw.mu.Unlock()
		h.keys.Delete(key)
		return true
	})
}

// Subscription identifies one registered listener.
type Subscription struct {
	hub *Hub
	key string
	id  uuid.UUID
}

// Cancel removes the listener. Calling it more than once is harmless.
func (s *Subscription) Cancel() {
	kw, ok := s.hub.keys.Load(s.key)
	if !ok {
		return
	}
	kw.mu.Lock()
	for i, sub := range kw.subs {
		if sub.id == s.id {
			kw.subs = append(kw.subs[:i], kw.subs[i+1:]...)
			break
		}
	}
	if len(kw.subs) == 0 && len(kw.queue) == 0 && !kw.draining {
		kw.dead = true
	}
	dead := kw.dead
	kw.mu.Unlock()

	if dead {
		s.hub.keys.Delete(s.key)
	}
}
