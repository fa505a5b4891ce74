package watch

import (
	"sync"
	"testing"

	"github.com/goliatone/go-query-cache/internal/entrystore"
)

func snap(key string, version uint64) entrystore.Snapshot {
	return entrystore.Snapshot{Key: key, Status: entrystore.StatusSuccess, Version: version}
}

func TestHub_SubscribeAndDeliver(t *testing.T) {
	h := NewHub()

	var got []entrystore.Snapshot
	h.Subscribe("users::1", func(s entrystore.Snapshot) {
		got = append(got, s)
	})

	if !h.Enqueue("users::1", snap("users::1", 1)) {
		t.Fatal("Enqueue() = false, want drain request")
	}
	h.Drain("users::1")

	if len(got) != 1 {
		t.Fatalf("listener saw %d snapshots, want 1", len(got))
	}
	if got[0].Version != 1 {
		t.Errorf("Version = %d, want 1", got[0].Version)
	}
}

func TestHub_DeliversInEnqueueOrder(t *testing.T) {
	h := NewHub()

	var versions []uint64
	h.Subscribe("users::1", func(s entrystore.Snapshot) {
		versions = append(versions, s.Version)
	})

	drain := h.Enqueue("users::1", snap("users::1", 1))
	for v := uint64(2); v <= 5; v++ {
		if h.Enqueue("users::1", snap("users::1", v)) {
			t.Errorf("Enqueue(v%d) requested a second drainer", v)
		}
	}
	if !drain {
		t.Fatal("first Enqueue() did not request a drain")
	}
	h.Drain("users::1")

	if len(versions) != 5 {
		t.Fatalf("listener saw %d snapshots, want 5", len(versions))
	}
	for i, v := range versions {
		if v != uint64(i+1) {
			t.Errorf("delivery %d has version %d, want %d", i, v, i+1)
		}
	}
}

func TestHub_DropsWritesWithoutListeners(t *testing.T) {
	h := NewHub()

	if h.Enqueue("users::1", snap("users::1", 1)) {
		t.Error("Enqueue() queued a write for an unwatched key")
	}
	if h.Watchers("users::1") != 0 {
		t.Errorf("Watchers() = %d, want 0", h.Watchers("users::1"))
	}
}

func TestHub_MultipleListeners(t *testing.T) {
	h := NewHub()

	var a, b int
	h.Subscribe("users::1", func(entrystore.Snapshot) { a++ })
	h.Subscribe("users::1", func(entrystore.Snapshot) { b++ })

	if h.Watchers("users::1") != 2 {
		t.Fatalf("Watchers() = %d, want 2", h.Watchers("users::1"))
	}

	h.Enqueue("users::1", snap("users::1", 1))
	h.Drain("users::1")

	if a != 1 || b != 1 {
		t.Errorf("deliveries = %d/%d, want 1/1", a, b)
	}
}

func TestHub_CancelStopsDelivery(t *testing.T) {
	h := NewHub()

	calls := 0
	sub := h.Subscribe("users::1", func(entrystore.Snapshot) { calls++ })

	h.Enqueue("users::1", snap("users::1", 1))
	h.Drain("users::1")

	sub.Cancel()
	sub.Cancel() // second cancel is a no-op

	if h.Enqueue("users::1", snap("users::1", 2)) {
		h.Drain("users::1")
	}

	if calls != 1 {
		t.Errorf("listener called %d times, want 1", calls)
	}
}

func TestHub_CancelLastListenerReleasesKey(t *testing.T) {
	h := NewHub()

	sub := h.Subscribe("users::1", func(entrystore.Snapshot) {})
	sub.Cancel()

	if n := h.keys.Size(); n != 0 {
		t.Errorf("hub still tracks %d keys after last cancel, want 0", n)
	}

	// The key must be usable again afterwards.
	h.Subscribe("users::1", func(entrystore.Snapshot) {})
	if h.Watchers("users::1") != 1 {
		t.Errorf("Watchers() = %d after resubscribe, want 1", h.Watchers("users::1"))
	}
}

func TestHub_KeysAreIndependent(t *testing.T) {
	h := NewHub()

	var users, posts int
	h.Subscribe("users::1", func(entrystore.Snapshot) { users++ })
	h.Subscribe("posts::1", func(entrystore.Snapshot) { posts++ })

	h.Enqueue("users::1", snap("users::1", 1))
	h.Drain("users::1")

	if users != 1 || posts != 0 {
		t.Errorf("deliveries = %d/%d, want 1/0", users, posts)
	}
}

func TestHub_ListenerMaySubscribeDuringDelivery(t *testing.T) {
	h := NewHub()

	var nested *Subscription
	h.Subscribe("users::1", func(entrystore.Snapshot) {
		if nested == nil {
			nested = h.Subscribe("users::1", func(entrystore.Snapshot) {})
		}
	})

	h.Enqueue("users::1", snap("users::1", 1))
	h.Drain("users::1")

	if nested == nil {
		t.Fatal("nested subscribe did not run")
	}
	if h.Watchers("users::1") != 2 {
		t.Errorf("Watchers() = %d, want 2", h.Watchers("users::1"))
	}
}

func TestHub_Reset(t *testing.T) {
	h := NewHub()

	calls := 0
	h.Subscribe("users::1", func(entrystore.Snapshot) { calls++ })
	h.Reset()

	if h.Enqueue("users::1", snap("users::1", 1)) {
		h.Drain("users::1")
	}
	if calls != 0 {
		t.Errorf("listener called %d times after reset, want 0", calls)
	}
	if n := h.keys.Size(); n != 0 {
		t.Errorf("hub still tracks %d keys after reset, want 0", n)
	}
}

func TestHub_ConcurrentSubscribeCancel(t *testing.T) {
	h := NewHub()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := h.Subscribe("users::1", func(entrystore.Snapshot) {})
			sub.Cancel()
		}()
	}
	wg.Wait()

	if n := h.Watchers("users::1"); n != 0 {
		t.Errorf("Watchers() = %d after churn, want 0", n)
	}
}
