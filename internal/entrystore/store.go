// Package entrystore maps canonical keys to cache entries and owns every
// mutation of entry state: fetch transitions, sequence gating of late
// commits, stale marking, subscriber counts, and garbage collection.
package entrystore

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// DefaultNumShards is the shard count used when the caller passes a
// non-positive value to New.
const DefaultNumShards = 256

// Notifier receives every applied entry write. Enqueue is called with the
// entry's shard lock held and reports whether the caller should invoke Drain
// once the lock is released; implementations must not call back into the
// Store from Enqueue.
type Notifier interface {
	Enqueue(key string, snap Snapshot) bool
	Drain(key string)
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func (sh *shard) getOrCreate(key string, now time.Time) *entry {
	e, ok := sh.entries[key]
	if !ok {
		e = &entry{key: key, status: StatusIdle, idleSince: now}
		sh.entries[key] = e
	}
	return e
}

// Store is a sharded table of cache entries. All methods are safe for
// concurrent use.
type Store struct {
	shards []*shard
	notify Notifier
}

// New creates a Store with the given shard count, falling back to
// DefaultNumShards when numShards is not positive. notify may be nil when no
// observer delivery is needed, as in most unit tests.
func New(numShards int, notify Notifier) *Store {
	if numShards <= 0 {
		numShards = DefaultNumShards
	}
	s := &Store{shards: make([]*shard, numShards), notify: notify}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]*entry)}
	}
	return s
}

func (s *Store) shardFor(key string) *shard {
	return s.shards[xxhash.Sum64String(key)%uint64(len(s.shards))]
}

// enqueue hands an applied write to the notifier; the caller holds the shard
// lock and must call drain(key) after releasing it when this returns true.
func (s *Store) enqueue(key string, snap Snapshot) bool {
	if s.notify == nil {
		return false
	}
	return s.notify.Enqueue(key, snap)
}

func (s *Store) drain(key string, pending bool) {
	if pending {
		s.notify.Drain(key)
	}
}

// Get is a pure lookup; it never creates entries or triggers I/O.
func (s *Store) Get(key string) (Snapshot, bool) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, ok := sh.entries[key]
	if !ok {
		return Snapshot{}, false
	}
	return e.snapshot(), true
}

// Ensure returns the entry for key, creating an idle one if absent.
func (s *Store) Ensure(key string) Snapshot {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.getOrCreate(key, time.Now()).snapshot()
}

// StartFetch begins a new fetch chain for key and returns its sequence
// number. The entry flips to loading on a first fetch; when data already
// exists it stays visible and only the refetching indicator is raised.
func (s *Store) StartFetch(key string) (uint64, Snapshot) {
	now := time.Now()
	sh := s.shardFor(key)
	sh.mu.Lock()
	e := sh.getOrCreate(key, now)
	e.seq++
	seq := e.seq
	e.fetching = true
	if e.hasData {
		e.refetching = true
	} else {
		e.status = StatusLoading
	}
	e.version++
	e.touchIdle(now)
	snap := e.snapshot()
	pending := s.enqueue(key, snap)
	sh.mu.Unlock()
	s.drain(key, pending)
	return seq, snap
}

// CompleteFetch commits a successful fetch. The write is discarded when a
// newer chain has started for the key (seq below the entry's latest) or the
// entry was evicted mid-flight; the second return reports whether it applied.
func (s *Store) CompleteFetch(key string, seq uint64, data any) (Snapshot, bool) {
	now := time.Now()
	sh := s.shardFor(key)
	sh.mu.Lock()
	e, ok := sh.entries[key]
	if !ok || seq < e.seq {
		sh.mu.Unlock()
		return Snapshot{}, false
	}
	e.status = StatusSuccess
	e.data = data
	e.hasData = true
	e.err = nil
	e.updatedAt = now
	e.stale = false
	e.fetching = false
	e.refetching = false
	e.version++
	e.touchIdle(now)
	snap := e.snapshot()
	pending := s.enqueue(key, snap)
	sh.mu.Unlock()
	s.drain(key, pending)
	return snap, true
}

// FailFetch commits a failed fetch chain. Prior data survives unless
// dropData is set; updatedAt never moves on failure. Stale-sequence writes
// are discarded the same way as in CompleteFetch.
func (s *Store) FailFetch(key string, seq uint64, err error, dropData bool) (Snapshot, bool) {
	now := time.Now()
	sh := s.shardFor(key)
	sh.mu.Lock()
	e, ok := sh.entries[key]
	if !ok || seq < e.seq {
		sh.mu.Unlock()
		return Snapshot{}, false
	}
	e.status = StatusError
	e.err = err
	if dropData {
		e.data = nil
		e.hasData = false
	}
	e.fetching = false
	e.refetching = false
	e.version++
	e.touchIdle(now)
	snap := e.snapshot()
	pending := s.enqueue(key, snap)
	sh.mu.Unlock()
	s.drain(key, pending)
	return snap, true
}

// MarkStale flags every entry whose key satisfies match. Data and updatedAt
// are untouched. It returns the post-write snapshots of affected entries.
func (s *Store) MarkStale(match func(key string) bool) []Snapshot {
	var out []Snapshot
	for _, sh := range s.shards {
		var drains []string
		sh.mu.Lock()
		for key, e := range sh.entries {
			if !match(key) {
				continue
			}
			e.stale = true
			e.version++
			snap := e.snapshot()
			if s.enqueue(key, snap) {
				drains = append(drains, key)
			}
			out = append(out, snap)
		}
		sh.mu.Unlock()
		for _, key := range drains {
			s.notify.Drain(key)
		}
	}
	return out
}

// AddSubscriber increments the listener count, creating an idle entry when
// the key was never referenced. Subscribed entries are exempt from GC.
func (s *Store) AddSubscriber(key string) Snapshot {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e := sh.getOrCreate(key, time.Now())
	e.subscribers++
	e.idleSince = time.Time{}
	return e.snapshot()
}

// RemoveSubscriber decrements the listener count; when it reaches zero the
// GC grace window starts.
func (s *Store) RemoveSubscriber(key string) Snapshot {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.entries[key]
	if !ok {
		return Snapshot{}
	}
	if e.subscribers > 0 {
		e.subscribers--
	}
	if e.subscribers == 0 {
		e.idleSince = time.Now()
	}
	return e.snapshot()
}

// SetRefetch remembers the background refetch closure for key; the most
// recent resolve call wins. It is a no-op for unknown keys.
func (s *Store) SetRefetch(key string, fn func()) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if e, ok := sh.entries[key]; ok {
		e.refetch = fn
	}
}

// Refetch returns the remembered refetch closure for key, if any.
func (s *Store) Refetch(key string) (func(), bool) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, ok := sh.entries[key]
	if !ok || e.refetch == nil {
		return nil, false
	}
	return e.refetch, true
}

// Evict removes the entry entirely and reports whether it existed. A fetch
// chain completing after eviction is discarded by the commit guards.
func (s *Store) Evict(key string) bool {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	_, ok := sh.entries[key]
	delete(sh.entries, key)
	return ok
}

// Clear drops every entry and returns how many were removed.
func (s *Store) Clear() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.entries)
		sh.entries = make(map[string]*entry)
		sh.mu.Unlock()
	}
	return n
}

// Len reports the number of live entries across all shards.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

// Sweep evicts entries whose GC grace window has elapsed: no subscribers, no
// fetch in flight, and idle for at least grace. It returns the evicted keys.
func (s *Store) Sweep(grace time.Duration) []string {
	var evicted []string
	cutoff := time.Now().Add(-grace)
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, e := range sh.entries {
			if e.subscribers > 0 || e.fetching || e.idleSince.IsZero() {
				continue
			}
			if e.idleSince.After(cutoff) {
				continue
			}
			delete(sh.entries, key)
			evicted = append(evicted, key)
		}
		sh.mu.Unlock()
	}
	return evicted
}
