package entrystore

import "time"

// Status is the fetch state machine position of an entry.
type Status string

const (
	// StatusIdle marks an entry that has been referenced but never fetched.
	StatusIdle Status = "idle"
	// StatusLoading marks a first fetch with no data to show yet.
	StatusLoading Status = "loading"
	// StatusSuccess marks an entry holding fetched data.
	StatusSuccess Status = "success"
	// StatusError marks an entry whose last fetch chain failed.
	StatusError Status = "error"
)

// Snapshot is an immutable copy of an entry's state at the moment of a read
// or an applied write. Data is shared with the entry and must be treated as
// read-only by consumers.
type Snapshot struct {
	// Key is the canonical key the entry is stored under.
	Key string
	// Status is the state machine position.
	Status Status
	// Data is the last successfully fetched value, nil if none.
	Data any
	// Err is the last failure, nil after a successful fetch.
	Err error
	// UpdatedAt is the time of the last successful write, zero if never.
	UpdatedAt time.Time
	// Stale marks the entry as invalidated without touching its data.
	Stale bool
	// Fetching is true while a fetch chain is in flight for the key.
	Fetching bool
	// Refetching is true when the in-flight chain refreshes existing data.
	Refetching bool
	// Subscribers is the number of registered listeners for the key.
	Subscribers int
	// Version counts applied state writes; it increases with every write.
	Version uint64
}

// entry is the mutable record behind a canonical key. Entries are owned by
// the Store and only touched under their shard lock.
type entry struct {
	key         string
	status      Status
	data        any
	hasData     bool
	err         error
	updatedAt   time.Time
	stale       bool
	fetching    bool
	refetching  bool
	subscribers int
	version     uint64
	seq         uint64
	refetch     func()
	idleSince   time.Time
}

func (e *entry) snapshot() Snapshot {
	return Snapshot{
		Key:         e.key,
		Status:      e.status,
		Data:        e.data,
		Err:         e.err,
		UpdatedAt:   e.updatedAt,
		Stale:       e.stale,
		Fetching:    e.fetching,
		Refetching:  e.refetching,
		Subscribers: e.subscribers,
		Version:     e.version,
	}
}

// touchIdle restarts the GC grace window after activity on an entry that has
// no subscribers. Subscribed entries carry a zero idleSince and never expire.
func (e *entry) touchIdle(now time.Time) {
	if e.subscribers == 0 {
		e.idleSince = now
	}
}
