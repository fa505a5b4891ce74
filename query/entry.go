package query

import (
	"time"

	"github.com/goliatone/go-query-cache/internal/entrystore"
)

// Status is the fetch state machine position of a cache entry.
type Status string

// Entry states: idle entries were referenced but never fetched; loading
// entries run their first fetch; success and error reflect the outcome of
// the last completed fetch chain.
const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Entry is an immutable snapshot of one cached query's state. Listeners
// receive an Entry per applied write; Snapshot returns the current one.
// Data is shared with the cache and must be treated as read-only.
type Entry struct {
	// Key is the canonical encoding the entry is stored under.
	Key string

	// Status is the state machine position.
	Status Status

	// Data is the last successfully fetched value, or nil if none. It
	// survives failed refetches unless the client drops data on error.
	Data any

	// Err is the last failure, cleared by a successful fetch.
	Err error

	// UpdatedAt is the time of the last successful fetch; zero if never.
	// It only advances; invalidation flips Stale instead of rewinding it.
	UpdatedAt time.Time

	// Stale marks the entry as invalidated without touching its data.
	Stale bool

	// IsFetching is true while a fetch chain is in flight for the key.
	IsFetching bool

	// IsRefetching is true when the in-flight chain refreshes existing data,
	// distinguishing "refreshing" from "no data yet".
	IsRefetching bool

	// Subscribers is the number of active listeners for the key.
	Subscribers int

	// Version counts applied writes for the key and strictly increases, so
	// listeners can assert they observe writes in order.
	Version uint64
}

func entryFromSnapshot(s entrystore.Snapshot) Entry {
	return Entry{
		Key:          s.Key,
		Status:       Status(s.Status),
		Data:         s.Data,
		Err:          s.Err,
		UpdatedAt:    s.UpdatedAt,
		Stale:        s.Stale,
		IsFetching:   s.Fetching,
		IsRefetching: s.Refetching,
		Subscribers:  s.Subscribers,
		Version:      s.Version,
	}
}
