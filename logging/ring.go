package logging

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// LogEntry is an Event stamped with a lexically sortable id, as stored in a
// room's ordered event log.
type LogEntry struct {
	ID string `json:"id"`
	Event
}

// Ring is a bounded, ordered event log. Oldest entries are evicted once the
// capacity is exceeded. Safe for concurrent use; in practice only the room
// goroutine writes and end-of-room reporting reads.
type Ring struct {
	mu      sync.Mutex
	cap     int
	entries []LogEntry
	entropy *ulid.MonotonicEntropy
}

// NewRing creates an event log holding at most capacity entries.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 256
	}
	return &Ring{
		cap:     capacity,
		entries: make([]LogEntry, 0, capacity),
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// Publish implements Publisher.
func (r *Ring) Publish(_ context.Context, event Event) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := event.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	id, err := ulid.New(ulid.Timestamp(ts), r.entropy)
	if err != nil {
		id = ulid.Make()
	}
	r.entries = append(r.entries, LogEntry{ID: id.String(), Event: event})
	if len(r.entries) > r.cap {
		r.entries = r.entries[len(r.entries)-r.cap:]
	}
}

// Entries returns a copy of the log in insertion order.
func (r *Ring) Entries() []LogEntry {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]LogEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of retained entries.
func (r *Ring) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
