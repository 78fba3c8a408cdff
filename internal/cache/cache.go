package cache

import (
	"sync"
	"time"

	"dispatchd/internal/model"
)

// Entry is a denormalized projection of a request record used for duplicate
// detection without touching the store. It is eventually consistent: a miss
// does not mean the record is absent, but a hit is always trusted.
type Entry struct {
	WorkerID  int
	Status    string
	CreatedAt time.Time
	Payload   map[string]any
	Result    *model.Result
}

// EntryFor builds the cache projection of a request record.
func EntryFor(r *model.Request) Entry {
	return Entry{
		WorkerID:  r.WorkerID,
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
		Payload:   r.Payload,
		Result:    r.Result,
	}
}

// Cache is a thread-safe lookaside map from request ID to its last-known
// snapshot. There is no eviction or TTL; entries live for the process
// lifetime. The lock is held only for the map access, never across I/O.
type Cache struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]Entry)}
}

// Get returns the entry for id and whether one exists.
func (c *Cache) Get(id string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	return e, ok
}

// Put stores or overwrites the entry for id.
func (c *Cache) Put(id string, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = e
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
