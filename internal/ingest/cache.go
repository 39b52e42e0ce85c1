package ingest

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"bill-analytics-service/internal/models"
)

// DefaultCacheTTL is how long a session's canonical table stays cached
const DefaultCacheTTL = 5 * time.Minute

// Clock supplies the current time to the cache
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock
var SystemClock Clock = systemClock{}

// Snapshot is one load of a session: the canonical table and the report of
// the load that built it
type Snapshot struct {
	Table  *models.Table
	Report *LoadReport
}

// LoadFunc builds the snapshot of a session
type LoadFunc func() (*Snapshot, error)

type cacheEntry struct {
	snapshot *Snapshot
	expires  time.Time
}

// Cache memoizes session snapshots per session identity for a fixed TTL.
//
// Uploads and deletions must call Invalidate so the next read rebuilds the
// whole table. Concurrent GetOrCompute calls for one session share a single
// rebuild. Failed loads are not cached, and neither is a rebuild that was
// running when its session was invalidated.
type Cache struct {
	clock   Clock
	ttl     time.Duration
	mu      sync.Mutex
	entries map[string]cacheEntry
	gens    map[string]uint64
	group   singleflight.Group
}

// NewCache creates a Cache. A nil clock uses the wall clock and a
// non-positive ttl uses DefaultCacheTTL.
func NewCache(clock Clock, ttl time.Duration) *Cache {
	if clock == nil {
		clock = SystemClock
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		clock:   clock,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		gens:    make(map[string]uint64),
	}
}

// GetOrCompute returns the cached snapshot for sessionID, calling load when
// the entry is missing or expired. The boolean reports a cache hit.
func (c *Cache) GetOrCompute(sessionID string, load LoadFunc) (*Snapshot, bool, error) {
	if snapshot, ok := c.get(sessionID); ok {
		return snapshot, true, nil
	}

	v, err, _ := c.group.Do(sessionID, func() (interface{}, error) {
		if snapshot, ok := c.get(sessionID); ok {
			return snapshot, nil
		}

		c.mu.Lock()
		gen := c.gens[sessionID]
		c.mu.Unlock()

		snapshot, err := load()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.gens[sessionID] == gen {
			c.entries[sessionID] = cacheEntry{snapshot: snapshot, expires: c.clock.Now().Add(c.ttl)}
		}
		c.mu.Unlock()
		return snapshot, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*Snapshot), false, nil
}

func (c *Cache) get(sessionID string) (*Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[sessionID]
	if !ok {
		return nil, false
	}
	if !c.clock.Now().Before(entry.expires) {
		delete(c.entries, sessionID)
		return nil, false
	}
	return entry.snapshot, true
}

// Invalidate drops the entry of one session. A rebuild already in flight
// still answers its callers but is not stored.
func (c *Cache) Invalidate(sessionID string) {
	c.mu.Lock()
	delete(c.entries, sessionID)
	c.gens[sessionID]++
	c.mu.Unlock()
	c.group.Forget(sessionID)
}

// Purge removes every expired entry and returns how many were dropped
func (c *Cache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	dropped := 0
	for id, entry := range c.entries {
		if !now.Before(entry.expires) {
			delete(c.entries, id)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of cached sessions, expired or not
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
