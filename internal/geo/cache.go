package geo

import "sync"

// Cache memoizes lookups by address for the lifetime of one run. Entries are
// write-once: the first Put for an address wins.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Location
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]Location)}
}

// Get returns the cached location and whether the address was looked up before.
func (c *Cache) Get(addr string) (Location, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	loc, ok := c.entries[addr]
	return loc, ok
}

// Put records a result unless one already exists, and returns the stored value.
func (c *Cache) Put(addr string, loc Location) Location {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[addr]; ok {
		return existing
	}
	c.entries[addr] = loc
	return loc
}

// Len returns the number of cached addresses.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
