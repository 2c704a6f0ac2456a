// Package pricecache is the process-lifetime quote cache. One entry per
// symbol, unconditional last-write-wins, no eviction: the symbol universe
// is small and static, so entries are only ever overwritten.
package pricecache

import (
	"sync"
	"time"

	"quoteproxy/internal/provider"
)

// Entry is a cached quote with its observation time. Callers always
// receive a copy, never a reference into the cache.
type Entry struct {
	Quote      provider.Quote
	ObservedAt time.Time
}

// FreshAt reports whether the entry is still usable at now for the given
// TTL. An entry becomes stale exactly at ObservedAt+ttl.
func (e Entry) FreshAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.ObservedAt) < ttl
}

// Cache maps symbols to their latest observed quote.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func New() *Cache {
	return &Cache{entries: make(map[string]Entry)}
}

// Get returns a copy of the entry for symbol, if present.
func (c *Cache) Get(symbol string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[symbol]
	return e, ok
}

// Put overwrites the entry for symbol unconditionally. Last write wins
// regardless of observation times; callers are expected to write in
// observation order.
func (c *Cache) Put(symbol string, q provider.Quote, observedAt time.Time) {
	c.mu.Lock()
	c.entries[symbol] = Entry{Quote: q, ObservedAt: observedAt}
	c.mu.Unlock()
}

// Len reports the number of cached symbols.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
