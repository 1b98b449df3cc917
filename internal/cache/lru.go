// Rosterline - Fantasy Roster Read-Through Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rosterline

// Package cache provides the bounded in-memory store backing the gateway
// facade. The store is a true LRU: Get refreshes recency, and inserting
// into a full store evicts the least recently touched entry atomically
// with the insert.
//
// The store has no notion of freshness. Callers that need TTL semantics
// store a timestamp alongside the value and compare it on lookup; this
// keeps success and error entries with different lifetimes in one
// structure.
package cache

import (
	"sync"
)

// DefaultCapacity is used when a non-positive capacity is requested.
const DefaultCapacity = 500

// lruEntry is a node in the intrusive doubly-linked recency list.
type lruEntry struct {
	key   string
	value interface{}
	prev  *lruEntry
	next  *lruEntry
}

// LRU is a thread-safe Least Recently Used cache with a fixed maximum
// entry count. All operations are O(1).
//
// This implementation uses a doubly-linked list for ordering and a hashmap
// for lookups. head.next is the most recently used entry, tail.prev the
// least recently used.
type LRU struct {
	mu sync.Mutex

	capacity int
	items    map[string]*lruEntry

	// head and tail are sentinel nodes for the doubly-linked list.
	head *lruEntry
	tail *lruEntry

	hits      int64
	misses    int64
	evictions int64
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
}

// NewLRU creates a new LRU cache with the specified capacity.
func NewLRU(capacity int) *LRU {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	c := &LRU{
		capacity: capacity,
		items:    make(map[string]*lruEntry, capacity),
		head:     &lruEntry{},
		tail:     &lruEntry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head

	return c
}

// Get retrieves a value from the cache. Found entries are moved to the
// front (most recently used).
func (c *LRU) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.items[key]
	if !exists {
		c.misses++
		return nil, false
	}

	c.moveToFront(entry)
	c.hits++
	return entry.value, true
}

// Set adds or updates an entry. If the key is new and the cache is at
// capacity, the least recently used entry is evicted first. The eviction
// and the insert happen under one lock acquisition, so two concurrent
// inserts cannot both evict for the same slot.
func (c *LRU) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.items[key]; exists {
		entry.value = value
		c.moveToFront(entry)
		return
	}

	if len(c.items) >= c.capacity {
		c.evictOldest()
	}

	entry := &lruEntry{key: key, value: value}
	c.items[key] = entry
	c.pushFront(entry)
}

// Remove deletes an entry from the cache.
// Returns true if the entry existed.
func (c *LRU) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.items[key]
	if !exists {
		return false
	}
	c.removeEntry(entry)
	return true
}

// Len returns the current number of entries.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Clear removes all entries.
func (c *LRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*lruEntry, c.capacity)
	c.head.next = c.tail
	c.tail.prev = c.head
}

// GetStats returns a snapshot of the cache counters.
func (c *LRU) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Entries:   len(c.items),
	}
}

// evictOldest removes the least recently used entry (must hold mu).
func (c *LRU) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.removeEntry(oldest)
	c.evictions++
}

// removeEntry unlinks an entry and deletes it from the map (must hold mu).
func (c *LRU) removeEntry(entry *lruEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	delete(c.items, entry.key)
}

// pushFront links an entry directly behind the head sentinel (must hold mu).
func (c *LRU) pushFront(entry *lruEntry) {
	entry.next = c.head.next
	entry.prev = c.head
	c.head.next.prev = entry
	c.head.next = entry
}

// moveToFront marks an entry as most recently used (must hold mu).
func (c *LRU) moveToFront(entry *lruEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	c.pushFront(entry)
}
