// Rosterline - Fantasy Roster Read-Through Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rosterline

package cache

import (
	"fmt"
	"sync"
	"testing"
)

func TestLRU_SetThenGet(t *testing.T) {
	c := NewLRU(10)

	c.Set("a", "value-a")

	got, found := c.Get("a")
	if !found {
		t.Fatal("Expected to find key 'a' immediately after Set")
	}
	if got != "value-a" {
		t.Errorf("Expected 'value-a', got %v", got)
	}
}

func TestLRU_UpdateExisting(t *testing.T) {
	c := NewLRU(2)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 3) // update, must not evict

	if c.Len() != 2 {
		t.Errorf("Expected len 2 after update, got %d", c.Len())
	}
	if got, _ := c.Get("a"); got != 3 {
		t.Errorf("Expected updated value 3, got %v", got)
	}
	if _, found := c.Get("b"); !found {
		t.Error("Expected 'b' to survive an update of 'a'")
	}
}

func TestLRU_EvictionOrder(t *testing.T) {
	c := NewLRU(3)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	// Touch 'a' so 'b' becomes the oldest.
	c.Get("a")

	c.Set("d", 4)

	if _, found := c.Get("b"); found {
		t.Error("Expected 'b' to be evicted as least recently used")
	}
	for _, key := range []string{"a", "c", "d"} {
		if _, found := c.Get(key); !found {
			t.Errorf("Expected %q to be present", key)
		}
	}
}

func TestLRU_CapacityBound(t *testing.T) {
	const capacity = 5
	c := NewLRU(capacity)

	for i := 0; i < capacity*3; i++ {
		c.Set(fmt.Sprintf("key-%d", i), i)
	}

	if c.Len() != capacity {
		t.Errorf("Expected at most %d entries, got %d", capacity, c.Len())
	}

	// The most recent <capacity> inserts must all be present.
	for i := capacity * 2; i < capacity*3; i++ {
		if _, found := c.Get(fmt.Sprintf("key-%d", i)); !found {
			t.Errorf("Expected key-%d to be present", i)
		}
	}
}

func TestLRU_SetRefreshesRecency(t *testing.T) {
	c := NewLRU(2)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 10) // Set on existing key refreshes recency too
	c.Set("c", 3)  // should evict 'b', not 'a'

	if _, found := c.Get("a"); !found {
		t.Error("Expected 'a' to survive; Set should refresh recency")
	}
	if _, found := c.Get("b"); found {
		t.Error("Expected 'b' to be evicted")
	}
}

func TestLRU_Remove(t *testing.T) {
	c := NewLRU(10)

	c.Set("a", 1)
	if !c.Remove("a") {
		t.Error("Expected Remove to return true for existing key")
	}
	if c.Remove("a") {
		t.Error("Expected Remove to return false for missing key")
	}
	if _, found := c.Get("a"); found {
		t.Error("Expected 'a' to be gone after Remove")
	}
}

func TestLRU_Clear(t *testing.T) {
	c := NewLRU(10)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Expected empty cache after Clear, got %d entries", c.Len())
	}
	if _, found := c.Get("a"); found {
		t.Error("Expected no entries after Clear")
	}
}

func TestLRU_DefaultCapacity(t *testing.T) {
	c := NewLRU(0)

	for i := 0; i < DefaultCapacity+10; i++ {
		c.Set(fmt.Sprintf("key-%d", i), i)
	}
	if c.Len() != DefaultCapacity {
		t.Errorf("Expected default capacity %d, got %d", DefaultCapacity, c.Len())
	}
}

func TestLRU_Stats(t *testing.T) {
	c := NewLRU(2)

	c.Set("a", 1)
	c.Get("a")
	c.Get("missing")
	c.Set("b", 2)
	c.Set("c", 3) // evicts

	stats := c.GetStats()
	if stats.Hits != 1 {
		t.Errorf("Expected 1 hit, got %d", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("Expected 1 miss, got %d", stats.Misses)
	}
	if stats.Evictions != 1 {
		t.Errorf("Expected 1 eviction, got %d", stats.Evictions)
	}
	if stats.Entries != 2 {
		t.Errorf("Expected 2 entries, got %d", stats.Entries)
	}
}

func TestLRU_ConcurrentAccess(t *testing.T) {
	c := NewLRU(100)
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("key-%d", i%150)
				c.Set(key, g)
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()

	if c.Len() > 100 {
		t.Errorf("Cache exceeded capacity under concurrency: %d", c.Len())
	}
}
