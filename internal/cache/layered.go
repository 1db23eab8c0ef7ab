package cache

import (
	"sync/atomic"
	"time"
)

// Stats counts lookups by the layer that answered them
type Stats struct {
	MemoryHits int64
	DiskHits   int64
	Misses     int64
}

// StatsReporter is implemented by caches that track lookups
type StatsReporter interface {
	Stats() Stats
}

// LayeredCache checks an in-process layer before the disk layer. Disk hits
// are promoted so repeated runs in one process skip the disk.
type LayeredCache struct {
	memory    Cache
	disk      Cache
	memoryTTL time.Duration

	memoryHits atomic.Int64
	diskHits   atomic.Int64
	misses     atomic.Int64
}

// NewLayeredCache creates a memory + disk cache
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return &LayeredCache{
		memory:    NewMemoryCache(memoryTTL, 10*time.Minute),
		disk:      NewDiskCache(diskDir, diskTTL),
		memoryTTL: memoryTTL,
	}
}

// Get returns the memory copy if present, else the disk copy
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.memory.Get(key); found {
		c.memoryHits.Add(1)
		return val, true
	}

	if val, found := c.disk.Get(key); found {
		c.diskHits.Add(1)
		_ = c.memory.Set(key, val, 0)
		return val, true
	}

	c.misses.Add(1)
	return nil, false
}

// Set writes both layers. The memory copy never outlives the memory TTL.
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	memTTL := ttl
	if memTTL <= 0 || (c.memoryTTL > 0 && memTTL > c.memoryTTL) {
		memTTL = 0
	}
	if err := c.memory.Set(key, value, memTTL); err != nil {
		return err
	}
	return c.disk.Set(key, value, ttl)
}

// Delete removes a value from both layers
func (c *LayeredCache) Delete(key string) error {
	_ = c.memory.Delete(key)
	return c.disk.Delete(key)
}

// Clear empties both layers
func (c *LayeredCache) Clear() error {
	_ = c.memory.Clear()
	return c.disk.Clear()
}

// Stats returns a snapshot of the lookup counters
func (c *LayeredCache) Stats() Stats {
	return Stats{
		MemoryHits: c.memoryHits.Load(),
		DiskHits:   c.diskHits.Load(),
		Misses:     c.misses.Load(),
	}
}

// NoopCache never stores anything; used when caching is disabled
type NoopCache struct{}

func (NoopCache) Get(string) ([]byte, bool) { return nil, false }

func (NoopCache) Set(string, []byte, time.Duration) error { return nil }

func (NoopCache) Delete(string) error { return nil }

func (NoopCache) Clear() error { return nil }
