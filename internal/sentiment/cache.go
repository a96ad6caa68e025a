package sentiment

import (
	"container/list"
	"crypto/md5"
	"encoding/hex"
	"sync"
)

const DefaultCacheCapacity = 1000

// CacheKey is the MD5 hex digest of the exact input text.
func CacheKey(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// FIFOCache is a bounded map that evicts in insertion order. Reads never
// change eviction order.
type FIFOCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	entries  map[string]*list.Element
}

type fifoEntry struct {
	key    string
	result Result
}

func NewFIFOCache(capacity int) *FIFOCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &FIFOCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}
}

func (c *FIFOCache) Get(key string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return Result{}, false
	}
	return el.Value.(*fifoEntry).result, true
}

// Put stores result under key. An existing key keeps its original insertion
// position. It reports whether an entry was evicted to make room.
func (c *FIFOCache) Put(key string, result Result) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*fifoEntry).result = result
		return false
	}

	evicted := false
	if c.order.Len() >= c.capacity {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*fifoEntry).key)
		evicted = true
	}

	c.entries[key] = c.order.PushBack(&fifoEntry{key: key, result: result})
	return evicted
}

func (c *FIFOCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *FIFOCache) Capacity() int {
	return c.capacity
}
