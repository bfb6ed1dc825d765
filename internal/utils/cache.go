package utils

import (
	"hash/fnv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheItem 包装缓存数据和过期时间
type CacheItem[V any] struct {
	Data      V
	ExpiresAt time.Time
}

// genStripes is the number of invalidation counters keys are hashed onto.
const genStripes = 64

// Cache is a size-bounded LRU whose entries also expire after a TTL.
//
// Every Delete bumps a generation counter for the key. A loader that reads
// Generation before going to the database and stores its result with
// SetIfGeneration never writes back data that an invalidation already
// superseded.
type Cache[V any] struct {
	lruCache *lru.Cache[string, CacheItem[V]]
	ttl      time.Duration
	now      func() time.Time

	mu   sync.Mutex
	gens [genStripes]uint64
}

func NewCache[V any](size int, ttl time.Duration) (*Cache[V], error) {
	l, err := lru.New[string, CacheItem[V]](size)
	if err != nil {
		return nil, err
	}
	return &Cache[V]{lruCache: l, ttl: ttl, now: time.Now}, nil
}

// Set 设置缓存，使用创建时指定的 TTL
func (c *Cache[V]) Set(key string, data V) {
	c.lruCache.Add(key, CacheItem[V]{
		Data:      data,
		ExpiresAt: c.now().Add(c.ttl),
	})
}

// Get 获取缓存，不存在或已过期时 ok 为 false
func (c *Cache[V]) Get(key string) (v V, ok bool) {
	val, found := c.lruCache.Get(key)
	if !found {
		return v, false
	}

	if c.now().After(val.ExpiresAt) {
		c.lruCache.Remove(key)
		return v, false
	}

	return val.Data, true
}

// Delete 删除指定缓存, 并使之前读到的 generation 失效
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[stripe(key)]++
	c.lruCache.Remove(key)
}

// Generation returns the current invalidation generation of key.
func (c *Cache[V]) Generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[stripe(key)]
}

// SetIfGeneration stores data only if key was not invalidated since gen was
// read. It reports whether the value was stored.
func (c *Cache[V]) SetIfGeneration(key string, data V, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[stripe(key)] != gen {
		return false
	}
	c.Set(key, data)
	return true
}

func stripe(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % genStripes
}

func (c *Cache[V]) Len() int {
	return c.lruCache.Len()
}
