package server

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Entry 缓存的瓦片
type Entry struct {
	Data    []byte
	ModTime time.Time
}

// HotCache 最近访问的瓦片字节, 以物理路径为键. A nil *HotCache is a
// disabled cache.
type HotCache struct {
	cache *ristretto.Cache[string, *Entry]
	ttl   time.Duration
}

// NewHotCache maxBytes <= 0 disables caching and returns nil.
func NewHotCache(maxBytes int64, ttl time.Duration) (*HotCache, error) {
	if maxBytes <= 0 {
		return nil, nil
	}
	// one counter per ~1KiB of budget, ten times the expected item count
	counters := maxBytes / 1024 * 10
	if counters < 1000 {
		counters = 1000
	}
	cache, err := ristretto.NewCache[string, *Entry](&ristretto.Config[string, *Entry]{
		NumCounters: counters,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &HotCache{cache: cache, ttl: ttl}, nil
}

// Get 读取
func (c *HotCache) Get(key string) (*Entry, bool) {
	if c == nil {
		return nil, false
	}
	return c.cache.Get(key)
}

// Set 写入, cost 为字节数
func (c *HotCache) Set(key string, e *Entry) {
	if c == nil || e == nil {
		return
	}
	cost := int64(len(e.Data))
	if cost == 0 {
		cost = 1
	}
	c.cache.SetWithTTL(key, e, cost, c.ttl)
}

// Wait blocks until buffered writes are applied.
func (c *HotCache) Wait() {
	if c != nil {
		c.cache.Wait()
	}
}

// Close 释放
func (c *HotCache) Close() {
	if c != nil {
		c.cache.Close()
	}
}
