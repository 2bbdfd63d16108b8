package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// lruItem 包装实际的数据，增加过期时间
type lruItem struct {
	Value     string
	ExpiredAt time.Time
}

// LRUCache 有容量上限的进程内缓存，每个条目独立 TTL
type LRUCache struct {
	storage *lru.Cache[string, lruItem]
	now     func() time.Time
}

// NewLRUCache size 是最大缓存条数
func NewLRUCache(size int) (*LRUCache, error) {
	if size <= 0 {
		size = 1000
	}
	c, err := lru.New[string, lruItem](size)
	if err != nil {
		return nil, err
	}
	return &LRUCache{storage: c, now: time.Now}, nil
}

func (c *LRUCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.storage.Add(key, lruItem{
		Value:     value,
		ExpiredAt: c.now().Add(ttl),
	})
	return nil
}

// Get 带过期检查，过期条目顺手删除
func (c *LRUCache) Get(_ context.Context, key string) (string, bool, error) {
	item, ok := c.storage.Get(key)
	if !ok {
		return "", false, nil
	}
	if c.now().After(item.ExpiredAt) {
		c.storage.Remove(key)
		return "", false, nil
	}
	return item.Value, true, nil
}

// Len 当前条数（含未清理的过期条目）
func (c *LRUCache) Len() int {
	return c.storage.Len()
}
