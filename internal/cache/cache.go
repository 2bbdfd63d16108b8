package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
)

// VectorCache 相似度结果缓存，值为序列化后的字符串
type VectorCache interface {
	// Get 未命中或已过期时返回 ok=false
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Options 缓存配置
type Options struct {
	Driver   string // memory | lru | redis
	Size     int    // lru 最大条数
	RedisURL string
}

// New 按驱动创建缓存
func New(opts Options) (VectorCache, error) {
	switch opts.Driver {
	case "", "memory":
		return NewMemoryCache(), nil
	case "lru":
		return NewLRUCache(opts.Size)
	case "redis":
		return NewRedisCache(opts.RedisURL)
	default:
		return nil, fmt.Errorf("unknown cache driver %q", opts.Driver)
	}
}

// MemoryCache 进程内缓存，条目按 TTL 过期，后台定期清理
type MemoryCache struct {
	c *cache.Cache
}

// NewMemoryCache 默认过期时间1小时，清理间隔10分钟
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{c: cache.New(time.Hour, 10*time.Minute)}
}

func (m *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	v, found := m.c.Get(key)
	if !found {
		return "", false, nil
	}
	s, ok := v.(string)
	return s, ok, nil
}

func (m *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.c.Set(key, value, ttl)
	return nil
}
