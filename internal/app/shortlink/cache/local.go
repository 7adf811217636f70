package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
)

// LocalCache 基于 ristretto 的进程内 L1 缓存。
//
// ristretto 的写入是异步的：Set 返回后立即 Get 可能还读不到，需要时调用 Wait。
type LocalCache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewLocalCache 创建本地缓存
// maxItems: 最大缓存条目数（建议 10000-100000）
// maxCost: 最大条目数预算，每条 cost=1
// ttl: 0 表示不过期；多实例部署时应设短一些，限制跨实例的陈旧窗口
func NewLocalCache(maxItems int64, maxCost int64, ttl time.Duration) (*LocalCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxItems * 10, // 计数器数量，建议为 maxItems 的 10 倍
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &LocalCache{cache: cache, ttl: ttl}, nil
}

func (l *LocalCache) Get(code string) (string, bool) {
	if v, ok := l.cache.Get(code); ok {
		url, ok := v.(string)
		return url, ok
	}
	return "", false
}

func (l *LocalCache) Set(code, url string) {
	l.cache.SetWithTTL(code, url, 1, l.ttl)
}

func (l *LocalCache) Del(code string) {
	l.cache.Del(code)
}

// Wait 阻塞到缓冲中的写入全部生效。
func (l *LocalCache) Wait() {
	l.cache.Wait()
}

func (l *LocalCache) Close() {
	l.cache.Close()
}
